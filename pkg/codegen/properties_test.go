package codegen

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/xplshn/botblocks/pkg/block"
	"github.com/xplshn/botblocks/pkg/config"
)

// alphabet mixes every escaped character with plain ASCII and non-ASCII text.
var alphabet = []rune{
	'\\', '"', '\n', '\r', '\t', '\x00', '\x1b', '\x7f', '\'', '`', '$', '{', '}',
	'a', 'Z', '0', ' ', '!', 'é', '日', '🎉', rune(0x2028), rune(0x2029),
}

func genText() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, len(alphabet)-1)).Map(func(idx []int) string {
		var sb strings.Builder
		for _, i := range idx {
			sb.WriteRune(alphabet[i])
		}
		return sb.String()
	})
}

func newProperties() *gopter.Properties {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	return gopter.NewProperties(parameters)
}

func TestPropertyEscapingRoundTrip(t *testing.T) {
	properties := newProperties()
	cfg := config.NewConfig()

	// Both target grammars agree with Go on double-quoted literals for the
	// escapes the backends produce, so strconv.Unquote stands in for them.
	for _, lang := range config.Languages() {
		be, err := BackendFor(lang, cfg)
		if err != nil {
			t.Fatal(err)
		}
		properties.Property(fmt.Sprintf("%s literal decodes to the original", lang), prop.ForAll(
			func(s string) bool {
				q := be.Quote(s)
				if strings.ContainsAny(q, "\n\r") {
					return false
				}
				back, err := strconv.Unquote(q)
				return err == nil && back == s
			},
			genText(),
		))
	}

	properties.Property("javascript literals never hold raw line separators", prop.ForAll(
		func(s string) bool {
			q := NewJavaScriptBackend(cfg).Quote(s)
			return !strings.ContainsRune(q, 0x2028) && !strings.ContainsRune(q, 0x2029)
		},
		genText(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestPropertyDeterminism(t *testing.T) {
	properties := newProperties()

	properties.Property("generate is byte-identical across calls", prop.ForAll(
		func(msgs []string, lang int) bool {
			b := &builder{t: t, p: block.New()}
			var refs []block.Ref
			for i, m := range msgs {
				refs = append(refs, b.send(m))
				name := fmt.Sprintf("v%d", i%3)
				refs = append(refs, b.value(b.add("variables_set", map[string]block.Literal{"VAR": block.StringValue(name)}), "VALUE", b.text(m)))
			}
			b.trigger("messageCreate", refs...)
			b.command("!x", b.send("x"))

			l := config.Languages()[lang]
			g := NewGenerator(config.NewConfig())
			r1, err1 := g.Generate(b.p, l)
			r2, err2 := g.Generate(b.p, l)
			return err1 == nil && err2 == nil && r1.Source == r2.Source && r1.Hash == r2.Hash
		},
		gen.SliceOfN(5, genText()),
		gen.IntRange(0, 2),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestPropertyChainOrder(t *testing.T) {
	properties := newProperties()

	properties.Property("statements keep chain order", prop.ForAll(
		func(n int, lang int) bool {
			b := &builder{t: t, p: block.New()}
			var refs []block.Ref
			for i := 0; i < n; i++ {
				refs = append(refs, b.send(fmt.Sprintf("msg-%03d", i)))
			}
			b.trigger("messageCreate", refs...)

			res, err := NewGenerator(nil).Generate(b.p, config.Languages()[lang])
			if err != nil {
				return false
			}
			last := -1
			for i := 0; i < n; i++ {
				at := strings.Index(res.Source, fmt.Sprintf(`"msg-%03d"`, i))
				if at <= last {
					return false
				}
				last = at
			}
			return true
		},
		gen.IntRange(1, 40),
		gen.IntRange(0, 2),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestPropertyGuardBeforeUserCode(t *testing.T) {
	properties := newProperties()
	guards := map[config.Language]string{
		config.JavaScript: "if (message.author.bot) return;",
		config.TypeScript: "if (message.author.bot) return;",
		config.Python:     "if message.author.bot:",
	}

	properties.Property("message handlers start with the self-message guard", prop.ForAll(
		func(msgs []string, loose bool, lang int) bool {
			b := &builder{t: t, p: block.New()}
			var refs []block.Ref
			for _, m := range msgs {
				refs = append(refs, b.send("user:"+m))
			}
			if loose {
				b.command("!go", refs...)
			} else {
				b.trigger("messageCreate", refs...)
			}

			l := config.Languages()[lang]
			res, err := NewGenerator(nil).Generate(b.p, l)
			if err != nil {
				return false
			}
			guard := strings.Index(res.Source, guards[l])
			user := strings.Index(res.Source, `"user:`)
			return guard >= 0 && (user < 0 || guard < user)
		},
		gen.SliceOf(genText()),
		gen.Bool(),
		gen.IntRange(0, 2),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestOperatorTotality(t *testing.T) {
	tags := map[OpClass][]string{
		OpCompare: {"EQ", "NEQ", "LT", "LTE", "GT", "GTE"},
		OpLogic:   {"AND", "OR"},
		OpArith:   {"ADD", "MINUS", "MULTIPLY", "DIVIDE", "POWER"},
	}
	types := map[OpClass]string{OpCompare: "logic_compare", OpLogic: "logic_operation", OpArith: "math_arithmetic"}

	for _, lang := range config.Languages() {
		be, _ := BackendFor(lang, config.NewConfig())
		for class, list := range tags {
			ops := be.Operators(class)
			if ops.Default == "" {
				t.Errorf("%s: empty default for class %d", lang, class)
			}
			for _, tag := range list {
				tok := ops.Tokens[tag]
				if tok == "" {
					t.Errorf("%s: tag %s has no token", lang, tag)
					continue
				}

				b := newBuilder(t)
				expr := b.add(types[class], map[string]block.Literal{"OP": block.StringValue(tag)})
				b.value(expr, "A", b.number(1))
				b.value(expr, "B", b.number(2))
				set := b.value(b.add("variables_set", map[string]block.Literal{"VAR": block.StringValue("x")}), "VALUE", expr)
				b.trigger("messageCreate", set)

				res := generate(t, b.p, lang)
				if !strings.Contains(res.Source, "(1 "+tok+" 2)") {
					t.Errorf("%s: %s did not render as %q:\n%s", lang, tag, tok, res.Source)
				}
				if len(res.Diagnostics) != 0 {
					t.Errorf("%s: %s raised %v", lang, tag, res.Diagnostics)
				}
			}

			b := newBuilder(t)
			expr := b.add(types[class], map[string]block.Literal{"OP": block.StringValue("XOR")})
			set := b.value(b.add("variables_set", map[string]block.Literal{"VAR": block.StringValue("x")}), "VALUE", expr)
			b.trigger("messageCreate", set)
			res := generate(t, b.p, lang)
			if !hasDiagnostic(res, config.WarnUnknownOperator) || !strings.Contains(res.Source, " "+ops.Default+" ") {
				t.Errorf("%s: unknown tag should fall back to %q with a diagnostic:\n%s", lang, ops.Default, res.Source)
			}
		}
	}
}

func TestSanitize(t *testing.T) {
	cases := []struct{ in, js, py string }{
		{"score", "score", "score"},
		{"my score", "my_score", "my_score"},
		{"1st", "_1st", "_1st"},
		{"class", "class_", "class_"},
		{"print", "print", "print_"},
		{"None", "None", "None_"},
		{"変数名", "変数名", "変数名"},
		{"e\u0301", "\u00e9", "\u00e9"},
		{"", "_", "_"},
		{"embed", "embed_", "embed_"},
		{"embed2", "embed2_", "embed2_"},
		{"embeds", "embeds", "embeds"},
		{"i3", "i3_", "i3_"},
		{"i", "i", "i"},
	}
	js, py := NewJavaScriptBackend(config.NewConfig()), NewPythonBackend(config.NewConfig())
	for _, c := range cases {
		if got := js.Ident(c.in); got != c.js {
			t.Errorf("js Ident(%q) = %q, want %q", c.in, got, c.js)
		}
		if got := py.Ident(c.in); got != c.py {
			t.Errorf("py Ident(%q) = %q, want %q", c.in, got, c.py)
		}
	}
}

func TestFloatLiterals(t *testing.T) {
	js, py := NewJavaScriptBackend(config.NewConfig()), NewPythonBackend(config.NewConfig())
	cases := []struct {
		f      float64
		js, py string
	}{
		{3, "3", "3"},
		{0.5, "0.5", "0.5"},
		{-2, "(-2)", "(-2)"},
	}
	for _, c := range cases {
		if got := js.Float(c.f); got != c.js {
			t.Errorf("js Float(%v) = %q", c.f, got)
		}
		if got := py.Float(c.f); got != c.py {
			t.Errorf("py Float(%v) = %q", c.f, got)
		}
	}
}
