package codegen

import (
	"testing"

	"github.com/xplshn/botblocks/pkg/block"
	"github.com/xplshn/botblocks/pkg/config"
)

// builder wraps a Program with fatal-on-error helpers for tests.
type builder struct {
	t *testing.T
	p *block.Program
}

func newBuilder(t *testing.T) *builder {
	t.Helper()
	return &builder{t: t, p: block.New()}
}

func (b *builder) must(err error) {
	b.t.Helper()
	if err != nil {
		b.t.Fatal(err)
	}
}

func (b *builder) add(typ string, fields map[string]block.Literal) block.Ref {
	b.t.Helper()
	r := b.p.Add(typ)
	for name, v := range fields {
		b.must(b.p.SetField(r, name, v))
	}
	return r
}

func (b *builder) value(parent block.Ref, slot string, child block.Ref) block.Ref {
	b.t.Helper()
	b.must(b.p.ConnectValue(parent, slot, child))
	return parent
}

// body connects refs as the ordered chain under parent's statement slot.
func (b *builder) body(parent block.Ref, slot string, refs ...block.Ref) block.Ref {
	b.t.Helper()
	if len(refs) == 0 {
		return parent
	}
	b.must(b.p.ConnectStatement(parent, slot, refs[0]))
	for i := 1; i < len(refs); i++ {
		b.must(b.p.ConnectNext(refs[i-1], refs[i]))
	}
	return parent
}

func (b *builder) text(s string) block.Ref {
	return b.add("text", map[string]block.Literal{"TEXT": block.StringValue(s)})
}

func (b *builder) number(f float64) block.Ref {
	return b.add("math_number", map[string]block.Literal{"NUM": block.NumberValue(f)})
}

func (b *builder) send(s string) block.Ref {
	b.t.Helper()
	return b.value(b.add("discord_send_message", nil), "MESSAGE", b.text(s))
}

func (b *builder) trigger(kind string, actions ...block.Ref) block.Ref {
	b.t.Helper()
	r := b.add("discord_trigger", map[string]block.Literal{"TRIGGER_TYPE": block.StringValue(kind)})
	return b.body(r, "ACTIONS", actions...)
}

func (b *builder) command(cmd string, actions ...block.Ref) block.Ref {
	b.t.Helper()
	r := b.add("discord_command", map[string]block.Literal{"COMMAND": block.StringValue(cmd)})
	return b.body(r, "ACTIONS", actions...)
}

func generate(t *testing.T, p *block.Program, lang config.Language) *Result {
	t.Helper()
	return generateWith(t, config.NewConfig(), p, lang)
}

func generateWith(t *testing.T, cfg *config.Config, p *block.Program, lang config.Language) *Result {
	t.Helper()
	res, err := NewGenerator(cfg).Generate(p, lang)
	if err != nil {
		t.Fatalf("Generate(%s): %v", lang, err)
	}
	return res
}

func hasDiagnostic(res *Result, w config.Warning) bool {
	for _, d := range res.Diagnostics {
		if d.Warning == w {
			return true
		}
	}
	return false
}
