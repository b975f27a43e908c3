package template

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/botblocks/pkg/block"
	"github.com/xplshn/botblocks/pkg/codegen"
	"github.com/xplshn/botblocks/pkg/config"
)

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

// sampleProgram covers top-level chains, value nesting, statement chains,
// number and bool fields, unknown blocks and positions.
func sampleProgram(t *testing.T) *block.Program {
	t.Helper()
	p := block.New()
	add := func(typ string, fields map[string]block.Literal) block.Ref {
		r := p.Add(typ)
		for k, v := range fields {
			must(t, p.SetField(r, k, v))
		}
		return r
	}
	str := block.StringValue

	decl := add("create_variable", map[string]block.Literal{"VAR_NAME": str("count")})
	must(t, p.SetPosition(decl, 10, 20))

	trig := add("discord_trigger", map[string]block.Literal{"TRIGGER_TYPE": str("messageCreate")})
	must(t, p.SetPosition(trig, 50, 50))
	set := add("set_variable", map[string]block.Literal{"VAR_NAME": str("count")})
	sum := add("math_arithmetic", map[string]block.Literal{"OP": str("ADD")})
	must(t, p.ConnectValue(sum, "A", add("get_variable", map[string]block.Literal{"VAR_NAME": str("count")})))
	must(t, p.ConnectValue(sum, "B", add("math_number", map[string]block.Literal{"NUM": block.NumberValue(1.5)})))
	must(t, p.ConnectValue(set, "VALUE", sum))
	must(t, p.ConnectStatement(trig, "ACTIONS", set))

	loop := add("controls_whileUntil", map[string]block.Literal{"MODE": str("UNTIL")})
	must(t, p.ConnectValue(loop, "BOOL", add("logic_boolean", map[string]block.Literal{"BOOL": block.BoolValue(true)})))
	must(t, p.ConnectNext(set, loop))
	wait := add("discord_wait", map[string]block.Literal{"SECONDS": block.NumberValue(2)})
	must(t, p.ConnectStatement(loop, "DO", wait))
	mystery := add("discord_kick_member", nil)
	must(t, p.ConnectNext(wait, mystery))

	cmd1 := add("discord_command", map[string]block.Literal{"COMMAND": str("!ping")})
	reply := add("discord_send_message", nil)
	must(t, p.ConnectValue(reply, "MESSAGE", add("text", map[string]block.Literal{"TEXT": str("pong \"quoted\"")})))
	must(t, p.ConnectStatement(cmd1, "ACTIONS", reply))
	cmd2 := add("discord_command", map[string]block.Literal{"COMMAND": str("!bye")})
	must(t, p.ConnectNext(cmd1, cmd2))

	react := add("discord_trigger", map[string]block.Literal{"TRIGGER_TYPE": str("messageReactionAdd")})
	must(t, p.ConnectStatement(react, "ACTIONS", add("discord_add_reaction", map[string]block.Literal{"EMOJI": str("👍")})))
	return p
}

func TestTemplateRoundTrip(t *testing.T) {
	orig := sampleProgram(t)

	data, err := json.Marshal(Encode(orig))
	must(t, err)
	var blocks []*BlockData
	must(t, json.Unmarshal(data, &blocks))
	rebuilt, err := Materialize(blocks)
	must(t, err)

	if rebuilt.Len() != orig.Len() {
		t.Fatalf("rebuilt %d blocks, want %d", rebuilt.Len(), orig.Len())
	}
	if diff := cmp.Diff(Encode(orig), Encode(rebuilt)); diff != "" {
		t.Errorf("re-encoded tree differs (-orig +rebuilt):\n%s", diff)
	}

	g := codegen.NewGenerator(nil)
	for _, lang := range config.Languages() {
		want, err := g.Generate(orig, lang)
		must(t, err)
		got, err := g.Generate(rebuilt, lang)
		must(t, err)
		if diff := cmp.Diff(want.Source, got.Source); diff != "" {
			t.Errorf("%s: regenerated code differs (-orig +rebuilt):\n%s", lang, diff)
		}
	}
}

func TestProgramFiles(t *testing.T) {
	files, err := filepath.Glob("../../testdata/*.json")
	must(t, err)
	if len(files) == 0 {
		t.Skip("no program files")
	}
	for _, file := range files {
		if strings.HasPrefix(filepath.Base(file), ".") {
			continue // golden files
		}
		t.Run(filepath.Base(file), func(t *testing.T) {
			data, err := os.ReadFile(file)
			must(t, err)
			tmpl, err := Parse(data)
			must(t, err)
			prog, err := Materialize(tmpl.Blocks)
			must(t, err)
			again, err := Materialize(Encode(prog))
			must(t, err)
			for _, lang := range config.Languages() {
				a, err := codegen.NewGenerator(nil).Generate(prog, lang)
				must(t, err)
				b, err := codegen.NewGenerator(nil).Generate(again, lang)
				must(t, err)
				if a.Source != b.Source {
					t.Errorf("%s: output changed after re-encoding", lang)
				}
			}
		})
	}
}

func TestParse(t *testing.T) {
	tmpl, err := Parse([]byte(` [{"type": "text"}]`))
	must(t, err)
	if len(tmpl.Blocks) != 1 || tmpl.Name != "" {
		t.Errorf("bare list parsed as %+v", tmpl)
	}
	for _, bad := range []string{`{"name": "x"}`, `[{]`, ``} {
		if _, err := Parse([]byte(bad)); !errors.Is(err, ErrInvalidTemplate) {
			t.Errorf("Parse(%q) = %v", bad, err)
		}
	}
}

func TestMaterializeRejectsNestedChains(t *testing.T) {
	send := func(s string) *BlockData {
		return &BlockData{Type: "discord_send_message", Values: map[string]*BlockData{
			"MESSAGE": {Type: "text", Fields: map[string]block.Literal{"TEXT": block.StringValue(s)}},
		}}
	}
	inStatement := send("A")
	inStatement.Next = send("B")
	inValue := &BlockData{Type: "text", Next: send("C")}

	for name, blocks := range map[string][]*BlockData{
		"statement": {{Type: "discord_trigger", Children: map[string][]*BlockData{"ACTIONS": {inStatement}}}},
		"value":     {{Type: "discord_send_message", Values: map[string]*BlockData{"MESSAGE": inValue}}},
	} {
		if _, err := Materialize(blocks); !errors.Is(err, ErrInvalidTemplate) {
			t.Errorf("%s: Materialize = %v, want ErrInvalidTemplate", name, err)
		}
	}

	top := send("first")
	top.Next = send("second")
	p, err := Materialize([]*BlockData{top})
	must(t, err)
	roots := p.Roots()
	if len(roots) != 1 || len(p.Chain(roots[0])) != 2 {
		t.Errorf("top-level next must stay a chain, roots = %v", roots)
	}
}

func TestTemplateCBORRoundTrip(t *testing.T) {
	tmpl := &Template{Name: "Sample", Language: "python", Blocks: Encode(sampleProgram(t))}
	data, err := encMode.Marshal(tmpl)
	must(t, err)
	var back Template
	must(t, cbor.Unmarshal(data, &back))
	if diff := cmp.Diff(tmpl, &back); diff != "" {
		t.Errorf("cbor round trip (-want +got):\n%s", diff)
	}
}

func TestUnknownTypeSurvivesMaterialize(t *testing.T) {
	p, err := Materialize([]*BlockData{{Type: "discord_kick_member", Fields: map[string]block.Literal{"REASON": block.StringValue("spam")}}})
	must(t, err)
	if p.Kind(0) != block.Unknown || p.Type(0) != "discord_kick_member" {
		t.Errorf("got kind %v type %q", p.Kind(0), p.Type(0))
	}
	if v, _ := p.Field(0, "REASON"); v.Text() != "spam" {
		t.Errorf("field lost: %v", v)
	}
}

func TestBuiltins(t *testing.T) {
	lib := NewLibrary()
	var ids []string
	for _, tmpl := range lib.All() {
		ids = append(ids, tmpl.ID)
	}
	want := []string{"level-bot", "moderation-bot", "music-bot", "poll-bot", "welcome-bot"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("built-in ids (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"fun", "moderation", "music", "utility", "welcome"}, lib.Categories()); diff != "" {
		t.Errorf("categories (-want +got):\n%s", diff)
	}

	for _, id := range want {
		prog, err := lib.Apply(id)
		must(t, err)
		for _, lang := range config.Languages() {
			res, err := codegen.NewGenerator(nil).Generate(prog, lang)
			must(t, err)
			if len(res.Diagnostics) != 0 {
				t.Errorf("%s/%s: unexpected diagnostics %v", id, lang, res.Diagnostics)
			}
		}
	}
}

func TestApplyWelcomeBot(t *testing.T) {
	prog, err := NewLibrary().Apply("welcome-bot")
	must(t, err)
	res, err := codegen.NewGenerator(nil).Generate(prog, config.JavaScript)
	must(t, err)
	for _, want := range []string{`client.on("guildMemberAdd", async (member) => {`, `"Welcome, {user}!"`} {
		if !strings.Contains(res.Source, want) {
			t.Errorf("output lacks %q:\n%s", want, res.Source)
		}
	}
}

func TestGetUnknownTemplate(t *testing.T) {
	_, err := NewLibrary().Get("nope")
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("got %v, want ErrTemplateNotFound", err)
	}
	if _, err := NewLibrary().Apply("nope"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("Apply: got %v", err)
	}
}

func TestTemplatesAreCopies(t *testing.T) {
	lib := NewLibrary()
	tmpl, err := lib.Get("music-bot")
	must(t, err)
	tmpl.Name = "changed"
	tmpl.Blocks[0].Fields["COMMAND"] = block.StringValue("!stop")

	again, err := lib.Get("music-bot")
	must(t, err)
	if again.Name != "Music Bot" || again.Blocks[0].Fields["COMMAND"].Text() != "!play" {
		t.Errorf("library template was mutated: %+v", again)
	}
}

func TestSearch(t *testing.T) {
	lib := NewLibrary()
	ids := func(ts []*Template) []string {
		var out []string
		for _, t := range ts {
			out = append(out, t.ID)
		}
		return out
	}
	if diff := cmp.Diff([]string{"music-bot"}, ids(lib.Search("MUSIC"))); diff != "" {
		t.Errorf("Search(MUSIC) (-want +got):\n%s", diff)
	}
	if got := len(lib.Search("")); got != 5 {
		t.Errorf("Search(\"\") = %d templates, want 5", got)
	}
	if got := lib.Search("no such thing"); len(got) != 0 {
		t.Errorf("unexpected matches %v", ids(got))
	}
}

func TestSaveExportImport(t *testing.T) {
	lib := NewLibrary()
	id, err := lib.Save("My  Cool\tBot", "demo", config.Python, sampleProgram(t))
	must(t, err)
	if id != "my-cool-bot" {
		t.Fatalf("id = %q", id)
	}

	data, err := lib.Export(id)
	must(t, err)
	if !strings.Contains(string(data), "\n  \"name\": \"My  Cool\\tBot\"") {
		t.Errorf("export is not indented JSON:\n%s", data)
	}

	other := NewLibrary()
	got, err := other.Import(data)
	must(t, err)
	if got != id {
		t.Errorf("imported id = %q, want %q", got, id)
	}
	a, _ := lib.Get(id)
	b, _ := other.Get(id)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("imported template differs (-saved +imported):\n%s", diff)
	}
}

func TestImportRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"missing name":   `{"description": "x", "blocks": []}`,
		"missing blocks": `{"name": "x"}`,
		"bad language":   `{"name": "x", "language": "cobol", "blocks": []}`,
		"untyped block":  `{"name": "x", "blocks": [{"fields": {}}]}`,
		"untyped child":  `{"name": "x", "blocks": [{"type": "discord_trigger", "children": {"ACTIONS": [{"type": ""}]}}]}`,
		"blank name":     `{"name": "   ", "blocks": []}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			lib := NewLibrary()
			before := lib.All()
			_, err := lib.Import([]byte(data))
			if !errors.Is(err, ErrInvalidTemplate) {
				t.Fatalf("got %v, want ErrInvalidTemplate", err)
			}
			if diff := cmp.Diff(before, lib.All()); diff != "" {
				t.Errorf("library changed (-before +after):\n%s", diff)
			}
		})
	}
}

func TestImportAcceptsEmptyProgram(t *testing.T) {
	lib := NewLibrary()
	id, err := lib.Import([]byte(`{"name": "Blank", "description": "", "language": "typescript", "blocks": []}`))
	must(t, err)
	tmpl, _ := lib.Get(id)
	if lang, _ := tmpl.Lang(); lang != config.TypeScript {
		t.Errorf("language = %v", lang)
	}
}

func TestDefaultProgram(t *testing.T) {
	res, err := codegen.NewGenerator(nil).Generate(DefaultProgram(), config.JavaScript)
	must(t, err)
	if !strings.Contains(res.Source, `await message.channel.send("Hello World!");`) {
		t.Errorf("default program output:\n%s", res.Source)
	}
}

func TestStoreWriteThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.db")
	store, err := OpenStore(path)
	must(t, err)
	defer store.Close()

	lib := NewLibrary()
	must(t, lib.Attach(store))
	id, err := lib.Save("Ping Bot", "replies to ping", config.JavaScript, sampleProgram(t))
	must(t, err)

	saved, err := lib.Get(id)
	must(t, err)
	wrote, err := store.Put(id, saved)
	must(t, err)
	if wrote {
		t.Errorf("unchanged template was rewritten")
	}
	saved.Description = "edited"
	wrote, err = store.Put(id, saved)
	must(t, err)
	if !wrote {
		t.Errorf("changed template was not written")
	}

	reopened, err := OpenStore(path)
	must(t, err)
	defer reopened.Close()
	fresh := NewLibrary()
	must(t, fresh.Attach(reopened))
	got, err := fresh.Get(id)
	must(t, err)
	if got.Description != "edited" || got.Name != "Ping Bot" {
		t.Errorf("stored template = %+v", got)
	}
	if diff := cmp.Diff(Encode(sampleProgram(t)), got.Blocks); diff != "" {
		t.Errorf("stored blocks differ (-want +got):\n%s", diff)
	}

	must(t, store.Delete(id))
	if _, err := store.Get(id); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("Get after Delete: %v", err)
	}
}
