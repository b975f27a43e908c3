package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type opts struct {
	out, lang, store string
	imports          []string
	list             bool
	level            int
}

func newTestSet(o *opts) *FlagSet {
	fs := NewFlagSet("botgen")
	fs.String(&o.out, "output", "o", "", "Output file.", "file")
	fs.String(&o.lang, "language", "l", "javascript", "Target language.", "lang")
	fs.String(&o.store, "store", "", "", "Template database.", "path")
	fs.List(&o.imports, "import", "i", []string{}, "Import a template.", "file")
	fs.Bool(&o.list, "list", "", false, "List templates.")
	fs.Int(&o.level, "verbose", "v", 0, "Log verbosity.", "level")
	fs.Env("store", "BOTBLOCKS_STORE")
	return fs
}

func TestParse(t *testing.T) {
	var o opts
	fs := newTestSet(&o)
	args := []string{"-obot.py", "--language=python", "-i", "a.json", "--import", "b.json", "--list", "-v2", "prog.json", "--", "-x"}
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	want := opts{out: "bot.py", lang: "python", imports: []string{"a.json", "b.json"}, list: true, level: 2}
	if diff := cmp.Diff(want, o, cmp.AllowUnexported(opts{})); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"prog.json", "-x"}, fs.Args()); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
	if !fs.Changed("language") || fs.Changed("store") {
		t.Error("Changed does not track the command line")
	}
}

func TestParseErrors(t *testing.T) {
	for _, args := range [][]string{{"--nope"}, {"-o"}, {"-v", "many"}, {"--list=maybe"}, {"--=x"}} {
		var o opts
		if err := newTestSet(&o).Parse(args); err == nil {
			t.Errorf("Parse(%q) succeeded", args)
		}
	}
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("BOTBLOCKS_STORE", "/tmp/templates.db")

	var o opts
	fs := newTestSet(&o)
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}
	if o.store != "/tmp/templates.db" || !fs.Changed("store") {
		t.Errorf("store = %q", o.store)
	}

	o = opts{}
	fs = newTestSet(&o)
	if err := fs.Parse([]string{"--store", "local.db"}); err != nil {
		t.Fatal(err)
	}
	if o.store != "local.db" {
		t.Errorf("command line must win over the environment, got %q", o.store)
	}
}

func TestFlagGroupSwitches(t *testing.T) {
	var on, off bool
	fs := NewFlagSet("botgen")
	fs.AddFlagGroup("Warning Flags", "", "warning", "Available Warnings:", []FlagGroupEntry{
		{Name: "unattached", Prefix: "W", Usage: "Top-level blocks outside a handler.", Enabled: &on, Disabled: &off},
	})
	if err := fs.Parse([]string{"-Wno-unattached"}); err != nil {
		t.Fatal(err)
	}
	if on || !off {
		t.Errorf("on=%v off=%v", on, off)
	}
}

func TestHelp(t *testing.T) {
	var o opts
	app := NewApp("botgen")
	app.Synopsis = "[options] [program.json]"
	app.Description = "Generate a Discord bot."
	app.Examples = []string{"botgen -t welcome-bot"}
	app.Width = 100
	app.FlagSet = newTestSet(&o)
	var on, off bool
	app.FlagSet.AddFlagGroup("Feature Flags", "", "feature", "Available Features:", []FlagGroupEntry{
		{Name: "env-token", Prefix: "F", Usage: "Read the token from the environment.", Enabled: &on, Disabled: &off},
	})
	var stdout bytes.Buffer
	app.Stdout = &stdout
	if err := app.Run([]string{"--help"}); err != nil {
		t.Fatal(err)
	}
	help := stdout.String()
	for _, want := range []string{
		"Synopsis", "botgen [options] [program.json]",
		"-o, --output <file>", "|javascript|", "[$BOTBLOCKS_STORE]",
		"-F<feature>", "-Fno-<feature>", "env-token",
		"Examples", "botgen -t welcome-bot",
	} {
		if !strings.Contains(help, want) {
			t.Errorf("help lacks %q:\n%s", want, help)
		}
	}
	if strings.Contains(help, "--Fenv-token") {
		t.Error("group switches listed as options")
	}
}

func TestRunReportsFlagErrors(t *testing.T) {
	app := NewApp("botgen")
	app.Synopsis = "[options]"
	called := false
	app.Action = func([]string) error { called = true; return nil }
	var stderr bytes.Buffer
	app.Stderr = &stderr
	if err := app.Run([]string{"--bogus"}); err == nil {
		t.Fatal("unknown flag accepted")
	}
	if called || !strings.Contains(stderr.String(), "Usage: botgen [options]") {
		t.Errorf("called=%v stderr=%q", called, stderr.String())
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("read the bot token from the environment", 16)
	want := []string{"read the bot", "token from the", "environment"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if wrapText("   ", 10) != nil {
		t.Error("blank text wrapped to lines")
	}
}
