package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xplshn/botblocks/pkg/config"
)

const helloProgram = `[{"type": "discord_trigger", "fields": {"TRIGGER_TYPE": "messageCreate"},
  "children": {"ACTIONS": [{"type": "discord_send_message", "values": {"MESSAGE": {"type": "text", "fields": {"TEXT": "hi"}}}}]}}]`

func setFlag(t *testing.T, p *bool, v bool) {
	t.Helper()
	old := *p
	*p = v
	t.Cleanup(func() { *p = old })
}

func TestGoldenLifecycle(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "hello.json")
	if err := os.WriteFile(file, []byte(helloProgram), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.NewConfig()
	langs := config.Languages()
	hash, err := hashFile(file)
	if err != nil {
		t.Fatal(err)
	}

	if r := testFile(file, hash, cfg, langs, nil); r.Status != "SKIP" {
		t.Fatalf("without golden file: %s %s", r.Status, r.Message)
	}

	setFlag(t, update, true)
	if r := testFile(file, hash, cfg, langs, nil); r.Status != "PASS" {
		t.Fatalf("update: %s %s", r.Status, r.Message)
	}
	*update = false

	first := testFile(file, hash, cfg, langs, nil)
	if first.Status != "PASS" {
		t.Fatalf("against fresh golden file: %s %s\n%s", first.Status, first.Message, first.Diff)
	}

	golden := getJSONPath(file)
	data, err := os.ReadFile(golden)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(golden, []byte(strings.Replace(string(data), `\"hi\"`, `\"bye\"`, 1)), 0o644); err != nil {
		t.Fatal(err)
	}
	r := testFile(file, hash, cfg, langs, nil)
	if r.Status != "FAIL" || !strings.Contains(r.Diff, "bye") {
		t.Fatalf("edited golden file: %s %s\n%s", r.Status, r.Message, r.Diff)
	}

	setFlag(t, useCache, true)
	if r := testFile(file, hash, cfg, langs, first); r.Status != "FAIL" {
		t.Errorf("cache must not hide a changed golden file: %s", r.Message)
	}
}

func TestSuiteSkipsDuplicates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.json", "b.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(helloProgram), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"name": "x"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := expandGlobPatterns(filepath.Join(dir, "*.json"))
	if err != nil {
		t.Fatal(err)
	}
	results := runSuite(files, config.NewConfig(), config.Languages(), nil)
	status := make(map[string]string)
	for _, r := range results {
		status[filepath.Base(r.File)] = r.Status
	}
	if status["a.json"] != "SKIP" || status["b.json"] != "SKIP" || status["broken.json"] != "ERROR" {
		t.Errorf("statuses = %v", status)
	}
	for _, r := range results {
		if filepath.Base(r.File) == "b.json" && !strings.Contains(r.Message, "identical") {
			t.Errorf("b.json: %s", r.Message)
		}
	}
}

func TestParseLanguages(t *testing.T) {
	got, err := parseLanguages("js py")
	if err != nil || len(got) != 2 || got[0] != config.JavaScript || got[1] != config.Python {
		t.Errorf("got %v, %v", got, err)
	}
	if _, err := parseLanguages("cobol"); err == nil {
		t.Error("cobol accepted")
	}
	if _, err := parseLanguages(""); err == nil {
		t.Error("empty list accepted")
	}
}

func TestCommittedGoldenFiles(t *testing.T) {
	files, err := expandGlobPatterns("../../testdata/*.json")
	if err != nil {
		t.Fatal(err)
	}
	checked := 0
	for _, file := range files {
		if _, err := os.Stat(getJSONPath(file)); err != nil {
			continue
		}
		hash, err := hashFile(file)
		if err != nil {
			t.Fatal(err)
		}
		if r := testFile(file, hash, config.NewConfig(), config.Languages(), nil); r.Status != "PASS" {
			t.Errorf("%s: %s %s\n%s", file, r.Status, r.Message, r.Diff)
		}
		checked++
	}
	if checked == 0 {
		t.Fatal("no golden files committed under testdata")
	}
}

// Every program under testdata must round-trip through -update.
func TestTestdataGoldensRegenerate(t *testing.T) {
	files, err := expandGlobPatterns("../../testdata/*.json")
	if err != nil {
		t.Fatal(err)
	}
	old := *jsonDir
	*jsonDir = t.TempDir()
	t.Cleanup(func() { *jsonDir = old })

	for _, file := range files {
		hash, err := hashFile(file)
		if err != nil {
			t.Fatal(err)
		}
		setFlag(t, update, true)
		if r := testFile(file, hash, config.NewConfig(), config.Languages(), nil); r.Status != "PASS" {
			t.Fatalf("%s update: %s %s", file, r.Status, r.Message)
		}
		*update = false
		if r := testFile(file, hash, config.NewConfig(), config.Languages(), nil); r.Status != "PASS" {
			t.Errorf("%s: %s %s\n%s", file, r.Status, r.Message, r.Diff)
		}
	}
}
