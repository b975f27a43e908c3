package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"github.com/xplshn/botblocks/pkg/block"
	"github.com/xplshn/botblocks/pkg/cli"
	"github.com/xplshn/botblocks/pkg/codegen"
	"github.com/xplshn/botblocks/pkg/config"
	"github.com/xplshn/botblocks/pkg/format"
	"github.com/xplshn/botblocks/pkg/template"
	"github.com/xplshn/botblocks/pkg/util"
)

func logger() commonlog.Logger { return commonlog.GetLogger("botblocks.botgen") }

func main() {
	app := cli.NewApp("botgen")
	app.Synopsis = "[options] [program.json]"
	app.Description = "Generate a runnable Discord bot from a block program. Reads a template or a list of blocks as JSON, or starts from a built-in template."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/botblocks>"
	app.Examples = []string{
		"botgen -t welcome-bot -l python -o bot.py",
		"botgen --store templates.db --save 'Ping Bot' ping.json",
		"botgen -Wno-unattached -Fenv-token -f --check program.json",
	}

	var (
		outFile     string
		langName    string
		projectFile string
		templateID  string
		storePath   string
		saveName    string
		saveDesc    string
		exportID    string
		readmeFile  string
		search      string
		imports     []string
		list        bool
		doFormat    bool
		check       bool
		verbosity   int
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Write the bot to <file> ('-' for stdout). Defaults to discord-bot.<ext>.", "file")
	fs.String(&langName, "language", "l", "", "Target language: javascript, typescript or python.", "lang")
	fs.String(&projectFile, "config", "c", "", "Read settings from a TOML project file. Defaults to ./"+config.DefaultFile+" when present.", "file")
	fs.String(&templateID, "template", "t", "", "Start from the template <id> instead of an input file.", "id")
	fs.String(&storePath, "store", "", "", "Keep saved and imported templates in the SQLite database at <path>.", "path")
	fs.String(&saveName, "save", "", "", "Save the input program as a template called <name>.", "name")
	fs.String(&saveDesc, "description", "", "", "Description for --save.", "text")
	fs.String(&exportID, "export", "", "", "Print the template <id> as JSON and exit.", "id")
	fs.String(&readmeFile, "readme", "", "", "Also write setup instructions to <file>.", "file")
	fs.String(&search, "search", "", "", "List the templates matching <query> and exit.", "query")
	fs.List(&imports, "import", "i", []string{}, "Import a template from a JSON file.", "file")
	fs.Bool(&list, "list", "", false, "List the available templates and exit.")
	fs.Bool(&doFormat, "format", "f", false, "Re-indent the generated code.")
	fs.Bool(&check, "check", "", false, "Check that the generated code imports the Discord library and starts the bot.")
	fs.Int(&verbosity, "verbose", "v", 0, "Log verbosity (0-4).", "level")
	fs.Env("store", "BOTBLOCKS_STORE")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		commonlog.Configure(verbosity, nil)

		if projectFile == "" {
			if _, err := os.Stat(config.DefaultFile); err == nil {
				projectFile = config.DefaultFile
			}
		}
		if projectFile != "" {
			if err := cfg.LoadFile(projectFile); err != nil {
				util.Error(util.FileLocation(projectFile), "%v", err)
			}
			logger().Infof("loaded settings from %s", projectFile)
		}
		cfg.ApplyFlagGroups(warningFlags, featureFlags)

		lib := template.NewLibrary()
		if storePath != "" {
			store, err := template.OpenStore(storePath)
			if err != nil {
				util.Error(util.FileLocation(storePath), "%v", err)
			}
			defer store.Close()
			if err := lib.Attach(store); err != nil {
				util.Error(util.FileLocation(storePath), "%v", err)
			}
		}

		for _, path := range imports {
			data, err := os.ReadFile(path)
			if err != nil {
				util.Error(util.FileLocation(path), "%v", err)
			}
			id, err := lib.Import(data)
			if err != nil {
				util.Error(util.FileLocation(path), "import failed: %v", err)
			}
			fmt.Printf("Imported template '%s'\n", id)
		}

		switch {
		case list || search != "":
			printTemplates(os.Stdout, lib.Search(search))
			return nil
		case exportID != "":
			data, err := lib.Export(exportID)
			if err != nil {
				util.Error(util.FileLocation(exportID), "%v", err)
			}
			fmt.Println(string(data))
			return nil
		}

		if len(args) > 1 {
			util.Error(util.FileLocation(args[1]), "only one input program is accepted")
		}
		if len(args) == 0 && templateID == "" && len(imports) > 0 && saveName == "" {
			return nil
		}

		input, prog, tmplLang := loadProgram(lib, args, templateID)

		lang := cfg.Language
		if tmplLang != nil {
			lang = *tmplLang
		}
		if fs.Changed("language") {
			l, err := config.ParseLanguage(langName)
			if err != nil {
				util.Error(util.FileLocation(input), "%v", err)
			}
			lang = l
		}

		if saveName != "" {
			id, err := lib.Save(saveName, saveDesc, lang, prog)
			if err != nil {
				util.Error(util.FileLocation(input), "save failed: %v", err)
			}
			fmt.Printf("Saved template '%s'\n", id)
		}

		res, err := codegen.NewGenerator(cfg).Generate(prog, lang)
		if err != nil {
			util.Error(util.FileLocation(input), "%v", err)
		}
		util.Report(cfg, input, res.Diagnostics)

		src := res.Source
		if doFormat {
			src = format.Format(src, lang, cfg.IndentWidth)
		}
		if check {
			for _, p := range format.Validate(src, lang) {
				util.Error(util.FileLocation(input), "generated code failed check: %s", p)
			}
		}

		if outFile == "" {
			outFile = "discord-bot." + lang.Extension()
		}
		if err := writeOutput(outFile, src); err != nil {
			util.Error(util.FileLocation(outFile), "%v", err)
		}
		if readmeFile != "" {
			readme := format.Readme(src, lang, botName(input), time.Now().Format("2006-01-02"))
			if err := writeOutput(readmeFile, readme); err != nil {
				util.Error(util.FileLocation(readmeFile), "%v", err)
			}
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// loadProgram resolves the program to generate from: an input file, a
// template, or the default program when neither is given.
func loadProgram(lib *template.Library, args []string, templateID string) (string, *block.Program, *config.Language) {
	if len(args) == 1 {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			util.Error(util.FileLocation(path), "could not read file: %v", err)
		}
		prog, lang, err := decodeProgram(data)
		if err != nil {
			util.Error(util.FileLocation(path), "%v", err)
		}
		return path, prog, lang
	}
	if templateID != "" {
		tmpl, err := lib.Get(templateID)
		if err != nil {
			util.Error(util.FileLocation(templateID), "%v", err)
		}
		prog, err := lib.Apply(templateID)
		if err != nil {
			util.Error(util.FileLocation(templateID), "%v", err)
		}
		lang, err := tmpl.Lang()
		if err != nil {
			util.Error(util.FileLocation(templateID), "%v", err)
		}
		return templateID, prog, &lang
	}
	logger().Noticef("no input given, using the default program")
	return "default", template.DefaultProgram(), nil
}

// decodeProgram accepts either a whole template object or a bare list of blocks.
// The language is nil unless the input names one.
func decodeProgram(data []byte) (*block.Program, *config.Language, error) {
	tmpl, err := template.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	prog, err := template.Materialize(tmpl.Blocks)
	if err != nil {
		return nil, nil, err
	}
	if tmpl.Language == "" {
		return prog, nil, nil
	}
	lang, err := tmpl.Lang()
	if err != nil {
		return nil, nil, err
	}
	return prog, &lang, nil
}

// writeOutput writes data to path unless the file already holds the same bytes.
func writeOutput(path, data string) error {
	if path == "-" {
		_, err := io.WriteString(os.Stdout, data)
		return err
	}
	if old, err := os.ReadFile(path); err == nil && xxhash.Sum64(old) == xxhash.Sum64String(data) {
		logger().Infof("%s is up to date", path)
		return nil
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("could not write output: %w", err)
	}
	fmt.Printf("Wrote '%s'\n", path)
	return nil
}

func printTemplates(w io.Writer, ts []*template.Template) {
	for _, t := range ts {
		fmt.Fprintf(w, "  %-18s %-12s %-11s %s\n", t.ID, t.Category, t.Language, t.Description)
	}
}

func botName(input string) string {
	switch input {
	case "", "default", "-":
		return ""
	}
	return strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
}
