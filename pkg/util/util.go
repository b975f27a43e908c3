package util

import (
	"fmt"
	"io"
	"os"

	"github.com/xplshn/botblocks/pkg/codegen"
	"github.com/xplshn/botblocks/pkg/config"
)

var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// Location points at a block inside an input program file.
type Location struct {
	File  string
	Block int // arena index, -1 for the whole file
	Type  string
}

// FileLocation refers to a whole input file.
func FileLocation(file string) Location { return Location{File: file, Block: -1} }

func (l Location) String() string {
	name := l.File
	if name == "" {
		name = "botgen"
	}
	if l.Block < 0 {
		return name
	}
	if l.Type != "" {
		return fmt.Sprintf("%s: block #%d (%s)", name, l.Block, l.Type)
	}
	return fmt.Sprintf("%s: block #%d", name, l.Block)
}

// Error prints a formatted error message and exits the program
func Error(loc Location, format string, args ...any) {
	fmt.Fprintf(stderr, "%s: \033[31merror:\033[0m ", loc)
	fmt.Fprintf(stderr, format, args...)
	fmt.Fprintln(stderr)
	exit(1)
}

// Warn prints a formatted warning message if the corresponding warning is enabled
func Warn(cfg *config.Config, wt config.Warning, loc Location, format string, args ...any) {
	if !cfg.IsWarningEnabled(wt) {
		return
	}
	fmt.Fprintf(stderr, "%s: \033[33mwarning:\033[0m ", loc)
	fmt.Fprintf(stderr, format, args...)
	fmt.Fprintf(stderr, " [-W%s]\n", cfg.WarningName(wt))
}

// Report prints the diagnostics of one generation run against its input file.
func Report(cfg *config.Config, file string, diags []codegen.Diagnostic) {
	for _, d := range diags {
		loc := Location{File: file, Block: int(d.Block), Type: d.Type}
		Warn(cfg, d.Warning, loc, "%s", d.Message)
	}
}
