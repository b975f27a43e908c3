// Package format tidies and checks generated bot sources.
package format

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xplshn/botblocks/pkg/config"
)

const defaultIndent = 4

var blankRun = regexp.MustCompile(`\n\s*\n\s*\n`)

// Format re-indents code for lang with width spaces per level; a width of zero
// or less means 4. JavaScript and TypeScript are re-indented from their
// brackets; Python only has tabs expanded and runs of blank lines collapsed,
// since its indentation carries meaning.
func Format(code string, lang config.Language, width int) string {
	if width <= 0 {
		width = defaultIndent
	}
	unit := strings.Repeat(" ", width)
	switch lang {
	case config.JavaScript, config.TypeScript:
		return bracketIndent(code, unit)
	case config.Python:
		code = strings.ReplaceAll(code, "\t", unit)
		return blankRun.ReplaceAllString(code, "\n\n")
	}
	return code
}

func bracketIndent(code, unit string) string {
	lines := strings.Split(code, "\n")
	level := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			lines[i] = ""
			continue
		}
		if strings.ContainsAny(trimmed[:1], "}])") {
			level = max(0, level-1)
		}
		lines[i] = strings.Repeat(unit, level) + trimmed
		if strings.ContainsAny(trimmed[len(trimmed)-1:], "{[(") {
			level++
		}
	}
	return strings.Join(lines, "\n")
}

// Problem is one missing piece found by Validate.
type Problem struct {
	Want    string
	Message string
}

func (p Problem) Error() string { return p.Message }

// Validate runs the coarse sanity checks that a generated file can start a bot:
// it must import the Discord library and log in.
func Validate(code string, lang config.Language) []Problem {
	var probs []Problem
	need := func(msg string, needles ...string) {
		for _, s := range needles {
			if strings.Contains(code, s) {
				return
			}
		}
		probs = append(probs, Problem{Want: needles[0], Message: msg})
	}

	switch lang {
	case config.JavaScript, config.TypeScript:
		need("the bot never logs in", "client.login")
		need("discord.js is not imported", `require("discord.js")`, `require('discord.js')`, `from "discord.js"`, `from 'discord.js'`)
	case config.Python:
		need("the bot is never run", "bot.run")
		need("discord.py is not imported", "import discord")
	default:
		probs = append(probs, Problem{Message: fmt.Sprintf("cannot validate %s", lang)})
	}
	return probs
}
