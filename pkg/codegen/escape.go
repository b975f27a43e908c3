package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// quote renders s as a double-quoted literal. Backslash, quote, newline,
// carriage return and tab use their short escapes; other C0 controls use \xNN.
// lineSeps also escapes U+2028 and U+2029, which end a line in JavaScript.
func quote(s string, lineSeps bool) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\u2028', '\u2029':
			if lineSeps {
				fmt.Fprintf(&sb, `\u%04x`, r)
			} else {
				sb.WriteRune(r)
			}
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&sb, `\x%02x`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// formatFloat spells f as a numeric literal; negative values are parenthesised.
func formatFloat(f float64, nan, inf string) string {
	switch {
	case math.IsNaN(f):
		return nan
	case math.IsInf(f, 1):
		return inf
	case math.IsInf(f, -1):
		return "(-" + inf + ")"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if f < 0 {
		return "(" + s + ")"
	}
	return s
}

// sanitize turns a user-chosen variable name into an identifier: NFC
// normalised, letters/digits/underscore only, never starting with a digit,
// and suffixed with '_' when it collides with a reserved word.
func sanitize(name string, reserved map[string]bool) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	var sb strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
			sb.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	out := sb.String()
	if out == "" {
		out = "_"
	}
	if reserved[out] || scaffoldName(out) {
		out += "_"
	}
	return out
}

// scaffoldName reports names the generator numbers on its own for nested
// embeds and loop counters, e.g. "embed2" or "i3".
func scaffoldName(name string) bool {
	for _, prefix := range [...]string{"embed", "i"} {
		digits, ok := strings.CutPrefix(name, prefix)
		if ok && digits != "" && strings.Trim(digits, "0123456789") == "" {
			return true
		}
	}
	return false
}

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// snakeCase converts camelCase event names, e.g. "threadCreate" -> "thread_create".
func snakeCase(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		if r == '-' || r == ' ' {
			sb.WriteByte('_')
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func joinParams(params []string) string { return strings.Join(params, ", ") }
