package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"
)

const indentUnit = 4

func pad(level int) string { return strings.Repeat(" ", indentUnit*level) }

type Value interface {
	String() string
	Set(string) error
	Get() any
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }
func (v *stringValue) Get() any           { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }
func (v *boolValue) Get() any       { return *v.p }

type intValue struct{ p *int }

func (v *intValue) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer value '%s': %w", s, err)
	}
	*v.p = n
	return nil
}
func (v *intValue) String() string { return strconv.Itoa(*v.p) }
func (v *intValue) Get() any       { return *v.p }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }
func (v *listValue) Get() any           { return *v.p }

type Flag struct {
	Name         string
	Shorthand    string
	Usage        string
	Value        Value
	DefValue     string
	ExpectedType string
	// Env names an environment variable read when the flag is absent from the command line.
	Env     string
	changed bool
}

type FlagGroup struct {
	Name                 string
	Description          string
	Flags                []FlagGroupEntry
	GroupType            string
	AvailableFlagsHeader string
}

// FlagGroupEntry describes a switch pair such as -W<name> / -Wno-<name>.
type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Enabled  *bool
	Disabled *bool
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	args       []string
	flagGroups []FlagGroup
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

// Changed reports whether the flag was given on the command line or through its environment variable.
func (f *FlagSet) Changed(name string) bool {
	flag, ok := f.flags[name]
	return ok && flag.changed
}

// Env binds a registered flag to an environment variable.
func (f *FlagSet) Env(name, variable string) {
	flag, ok := f.flags[name]
	if !ok {
		panic(fmt.Sprintf("env bound to unknown flag: %s", name))
	}
	flag.Env = variable
}

func (f *FlagSet) String(p *string, name, shorthand, value, usage, expectedType string) {
	*p = value
	f.Var(&stringValue{p}, name, shorthand, usage, value, expectedType)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

func (f *FlagSet) Int(p *int, name, shorthand string, value int, usage, expectedType string) {
	*p = value
	f.Var(&intValue{p}, name, shorthand, usage, strconv.Itoa(value), expectedType)
}

func (f *FlagSet) List(p *[]string, name, shorthand string, value []string, usage, expectedType string) {
	*p = value
	f.Var(&listValue{p}, name, shorthand, usage, "", expectedType)
}

func (f *FlagSet) AddFlagGroup(name, description, groupType, availableFlagsHeader string, entries []FlagGroupEntry) {
	for i := range entries {
		e := &entries[i]
		if e.Enabled != nil {
			f.Bool(e.Enabled, e.Prefix+e.Name, "", *e.Enabled, e.Usage)
		}
		if e.Disabled != nil {
			f.Bool(e.Disabled, e.Prefix+"no-"+e.Name, "", *e.Disabled, "Disable '"+e.Name+"'")
		}
	}
	f.flagGroups = append(f.flagGroups, FlagGroup{
		Name:                 name,
		Description:          description,
		Flags:                entries,
		GroupType:            groupType,
		AvailableFlagsHeader: availableFlagsHeader,
	})
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, expectedType string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	flag := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, ExpectedType: expectedType}
	f.flags[name] = flag
	if shorthand != "" {
		if _, ok := f.shorthands[shorthand]; ok {
			panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
		}
		f.shorthands[shorthand] = flag
	}
}

func isBoolFlag(flag *Flag) bool {
	_, ok := flag.Value.(*boolValue)
	return ok
}

// Parse accepts --name[=value], -name[=value] for group switches, and -x[value] shorthands.
func (f *FlagSet) Parse(arguments []string) error {
	f.args = []string{}
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		if len(arg) < 2 || arg[0] != '-' {
			f.args = append(f.args, arg)
			continue
		}
		if arg == "--" {
			f.args = append(f.args, arguments[i+1:]...)
			break
		}

		long := strings.HasPrefix(arg, "--")
		body := strings.TrimLeft(arg, "-")
		name, value, hasValue := strings.Cut(body, "=")
		if name == "" {
			return fmt.Errorf("empty flag name")
		}

		flag, ok := f.flags[name]
		if !ok && !long {
			flag, ok = f.shorthands[name[:1]]
			if ok && !isBoolFlag(flag) && len(name) > 1 {
				value, hasValue = body[1:], true
			}
		}
		if !ok {
			return fmt.Errorf("unknown flag: %s", arg)
		}

		switch {
		case hasValue:
		case isBoolFlag(flag):
			value = ""
		case i+1 < len(arguments):
			i++
			value = arguments[i]
		default:
			return fmt.Errorf("flag needs an argument: %s", arg)
		}
		if err := flag.Value.Set(value); err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
		flag.changed = true
	}
	return f.applyEnv()
}

func (f *FlagSet) applyEnv() error {
	for _, flag := range f.flags {
		if flag.Env == "" || flag.changed {
			continue
		}
		value, ok := os.LookupEnv(flag.Env)
		if !ok {
			continue
		}
		if err := flag.Value.Set(value); err != nil {
			return fmt.Errorf("$%s: %w", flag.Env, err)
		}
		flag.changed = true
	}
	return nil
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	// Examples are shown verbatim, one per line, at the end of the help page.
	Examples []string
	// Width fixes the help page width. Zero means the terminal width.
	Width   int
	FlagSet *FlagSet
	Action  func(args []string) error
	Stdout  io.Writer
	Stderr  io.Writer
}

func NewApp(name string) *App {
	return &App{
		Name:    name,
		FlagSet: NewFlagSet(name),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(a.Stderr, err)
		fmt.Fprint(a.Stderr, a.Usage())
		return err
	}
	if help {
		fmt.Fprint(a.Stdout, a.Help())
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

// Usage renders the short usage page printed on flag errors.
func (a *App) Usage() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, a.Synopsis)
	fmt.Fprintf(&sb, "\nRun '%s --help' for all available options and flags.\n", a.Name)
	return sb.String()
}

// Help renders the full help page, including flag groups.
func (a *App) Help() string {
	var sb strings.Builder
	width := a.Width
	if width == 0 {
		width = terminalWidth()
	}
	options := a.optionFlags()

	left := 0
	for _, flag := range options {
		left = max(left, len(formatFlag(flag)))
	}
	for _, group := range a.FlagSet.flagGroups {
		for _, e := range group.Flags {
			left = max(left, len(e.Name))
		}
		if len(group.Flags) > 0 {
			left = max(left, len(fmt.Sprintf("-%sno-<%s>", group.Flags[0].Prefix, group.GroupType)))
		}
	}

	if len(a.Authors) > 0 {
		fmt.Fprintf(&sb, "\n%s%s by %s\n", pad(1), a.Name, strings.Join(a.Authors, ", "))
	}
	if a.Repository != "" {
		fmt.Fprintf(&sb, "%sFor more details refer to %s\n", pad(1), a.Repository)
	}
	if a.Synopsis != "" {
		fmt.Fprintf(&sb, "\n%sSynopsis\n%s%s %s\n", pad(1), pad(2), a.Name, a.Synopsis)
	}
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n%sDescription\n", pad(1))
		for _, line := range wrapText(a.Description, width-len(pad(2))) {
			fmt.Fprintf(&sb, "%s%s\n", pad(2), line)
		}
	}
	if len(options) > 0 {
		fmt.Fprintf(&sb, "\n%sOptions\n", pad(1))
		for _, flag := range options {
			right := ""
			if !isBoolFlag(flag) && flag.DefValue != "" {
				right = "|" + flag.DefValue + "|"
			}
			if flag.Env != "" {
				right += "[$" + flag.Env + "]"
			}
			writeEntry(&sb, width, left, formatFlag(flag), flag.Usage, right)
		}
	}

	groups := append([]FlagGroup(nil), a.FlagSet.flagGroups...)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	for _, group := range groups {
		if len(group.Flags) == 0 {
			continue
		}
		prefix := group.Flags[0].Prefix
		fmt.Fprintf(&sb, "\n%s%s\n", pad(1), group.Name)
		fmt.Fprintf(&sb, "%s%-*s Enable a specific %s\n", pad(2), left, fmt.Sprintf("-%s<%s>", prefix, group.GroupType), group.GroupType)
		fmt.Fprintf(&sb, "%s%-*s Disable a specific %s\n", pad(2), left, fmt.Sprintf("-%sno-<%s>", prefix, group.GroupType), group.GroupType)
		if group.AvailableFlagsHeader != "" {
			fmt.Fprintf(&sb, "%s%s\n", pad(1), group.AvailableFlagsHeader)
		}
		entries := append([]FlagGroupEntry(nil), group.Flags...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		for _, e := range entries {
			writeEntry(&sb, width, left, e.Name, e.Usage, "")
		}
	}
	if len(a.Examples) > 0 {
		fmt.Fprintf(&sb, "\n%sExamples\n", pad(1))
		for _, ex := range a.Examples {
			fmt.Fprintf(&sb, "%s%s\n", pad(2), ex)
		}
	}
	return sb.String()
}

func (a *App) optionFlags() []*Flag {
	var out []*Flag
	for _, flag := range a.FlagSet.flags {
		if a.isGroupFlag(flag.Name) {
			continue
		}
		out = append(out, flag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (a *App) isGroupFlag(name string) bool {
	for _, group := range a.FlagSet.flagGroups {
		for _, e := range group.Flags {
			if name == e.Prefix+e.Name || name == e.Prefix+"no-"+e.Name {
				return true
			}
		}
	}
	return false
}

func formatFlag(flag *Flag) string {
	var sb strings.Builder
	if flag.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s, ", flag.Shorthand)
	}
	fmt.Fprintf(&sb, "--%s", flag.Name)
	if !isBoolFlag(flag) && flag.ExpectedType != "" {
		fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
	}
	return sb.String()
}

func writeEntry(sb *strings.Builder, width, left int, name, usage, right string) {
	avail := width - len(pad(2)) - left - 1 - len(right) - 2
	if avail < 10 {
		avail = 10
	}
	lines := wrapText(usage, avail)
	if len(lines) == 0 {
		lines = []string{""}
	}
	if right != "" {
		fmt.Fprintf(sb, "%s%-*s %-*s  %s\n", pad(2), left, name, avail, lines[0], right)
	} else {
		fmt.Fprintf(sb, "%s%-*s %s\n", pad(2), left, name, lines[0])
	}
	for _, l := range lines[1:] {
		fmt.Fprintf(sb, "%s%s %s\n", pad(2), strings.Repeat(" ", left), l)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	if width < 20 {
		return 20
	}
	return width
}

func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxWidth <= 0 {
		return []string{strings.Join(words, " ")}
	}

	var lines []string
	var line strings.Builder
	for _, word := range words {
		if line.Len() > 0 && line.Len()+len(word)+1 > maxWidth {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
