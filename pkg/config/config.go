package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/xplshn/botblocks/pkg/cli"
)

type Feature int

const (
	FeatHandlerComments Feature = iota
	FeatEnvToken
	FeatReadyLog
	FeatCount
)

type Warning int

const (
	WarnUnknownBlock Warning = iota
	WarnUnattached
	WarnNoContext
	WarnUnknownOperator
	WarnUnknownEvent
	WarnMisplaced
	WarnDuration
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

// Language selects the emitter that handles a generation request.
type Language int

const (
	JavaScript Language = iota
	TypeScript
	Python
)

var ErrUnsupportedLanguage = errors.New("unsupported target language")

var languages = []struct {
	lang    Language
	name    string
	ext     string
	aliases []string
}{
	{JavaScript, "javascript", "js", []string{"js", "node"}},
	{TypeScript, "typescript", "ts", []string{"ts"}},
	{Python, "python", "py", []string{"py", "python3"}},
}

func (l Language) String() string {
	for _, e := range languages {
		if e.lang == l {
			return e.name
		}
	}
	return fmt.Sprintf("Language(%d)", int(l))
}

// Extension is the file extension used when saving generated source.
func (l Language) Extension() string {
	for _, e := range languages {
		if e.lang == l {
			return e.ext
		}
	}
	return "txt"
}

func (l Language) Valid() bool { return l >= JavaScript && l <= Python }

// ParseLanguage accepts canonical names and their short aliases, case-insensitively.
func ParseLanguage(s string) (Language, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, e := range languages {
		if s == e.name {
			return e.lang, nil
		}
		for _, a := range e.aliases {
			if s == a {
				return e.lang, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: '%s'. Supported: 'javascript', 'typescript', 'python'", ErrUnsupportedLanguage, s)
}

// Languages lists every supported language in declaration order.
func Languages() []Language {
	out := make([]Language, 0, len(languages))
	for _, e := range languages {
		out = append(out, e.lang)
	}
	return out
}

type Config struct {
	Features         map[Feature]Info
	Warnings         map[Warning]Info
	FeatureMap       map[string]Feature
	WarningMap       map[string]Warning
	Language         Language
	IndentWidth      int
	CommandPrefix    string
	TokenPlaceholder string
	TokenEnv         string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:         make(map[Feature]Info),
		Warnings:         make(map[Warning]Info),
		FeatureMap:       make(map[string]Feature),
		WarningMap:       make(map[string]Warning),
		Language:         JavaScript,
		IndentWidth:      4,
		CommandPrefix:    "!",
		TokenPlaceholder: "YOUR_BOT_TOKEN_HERE",
		TokenEnv:         "DISCORD_TOKEN",
	}

	features := map[Feature]Info{
		FeatHandlerComments: {"handler-comments", true, "Emit a comment line above every event handler and command gate."},
		FeatEnvToken:        {"env-token", false, "Read the bot token from the environment instead of a placeholder literal."},
		FeatReadyLog:        {"ready-log", true, "Log the bot user from the implicit ready handler."},
	}

	warnings := map[Warning]Info{
		WarnUnknownBlock:    {"unknown-block", true, "Warn when a block type has no emission rule."},
		WarnUnattached:      {"unattached", true, "Warn about top-level blocks that belong to no handler."},
		WarnNoContext:       {"no-context", true, "Warn when a block needs a message or channel the handler does not bind."},
		WarnUnknownOperator: {"unknown-operator", true, "Warn when an operator tag falls back to the language default."},
		WarnUnknownEvent:    {"unknown-event", true, "Warn when a trigger kind is not in the event table."},
		WarnMisplaced:       {"misplaced", true, "Warn about blocks used outside the construct they belong to."},
		WarnDuration:        {"duration", true, "Warn when a wait duration is negative, not a number or infinite."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// WarningName returns the flag name of a warning, e.g. "unknown-block".
func (c *Config) WarningName(wt Warning) string { return c.Warnings[wt].Name }

func (c *Config) applyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
	default:
		return fmt.Errorf("unrecognized flag '%s'", flag)
	}
	if isNo {
		name = strings.TrimPrefix(name, "no-")
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return nil
	}

	if isWarning {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, enable)
		return nil
	}
	f, ok := c.FeatureMap[name]
	if !ok {
		return fmt.Errorf("unknown feature '%s'", name)
	}
	c.SetFeature(f, enable)
	return nil
}

// ApplyFlags applies -W/-F style switches such as "-Wno-unattached" or "-Fenv-token".
// "-Wall"/"-Wno-all" are applied before the specific switches so they can be refined.
func (c *Config) ApplyFlags(flags []string) error {
	for _, f := range flags {
		if t := strings.TrimPrefix(f, "-"); t == "Wall" || t == "Wno-all" {
			if err := c.applyFlag(f); err != nil {
				return err
			}
		}
	}
	for _, f := range flags {
		if t := strings.TrimPrefix(f, "-"); t != "Wall" && t != "Wno-all" {
			if err := c.applyFlag(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetupFlagGroups registers -W<name>/-Wno-<name> and -F<name>/-Fno-<name> switches.
// The returned entries are indexed by Warning and Feature respectively.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	warningFlags := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		var enabled, disabled bool
		warningFlags[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "W", Usage: info.Description, Enabled: &enabled, Disabled: &disabled}
	}
	featureFlags := make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		var enabled, disabled bool
		featureFlags[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "F", Usage: info.Description, Enabled: &enabled, Disabled: &disabled}
	}
	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Enable or disable generator features", "feature", "Available Features:", featureFlags)
	return warningFlags, featureFlags
}

// ApplyFlagGroups applies the switches given explicitly on the command line.
// Entries left untouched keep whatever the defaults or the project file chose.
func (c *Config) ApplyFlagGroups(warningFlags, featureFlags []cli.FlagGroupEntry) {
	for i, entry := range warningFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range featureFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}

// FeatureNames lists feature names in sorted order.
func (c *Config) FeatureNames() []string {
	names := make([]string, 0, len(c.FeatureMap))
	for n := range c.FeatureMap {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// projectFile mirrors botblocks.toml.
type projectFile struct {
	Language         string          `toml:"language"`
	Indent           int             `toml:"indent"`
	CommandPrefix    string          `toml:"command_prefix"`
	TokenPlaceholder string          `toml:"token_placeholder"`
	TokenEnv         string          `toml:"token_env"`
	Features         map[string]bool `toml:"features"`
	Warnings         map[string]bool `toml:"warnings"`
}

// envName is the shape of a variable name usable as process.env.NAME and as a
// TypeScript ProcessEnv member.
var envName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DefaultFile is the project file looked up by the CLI.
const DefaultFile = "botblocks.toml"

// LoadFile reads a TOML project file and applies it on top of the current settings.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := c.Decode(string(data)); err != nil {
		return fmt.Errorf("parse error in %s: %w", path, err)
	}
	return nil
}

// Decode applies TOML project settings held in a string.
func (c *Config) Decode(data string) error {
	var pf projectFile
	md, err := toml.Decode(data, &pf)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown key '%s'", undecoded[0].String())
	}

	if pf.Language != "" {
		lang, err := ParseLanguage(pf.Language)
		if err != nil {
			return err
		}
		c.Language = lang
	}
	if pf.Indent < 0 || pf.Indent > 16 {
		return fmt.Errorf("indent must be between 0 and 16, got %d", pf.Indent)
	}
	if pf.Indent > 0 {
		c.IndentWidth = pf.Indent
	}
	if pf.CommandPrefix != "" {
		c.CommandPrefix = pf.CommandPrefix
	}
	if pf.TokenPlaceholder != "" {
		c.TokenPlaceholder = pf.TokenPlaceholder
	}
	if pf.TokenEnv != "" {
		if !envName.MatchString(pf.TokenEnv) {
			return fmt.Errorf("token_env '%s' is not a valid environment variable name", pf.TokenEnv)
		}
		c.TokenEnv = pf.TokenEnv
	}
	for name, on := range pf.Features {
		f, ok := c.FeatureMap[name]
		if !ok {
			return fmt.Errorf("unknown feature '%s'", name)
		}
		c.SetFeature(f, on)
	}
	for name, on := range pf.Warnings {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, on)
	}
	return nil
}
