package template

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/xplshn/botblocks/pkg/block"
	"github.com/xplshn/botblocks/pkg/config"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func logger() commonlog.Logger { return commonlog.GetLogger("botblocks.template") }

// Library holds the templates available to a workspace, keyed by id. Templates
// handed out by the library are copies, so the stored set only changes through
// Save and Import.
type Library struct {
	mu        sync.RWMutex
	templates map[string]*Template
	store     *Store
}

// NewLibrary returns a library loaded with the built-in templates.
func NewLibrary() *Library {
	l := &Library{templates: make(map[string]*Template)}
	for _, t := range builtins() {
		l.templates[t.ID] = t
	}
	return l
}

// ID derives a template id from its display name: lower case, with runs of
// whitespace replaced by a hyphen.
func ID(name string) string {
	lower := cases.Lower(language.Und).String(name)
	return strings.Join(strings.Fields(lower), "-")
}

// Attach loads every template from s and makes later saves and imports write
// through to it. Stored templates replace built-ins with the same id.
func (l *Library) Attach(s *Store) error {
	stored, err := s.List()
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range stored {
		l.templates[t.ID] = t
	}
	l.store = s
	logger().Debugf("attached %d stored templates from %s", len(stored), s.Path())
	return nil
}

func (l *Library) Get(id string) (*Template, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return t.clone(), nil
}

// All lists every template sorted by id.
func (l *Library) All() []*Template {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Template, 0, len(l.templates))
	for _, t := range l.templates {
		out = append(out, t.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Search returns the templates whose id, name, description or category
// contains query, compared case-insensitively. An empty query matches all.
func (l *Library) Search(query string) []*Template {
	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(query))
	var out []*Template
	for _, t := range l.All() {
		hay := fold.String(strings.Join([]string{t.ID, t.Name, t.Description, t.Category}, "\n"))
		if strings.Contains(hay, q) {
			out = append(out, t)
		}
	}
	return out
}

// Categories lists the distinct categories in use, sorted.
func (l *Library) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range l.All() {
		if t.Category != "" && !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}
	sort.Strings(out)
	return out
}

// Save stores prog as a template and returns its id. An existing template with
// the same id is replaced.
func (l *Library) Save(name, description string, lang config.Language, prog *block.Program) (string, error) {
	if !lang.Valid() {
		return "", fmt.Errorf("%w: %s", config.ErrUnsupportedLanguage, lang)
	}
	t := &Template{
		Name:        name,
		Description: description,
		Language:    lang.String(),
		Blocks:      Encode(prog),
	}
	return l.add(t)
}

// Import decodes a template from JSON and adds it. A malformed template is
// rejected and leaves the library unchanged.
func (l *Library) Import(data []byte) (string, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if err := t.Validate(); err != nil {
		return "", err
	}
	if _, err := Materialize(t.Blocks); err != nil {
		return "", err
	}
	return l.add(&t)
}

func (l *Library) add(t *Template) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	id := ID(t.Name)
	if id == "" {
		return "", fmt.Errorf("%w: name has no visible characters", ErrInvalidTemplate)
	}
	t = t.clone()
	t.ID = id

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		wrote, err := l.store.Put(id, t)
		if err != nil {
			return "", err
		}
		if !wrote {
			logger().Debugf("template %s unchanged in store", id)
		}
	}
	l.templates[id] = t
	return id, nil
}

// Export renders a template as indented JSON.
func (l *Library) Export(id string) ([]byte, error) {
	t, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(t, "", "  ")
}

// Apply materialises a template into a fresh program.
func (l *Library) Apply(id string) (*block.Program, error) {
	t, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	prog, err := Materialize(t.Blocks)
	if err != nil {
		return nil, fmt.Errorf("applying template %s: %w", id, err)
	}
	return prog, nil
}

// DefaultProgram is the starting program of an empty workspace.
func DefaultProgram() *block.Program {
	prog, err := Materialize([]*BlockData{
		trigger("messageCreate", send("Hello World!")),
	})
	if err != nil {
		panic(err)
	}
	return prog
}

func text(s string) *BlockData {
	return &BlockData{Type: "text", Fields: map[string]block.Literal{"TEXT": block.StringValue(s)}}
}

func send(s string) *BlockData {
	return &BlockData{Type: "discord_send_message", Values: map[string]*BlockData{"MESSAGE": text(s)}}
}

func at(d *BlockData) *BlockData {
	d.Position = &block.Position{X: 50, Y: 50}
	return d
}

func trigger(kind string, actions ...*BlockData) *BlockData {
	return at(&BlockData{
		Type:     "discord_trigger",
		Fields:   map[string]block.Literal{"TRIGGER_TYPE": block.StringValue(kind)},
		Children: map[string][]*BlockData{"ACTIONS": actions},
	})
}

func command(cmd string, actions ...*BlockData) *BlockData {
	return at(&BlockData{
		Type:     "discord_command",
		Fields:   map[string]block.Literal{"COMMAND": block.StringValue(cmd)},
		Children: map[string][]*BlockData{"ACTIONS": actions},
	})
}

func builtins() []*Template {
	return []*Template{
		{
			ID:          "welcome-bot",
			Name:        "Welcome Bot",
			Description: "A simple bot that greets new members",
			Category:    "welcome",
			Language:    "javascript",
			Blocks:      []*BlockData{trigger("guildMemberAdd", send("Welcome, {user}!"))},
		},
		{
			ID:          "moderation-bot",
			Name:        "Moderation Bot",
			Description: "A bot with basic moderation",
			Category:    "moderation",
			Language:    "javascript",
			Blocks: []*BlockData{trigger("messageCreate", &BlockData{
				Type:     "discord_if_message_contains",
				Values:   map[string]*BlockData{"TEXT": text("bad word")},
				Children: map[string][]*BlockData{"THEN": {send("Inappropriate messages will be removed")}},
			})},
		},
		{
			ID:          "music-bot",
			Name:        "Music Bot",
			Description: "Basic music playback commands",
			Category:    "music",
			Language:    "javascript",
			Blocks:      []*BlockData{command("!play", send("Playing music!"))},
		},
		{
			ID:          "poll-bot",
			Name:        "Poll Bot",
			Description: "A simple poll command",
			Category:    "utility",
			Language:    "javascript",
			Blocks:      []*BlockData{command("!poll", send("Starting a poll!"))},
		},
		{
			ID:          "level-bot",
			Name:        "Level Bot",
			Description: "Chat experience system",
			Category:    "fun",
			Language:    "javascript",
			Blocks:      []*BlockData{trigger("messageCreate", send("You gained experience!"))},
		},
	}
}
