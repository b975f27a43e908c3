package codegen

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/tliron/commonlog"
	"github.com/xplshn/botblocks/pkg/block"
	"github.com/xplshn/botblocks/pkg/config"
)

// logger is looked up per use so a backend configured after init still applies.
func logger() commonlog.Logger { return commonlog.GetLogger("botblocks.codegen") }

// Handler order in the output file. Trigger kinds outside this list follow in
// order of first appearance.
var eventOrder = []string{
	"ready",
	"messageCreate",
	"messageUpdate",
	"messageDelete",
	"messageReactionAdd",
	"guildMemberAdd",
	"guildMemberRemove",
	"voiceStateUpdate",
}

const (
	EventReady         = "ready"
	EventMessageCreate = "messageCreate"
)

type Result struct {
	Source      string
	Language    config.Language
	Names       []string
	Event       string // trigger kind of the last trigger block, informational only
	Diagnostics []Diagnostic
	Hash        uint64
}

type Generator struct {
	cfg *config.Config
}

func NewGenerator(cfg *config.Config) *Generator {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Generator{cfg: cfg}
}

// BackendFor returns the emitter for a target language.
func BackendFor(lang config.Language, cfg *config.Config) (Backend, error) {
	switch lang {
	case config.JavaScript:
		return NewJavaScriptBackend(cfg), nil
	case config.TypeScript:
		return NewTypeScriptBackend(cfg), nil
	case config.Python:
		return NewPythonBackend(cfg), nil
	}
	return nil, fmt.Errorf("%w: %s", config.ErrUnsupportedLanguage, lang)
}

// Generate renders prog as a complete source file. It never mutates prog and
// only fails for an unsupported language; everything else degrades to
// diagnostics on the Result.
func (g *Generator) Generate(prog *block.Program, lang config.Language) (*Result, error) {
	be, err := BackendFor(lang, g.cfg)
	if err != nil {
		return nil, err
	}
	if prog == nil {
		prog = block.New()
	}

	ctx := newContext(prog, g.cfg, be)
	ctx.collect()
	handlers := ctx.group()

	var sb strings.Builder
	for i := range handlers {
		if i > 0 {
			sb.WriteString(handlerSeparator(lang))
		}
		ctx.handler = handlers[i].Event
		ctx.depth = 0
		sb.WriteString(be.Handler(ctx, &handlers[i]))
	}
	ctx.handler = EventSpec{}
	ctx.depth = 0

	src := be.File(ctx, sb.String())
	return &Result{
		Source:      src,
		Language:    lang,
		Names:       ctx.Names(),
		Event:       ctx.event,
		Diagnostics: ctx.Diagnostics(),
		Hash:        xxhash.Sum64String(src),
	}, nil
}

func handlerSeparator(lang config.Language) string {
	if lang == config.Python {
		return "\n\n"
	}
	return "\n"
}

// collect is the pre-pass over every block: declared names and the last trigger kind.
func (ctx *Context) collect() {
	for _, r := range ctx.prog.AllBlocks() {
		switch ctx.prog.Kind(r) {
		case block.CreateVariable, block.SetVariable:
			if name := ctx.FieldText(r, "VAR_NAME", ""); name != "" {
				ctx.declare(name, false)
			}
		case block.VariablesSet:
			if name := ctx.FieldText(r, "VAR", ""); name != "" {
				ctx.declare(name, false)
			}
		case block.CreateList, block.AddToList:
			if name := ctx.FieldText(r, "LIST_NAME", ""); name != "" {
				ctx.declare(name, true)
			}
		case block.Trigger:
			ctx.event = triggerKind(ctx, r)
		}
	}
}

func triggerKind(ctx *Context, r block.Ref) string {
	return ctx.FieldText(r, "TRIGGER_TYPE", EventMessageCreate)
}

// group assigns root blocks to handlers. Triggers go to the handler of their
// kind, loose commands and message filters join messageCreate, declarations are
// hoisted, and anything else is reported as unattached. Blocks chained below a
// trigger or a declaration never run and are reported too.
func (ctx *Context) group() []Handler {
	bodies := map[string][]block.Ref{EventReady: nil}
	var extra []string

	add := func(kind string, r block.Ref) {
		if _, ok := bodies[kind]; !ok && !isOrdered(kind) {
			extra = append(extra, kind)
		}
		bodies[kind] = append(bodies[kind], r)
	}

	for _, r := range ctx.prog.Roots() {
		chain := ctx.prog.Chain(r)
		switch ctx.prog.Kind(r) {
		case block.Trigger:
			add(triggerKind(ctx, r), r)
			ctx.unattached(chain[1:], "follows a trigger; put it inside the trigger")
		case block.Command, block.IfMessageContains:
			add(EventMessageCreate, r)
		case block.CreateVariable, block.CreateList:
			ctx.unattached(chain[1:], "follows a declaration and is not attached to any event")
		case block.Unknown:
			ctx.Warn(config.WarnUnknownBlock, r, "no emission rule for block type '%s'", ctx.prog.Type(r))
			ctx.unattached(chain[1:], "is not attached to any event")
		default:
			ctx.unattached(chain, "is not attached to any event")
		}
	}

	var out []Handler
	emit := func(kind string) {
		spec := ctx.backend.Event(kind)
		if !spec.Known {
			ctx.Warn(config.WarnUnknownEvent, block.NoRef, "unknown event '%s'", kind)
		}
		ctx.events[kind] = true
		out = append(out, Handler{Event: spec, Bodies: bodies[kind]})
	}
	for _, kind := range eventOrder {
		if _, ok := bodies[kind]; ok {
			emit(kind)
		}
	}
	for _, kind := range extra {
		emit(kind)
	}
	return out
}

func (ctx *Context) unattached(refs []block.Ref, why string) {
	for _, r := range refs {
		ctx.Warn(config.WarnUnattached, r, "block %s", why)
	}
}

func isOrdered(kind string) bool {
	for _, k := range eventOrder {
		if k == kind {
			return true
		}
	}
	return false
}
