package codegen

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/xplshn/botblocks/pkg/block"
	"github.com/xplshn/botblocks/pkg/config"
)

// Diagnostic is a non-fatal note about lossy translation of one block.
type Diagnostic struct {
	Warning config.Warning
	Name    string // warning flag name, e.g. "unknown-block"
	Block   block.Ref
	Type    string
	Message string
}

func (d Diagnostic) String() string {
	if d.Type != "" {
		return fmt.Sprintf("%s: %s [-W%s]", d.Type, d.Message, d.Name)
	}
	return fmt.Sprintf("%s [-W%s]", d.Message, d.Name)
}

// Context carries all state of a single generation call. It is created fresh by
// Generate and never shared between calls.
type Context struct {
	prog    *block.Program
	cfg     *config.Config
	backend Backend

	depth   int
	unit    string
	names   map[string]bool // sanitised name -> holds a list
	event   string
	events  map[string]bool
	handler EventSpec
	imports map[string]bool
	embeds  []string
	loops   int
	diags   []Diagnostic
}

func newContext(prog *block.Program, cfg *config.Config, be Backend) *Context {
	width := cfg.IndentWidth
	if width <= 0 {
		width = 4
	}
	return &Context{
		prog:    prog,
		cfg:     cfg,
		backend: be,
		unit:    strings.Repeat(" ", width),
		names:   make(map[string]bool),
		events:  make(map[string]bool),
		imports: make(map[string]bool),
	}
}

func (ctx *Context) Program() *block.Program { return ctx.prog }
func (ctx *Context) Config() *config.Config  { return ctx.cfg }

func (ctx *Context) Indent() { ctx.depth++ }
func (ctx *Context) Dedent() {
	if ctx.depth > 0 {
		ctx.depth--
	}
}

// Prefix is the whitespace for the current nesting depth.
func (ctx *Context) Prefix() string { return strings.Repeat(ctx.unit, ctx.depth) }

// Unit is a single indentation step.
func (ctx *Context) Unit() string { return ctx.unit }

// Line formats one line at the current depth, newline included.
func (ctx *Context) Line(format string, args ...any) string {
	return ctx.Prefix() + fmt.Sprintf(format, args...) + "\n"
}

func (ctx *Context) Field(r block.Ref, name string) (block.Literal, bool) {
	return ctx.prog.Field(r, name)
}

// FieldText returns the field as text, or def when the field is unset.
func (ctx *Context) FieldText(r block.Ref, name, def string) string {
	if v, ok := ctx.prog.Field(r, name); ok {
		return v.Text()
	}
	return def
}

// Value renders the expression plugged into a value slot. An empty slot falls
// back to a field of the same name, then to the backend's null literal.
func (ctx *Context) Value(r block.Ref, slot string) string {
	child := ctx.prog.Value(r, slot)
	if child == block.NoRef {
		if v, ok := ctx.prog.Field(r, slot); ok {
			return ctx.literal(v)
		}
		return ctx.backend.Null()
	}

	kind := ctx.prog.Kind(child)
	if kind != block.Unknown && !kind.Output() {
		ctx.Warn(config.WarnMisplaced, child, "statement block used as a value")
		return ctx.backend.Null()
	}
	text := ctx.Emit(child)
	if text == "" {
		return ctx.backend.Null()
	}
	return text
}

// Connected reports whether a value slot holds a block or a same-named field.
func (ctx *Context) Connected(r block.Ref, slot string) bool {
	if ctx.prog.Value(r, slot) != block.NoRef {
		return true
	}
	_, ok := ctx.prog.Field(r, slot)
	return ok
}

func (ctx *Context) literal(v block.Literal) string {
	switch v.Kind {
	case block.LitNumber:
		return ctx.backend.Float(v.Num)
	case block.LitBool:
		return ctx.backend.Bool(v.Bool)
	}
	return ctx.backend.Quote(v.Str)
}

// Statements renders the chain in a statement slot at the current depth.
func (ctx *Context) Statements(r block.Ref, slot string) string {
	return ctx.Chain(ctx.prog.StatementHead(r, slot))
}

// Chain renders head and its successors in order.
func (ctx *Context) Chain(head block.Ref) string {
	var sb strings.Builder
	for _, cur := range ctx.prog.Chain(head) {
		if kind := ctx.prog.Kind(cur); kind.Output() {
			ctx.Warn(config.WarnMisplaced, cur, "value block used as a statement")
			continue
		}
		sb.WriteString(ctx.Emit(cur))
	}
	return sb.String()
}

// Bodies renders the user code of a handler at the current depth.
func (ctx *Context) Bodies(h *Handler) string {
	var sb strings.Builder
	for _, r := range h.Bodies {
		if ctx.prog.Kind(r) == block.Trigger {
			sb.WriteString(ctx.Statements(r, "ACTIONS"))
			continue
		}
		sb.WriteString(ctx.Chain(r))
	}
	return sb.String()
}

// NestedTrigger handles a trigger block found inside another body.
func (ctx *Context) NestedTrigger(r block.Ref) string {
	ctx.Warn(config.WarnMisplaced, r, "trigger blocks only work at the top level")
	return ""
}

// Body renders a statement slot one level deeper than the current depth.
func (ctx *Context) Body(r block.Ref, slot string) string {
	ctx.Indent()
	defer ctx.Dedent()
	return ctx.Statements(r, slot)
}

// Operator resolves the OP field of r through one of the backend's tables.
func (ctx *Context) Operator(r block.Ref, class OpClass) string {
	ops := ctx.backend.Operators(class)
	tag := ctx.FieldText(r, "OP", "")
	if tok, ok := ops.Tokens[tag]; ok {
		return tok
	}
	ctx.Warn(config.WarnUnknownOperator, r, "unknown operator '%s', using '%s'", tag, ops.Default)
	return ops.Default
}

// Seconds reads a finite, non-negative duration field, defaulting to one second.
func (ctx *Context) Seconds(r block.Ref, name string) float64 {
	v, ok := ctx.prog.Field(r, name)
	if !ok {
		return 1
	}
	f, ok := v.Float()
	if !ok || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		ctx.Warn(config.WarnDuration, r, "invalid duration '%s', waiting 1 second", v.Text())
		return 1
	}
	return f
}

// Handler is the event handler currently being rendered.
func (ctx *Context) Handler() EventSpec { return ctx.handler }

// HasEvent reports whether the output contains a handler for the trigger kind.
func (ctx *Context) HasEvent(kind string) bool { return ctx.events[kind] }

// Event is the trigger kind of the last trigger block seen by the pre-pass.
func (ctx *Context) Event() string { return ctx.event }

// NeedMessage returns the message expression of the current handler. When the
// handler binds no message it warns and returns "".
func (ctx *Context) NeedMessage(r block.Ref) string {
	if m := ctx.handler.Message; m != "" {
		return m
	}
	ctx.Warn(config.WarnNoContext, r, "no message in scope of '%s'", ctx.handler.Kind)
	return ""
}

// NeedChannel is NeedMessage for the reply channel.
func (ctx *Context) NeedChannel(r block.Ref) string {
	if c := ctx.handler.Channel; c != "" {
		return c
	}
	ctx.Warn(config.WarnNoContext, r, "no channel in scope of '%s'", ctx.handler.Kind)
	return ""
}

func (ctx *Context) NeedAuthor(r block.Ref) string {
	if a := ctx.handler.Author; a != "" {
		return a
	}
	ctx.Warn(config.WarnNoContext, r, "no author in scope of '%s'", ctx.handler.Kind)
	return ""
}

// Skipped renders the placeholder comment for a block that could not be emitted.
func (ctx *Context) Skipped(r block.Ref) string {
	return ctx.Line("%s", ctx.backend.Comment(fmt.Sprintf("%s skipped: not available in %s", ctx.prog.Type(r), ctx.handler.Kind)))
}

// Name maps a variable name from the program to a declared identifier.
func (ctx *Context) Name(raw string) string { return ctx.backend.Ident(raw) }

func (ctx *Context) declare(raw string, list bool) {
	name := ctx.backend.Ident(raw)
	ctx.names[name] = ctx.names[name] || list
}

// Names lists the declared identifiers in sorted order.
func (ctx *Context) Names() []string {
	out := make([]string, 0, len(ctx.names))
	for n := range ctx.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (ctx *Context) IsList(name string) bool { return ctx.names[name] }

func (ctx *Context) Require(imp string) { ctx.imports[imp] = true }

func (ctx *Context) Requires(imp string) bool { return ctx.imports[imp] }

// Imports lists required imports in sorted order.
func (ctx *Context) Imports() []string {
	out := make([]string, 0, len(ctx.imports))
	for imp := range ctx.imports {
		out = append(out, imp)
	}
	sort.Strings(out)
	return out
}

// PushEmbed opens an embed and returns the identifier that holds it.
func (ctx *Context) PushEmbed() string {
	name := "embed"
	if n := len(ctx.embeds); n > 0 {
		name = fmt.Sprintf("embed%d", n+1)
	}
	ctx.embeds = append(ctx.embeds, name)
	return name
}

func (ctx *Context) PopEmbed() {
	if n := len(ctx.embeds); n > 0 {
		ctx.embeds = ctx.embeds[:n-1]
	}
}

// Embed returns the innermost open embed.
func (ctx *Context) Embed() (string, bool) {
	if n := len(ctx.embeds); n > 0 {
		return ctx.embeds[n-1], true
	}
	return "", false
}

// Loop opens a counted loop and returns its counter name: i, j, k, then i3, i4...
func (ctx *Context) Loop() string {
	d := ctx.loops
	ctx.loops++
	if d < 3 {
		return string(rune('i' + d))
	}
	return fmt.Sprintf("i%d", d)
}

func (ctx *Context) EndLoop() {
	if ctx.loops > 0 {
		ctx.loops--
	}
}

// Warn records a diagnostic when the warning is enabled and logs it.
func (ctx *Context) Warn(w config.Warning, r block.Ref, format string, args ...any) {
	if !ctx.cfg.IsWarningEnabled(w) {
		return
	}
	d := Diagnostic{
		Warning: w,
		Name:    ctx.cfg.WarningName(w),
		Block:   r,
		Type:    ctx.prog.Type(r),
		Message: fmt.Sprintf(format, args...),
	}
	ctx.diags = append(ctx.diags, d)
	logger().Warningf("%s", d)
}

func (ctx *Context) Diagnostics() []Diagnostic { return ctx.diags }
