package codegen

import (
	"github.com/xplshn/botblocks/pkg/block"
	"github.com/xplshn/botblocks/pkg/config"
)

// EventSpec describes one event handler in a target language: the event name,
// the parameters it binds and the expressions reachable through them.
type EventSpec struct {
	Kind    string   // trigger kind as chosen in the editor, e.g. "messageCreate"
	Name    string   // target-language event name
	Params  []string // parameter declarations, already spelled for the target
	Message string   // expression for the message in scope, "" when there is none
	Channel string   // expression for the channel replies go to
	Author  string   // expression for the user who caused the event
	Known   bool
}

// OpClass selects one of the operator tables of a backend.
type OpClass int

const (
	OpCompare OpClass = iota
	OpLogic
	OpArith
)

// Operators maps operator tags to tokens. Default is used for any tag missing from Tokens.
type Operators struct {
	Tokens  map[string]string
	Default string
}

// Handler is one event handler of the output file: the trigger blocks and loose
// message gates that run when the event fires, in program order.
type Handler struct {
	Event  EventSpec
	Bodies []block.Ref
}

// Backend is the interface every target language implements. It has one method
// per block kind, so a backend that misses a kind does not compile.
type Backend interface {
	Language() config.Language

	Null() string
	Quote(s string) string
	Float(f float64) string
	Bool(b bool) string
	Ident(name string) string
	Comment(text string) string
	Event(kind string) EventSpec
	Operators(class OpClass) Operators

	Trigger(ctx *Context, r block.Ref) string
	SendMessage(ctx *Context, r block.Ref) string
	AddReaction(ctx *Context, r block.Ref) string
	CreateEmbed(ctx *Context, r block.Ref) string
	EmbedField(ctx *Context, r block.Ref) string
	Command(ctx *Context, r block.Ref) string
	IfMessageContains(ctx *Context, r block.Ref) string
	MessageContent(ctx *Context, r block.Ref) string
	Author(ctx *Context, r block.Ref) string
	Wait(ctx *Context, r block.Ref) string
	Compare(ctx *Context, r block.Ref) string
	Operation(ctx *Context, r block.Ref) string
	Negate(ctx *Context, r block.Ref) string
	Boolean(ctx *Context, r block.Ref) string
	If(ctx *Context, r block.Ref) string
	IfElse(ctx *Context, r block.Ref) string
	Repeat(ctx *Context, r block.Ref) string
	WhileUntil(ctx *Context, r block.Ref) string
	VariablesGet(ctx *Context, r block.Ref) string
	VariablesSet(ctx *Context, r block.Ref) string
	CreateVariable(ctx *Context, r block.Ref) string
	SetVariable(ctx *Context, r block.Ref) string
	GetVariable(ctx *Context, r block.Ref) string
	CreateList(ctx *Context, r block.Ref) string
	AddToList(ctx *Context, r block.Ref) string
	Text(ctx *Context, r block.Ref) string
	Number(ctx *Context, r block.Ref) string
	Arithmetic(ctx *Context, r block.Ref) string
	RandomInt(ctx *Context, r block.Ref) string
	TextJoin(ctx *Context, r block.Ref) string
	TextLength(ctx *Context, r block.Ref) string

	// Handler renders one event handler at indent depth zero.
	Handler(ctx *Context, h *Handler) string
	// File assembles the complete source file around the rendered handlers.
	File(ctx *Context, handlers string) string
}

// Emit resolves a block to its text in the active backend.
func (ctx *Context) Emit(r block.Ref) string {
	b := ctx.prog.Block(r)
	if b == nil {
		return ""
	}
	be := ctx.backend
	switch b.Kind {
	case block.Trigger:
		return be.Trigger(ctx, r)
	case block.SendMessage:
		return be.SendMessage(ctx, r)
	case block.AddReaction:
		return be.AddReaction(ctx, r)
	case block.CreateEmbed:
		return be.CreateEmbed(ctx, r)
	case block.EmbedField:
		return be.EmbedField(ctx, r)
	case block.Command:
		return be.Command(ctx, r)
	case block.IfMessageContains:
		return be.IfMessageContains(ctx, r)
	case block.MessageContent:
		return be.MessageContent(ctx, r)
	case block.Author:
		return be.Author(ctx, r)
	case block.Wait:
		return be.Wait(ctx, r)
	case block.Compare:
		return be.Compare(ctx, r)
	case block.Operation:
		return be.Operation(ctx, r)
	case block.Negate:
		return be.Negate(ctx, r)
	case block.Boolean:
		return be.Boolean(ctx, r)
	case block.If:
		return be.If(ctx, r)
	case block.IfElse:
		return be.IfElse(ctx, r)
	case block.Repeat:
		return be.Repeat(ctx, r)
	case block.WhileUntil:
		return be.WhileUntil(ctx, r)
	case block.VariablesGet:
		return be.VariablesGet(ctx, r)
	case block.VariablesSet:
		return be.VariablesSet(ctx, r)
	case block.CreateVariable:
		return be.CreateVariable(ctx, r)
	case block.SetVariable:
		return be.SetVariable(ctx, r)
	case block.GetVariable:
		return be.GetVariable(ctx, r)
	case block.CreateList:
		return be.CreateList(ctx, r)
	case block.AddToList:
		return be.AddToList(ctx, r)
	case block.Text:
		return be.Text(ctx, r)
	case block.Number:
		return be.Number(ctx, r)
	case block.Arithmetic:
		return be.Arithmetic(ctx, r)
	case block.RandomInt:
		return be.RandomInt(ctx, r)
	case block.TextJoin:
		return be.TextJoin(ctx, r)
	case block.TextLength:
		return be.TextLength(ctx, r)
	}
	ctx.Warn(config.WarnUnknownBlock, r, "no emission rule for block type '%s'", b.Type)
	return ""
}
