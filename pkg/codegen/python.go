package codegen

import (
	"strings"

	"github.com/xplshn/botblocks/pkg/block"
	"github.com/xplshn/botblocks/pkg/config"
)

// PythonBackend emits a discord.py bot built on commands.Bot.
type PythonBackend struct {
	cfg *config.Config
}

var pyReserved = wordSet(
	"False", "None", "True", "and", "as", "assert", "async", "await", "break", "class",
	"continue", "def", "del", "elif", "else", "except", "finally", "for", "from", "global",
	"if", "import", "in", "is", "lambda", "nonlocal", "not", "or", "pass", "raise",
	"return", "try", "while", "with", "yield", "match", "case",
	// names bound by the generated scaffolding
	"bot", "discord", "commands", "asyncio", "random", "os", "intents", "message",
	"reaction", "user", "member", "before", "after", "args", "embed", "print", "str",
	"len", "int", "float", "range",
)

var pyEvents = map[string]EventSpec{
	"ready": {Name: "on_ready"},
	"messageCreate": {
		Name: "on_message", Params: []string{"message"},
		Message: "message", Channel: "message.channel", Author: "message.author",
	},
	"messageUpdate": {
		Name: "on_message_edit", Params: []string{"before", "after"},
		Message: "after", Channel: "after.channel", Author: "after.author",
	},
	"messageDelete": {
		Name: "on_message_delete", Params: []string{"message"},
		Message: "message", Channel: "message.channel", Author: "message.author",
	},
	"messageReactionAdd": {
		Name: "on_reaction_add", Params: []string{"reaction", "user"},
		Message: "reaction.message", Channel: "reaction.message.channel", Author: "user",
	},
	"guildMemberAdd": {
		Name: "on_member_join", Params: []string{"member"},
		Channel: "member.guild.system_channel", Author: "member",
	},
	"guildMemberRemove": {
		Name: "on_member_remove", Params: []string{"member"},
		Channel: "member.guild.system_channel", Author: "member",
	},
	"voiceStateUpdate": {
		Name: "on_voice_state_update", Params: []string{"member", "before", "after"},
		Author: "member",
	},
}

var (
	pyCompareOps = Operators{
		Tokens:  map[string]string{"EQ": "==", "NEQ": "!=", "LT": "<", "LTE": "<=", "GT": ">", "GTE": ">="},
		Default: "==",
	}
	pyLogicOps = Operators{
		Tokens:  map[string]string{"AND": "and", "OR": "or"},
		Default: "and",
	}
	pyArithOps = Operators{
		Tokens:  map[string]string{"ADD": "+", "MINUS": "-", "MULTIPLY": "*", "DIVIDE": "/", "POWER": "**"},
		Default: "+",
	}
)

func NewPythonBackend(cfg *config.Config) *PythonBackend { return &PythonBackend{cfg: cfg} }

func (b *PythonBackend) Language() config.Language { return config.Python }

func (b *PythonBackend) Null() string          { return "None" }
func (b *PythonBackend) Quote(s string) string { return quote(s, false) }
func (b *PythonBackend) Float(f float64) string {
	return formatFloat(f, `float("nan")`, `float("inf")`)
}
func (b *PythonBackend) Ident(name string) string { return sanitize(name, pyReserved) }

func (b *PythonBackend) Bool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func (b *PythonBackend) Comment(text string) string {
	return "# " + strings.NewReplacer("\r", " ", "\n", " ").Replace(text)
}

func (b *PythonBackend) Event(kind string) EventSpec {
	spec, ok := pyEvents[kind]
	if !ok {
		return EventSpec{Kind: kind, Name: sanitize("on_"+snakeCase(kind), nil), Params: []string{"*args"}}
	}
	spec.Kind = kind
	spec.Known = true
	return spec
}

func (b *PythonBackend) Operators(class OpClass) Operators {
	switch class {
	case OpLogic:
		return pyLogicOps
	case OpArith:
		return pyArithOps
	}
	return pyCompareOps
}

// suite renders an indented block, adding pass when it holds no statement.
func (b *PythonBackend) suite(ctx *Context, r block.Ref, slot string) string {
	ctx.Indent()
	defer ctx.Dedent()
	return b.pad(ctx, ctx.Statements(r, slot))
}

func (b *PythonBackend) pad(ctx *Context, body string) string {
	for _, line := range strings.Split(body, "\n") {
		if t := strings.TrimSpace(line); t != "" && !strings.HasPrefix(t, "#") {
			return body
		}
	}
	return body + ctx.Line("pass")
}

func (b *PythonBackend) Trigger(ctx *Context, r block.Ref) string { return ctx.NestedTrigger(r) }

func (b *PythonBackend) SendMessage(ctx *Context, r block.Ref) string {
	ch := ctx.NeedChannel(r)
	if ch == "" {
		return ctx.Skipped(r)
	}
	return ctx.Line("await %s.send(%s)", ch, ctx.Value(r, "MESSAGE"))
}

func (b *PythonBackend) AddReaction(ctx *Context, r block.Ref) string {
	msg := ctx.NeedMessage(r)
	if msg == "" {
		return ctx.Skipped(r)
	}
	return ctx.Line("await %s.add_reaction(%s)", msg, ctx.Value(r, "EMOJI"))
}

func (b *PythonBackend) CreateEmbed(ctx *Context, r block.Ref) string {
	var sb strings.Builder
	name := ctx.PushEmbed()
	sb.WriteString(ctx.Line("%s = discord.Embed()", name))
	if ctx.Connected(r, "TITLE") {
		sb.WriteString(ctx.Line("%s.title = %s", name, ctx.Value(r, "TITLE")))
	}
	if ctx.Connected(r, "DESCRIPTION") {
		sb.WriteString(ctx.Line("%s.description = %s", name, ctx.Value(r, "DESCRIPTION")))
	}
	if ctx.Connected(r, "COLOR") {
		sb.WriteString(ctx.Line("%s.colour = discord.Colour.from_str(%s)", name, ctx.Value(r, "COLOR")))
	}
	sb.WriteString(ctx.Statements(r, "FIELDS"))
	ctx.PopEmbed()
	if ch := ctx.NeedChannel(r); ch != "" {
		sb.WriteString(ctx.Line("await %s.send(embed=%s)", ch, name))
	} else {
		sb.WriteString(ctx.Skipped(r))
	}
	return sb.String()
}

func (b *PythonBackend) EmbedField(ctx *Context, r block.Ref) string {
	embed, ok := ctx.Embed()
	if !ok {
		ctx.Warn(config.WarnMisplaced, r, "embed field outside of an embed")
		return ""
	}
	inline, _ := ctx.Field(r, "INLINE")
	return ctx.Line("%s.add_field(name=str(%s), value=str(%s), inline=%s)",
		embed, ctx.Value(r, "NAME"), ctx.Value(r, "VALUE"), b.Bool(inline.Truth()))
}

func (b *PythonBackend) Command(ctx *Context, r block.Ref) string {
	msg := ctx.NeedMessage(r)
	if msg == "" {
		return ctx.Skipped(r)
	}
	cmd := ctx.FieldText(r, "COMMAND", "")

	var sb strings.Builder
	if ctx.cfg.IsFeatureEnabled(config.FeatHandlerComments) {
		sb.WriteString(ctx.Line("%s", b.Comment("Command: "+cmd)))
	}
	sb.WriteString(ctx.Line("if %s.content.startswith(%s):", msg, b.Quote(cmd)))
	sb.WriteString(b.suite(ctx, r, "ACTIONS"))
	return sb.String()
}

func (b *PythonBackend) IfMessageContains(ctx *Context, r block.Ref) string {
	msg := ctx.NeedMessage(r)
	if msg == "" {
		return ctx.Skipped(r)
	}
	return ctx.Line("if %s in %s.content:", ctx.Value(r, "TEXT"), msg) + b.suite(ctx, r, "THEN")
}

func (b *PythonBackend) MessageContent(ctx *Context, r block.Ref) string {
	if msg := ctx.NeedMessage(r); msg != "" {
		return msg + ".content"
	}
	return b.Null()
}

func (b *PythonBackend) Author(ctx *Context, r block.Ref) string {
	if a := ctx.NeedAuthor(r); a != "" {
		return a
	}
	return b.Null()
}

func (b *PythonBackend) Wait(ctx *Context, r block.Ref) string {
	ctx.Require("asyncio")
	return ctx.Line("await asyncio.sleep(%s)", b.Float(ctx.Seconds(r, "SECONDS")))
}

func (b *PythonBackend) binary(ctx *Context, r block.Ref, class OpClass) string {
	return "(" + ctx.Value(r, "A") + " " + ctx.Operator(r, class) + " " + ctx.Value(r, "B") + ")"
}

func (b *PythonBackend) Compare(ctx *Context, r block.Ref) string   { return b.binary(ctx, r, OpCompare) }
func (b *PythonBackend) Operation(ctx *Context, r block.Ref) string { return b.binary(ctx, r, OpLogic) }
func (b *PythonBackend) Arithmetic(ctx *Context, r block.Ref) string {
	return b.binary(ctx, r, OpArith)
}

func (b *PythonBackend) Negate(ctx *Context, r block.Ref) string {
	return "(not " + ctx.Value(r, "BOOL") + ")"
}

func (b *PythonBackend) Boolean(ctx *Context, r block.Ref) string {
	v, ok := ctx.Field(r, "BOOL")
	return b.Bool(!ok || v.Truth())
}

func (b *PythonBackend) If(ctx *Context, r block.Ref) string {
	return ctx.Line("if %s:", ctx.Value(r, "IF0")) + b.suite(ctx, r, "DO0")
}

func (b *PythonBackend) IfElse(ctx *Context, r block.Ref) string {
	var sb strings.Builder
	sb.WriteString(ctx.Line("if %s:", ctx.Value(r, "IF0")))
	sb.WriteString(b.suite(ctx, r, "DO0"))
	sb.WriteString(ctx.Line("else:"))
	sb.WriteString(b.suite(ctx, r, "ELSE"))
	return sb.String()
}

func (b *PythonBackend) Repeat(ctx *Context, r block.Ref) string {
	times := ctx.Value(r, "TIMES")
	ctx.Loop()
	defer ctx.EndLoop()
	return ctx.Line("for _ in range(int(%s)):", times) + b.suite(ctx, r, "DO")
}

func (b *PythonBackend) WhileUntil(ctx *Context, r block.Ref) string {
	cond := ctx.Value(r, "BOOL")
	if untilMode(ctx, r) {
		cond = "not " + cond
	}
	return ctx.Line("while %s:", cond) + b.suite(ctx, r, "DO")
}

func (b *PythonBackend) get(ctx *Context, r block.Ref, field string) string {
	name := ctx.FieldText(r, field, "")
	if name == "" {
		ctx.Warn(config.WarnMisplaced, r, "variable block without a name")
		return b.Null()
	}
	return ctx.Name(name)
}

func (b *PythonBackend) set(ctx *Context, r block.Ref, field string) string {
	name := ctx.FieldText(r, field, "")
	if name == "" {
		ctx.Warn(config.WarnMisplaced, r, "variable block without a name")
		return ""
	}
	return ctx.Line("%s = %s", ctx.Name(name), ctx.Value(r, "VALUE"))
}

func (b *PythonBackend) VariablesGet(ctx *Context, r block.Ref) string { return b.get(ctx, r, "VAR") }
func (b *PythonBackend) VariablesSet(ctx *Context, r block.Ref) string { return b.set(ctx, r, "VAR") }
func (b *PythonBackend) GetVariable(ctx *Context, r block.Ref) string {
	return b.get(ctx, r, "VAR_NAME")
}
func (b *PythonBackend) SetVariable(ctx *Context, r block.Ref) string {
	return b.set(ctx, r, "VAR_NAME")
}

func (b *PythonBackend) CreateVariable(ctx *Context, r block.Ref) string { return "" }
func (b *PythonBackend) CreateList(ctx *Context, r block.Ref) string     { return "" }

func (b *PythonBackend) AddToList(ctx *Context, r block.Ref) string {
	name := ctx.FieldText(r, "LIST_NAME", "")
	if name == "" {
		ctx.Warn(config.WarnMisplaced, r, "list block without a name")
		return ""
	}
	return ctx.Line("%s.append(%s)", ctx.Name(name), ctx.Value(r, "VALUE"))
}

func (b *PythonBackend) Text(ctx *Context, r block.Ref) string {
	return b.Quote(ctx.FieldText(r, "TEXT", ""))
}

func (b *PythonBackend) Number(ctx *Context, r block.Ref) string {
	return numberField(ctx, r, b.Float)
}

func (b *PythonBackend) RandomInt(ctx *Context, r block.Ref) string {
	ctx.Require("random")
	return "random.randint(int(" + ctx.Value(r, "FROM") + "), int(" + ctx.Value(r, "TO") + "))"
}

func (b *PythonBackend) TextJoin(ctx *Context, r block.Ref) string {
	return "(str(" + ctx.Value(r, "A") + ") + str(" + ctx.Value(r, "B") + "))"
}

func (b *PythonBackend) TextLength(ctx *Context, r block.Ref) string {
	return "len(str(" + ctx.Value(r, "VALUE") + "))"
}

func (b *PythonBackend) Handler(ctx *Context, h *Handler) string {
	spec := h.Event
	var sb strings.Builder
	if b.cfg.IsFeatureEnabled(config.FeatHandlerComments) {
		sb.WriteString(ctx.Line("%s", b.Comment("Event: "+spec.Kind)))
	}
	sb.WriteString(ctx.Line("@bot.event"))
	sb.WriteString(ctx.Line("async def %s(%s):", spec.Name, joinParams(spec.Params)))

	ctx.Indent()
	var body strings.Builder
	if names := ctx.Names(); len(names) > 0 {
		body.WriteString(ctx.Line("global %s", strings.Join(names, ", ")))
	}
	if spec.Kind == EventReady && b.cfg.IsFeatureEnabled(config.FeatReadyLog) {
		body.WriteString(ctx.Line(`print(f"Logged in as {bot.user}")`))
	}
	if spec.Kind == EventMessageCreate {
		body.WriteString(ctx.Line("if %s.author.bot:", spec.Message))
		body.WriteString(ctx.Line("%sreturn", ctx.Unit()))
	}
	body.WriteString(ctx.Bodies(h))
	sb.WriteString(b.pad(ctx, body.String()))
	ctx.Dedent()
	return sb.String()
}

func (b *PythonBackend) File(ctx *Context, handlers string) string {
	if b.cfg.IsFeatureEnabled(config.FeatEnvToken) {
		ctx.Require("os")
	}

	var sb strings.Builder
	if imports := ctx.Imports(); len(imports) > 0 {
		for _, imp := range imports {
			sb.WriteString("import " + imp + "\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("import discord\n")
	sb.WriteString("from discord.ext import commands\n\n")

	sb.WriteString("intents = discord.Intents.default()\n")
	sb.WriteString("intents.message_content = True\n")
	sb.WriteString("intents.members = True\n\n")
	sb.WriteString("bot = commands.Bot(command_prefix=" + b.Quote(b.cfg.CommandPrefix) + ", intents=intents)\n")

	if names := ctx.Names(); len(names) > 0 {
		sb.WriteString("\n")
		for _, name := range names {
			if ctx.IsList(name) {
				sb.WriteString(name + " = []\n")
			} else {
				sb.WriteString(name + " = None\n")
			}
		}
	}

	sb.WriteString("\n\n" + handlers + "\n\n")
	if b.cfg.IsFeatureEnabled(config.FeatEnvToken) {
		sb.WriteString("bot.run(os.getenv(" + b.Quote(b.cfg.TokenEnv) + "))\n")
	} else {
		sb.WriteString("bot.run(" + b.Quote(b.cfg.TokenPlaceholder) + ")\n")
	}
	return sb.String()
}
