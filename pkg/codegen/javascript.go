package codegen

import (
	"math"
	"sort"
	"strings"

	"github.com/xplshn/botblocks/pkg/block"
	"github.com/xplshn/botblocks/pkg/config"
)

// JavaScriptBackend emits a discord.js (v14) bot as a CommonJS script.
type JavaScriptBackend struct {
	cfg      *config.Config
	reserved map[string]bool
	events   map[string]EventSpec
	userTag  string
}

var jsReserved = wordSet(
	"break", "case", "catch", "class", "const", "continue", "debugger", "default", "delete",
	"do", "else", "enum", "export", "extends", "false", "finally", "for", "function", "if",
	"implements", "import", "in", "instanceof", "interface", "let", "new", "null", "package",
	"private", "protected", "public", "return", "static", "super", "switch", "this", "throw",
	"true", "try", "typeof", "var", "void", "while", "with", "yield", "await", "async",
	"arguments", "eval", "undefined", "NaN", "Infinity",
	// names bound by the generated scaffolding
	"client", "message", "reaction", "user", "member", "oldMessage", "newMessage",
	"oldState", "newState", "args", "embed", "require", "console", "process", "Math",
	"String", "Promise", "setTimeout", "resolve", "i", "j", "k",
)

var jsEvents = map[string]EventSpec{
	"ready": {Name: "ready"},
	"messageCreate": {
		Name: "messageCreate", Params: []string{"message"},
		Message: "message", Channel: "message.channel", Author: "message.author",
	},
	"messageUpdate": {
		Name: "messageUpdate", Params: []string{"oldMessage", "newMessage"},
		Message: "newMessage", Channel: "newMessage.channel", Author: "newMessage.author",
	},
	"messageDelete": {
		Name: "messageDelete", Params: []string{"message"},
		Message: "message", Channel: "message.channel", Author: "message.author",
	},
	"messageReactionAdd": {
		Name: "messageReactionAdd", Params: []string{"reaction", "user"},
		Message: "reaction.message", Channel: "reaction.message.channel", Author: "user",
	},
	"guildMemberAdd": {
		Name: "guildMemberAdd", Params: []string{"member"},
		Channel: "member.guild.systemChannel?", Author: "member.user",
	},
	"guildMemberRemove": {
		Name: "guildMemberRemove", Params: []string{"member"},
		Channel: "member.guild.systemChannel?", Author: "member.user",
	},
	"voiceStateUpdate": {
		Name: "voiceStateUpdate", Params: []string{"oldState", "newState"},
		Author: "newState.member",
	},
}

var (
	jsCompareOps = Operators{
		Tokens:  map[string]string{"EQ": "===", "NEQ": "!==", "LT": "<", "LTE": "<=", "GT": ">", "GTE": ">="},
		Default: "===",
	}
	jsLogicOps = Operators{
		Tokens:  map[string]string{"AND": "&&", "OR": "||"},
		Default: "&&",
	}
	jsArithOps = Operators{
		Tokens:  map[string]string{"ADD": "+", "MINUS": "-", "MULTIPLY": "*", "DIVIDE": "/", "POWER": "**"},
		Default: "+",
	}
)

func NewJavaScriptBackend(cfg *config.Config) *JavaScriptBackend {
	return &JavaScriptBackend{cfg: cfg, reserved: jsReserved, events: jsEvents, userTag: "client.user.tag"}
}

func (b *JavaScriptBackend) Language() config.Language { return config.JavaScript }

func (b *JavaScriptBackend) Null() string           { return "null" }
func (b *JavaScriptBackend) Quote(s string) string  { return quote(s, true) }
func (b *JavaScriptBackend) Float(f float64) string { return formatFloat(f, "NaN", "Infinity") }
func (b *JavaScriptBackend) Ident(name string) string {
	return sanitize(name, b.reserved)
}

func (b *JavaScriptBackend) Bool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func (b *JavaScriptBackend) Comment(text string) string {
	return "// " + strings.NewReplacer("\r", " ", "\n", " ", "\u2028", " ", "\u2029", " ").Replace(text)
}

func (b *JavaScriptBackend) Event(kind string) EventSpec {
	spec, ok := b.events[kind]
	if !ok {
		return EventSpec{Kind: kind, Name: kind, Params: []string{"...args"}}
	}
	spec.Kind = kind
	spec.Known = true
	return spec
}

func (b *JavaScriptBackend) Operators(class OpClass) Operators {
	switch class {
	case OpLogic:
		return jsLogicOps
	case OpArith:
		return jsArithOps
	}
	return jsCompareOps
}

func (b *JavaScriptBackend) Trigger(ctx *Context, r block.Ref) string { return ctx.NestedTrigger(r) }

func (b *JavaScriptBackend) SendMessage(ctx *Context, r block.Ref) string {
	ch := ctx.NeedChannel(r)
	if ch == "" {
		return ctx.Skipped(r)
	}
	return ctx.Line("await %s.send(%s);", ch, ctx.Value(r, "MESSAGE"))
}

func (b *JavaScriptBackend) AddReaction(ctx *Context, r block.Ref) string {
	msg := ctx.NeedMessage(r)
	if msg == "" {
		return ctx.Skipped(r)
	}
	return ctx.Line("await %s.react(%s);", msg, ctx.Value(r, "EMOJI"))
}

func (b *JavaScriptBackend) CreateEmbed(ctx *Context, r block.Ref) string {
	ctx.Require("EmbedBuilder")

	var sb strings.Builder
	sb.WriteString(ctx.Line("{"))
	ctx.Indent()
	name := ctx.PushEmbed()
	sb.WriteString(ctx.Line("const %s = new EmbedBuilder();", name))
	for _, set := range [...]struct{ slot, method string }{
		{"TITLE", "setTitle"},
		{"DESCRIPTION", "setDescription"},
		{"COLOR", "setColor"},
	} {
		if ctx.Connected(r, set.slot) {
			sb.WriteString(ctx.Line("%s.%s(%s);", name, set.method, ctx.Value(r, set.slot)))
		}
	}
	sb.WriteString(ctx.Statements(r, "FIELDS"))
	ctx.PopEmbed()
	if ch := ctx.NeedChannel(r); ch != "" {
		sb.WriteString(ctx.Line("await %s.send({ embeds: [%s] });", ch, name))
	} else {
		sb.WriteString(ctx.Skipped(r))
	}
	ctx.Dedent()
	sb.WriteString(ctx.Line("}"))
	return sb.String()
}

func (b *JavaScriptBackend) EmbedField(ctx *Context, r block.Ref) string {
	embed, ok := ctx.Embed()
	if !ok {
		ctx.Warn(config.WarnMisplaced, r, "embed field outside of an embed")
		return ""
	}
	inline, _ := ctx.Field(r, "INLINE")
	return ctx.Line("%s.addFields({ name: String(%s), value: String(%s), inline: %s });",
		embed, ctx.Value(r, "NAME"), ctx.Value(r, "VALUE"), b.Bool(inline.Truth()))
}

func (b *JavaScriptBackend) Command(ctx *Context, r block.Ref) string {
	msg := ctx.NeedMessage(r)
	if msg == "" {
		return ctx.Skipped(r)
	}
	cmd := ctx.FieldText(r, "COMMAND", "")

	var sb strings.Builder
	if ctx.cfg.IsFeatureEnabled(config.FeatHandlerComments) {
		sb.WriteString(ctx.Line("%s", b.Comment("Command: "+cmd)))
	}
	sb.WriteString(ctx.Line("if (%s.content.startsWith(%s)) {", msg, b.Quote(cmd)))
	sb.WriteString(ctx.Body(r, "ACTIONS"))
	sb.WriteString(ctx.Line("}"))
	return sb.String()
}

func (b *JavaScriptBackend) IfMessageContains(ctx *Context, r block.Ref) string {
	msg := ctx.NeedMessage(r)
	if msg == "" {
		return ctx.Skipped(r)
	}
	var sb strings.Builder
	sb.WriteString(ctx.Line("if (%s.content.includes(%s)) {", msg, ctx.Value(r, "TEXT")))
	sb.WriteString(ctx.Body(r, "THEN"))
	sb.WriteString(ctx.Line("}"))
	return sb.String()
}

func (b *JavaScriptBackend) MessageContent(ctx *Context, r block.Ref) string {
	if msg := ctx.NeedMessage(r); msg != "" {
		return msg + ".content"
	}
	return b.Null()
}

func (b *JavaScriptBackend) Author(ctx *Context, r block.Ref) string {
	if a := ctx.NeedAuthor(r); a != "" {
		return a
	}
	return b.Null()
}

func (b *JavaScriptBackend) Wait(ctx *Context, r block.Ref) string {
	return b.sleep(ctx, r, "Promise")
}

// maxTimeout is the longest delay setTimeout honours; longer ones fire at once.
const maxTimeout = 1<<31 - 1

// sleep renders a wait for the SECONDS field. Delays beyond maxTimeout are
// split into a loop of timers so the rest of the chain still runs after the
// full delay.
func (b *JavaScriptBackend) sleep(ctx *Context, r block.Ref, promise string) string {
	ms := math.Round(ctx.Seconds(r, "SECONDS") * 1000)
	if ms <= maxTimeout {
		return ctx.Line("await new %s(resolve => setTimeout(resolve, %s));", promise, b.Float(ms))
	}
	v := ctx.Loop()
	defer ctx.EndLoop()
	total := b.Float(ms)

	var sb strings.Builder
	sb.WriteString(ctx.Line("for (let %s = 0; %s < %s; %s += %d) {", v, v, total, v, maxTimeout))
	ctx.Indent()
	sb.WriteString(ctx.Line("await new %s(resolve => setTimeout(resolve, Math.min(%s - %s, %d)));", promise, total, v, maxTimeout))
	ctx.Dedent()
	sb.WriteString(ctx.Line("}"))
	return sb.String()
}

func (b *JavaScriptBackend) binary(ctx *Context, r block.Ref, class OpClass) string {
	return "(" + ctx.Value(r, "A") + " " + ctx.Operator(r, class) + " " + ctx.Value(r, "B") + ")"
}

func (b *JavaScriptBackend) Compare(ctx *Context, r block.Ref) string {
	return b.binary(ctx, r, OpCompare)
}

func (b *JavaScriptBackend) Operation(ctx *Context, r block.Ref) string {
	return b.binary(ctx, r, OpLogic)
}

func (b *JavaScriptBackend) Negate(ctx *Context, r block.Ref) string {
	return "(!" + ctx.Value(r, "BOOL") + ")"
}

func (b *JavaScriptBackend) Boolean(ctx *Context, r block.Ref) string {
	v, ok := ctx.Field(r, "BOOL")
	return b.Bool(!ok || v.Truth())
}

func (b *JavaScriptBackend) If(ctx *Context, r block.Ref) string {
	var sb strings.Builder
	sb.WriteString(ctx.Line("if (%s) {", ctx.Value(r, "IF0")))
	sb.WriteString(ctx.Body(r, "DO0"))
	sb.WriteString(ctx.Line("}"))
	return sb.String()
}

func (b *JavaScriptBackend) IfElse(ctx *Context, r block.Ref) string {
	var sb strings.Builder
	sb.WriteString(ctx.Line("if (%s) {", ctx.Value(r, "IF0")))
	sb.WriteString(ctx.Body(r, "DO0"))
	sb.WriteString(ctx.Line("} else {"))
	sb.WriteString(ctx.Body(r, "ELSE"))
	sb.WriteString(ctx.Line("}"))
	return sb.String()
}

func (b *JavaScriptBackend) Repeat(ctx *Context, r block.Ref) string {
	times := ctx.Value(r, "TIMES")
	v := ctx.Loop()
	defer ctx.EndLoop()

	var sb strings.Builder
	sb.WriteString(ctx.Line("for (let %s = 0; %s < %s; %s++) {", v, v, times, v))
	sb.WriteString(ctx.Body(r, "DO"))
	sb.WriteString(ctx.Line("}"))
	return sb.String()
}

func (b *JavaScriptBackend) WhileUntil(ctx *Context, r block.Ref) string {
	cond := ctx.Value(r, "BOOL")
	if untilMode(ctx, r) {
		cond = "!" + cond
	}
	var sb strings.Builder
	sb.WriteString(ctx.Line("while (%s) {", cond))
	sb.WriteString(ctx.Body(r, "DO"))
	sb.WriteString(ctx.Line("}"))
	return sb.String()
}

// untilMode reads the MODE field of a while/until loop; unknown modes loop while true.
func untilMode(ctx *Context, r block.Ref) bool {
	switch mode := ctx.FieldText(r, "MODE", "WHILE"); mode {
	case "WHILE":
		return false
	case "UNTIL":
		return true
	default:
		ctx.Warn(config.WarnUnknownOperator, r, "unknown loop mode '%s', using 'WHILE'", mode)
		return false
	}
}

func (b *JavaScriptBackend) get(ctx *Context, r block.Ref, field string) string {
	name := ctx.FieldText(r, field, "")
	if name == "" {
		ctx.Warn(config.WarnMisplaced, r, "variable block without a name")
		return b.Null()
	}
	return ctx.Name(name)
}

func (b *JavaScriptBackend) set(ctx *Context, r block.Ref, field string) string {
	name := ctx.FieldText(r, field, "")
	if name == "" {
		ctx.Warn(config.WarnMisplaced, r, "variable block without a name")
		return ""
	}
	return ctx.Line("%s = %s;", ctx.Name(name), ctx.Value(r, "VALUE"))
}

func (b *JavaScriptBackend) VariablesGet(ctx *Context, r block.Ref) string {
	return b.get(ctx, r, "VAR")
}
func (b *JavaScriptBackend) VariablesSet(ctx *Context, r block.Ref) string {
	return b.set(ctx, r, "VAR")
}
func (b *JavaScriptBackend) GetVariable(ctx *Context, r block.Ref) string {
	return b.get(ctx, r, "VAR_NAME")
}
func (b *JavaScriptBackend) SetVariable(ctx *Context, r block.Ref) string {
	return b.set(ctx, r, "VAR_NAME")
}

// Declarations are hoisted to the top of the file.
func (b *JavaScriptBackend) CreateVariable(ctx *Context, r block.Ref) string { return "" }
func (b *JavaScriptBackend) CreateList(ctx *Context, r block.Ref) string     { return "" }

func (b *JavaScriptBackend) AddToList(ctx *Context, r block.Ref) string {
	name := ctx.FieldText(r, "LIST_NAME", "")
	if name == "" {
		ctx.Warn(config.WarnMisplaced, r, "list block without a name")
		return ""
	}
	return ctx.Line("%s.push(%s);", ctx.Name(name), ctx.Value(r, "VALUE"))
}

func (b *JavaScriptBackend) Text(ctx *Context, r block.Ref) string {
	return b.Quote(ctx.FieldText(r, "TEXT", ""))
}

func (b *JavaScriptBackend) Number(ctx *Context, r block.Ref) string {
	return numberField(ctx, r, b.Float)
}

func numberField(ctx *Context, r block.Ref, spell func(float64) string) string {
	v, ok := ctx.Field(r, "NUM")
	if !ok {
		return spell(0)
	}
	f, ok := v.Float()
	if !ok {
		ctx.Warn(config.WarnMisplaced, r, "'%s' is not a number, using 0", v.Text())
		return spell(0)
	}
	return spell(f)
}

func (b *JavaScriptBackend) Arithmetic(ctx *Context, r block.Ref) string {
	return b.binary(ctx, r, OpArith)
}

func (b *JavaScriptBackend) RandomInt(ctx *Context, r block.Ref) string {
	from, to := ctx.Value(r, "FROM"), ctx.Value(r, "TO")
	return "(Math.floor(Math.random() * (" + to + " - " + from + " + 1)) + " + from + ")"
}

func (b *JavaScriptBackend) TextJoin(ctx *Context, r block.Ref) string {
	return "(String(" + ctx.Value(r, "A") + ") + String(" + ctx.Value(r, "B") + "))"
}

func (b *JavaScriptBackend) TextLength(ctx *Context, r block.Ref) string {
	return "String(" + ctx.Value(r, "VALUE") + ").length"
}

func (b *JavaScriptBackend) Handler(ctx *Context, h *Handler) string {
	spec := h.Event
	var sb strings.Builder
	if b.cfg.IsFeatureEnabled(config.FeatHandlerComments) {
		sb.WriteString(ctx.Line("%s", b.Comment("Event: "+spec.Kind)))
	}
	method := "on"
	if spec.Kind == EventReady {
		method = "once"
	}
	sb.WriteString(ctx.Line("client.%s(%s, async (%s) => {", method, b.Quote(spec.Name), joinParams(spec.Params)))

	ctx.Indent()
	if spec.Kind == EventReady && b.cfg.IsFeatureEnabled(config.FeatReadyLog) {
		sb.WriteString(ctx.Line("console.log(`Logged in as ${%s}`);", b.userTag))
	}
	body := ctx.Bodies(h)
	if spec.Kind == EventMessageCreate {
		sb.WriteString(ctx.Line("if (%s.author.bot) return;", spec.Message))
		if body != "" {
			sb.WriteString("\n")
		}
	}
	sb.WriteString(body)
	ctx.Dedent()

	sb.WriteString(ctx.Line("});"))
	return sb.String()
}

func (b *JavaScriptBackend) intents(ctx *Context) []string {
	intents := []string{"Guilds", "GuildMessages", "MessageContent", "GuildMembers"}
	if ctx.HasEvent("messageReactionAdd") {
		intents = append(intents, "GuildMessageReactions")
	}
	if ctx.HasEvent("voiceStateUpdate") {
		intents = append(intents, "GuildVoiceStates")
	}
	return intents
}

func (b *JavaScriptBackend) clientSetup(ctx *Context) string {
	var sb strings.Builder
	sb.WriteString("const client = new Client({\n")
	ctx.Indent()
	sb.WriteString(ctx.Line("intents: ["))
	ctx.Indent()
	intents := b.intents(ctx)
	for i, intent := range intents {
		sep := ","
		if i == len(intents)-1 {
			sep = ""
		}
		sb.WriteString(ctx.Line("GatewayIntentBits.%s%s", intent, sep))
	}
	ctx.Dedent()
	sb.WriteString(ctx.Line("]"))
	ctx.Dedent()
	sb.WriteString("});\n")
	return sb.String()
}

// declarations renders one `let` per collected name; typeVar/typeList are
// annotations appended to the name (empty for JavaScript).
func (b *JavaScriptBackend) declarations(ctx *Context, typeVar, typeList string) string {
	var sb strings.Builder
	for _, name := range ctx.Names() {
		if ctx.IsList(name) {
			sb.WriteString("let " + name + typeList + " = [];\n")
		} else {
			sb.WriteString("let " + name + typeVar + " = null;\n")
		}
	}
	return sb.String()
}

func (b *JavaScriptBackend) login() string {
	if b.cfg.IsFeatureEnabled(config.FeatEnvToken) {
		return "client.login(process.env." + b.cfg.TokenEnv + ");\n"
	}
	return "client.login(" + b.Quote(b.cfg.TokenPlaceholder) + ");\n"
}

func discordImports(ctx *Context, extra ...string) string {
	names := append([]string{"Client", "GatewayIntentBits"}, ctx.Imports()...)
	names = append(names, extra...)
	sort.Strings(names)
	out := names[:0]
	for i, n := range names {
		if i == 0 || n != names[i-1] {
			out = append(out, n)
		}
	}
	return "{ " + strings.Join(out, ", ") + " }"
}

func (b *JavaScriptBackend) File(ctx *Context, handlers string) string {
	var sb strings.Builder
	sb.WriteString("const " + discordImports(ctx) + " = require(\"discord.js\");\n\n")
	sb.WriteString(b.clientSetup(ctx))
	if decls := b.declarations(ctx, "", ""); decls != "" {
		sb.WriteString("\n" + decls)
	}
	sb.WriteString("\n" + handlers + "\n")
	sb.WriteString(b.login())
	return sb.String()
}
