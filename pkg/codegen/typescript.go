package codegen

import (
	"sort"
	"strings"

	"github.com/xplshn/botblocks/pkg/block"
	"github.com/xplshn/botblocks/pkg/config"
)

// TypeScriptBackend emits the discord.js bot as an ES module with typed
// handler parameters. Everything not overridden here is shared with JavaScript.
type TypeScriptBackend struct {
	*JavaScriptBackend
}

type tsEvent struct {
	params []string
	types  []string // discord.js type imports needed by params
}

var tsEvents = map[string]tsEvent{
	"messageCreate":      {[]string{"message: Message"}, []string{"Message"}},
	"messageUpdate":      {[]string{"oldMessage: Message | PartialMessage", "newMessage: Message | PartialMessage"}, []string{"Message", "PartialMessage"}},
	"messageDelete":      {[]string{"message: Message | PartialMessage"}, []string{"Message", "PartialMessage"}},
	"messageReactionAdd": {[]string{"reaction: MessageReaction | PartialMessageReaction", "user: User | PartialUser"}, []string{"MessageReaction", "PartialMessageReaction", "PartialUser", "User"}},
	"guildMemberAdd":     {[]string{"member: GuildMember"}, []string{"GuildMember"}},
	"guildMemberRemove":  {[]string{"member: GuildMember | PartialGuildMember"}, []string{"GuildMember", "PartialGuildMember"}},
	"voiceStateUpdate":   {[]string{"oldState: VoiceState", "newState: VoiceState"}, []string{"VoiceState"}},
}

var tsReserved = func() map[string]bool {
	m := wordSet("any", "as", "declare", "global", "keyof", "module", "namespace", "never",
		"readonly", "type", "unknown", "dotenv")
	for w := range jsReserved {
		m[w] = true
	}
	return m
}()

func NewTypeScriptBackend(cfg *config.Config) *TypeScriptBackend {
	js := NewJavaScriptBackend(cfg)
	js.reserved = tsReserved
	js.userTag = "client.user?.tag"
	return &TypeScriptBackend{JavaScriptBackend: js}
}

func (b *TypeScriptBackend) Language() config.Language { return config.TypeScript }

func (b *TypeScriptBackend) Event(kind string) EventSpec {
	spec := b.JavaScriptBackend.Event(kind)
	if ev, ok := tsEvents[kind]; ok {
		spec.Params = ev.params
	} else if !spec.Known {
		spec.Params = []string{"...args: unknown[]"}
	}
	return spec
}

func (b *TypeScriptBackend) Wait(ctx *Context, r block.Ref) string {
	return b.sleep(ctx, r, "Promise<void>")
}

func (b *TypeScriptBackend) File(ctx *Context, handlers string) string {
	var types []string
	for kind, ev := range tsEvents {
		if ctx.HasEvent(kind) {
			types = append(types, ev.types...)
		}
	}
	sort.Strings(types)

	var sb strings.Builder
	sb.WriteString("import " + discordImports(ctx, types...) + " from \"discord.js\";\n")
	sb.WriteString("import dotenv from \"dotenv\";\n\n")
	sb.WriteString("dotenv.config();\n\n")

	sb.WriteString("declare global {\n")
	ctx.Indent()
	sb.WriteString(ctx.Line("namespace NodeJS {"))
	ctx.Indent()
	sb.WriteString(ctx.Line("interface ProcessEnv {"))
	ctx.Indent()
	sb.WriteString(ctx.Line("%s: string;", b.cfg.TokenEnv))
	ctx.Dedent()
	sb.WriteString(ctx.Line("}"))
	ctx.Dedent()
	sb.WriteString(ctx.Line("}"))
	ctx.Dedent()
	sb.WriteString("}\n\n")

	sb.WriteString(b.clientSetup(ctx))
	if decls := b.declarations(ctx, ": any", ": any[]"); decls != "" {
		sb.WriteString("\n" + decls)
	}
	sb.WriteString("\n" + handlers + "\n")
	sb.WriteString(b.login())
	return sb.String()
}
