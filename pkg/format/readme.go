package format

import (
	"fmt"
	"strings"

	"github.com/xplshn/botblocks/pkg/config"
)

type toolchain struct {
	requirements []string
	install      string
	run          string
}

var toolchains = map[config.Language]toolchain{
	config.JavaScript: {[]string{"Node.js 16.9.0 or newer", "npm or yarn"}, "npm install discord.js", "node bot.js"},
	config.TypeScript: {[]string{"Node.js 16.9.0 or newer", "npm or yarn"}, "npm install discord.js typescript ts-node dotenv", "ts-node bot.ts"},
	config.Python:     {[]string{"Python 3.8 or newer", "pip"}, "pip install discord.py python-dotenv", "python bot.py"},
}

// Readme renders setup instructions for a generated bot. The date is supplied
// by the caller so that the output stays reproducible.
func Readme(code string, lang config.Language, botName, date string) string {
	if botName == "" {
		botName = "MyDiscordBot"
	}
	tc := toolchains[lang]

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", botName)
	sb.WriteString("## Overview\n")
	sb.WriteString("This Discord bot was generated from a block program.\n\n")
	if date != "" {
		fmt.Fprintf(&sb, "Generated: %s\n", date)
	}
	fmt.Fprintf(&sb, "Language: %s\n\n", lang)

	sb.WriteString("## Setup\n\n### 1. Requirements\n")
	for _, r := range tc.requirements {
		fmt.Fprintf(&sb, "- %s\n", r)
	}
	fmt.Fprintf(&sb, "\n### 2. Install\n```bash\n%s\n```\n\n", tc.install)
	sb.WriteString("### 3. Configure\n")
	sb.WriteString("1. Create a bot in the Discord Developer Portal\n")
	sb.WriteString("2. Copy its token\n")
	sb.WriteString("3. Replace `YOUR_BOT_TOKEN_HERE` in the code, or set `DISCORD_TOKEN` when the code reads it from the environment\n\n")
	fmt.Fprintf(&sb, "### 4. Run\n```bash\n%s\n```\n\n", tc.run)

	fmt.Fprintf(&sb, "## Generated code\n```%s\n%s\n```\n\n", lang, strings.TrimRight(code, "\n"))
	sb.WriteString("## Notes\n")
	sb.WriteString("- Never share the bot token.\n")
	sb.WriteString("- Grant the bot only the permissions it needs.\n")
	sb.WriteString("- Sending large volumes of messages may break Discord's terms of service.\n")
	return sb.String()
}
