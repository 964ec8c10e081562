package interpunct

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	settingsSubcommandShow           = "show"
	settingsSubcommandPrefix         = "prefix"
	settingsSubcommandFun            = "fun"
	settingsSubcommandLogging        = "logging"
	settingsSubcommandUnknownCommand = "unknown-command"
	settingsSubcommandManageBotRole  = "manage-bot-role"
	settingsSubcommandQuotePastebin  = "quote-pastebin"
)

func formatGuildSettings(settings *GuildSettings) string {
	manageBotRole := "(not set)"
	if settings.ManageBotRole != "" {
		manageBotRole = fmt.Sprintf("<@&%s>", settings.ManageBotRole)
	}
	quotePastebin := "(not set)"
	if settings.QuotePastebin != "" {
		quotePastebin = fmt.Sprintf("`%s`", settings.QuotePastebin)
	}
	return strings.Join(
		[]string{
			"**Server settings**",
			fmt.Sprintf("Prefix: `%s`", settings.Prefix),
			fmt.Sprintf("Fun commands: %s", enabledDisabled(settings.FunEnabled)),
			fmt.Sprintf("Message logging: %s", enabledDisabled(settings.Logging)),
			fmt.Sprintf(
				"Unknown command messages: `%s`",
				settings.UnknownCommandMessages,
			),
			fmt.Sprintf("Manage-bot role: %s", manageBotRole),
			fmt.Sprintf("Quote pastebin: %s", quotePastebin),
		}, "\n",
	)
}

func enabledDisabled(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// handleCommandSettings shows or changes per-guild settings. Everything
// except `show` requires permission to manage the bot, and all replies
// are ephemeral.
func (ip *Interpunct) handleCommandSettings(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	logger := handler.Logger()

	reply := func(content string) {
		err := handler.Respond(
			ctx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: ephemeralMessage(content),
			},
		)
		if err != nil {
			logger.ErrorContext(ctx, "error responding", tint.Err(err))
		}
	}

	if i.GuildID == "" {
		reply(ip.messages.Get(msgGuildOnly))
		return
	}

	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		reply(ip.messages.Get(msgGuildOnly))
		return
	}
	sub := options[0]
	logger = logger.With("subcommand", sub.Name)

	if sub.Name == settingsSubcommandShow {
		settings, err := ip.guilds.Get(ctx, i.GuildID)
		if err != nil {
			logger.ErrorContext(ctx, "error loading settings", tint.Err(err))
			reply("Something went wrong loading this server's settings.")
			return
		}
		reply(formatGuildSettings(settings))
		return
	}

	if !ip.editor.memberCanManageBot(ctx, i.GuildID, i.Member) {
		reply(ip.messages.Get(msgManageBotRequired))
		return
	}

	opts := subcommandOptions(sub)
	var updates map[string]any
	var setting, value string

	switch sub.Name {
	case settingsSubcommandPrefix:
		prefix := strings.TrimSpace(opts["prefix"].StringValue())
		if prefix == "" || len(prefix) > 16 {
			reply("Prefix must be 1 to 16 characters.")
			return
		}
		updates = map[string]any{"prefix": prefix}
		setting, value = "prefix", fmt.Sprintf("`%s`", prefix)
	case settingsSubcommandFun:
		enabled := opts["enabled"].BoolValue()
		updates = map[string]any{"fun_enabled": enabled}
		setting, value = "fun commands", enabledDisabled(enabled)
	case settingsSubcommandLogging:
		enabled := opts["enabled"].BoolValue()
		updates = map[string]any{"logging": enabled}
		setting, value = "message logging", enabledDisabled(enabled)
	case settingsSubcommandUnknownCommand:
		visibility := UnknownCommandVisibility(opts["visibility"].StringValue())
		switch visibility {
		case UnknownCommandAlways, UnknownCommandAdmins, UnknownCommandNever:
		//
		default:
			reply("Visibility must be one of: always, admins, never.")
			return
		}
		updates = map[string]any{"unknown_command_messages": visibility}
		setting, value = "unknown command messages", fmt.Sprintf("`%s`", visibility)
	case settingsSubcommandManageBotRole:
		role := opts["role"].RoleValue(nil, "")
		if role == nil {
			reply("That role could not be resolved.")
			return
		}
		updates = map[string]any{"manage_bot_role": role.ID}
		setting, value = "the manage-bot role", fmt.Sprintf("<@&%s>", role.ID)
	case settingsSubcommandQuotePastebin:
		pasteID := strings.TrimSpace(opts["id"].StringValue())
		if pasteID == "" {
			reply("Pastebin ID must not be empty.")
			return
		}
		updates = map[string]any{"quote_pastebin": pasteID}
		setting, value = "the quote pastebin", fmt.Sprintf("`%s`", pasteID)
	default:
		logger.WarnContext(ctx, "unknown settings subcommand")
		reply(fmt.Sprintf("Unknown setting %q.", sub.Name))
		return
	}

	if _, err := ip.guilds.Update(ctx, i.GuildID, updates); err != nil {
		logger.ErrorContext(ctx, "error updating settings", tint.Err(err))
		reply("Something went wrong updating this server's settings.")
		return
	}
	reply(ip.messages.Get(msgSettingUpdated, "setting", setting, "value", value))
}
