package interpunct

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	emojiSubcommandRestrict   = "restrict"
	emojiSubcommandUnrestrict = "unrestrict"
	emojiSubcommandInspect    = "inspect"
	emojiCommandEmojiOption   = "emoji"
	emojiCommandRoleOption    = "role"
)

// parseEmojiReference extracts a custom emoji ID from a mention like
// `<:name:id>` or `<a:name:id>`, or from a bare snowflake.
func parseEmojiReference(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if match := emojiMentionPattern.FindStringSubmatch(s); match != nil {
		return match[1], true
	}
	if snowflakePattern.MatchString(s) {
		return s, true
	}
	return "", false
}

func roleMentions(roleIDs []string) []string {
	mentions := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		mentions = append(mentions, fmt.Sprintf("<@&%s>", id))
	}
	return mentions
}

func formatEmojiInspect(e *discordgo.Emoji) string {
	restricted := "(everyone)"
	if len(e.Roles) > 0 {
		restricted = andList(roleMentions(e.Roles))
	}
	animated := "no"
	if e.Animated {
		animated = "yes"
	}
	return strings.Join(
		[]string{
			fmt.Sprintf("**Emoji**: %s `:%s:`", e.MessageFormat(), e.Name),
			fmt.Sprintf("**ID**: `%s`", e.ID),
			fmt.Sprintf("**Animated**: %s", animated),
			fmt.Sprintf("**Restricted to**: %s", restricted),
		}, "\n",
	)
}

// handleCommandEmoji restricts, unrestricts, or inspects a guild emoji.
// Restricting an emoji limits it to members holding one of its roles.
func (ip *Interpunct) handleCommandEmoji(
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
		reply("Something went wrong.")
		return
	}
	sub := options[0]
	logger = logger.With("subcommand", sub.Name)
	opts := subcommandOptions(sub)

	emojiOpt, ok := opts[emojiCommandEmojiOption]
	if !ok {
		reply(ip.messages.Get(msgEmojiNotFound))
		return
	}
	emojiID, ok := parseEmojiReference(emojiOpt.StringValue())
	if !ok {
		reply(ip.messages.Get(msgEmojiNotFound))
		return
	}
	emoji, err := ip.editor.session.GuildEmoji(i.GuildID, emojiID)
	if err != nil || emoji == nil {
		logger.WarnContext(
			ctx, "emoji lookup failed", tint.Err(err), "emoji_id", emojiID,
		)
		reply(ip.messages.Get(msgEmojiNotFound))
		return
	}

	if sub.Name == emojiSubcommandInspect {
		reply(formatEmojiInspect(emoji))
		return
	}

	if i.Member == nil ||
		i.Member.Permissions&discordgo.PermissionManageGuildExpressions == 0 {
		reply(ip.messages.Get(msgManageEmojiRequired))
		return
	}

	edit := func(roles []string) bool {
		_, editErr := ip.editor.session.GuildEmojiEdit(
			i.GuildID, emoji.ID,
			&discordgo.EmojiParams{Name: emoji.Name, Roles: roles},
		)
		if editErr != nil {
			logger.ErrorContext(ctx, "error editing emoji", tint.Err(editErr))
			reply("Something went wrong updating that emoji. I need permission to manage emojis.")
			return false
		}
		return true
	}

	switch sub.Name {
	case emojiSubcommandRestrict:
		roleOpt, hasRole := opts[emojiCommandRoleOption]
		if !hasRole {
			reply("Pick a role to restrict the emoji to.")
			return
		}
		role := roleOpt.RoleValue(nil, "")
		newRoles := emoji.Roles
		found := false
		for _, id := range newRoles {
			if id == role.ID {
				found = true
				break
			}
		}
		if !found {
			newRoles = append(newRoles, role.ID)
		}
		if !edit(newRoles) {
			return
		}
		reply(
			fmt.Sprintf(
				"✓ %s can now only be used by members with %s.",
				emoji.MessageFormat(),
				andList(roleMentions(newRoles)),
			),
		)
	case emojiSubcommandUnrestrict:
		roleOpt, hasRole := opts[emojiCommandRoleOption]
		if !hasRole {
			if !edit([]string{}) {
				return
			}
			reply(
				fmt.Sprintf(
					"✓ %s can now be used by everyone.", emoji.MessageFormat(),
				),
			)
			return
		}
		role := roleOpt.RoleValue(nil, "")
		newRoles := make([]string, 0, len(emoji.Roles))
		for _, id := range emoji.Roles {
			if id != role.ID {
				newRoles = append(newRoles, id)
			}
		}
		if !edit(newRoles) {
			return
		}
		if len(newRoles) == 0 {
			reply(
				fmt.Sprintf(
					"✓ %s can now be used by everyone.", emoji.MessageFormat(),
				),
			)
			return
		}
		reply(
			fmt.Sprintf(
				"✓ %s is no longer restricted to %s. Still restricted to %s.",
				emoji.MessageFormat(),
				fmt.Sprintf("<@&%s>", role.ID),
				andList(roleMentions(newRoles)),
			),
		)
	default:
		reply("Something went wrong.")
	}
}
