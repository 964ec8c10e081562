package interpunct

import (
	"fmt"
	"strings"
)

// Messages is the catalog of templated reply texts. Templates use
// `{name}` placeholders; unknown placeholders are left in place so a
// missing variable is visible instead of silently blank.
type Messages struct {
	templates map[string]string
}

const (
	msgFunDisabled         = "fun_disabled"
	msgNotYourPanel        = "not_your_panel"
	msgGuildOnly           = "guild_only"
	msgManageBotRequired   = "manage_bot_required"
	msgManageEmojiRequired = "manage_emoji_required"
	msgUnknownCommand      = "unknown_command"
	msgQuoteNotConfigured  = "quote_not_configured"
	msgQuoteNoMatches      = "quote_no_matches"
	msgSettingUpdated      = "setting_updated"
	msgEmojiNotFound       = "emoji_not_found"
)

var defaultMessageTemplates = map[string]string{
	msgFunDisabled:         "Fun commands are disabled on this server. An admin can enable them with {prefix}settings fun.",
	msgNotYourPanel:        "This is not your panel.",
	msgGuildOnly:           "This command only works on a server.",
	msgManageBotRequired:   "You need permission to manage the bot to do that. (\"manage server\" permission)",
	msgManageEmojiRequired: "You need permission to manage emojis to do that. (\"manage expressions\" permission)",
	msgUnknownCommand:      "Unknown command `{command}`. Try `{prefix}help`.",
	msgQuoteNotConfigured:  "No quotes are configured for this server. An admin can set a pastebin with /settings quote-pastebin.",
	msgQuoteNoMatches:      "No quotes matched `{search}`.",
	msgSettingUpdated:      "✓ Set {setting} to {value}.",
	msgEmojiNotFound:       "I couldn't find that emoji on this server.",
}

// NewMessages returns the default message catalog.
func NewMessages() *Messages {
	templates := make(map[string]string, len(defaultMessageTemplates))
	for name, tmpl := range defaultMessageTemplates {
		templates[name] = tmpl
	}
	return &Messages{templates: templates}
}

// Get renders the named template with the given placeholder values.
// Values are passed as alternating name/value pairs.
func (m *Messages) Get(name string, pairs ...string) string {
	tmpl, ok := m.templates[name]
	if !ok {
		return fmt.Sprintf("missing message template %q", name)
	}
	return substitutePlaceholders(tmpl, pairs...)
}

func substitutePlaceholders(tmpl string, pairs ...string) string {
	if len(pairs) == 0 {
		return tmpl
	}
	replacements := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		replacements = append(replacements, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(replacements...).Replace(tmpl)
}
