package interpunct

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// customIDPrefixPanel marks component custom IDs belonging to the panel
// editor. The full custom ID is "PANL:<session id>:<key>", so any editor
// message can be routed back to its stored session after a restart.
const customIDPrefixPanel = "PANL"

// reloadKey is the component key used by input prompt cancel buttons.
// Clicking it drops any pending input request and re-renders the
// editor's current screen.
const reloadKey = "*RELOAD*"

// zeroWidthSpace renders an "empty" button label, since discord rejects
// actually-empty labels on non-link buttons.
const zeroWidthSpace = "​"

// handleInteractionResponse is the result of a button callback: what the
// editor should do to the message (and session) next.
type handleInteractionResponse interface {
	isHandleInteractionResponse()
}

// updateStateResponse persists the new state and re-renders the editor
// message from it.
type updateStateResponse struct {
	state *PanelState
}

// errorResponse shows an ephemeral error to the clicking user, leaving
// the editor message untouched.
type errorResponse struct {
	message string
}

// replyHiddenResponse sends an ephemeral reply with arbitrary message
// data, leaving the editor message untouched.
type replyHiddenResponse struct {
	data *discordgo.InteractionResponseData
}

// replaceContentResponse replaces the editor message without changing
// the stored state, used for input prompts.
type replaceContentResponse struct {
	content    string
	components []discordgo.MessageComponent
}

// asyncResponse defers the interaction and runs the handler off the
// gateway goroutine. The handler's own response is then applied.
type asyncResponse struct {
	handler func(ectx *EditorContext) handleInteractionResponse
}

func (updateStateResponse) isHandleInteractionResponse()    {}
func (errorResponse) isHandleInteractionResponse()          {}
func (replyHiddenResponse) isHandleInteractionResponse()    {}
func (replaceContentResponse) isHandleInteractionResponse() {}
func (asyncResponse) isHandleInteractionResponse()          {}

// callbackStep is one link in a button callback chain. Steps run in
// order until one returns a non-nil response.
type callbackStep func(ectx *EditorContext) handleInteractionResponse

// renderAction is what a rendered button does: either an external link,
// or a keyed callback chain.
type renderAction struct {
	link     string
	key      string
	callback callbackStep
}

func linkAction(url string) renderAction {
	return renderAction{link: url}
}

// callbackAction builds a keyed callback that runs each step in order,
// returning the first non-nil response. A chain that falls through every
// step leaves the message unchanged.
func callbackAction(key string, steps ...callbackStep) renderAction {
	return renderAction{
		key: key,
		callback: func(ectx *EditorContext) handleInteractionResponse {
			for _, step := range steps {
				if resp := step(ectx); resp != nil {
					return resp
				}
			}
			return nil
		},
	}
}

// requireAuthor guards a callback chain so only the user that opened the
// editor can use it.
func requireAuthor(state *PanelState) callbackStep {
	return func(ectx *EditorContext) handleInteractionResponse {
		if ectx.UserID != state.Initiator {
			return errorResponse{message: "This is not your panel."}
		}
		return nil
	}
}

// renderButton is one button in a rendered editor screen.
type renderButton struct {
	label    string
	color    ButtonColor
	emoji    string
	disabled bool
	action   renderAction
}

func mkbtn(label string, color ButtonColor, disabled bool, action renderAction) renderButton {
	return renderButton{
		label:    label,
		color:    color,
		disabled: disabled,
		action:   action,
	}
}

type renderRow []renderButton

// renderResult is a fully rendered editor screen: message content plus
// the button grid, with callbacks attached.
type renderResult struct {
	content string
	rows    []renderRow
}

func panelCustomID(sessionID, key string) string {
	return fmt.Sprintf(customIDFormat, customIDPrefixPanel, sessionID, key)
}

// parsePanelCustomID splits a panel editor custom ID into session ID and
// component key. Returns ok=false for custom IDs from other features.
func parsePanelCustomID(customID string) (sessionID, key string, ok bool) {
	prefix, rest, found := strings.Cut(customID, ":")
	if !found || prefix != customIDPrefixPanel {
		return "", "", false
	}
	sessionID, key, found = strings.Cut(rest, ":")
	if !found {
		return "", "", false
	}
	return sessionID, key, true
}

func componentEmoji(emoji string) *discordgo.ComponentEmoji {
	if emoji == "" {
		return nil
	}
	if isSnowflake(emoji) {
		return &discordgo.ComponentEmoji{ID: emoji}
	}
	return &discordgo.ComponentEmoji{Name: emoji}
}

func isSnowflake(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// components converts the rendered screen into discord message
// components. Buttons without a callback key are given positional keys
// so every custom ID in the message stays unique.
func (r renderResult) components(sessionID string) []discordgo.MessageComponent {
	rows := make([]discordgo.MessageComponent, 0, len(r.rows))
	for rowIdx, row := range r.rows {
		buttons := make([]discordgo.MessageComponent, 0, len(row))
		for colIdx, btn := range row {
			label := btn.label
			if label == "" {
				label = zeroWidthSpace
			}
			if btn.action.link != "" {
				buttons = append(
					buttons, discordgo.Button{
						Label:    label,
						Style:    discordgo.LinkButton,
						Disabled: btn.disabled,
						Emoji:    componentEmoji(btn.emoji),
						URL:      btn.action.link,
					},
				)
				continue
			}
			key := btn.action.key
			if key == "" {
				key = fmt.Sprintf("L%d,%d", rowIdx, colIdx)
			}
			buttons = append(
				buttons, discordgo.Button{
					Label:    label,
					Style:    btn.color.Style(),
					Disabled: btn.disabled,
					Emoji:    componentEmoji(btn.emoji),
					CustomID: panelCustomID(sessionID, key),
				},
			)
		}
		rows = append(rows, discordgo.ActionsRow{Components: buttons})
	}
	return rows
}

// findCallback returns the callback registered under the given component
// key, or nil if the key isn't present in this render.
func (r renderResult) findCallback(key string) callbackStep {
	for _, row := range r.rows {
		for _, btn := range row {
			if btn.action.key == key && btn.action.callback != nil {
				return btn.action.callback
			}
		}
	}
	return nil
}
