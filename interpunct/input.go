package interpunct

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// InputKind is the kind of value an editor screen is waiting for.
type InputKind string

const (
	InputKindText  InputKind = "text"
	InputKindRole  InputKind = "role"
	InputKindEmoji InputKind = "emoji"
)

// InputValue is a parsed reply to an input request.
type InputValue struct {
	Kind  InputKind
	Text  string
	Role  *discordgo.Role
	Emoji string
}

// pendingInput is a registered input request: the next matching message
// from the user resumes the captured editor session.
type pendingInput struct {
	kind    InputKind
	session *PanelSession
	state   *PanelState
	resolve func(ectx *EditorContext, v InputValue) handleInteractionResponse
}

// InputRequests tracks which users the editor is waiting on for a text,
// role, or emoji reply. Requests are kept in memory only and keyed by
// user ID: a newer request replaces an older one, and pending requests
// do not survive a restart. The prompt's Cancel button always
// re-renders the stored screen, so a dropped request is recoverable.
type InputRequests struct {
	mu      sync.Mutex
	pending map[string]pendingInput
}

func NewInputRequests() *InputRequests {
	return &InputRequests{pending: map[string]pendingInput{}}
}

// Request registers an input request for the user, replacing any
// existing one.
func (r *InputRequests) Request(userID string, p pendingInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[userID] = p
}

// Cancel drops any pending request for the user.
func (r *InputRequests) Cancel(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, userID)
}

// Take removes and returns the user's pending request if it was made in
// the given channel. A pending request in another channel is left
// untouched.
func (r *InputRequests) Take(userID, channelID string) (pendingInput, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[userID]
	if !ok || p.session.ChannelID != channelID {
		return pendingInput{}, false
	}
	delete(r.pending, userID)
	return p, true
}

// promptComponents renders the single Cancel button shown under an
// input prompt.
func promptComponents(sessionID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Cancel",
					Style:    discordgo.DangerButton,
					CustomID: panelCustomID(sessionID, reloadKey),
				},
			},
		},
	}
}

// requestInput replaces the editor message with a prompt and registers
// the continuation to run on the user's next message in the channel.
func requestInput(
	state *PanelState,
	kind InputKind,
	prompt string,
	resolve func(ectx *EditorContext, v InputValue) handleInteractionResponse,
) callbackStep {
	return func(ectx *EditorContext) handleInteractionResponse {
		ectx.Editor.inputs.Request(
			ectx.UserID, pendingInput{
				kind:    kind,
				session: ectx.Session,
				state:   state,
				resolve: resolve,
			},
		)
		return replaceContentResponse{
			content:    prompt,
			components: promptComponents(ectx.Session.ID),
		}
	}
}

func requestContentInput(state *PanelState) callbackStep {
	return requestInput(
		state, InputKindText,
		"Reply with the message content for this panel.",
		func(_ *EditorContext, v InputValue) handleInteractionResponse {
			if len(v.Text) > maxPanelContentLength {
				return errorResponse{
					message: fmt.Sprintf(
						"Content must be at most %d characters",
						maxPanelContentLength,
					),
				}
			}
			state.Content = v.Text
			return updateStateResponse{state: state}
		},
	)
}

func requestLabelInput(state *PanelState, btn *PanelButton) callbackStep {
	return requestInput(
		state, InputKindText,
		"Reply with the button label.",
		func(_ *EditorContext, v InputValue) handleInteractionResponse {
			if problem := isValidLabel(v.Text); problem != "" {
				return errorResponse{message: problem}
			}
			btn.Label = v.Text
			return updateStateResponse{state: state}
		},
	)
}

func requestEmojiInput(state *PanelState, btn *PanelButton) callbackStep {
	return requestInput(
		state, InputKindEmoji,
		"Reply with an emoji.",
		func(_ *EditorContext, v InputValue) handleInteractionResponse {
			btn.Emoji = v.Emoji
			return updateStateResponse{state: state}
		},
	)
}

func requestURLInput(state *PanelState, btn *PanelButton) callbackStep {
	return requestInput(
		state, InputKindText,
		"Reply with the URL. It must start with `http://` or `https://`.",
		func(_ *EditorContext, v InputValue) handleInteractionResponse {
			if problem := isValidURL(v.Text); problem != "" {
				return errorResponse{message: problem}
			}
			btn.Action.URL = v.Text
			return updateStateResponse{state: state}
		},
	)
}

func requestActionRoleInput(state *PanelState, btn *PanelButton) callbackStep {
	return requestInput(
		state, InputKindRole,
		"Reply with a role name or @mention.",
		func(_ *EditorContext, v InputValue) handleInteractionResponse {
			return asyncResponse{
				handler: func(ectx *EditorContext) handleInteractionResponse {
					role := v.Role
					roles, err := ectx.Editor.session.GuildRoles(ectx.GuildID)
					if err != nil {
						ectx.Logger.ErrorContext(
							ectx.Ctx,
							"error fetching guild roles",
							tint.Err(err),
						)
						return errorResponse{
							message: "Something went wrong fetching this server's roles.",
						}
					}
					if !memberCanManageRole(ectx.Member, roles, role) {
						return errorResponse{
							message: fmt.Sprintf(
								"You do not have permission to give people "+
									"<@&%s>.\nYou need permission to Manage "+
									"Roles and your highest role must be "+
									"above <@&%s>.",
								role.ID, role.ID,
							),
						}
					}
					if botID := ectx.Editor.getBotUserID(); botID != "" {
						botMember, memberErr := ectx.Editor.session.GuildMember(
							ectx.GuildID, botID,
						)
						if memberErr == nil &&
							!memberCanManageRole(botMember, roles, role) {
							return errorResponse{
								message: fmt.Sprintf(
									"I do not have permission to give people "+
										"<@&%s>.\nI need permission to Manage "+
										"Roles and my highest role must be "+
										"above <@&%s>.",
									role.ID, role.ID,
								),
							}
						}
					}
					btn.Action.RoleID = role.ID
					btn.Action.RoleName = role.Name
					return updateStateResponse{state: state}
				},
			}
		},
	)
}

func requestPanelNameInput(state *PanelState, to string) callbackStep {
	return requestInput(
		state, InputKindText,
		fmt.Sprintf(
			"Reply with a name for the panel (up to %d characters).",
			maxPanelNameLength,
		),
		func(_ *EditorContext, v InputValue) handleInteractionResponse {
			name := strings.TrimSpace(v.Text)
			if problem := isValidPanelName(name); problem != "" {
				return errorResponse{message: problem}
			}
			if name == "" {
				return errorResponse{message: "Name must not be empty"}
			}
			return asyncResponse{handler: saveAsPanel(state, to, name)}
		},
	)
}

var (
	roleMentionPattern  = regexp.MustCompile(`^<@&(\d+)>$`)
	emojiMentionPattern = regexp.MustCompile(`^<a?:\w+:(\d+)>$`)
	snowflakePattern    = regexp.MustCompile(`^\d+$`)
)

// parseInputValue interprets a message as the value an input request is
// waiting for. A non-empty problem string means the reply couldn't be
// understood.
func (e *PanelEditor) parseInputValue(
	kind InputKind,
	m *discordgo.MessageCreate,
) (InputValue, string) {
	content := strings.TrimSpace(m.Content)
	switch kind {
	case InputKindText:
		return InputValue{Kind: kind, Text: m.Content}, ""
	case InputKindEmoji:
		if match := emojiMentionPattern.FindStringSubmatch(content); match != nil {
			return InputValue{Kind: kind, Emoji: match[1]}, ""
		}
		if snowflakePattern.MatchString(content) {
			return InputValue{Kind: kind, Emoji: content}, ""
		}
		if content == "" {
			return InputValue{}, "Reply with a single emoji."
		}
		return InputValue{Kind: kind, Emoji: content}, ""
	case InputKindRole:
		var roleID string
		if match := roleMentionPattern.FindStringSubmatch(content); match != nil {
			roleID = match[1]
		} else if snowflakePattern.MatchString(content) {
			roleID = content
		}
		roles, err := e.session.GuildRoles(m.GuildID)
		if err != nil {
			return InputValue{}, "Something went wrong fetching this server's roles."
		}
		if roleID != "" {
			if role := findRole(roles, roleID); role != nil {
				return InputValue{Kind: kind, Role: role}, ""
			}
			return InputValue{}, fmt.Sprintf(
				"Role <@&%s> does not exist on this server.", roleID,
			)
		}
		name := strings.TrimPrefix(content, "@")
		for _, role := range roles {
			if strings.EqualFold(role.Name, name) {
				return InputValue{Kind: kind, Role: role}, ""
			}
		}
		return InputValue{}, fmt.Sprintf(
			"I couldn't find a role named %q on this server.", name,
		)
	default:
		return InputValue{}, "Something went wrong."
	}
}

// HandleInputMessage checks an incoming message against pending input
// requests and, on a match, resumes the editor session with the parsed
// value. Returns true if the message was consumed.
func (e *PanelEditor) HandleInputMessage(
	ectx *EditorContext,
	m *discordgo.MessageCreate,
) bool {
	p, ok := e.inputs.Take(m.Author.ID, m.ChannelID)
	if !ok {
		return false
	}

	ectx.Session = p.session
	ectx.State = p.state
	ectx.UserID = m.Author.ID
	ectx.GuildID = p.session.GuildID
	ectx.Member = m.Member
	ectx.Logger = ectx.Logger.With(
		"session_id", p.session.ID,
		"input_kind", string(p.kind),
	)

	reply := func(content string) {
		_, err := e.session.ChannelMessageSendReply(
			m.ChannelID, content, m.Reference(),
		)
		if err != nil {
			ectx.Logger.ErrorContext(
				ectx.Ctx, "error sending input reply", tint.Err(err),
			)
		}
	}

	value, problem := e.parseInputValue(p.kind, m)
	if problem != "" {
		reply(problem)
		e.editMessageDirect(ectx)
		return true
	}

	resp := p.resolve(ectx, value)
	for {
		async, isAsync := resp.(asyncResponse)
		if !isAsync {
			break
		}
		if !e.tryAcquire(p.session.ID) {
			reply(editorBusyMessage)
			return true
		}
		resp = async.handler(ectx)
		e.release(p.session.ID)
	}

	switch r := resp.(type) {
	case nil:
		e.editMessageDirect(ectx)
	case updateStateResponse:
		ectx.State = r.state
		if err := e.persistState(ectx); err != nil {
			ectx.Logger.ErrorContext(
				ectx.Ctx, "error persisting editor state", tint.Err(err),
			)
		}
		e.editMessageDirect(ectx)
		reply("✓ Set.")
	case errorResponse:
		reply(r.message)
		e.editMessageDirect(ectx)
	case replaceContentResponse:
		components := r.components
		_, err := e.session.ChannelMessageEditComplex(
			&discordgo.MessageEdit{
				ID:         ectx.Session.MessageID,
				Channel:    ectx.Session.ChannelID,
				Content:    &r.content,
				Components: &components,
			},
		)
		if err != nil {
			ectx.Logger.ErrorContext(
				ectx.Ctx, "error editing editor message", tint.Err(err),
			)
		}
	case replyHiddenResponse:
		// no interaction to attach an ephemeral reply to
		reply(r.data.Content)
		e.editMessageDirect(ectx)
	}
	return true
}
