package interpunct

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	panelSessionIDLength = 8

	editorBusyMessage    = "The editor is still working on your previous click."
	editorExpiredMessage = "This panel editor has expired. Use /panel to start a new one."
)

// PanelSession is a stored panel editor session. The session ID is
// embedded in every component custom ID on the editor message, so clicks
// can be routed back to the stored state after a restart.
type PanelSession struct {
	ModelStringID
	ModelUnixTime
	ChannelID string `json:"channel_id" gorm:"not null"`
	MessageID string `json:"message_id" gorm:"type:string"`
	GuildID   string `json:"guild_id" gorm:"type:string"`
	Initiator string `json:"initiator" gorm:"not null"`
	State     string `json:"state" gorm:"type:string"`
}

func (p PanelSession) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", p.ID),
		slog.String("channel_id", p.ChannelID),
		slog.String("message_id", p.MessageID),
		slog.String("guild_id", p.GuildID),
		slog.String("initiator", p.Initiator),
	)
}

// EditorContext carries everything a button callback may need: the
// interaction, the session row, the decoded state and the editor itself.
type EditorContext struct {
	Ctx         context.Context
	Session     *PanelSession
	State       *PanelState
	Handler     InteractionHandler
	Interaction *discordgo.InteractionCreate
	UserID      string
	GuildID     string
	Member      *discordgo.Member
	Editor      *PanelEditor
	Logger      *slog.Logger

	deferred bool
}

// PanelEditor owns panel editor sessions: creating them, dispatching
// component clicks to screen callbacks, and applying their responses.
type PanelEditor struct {
	db      DBI
	writeDB DBI
	panels  *PanelStore
	guilds  *GuildStore
	inputs  *InputRequests
	session DiscordSessionHandler
	logger  *slog.Logger

	// botUserID is set once the gateway connection is ready
	botUserID string
	botMu     sync.RWMutex

	// inflight tracks sessions with an async handler running, so a
	// second click can't start overlapping work on the same session
	inflight   map[string]struct{}
	inflightMu sync.Mutex
}

func NewPanelEditor(
	db DBI,
	writeDB DBI,
	panels *PanelStore,
	guilds *GuildStore,
	inputs *InputRequests,
	session DiscordSessionHandler,
	logger *slog.Logger,
) *PanelEditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PanelEditor{
		db:       db,
		writeDB:  writeDB,
		panels:   panels,
		guilds:   guilds,
		inputs:   inputs,
		session:  session,
		logger:   logger.With(loggerNameKey, "panel_editor"),
		inflight: map[string]struct{}{},
	}
}

func (e *PanelEditor) setBotUserID(id string) {
	e.botMu.Lock()
	defer e.botMu.Unlock()
	e.botUserID = id
}

func (e *PanelEditor) getBotUserID() string {
	e.botMu.RLock()
	defer e.botMu.RUnlock()
	return e.botUserID
}

func (e *PanelEditor) tryAcquire(sessionID string) bool {
	e.inflightMu.Lock()
	defer e.inflightMu.Unlock()
	if _, busy := e.inflight[sessionID]; busy {
		return false
	}
	e.inflight[sessionID] = struct{}{}
	return true
}

func (e *PanelEditor) release(sessionID string) {
	e.inflightMu.Lock()
	defer e.inflightMu.Unlock()
	delete(e.inflight, sessionID)
}

func ephemeralMessage(content string) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}
}

// OpenSession responds to a /panel command with a fresh editor message
// and stores its session.
func (e *PanelEditor) OpenSession(
	ctx context.Context,
	handler InteractionHandler,
	state *PanelState,
) error {
	i := handler.GetInteraction()

	sessionID, err := generateRandomHexString(panelSessionIDLength)
	if err != nil {
		return fmt.Errorf("error generating session ID: %w", err)
	}

	session := &PanelSession{
		ModelStringID: ModelStringID{ID: sessionID},
		ChannelID:     i.ChannelID,
		GuildID:       i.GuildID,
		Initiator:     state.Initiator,
	}

	rendered := renderPanelEditor(state)
	err = handler.Respond(
		ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:    rendered.content,
				Components: rendered.components(sessionID),
			},
		},
	)
	if err != nil {
		return fmt.Errorf("error sending editor message: %w", err)
	}

	if msg, msgErr := handler.GetResponse(ctx); msgErr == nil && msg != nil {
		session.MessageID = msg.ID
	}

	stateData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("error encoding editor state: %w", err)
	}
	session.State = string(stateData)

	if _, err = e.writeDB.Create(ctx, session); err != nil {
		return fmt.Errorf("error storing editor session: %w", err)
	}
	e.logger.InfoContext(ctx, "opened panel editor session", "session", session)
	return nil
}

// loadSession returns the stored session and decoded state for the
// given session ID.
func (e *PanelEditor) loadSession(ctx context.Context, sessionID string) (
	*PanelSession,
	*PanelState,
	error,
) {
	var session PanelSession
	err := e.db.DB().WithContext(ctx).
		Where("id = ?", sessionID).
		First(&session).Error
	if err != nil {
		return nil, nil, err
	}
	var state PanelState
	if err = json.Unmarshal([]byte(session.State), &state); err != nil {
		return nil, nil, fmt.Errorf("error decoding editor state: %w", err)
	}
	if state.Rows == nil {
		state.Rows = []ButtonRow{}
	}
	return &session, &state, nil
}

func (e *PanelEditor) persistState(ectx *EditorContext) error {
	data, err := json.Marshal(ectx.State)
	if err != nil {
		return fmt.Errorf("error encoding editor state: %w", err)
	}
	ectx.Session.State = string(data)
	_, err = e.writeDB.Updates(
		ectx.Ctx,
		ectx.Session,
		map[string]any{"state": ectx.Session.State},
	)
	return err
}

// HandleComponent dispatches a component click on a panel editor
// message. Returns false if the custom ID doesn't belong to the editor.
func (e *PanelEditor) HandleComponent(
	ctx context.Context,
	handler InteractionHandler,
) bool {
	i := handler.GetInteraction()
	customID := i.MessageComponentData().CustomID
	sessionID, key, ok := parsePanelCustomID(customID)
	if !ok {
		return false
	}
	logger := handler.Logger().With(
		"session_id", sessionID,
		"component_key", key,
	)

	user := getDiscordUser(i)
	if user == nil {
		logger.ErrorContext(ctx, "no user on component interaction")
		return true
	}

	session, state, err := e.loadSession(ctx, sessionID)
	if err != nil {
		logger.WarnContext(ctx, "unknown editor session", tint.Err(err))
		respondErr := handler.Respond(
			ctx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: ephemeralMessage(editorExpiredMessage),
			},
		)
		if respondErr != nil {
			logger.ErrorContext(ctx, "error responding", tint.Err(respondErr))
		}
		return true
	}

	ectx := &EditorContext{
		Ctx:         ctx,
		Session:     session,
		State:       state,
		Handler:     handler,
		Interaction: i,
		UserID:      user.ID,
		GuildID:     session.GuildID,
		Member:      i.Member,
		Editor:      e,
		Logger:      logger,
	}

	if key == reloadKey {
		if ectx.UserID == state.Initiator {
			e.inputs.Cancel(ectx.UserID)
		}
		e.applyResponse(ectx, updateStateResponse{state: state})
		return true
	}

	rendered := renderPanelEditor(state)
	callback := rendered.findCallback(key)
	if callback == nil {
		logger.WarnContext(ctx, "no callback for component key")
		e.applyResponse(ectx, nil)
		return true
	}

	e.applyResponse(ectx, callback(ectx))
	return true
}

// applyResponse applies a callback's response to the interaction and the
// stored session, chasing async handlers until a terminal response.
func (e *PanelEditor) applyResponse(
	ectx *EditorContext,
	resp handleInteractionResponse,
) {
	for {
		switch r := resp.(type) {
		case nil:
			// acknowledge without changing anything
			if !ectx.deferred {
				e.respond(
					ectx, &discordgo.InteractionResponse{
						Type: discordgo.InteractionResponseDeferredMessageUpdate,
					},
				)
			}
			return
		case errorResponse:
			e.replyHidden(ectx, ephemeralMessage(r.message))
			return
		case replyHiddenResponse:
			r.data.Flags |= discordgo.MessageFlagsEphemeral
			e.replyHidden(ectx, r.data)
			return
		case updateStateResponse:
			ectx.State = r.state
			if err := e.persistState(ectx); err != nil {
				ectx.Logger.ErrorContext(
					ectx.Ctx, "error persisting editor state", tint.Err(err),
				)
			}
			rendered := renderPanelEditor(r.state)
			e.updateEditorMessage(ectx, rendered.content, rendered.components(ectx.Session.ID))
			return
		case replaceContentResponse:
			e.updateEditorMessage(ectx, r.content, r.components)
			return
		case asyncResponse:
			if !e.tryAcquire(ectx.Session.ID) {
				e.replyHidden(ectx, ephemeralMessage(editorBusyMessage))
				return
			}
			if !ectx.deferred {
				e.respond(
					ectx, &discordgo.InteractionResponse{
						Type: discordgo.InteractionResponseDeferredMessageUpdate,
					},
				)
				ectx.deferred = true
			}
			resp = r.handler(ectx)
			e.release(ectx.Session.ID)
		default:
			ectx.Logger.ErrorContext(
				ectx.Ctx,
				"unhandled editor response type",
				"response", fmt.Sprintf("%T", resp),
			)
			return
		}
	}
}

func (e *PanelEditor) respond(
	ectx *EditorContext,
	response *discordgo.InteractionResponse,
) {
	if err := ectx.Handler.Respond(ectx.Ctx, response); err != nil {
		ectx.Logger.ErrorContext(
			ectx.Ctx, "error responding to component", tint.Err(err),
		)
	}
}

// replyHidden sends an ephemeral message, as the interaction response if
// still unacknowledged, otherwise as a followup.
func (e *PanelEditor) replyHidden(
	ectx *EditorContext,
	data *discordgo.InteractionResponseData,
) {
	data.Flags |= discordgo.MessageFlagsEphemeral
	if !ectx.deferred {
		e.respond(
			ectx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: data,
			},
		)
		return
	}
	_, err := ectx.Handler.Followup(
		ectx.Ctx, &discordgo.WebhookParams{
			Content:    data.Content,
			Components: data.Components,
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	)
	if err != nil {
		ectx.Logger.ErrorContext(
			ectx.Ctx, "error sending followup", tint.Err(err),
		)
	}
}

// updateEditorMessage replaces the editor message content and
// components, via the interaction response if still unacknowledged,
// otherwise by editing the deferred response.
func (e *PanelEditor) updateEditorMessage(
	ectx *EditorContext,
	content string,
	components []discordgo.MessageComponent,
) {
	if !ectx.deferred {
		e.respond(
			ectx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseUpdateMessage,
				Data: &discordgo.InteractionResponseData{
					Content:    content,
					Components: components,
				},
			},
		)
		return
	}
	_, err := ectx.Handler.Edit(
		ectx.Ctx, &discordgo.WebhookEdit{
			Content:    &content,
			Components: &components,
		},
	)
	if err != nil {
		ectx.Logger.ErrorContext(
			ectx.Ctx, "error editing editor message", tint.Err(err),
		)
	}
}

// editMessageDirect re-renders the editor message outside any
// interaction, used after a text reply satisfies an input request.
func (e *PanelEditor) editMessageDirect(ectx *EditorContext) {
	rendered := renderPanelEditor(ectx.State)
	components := rendered.components(ectx.Session.ID)
	_, err := e.session.ChannelMessageEditComplex(
		&discordgo.MessageEdit{
			ID:         ectx.Session.MessageID,
			Channel:    ectx.Session.ChannelID,
			Content:    &rendered.content,
			Components: &components,
		},
	)
	if err != nil {
		ectx.Logger.ErrorContext(
			ectx.Ctx, "error editing editor message", tint.Err(err),
		)
	}
}

// PruneSessions deletes editor sessions that haven't been touched in
// maxAgeMillis, run at startup.
func (e *PanelEditor) PruneSessions(ctx context.Context, cutoffMillis int64) error {
	rows, err := e.writeDB.Delete(
		&PanelSession{},
		"updated_at < ? AND updated_at > 0",
		cutoffMillis,
	)
	if err != nil {
		return err
	}
	if rows > 0 {
		e.logger.InfoContext(ctx, "pruned stale editor sessions", "count", rows)
	}
	return nil
}

// memberCanManageBot reports whether the member may change bot settings
// in the guild: either the Manage Server permission, or the guild's
// configured manage-bot role.
func (e *PanelEditor) memberCanManageBot(
	ctx context.Context,
	guildID string,
	member *discordgo.Member,
) bool {
	if member == nil || guildID == "" {
		return false
	}
	if member.Permissions&discordgo.PermissionManageServer != 0 {
		return true
	}
	settings, err := e.guilds.Get(ctx, guildID)
	if err != nil || settings.ManageBotRole == "" {
		return false
	}
	for _, roleID := range member.Roles {
		if roleID == settings.ManageBotRole {
			return true
		}
	}
	return false
}

// memberPermissions computes a member's permission bits from their
// roles. Interaction members already carry computed permissions; members
// fetched from the API don't.
func memberPermissions(member *discordgo.Member, roles []*discordgo.Role) int64 {
	if member == nil {
		return 0
	}
	if member.Permissions != 0 {
		return member.Permissions
	}
	var perms int64
	for _, roleID := range member.Roles {
		for _, role := range roles {
			if role.ID == roleID {
				perms |= role.Permissions
			}
		}
	}
	return perms
}

// highestRolePosition returns the highest position of any role the
// member has.
func highestRolePosition(member *discordgo.Member, roles []*discordgo.Role) int {
	highest := 0
	for _, roleID := range member.Roles {
		for _, role := range roles {
			if role.ID == roleID && role.Position > highest {
				highest = role.Position
			}
		}
	}
	return highest
}

// memberCanManageRole reports whether the member can grant or remove the
// target role: Manage Roles permission (or Administrator), with a higher
// role than the target.
func memberCanManageRole(
	member *discordgo.Member,
	roles []*discordgo.Role,
	target *discordgo.Role,
) bool {
	if member == nil || target == nil {
		return false
	}
	perms := memberPermissions(member, roles)
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	if perms&discordgo.PermissionManageRoles == 0 {
		return false
	}
	return highestRolePosition(member, roles) > target.Position
}

func findRole(roles []*discordgo.Role, roleID string) *discordgo.Role {
	for _, role := range roles {
		if role.ID == roleID {
			return role
		}
	}
	return nil
}

// buildPanelMessage validates and renders a saved panel as a sendable
// message. A non-empty user-facing problem string means the panel can't
// be sent as-is.
func (e *PanelEditor) buildPanelMessage(
	ctx context.Context,
	guildID string,
	member *discordgo.Member,
	panel SavedPanel,
) (*discordgo.MessageSend, string, error) {
	var roles []*discordgo.Role
	hasRoleActions := false
	for _, row := range panel.Rows {
		for _, btn := range row {
			if btn.Action.Kind == ActionRole {
				hasRoleActions = true
			}
		}
	}

	if hasRoleActions {
		if guildID == "" {
			return nil, "Role buttons only work on a server.", nil
		}
		var err error
		roles, err = e.session.GuildRoles(guildID)
		if err != nil {
			return nil, "", fmt.Errorf("error fetching guild roles: %w", err)
		}

		var botMember *discordgo.Member
		if botID := e.getBotUserID(); botID != "" {
			botMember, err = e.session.GuildMember(guildID, botID)
			if err != nil {
				return nil, "", fmt.Errorf("error fetching bot member: %w", err)
			}
		}

		for _, row := range panel.Rows {
			for _, btn := range row {
				if btn.Action.Kind != ActionRole {
					continue
				}
				role := findRole(roles, btn.Action.RoleID)
				if role == nil {
					return nil, fmt.Sprintf(
						"Role <@&%s> (@%s) does not exist on this server.",
						btn.Action.RoleID, btn.Action.RoleName,
					), nil
				}
				if !memberCanManageRole(member, roles, role) {
					return nil, fmt.Sprintf(
						"You do not have permission to give people <@&%s>.\n"+
							"You need permission to Manage Roles and your "+
							"highest role must be above <@&%s>.",
						role.ID, role.ID,
					), nil
				}
				if botMember != nil && !memberCanManageRole(botMember, roles, role) {
					return nil, fmt.Sprintf(
						"I do not have permission to give people <@&%s>.\n"+
							"I need permission to Manage Roles and my "+
							"highest role must be above <@&%s>.",
						role.ID, role.ID,
					), nil
				}
			}
		}
	}

	components := make([]discordgo.MessageComponent, 0, len(panel.Rows))
	for r, row := range panel.Rows {
		if len(row) == 0 {
			continue
		}
		buttons := make([]discordgo.MessageComponent, 0, len(row))
		for c, btn := range row {
			btnLabel := btn.Label
			if btnLabel == "" {
				btnLabel = zeroWidthSpace
			}
			if btn.Action.Kind == ActionLink {
				btnURL := btn.Action.URL
				if reason := isValidURL(btnURL); reason != "" {
					btnURL = invalidURLFallback(reason)
				}
				buttons = append(
					buttons, discordgo.Button{
						Label:    btnLabel,
						Style:    discordgo.LinkButton,
						Disabled: btn.Disabled,
						Emoji:    componentEmoji(btn.Emoji),
						URL:      btnURL,
					},
				)
				continue
			}
			buttons = append(
				buttons, discordgo.Button{
					Label:    btnLabel,
					Style:    btn.Color.Style(),
					Disabled: btn.Disabled,
					Emoji:    componentEmoji(btn.Emoji),
					CustomID: panelButtonCustomID(btn, r, c),
				},
			)
		}
		components = append(components, discordgo.ActionsRow{Components: buttons})
	}

	content := panel.Content
	if content == "" {
		content = zeroWidthSpace
	}

	return &discordgo.MessageSend{
		Content:    content,
		Components: components,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		},
	}, "", nil
}

// savePanelScreen loads the save/load/send lists and switches to the
// save_panel screen.
func savePanelScreen(
	state *PanelState,
	mode SavePanelMode,
) func(ectx *EditorContext) handleInteractionResponse {
	return func(ectx *EditorContext) handleInteractionResponse {
		e := ectx.Editor

		var guildPanels []PanelMeta
		guildAllowed := false
		if ectx.GuildID != "" {
			guildAllowed = e.memberCanManageBot(ectx.Ctx, ectx.GuildID, ectx.Member)
			if guildAllowed {
				var err error
				guildPanels, err = e.panels.List(ectx.Ctx, ectx.GuildID)
				if err != nil {
					ectx.Logger.ErrorContext(
						ectx.Ctx, "error listing guild panels", tint.Err(err),
					)
					return errorResponse{message: "Something went wrong loading panels."}
				}
			}
		}

		userPanels, err := e.panels.List(ectx.Ctx, state.Initiator)
		if err != nil {
			ectx.Logger.ErrorContext(
				ectx.Ctx, "error listing user panels", tint.Err(err),
			)
			return errorResponse{message: "Something went wrong loading panels."}
		}

		state.EditMode = EditMode{
			Kind:         EditModeSavePanel,
			Mode:         mode,
			GuildPanels:  guildPanels,
			GuildAllowed: guildAllowed,
			UserPanels:   userPanels,
		}
		return updateStateResponse{state: state}
	}
}

// saveOwnerID resolves a save target to a panel owner ID.
func saveOwnerID(ectx *EditorContext, to string) (string, string) {
	if to == saveTargetGuild {
		if ectx.GuildID == "" {
			return "", "Server panels only work on a server."
		}
		return ectx.GuildID, ""
	}
	return ectx.State.Initiator, ""
}

// writePanel unconditionally writes the current panel to the given
// target and switches to the saved screen.
func writePanel(
	state *PanelState,
	to string,
	name string,
) func(ectx *EditorContext) handleInteractionResponse {
	return func(ectx *EditorContext) handleInteractionResponse {
		e := ectx.Editor
		ownerID, problem := saveOwnerID(ectx, to)
		if problem != "" {
			return errorResponse{message: problem}
		}
		if to == saveTargetGuild &&
			!e.memberCanManageBot(ectx.Ctx, ectx.GuildID, ectx.Member) {
			return errorResponse{
				message: "You need permission to manage the bot to save to " +
					"this server. (\"manage server\" permission)",
			}
		}

		now, err := e.panels.Save(
			ectx.Ctx, ownerID, name, ectx.UserID, state.savedPanel(),
		)
		if err != nil {
			ectx.Logger.ErrorContext(ectx.Ctx, "error saving panel", tint.Err(err))
			return errorResponse{message: "Something went wrong saving the panel."}
		}

		state.LastSaved = now
		state.LastSavedAs = &SaveTarget{To: to, Name: name}
		state.EditMode = EditMode{Kind: EditModeSaved}
		return updateStateResponse{state: state}
	}
}

// savePanel saves to an existing target, routing through the overwrite
// confirmation if the stored panel changed since this session last
// saved it.
func savePanel(
	state *PanelState,
	to string,
	name string,
) func(ectx *EditorContext) handleInteractionResponse {
	return func(ectx *EditorContext) handleInteractionResponse {
		e := ectx.Editor
		ownerID, problem := saveOwnerID(ectx, to)
		if problem != "" {
			return errorResponse{message: problem}
		}

		existing, err := e.panels.Get(ectx.Ctx, ownerID, name)
		switch {
		case err == nil && existing.LastUpdated != state.LastSaved:
			state.EditMode = EditMode{
				Kind:        EditModeConfirmOverwrite,
				Name:        existing.Name,
				LastUpdated: existing.LastUpdated,
				CreatedBy:   existing.CreatedBy,
				SaveTo:      to,
			}
			return updateStateResponse{state: state}
		case err == nil, errors.Is(err, ErrPanelNotFound):
			return writePanel(state, to, name)(ectx)
		default:
			ectx.Logger.ErrorContext(ectx.Ctx, "error checking panel", tint.Err(err))
			return errorResponse{message: "Something went wrong saving the panel."}
		}
	}
}

// saveAsPanel handles a named save from the name input: an existing
// panel becomes an overwrite confirmation, a new name saves directly.
func saveAsPanel(
	state *PanelState,
	to string,
	name string,
) func(ectx *EditorContext) handleInteractionResponse {
	return func(ectx *EditorContext) handleInteractionResponse {
		e := ectx.Editor
		ownerID, problem := saveOwnerID(ectx, to)
		if problem != "" {
			return errorResponse{message: problem}
		}
		if to == saveTargetGuild &&
			!e.memberCanManageBot(ectx.Ctx, ectx.GuildID, ectx.Member) {
			return errorResponse{
				message: "You need permission to manage the bot to save to " +
					"this server. (\"manage server\" permission)",
			}
		}

		existing, err := e.panels.Get(ectx.Ctx, ownerID, name)
		switch {
		case err == nil:
			state.EditMode = EditMode{
				Kind:        EditModeConfirmOverwrite,
				Name:        existing.Name,
				LastUpdated: existing.LastUpdated,
				CreatedBy:   existing.CreatedBy,
				SaveTo:      to,
			}
			return updateStateResponse{state: state}
		case errors.Is(err, ErrPanelNotFound):
			return writePanel(state, to, name)(ectx)
		default:
			ectx.Logger.ErrorContext(ectx.Ctx, "error checking panel", tint.Err(err))
			return errorResponse{message: "Something went wrong saving the panel."}
		}
	}
}

// pickSavedPanel handles a click on a panel in the save/load/send lists.
func pickSavedPanel(
	state *PanelState,
	keyPrefix string,
	meta PanelMeta,
) func(ectx *EditorContext) handleInteractionResponse {
	to := saveTargetUser
	if keyPrefix == "SAVEg" {
		to = saveTargetGuild
	}
	return func(ectx *EditorContext) handleInteractionResponse {
		e := ectx.Editor
		ownerID, problem := saveOwnerID(ectx, to)
		if problem != "" {
			return errorResponse{message: problem}
		}

		switch state.EditMode.Mode {
		case SavePanelModeLoad:
			panel, loaded, err := e.panels.Load(ectx.Ctx, ownerID, meta.Name)
			if err != nil {
				ectx.Logger.ErrorContext(ectx.Ctx, "error loading panel", tint.Err(err))
				return errorResponse{message: "Something went wrong loading the panel."}
			}
			state.applySavedPanel(panel)
			state.LastSaved = loaded.LastUpdated
			state.LastSavedAs = &SaveTarget{To: to, Name: meta.Name}
			state.EditMode = EditMode{Kind: EditModeHome}
			return updateStateResponse{state: state}
		case SavePanelModeSend:
			panel, _, err := e.panels.Load(ectx.Ctx, ownerID, meta.Name)
			if err != nil {
				ectx.Logger.ErrorContext(ectx.Ctx, "error loading panel", tint.Err(err))
				return errorResponse{message: "Something went wrong loading the panel."}
			}
			return sendPanel(state, panel)(ectx)
		default:
			state.EditMode = EditMode{
				Kind:        EditModeConfirmOverwrite,
				Name:        meta.Name,
				LastUpdated: meta.LastUpdated,
				CreatedBy:   meta.CreatedBy,
				SaveTo:      to,
			}
			return updateStateResponse{state: state}
		}
	}
}

// previewPanel shows the panel as it would be sent, visible only to the
// clicking user.
func previewPanel(
	panel SavedPanel,
) func(ectx *EditorContext) handleInteractionResponse {
	return func(ectx *EditorContext) handleInteractionResponse {
		msg, problem, err := ectx.Editor.buildPanelMessage(
			ectx.Ctx, ectx.GuildID, ectx.Member, panel,
		)
		if err != nil {
			ectx.Logger.ErrorContext(ectx.Ctx, "error building panel", tint.Err(err))
			return errorResponse{message: "Something went wrong building the panel."}
		}
		if problem != "" {
			return errorResponse{message: problem}
		}
		return replyHiddenResponse{
			data: &discordgo.InteractionResponseData{
				Content:    msg.Content,
				Components: msg.Components,
			},
		}
	}
}

// previewStoredPanel loads a saved panel and shows it to the clicking
// user.
func previewStoredPanel(
	state *PanelState,
	to string,
	name string,
) func(ectx *EditorContext) handleInteractionResponse {
	return func(ectx *EditorContext) handleInteractionResponse {
		ownerID, problem := saveOwnerID(ectx, to)
		if problem != "" {
			return errorResponse{message: problem}
		}
		panel, _, err := ectx.Editor.panels.Load(ectx.Ctx, ownerID, name)
		if err != nil {
			ectx.Logger.ErrorContext(ectx.Ctx, "error loading panel", tint.Err(err))
			return errorResponse{message: "Something went wrong loading the panel."}
		}
		return previewPanel(panel)(ectx)
	}
}

// sendPanel validates the panel, sends it to the session's channel, and
// closes the editor.
func sendPanel(
	state *PanelState,
	panel SavedPanel,
) func(ectx *EditorContext) handleInteractionResponse {
	return func(ectx *EditorContext) handleInteractionResponse {
		e := ectx.Editor
		msg, problem, err := e.buildPanelMessage(
			ectx.Ctx, ectx.GuildID, ectx.Member, panel,
		)
		if err != nil {
			ectx.Logger.ErrorContext(ectx.Ctx, "error building panel", tint.Err(err))
			return errorResponse{message: "Something went wrong building the panel."}
		}
		if problem != "" {
			return errorResponse{message: problem}
		}
		if _, err = e.session.ChannelMessageSendComplex(
			ectx.Session.ChannelID, msg,
		); err != nil {
			ectx.Logger.ErrorContext(ectx.Ctx, "error sending panel", tint.Err(err))
			return errorResponse{message: "Something went wrong sending the panel."}
		}
		state.EditMode = EditMode{Kind: EditModeClose}
		return updateStateResponse{state: state}
	}
}

// HandleGrantRole handles a click on a role button in a sent panel,
// toggling the role on the clicking member.
func (e *PanelEditor) HandleGrantRole(
	ctx context.Context,
	handler InteractionHandler,
	roleID string,
) {
	i := handler.GetInteraction()
	logger := handler.Logger().With("role_id", roleID)

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

	if i.GuildID == "" || i.Member == nil {
		reply("Role buttons only work on a server.")
		return
	}
	user := getDiscordUser(i)
	if user == nil {
		logger.ErrorContext(ctx, "no user on role button interaction")
		return
	}

	roles, err := e.session.GuildRoles(i.GuildID)
	if err != nil {
		logger.ErrorContext(ctx, "error fetching guild roles", tint.Err(err))
		reply("Something went wrong fetching this server's roles.")
		return
	}
	role := findRole(roles, roleID)
	if role == nil {
		reply(
			fmt.Sprintf(
				"Role <@&%s> does not exist on this server.", roleID,
			),
		)
		return
	}

	hasRole := false
	for _, memberRole := range i.Member.Roles {
		if memberRole == roleID {
			hasRole = true
			break
		}
	}

	if hasRole {
		err = e.session.GuildMemberRoleRemove(i.GuildID, user.ID, roleID)
	} else {
		err = e.session.GuildMemberRoleAdd(i.GuildID, user.ID, roleID)
	}
	if err != nil {
		logger.ErrorContext(ctx, "error toggling role", tint.Err(err))
		reply(
			fmt.Sprintf(
				"I could not change <@&%s> for you. I need permission to "+
					"Manage Roles and my highest role must be above <@&%s>.",
				roleID, roleID,
			),
		)
		return
	}

	if hasRole {
		reply(fmt.Sprintf("Removed <@&%s>.", roleID))
	} else {
		reply(fmt.Sprintf("Gave you <@&%s>.", roleID))
	}
	logger.InfoContext(
		ctx, "toggled panel role",
		"user_id", user.ID,
		"added", !hasRole,
	)
}
