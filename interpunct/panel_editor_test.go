package interpunct

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanelEditor_OpenSession(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)
	ctx := context.Background()

	user := newDiscordUser(t)
	interaction := newCommandInteraction(t, user, DiscordSlashCommandPanel)
	handler := newStubInteractionHandler(t, interaction)

	state := &PanelState{
		Initiator: user.ID,
		Rows:      []ButtonRow{},
		EditMode:  EditMode{Kind: EditModeHome},
	}
	require.NoError(t, editor.OpenSession(ctx, handler, state))

	var resp *discordgo.InteractionResponse
	select {
	case resp = <-handler.callRespond:
	default:
		t.Fatal("expected an interaction response")
	}
	require.Equal(
		t,
		discordgo.InteractionResponseChannelMessageWithSource,
		resp.Type,
	)
	require.NotNil(t, resp.Data)
	assert.NotEmpty(t, resp.Data.Components)

	var sessions []PanelSession
	require.NoError(t, editor.db.DB().Find(&sessions).Error)
	require.Len(t, sessions, 1)
	session := sessions[0]
	assert.Equal(t, interaction.ChannelID, session.ChannelID)
	assert.Equal(t, interaction.GuildID, session.GuildID)
	assert.Equal(t, user.ID, session.Initiator)
	assert.Equal(t, handler.responseMessage.ID, session.MessageID)
	assert.NotEmpty(t, session.State)

	// every custom ID on the message routes back to the stored session
	row := resp.Data.Components[0].(discordgo.ActionsRow)
	btn := row.Components[0].(discordgo.Button)
	gotSession, _, ok := parsePanelCustomID(btn.CustomID)
	require.True(t, ok)
	assert.Equal(t, session.ID, gotSession)
}

func TestPanelEditor_HandleComponent_IgnoresOtherCustomIDs(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)
	user := newDiscordUser(t)

	for _, customID := range []string{
		"GRANTROLE|123|0,0",
		"NONE|0,0",
		"something-else",
	} {
		handler := newStubInteractionHandler(
			t, newComponentInteraction(t, user, customID),
		)
		assert.False(
			t,
			editor.HandleComponent(context.Background(), handler),
			"expected %q to be ignored", customID,
		)
	}
}

func TestPanelEditor_HandleComponent_ExpiredSession(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)
	user := newDiscordUser(t)

	handler := newStubInteractionHandler(
		t, newComponentInteraction(t, user, panelCustomID("gone", "SAVE")),
	)
	require.True(t, editor.HandleComponent(context.Background(), handler))

	resp := <-handler.callRespond
	require.NotNil(t, resp.Data)
	assert.Equal(t, editorExpiredMessage, resp.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
}

// openTestSession stores a session row for the given state and returns
// its ID.
func openTestSession(
	t testing.TB,
	editor *PanelEditor,
	state *PanelState,
) *PanelSession {
	t.Helper()
	stateData, err := json.Marshal(state)
	require.NoError(t, err)
	session := &PanelSession{
		ModelStringID: ModelStringID{ID: fmt.Sprintf("sess_%s", t.Name())},
		ChannelID:     fmt.Sprintf("channel_%s", t.Name()),
		GuildID:       fmt.Sprintf("guild_%s", t.Name()),
		Initiator:     state.Initiator,
		State:         string(stateData),
	}
	_, err = editor.writeDB.Create(context.Background(), session)
	require.NoError(t, err)
	return session
}

func TestPanelEditor_HandleComponent_RequireAuthor(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)
	owner := newDiscordUser(t)

	session := openTestSession(
		t, editor, &PanelState{
			Initiator: owner.ID,
			Rows:      []ButtonRow{},
			EditMode:  EditMode{Kind: EditModeHome},
		},
	)

	intruder := &discordgo.User{ID: "someone_else"}
	handler := newStubInteractionHandler(
		t,
		newComponentInteraction(
			t, intruder, panelCustomID(session.ID, "EDIT_BUTTONS"),
		),
	)
	require.True(t, editor.HandleComponent(context.Background(), handler))

	resp := <-handler.callRespond
	require.Equal(
		t,
		discordgo.InteractionResponseChannelMessageWithSource,
		resp.Type,
	)
	assert.Equal(t, "This is not your panel.", resp.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)

	// session state unchanged
	_, state, err := editor.loadSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, EditModeHome, state.EditMode.Kind)
}

func TestPanelEditor_HandleComponent_ScreenChangePersists(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)
	user := newDiscordUser(t)

	session := openTestSession(
		t, editor, &PanelState{
			Initiator: user.ID,
			Rows:      []ButtonRow{},
			EditMode:  EditMode{Kind: EditModeHome},
		},
	)

	handler := newStubInteractionHandler(
		t,
		newComponentInteraction(
			t, user, panelCustomID(session.ID, "EDIT_BUTTONS"),
		),
	)
	require.True(t, editor.HandleComponent(context.Background(), handler))

	// the editor message is replaced in the interaction response
	resp := <-handler.callRespond
	require.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	require.NotNil(t, resp.Data)

	// the new screen survives a reload, as it would a restart
	_, state, err := editor.loadSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, EditModeRoot, state.EditMode.Kind)
}

func TestPanelEditor_HandleComponent_UnknownKeyAcknowledges(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)
	user := newDiscordUser(t)

	session := openTestSession(
		t, editor, &PanelState{
			Initiator: user.ID,
			Rows:      []ButtonRow{},
			EditMode:  EditMode{Kind: EditModeHome},
		},
	)

	handler := newStubInteractionHandler(
		t,
		newComponentInteraction(
			t, user, panelCustomID(session.ID, "FROM_ANOTHER_SCREEN"),
		),
	)
	require.True(t, editor.HandleComponent(context.Background(), handler))

	resp := <-handler.callRespond
	assert.Equal(
		t, discordgo.InteractionResponseDeferredMessageUpdate, resp.Type,
	)
}

func TestPanelEditor_HandleComponent_ReloadCancelsInput(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)
	user := newDiscordUser(t)

	state := &PanelState{
		Initiator: user.ID,
		Rows:      []ButtonRow{},
		EditMode:  EditMode{Kind: EditModeHome},
	}
	session := openTestSession(t, editor, state)
	editor.inputs.Request(
		user.ID, pendingInput{kind: InputKindText, session: session, state: state},
	)

	handler := newStubInteractionHandler(
		t,
		newComponentInteraction(t, user, panelCustomID(session.ID, reloadKey)),
	)
	require.True(t, editor.HandleComponent(context.Background(), handler))

	resp := <-handler.callRespond
	require.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)

	_, ok := editor.inputs.Take(user.ID, session.ChannelID)
	assert.False(t, ok, "pending input should have been canceled")
}

func TestPanelEditor_HandleComponent_ReloadKeepsOthersInput(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)
	owner := newDiscordUser(t)

	state := &PanelState{
		Initiator: owner.ID,
		Rows:      []ButtonRow{},
		EditMode:  EditMode{Kind: EditModeHome},
	}
	session := openTestSession(t, editor, state)
	editor.inputs.Request(
		owner.ID,
		pendingInput{kind: InputKindText, session: session, state: state},
	)

	// a cancel click from someone else re-renders but leaves the
	// initiator's pending input alone
	handler := newStubInteractionHandler(
		t,
		newComponentInteraction(
			t, &discordgo.User{ID: "someone_else"},
			panelCustomID(session.ID, reloadKey),
		),
	)
	require.True(t, editor.HandleComponent(context.Background(), handler))
	<-handler.callRespond

	_, ok := editor.inputs.Take(owner.ID, session.ChannelID)
	assert.True(t, ok)
}

func TestPanelEditor_TryAcquire(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)
	sessionID := t.Name()

	require.True(t, editor.tryAcquire(sessionID))
	assert.False(t, editor.tryAcquire(sessionID))
	assert.True(t, editor.tryAcquire("other_session"))

	editor.release(sessionID)
	assert.True(t, editor.tryAcquire(sessionID))
}

func TestPanelEditor_PruneSessions(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)
	ctx := context.Background()

	stale := &PanelSession{
		ModelStringID: ModelStringID{ID: "stale"},
		ChannelID:     "c",
		Initiator:     t.Name(),
		State:         "{}",
	}
	_, err := editor.writeDB.Create(ctx, stale)
	require.NoError(t, err)

	fresh := &PanelSession{
		ModelStringID: ModelStringID{ID: "fresh"},
		ChannelID:     "c",
		Initiator:     t.Name(),
		State:         "{}",
	}
	_, err = editor.writeDB.Create(ctx, fresh)
	require.NoError(t, err)

	// age the stale row past the cutoff
	_, err = editor.writeDB.Updates(
		ctx, stale, map[string]any{
			"updated_at": time.Now().Add(-48 * time.Hour).UnixMilli(),
		},
	)
	require.NoError(t, err)

	cutoff := time.Now().Add(-24 * time.Hour).UnixMilli()
	require.NoError(t, editor.PruneSessions(ctx, cutoff))

	var remaining []PanelSession
	require.NoError(t, editor.db.DB().Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "fresh", remaining[0].ID)
}

func TestSavePanel_RoutesToOverwriteConfirmation(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)
	ctx := context.Background()
	user := newDiscordUser(t)

	stored, err := editor.panels.Save(
		ctx, user.ID, "welcome", "someone_else", SavedPanel{Content: "old"},
	)
	require.NoError(t, err)

	state := &PanelState{
		Initiator: user.ID,
		LastSaved: stored - 50,
		Rows:      []ButtonRow{},
		EditMode:  EditMode{Kind: EditModeSavePanel, Mode: SavePanelModeSave},
	}
	ectx := &EditorContext{
		Ctx:    ctx,
		State:  state,
		UserID: user.ID,
		Editor: editor,
		Logger: slog.Default(),
	}

	// the stored panel changed since this session last saved, so the
	// save routes to the confirmation screen without writing
	resp := savePanel(state, saveTargetUser, "welcome")(ectx)
	require.IsType(t, updateStateResponse{}, resp)
	assert.Equal(t, EditModeConfirmOverwrite, state.EditMode.Kind)
	assert.Equal(t, "welcome", state.EditMode.Name)
	assert.Equal(t, stored, state.EditMode.LastUpdated)
	assert.Equal(t, "someone_else", state.EditMode.CreatedBy)
	assert.Equal(t, saveTargetUser, state.EditMode.SaveTo)

	panel, _, err := editor.panels.Load(ctx, user.ID, "welcome")
	require.NoError(t, err)
	assert.Equal(t, "old", panel.Content)

	// a session holding the current timestamp saves straight through
	state.LastSaved = stored
	state.Content = "new"
	resp = savePanel(state, saveTargetUser, "welcome")(ectx)
	require.IsType(t, updateStateResponse{}, resp)
	assert.Equal(t, EditModeSaved, state.EditMode.Kind)
	require.NotNil(t, state.LastSavedAs)
	assert.Equal(t, "welcome", state.LastSavedAs.Name)

	panel, loaded, err := editor.panels.Load(ctx, user.ID, "welcome")
	require.NoError(t, err)
	assert.Equal(t, "new", panel.Content)
	assert.Equal(t, loaded.LastUpdated, state.LastSaved)
}

func TestMemberCanManageBot(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)
	ctx := context.Background()
	guildID := fmt.Sprintf("guild_%s", t.Name())

	assert.False(t, editor.memberCanManageBot(ctx, guildID, nil))
	assert.False(
		t,
		editor.memberCanManageBot(ctx, "", &discordgo.Member{}),
	)

	admin := &discordgo.Member{Permissions: discordgo.PermissionManageServer}
	assert.True(t, editor.memberCanManageBot(ctx, guildID, admin))

	plain := &discordgo.Member{Roles: []string{"1111"}}
	assert.False(t, editor.memberCanManageBot(ctx, guildID, plain))

	// grant via the configured manage-bot role
	_, err := editor.guilds.Update(
		ctx, guildID, map[string]any{"manage_bot_role": "1111"},
	)
	require.NoError(t, err)
	assert.True(t, editor.memberCanManageBot(ctx, guildID, plain))
}

func TestMemberCanManageRole(t *testing.T) {
	t.Parallel()
	roles := []*discordgo.Role{
		{ID: "mod", Position: 5, Permissions: discordgo.PermissionManageRoles},
		{ID: "member", Position: 2},
		{ID: "target", Position: 3},
	}
	target := roles[2]

	mod := &discordgo.Member{Roles: []string{"mod"}}
	assert.True(t, memberCanManageRole(mod, roles, target))

	// manage roles, but below the target
	lowMod := &discordgo.Member{
		Roles:       []string{"member"},
		Permissions: discordgo.PermissionManageRoles,
	}
	assert.False(t, memberCanManageRole(lowMod, roles, target))

	plain := &discordgo.Member{Roles: []string{"member"}}
	assert.False(t, memberCanManageRole(plain, roles, target))

	admin := &discordgo.Member{
		Permissions: discordgo.PermissionAdministrator,
	}
	assert.True(t, memberCanManageRole(admin, roles, target))

	assert.False(t, memberCanManageRole(nil, roles, target))
	assert.False(t, memberCanManageRole(mod, roles, nil))
}

func TestBuildPanelMessage_InvalidLinkFallsBack(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)

	panel := SavedPanel{
		Content: "pick a link",
		Rows: []ButtonRow{
			{
				{
					Label:  "good",
					Action: ButtonAction{Kind: ActionLink, URL: "https://interpunct.info"},
				},
				{
					Label:  "bad",
					Action: ButtonAction{Kind: ActionLink, URL: "gopher://nope"},
				},
			},
		},
	}
	msg, problem, err := editor.buildPanelMessage(
		context.Background(), "", nil, panel,
	)
	require.NoError(t, err)
	require.Empty(t, problem)
	require.Len(t, msg.Components, 1)

	row := msg.Components[0].(discordgo.ActionsRow)
	good := row.Components[0].(discordgo.Button)
	assert.Equal(t, "https://interpunct.info", good.URL)

	bad := row.Components[1].(discordgo.Button)
	assert.Contains(t, bad.URL, invalidURLRedirect)
}

func TestBuildPanelMessage_RoleValidation(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	session := newMockDiscordSession()
	session.guildRoles = []*discordgo.Role{
		{ID: "target", Position: 3},
		{ID: "mod", Position: 5, Permissions: discordgo.PermissionManageRoles},
	}
	editor := NewPanelEditor(
		db, db,
		NewPanelStore(db, db, slog.Default()),
		NewGuildStore(db, db, slog.Default()),
		NewInputRequests(),
		session,
		slog.Default(),
	)
	guildID := fmt.Sprintf("guild_%s", t.Name())

	panel := SavedPanel{
		Rows: []ButtonRow{
			{{Label: "role", Action: ButtonAction{Kind: ActionRole, RoleID: "target"}}},
		},
	}

	// role buttons are meaningless outside a guild
	_, problem, err := editor.buildPanelMessage(
		context.Background(), "", nil, panel,
	)
	require.NoError(t, err)
	assert.Equal(t, "Role buttons only work on a server.", problem)

	// sender lacking manage roles is refused
	plain := &discordgo.Member{Roles: []string{"target"}}
	_, problem, err = editor.buildPanelMessage(
		context.Background(), guildID, plain, panel,
	)
	require.NoError(t, err)
	assert.Contains(t, problem, "You do not have permission")

	// a mod above the target gets the message
	mod := &discordgo.Member{Roles: []string{"mod"}}
	msg, problem, err := editor.buildPanelMessage(
		context.Background(), guildID, mod, panel,
	)
	require.NoError(t, err)
	require.Empty(t, problem)
	row := msg.Components[0].(discordgo.ActionsRow)
	btn := row.Components[0].(discordgo.Button)
	assert.Equal(t, "GRANTROLE|target|0,0", btn.CustomID)

	// a role that was deleted since saving is reported
	missing := SavedPanel{
		Rows: []ButtonRow{
			{{Action: ButtonAction{Kind: ActionRole, RoleID: "gone", RoleName: "old"}}},
		},
	}
	_, problem, err = editor.buildPanelMessage(
		context.Background(), guildID, mod, missing,
	)
	require.NoError(t, err)
	assert.Contains(t, problem, "does not exist on this server")
}

func TestHandleGrantRole_Toggle(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	session := newMockDiscordSession()
	session.guildRoles = []*discordgo.Role{{ID: "9999", Position: 1}}
	editor := NewPanelEditor(
		db, db,
		NewPanelStore(db, db, slog.Default()),
		NewGuildStore(db, db, slog.Default()),
		NewInputRequests(),
		session,
		slog.Default(),
	)
	ctx := context.Background()
	user := newDiscordUser(t)

	// member without the role gets it added
	interaction := newComponentInteraction(t, user, "GRANTROLE|9999|0,0")
	handler := newStubInteractionHandler(t, interaction)
	editor.HandleGrantRole(ctx, handler, "9999")

	added := <-session.rolesAdded
	assert.Equal(t, user.ID, added.UserID)
	assert.Equal(t, "9999", added.RoleID)
	resp := <-handler.callRespond
	assert.Contains(t, resp.Data.Content, "Gave you <@&9999>")

	// member with the role gets it removed
	interaction = newComponentInteraction(t, user, "GRANTROLE|9999|0,0")
	interaction.Member.Roles = []string{"9999"}
	handler = newStubInteractionHandler(t, interaction)
	editor.HandleGrantRole(ctx, handler, "9999")

	removed := <-session.rolesRemoved
	assert.Equal(t, user.ID, removed.UserID)
	resp = <-handler.callRespond
	assert.Contains(t, resp.Data.Content, "Removed <@&9999>")
}

func TestHandleGrantRole_MissingRole(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)
	user := newDiscordUser(t)

	handler := newStubInteractionHandler(
		t, newComponentInteraction(t, user, "GRANTROLE|404|0,0"),
	)
	editor.HandleGrantRole(context.Background(), handler, "404")

	resp := <-handler.callRespond
	assert.Contains(t, resp.Data.Content, "does not exist on this server")
}
