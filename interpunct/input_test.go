package interpunct

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputRequests_TakeMatchesChannel(t *testing.T) {
	t.Parallel()
	inputs := NewInputRequests()
	userID := t.Name()
	session := &PanelSession{ModelStringID: ModelStringID{ID: "s"}, ChannelID: "channel_a"}

	inputs.Request(userID, pendingInput{kind: InputKindText, session: session})

	// a message in another channel leaves the request pending
	_, ok := inputs.Take(userID, "channel_b")
	assert.False(t, ok)

	p, ok := inputs.Take(userID, "channel_a")
	require.True(t, ok)
	assert.Equal(t, InputKindText, p.kind)

	// taken means gone
	_, ok = inputs.Take(userID, "channel_a")
	assert.False(t, ok)
}

func TestInputRequests_NewerRequestReplacesOlder(t *testing.T) {
	t.Parallel()
	inputs := NewInputRequests()
	userID := t.Name()
	session := &PanelSession{ModelStringID: ModelStringID{ID: "s"}, ChannelID: "c"}

	inputs.Request(userID, pendingInput{kind: InputKindText, session: session})
	inputs.Request(userID, pendingInput{kind: InputKindEmoji, session: session})

	p, ok := inputs.Take(userID, "c")
	require.True(t, ok)
	assert.Equal(t, InputKindEmoji, p.kind)
}

func TestInputRequests_Cancel(t *testing.T) {
	t.Parallel()
	inputs := NewInputRequests()
	userID := t.Name()
	session := &PanelSession{ModelStringID: ModelStringID{ID: "s"}, ChannelID: "c"}

	inputs.Request(userID, pendingInput{kind: InputKindText, session: session})
	inputs.Cancel(userID)
	_, ok := inputs.Take(userID, "c")
	assert.False(t, ok)
}

func newInputMessage(t testing.TB, content string) *discordgo.MessageCreate {
	t.Helper()
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        fmt.Sprintf("msg_%s", t.Name()),
			ChannelID: fmt.Sprintf("channel_%s", t.Name()),
			GuildID:   fmt.Sprintf("guild_%s", t.Name()),
			Content:   content,
			Author:    newDiscordUser(t),
		},
	}
}

func TestParseInputValue_Text(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)

	v, problem := editor.parseInputValue(
		InputKindText, newInputMessage(t, "  hello world  "),
	)
	require.Empty(t, problem)
	// text replies are taken verbatim, not trimmed
	assert.Equal(t, "  hello world  ", v.Text)
}

func TestParseInputValue_Emoji(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)

	// custom emoji mentions resolve to the emoji ID
	v, problem := editor.parseInputValue(
		InputKindEmoji, newInputMessage(t, "<:success:508840840416854026>"),
	)
	require.Empty(t, problem)
	assert.Equal(t, "508840840416854026", v.Emoji)

	// animated emoji
	v, problem = editor.parseInputValue(
		InputKindEmoji, newInputMessage(t, "<a:party:1234>"),
	)
	require.Empty(t, problem)
	assert.Equal(t, "1234", v.Emoji)

	// a bare snowflake works too
	v, problem = editor.parseInputValue(
		InputKindEmoji, newInputMessage(t, "508840840416854026"),
	)
	require.Empty(t, problem)
	assert.Equal(t, "508840840416854026", v.Emoji)

	// unicode emoji pass through as-is
	v, problem = editor.parseInputValue(InputKindEmoji, newInputMessage(t, "🎉"))
	require.Empty(t, problem)
	assert.Equal(t, "🎉", v.Emoji)

	_, problem = editor.parseInputValue(InputKindEmoji, newInputMessage(t, "  "))
	assert.NotEmpty(t, problem)
}

func TestParseInputValue_Role(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	session := newMockDiscordSession()
	session.guildRoles = []*discordgo.Role{
		{ID: "1111", Name: "Members"},
		{ID: "2222", Name: "Mods"},
	}
	editor := NewPanelEditor(
		db, db,
		NewPanelStore(db, db, slog.Default()),
		NewGuildStore(db, db, slog.Default()),
		NewInputRequests(),
		session,
		slog.Default(),
	)

	// role mention
	v, problem := editor.parseInputValue(
		InputKindRole, newInputMessage(t, "<@&1111>"),
	)
	require.Empty(t, problem)
	require.NotNil(t, v.Role)
	assert.Equal(t, "1111", v.Role.ID)

	// bare role ID
	v, problem = editor.parseInputValue(
		InputKindRole, newInputMessage(t, "2222"),
	)
	require.Empty(t, problem)
	assert.Equal(t, "2222", v.Role.ID)

	// name lookup is case-insensitive and tolerates a leading @
	v, problem = editor.parseInputValue(
		InputKindRole, newInputMessage(t, "@members"),
	)
	require.Empty(t, problem)
	assert.Equal(t, "1111", v.Role.ID)

	// unknown mention
	_, problem = editor.parseInputValue(
		InputKindRole, newInputMessage(t, "<@&9999>"),
	)
	assert.Contains(t, problem, "does not exist")

	// unknown name
	_, problem = editor.parseInputValue(
		InputKindRole, newInputMessage(t, "nobody"),
	)
	assert.Contains(t, problem, "couldn't find a role")
}

func TestHandleInputMessage_SetsContent(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	session := newMockDiscordSession()
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
	state := &PanelState{
		Initiator: user.ID,
		Rows:      []ButtonRow{},
		EditMode:  EditMode{Kind: EditModeHome},
	}
	panelSession := openTestSession(t, editor, state)
	panelSession.MessageID = fmt.Sprintf("editor_msg_%s", t.Name())

	// register the same continuation the Edit button would
	step := requestContentInput(state)
	ectx := &EditorContext{
		Ctx:     ctx,
		Session: panelSession,
		State:   state,
		UserID:  user.ID,
		Editor:  editor,
		Logger:  slog.Default(),
	}
	resp := step(ectx)
	require.IsType(t, replaceContentResponse{}, resp)

	msg := newInputMessage(t, "the panel content")
	consumed := editor.HandleInputMessage(
		&EditorContext{Ctx: ctx, Editor: editor, Logger: slog.Default()},
		msg,
	)
	require.True(t, consumed)

	// state was updated and persisted
	assert.Equal(t, "the panel content", state.Content)
	_, stored, err := editor.loadSession(ctx, panelSession.ID)
	require.NoError(t, err)
	assert.Equal(t, "the panel content", stored.Content)

	// the editor message was re-rendered and the user got a receipt
	edit := <-session.messageEdits
	assert.Equal(t, panelSession.MessageID, edit.Edit.ID)
	reply := <-session.repliesSent
	assert.Equal(t, "✓ Set.", reply.Content)
}

func TestHandleInputMessage_InvalidValueReplies(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	session := newMockDiscordSession()
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
	state := &PanelState{
		Initiator: user.ID,
		Rows:      []ButtonRow{{defaultButton()}},
		EditMode:  EditMode{Kind: EditModeEditButton},
	}
	panelSession := openTestSession(t, editor, state)

	editor.inputs.Request(
		user.ID, pendingInput{
			kind:    InputKindEmoji,
			session: panelSession,
			state:   state,
			resolve: func(*EditorContext, InputValue) handleInteractionResponse {
				t.Fatal("resolve should not run for an unparseable reply")
				return nil
			},
		},
	)

	msg := newInputMessage(t, "   ")
	consumed := editor.HandleInputMessage(
		&EditorContext{Ctx: ctx, Editor: editor, Logger: slog.Default()},
		msg,
	)
	require.True(t, consumed)

	reply := <-session.repliesSent
	assert.Equal(t, "Reply with a single emoji.", reply.Content)
}

func TestHandleInputMessage_RejectsBadURLScheme(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	session := newMockDiscordSession()
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
	btn := defaultButton()
	btn.Action = ButtonAction{Kind: ActionLink}
	state := &PanelState{
		Initiator: user.ID,
		Rows:      []ButtonRow{{btn}},
		EditMode:  EditMode{Kind: EditModeEditAction},
	}
	panelSession := openTestSession(t, editor, state)
	panelSession.MessageID = fmt.Sprintf("editor_msg_%s", t.Name())

	step := requestURLInput(state, &state.Rows[0][0])
	ectx := &EditorContext{
		Ctx:     ctx,
		Session: panelSession,
		State:   state,
		UserID:  user.ID,
		Editor:  editor,
		Logger:  slog.Default(),
	}
	resp := step(ectx)
	require.IsType(t, replaceContentResponse{}, resp)

	msg := newInputMessage(t, "ftp://x")
	consumed := editor.HandleInputMessage(
		&EditorContext{Ctx: ctx, Editor: editor, Logger: slog.Default()},
		msg,
	)
	require.True(t, consumed)

	reply := <-session.repliesSent
	assert.Equal(t, "URL must start with `http://` or `https://`", reply.Content)
	assert.Empty(t, state.Rows[0][0].Action.URL)
}

func TestHandleInputMessage_BusySessionRejectsAsyncWork(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	session := newMockDiscordSession()
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
	state := &PanelState{
		Initiator: user.ID,
		Rows:      []ButtonRow{},
		EditMode:  EditMode{Kind: EditModeHome},
	}
	panelSession := openTestSession(t, editor, state)
	panelSession.MessageID = fmt.Sprintf("editor_msg_%s", t.Name())

	handlerRan := false
	register := func() {
		editor.inputs.Request(
			user.ID, pendingInput{
				kind:    InputKindText,
				session: panelSession,
				state:   state,
				resolve: func(*EditorContext, InputValue) handleInteractionResponse {
					return asyncResponse{
						handler: func(*EditorContext) handleInteractionResponse {
							handlerRan = true
							return nil
						},
					}
				},
			},
		)
	}

	// a button click for the same session is still in flight
	require.True(t, editor.tryAcquire(panelSession.ID))
	register()

	msg := newInputMessage(t, "some text")
	consumed := editor.HandleInputMessage(
		&EditorContext{Ctx: ctx, Editor: editor, Logger: slog.Default()},
		msg,
	)
	require.True(t, consumed)
	assert.False(t, handlerRan)

	reply := <-session.repliesSent
	assert.Equal(t, editorBusyMessage, reply.Content)

	// once the click finishes, the continuation runs normally
	editor.release(panelSession.ID)
	register()
	consumed = editor.HandleInputMessage(
		&EditorContext{Ctx: ctx, Editor: editor, Logger: slog.Default()},
		msg,
	)
	require.True(t, consumed)
	assert.True(t, handlerRan)

	// the token was released again on the way out
	assert.True(t, editor.tryAcquire(panelSession.ID))
	editor.release(panelSession.ID)
}

func TestHandleInputMessage_NoPendingRequest(t *testing.T) {
	t.Parallel()
	editor, _ := newTestEditor(t)
	msg := newInputMessage(t, "just chatting")
	consumed := editor.HandleInputMessage(
		&EditorContext{
			Ctx:    context.Background(),
			Editor: editor,
			Logger: slog.Default(),
		},
		msg,
	)
	assert.False(t, consumed)
}
