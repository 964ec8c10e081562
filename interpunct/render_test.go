package interpunct

import (
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePanelCustomID(t *testing.T) {
	t.Parallel()
	sessionID := fmt.Sprintf("s_%s", t.Name())

	customID := panelCustomID(sessionID, "SAVE")
	gotSession, gotKey, ok := parsePanelCustomID(customID)
	require.True(t, ok)
	assert.Equal(t, sessionID, gotSession)
	assert.Equal(t, "SAVE", gotKey)

	// keys may themselves contain colons
	customID = panelCustomID(sessionID, "SETCOL:primary")
	gotSession, gotKey, ok = parsePanelCustomID(customID)
	require.True(t, ok)
	assert.Equal(t, sessionID, gotSession)
	assert.Equal(t, "SETCOL:primary", gotKey)

	for _, bad := range []string{
		"",
		"PANL",
		"PANL:only-session",
		"GRANTROLE|123|0,0",
		"NONE|0,0",
	} {
		_, _, ok = parsePanelCustomID(bad)
		assert.False(t, ok, "expected %q to be rejected", bad)
	}
}

func TestCallbackAction_RunsStepsInOrder(t *testing.T) {
	t.Parallel()
	var order []string
	action := callbackAction(
		"KEY",
		func(*EditorContext) handleInteractionResponse {
			order = append(order, "first")
			return nil
		},
		func(*EditorContext) handleInteractionResponse {
			order = append(order, "second")
			return errorResponse{message: "stop"}
		},
		func(*EditorContext) handleInteractionResponse {
			order = append(order, "third")
			return nil
		},
	)
	resp := action.callback(&EditorContext{})
	require.IsType(t, errorResponse{}, resp)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestCallbackAction_FallsThrough(t *testing.T) {
	t.Parallel()
	action := callbackAction(
		"KEY",
		func(*EditorContext) handleInteractionResponse { return nil },
	)
	assert.Nil(t, action.callback(&EditorContext{}))
}

func TestRequireAuthor(t *testing.T) {
	t.Parallel()
	state := &PanelState{Initiator: t.Name()}
	step := requireAuthor(state)

	assert.Nil(t, step(&EditorContext{UserID: t.Name()}))

	resp := step(&EditorContext{UserID: "someone_else"})
	require.IsType(t, errorResponse{}, resp)
	assert.Equal(
		t, "This is not your panel.", resp.(errorResponse).message,
	)
}

func TestRenderResult_Components(t *testing.T) {
	t.Parallel()
	sessionID := fmt.Sprintf("s_%s", t.Name())
	r := renderResult{
		rows: []renderRow{
			{
				label("Heading:"),
				mkbtn(
					"Click", ButtonColorPrimary, false,
					callbackAction(
						"CLICK",
						func(*EditorContext) handleInteractionResponse {
							return nil
						},
					),
				),
				mkbtn(
					"Docs", ButtonColorSecondary, false,
					linkAction("https://interpunct.info"),
				),
			},
			{
				mkbtn("", ButtonColorSecondary, true, renderAction{}),
			},
		},
	}

	components := r.components(sessionID)
	require.Len(t, components, 2)

	row := components[0].(discordgo.ActionsRow)
	require.Len(t, row.Components, 3)

	// label buttons get positional keys so custom IDs stay unique
	heading := row.Components[0].(discordgo.Button)
	assert.Equal(t, panelCustomID(sessionID, "L0,0"), heading.CustomID)
	assert.True(t, heading.Disabled)

	click := row.Components[1].(discordgo.Button)
	assert.Equal(t, panelCustomID(sessionID, "CLICK"), click.CustomID)
	assert.Equal(t, discordgo.PrimaryButton, click.Style)

	link := row.Components[2].(discordgo.Button)
	assert.Empty(t, link.CustomID)
	assert.Equal(t, discordgo.LinkButton, link.Style)
	assert.Equal(t, "https://interpunct.info", link.URL)

	// empty labels render as a zero-width space
	row = components[1].(discordgo.ActionsRow)
	empty := row.Components[0].(discordgo.Button)
	assert.Equal(t, zeroWidthSpace, empty.Label)
	assert.Equal(t, panelCustomID(sessionID, "L1,0"), empty.CustomID)
}

func TestRenderResult_FindCallback(t *testing.T) {
	t.Parallel()
	called := false
	r := renderResult{
		rows: []renderRow{
			{label("Label:")},
			{
				mkbtn(
					"One", ButtonColorPrimary, false,
					callbackAction(
						"ONE",
						func(*EditorContext) handleInteractionResponse {
							called = true
							return nil
						},
					),
				),
			},
		},
	}

	cb := r.findCallback("ONE")
	require.NotNil(t, cb)
	cb(&EditorContext{})
	assert.True(t, called)

	assert.Nil(t, r.findCallback("MISSING"))
	assert.Nil(t, r.findCallback("L0,0"))
}

func TestComponentEmoji(t *testing.T) {
	t.Parallel()
	assert.Nil(t, componentEmoji(""))

	e := componentEmoji("508840840416854026")
	require.NotNil(t, e)
	assert.Equal(t, "508840840416854026", e.ID)
	assert.Empty(t, e.Name)

	e = componentEmoji("🎉")
	require.NotNil(t, e)
	assert.Equal(t, "🎉", e.Name)
	assert.Empty(t, e.ID)
}

func TestPanelButtonCustomID(t *testing.T) {
	t.Parallel()
	roleBtn := PanelButton{
		Action: ButtonAction{Kind: ActionRole, RoleID: "98765"},
	}
	assert.Equal(t, "GRANTROLE|98765|1,2", panelButtonCustomID(roleBtn, 1, 2))

	noneBtn := PanelButton{Action: ButtonAction{Kind: ActionNothing}}
	assert.Equal(t, "NONE|0,0", panelButtonCustomID(noneBtn, 0, 0))

	otherBtn := PanelButton{Action: ButtonAction{Kind: ActionUnsupported}}
	assert.Equal(t, "UNSUPPORTED|3,4", panelButtonCustomID(otherBtn, 3, 4))
}

func TestParseGrantRoleCustomID(t *testing.T) {
	t.Parallel()
	roleID, ok := parseGrantRoleCustomID("GRANTROLE|98765|1,2")
	require.True(t, ok)
	assert.Equal(t, "98765", roleID)

	_, ok = parseGrantRoleCustomID("NONE|0,0")
	assert.False(t, ok)
	_, ok = parseGrantRoleCustomID("GRANTROLE")
	assert.False(t, ok)
}

func TestInvalidURLFallback(t *testing.T) {
	t.Parallel()
	fallback := invalidURLFallback("URL must start with `http://` or `https://`")
	assert.Empty(t, isValidURL(fallback))
	assert.Contains(t, fallback, invalidURLRedirect)
}
