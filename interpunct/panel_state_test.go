package interpunct

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanelState_ButtonCount(t *testing.T) {
	t.Parallel()
	state := &PanelState{Rows: []ButtonRow{}}
	assert.Equal(t, 0, state.buttonCount())

	state.Rows = []ButtonRow{
		{defaultButton(), defaultButton()},
		{},
		{defaultButton()},
	}
	assert.Equal(t, 3, state.buttonCount())
}

func TestPanelState_Button(t *testing.T) {
	t.Parallel()
	state := &PanelState{
		Rows: []ButtonRow{
			{defaultButton(), {Label: "second"}},
		},
	}

	btn := state.button(0, 1)
	require.NotNil(t, btn)
	assert.Equal(t, "second", btn.Label)

	// mutations through the pointer land in the state
	btn.Label = "renamed"
	assert.Equal(t, "renamed", state.Rows[0][1].Label)

	assert.Nil(t, state.button(-1, 0))
	assert.Nil(t, state.button(0, 2))
	assert.Nil(t, state.button(1, 0))
}

func TestPanelState_ApplySavedPanel(t *testing.T) {
	t.Parallel()
	state := &PanelState{
		Content: "old",
		Rows:    []ButtonRow{{defaultButton()}},
	}

	state.applySavedPanel(SavedPanel{Content: "new", Rows: nil})
	assert.Equal(t, "new", state.Content)
	require.NotNil(t, state.Rows)
	assert.Empty(t, state.Rows)

	loaded := SavedPanel{
		Content: "loaded",
		Rows:    []ButtonRow{{defaultButton(), defaultButton()}},
	}
	state.applySavedPanel(loaded)
	assert.Equal(t, "loaded", state.Content)
	assert.Equal(t, 2, state.buttonCount())
}

func TestPanelState_SavedPanelRoundTrip(t *testing.T) {
	t.Parallel()
	state := &PanelState{
		Initiator: t.Name(),
		Content:   "hello",
		Rows: []ButtonRow{
			{
				{
					Color: ButtonColorAccept,
					Label: "Get role",
					Action: ButtonAction{
						Kind:     ActionRole,
						RoleID:   "12345",
						RoleName: "members",
					},
				},
			},
		},
	}
	saved := state.savedPanel()
	assert.Equal(t, state.Content, saved.Content)
	assert.Equal(t, state.Rows, saved.Rows)
}

func TestIsValidLabel(t *testing.T) {
	t.Parallel()
	assert.Empty(t, isValidLabel(""))
	assert.Empty(t, isValidLabel("Click me"))
	assert.Empty(t, isValidLabel(strings.Repeat("a", maxButtonLabelLength)))
	assert.NotEmpty(t, isValidLabel(strings.Repeat("a", maxButtonLabelLength+1)))
}

func TestIsValidURL(t *testing.T) {
	t.Parallel()
	assert.Empty(t, isValidURL("https://example.com"))
	assert.Empty(t, isValidURL("http://example.com/a?b=c"))

	assert.NotEmpty(t, isValidURL("ftp://example.com"))
	assert.NotEmpty(t, isValidURL("example.com"))
	assert.NotEmpty(t, isValidURL("javascript:alert(1)"))
	assert.NotEmpty(
		t,
		isValidURL("https://example.com/"+strings.Repeat("a", maxLinkURLLength)),
	)
}

func TestIsValidPanelName(t *testing.T) {
	t.Parallel()
	assert.Empty(t, isValidPanelName("roles"))
	assert.Empty(t, isValidPanelName(strings.Repeat("n", maxPanelNameLength)))
	assert.NotEmpty(t, isValidPanelName(strings.Repeat("n", maxPanelNameLength+1)))
}

func TestButtonAction_Describe(t *testing.T) {
	t.Parallel()
	assert.Equal(
		t,
		"nothing will happen.",
		ButtonAction{Kind: ActionNothing}.Describe(),
	)
	assert.Contains(
		t,
		ButtonAction{Kind: ActionRole, RoleID: "42"}.Describe(),
		"<@&42>",
	)
	assert.Contains(
		t,
		ButtonAction{Kind: ActionRole}.Describe(),
		"no role is selected",
	)
	assert.Contains(
		t,
		ButtonAction{Kind: ActionLink, URL: "https://interpunct.info"}.Describe(),
		"<https://interpunct.info>",
	)
	assert.Contains(
		t,
		ButtonAction{Kind: ActionLink}.Describe(),
		"no URL is set",
	)
	assert.Contains(
		t,
		ButtonAction{Kind: ActionUnsupported}.Describe(),
		"not supported",
	)
}

func TestButtonColor_Style(t *testing.T) {
	t.Parallel()
	assert.Equal(t, discordgo.PrimaryButton, ButtonColorPrimary.Style())
	assert.Equal(t, discordgo.SuccessButton, ButtonColorAccept.Style())
	assert.Equal(t, discordgo.SecondaryButton, ButtonColor("nonsense").Style())
}
