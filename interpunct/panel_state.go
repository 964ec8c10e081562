package interpunct

import (
	"fmt"
	"net/url"

	"github.com/bwmarrin/discordgo"
)

const (
	maxPanelRows          = 5
	maxPanelButtonsPerRow = 5
	maxPanelNameLength    = 60
	maxButtonLabelLength  = 80
	maxLinkURLLength      = 512
	maxPanelContentLength = 2000
)

// ButtonColor is the style of a panel button, named after the discord
// button styles the editor exposes.
type ButtonColor string

const (
	ButtonColorPrimary   ButtonColor = "primary"
	ButtonColorSecondary ButtonColor = "secondary"
	ButtonColorAccept    ButtonColor = "accept"
	ButtonColorDeny      ButtonColor = "deny"
)

var buttonStyles = map[ButtonColor]discordgo.ButtonStyle{
	ButtonColorPrimary:   discordgo.PrimaryButton,
	ButtonColorSecondary: discordgo.SecondaryButton,
	ButtonColorAccept:    discordgo.SuccessButton,
	ButtonColorDeny:      discordgo.DangerButton,
}

func (c ButtonColor) Style() discordgo.ButtonStyle {
	if style, ok := buttonStyles[c]; ok {
		return style
	}
	return discordgo.SecondaryButton
}

// ActionKind determines what a panel button does when clicked.
type ActionKind string

const (
	ActionNothing     ActionKind = "nothing"
	ActionRole        ActionKind = "role"
	ActionLink        ActionKind = "link"
	ActionUnsupported ActionKind = "unsupported"
)

// ButtonAction holds the button's action kind along with the
// configuration for every kind. Fields for inactive kinds are retained
// so switching between kinds doesn't lose configuration.
type ButtonAction struct {
	Kind     ActionKind `json:"kind"`
	RoleID   string     `json:"role_id,omitempty"`
	RoleName string     `json:"role_name,omitempty"`
	URL      string     `json:"url,omitempty"`
}

// Describe returns a short human-readable description of what the button
// does, used for editor previews.
func (a ButtonAction) Describe() string {
	switch a.Kind {
	case ActionRole:
		if a.RoleID == "" {
			return "nothing will happen because no role is selected."
		}
		return fmt.Sprintf("you will be given or removed the role <@&%s>.", a.RoleID)
	case ActionLink:
		if a.URL == "" {
			return "nothing will happen because no URL is set."
		}
		return fmt.Sprintf("you will be linked to <%s>.", a.URL)
	case ActionNothing:
		return "nothing will happen."
	default:
		return "nothing will happen because the action is not supported."
	}
}

// PanelButton is one button on a panel.
type PanelButton struct {
	Color    ButtonColor  `json:"color"`
	Label    string       `json:"label"`
	Emoji    string       `json:"emoji,omitempty"`
	Action   ButtonAction `json:"action"`
	Disabled bool         `json:"disabled,omitempty"`
}

func defaultButton() PanelButton {
	return PanelButton{
		Color:  ButtonColorSecondary,
		Label:  "Button",
		Action: ButtonAction{Kind: ActionNothing},
	}
}

// ButtonRow is one row of panel buttons.
type ButtonRow []PanelButton

// SavedPanel is the payload persisted for a named panel: the message
// content plus the button grid.
type SavedPanel struct {
	Content string      `json:"content,omitempty"`
	Rows    []ButtonRow `json:"rows"`
}

// SaveTarget records where a panel was last saved.
type SaveTarget struct {
	// To is "user" or "guild"
	To   string `json:"to"`
	Name string `json:"name"`
}

const (
	saveTargetUser  = "user"
	saveTargetGuild = "guild"
)

// PanelMeta is the summary row shown in save/load lists.
type PanelMeta struct {
	Name        string `json:"name"`
	LastUpdated int64  `json:"last_updated"`
	CreatedBy   string `json:"created_by"`
}

// EditModeKind identifies which editor screen is active.
type EditModeKind string

const (
	EditModeHome             EditModeKind = "home"
	EditModeSavePanel        EditModeKind = "save_panel"
	EditModeConfirmOverwrite EditModeKind = "confirm_overwrite"
	EditModeSaved            EditModeKind = "saved"
	EditModeRoot             EditModeKind = "root"
	EditModeEditButton       EditModeKind = "edit_button"
	EditModeEditAction       EditModeKind = "edit_action"
	EditModeClose            EditModeKind = "close"
)

// SavePanelMode selects the behavior of the save/load screen.
type SavePanelMode string

const (
	SavePanelModeSave SavePanelMode = "save"
	SavePanelModeLoad SavePanelMode = "load"
	SavePanelModeSend SavePanelMode = "send"
)

// EditMode holds the active editor screen plus any per-screen state.
// Only the fields relevant to the active Kind are meaningful.
type EditMode struct {
	Kind EditModeKind `json:"kind"`

	// root
	ShowLast bool `json:"show_last,omitempty"`

	// edit_button / edit_action
	BtnRow int `json:"btn_row,omitempty"`
	BtnCol int `json:"btn_col,omitempty"`

	// save_panel
	Mode         SavePanelMode `json:"mode,omitempty"`
	GuildPanels  []PanelMeta   `json:"guild_panels,omitempty"`
	GuildAllowed bool          `json:"guild_allowed,omitempty"`
	UserPanels   []PanelMeta   `json:"user_panels,omitempty"`

	// confirm_overwrite
	Name        string `json:"name,omitempty"`
	LastUpdated int64  `json:"last_updated,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
	SaveTo      string `json:"save_to,omitempty"`
}

// PanelState is the complete state of one panel editor session. It is
// serialized to JSON and stored in the PanelSession row, so an editor
// message keeps working across bot restarts.
type PanelState struct {
	// Initiator is the user ID that opened the editor. Only this user
	// may interact with the editor message.
	Initiator string `json:"initiator"`

	// LastSaved is the last_updated value of the most recent save made
	// from this session, used to detect concurrent edits on overwrite.
	LastSaved int64 `json:"last_saved"`

	LastSavedAs *SaveTarget `json:"last_saved_as,omitempty"`

	Content  string      `json:"content,omitempty"`
	Rows     []ButtonRow `json:"rows"`
	EditMode EditMode    `json:"edit_mode"`
}

// buttonCount returns the total number of buttons across all rows.
func (s *PanelState) buttonCount() int {
	count := 0
	for _, row := range s.Rows {
		count += len(row)
	}
	return count
}

// button returns the button at the given position, or nil if the
// position no longer exists (e.g. after a delete).
func (s *PanelState) button(row, col int) *PanelButton {
	if row < 0 || row >= len(s.Rows) {
		return nil
	}
	if col < 0 || col >= len(s.Rows[row]) {
		return nil
	}
	return &s.Rows[row][col]
}

// savedPanel extracts the persistable panel payload from the state.
func (s *PanelState) savedPanel() SavedPanel {
	return SavedPanel{Content: s.Content, Rows: s.Rows}
}

// applySavedPanel replaces the state's panel payload with a loaded one.
func (s *PanelState) applySavedPanel(p SavedPanel) {
	s.Content = p.Content
	s.Rows = p.Rows
	if s.Rows == nil {
		s.Rows = []ButtonRow{}
	}
}

func isValidLabel(label string) string {
	if len(label) > maxButtonLabelLength {
		return fmt.Sprintf(
			"Label must be less than %d characters",
			maxButtonLabelLength,
		)
	}
	return ""
}

func isValidURL(raw string) string {
	if len(raw) > maxLinkURLLength {
		return fmt.Sprintf(
			"URL must be less than %d characters",
			maxLinkURLLength,
		)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "URL must start with `http://` or `https://`"
	}
	return ""
}

func isValidPanelName(name string) string {
	if len(name) > maxPanelNameLength {
		return fmt.Sprintf(
			"Name must be at most %d characters",
			maxPanelNameLength,
		)
	}
	return ""
}
