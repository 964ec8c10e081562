package interpunct

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	savedPanelEmoji = "<:success:508840840416854026>"

	// invalidURLRedirect is linked in sent panels when a saved link
	// button holds a URL discord would reject.
	invalidURLRedirect = "https://interpunct.info/invalid-url"
)

// renderPanelEditor renders the editor screen for the given state. The
// result carries the message content, the button grid, and the callback
// for every interactive button. Rendering is pure so a stored session
// can be re-rendered at dispatch time to find the clicked callback.
func renderPanelEditor(state *PanelState) renderResult {
	switch state.EditMode.Kind {
	case EditModeHome:
		return renderHome(state)
	case EditModeSavePanel:
		return renderSavePanel(state)
	case EditModeConfirmOverwrite:
		return renderConfirmOverwrite(state)
	case EditModeSaved:
		return renderSaved(state)
	case EditModeRoot:
		return renderRoot(state)
	case EditModeEditButton:
		return renderEditButton(state)
	case EditModeEditAction:
		return renderEditAction(state)
	case EditModeClose:
		return renderResult{content: "Closed"}
	default:
		return renderUnknownScreen(state)
	}
}

// label renders a disabled secondary button used as an inline label.
func label(text string) renderButton {
	return mkbtn(text, ButtonColorSecondary, true, renderAction{})
}

// setScreen switches the editor to the given screen and persists it.
func setScreen(state *PanelState, mode EditMode) callbackStep {
	return func(*EditorContext) handleInteractionResponse {
		state.EditMode = mode
		return updateStateResponse{state: state}
	}
}

func asyncStep(
	handler func(ectx *EditorContext) handleInteractionResponse,
) callbackStep {
	return func(*EditorContext) handleInteractionResponse {
		return asyncResponse{handler: handler}
	}
}

func renderHome(state *PanelState) renderResult {
	contentRow := renderRow{label("Content:")}
	contentRow = append(
		contentRow, mkbtn(
			"🖉 Edit", ButtonColorSecondary, false,
			callbackAction(
				"SET_CONTENT",
				requireAuthor(state),
				requestContentInput(state),
			),
		),
	)

	buttonsRow := renderRow{
		label("Buttons:"),
		label(
			fmt.Sprintf(
				"%d rows, %d buttons",
				len(state.Rows),
				state.buttonCount(),
			),
		),
	}
	editColor := ButtonColorSecondary
	if len(state.Rows) == 0 {
		editColor = ButtonColorPrimary
	}
	buttonsRow = append(
		buttonsRow, mkbtn(
			"🖉 Edit", editColor, false,
			callbackAction(
				"EDIT_BUTTONS",
				requireAuthor(state),
				setScreen(state, EditMode{Kind: EditModeRoot}),
			),
		),
	)

	actionsRow := renderRow{
		mkbtn(
			"🖫 Save Panel", ButtonColorAccept, false,
			callbackAction(
				"SAVE",
				requireAuthor(state),
				asyncStep(savePanelScreen(state, SavePanelModeSave)),
			),
		),
		mkbtn(
			"👁 Preview", ButtonColorPrimary, false,
			callbackAction(
				"PREVIEW",
				requireAuthor(state),
				asyncStep(previewPanel(state.savedPanel())),
			),
		),
	}

	return renderResult{
		content: zeroWidthSpace,
		rows:    []renderRow{contentRow, buttonsRow, actionsRow},
	}
}

// panelListRows renders a saved panel list (server or personal) as one
// or two button rows, with a leading label and optional save button.
func panelListRows(
	state *PanelState,
	heading string,
	keyPrefix string,
	panels []PanelMeta,
	extra []renderButton,
) []renderRow {
	row := renderRow{label(heading)}
	row = append(row, extra...)

	pick := func(meta PanelMeta) callbackStep {
		return asyncStep(pickSavedPanel(state, keyPrefix, meta))
	}

	var overflow renderRow
	for i, meta := range panels {
		btn := mkbtn(
			truncate(meta.Name, maxButtonLabelLength),
			ButtonColorSecondary, false,
			callbackAction(
				fmt.Sprintf("%s,%d", keyPrefix, i),
				requireAuthor(state),
				pick(meta),
			),
		)
		if len(row) < maxPanelButtonsPerRow {
			row = append(row, btn)
		} else if len(overflow) < maxPanelButtonsPerRow-1 {
			overflow = append(overflow, btn)
		}
	}
	if len(panels) > 0 &&
		len(row)+len(overflow) < len(panels)+1+len(extra) {
		overflow = append(
			overflow, mkbtn(
				"…", ButtonColorSecondary, false,
				callbackAction(
					keyPrefix+"_more",
					requireAuthor(state),
					func(*EditorContext) handleInteractionResponse {
						return errorResponse{
							message: "Only your most recently updated panels are shown.",
						}
					},
				),
			),
		)
	}

	rows := []renderRow{row}
	if len(overflow) > 0 {
		rows = append(rows, overflow)
	}
	return rows
}

func renderSavePanel(state *PanelState) renderResult {
	m := state.EditMode
	var rows []renderRow

	switch m.Mode {
	case SavePanelModeLoad, SavePanelModeSend:
		rows = append(
			rows, renderRow{
				mkbtn(
					"+ New", ButtonColorAccept, false,
					callbackAction(
						"NEW",
						requireAuthor(state),
						setScreen(state, EditMode{Kind: EditModeHome}),
					),
				),
			},
		)
	default:
		row := renderRow{
			mkbtn(
				"< Back", ButtonColorPrimary, false,
				callbackAction(
					"BACK",
					requireAuthor(state),
					setScreen(state, EditMode{Kind: EditModeHome}),
				),
			),
		}
		if state.LastSavedAs != nil {
			target := "Yourself"
			if state.LastSavedAs.To == saveTargetGuild {
				target = "Server"
			}
			row = append(
				row,
				label("Last Save:"),
				label(target),
				label(truncate(state.LastSavedAs.Name, maxButtonLabelLength)),
				mkbtn(
					"🖫 Save", ButtonColorAccept, false,
					callbackAction(
						"SAVE_AUTO",
						requireAuthor(state),
						asyncStep(
							savePanel(
								state,
								state.LastSavedAs.To,
								state.LastSavedAs.Name,
							),
						),
					),
				),
			)
		}
		rows = append(rows, row)
	}

	var guildExtra []renderButton
	if m.Mode == SavePanelModeSave {
		if m.GuildAllowed {
			guildExtra = append(
				guildExtra, mkbtn(
					"🖫 Save to Server", ButtonColorAccept, false,
					callbackAction(
						"SAVE_SERVER",
						requireAuthor(state),
						requestPanelNameInput(state, saveTargetGuild),
					),
				),
			)
		} else {
			guildExtra = append(
				guildExtra,
				mkbtn(
					"You do not have permission",
					ButtonColorDeny, true, renderAction{},
				),
			)
		}
	}
	rows = append(
		rows,
		panelListRows(state, "Server Panels:", "SAVEg", m.GuildPanels, guildExtra)...,
	)

	var userExtra []renderButton
	if m.Mode == SavePanelModeSave {
		userExtra = append(
			userExtra, mkbtn(
				"🖫 Save for Yourself", ButtonColorAccept, false,
				callbackAction(
					"SAVE_YOU",
					requireAuthor(state),
					requestPanelNameInput(state, saveTargetUser),
				),
			),
		)
	}
	rows = append(
		rows,
		panelListRows(state, "Your Panels:", "SAVEu", m.UserPanels, userExtra)...,
	)

	var content string
	switch m.Mode {
	case SavePanelModeLoad:
		content = "Pick a panel to edit, or start a new one."
	case SavePanelModeSend:
		content = "Pick a panel to send."
	default:
		content = "Where should this panel be saved?"
	}
	return renderResult{content: content, rows: rows}
}

func renderConfirmOverwrite(state *PanelState) renderResult {
	m := state.EditMode

	age := time.Since(time.UnixMilli(m.LastUpdated))
	content := fmt.Sprintf(
		"Are you sure you want to overwrite `%s`?\nLast edited by <@%s> %s ago.",
		m.Name, m.CreatedBy, durationFormat(age),
	)
	overwriteColor := ButtonColorAccept
	if m.LastUpdated != state.LastSaved {
		overwriteColor = ButtonColorDeny
		content += "\nThis panel has been edited since you last saved it."
	}

	rows := []renderRow{
		{
			mkbtn(
				"Overwrite", overwriteColor, false,
				callbackAction(
					"OVERWRITE",
					requireAuthor(state),
					asyncStep(writePanel(state, m.SaveTo, m.Name)),
				),
			),
			mkbtn(
				"Cancel", ButtonColorPrimary, false,
				callbackAction(
					"CLOSE",
					requireAuthor(state),
					asyncStep(savePanelScreen(state, SavePanelModeSave)),
				),
			),
			mkbtn(
				"👁 Preview This", ButtonColorSecondary, false,
				callbackAction(
					"PREVIEW_THIS",
					requireAuthor(state),
					asyncStep(previewPanel(state.savedPanel())),
				),
			),
			mkbtn(
				"👁 Preview Saved", ButtonColorSecondary, false,
				callbackAction(
					"PREVIEW_SAVED",
					requireAuthor(state),
					asyncStep(previewStoredPanel(state, m.SaveTo, m.Name)),
				),
			),
		},
	}
	return renderResult{content: content, rows: rows}
}

func renderSaved(state *PanelState) renderResult {
	var rows []renderRow
	if state.LastSavedAs != nil {
		target := "Yourself"
		if state.LastSavedAs.To == saveTargetGuild {
			target = "Server"
		}
		rows = append(
			rows, renderRow{
				label("Last Save:"),
				label(target),
				label(truncate(state.LastSavedAs.Name, maxButtonLabelLength)),
			},
		)
	}
	rows = append(
		rows, renderRow{
			mkbtn(
				"Keep Editing", ButtonColorSecondary, false,
				callbackAction(
					"CONTINUE",
					requireAuthor(state),
					setScreen(state, EditMode{Kind: EditModeHome}),
				),
			),
			mkbtn(
				"× Close", ButtonColorDeny, false,
				callbackAction(
					"CLOSE",
					requireAuthor(state),
					setScreen(state, EditMode{Kind: EditModeClose}),
				),
			),
			mkbtn(
				"Send", ButtonColorPrimary, false,
				callbackAction(
					"SEND",
					requireAuthor(state),
					asyncStep(sendPanel(state, state.savedPanel())),
				),
			),
		},
	)
	return renderResult{
		content: savedPanelEmoji + " Your panel has been saved.",
		rows:    rows,
	}
}

// previewButton renders a panel button the way it would appear in the
// sent panel, attached to an editor callback instead of its real action.
func previewButton(btn PanelButton, action renderAction) renderButton {
	color := btn.Color
	if btn.Action.Kind == ActionLink {
		// link buttons can't carry a custom ID, so previews fall back
		// to the gray style
		color = ButtonColorSecondary
	}
	rb := mkbtn(
		truncate(btn.Label, maxButtonLabelLength),
		color, btn.Disabled, action,
	)
	rb.emoji = btn.Emoji
	return rb
}

func renderRoot(state *PanelState) renderResult {
	var rows []renderRow

	visible := state.Rows
	if !state.EditMode.ShowLast && len(visible) > maxPanelRows-1 {
		visible = visible[:maxPanelRows-1]
	}

	for r, row := range visible {
		rendered := make(renderRow, 0, len(row)+1)
		for c, btn := range row {
			r, c := r, c
			rendered = append(
				rendered, previewButton(
					btn, callbackAction(
						fmt.Sprintf("EDITBTN,%d,%d", r, c),
						requireAuthor(state),
						setScreen(
							state, EditMode{
								Kind:   EditModeEditButton,
								BtnRow: r,
								BtnCol: c,
							},
						),
					),
				),
			)
		}
		if len(row) < maxPanelButtonsPerRow {
			r := r
			rendered = append(
				rendered, mkbtn(
					"+", ButtonColorPrimary, false,
					callbackAction(
						fmt.Sprintf("ADDBTN,%d", r),
						requireAuthor(state),
						func(*EditorContext) handleInteractionResponse {
							if r >= len(state.Rows) ||
								len(state.Rows[r]) >= maxPanelButtonsPerRow {
								return errorResponse{message: "That row is full."}
							}
							state.Rows[r] = append(state.Rows[r], defaultButton())
							state.EditMode = EditMode{
								Kind:   EditModeEditButton,
								BtnRow: r,
								BtnCol: len(state.Rows[r]) - 1,
							}
							return updateStateResponse{state: state}
						},
					),
				),
			)
		}
		rows = append(rows, rendered)
	}

	if !state.EditMode.ShowLast {
		control := renderRow{}
		if len(state.Rows) < maxPanelRows {
			control = append(
				control, mkbtn(
					"+ Row", ButtonColorPrimary, false,
					callbackAction(
						"ADDROW",
						requireAuthor(state),
						func(*EditorContext) handleInteractionResponse {
							if len(state.Rows) >= maxPanelRows {
								return errorResponse{message: "The panel is full."}
							}
							state.Rows = append(state.Rows, ButtonRow{defaultButton()})
							state.EditMode = EditMode{
								Kind:   EditModeEditButton,
								BtnRow: len(state.Rows) - 1,
								BtnCol: 0,
							}
							return updateStateResponse{state: state}
						},
					),
				),
			)
		} else {
			control = append(
				control, mkbtn(
					"Show Last Line", ButtonColorSecondary, false,
					callbackAction(
						"SHOWLAST",
						requireAuthor(state),
						setScreen(
							state,
							EditMode{Kind: EditModeRoot, ShowLast: true},
						),
					),
				),
			)
		}
		control = append(
			control, mkbtn(
				"🖫 Save", ButtonColorAccept, false,
				callbackAction(
					"ROOT",
					requireAuthor(state),
					setScreen(state, EditMode{Kind: EditModeHome}),
				),
			),
		)
		rows = append(rows, control)
	}

	return renderResult{content: zeroWidthSpace, rows: rows}
}

// renderMissingButton is shown if the screen points at a button that no
// longer exists, e.g. after a delete raced a click.
func renderMissingButton(state *PanelState) renderResult {
	return renderResult{
		content: "That button no longer exists.",
		rows: []renderRow{
			{
				mkbtn(
					"Continue", ButtonColorPrimary, false,
					callbackAction(
						"ROOT",
						requireAuthor(state),
						setScreen(state, EditMode{Kind: EditModeRoot}),
					),
				),
			},
		},
	}
}

func renderEditButton(state *PanelState) renderResult {
	m := state.EditMode
	btn := state.button(m.BtnRow, m.BtnCol)
	if btn == nil {
		return renderMissingButton(state)
	}

	previewRow := renderRow{
		label("Preview:"),
		previewButton(
			*btn, callbackAction(
				"PREVIEW_CLICK",
				requireAuthor(state),
				func(*EditorContext) handleInteractionResponse {
					return replyHiddenResponse{
						data: ephemeralMessage(
							"When you click this button, " + btn.Action.Describe(),
						),
					}
				},
			),
		),
	}

	labelRow := renderRow{
		label("Label:"),
		mkbtn(
			"Set Text", ButtonColorSecondary, false,
			callbackAction(
				"SET_TEXT",
				requireAuthor(state),
				requestLabelInput(state, btn),
			),
		),
	}
	if btn.Label != "" {
		labelRow = append(
			labelRow, mkbtn(
				"Clear Text", ButtonColorSecondary, false,
				callbackAction(
					"CLR_TEXT",
					requireAuthor(state),
					func(*EditorContext) handleInteractionResponse {
						btn.Label = ""
						return updateStateResponse{state: state}
					},
				),
			),
		)
	}
	labelRow = append(
		labelRow, mkbtn(
			"Set Emoji", ButtonColorSecondary, false,
			callbackAction(
				"SET_EMOJI",
				requireAuthor(state),
				requestEmojiInput(state, btn),
			),
		),
	)
	if btn.Emoji != "" {
		labelRow = append(
			labelRow, mkbtn(
				"Clear Emoji", ButtonColorSecondary, false,
				callbackAction(
					"CLR_EMOJI",
					requireAuthor(state),
					func(*EditorContext) handleInteractionResponse {
						btn.Emoji = ""
						return updateStateResponse{state: state}
					},
				),
			),
		)
	}

	rows := []renderRow{previewRow, labelRow}

	if btn.Action.Kind != ActionLink {
		colorRow := renderRow{label("Color:")}
		for _, opt := range []struct {
			name  string
			color ButtonColor
		}{
			{"Blurple", ButtonColorPrimary},
			{"Gray", ButtonColorSecondary},
			{"Green", ButtonColorAccept},
			{"Red", ButtonColorDeny},
		} {
			opt := opt
			displayColor := ButtonColorSecondary
			if btn.Color == opt.color {
				displayColor = ButtonColorPrimary
			}
			colorRow = append(
				colorRow, mkbtn(
					opt.name, displayColor, false,
					callbackAction(
						fmt.Sprintf("SETCOL,%s", opt.color),
						requireAuthor(state),
						func(*EditorContext) handleInteractionResponse {
							btn.Color = opt.color
							return updateStateResponse{state: state}
						},
					),
				),
			)
		}
		rows = append(rows, colorRow)
	}

	rows = append(rows, actionKindRow(state, btn, label("Action:")))

	rows = append(
		rows, renderRow{
			mkbtn(
				"🖫 Save", ButtonColorAccept, false,
				callbackAction(
					"SAVE",
					requireAuthor(state),
					setScreen(state, EditMode{Kind: EditModeRoot}),
				),
			),
			mkbtn(
				"🗑 Delete", ButtonColorDeny, false,
				callbackAction(
					"DELETE",
					requireAuthor(state),
					func(*EditorContext) handleInteractionResponse {
						row := state.Rows[m.BtnRow]
						state.Rows[m.BtnRow] = append(
							row[:m.BtnCol], row[m.BtnCol+1:]...,
						)
						if len(state.Rows[m.BtnRow]) == 0 {
							state.Rows = append(
								state.Rows[:m.BtnRow],
								state.Rows[m.BtnRow+1:]...,
							)
						}
						state.EditMode = EditMode{Kind: EditModeRoot}
						return updateStateResponse{state: state}
					},
				),
			),
		},
	)

	return renderResult{content: zeroWidthSpace, rows: rows}
}

// actionKindRow renders the Nothing/Role/Link selector shared between
// the button and action screens.
func actionKindRow(state *PanelState, btn *PanelButton, leading renderButton) renderRow {
	row := renderRow{leading}
	for _, opt := range []struct {
		name string
		kind ActionKind
	}{
		{"Nothing", ActionNothing},
		{"Role", ActionRole},
		{"Link", ActionLink},
	} {
		opt := opt
		displayColor := ButtonColorSecondary
		if btn.Action.Kind == opt.kind {
			displayColor = ButtonColorPrimary
		}
		row = append(
			row, mkbtn(
				opt.name, displayColor, false,
				callbackAction(
					fmt.Sprintf("ACTION,%s", opt.kind),
					requireAuthor(state),
					func(*EditorContext) handleInteractionResponse {
						btn.Action.Kind = opt.kind
						if opt.kind == ActionNothing {
							state.EditMode = EditMode{
								Kind:   EditModeEditButton,
								BtnRow: state.EditMode.BtnRow,
								BtnCol: state.EditMode.BtnCol,
							}
						} else {
							state.EditMode = EditMode{
								Kind:   EditModeEditAction,
								BtnRow: state.EditMode.BtnRow,
								BtnCol: state.EditMode.BtnCol,
							}
						}
						return updateStateResponse{state: state}
					},
				),
			),
		)
	}
	row = append(
		row, mkbtn(
			"▸ More", ButtonColorSecondary, false,
			callbackAction(
				"ACTION_more",
				requireAuthor(state),
				func(*EditorContext) handleInteractionResponse {
					return errorResponse{
						message: "More actions are not available yet.",
					}
				},
			),
		),
	)
	return row
}

func renderEditAction(state *PanelState) renderResult {
	m := state.EditMode
	btn := state.button(m.BtnRow, m.BtnCol)
	if btn == nil {
		return renderMissingButton(state)
	}

	back := mkbtn(
		"🖫 Save", ButtonColorAccept, false,
		callbackAction(
			"BACK",
			requireAuthor(state),
			setScreen(
				state, EditMode{
					Kind:   EditModeEditButton,
					BtnRow: m.BtnRow,
					BtnCol: m.BtnCol,
				},
			),
		),
	)
	rows := []renderRow{actionKindRow(state, btn, back)}

	switch btn.Action.Kind {
	case ActionNothing:
		rows = append(rows, renderRow{label("Nothing to configure.")})
	case ActionLink:
		row := renderRow{label("URL:")}
		if btn.Action.URL != "" && isValidURL(btn.Action.URL) == "" {
			row = append(
				row, mkbtn(
					truncate(btn.Action.URL, maxButtonLabelLength),
					ButtonColorSecondary, false,
					linkAction(btn.Action.URL),
				),
			)
		} else {
			row = append(row, label("(not set)"))
		}
		row = append(
			row, mkbtn(
				"🖉 Edit", ButtonColorSecondary, false,
				callbackAction(
					"SET_URL",
					requireAuthor(state),
					requestURLInput(state, btn),
				),
			),
		)
		rows = append(rows, row)
	case ActionRole:
		row := renderRow{label("Role:")}
		if btn.Action.RoleID != "" {
			roleID := btn.Action.RoleID
			row = append(
				row, mkbtn(
					truncate("@"+btn.Action.RoleName, maxButtonLabelLength),
					ButtonColorSecondary, false,
					callbackAction(
						"SHOW_ROLE",
						requireAuthor(state),
						func(*EditorContext) handleInteractionResponse {
							return replyHiddenResponse{
								data: ephemeralMessage(
									fmt.Sprintf("<@&%s>", roleID),
								),
							}
						},
					),
				),
			)
		} else {
			row = append(row, label("(no role)"))
		}
		row = append(
			row, mkbtn(
				"🖉 Edit", ButtonColorSecondary, false,
				callbackAction(
					"SET_ROLE",
					requireAuthor(state),
					requestActionRoleInput(state, btn),
				),
			),
		)
		rows = append(rows, row)
	}

	return renderResult{content: zeroWidthSpace, rows: rows}
}

func renderUnknownScreen(state *PanelState) renderResult {
	return renderResult{
		content: fmt.Sprintf(
			"Something went wrong. Unknown editor screen %q.",
			string(state.EditMode.Kind),
		),
		rows: []renderRow{
			{
				mkbtn(
					"Continue", ButtonColorPrimary, false,
					callbackAction(
						"ROOT",
						requireAuthor(state),
						setScreen(state, EditMode{Kind: EditModeHome}),
					),
				),
			},
		},
	}
}

// panelButtonCustomID builds the custom ID attached to a button in a
// sent panel. Role buttons encode the role to grant, everything else is
// inert. The trailing position keeps custom IDs unique per message.
func panelButtonCustomID(btn PanelButton, row, col int) string {
	switch btn.Action.Kind {
	case ActionRole:
		return fmt.Sprintf("GRANTROLE|%s|%d,%d", btn.Action.RoleID, row, col)
	case ActionNothing:
		return fmt.Sprintf("NONE|%d,%d", row, col)
	default:
		return fmt.Sprintf("UNSUPPORTED|%d,%d", row, col)
	}
}

// parseGrantRoleCustomID extracts the role ID from a sent panel role
// button's custom ID.
func parseGrantRoleCustomID(customID string) (roleID string, ok bool) {
	parts := strings.Split(customID, "|")
	if len(parts) < 2 || parts[0] != "GRANTROLE" {
		return "", false
	}
	return parts[1], true
}

// invalidURLFallback returns a URL discord will accept, linking to an
// explanation of why the original URL was rejected.
func invalidURLFallback(reason string) string {
	return invalidURLRedirect + "?reason=" + url.QueryEscape(reason)
}
