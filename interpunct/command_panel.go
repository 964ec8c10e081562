package interpunct

import (
	"context"
	"time"

	"github.com/lmittmann/tint"
)

const (
	panelCommandModeNew  = "new"
	panelCommandModeEdit = "edit"
	panelCommandModeSend = "send"
)

// handleCommandPanel opens a panel editor session for the invoking
// user. The mode option decides the first screen: a fresh editor, the
// saved-panel list for editing, or the saved-panel list for sending.
func (ip *Interpunct) handleCommandPanel(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	logger := handler.Logger()

	user := getDiscordUser(i)
	if user == nil {
		logger.ErrorContext(ctx, "no user on panel command")
		return
	}

	mode := panelCommandModeNew
	if opt, ok := discordInteractionOptions(i)[panelCommandModeOption]; ok {
		mode = opt.StringValue()
	}

	state := &PanelState{
		Initiator: user.ID,
		LastSaved: time.Now().UTC().UnixMilli(),
		Rows:      []ButtonRow{},
	}
	switch mode {
	case panelCommandModeEdit:
		state.EditMode = EditMode{
			Kind: EditModeSavePanel,
			Mode: SavePanelModeLoad,
		}
	case panelCommandModeSend:
		state.EditMode = EditMode{
			Kind: EditModeSavePanel,
			Mode: SavePanelModeSend,
		}
	default:
		state.EditMode = EditMode{Kind: EditModeHome}
	}

	// the save/load/send lists need the DB, so populate them before the
	// first render
	if state.EditMode.Kind == EditModeSavePanel {
		e := ip.editor
		guildAllowed := false
		var guildPanels []PanelMeta
		if i.GuildID != "" {
			guildAllowed = e.memberCanManageBot(ctx, i.GuildID, i.Member)
			if guildAllowed {
				panels, err := e.panels.List(ctx, i.GuildID)
				if err != nil {
					logger.ErrorContext(
						ctx, "error listing guild panels", tint.Err(err),
					)
				} else {
					guildPanels = panels
				}
			}
		}
		userPanels, err := e.panels.List(ctx, user.ID)
		if err != nil {
			logger.ErrorContext(ctx, "error listing user panels", tint.Err(err))
		}
		state.EditMode.GuildPanels = guildPanels
		state.EditMode.GuildAllowed = guildAllowed
		state.EditMode.UserPanels = userPanels
	}

	if err := ip.editor.OpenSession(ctx, handler, state); err != nil {
		logger.ErrorContext(ctx, "error opening editor session", tint.Err(err))
	}
}
