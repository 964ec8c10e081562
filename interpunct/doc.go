// Package interpunct implements a Discord bot built around interactive
// button panels: messages with rows of configurable buttons that can grant
// roles, open links, or do nothing at all.
//
// Panels are assembled through an interactive editor driven entirely by
// message components. The editor keeps its state in the database, keyed by
// a session ID embedded in each button's custom ID, so an editor message
// keeps working across bot restarts. Every interaction re-renders the
// editor screen from the stored state and dispatches the pressed button by
// looking up its key in the fresh render.
//
// Key components of the package include:
//
//   - Interpunct: The main struct that encapsulates the bot's core functionality.
//   - Discord: Handles Discord integration and gateway sessions.
//   - PanelEditor: Drives the interactive panel editor state machine.
//   - PanelStore: Persists saved panels, per user and per guild.
//   - GuildStore: Per-guild settings with an in-memory cache.
//   - Generator: Renders DGMD documentation sources to HTML and Discord markdown.
//
// The bot supports these commands:
//
//   - /panel: Create, edit, or send a button panel.
//   - /settings: View and change per-guild bot settings.
//   - /quote: Post a random quote from a configured pastebin paste.
//   - /about: Show bot status and host statistics.
package interpunct
