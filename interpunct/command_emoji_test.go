package interpunct

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmojiReference(t *testing.T) {
	t.Parallel()
	id, ok := parseEmojiReference("<:success:508840840416854026>")
	require.True(t, ok)
	assert.Equal(t, "508840840416854026", id)

	id, ok = parseEmojiReference("<a:party:1234>")
	require.True(t, ok)
	assert.Equal(t, "1234", id)

	id, ok = parseEmojiReference(" 508840840416854026 ")
	require.True(t, ok)
	assert.Equal(t, "508840840416854026", id)

	_, ok = parseEmojiReference("🎉")
	assert.False(t, ok)
	_, ok = parseEmojiReference("")
	assert.False(t, ok)
}

func TestFormatEmojiInspect(t *testing.T) {
	t.Parallel()
	e := &discordgo.Emoji{
		ID:    "1234",
		Name:  "success",
		Roles: []string{"r1", "r2"},
	}
	got := formatEmojiInspect(e)
	assert.Contains(t, got, "**Emoji**: <:success:1234> `:success:`")
	assert.Contains(t, got, "**ID**: `1234`")
	assert.Contains(t, got, "**Animated**: no")
	assert.Contains(t, got, "**Restricted to**: <@&r1> and <@&r2>")

	e.Roles = nil
	e.Animated = true
	got = formatEmojiInspect(e)
	assert.Contains(t, got, "**Animated**: yes")
	assert.Contains(t, got, "**Restricted to**: (everyone)")
}

// newEmojiInteraction builds an /emoji subcommand interaction for a
// member holding the manage-expressions permission.
func newEmojiInteraction(
	t testing.TB,
	u *discordgo.User,
	sub *discordgo.ApplicationCommandInteractionDataOption,
) *discordgo.InteractionCreate {
	t.Helper()
	i := newCommandInteraction(t, u, DiscordSlashCommandEmoji, sub)
	i.Member.Permissions |= discordgo.PermissionManageGuildExpressions
	return i
}

func testGuildEmoji(t testing.TB, roles ...string) *discordgo.Emoji {
	t.Helper()
	return &discordgo.Emoji{
		ID:    fmt.Sprintf("1%06d", len(t.Name())),
		Name:  "success",
		Roles: roles,
	}
}

func TestHandleCommandEmoji_Inspect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	session := newMockDiscordSession()
	emoji := testGuildEmoji(t, "r1")
	session.guildEmoji = emoji
	ip := newTestInterpunctWithSession(t, session)

	user := newDiscordUser(t)
	i := newEmojiInteraction(
		t, user, subcommand(
			emojiSubcommandInspect,
			stringOption(
				emojiCommandEmojiOption,
				fmt.Sprintf("<:success:%s>", emoji.ID),
			),
		),
	)
	// inspect works without the manage-expressions permission
	i.Member.Permissions = 0
	handler := newStubInteractionHandler(t, i)

	ip.handleCommandEmoji(ctx, handler)

	resp := <-handler.callRespond
	require.NotNil(t, resp.Data)
	assert.Contains(t, resp.Data.Content, fmt.Sprintf("**ID**: `%s`", emoji.ID))
	assert.Contains(t, resp.Data.Content, "**Restricted to**: <@&r1>")
	assert.NotZero(t, resp.Data.Flags&discordgo.MessageFlagsEphemeral)
}

func TestHandleCommandEmoji_Restrict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	session := newMockDiscordSession()
	emoji := testGuildEmoji(t, "r1")
	session.guildEmoji = emoji
	ip := newTestInterpunctWithSession(t, session)

	user := newDiscordUser(t)
	i := newEmojiInteraction(
		t, user, subcommand(
			emojiSubcommandRestrict,
			stringOption(emojiCommandEmojiOption, emoji.ID),
			roleOption(emojiCommandRoleOption, "r2"),
		),
	)
	handler := newStubInteractionHandler(t, i)

	ip.handleCommandEmoji(ctx, handler)

	edit := <-session.emojiEdits
	assert.Equal(t, i.GuildID, edit.GuildID)
	assert.Equal(t, emoji.ID, edit.EmojiID)
	assert.Equal(t, []string{"r1", "r2"}, edit.Params.Roles)
	assert.Equal(t, "success", edit.Params.Name)

	resp := <-handler.callRespond
	assert.Contains(
		t, resp.Data.Content,
		"can now only be used by members with <@&r1> and <@&r2>",
	)
}

func TestHandleCommandEmoji_RestrictAlreadyRestricted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	session := newMockDiscordSession()
	emoji := testGuildEmoji(t, "r1")
	session.guildEmoji = emoji
	ip := newTestInterpunctWithSession(t, session)

	user := newDiscordUser(t)
	i := newEmojiInteraction(
		t, user, subcommand(
			emojiSubcommandRestrict,
			stringOption(emojiCommandEmojiOption, emoji.ID),
			roleOption(emojiCommandRoleOption, "r1"),
		),
	)
	handler := newStubInteractionHandler(t, i)

	ip.handleCommandEmoji(ctx, handler)

	// the role isn't duplicated
	edit := <-session.emojiEdits
	assert.Equal(t, []string{"r1"}, edit.Params.Roles)
}

func TestHandleCommandEmoji_Unrestrict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("one role", func(t *testing.T) {
		session := newMockDiscordSession()
		emoji := testGuildEmoji(t, "r1", "r2")
		session.guildEmoji = emoji
		ip := newTestInterpunctWithSession(t, session)

		user := newDiscordUser(t)
		i := newEmojiInteraction(
			t, user, subcommand(
				emojiSubcommandUnrestrict,
				stringOption(emojiCommandEmojiOption, emoji.ID),
				roleOption(emojiCommandRoleOption, "r1"),
			),
		)
		handler := newStubInteractionHandler(t, i)

		ip.handleCommandEmoji(ctx, handler)

		edit := <-session.emojiEdits
		assert.Equal(t, []string{"r2"}, edit.Params.Roles)
		resp := <-handler.callRespond
		assert.Contains(t, resp.Data.Content, "Still restricted to <@&r2>")
	})

	t.Run("all roles", func(t *testing.T) {
		session := newMockDiscordSession()
		emoji := testGuildEmoji(t, "r1", "r2")
		session.guildEmoji = emoji
		ip := newTestInterpunctWithSession(t, session)

		user := newDiscordUser(t)
		i := newEmojiInteraction(
			t, user, subcommand(
				emojiSubcommandUnrestrict,
				stringOption(emojiCommandEmojiOption, emoji.ID),
			),
		)
		handler := newStubInteractionHandler(t, i)

		ip.handleCommandEmoji(ctx, handler)

		edit := <-session.emojiEdits
		assert.Empty(t, edit.Params.Roles)
		resp := <-handler.callRespond
		assert.Contains(t, resp.Data.Content, "can now be used by everyone")
	})
}

func TestHandleCommandEmoji_Gates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("guild only", func(t *testing.T) {
		ip := newTestInterpunct(t)
		user := newDiscordUser(t)
		i := newCommandInteraction(
			t, user, DiscordSlashCommandEmoji,
			subcommand(
				emojiSubcommandInspect,
				stringOption(emojiCommandEmojiOption, "1234"),
			),
		)
		i.GuildID = ""
		i.Member = nil
		i.User = user
		handler := newStubInteractionHandler(t, i)

		ip.handleCommandEmoji(ctx, handler)
		resp := <-handler.callRespond
		assert.Equal(t, ip.messages.Get(msgGuildOnly), resp.Data.Content)
	})

	t.Run("permission required", func(t *testing.T) {
		session := newMockDiscordSession()
		emoji := testGuildEmoji(t)
		session.guildEmoji = emoji
		ip := newTestInterpunctWithSession(t, session)

		user := newDiscordUser(t)
		i := newCommandInteraction(
			t, user, DiscordSlashCommandEmoji,
			subcommand(
				emojiSubcommandRestrict,
				stringOption(emojiCommandEmojiOption, emoji.ID),
				roleOption(emojiCommandRoleOption, "r1"),
			),
		)
		i.Member.Permissions = 0
		handler := newStubInteractionHandler(t, i)

		ip.handleCommandEmoji(ctx, handler)
		resp := <-handler.callRespond
		assert.Equal(
			t, ip.messages.Get(msgManageEmojiRequired), resp.Data.Content,
		)
		assert.Empty(t, session.emojiEdits)
	})

	t.Run("unknown emoji", func(t *testing.T) {
		ip := newTestInterpunct(t)
		user := newDiscordUser(t)
		i := newEmojiInteraction(
			t, user, subcommand(
				emojiSubcommandInspect,
				stringOption(emojiCommandEmojiOption, "99999"),
			),
		)
		handler := newStubInteractionHandler(t, i)

		ip.handleCommandEmoji(ctx, handler)
		resp := <-handler.callRespond
		assert.Equal(t, ip.messages.Get(msgEmojiNotFound), resp.Data.Content)
	})
}
