package interpunct

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuildStore(t testing.TB) *GuildStore {
	t.Helper()
	db := newTestDB(t)
	return NewGuildStore(db, db, slog.Default())
}

func TestGuildStore_GetCreatesDefaults(t *testing.T) {
	t.Parallel()
	store := newTestGuildStore(t)
	ctx := context.Background()
	guildID := fmt.Sprintf("guild_%s", t.Name())

	settings, err := store.Get(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, guildID, settings.ID)
	assert.Equal(t, DefaultGuildPrefix, settings.Prefix)
	assert.True(t, settings.FunEnabled)
	assert.False(t, settings.Logging)
	assert.Equal(t, UnknownCommandAlways, settings.UnknownCommandMessages)
	assert.Empty(t, settings.ManageBotRole)
	assert.Empty(t, settings.QuotePastebin)

	// the default row is persisted, not just cached
	store.Invalidate(guildID)
	again, err := store.Get(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, settings.ID, again.ID)
	assert.Equal(t, settings.CreatedAt, again.CreatedAt)
}

func TestGuildStore_GetEmptyGuildID(t *testing.T) {
	t.Parallel()
	store := newTestGuildStore(t)
	_, err := store.Get(context.Background(), "")
	require.Error(t, err)
}

func TestGuildStore_Update(t *testing.T) {
	t.Parallel()
	store := newTestGuildStore(t)
	ctx := context.Background()
	guildID := fmt.Sprintf("guild_%s", t.Name())

	updated, err := store.Update(
		ctx, guildID, map[string]any{
			"prefix":         "pb!",
			"fun_enabled":    false,
			"quote_pastebin": "abc123",
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "pb!", updated.Prefix)
	assert.False(t, updated.FunEnabled)
	assert.Equal(t, "abc123", updated.QuotePastebin)

	// a fresh read sees the update
	store.InvalidateAll()
	reloaded, err := store.Get(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, "pb!", reloaded.Prefix)
	assert.False(t, reloaded.FunEnabled)
}

func TestGuildStore_CacheInvalidation(t *testing.T) {
	t.Parallel()
	store := newTestGuildStore(t)
	ctx := context.Background()
	guildID := fmt.Sprintf("guild_%s", t.Name())

	settings, err := store.Get(ctx, guildID)
	require.NoError(t, err)

	// mutate the row behind the cache's back
	err = store.writeDB.DB().Model(&GuildSettings{}).
		Where("id = ?", guildID).
		Update("prefix", "new!").Error
	require.NoError(t, err)

	// cached value still served
	cached, err := store.Get(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, settings.Prefix, cached.Prefix)

	store.Invalidate(guildID)
	fresh, err := store.Get(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, "new!", fresh.Prefix)
}

func TestGuildStore_RefreshLoop(t *testing.T) {
	t.Parallel()
	store := newTestGuildStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	guildID := fmt.Sprintf("guild_%s", t.Name())

	_, err := store.Get(ctx, guildID)
	require.NoError(t, err)

	err = store.writeDB.DB().Model(&GuildSettings{}).
		Where("id = ?", guildID).
		Update("prefix", "rl!").Error
	require.NoError(t, err)

	ch := make(chan string)
	done := make(chan struct{})
	go func() {
		store.refreshLoop(ctx, ch)
		close(done)
	}()
	ch <- guildID
	close(ch)
	<-done

	fresh, err := store.Get(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, "rl!", fresh.Prefix)
}
