package interpunct

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/gorm"
)

// UnknownCommandVisibility controls who sees errors for unrecognized
// prefixed commands.
type UnknownCommandVisibility string

const (
	UnknownCommandAlways UnknownCommandVisibility = "always"
	UnknownCommandAdmins UnknownCommandVisibility = "admins"
	UnknownCommandNever  UnknownCommandVisibility = "never"
)

// GuildSettings holds per-guild configuration. Rows are created lazily
// with defaults the first time a guild is seen.
//
//nolint:lll // struct tags can't be split
type GuildSettings struct {
	ModelStringID
	ModelUnixTime
	Prefix                 string                   `json:"prefix" gorm:"type:string"`
	FunEnabled             bool                     `json:"fun_enabled"`
	Logging                bool                     `json:"logging"`
	UnknownCommandMessages UnknownCommandVisibility `json:"unknown_command_messages" gorm:"type:string"`
	ManageBotRole          string                   `json:"manage_bot_role" gorm:"type:string"`
	QuotePastebin          string                   `json:"quote_pastebin" gorm:"type:string"`
}

func defaultGuildSettings(guildID string) *GuildSettings {
	return &GuildSettings{
		ModelStringID:          ModelStringID{ID: guildID},
		Prefix:                 DefaultGuildPrefix,
		FunEnabled:             true,
		UnknownCommandMessages: UnknownCommandAlways,
	}
}

func (g GuildSettings) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", g.ID),
		slog.String("prefix", g.Prefix),
		slog.Bool("fun_enabled", g.FunEnabled),
		slog.Bool("logging", g.Logging),
		slog.String("unknown_command_messages", string(g.UnknownCommandMessages)),
		slog.String("manage_bot_role", g.ManageBotRole),
		slog.String("quote_pastebin", g.QuotePastebin),
	)
}

// GuildStore caches guild settings in memory in front of the database.
// Cache entries are dropped on update notifications from the DB
// notifier, so multiple bot instances sharing a postgres database stay
// consistent.
type GuildStore struct {
	db       DBI
	writeDB  DBI
	notifier DBNotifier
	logger   *slog.Logger

	mu    sync.RWMutex
	cache map[string]*GuildSettings
}

func NewGuildStore(db DBI, writeDB DBI, logger *slog.Logger) *GuildStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuildStore{
		db:      db,
		writeDB: writeDB,
		logger:  logger.With(loggerNameKey, "guild_store"),
		cache:   map[string]*GuildSettings{},
	}
}

func (s *GuildStore) setNotifier(n DBNotifier) {
	s.notifier = n
}

// Get returns the settings for the guild, creating a default row if the
// guild hasn't been seen before.
func (s *GuildStore) Get(ctx context.Context, guildID string) (*GuildSettings, error) {
	if guildID == "" {
		return nil, errors.New("empty guild ID")
	}

	s.mu.RLock()
	cached, ok := s.cache[guildID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	var settings GuildSettings
	err := s.db.DB().WithContext(ctx).
		Where("id = ?", guildID).
		First(&settings).Error
	switch {
	case err == nil:
		//
	case errors.Is(err, gorm.ErrRecordNotFound):
		created := defaultGuildSettings(guildID)
		if _, createErr := s.writeDB.Create(ctx, created); createErr != nil {
			return nil, fmt.Errorf("error creating guild settings: %w", createErr)
		}
		s.logger.InfoContext(
			ctx, "created default guild settings", "guild_id", guildID,
		)
		settings = *created
	default:
		return nil, fmt.Errorf("error loading guild settings: %w", err)
	}

	s.mu.Lock()
	s.cache[guildID] = &settings
	s.mu.Unlock()
	return &settings, nil
}

// Update applies the given column updates to the guild's settings,
// invalidates the local cache, and notifies other instances.
func (s *GuildStore) Update(
	ctx context.Context,
	guildID string,
	updates map[string]any,
) (*GuildSettings, error) {
	settings, err := s.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	if _, err = s.writeDB.Updates(ctx, settings, updates); err != nil {
		return nil, fmt.Errorf("error updating guild settings: %w", err)
	}
	s.Invalidate(guildID)

	if s.notifier != nil {
		if !s.notifier.GuildSettingsUpdated(ctx, guildID) {
			s.logger.WarnContext(
				ctx,
				"failed to notify guild settings update",
				"guild_id", guildID,
			)
		}
	}

	updated, err := s.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(
		ctx,
		"updated guild settings",
		"guild_id", guildID,
		"settings", updated,
	)
	return updated, nil
}

// Invalidate drops the cached settings for the guild, forcing the next
// Get to hit the database.
func (s *GuildStore) Invalidate(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, guildID)
}

// InvalidateAll drops the entire cache.
func (s *GuildStore) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = map[string]*GuildSettings{}
}

// refreshLoop drops cache entries named on the channel until ctx is
// done. It is fed by the DB notifier.
func (s *GuildStore) refreshLoop(ctx context.Context, ch <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case guildID, ok := <-ch:
			if !ok {
				return
			}
			if guildID == "" {
				s.InvalidateAll()
			} else {
				s.Invalidate(guildID)
			}
			s.logger.Debug(
				"invalidated guild settings cache",
				"guild_id", guildID,
			)
		}
	}
}
