package interpunct

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// ErrPanelNotFound is returned when loading a panel name that doesn't
// exist for the given owner.
var ErrPanelNotFound = errors.New("panel not found")

// panelListLimit caps how many saved panels are shown per owner in the
// save/load screens.
const panelListLimit = 10

// Panel is a named, saved button panel. OwnerID is either a guild ID
// (server panels) or a user ID (personal panels); the two namespaces
// never collide because snowflakes are unique across both.
//
//nolint:lll // struct tags can't be split
type Panel struct {
	ModelUintID
	ModelUnixTime
	OwnerID     string `json:"owner_id" gorm:"not null;uniqueIndex:idx_panels_owner_name"`
	Name        string `json:"name" gorm:"size:60;not null;uniqueIndex:idx_panels_owner_name"`
	LastUpdated int64  `json:"last_updated" gorm:"not null"`
	CreatedBy   string `json:"created_by" gorm:"not null"`
	Data        string `json:"data" gorm:"type:string"`
}

func (p Panel) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("id", uint64(p.ID)),
		slog.String("owner_id", p.OwnerID),
		slog.String("name", p.Name),
		slog.Int64("last_updated", p.LastUpdated),
		slog.String("created_by", p.CreatedBy),
	)
}

// PanelStore provides access to saved panels.
type PanelStore struct {
	db      DBI
	writeDB DBI
	logger  *slog.Logger
}

func NewPanelStore(db DBI, writeDB DBI, logger *slog.Logger) *PanelStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PanelStore{
		db:      db,
		writeDB: writeDB,
		logger:  logger.With(loggerNameKey, "panel_store"),
	}
}

// List returns summaries of the owner's saved panels, most recently
// updated first.
func (s *PanelStore) List(ctx context.Context, ownerID string) ([]PanelMeta, error) {
	var rows []Panel
	err := s.db.DB().WithContext(ctx).
		Select("name", "last_updated", "created_by").
		Where("owner_id = ?", ownerID).
		Order("last_updated desc").
		Limit(panelListLimit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error listing panels: %w", err)
	}
	metas := make([]PanelMeta, 0, len(rows))
	for _, row := range rows {
		metas = append(
			metas,
			PanelMeta{
				Name:        row.Name,
				LastUpdated: row.LastUpdated,
				CreatedBy:   row.CreatedBy,
			},
		)
	}
	return metas, nil
}

// Get returns the full saved panel row for the given owner and name.
func (s *PanelStore) Get(ctx context.Context, ownerID string, name string) (*Panel, error) {
	var row Panel
	err := s.db.DB().WithContext(ctx).
		Where("owner_id = ? AND name = ?", ownerID, name).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPanelNotFound
		}
		return nil, fmt.Errorf("error loading panel: %w", err)
	}
	return &row, nil
}

// Load returns the saved panel payload and its metadata for the given
// owner and name.
func (s *PanelStore) Load(ctx context.Context, ownerID string, name string) (
	SavedPanel,
	PanelMeta,
	error,
) {
	row, err := s.Get(ctx, ownerID, name)
	if err != nil {
		return SavedPanel{}, PanelMeta{}, err
	}
	var panel SavedPanel
	if err = json.Unmarshal([]byte(row.Data), &panel); err != nil {
		return SavedPanel{}, PanelMeta{}, fmt.Errorf(
			"error decoding panel %q: %w", name, err,
		)
	}
	meta := PanelMeta{
		Name:        row.Name,
		LastUpdated: row.LastUpdated,
		CreatedBy:   row.CreatedBy,
	}
	return panel, meta, nil
}

// Save inserts or overwrites the named panel for the given owner, and
// returns the new last_updated timestamp.
func (s *PanelStore) Save(
	ctx context.Context,
	ownerID string,
	name string,
	createdBy string,
	panel SavedPanel,
) (int64, error) {
	data, err := json.Marshal(panel)
	if err != nil {
		return 0, fmt.Errorf("error encoding panel %q: %w", name, err)
	}
	now := time.Now().UTC().UnixMilli()

	var existing Panel
	findErr := s.db.DB().WithContext(ctx).
		Where("owner_id = ? AND name = ?", ownerID, name).
		First(&existing).Error
	switch {
	case findErr == nil:
		_, err = s.writeDB.Updates(
			ctx,
			&existing,
			map[string]any{
				"last_updated": now,
				"created_by":   createdBy,
				"data":         string(data),
			},
		)
	case errors.Is(findErr, gorm.ErrRecordNotFound):
		row := &Panel{
			OwnerID:     ownerID,
			Name:        name,
			LastUpdated: now,
			CreatedBy:   createdBy,
			Data:        string(data),
		}
		_, err = s.writeDB.Create(ctx, row)
	default:
		err = findErr
	}
	if err != nil {
		return 0, fmt.Errorf("error saving panel %q: %w", name, err)
	}
	s.logger.InfoContext(
		ctx,
		"saved panel",
		"owner_id", ownerID,
		"name", name,
		"created_by", createdBy,
	)
	return now, nil
}
