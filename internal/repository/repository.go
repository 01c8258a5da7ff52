package repository

import (
	"context"
	"errors"

	"solwatch/internal/models"
)

// ErrInvalidID is returned for identifiers that fail models.ValidWatchlistID.
var ErrInvalidID = errors.New("invalid watchlist id")

// WatchlistRepository is the cloud key-value store of whole watchlist
// documents. GetWatchlist reports found=false for unknown ids.
type WatchlistRepository interface {
	GetWatchlist(ctx context.Context, id string) (models.Watchlist, bool, error)
	UpsertWatchlist(ctx context.Context, id string, w models.Watchlist) error
	ListWatchlistIDs(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

type SettingsRepository interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
	CountSystemSettings(ctx context.Context, params ListSystemSettingsParams) (int64, error)
}

type SyncStateRepository interface {
	GetSyncState(ctx context.Context, scope string) (*models.SyncState, error)
	SaveSyncState(ctx context.Context, state *models.SyncState) error
	ListSyncStates(ctx context.Context) ([]models.SyncState, error)
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}
