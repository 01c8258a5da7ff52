package models

import (
	"time"

	"gorm.io/datatypes"
)

// WatchlistDocument is the cloud row: one whole watchlist per identifier.
type WatchlistDocument struct {
	ID        string         `gorm:"primaryKey;type:text"`
	Data      datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"type:timestamptz;index"`
}

func (WatchlistDocument) TableName() string {
	return "watchlists"
}
