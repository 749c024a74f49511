package models

import (
	"time"

	"gorm.io/datatypes"
)

// PlayerStatRecord is the single row per (player, match) or (player, season, team).
// RecordKey carries the composite key and is unique; Version backs the
// compare-and-swap used by reconciliation.
type PlayerStatRecord struct {
	ID                uint `gorm:"primaryKey"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	RecordKey         string         `gorm:"size:255;not null;uniqueIndex"`
	Scope             string         `gorm:"size:16;not null;index"`
	PlayerID          string         `gorm:"size:64;not null;index"`
	MatchID           *string        `gorm:"size:64;index"`
	SeasonID          *string        `gorm:"size:64;index:idx_season_team"`
	TeamID            *string        `gorm:"size:64;index:idx_season_team"`
	Position          string         `gorm:"size:32"`
	Values            datatypes.JSON `gorm:"column:stat_values;not null"`      // map[string]float64
	FieldConfidence   datatypes.JSON `gorm:"column:field_confidence;not null"` // map[string]float64
	OverallConfidence float64        `gorm:"not null;default:0"`
	Version           int64          `gorm:"not null;default:1"`
}
