package models

import "time"

// PositionRoleMapping translates a nominal position into a tactical role for
// one formation. At most one row per (position, formation).
type PositionRoleMapping struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Position  string `gorm:"size:32;not null;uniqueIndex:idx_position_formation"`
	Formation string `gorm:"size:32;not null;uniqueIndex:idx_position_formation"`
	Role      string `gorm:"size:32;not null"`
}
