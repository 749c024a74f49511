package models

import "time"

// Formula is an administrator-authored rating expression. Source is compiled
// against the catalog before every write, so stored rows always compile.
type Formula struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Name      string `gorm:"size:128;not null;uniqueIndex"`
	Source    string `gorm:"type:text;not null"`
	Position  string `gorm:"size:32;index"` // optional role scope
	Color     string `gorm:"size:32"`       // display only
}
