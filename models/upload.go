package models

import (
	"time"
)

// Upload records one screenshot submitted for ingestion. Rows are kept even
// when extraction fails so a reviewer can look at low-confidence results.
type Upload struct {
	ID                uint `gorm:"primaryKey"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	RequestID         string  `gorm:"size:64;not null;uniqueIndex"`
	FileName          string  `gorm:"size:255;not null;index"`
	StorePath         string  `gorm:"column:store_path;size:512"` // kept screenshot or watched source path
	ContentType       string  `gorm:"size:128"`
	RecordKey         string  `gorm:"size:255;index"`
	Status            string  `gorm:"size:16"` // reconciliation status, empty when not reconciled
	OverallConfidence float64 `gorm:"default:0"`
	Failed            bool    `gorm:"default:false;index"`
	FailedReason      string  `gorm:"size:255"`
}
