// Package store persists stat records, formulas, role mappings and upload
// audit rows with gorm. Postgres is the production backend; a "sqlite:" DSN
// selects SQLite for local runs and tests.
package store

import (
	"fmt"
	"strings"

	"leaguestats/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects using dsn. "sqlite:<path>" and "sqlite::memory:" use SQLite,
// anything else is handed to the Postgres driver.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_DSN is not set")
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	var dial gorm.Dialector
	if strings.HasPrefix(dsn, "sqlite:") {
		dial = sqlite.Open(strings.TrimPrefix(dsn, "sqlite:"))
	} else {
		dial = postgres.Open(dsn)
	}
	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table. Models are migrated one at a time
// so a permission problem on one table does not block the others.
func Migrate(db *gorm.DB, log logrus.FieldLogger) error {
	var firstErr error
	for _, m := range []struct {
		name  string
		model any
	}{
		{"player_stat_records", &models.PlayerStatRecord{}},
		{"formulas", &models.Formula{}},
		{"position_role_mappings", &models.PositionRoleMapping{}},
		{"uploads", &models.Upload{}},
	} {
		if err := db.AutoMigrate(m.model); err != nil {
			log.WithError(err).WithField("table", m.name).Warn("migration warning")
			if firstErr == nil {
				firstErr = fmt.Errorf("migrate %s: %w", m.name, err)
			}
		}
	}
	return firstErr
}

// isUniqueConstraintError matches the duplicate-key messages of both backends.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") ||
		strings.Contains(s, "UNIQUE constraint failed") || strings.Contains(s, "already exists")
}
