package main

import (
	"os"

	"leaguestats/pkg/store"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// initDB opens the configured database and, unless DB_AUTO_MIGRATE is off,
// migrates every table. Migration problems are logged and do not stop the
// server; a missing table surfaces on first use instead.
func initDB(cfg Config, log logrus.FieldLogger) (*gorm.DB, error) {
	db, err := store.Open(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := store.Migrate(db, log); err != nil {
			log.WithError(err).Warn("migration incomplete")
		}
	}
	ensureUploadBase(cfg.UploadDir, log)
	return db, nil
}

// ensureUploadBase creates the directory accepted screenshots are kept in.
func ensureUploadBase(dir string, log logrus.FieldLogger) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.WithError(err).WithField("dir", dir).Warn("failed to create upload dir")
	}
}
