package main

import (
	"context"
	"fmt"

	"leaguestats/models"
	"leaguestats/pkg/catalog"
	"leaguestats/pkg/formula"
	"leaguestats/pkg/ingest"
	"leaguestats/pkg/ocr"
	"leaguestats/pkg/reconcile"
	"leaguestats/pkg/store"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// app holds everything the HTTP handlers and the directory watcher share.
type app struct {
	cfg Config
	log *logrus.Entry
	db  *gorm.DB

	catalogs   *catalog.Holder
	stats      *store.StatStore
	formulas   *store.FormulaStore
	roleStore  *store.RoleMappingStore
	uploads    *store.UploadStore
	cache      *formula.Cache
	engine     *formula.Engine
	reconciler *reconcile.Engine
	pipeline   *ingest.Pipeline
	recognizer ocr.Recognizer

	closers []func() error
}

// newApp wires the stores and engines around db. recognizer is injected so
// tests can run without an OCR engine installed.
func newApp(ctx context.Context, cfg Config, log *logrus.Entry, db *gorm.DB, recognizer ocr.Recognizer) (*app, error) {
	cat, err := catalog.LoadOrDefault(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	a := &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		catalogs:   catalog.NewHolder(cat),
		stats:      store.NewStatStore(db),
		formulas:   store.NewFormulaStore(db),
		roleStore:  store.NewRoleMappingStore(db),
		uploads:    store.NewUploadStore(db),
		cache:      formula.NewCache(),
		recognizer: recognizer,
	}
	a.catalogs.Subscribe(func(c *catalog.Catalog) {
		a.cache.Reset()
		log.WithField("version", c.Version()).Info("catalog swapped, formula cache cleared")
	})

	var locker reconcile.Locker = reconcile.NewMemoryLocker()
	if cfg.RedisURL != "" {
		rl, err := reconcile.NewRedisLockerFromURL(ctx, cfg.RedisURL, cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("redis locker: %w", err)
		}
		locker = rl
		a.closers = append(a.closers, rl.Close)
	}
	a.reconciler = reconcile.NewEngine(a.stats, reconcile.Options{
		Tolerances: cfg.Tolerances,
		Locker:     locker,
	}, log.WithField("component", "reconcile"))

	roles, err := a.loadRoles(ctx)
	if err != nil {
		return nil, err
	}
	a.engine = formula.NewEngine(roles)

	a.pipeline = ingest.New(a.catalogs, recognizer, a.reconciler, ingest.Options{
		Extract:    cfg.Extract,
		Parse:      cfg.Parse,
		OCRWorkers: cfg.OCRWorkers,
	}, log.WithField("component", "ingest"))
	return a, nil
}

func (a *app) loadRoles(ctx context.Context) (*formula.RoleMap, error) {
	rows, err := a.roleStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load role mappings: %w", err)
	}
	return formula.NewRoleMap(toMappings(rows))
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.WithError(err).Warn("close failed")
		}
	}
}

// ocrState reports the breaker state when the recognizer has one.
func (a *app) ocrState() string {
	if s, ok := a.recognizer.(interface{ State() string }); ok {
		return s.State()
	}
	return "n/a"
}

func toMappings(rows []models.PositionRoleMapping) []formula.Mapping {
	out := make([]formula.Mapping, len(rows))
	for i, r := range rows {
		out[i] = formula.Mapping{Position: r.Position, Formation: r.Formation, Role: r.Role}
	}
	return out
}

func fromMappings(ms []formula.Mapping) []models.PositionRoleMapping {
	out := make([]models.PositionRoleMapping, len(ms))
	for i, m := range ms {
		out[i] = models.PositionRoleMapping{Position: m.Position, Formation: m.Formation, Role: m.Role}
	}
	return out
}
