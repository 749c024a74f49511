package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"leaguestats/pkg/catalog"
	"leaguestats/pkg/normalize"

	"github.com/sirupsen/logrus"
)

// Outcome reports what Apply did. Current equals Previous unless Status is
// APPLIED.
type Outcome struct {
	Status   Status                 `json:"status"`
	Previous *Snapshot              `json:"previous,omitempty"`
	Current  Snapshot               `json:"current"`
	Fields   map[string]FieldResult `json:"fields"`
}

// Rejected lists fields where the stored reading won, sorted.
func (o Outcome) Rejected() []string { return o.with(FieldRejected) }

// Updated lists fields that took the incoming reading, sorted.
func (o Outcome) Updated() []string { return o.with(FieldUpdated) }

func (o Outcome) with(r FieldResult) []string {
	var out []string
	for name, fr := range o.Fields {
		if fr == r {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Options configures an Engine.
type Options struct {
	Tolerances Tolerances
	// Locker serialises Apply per key. Defaults to an in-process locker.
	Locker Locker
	// MaxAttempts bounds retries after a version conflict.
	MaxAttempts int
}

// Engine is the decision layer in front of the Store.
type Engine struct {
	store       Store
	locker      Locker
	tol         Tolerances
	maxAttempts int
	log         logrus.FieldLogger
}

func NewEngine(store Store, opts Options, log logrus.FieldLogger) *Engine {
	if opts.Locker == nil {
		opts.Locker = NewMemoryLocker()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &Engine{store: store, locker: opts.Locker, tol: opts.Tolerances, maxAttempts: opts.MaxAttempts, log: log}
}

// Apply merges rec into the row for key. Writes happen only when at least one
// field is updated, and then as a single versioned upsert.
func (e *Engine) Apply(ctx context.Context, key Key, rec normalize.Record, position string, cat *catalog.Catalog) (Outcome, error) {
	if err := key.Validate(); err != nil {
		return Outcome{}, err
	}
	unlock, err := e.locker.Lock(ctx, key.String())
	if err != nil {
		return Outcome{}, fmt.Errorf("lock %s: %w", key, err)
	}
	defer unlock()

	log := e.log.WithField("key", key.String())
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		prev, err := e.store.Find(ctx, key)
		if err != nil {
			return Outcome{}, fmt.Errorf("find %s: %w", key, err)
		}
		next, fields, status := Merge(prev, key, rec, position, cat, e.tol)
		out := Outcome{Status: status, Previous: prev, Current: next, Fields: fields}
		if status != StatusApplied {
			log.WithField("status", status).Debug("reconcile: no write")
			return out, nil
		}

		var expected int64
		if prev != nil {
			expected = prev.Version
		}
		committed, err := e.store.Upsert(ctx, next, expected)
		if errors.Is(err, ErrVersionConflict) {
			log.WithField("attempt", attempt).Warn("reconcile: version conflict, re-reading")
			continue
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("upsert %s: %w", key, err)
		}
		out.Current = *committed
		log.WithFields(logrus.Fields{
			"version":  committed.Version,
			"updated":  len(out.Updated()),
			"rejected": len(out.Rejected()),
		}).Info("reconcile: applied")
		return out, nil
	}
	return Outcome{}, fmt.Errorf("%w: %s", ErrContended, key)
}
