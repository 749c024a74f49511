package reconcile

import (
	"context"
	"sync"
	"time"
)

// Snapshot is the persisted state of one stat row.
type Snapshot struct {
	Key               Key                `json:"key"`
	Position          string             `json:"position,omitempty"`
	Values            map[string]float64 `json:"values"`
	FieldConfidence   map[string]float64 `json:"field_confidence"`
	OverallConfidence float64            `json:"overall_confidence"`
	Version           int64              `json:"version"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Clone deep-copies the maps so callers can mutate freely.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Values = copyMap(s.Values)
	out.FieldConfidence = copyMap(s.FieldConfidence)
	return out
}

// Store is the persistence collaborator. Upsert must be atomic per key:
// expectedVersion 0 means "insert, the row must not exist", otherwise the
// row's version must still equal expectedVersion. Either mismatch returns
// ErrVersionConflict. The returned snapshot carries the new version.
type Store interface {
	Find(ctx context.Context, key Key) (*Snapshot, error)
	Upsert(ctx context.Context, snap Snapshot, expectedVersion int64) (*Snapshot, error)
}

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]Snapshot
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Snapshot), now: time.Now}
}

func (m *MemoryStore) Find(_ context.Context, key Key) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.rows[key.String()]
	if !ok {
		return nil, nil
	}
	c := s.Clone()
	return &c, nil
}

func (m *MemoryStore) Upsert(_ context.Context, snap Snapshot, expectedVersion int64) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := snap.Key.String()
	cur, exists := m.rows[k]
	switch {
	case expectedVersion == 0 && exists:
		return nil, ErrVersionConflict
	case expectedVersion != 0 && (!exists || cur.Version != expectedVersion):
		return nil, ErrVersionConflict
	}
	next := snap.Clone()
	next.Version = expectedVersion + 1
	next.UpdatedAt = m.now()
	m.rows[k] = next
	out := next.Clone()
	return &out, nil
}

// Len reports how many rows are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

func copyMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
