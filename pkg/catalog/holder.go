package catalog

import (
	"sync"
	"sync/atomic"
)

// Holder publishes the current catalog snapshot. Readers call Load once per
// request and keep using that snapshot even if a reload swaps in a new one.
type Holder struct {
	cur  atomic.Pointer[Catalog]
	mu   sync.Mutex
	subs []func(*Catalog)
}

func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	h.cur.Store(c)
	return h
}

func (h *Holder) Load() *Catalog { return h.cur.Load() }

// Swap replaces the snapshot wholesale and notifies subscribers.
func (h *Holder) Swap(c *Catalog) {
	if c == nil {
		return
	}
	h.cur.Store(c)
	h.mu.Lock()
	subs := append(([]func(*Catalog))(nil), h.subs...)
	h.mu.Unlock()
	for _, fn := range subs {
		fn(c)
	}
}

// Subscribe registers fn to run after every Swap.
func (h *Holder) Subscribe(fn func(*Catalog)) {
	h.mu.Lock()
	h.subs = append(h.subs, fn)
	h.mu.Unlock()
}
