package formula

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"leaguestats/pkg/catalog"

	"golang.org/x/sync/singleflight"
)

// Cache holds compiled formulas keyed by source and catalog version, so a
// ranking over hundreds of players compiles once. Concurrent misses for the
// same key share one compilation.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Compiled
	gen     uint64 // bumped by Reset
	group   singleflight.Group
}

var compileFn = Compile

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Compiled)}
}

func cacheKey(src string, cat *catalog.Catalog) string {
	h := sha256.New()
	h.Write([]byte(src))
	h.Write([]byte{0})
	h.Write([]byte(cat.Version()))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the compiled form of src, compiling on a miss. Compile errors
// are not cached.
func (c *Cache) Get(src string, cat *catalog.Catalog) (*Compiled, error) {
	key := cacheKey(src, cat)
	c.mu.RLock()
	hit, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return hit, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()
		compiled, err := compileFn(src, cat)
		if err != nil {
			return nil, err
		}
		// a Reset during compilation means cat is no longer current
		c.mu.Lock()
		if c.gen == gen {
			c.entries[key] = compiled
		}
		c.mu.Unlock()
		return compiled, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Compiled), nil
}

// Reset drops every entry. Called when the catalog is swapped.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]*Compiled)
	c.gen++
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
