// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package taxonomy

import (
	"sort"
	"sync"

	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// Cache maps normalized organism names to resolutions. It is safe for
// concurrent use. Entries never expire; the first value stored under a key
// is the one every later reader sees.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]types.TaxonResolution
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]types.TaxonResolution)}
}

// Get returns the resolution cached under key.
func (c *Cache) Get(key string) (types.TaxonResolution, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	return r, ok
}

// Upsert stores r under key unless the key is already present, and returns
// the value that ends up cached. Concurrent upserts for one key converge
// on a single value.
func (c *Cache) Upsert(key string, r types.TaxonResolution) types.TaxonResolution {
	c.mu.Lock()
	defer c.mu.Unlock()
	if have, ok := c.entries[key]; ok {
		return have
	}
	r.Key = key
	c.entries[key] = r
	return r
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Warm loads previously stored resolutions. Only resolved entries are
// loaded; misses are retried in the new process.
func (c *Cache) Warm(entries []types.TaxonResolution) int {
	n := 0
	for _, r := range entries {
		if r.Key == "" || !r.Resolved() {
			continue
		}
		if got := c.Upsert(r.Key, r); got == r {
			n++
		}
	}
	return n
}

// Entries returns every cached resolution ordered by key.
func (c *Cache) Entries() []types.TaxonResolution {
	c.mu.RLock()
	out := make([]types.TaxonResolution, 0, len(c.entries))
	for _, r := range c.entries {
		out = append(out, r)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
