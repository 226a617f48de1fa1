package table

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Cached reads are trusted for this long before the store is consulted
// again, provided no mutation invalidated the table in between.
const cacheTTL = 5 * time.Minute

// entry is a tagged snapshot: its presence in the map means "cached", so a
// cached nil result is distinguishable from "not cached".
type entry struct {
	data any
	at   time.Time
}

// cache is the per-table read cache. Entries are inert data snapshots keyed
// by (method, serialized arguments). The freshness flag is table-scoped:
// any mutation drops it and clears every entry, any completed read raises
// it again.
type cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	fresh   bool
	ttl     time.Duration
	now     func() time.Time
}

func newCache() *cache {
	return &cache{
		entries: map[string]entry{},
		ttl:     cacheTTL,
		now:     time.Now,
	}
}

func cacheKey(method string, args ...any) string {
	buf, err := json.Marshal(args)
	if err != nil {
		// unserializable arguments never match a cached entry
		return fmt.Sprintf("%s:%p", method, &args)
	}
	return method + ":" + string(buf)
}

func (c *cache) get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.fresh {
		return nil, false
	}
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.at) > c.ttl {
		return nil, false
	}
	return e.data, true
}

func (c *cache) put(key string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{data: data, at: c.now()}
	c.fresh = true
}

func (c *cache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = map[string]entry{}
	c.fresh = false
}

func (c *cache) isFresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fresh
}
