package settings

import (
	"sync"
	"time"
)

// cache is a transient-like layer over the resolved settings map, keyed
// by environment. Writes to the settings bag delete every entry rather
// than updating in place.
type cache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	data    map[string]any
	expires time.Time
}

func newCache(ttl time.Duration) *cache {
	return &cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *cache) get(env string) (map[string]any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[env]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.data, true
}

func (c *cache) set(env string, data map[string]any) {
	c.mu.Lock()
	c.entries[env] = cacheEntry{
		data:    data,
		expires: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// purge drops all cached entries. Called on every settings write.
func (c *cache) purge() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
