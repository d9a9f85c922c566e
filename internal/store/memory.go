package store

import (
	"strings"
	"sync"
	"time"
)

// Key identifies one cached provider result.
// Namespace is the data domain; invalidation works per namespace.
type Key struct {
	Namespace string
	Endpoint  string
	Query     string
	Provider  string
}

func (k Key) String() string {
	return k.Namespace + ":" + k.Endpoint + ":" + k.Query + ":" + k.Provider
}

// NormalizeQuery makes queries that differ only in case or surrounding space share an entry.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// FetchFunc produces a value on a cache miss and reports whether it represents a failure.
type FetchFunc func() (value any, failed bool)

type entry struct {
	value     any
	expiresAt time.Time
}

// MemoryCache is a concurrency-safe, time-boxed memo of provider results.
type MemoryCache struct {
	mu sync.RWMutex

	// key: Key.String()
	data map[string]entry
	// generation per namespace, bumped on invalidation
	generations map[string]uint64

	failureTTL time.Duration
	now        func() time.Time
}

// NewMemoryCache creates a cache. Failed results are kept for at most failureTTL.
func NewMemoryCache(failureTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		data:        make(map[string]entry),
		generations: make(map[string]uint64),
		failureTTL:  failureTTL,
		now:         time.Now,
	}
}

// SetClock replaces the time source, used by tests.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns a live entry.
func (c *MemoryCache) Get(key Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[key.String()]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// GetOrFetch returns the cached value for key or calls fetch and stores its result.
// Concurrent misses on the same key may both call fetch; the last store wins.
func (c *MemoryCache) GetOrFetch(key Key, ttl time.Duration, fetch FetchFunc) any {
	if v, ok := c.Get(key); ok {
		return v
	}

	gen := c.generation(key.Namespace)
	value, failed := fetch()

	if failed && c.failureTTL > 0 && c.failureTTL < ttl {
		ttl = c.failureTTL
	}
	if ttl <= 0 {
		return value
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// The namespace was invalidated while fetching; the value may come from the old provider.
	if c.generations[key.Namespace] != gen {
		return value
	}
	c.data[key.String()] = entry{value: value, expiresAt: c.now().Add(ttl)}
	return value
}

// InvalidateNamespace drops every entry of the namespace, for all queries and providers.
func (c *MemoryCache) InvalidateNamespace(namespace string) int {
	prefix := namespace + ":"

	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[namespace]++
	removed := 0
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
			removed++
		}
	}
	return removed
}

// Sweep removes expired entries.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.data {
		if !now.Before(e.expiresAt) {
			delete(c.data, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func (c *MemoryCache) generation(namespace string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[namespace]
}
