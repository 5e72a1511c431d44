package mentions

import (
	"context"
	"sync"
	"time"
)

// Clock returns the current time. Tests substitute a controllable one.
type Clock func() time.Time

// FetchFunc loads the value for a key from its source of truth.
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

type cacheEntry[V any] struct {
	fetchedAt time.Time
	value     V
}

// TTRCache is a time-to-refresh cache: an entry is served as-is until it is
// ttr old, after which the next Get refetches it. Entries are never evicted.
// A failed refetch keeps the old entry so the following Get tries again.
//
// Concurrent Gets for the same missing or stale key may each fetch.
type TTRCache[K comparable, V any] struct {
	ttr   time.Duration
	fetch FetchFunc[K, V]
	now   Clock

	mu      sync.Mutex
	entries map[K]cacheEntry[V]
}

// NewTTRCache creates a cache. A nil clock means time.Now.
func NewTTRCache[K comparable, V any](ttr time.Duration, fetch FetchFunc[K, V], clock Clock) *TTRCache[K, V] {
	if clock == nil {
		clock = time.Now
	}
	return &TTRCache[K, V]{
		ttr:     ttr,
		fetch:   fetch,
		now:     clock,
		entries: make(map[K]cacheEntry[V]),
	}
}

// Get returns the cached value for key, fetching it first when it is absent
// or at least ttr old.
func (c *TTRCache[K, V]) Get(ctx context.Context, key K) (V, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()

	if ok && c.now().Sub(entry.fetchedAt) < c.ttr {
		return entry.value, nil
	}

	value, err := c.fetch(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry[V]{fetchedAt: c.now(), value: value}
	c.mu.Unlock()
	return value, nil
}

// Len returns the number of cached entries.
func (c *TTRCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
