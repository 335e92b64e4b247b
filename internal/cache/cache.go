// Package cache provides an in-memory TTL cache and a memoizing wrapper that
// applies it to a fallible function.
package cache

import (
	"slices"
	"sync"
	"time"
)

// TTL is an in-memory cache whose entries expire a fixed duration after they
// are stored. Expiry is checked lazily on lookup; there is no sweeper. When a
// limit is set, Set keeps the cache at or below it by purging expired
// entries and then the ones closest to expiry.
type TTL[V any] struct {
	mu         sync.RWMutex
	items      map[string]entry[V]
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewTTL creates a TTL cache.
func NewTTL[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		items: make(map[string]entry[V]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the value and true if present and not yet expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// Another writer may have refreshed the entry in between.
		if cur, ok := c.items[key]; ok && !c.now().Before(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry whole.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.items[key]; !exists && c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		c.evict(now, c.maxEntries-1)
	}
	c.items[key] = entry[V]{value: value, expiresAt: now.Add(c.ttl)}
}

// evict drops expired entries, then the entries closest to expiry until at
// most keep remain. c.mu must be held.
func (c *TTL[V]) evict(now time.Time, keep int) {
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
		}
	}
	if len(c.items) <= keep {
		return
	}

	type aged struct {
		key       string
		expiresAt time.Time
	}
	byExpiry := make([]aged, 0, len(c.items))
	for k, e := range c.items {
		byExpiry = append(byExpiry, aged{k, e.expiresAt})
	}
	slices.SortFunc(byExpiry, func(a, b aged) int { return a.expiresAt.Compare(b.expiresAt) })
	for _, a := range byExpiry[:len(byExpiry)-keep] {
		delete(c.items, a.key)
	}
}

// SetMaxEntries caps the number of stored entries. Zero means unbounded.
func (c *TTL[V]) SetMaxEntries(n int) {
	c.mu.Lock()
	c.maxEntries = max(n, 0)
	if c.maxEntries > 0 && len(c.items) > c.maxEntries {
		c.evict(c.now(), c.maxEntries)
	}
	c.mu.Unlock()
}

// Delete removes key.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, including expired ones that
// have not been looked up since they expired.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	n := len(c.items)
	c.mu.RUnlock()
	return n
}

// SetClock replaces the time source. Intended for tests.
func (c *TTL[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}
