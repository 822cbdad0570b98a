// Package cache holds small in-process read-through caches.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// loadTimeout bounds a shared load once it no longer follows any caller's context.
const loadTimeout = 10 * time.Second

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTL keeps values for a fixed duration after they were stored.
// Concurrent misses on the same key share a single load.
type TTL[V any] struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry[V]
}

func NewTTL[V any](ttl time.Duration, now func() time.Time) *TTL[V] {
	if now == nil {
		now = time.Now
	}
	return &TTL[V]{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the cached value and whether it is still fresh.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value as loaded at storedAt; freshness is measured from there.
func (c *TTL[V]) Put(key string, value V, storedAt time.Time) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, storedAt: storedAt}
	c.mu.Unlock()
}

// GetOrLoad serves a fresh entry or calls load and caches its result.
// hit reports whether the value came from the cache. Failed loads are not cached.
// The load is shared by concurrent callers, so it runs detached from ctx
// cancellation and is bounded by loadTimeout instead.
func (c *TTL[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (value V, hit bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		loadedAt := c.now()
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.Put(key, v, loadedAt)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}

	return res.(V), false, nil
}
