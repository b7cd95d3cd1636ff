package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *entry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Cache is a TTL cache safe for concurrent use. Concurrent misses on one
// key share a single load, and a load that overlaps an invalidation is
// returned to its callers but not stored.
type Cache[V any] struct {
	mu         sync.RWMutex
	items      map[string]*entry[V]
	generation uint64
	defaultTTL time.Duration
	loads      singleflight.Group
	now        func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// New creates a cache whose janitor sweeps expired entries every half TTL.
func New[V any](defaultTTL time.Duration) *Cache[V] {
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}
	c := &Cache[V]{
		items:       make(map[string]*entry[V]),
		defaultTTL:  defaultTTL,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	go c.janitor(defaultTTL / 2)
	return c
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || e.expired(c.now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &entry[V]{value: value, expiresAt: c.now().Add(ttl)}
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	c.generation++
}

// Clear drops every entry and discards loads in flight.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry[V])
	c.generation++
}

// Invalidate removes every key starting with prefix and discards loads in
// flight.
func (c *Cache[V]) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
	c.generation++
}

// GetOrLoad returns the cached value for key or calls load and caches its
// result. Errors are not cached. Callers share a load only within one
// generation, so a caller arriving after an invalidation starts a fresh
// load under its own context.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	c.mu.RLock()
	e, ok := c.items[key]
	gen := c.generation
	c.mu.RUnlock()
	if ok && !e.expired(c.now()) {
		return e.value, nil
	}

	flight := strconv.FormatUint(gen, 10) + "\x00" + key
	v, err, _ := c.loads.Do(flight, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return value, err
		}

		c.mu.Lock()
		if c.generation == gen {
			c.items[key] = &entry[V]{value: value, expiresAt: c.now().Add(c.defaultTTL)}
		}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

func (c *Cache[V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, e := range c.items {
		if e.expired(now) {
			delete(c.items, key)
		}
	}
}

func (c *Cache[V]) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCleanup:
			return
		}
	}
}

// Stop ends the janitor. It is safe to call more than once.
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}

type Stats struct {
	Live    int
	Expired int
}

func (c *Cache[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var stats Stats
	now := c.now()
	for _, e := range c.items {
		if e.expired(now) {
			stats.Expired++
		} else {
			stats.Live++
		}
	}
	return stats
}
