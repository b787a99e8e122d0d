package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiration
}

func (e entry[V]) expired(at time.Time) bool {
	return !e.expiresAt.IsZero() && at.After(e.expiresAt)
}

// SimpleCache is a map-backed Cache. Expired entries are treated as misses
// and only removed by PurgeExpired or DeleteFunc.
type SimpleCache[K comparable, V any] struct {
	// nil when the cache is used from a single goroutine.
	mu *sync.RWMutex

	items map[K]entry[V]
}

// Options controls construction of a SimpleCache.
type Options struct {
	// ConcurrencySafe guards every operation with a RWMutex.
	ConcurrencySafe bool
}

func NewSimpleCache[K comparable, V any](opts Options) *SimpleCache[K, V] {
	var mu *sync.RWMutex
	if opts.ConcurrencySafe {
		mu = &sync.RWMutex{}
	}
	return &SimpleCache[K, V]{
		mu:    mu,
		items: make(map[K]entry[V]),
	}
}

func (c *SimpleCache[K, V]) rlock() func() {
	if c.mu == nil {
		return func() {}
	}
	c.mu.RLock()
	return c.mu.RUnlock
}

func (c *SimpleCache[K, V]) lock() func() {
	if c.mu == nil {
		return func() {}
	}
	c.mu.Lock()
	return c.mu.Unlock
}

// now is swapped in tests.
var now = time.Now

func (c *SimpleCache[K, V]) Get(key K) (V, bool) {
	defer c.rlock()()

	var zero V
	e, ok := c.items[key]
	if !ok || e.expired(now()) {
		return zero, false
	}
	return e.value, true
}

func (c *SimpleCache[K, V]) Set(key K, value V, ttl time.Duration) {
	defer c.lock()()

	var exp time.Time
	if ttl > 0 {
		exp = now().Add(ttl)
	}
	c.items[key] = entry[V]{value: value, expiresAt: exp}
}

func (c *SimpleCache[K, V]) Delete(key K) {
	defer c.lock()()
	delete(c.items, key)
}

func (c *SimpleCache[K, V]) DeleteFunc(match func(K) bool) int {
	defer c.lock()()
	removed := 0
	for k := range c.items {
		if match(k) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

func (c *SimpleCache[K, V]) Has(key K) bool {
	defer c.rlock()()
	e, ok := c.items[key]
	return ok && !e.expired(now())
}

func (c *SimpleCache[K, V]) Len() int {
	defer c.rlock()()
	at := now()
	count := 0
	for _, e := range c.items {
		if !e.expired(at) {
			count++
		}
	}
	return count
}

func (c *SimpleCache[K, V]) Clear() {
	defer c.lock()()
	c.items = make(map[K]entry[V])
}

func (c *SimpleCache[K, V]) PurgeExpired() {
	defer c.lock()()
	at := now()
	for k, e := range c.items {
		if e.expired(at) {
			delete(c.items, k)
		}
	}
}

var _ Cache[string, any] = (*SimpleCache[string, any])(nil)
