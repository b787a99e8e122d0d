package wsclient

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/cache"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/protocol"
)

// Invalidator drops cached entries so the next read refetches them.
type Invalidator interface {
	DeleteFunc(match func(string) bool) int
}

// MatchesKey reports whether candidate belongs to the query family key:
// the key itself, or a key nested under it ("/api/x/1", "/api/x?page=2").
func MatchesKey(key, candidate string) bool {
	if candidate == key {
		return true
	}
	if !strings.HasPrefix(candidate, key) {
		return false
	}
	next := candidate[len(key)]
	return next == '/' || next == '?'
}

// BindInvalidation drops key and its nested keys from inv whenever a change
// for resource arrives. The returned function must be called on teardown.
func BindInvalidation(sub Subscriber, inv Invalidator, key, resource string) func() {
	return sub.Subscribe(func(f protocol.Frame) {
		if protocol.IsChangeFor(f, resource) {
			inv.DeleteFunc(func(k string) bool { return MatchesKey(key, k) })
		}
	})
}

// FetchFunc loads the authoritative value over plain request/response.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// LiveQuery is a cache-keyed fetch that invalidates itself on changes to
// one resource. It never fetches on its own; OnInvalidate can trigger a refetch.
type LiveQuery[T any] struct {
	key          string
	resource     string
	fetch        FetchFunc[T]
	store        cache.Cache[string, T]
	ttl          time.Duration
	onInvalidate func()

	mu sync.Mutex
	// gen is bumped on every invalidation; a fetch that started before
	// an invalidation must not repopulate the cache.
	gen uint64

	unsubscribe func()
	closeOnce   sync.Once
}

// LiveQueryOption configures a LiveQuery.
type LiveQueryOption[T any] func(*LiveQuery[T])

// WithTTL bounds how long a fetched value is served without any change event.
func WithTTL[T any](ttl time.Duration) LiveQueryOption[T] {
	return func(q *LiveQuery[T]) { q.ttl = ttl }
}

// WithOnInvalidate runs f after each invalidation, outside any lock.
func WithOnInvalidate[T any](f func()) LiveQueryOption[T] {
	return func(q *LiveQuery[T]) { q.onInvalidate = f }
}

// NewLiveQuery subscribes once; Close releases the subscription. A nil
// store gets a private concurrency-safe cache.
func NewLiveQuery[T any](sub Subscriber, store cache.Cache[string, T], key, resource string, fetch FetchFunc[T], opts ...LiveQueryOption[T]) *LiveQuery[T] {
	if store == nil {
		store = cache.NewSimpleCache[string, T](cache.Options{ConcurrencySafe: true})
	}
	q := &LiveQuery[T]{
		key:      key,
		resource: resource,
		fetch:    fetch,
		store:    store,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.unsubscribe = sub.Subscribe(func(f protocol.Frame) {
		if protocol.IsChangeFor(f, q.resource) {
			q.Invalidate()
		}
	})
	return q
}

// Key returns the cache key this query populates.
func (q *LiveQuery[T]) Key() string { return q.key }

// Get serves the cached value or fetches and caches it.
func (q *LiveQuery[T]) Get(ctx context.Context) (T, error) {
	if v, ok := q.store.Get(q.key); ok {
		return v, nil
	}

	q.mu.Lock()
	gen := q.gen
	q.mu.Unlock()

	v, err := q.fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	q.mu.Lock()
	if gen == q.gen {
		q.store.Set(q.key, v, q.ttl)
	}
	q.mu.Unlock()
	return v, nil
}

// Invalidate marks the cached value stale.
func (q *LiveQuery[T]) Invalidate() {
	q.mu.Lock()
	q.gen++
	q.store.Delete(q.key)
	q.mu.Unlock()

	if q.onInvalidate != nil {
		q.onInvalidate()
	}
}

// Close unsubscribes; later change events no longer touch the cache.
func (q *LiveQuery[T]) Close() {
	q.closeOnce.Do(q.unsubscribe)
}
