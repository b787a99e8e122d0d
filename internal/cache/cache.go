package cache

import "time"

// Cache is a key-value store with optional per-entry TTL. The real-time
// client keeps fetched query results here and drops them on change events.
type Cache[K comparable, V any] interface {
	// Get returns the value and whether it was present and not expired.
	Get(key K) (V, bool)

	// Set stores the value. If ttl <= 0, the entry does not expire.
	Set(key K, value V, ttl time.Duration)

	// Delete removes a key if present.
	Delete(key K)

	// DeleteFunc removes every key for which match returns true and
	// reports how many entries were removed.
	DeleteFunc(match func(K) bool) int

	Has(key K) bool

	// Len counts non-expired entries.
	Len() int

	Clear()

	// PurgeExpired removes expired entries.
	PurgeExpired()
}
