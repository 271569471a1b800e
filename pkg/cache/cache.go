package cache

import (
	"context"
	"time"
)

// Cache stores boolean access decisions. Entries are grouped under a
// namespace (one namespace per user) so that every decision for a user can
// be dropped in a single invalidation call.
type Cache interface {
	// Get retrieves a decision. The second return value is false when the
	// key is absent or expired.
	Get(ctx context.Context, namespace, key string) (bool, bool)

	// Set stores a decision with the given TTL.
	Set(ctx context.Context, namespace, key string, granted bool, ttl time.Duration) error

	// DeleteNamespace removes every entry in the namespace.
	DeleteNamespace(ctx context.Context, namespace string) error

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Close releases resources held by the cache.
	Close() error

	// Metrics returns cache statistics.
	Metrics() *Metrics
}

// Metrics holds cache performance statistics.
type Metrics struct {
	// Hits is the number of cache hits
	Hits uint64

	// Misses is the number of cache misses
	Misses uint64

	// KeysAdded is the number of keys added to cache
	KeysAdded uint64

	// KeysEvicted is the number of keys evicted by the size limit
	KeysEvicted uint64

	// Invalidations is the number of namespace invalidations
	Invalidations uint64
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (m *Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0.0
	}
	return float64(m.Hits) / float64(total)
}
