package memorycache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/lyceum-io/lyceum/pkg/cache"
)

// entry is one cached decision
type entry struct {
	namespace string
	key       string
	granted   bool
	expiresAt time.Time
}

// Cache is a mutex-guarded in-process decision cache with TTL and LRU
// eviction. Expiry is checked lazily on read; no background sweeper runs.
// Concurrent Set calls for the same key are an idempotent overwrite.
type Cache struct {
	mu sync.Mutex

	// namespace -> key -> list element; evictList front = most recent
	namespaces map[string]map[string]*list.Element
	evictList  *list.List

	maxEntries int
	ttl        time.Duration

	metrics *cacheMetrics
}

type cacheMetrics struct {
	hits          uint64
	misses        uint64
	keysAdded     uint64
	keysEvicted   uint64
	invalidations uint64
}

// Config holds configuration for the memory cache.
type Config struct {
	// MaxEntries is the maximum number of cached decisions. When exceeded,
	// least recently used entries are evicted.
	MaxEntries int

	// DefaultTTL is used when Set is called with a non-positive TTL.
	DefaultTTL time.Duration

	// EnableMetrics enables collection of cache statistics.
	EnableMetrics bool
}

// New creates a new memory cache with the given configuration.
func New(config *Config) (*Cache, error) {
	c := &Cache{
		namespaces: make(map[string]map[string]*list.Element),
		evictList:  list.New(),
		maxEntries: config.MaxEntries,
		ttl:        config.DefaultTTL,
	}

	if config.EnableMetrics {
		c.metrics = &cacheMetrics{}
	}

	return c, nil
}

// Get retrieves a decision from cache.
func (c *Cache) Get(ctx context.Context, namespace, key string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.namespaces[namespace]
	if !ok {
		c.miss()
		return false, false
	}
	elem, ok := keys[key]
	if !ok {
		c.miss()
		return false, false
	}

	ent := elem.Value.(*entry)
	if time.Now().After(ent.expiresAt) {
		c.removeElement(elem)
		c.miss()
		return false, false
	}

	c.evictList.MoveToFront(elem)
	if c.metrics != nil {
		c.metrics.hits++
	}
	return ent.granted, true
}

// Set stores a decision with the specified TTL.
func (c *Cache) Set(ctx context.Context, namespace, key string, granted bool, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.namespaces[namespace]
	if !ok {
		keys = make(map[string]*list.Element)
		c.namespaces[namespace] = keys
	}

	if elem, exists := keys[key]; exists {
		ent := elem.Value.(*entry)
		ent.granted = granted
		ent.expiresAt = time.Now().Add(ttl)
		c.evictList.MoveToFront(elem)
		return nil
	}

	ent := &entry{
		namespace: namespace,
		key:       key,
		granted:   granted,
		expiresAt: time.Now().Add(ttl),
	}
	keys[key] = c.evictList.PushFront(ent)

	if c.metrics != nil {
		c.metrics.keysAdded++
	}

	for c.maxEntries > 0 && c.evictList.Len() > c.maxEntries {
		oldest := c.evictList.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		if c.metrics != nil {
			c.metrics.keysEvicted++
		}
	}

	return nil
}

// DeleteNamespace removes every entry in the namespace.
func (c *Cache) DeleteNamespace(ctx context.Context, namespace string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.namespaces[namespace]
	if !ok {
		return nil
	}
	for _, elem := range keys {
		c.evictList.Remove(elem)
	}
	delete(c.namespaces, namespace)

	if c.metrics != nil {
		c.metrics.invalidations++
	}
	return nil
}

// Clear removes all entries from cache.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.namespaces = make(map[string]map[string]*list.Element)
	c.evictList.Init()
	return nil
}

// Close releases resources (no-op for memory cache).
func (c *Cache) Close() error {
	return nil
}

// Metrics returns cache statistics.
func (c *Cache) Metrics() *cache.Metrics {
	if c.metrics == nil {
		return &cache.Metrics{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return &cache.Metrics{
		Hits:          c.metrics.hits,
		Misses:        c.metrics.misses,
		KeysAdded:     c.metrics.keysAdded,
		KeysEvicted:   c.metrics.keysEvicted,
		Invalidations: c.metrics.invalidations,
	}
}

// Len returns the current number of cached decisions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// miss records a cache miss (must be called with lock held).
func (c *Cache) miss() {
	if c.metrics != nil {
		c.metrics.misses++
	}
}

// removeElement removes an element (must be called with lock held).
func (c *Cache) removeElement(elem *list.Element) {
	c.evictList.Remove(elem)
	ent := elem.Value.(*entry)
	if keys, ok := c.namespaces[ent.namespace]; ok {
		delete(keys, ent.key)
		if len(keys) == 0 {
			delete(c.namespaces, ent.namespace)
		}
	}
}
