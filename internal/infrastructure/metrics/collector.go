package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/lyceum-io/lyceum/pkg/cache"
	"github.com/lyceum-io/lyceum/pkg/cache/memorycache"
)

// Collector collects and aggregates metrics for the application.
type Collector struct {
	// HTTP metrics
	httpRequests sync.Map // map[string]*uint64 - route -> count
	httpErrors   sync.Map // map[string]*uint64 - route -> error count
	httpDuration sync.Map // map[string]*durationValue - route -> total duration in seconds

	// Decision metrics
	checksTotal uint64
	grants      uint64
	denials     uint64

	// Defect metrics (registry/evaluator drift)
	defects sync.Map // map[string]*uint64 - kind -> count

	// Cache reference (optional, for querying cache-specific metrics)
	cache cache.Cache
}

// durationValue holds duration with mutex for thread-safe updates.
type durationValue struct {
	mu           sync.Mutex
	totalSeconds float64
}

// CacheMetrics holds decision cache performance metrics.
type CacheMetrics struct {
	Hits          uint64
	Misses        uint64
	HitRate       float64
	KeysCurrent   int64
	Evictions     uint64
	Invalidations uint64
}

// DecisionMetrics holds permission check metrics.
type DecisionMetrics struct {
	ChecksTotal uint64
	Grants      uint64
	Denials     uint64
	Defects     map[string]uint64
}

// HTTPMetrics holds HTTP request metrics.
type HTTPMetrics struct {
	RequestCounts        map[string]uint64
	ErrorCounts          map[string]uint64
	TotalDurationSeconds map[string]float64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// SetCache sets the cache instance for collecting cache metrics.
func (c *Collector) SetCache(cache cache.Cache) {
	c.cache = cache
}

// RecordRequest records an HTTP request.
func (c *Collector) RecordRequest(route string) {
	counter := c.getOrCreateCounter(&c.httpRequests, route)
	atomic.AddUint64(counter, 1)
}

// RecordError records an HTTP error response.
func (c *Collector) RecordError(route string) {
	counter := c.getOrCreateCounter(&c.httpErrors, route)
	atomic.AddUint64(counter, 1)
}

// RecordDuration records the duration of a request in seconds.
func (c *Collector) RecordDuration(route string, durationSeconds float64) {
	val, _ := c.httpDuration.LoadOrStore(route, &durationValue{})
	dv := val.(*durationValue)

	dv.mu.Lock()
	dv.totalSeconds += durationSeconds
	dv.mu.Unlock()
}

// RecordDecision records the outcome of one permission check.
func (c *Collector) RecordDecision(granted bool) {
	atomic.AddUint64(&c.checksTotal, 1)
	if granted {
		atomic.AddUint64(&c.grants, 1)
	} else {
		atomic.AddUint64(&c.denials, 1)
	}
}

// RecordDefect records an evaluator anomaly. Implements
// authorization.DefectRecorder.
func (c *Collector) RecordDefect(kind string) {
	counter := c.getOrCreateCounter(&c.defects, kind)
	atomic.AddUint64(counter, 1)
}

// GetCacheMetrics returns current decision cache metrics.
func (c *Collector) GetCacheMetrics() *CacheMetrics {
	if c.cache == nil {
		return &CacheMetrics{}
	}

	metrics := c.cache.Metrics()
	if metrics == nil {
		return &CacheMetrics{}
	}

	result := &CacheMetrics{
		Hits:          metrics.Hits,
		Misses:        metrics.Misses,
		HitRate:       metrics.HitRate(),
		Evictions:     metrics.KeysEvicted,
		Invalidations: metrics.Invalidations,
	}

	// Get current key count if available
	if memCache, ok := c.cache.(*memorycache.Cache); ok {
		result.KeysCurrent = int64(memCache.Len())
	}

	return result
}

// GetDecisionMetrics returns current permission check metrics.
func (c *Collector) GetDecisionMetrics() *DecisionMetrics {
	result := &DecisionMetrics{
		ChecksTotal: atomic.LoadUint64(&c.checksTotal),
		Grants:      atomic.LoadUint64(&c.grants),
		Denials:     atomic.LoadUint64(&c.denials),
		Defects:     make(map[string]uint64),
	}

	c.defects.Range(func(key, value interface{}) bool {
		kind := key.(string)
		count := atomic.LoadUint64(value.(*uint64))
		result.Defects[kind] = count
		return true
	})

	return result
}

// GetHTTPMetrics returns current HTTP metrics.
func (c *Collector) GetHTTPMetrics() *HTTPMetrics {
	result := &HTTPMetrics{
		RequestCounts:        make(map[string]uint64),
		ErrorCounts:          make(map[string]uint64),
		TotalDurationSeconds: make(map[string]float64),
	}

	// Collect request counts
	c.httpRequests.Range(func(key, value interface{}) bool {
		route := key.(string)
		count := atomic.LoadUint64(value.(*uint64))
		result.RequestCounts[route] = count
		return true
	})

	// Collect error counts
	c.httpErrors.Range(func(key, value interface{}) bool {
		route := key.(string)
		count := atomic.LoadUint64(value.(*uint64))
		result.ErrorCounts[route] = count
		return true
	})

	// Collect duration totals
	c.httpDuration.Range(func(key, value interface{}) bool {
		route := key.(string)
		dv := value.(*durationValue)
		dv.mu.Lock()
		result.TotalDurationSeconds[route] = dv.totalSeconds
		dv.mu.Unlock()
		return true
	})

	return result
}

// getOrCreateCounter gets or creates a counter for the given key.
func (c *Collector) getOrCreateCounter(m *sync.Map, key string) *uint64 {
	val, _ := m.LoadOrStore(key, new(uint64))
	return val.(*uint64)
}
