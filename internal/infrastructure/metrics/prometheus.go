package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusExporter exports metrics to Prometheus format.
type PrometheusExporter struct {
	collector *Collector

	// Prometheus metrics
	checksTotal        *prometheus.CounterVec
	cacheHitRate       prometheus.Gauge
	cacheKeys          prometheus.Gauge
	cacheEvictions     prometheus.Gauge
	cacheInvalidations prometheus.Gauge
	defectsTotal       *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	httpErrors         *prometheus.CounterVec
}

// NewPrometheusExporter creates a new Prometheus exporter.
func NewPrometheusExporter(collector *Collector) *PrometheusExporter {
	return &PrometheusExporter{
		collector: collector,
		checksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lyceum_permission_checks_total",
				Help: "Total number of permission checks by outcome",
			},
			[]string{"outcome"},
		),
		cacheHitRate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lyceum_decision_cache_hit_rate",
			Help: "Current decision cache hit rate (0.0 to 1.0)",
		}),
		cacheKeys: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lyceum_decision_cache_keys_current",
			Help: "Current number of cached decisions",
		}),
		cacheEvictions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lyceum_decision_cache_evictions_total",
			Help: "Total number of decisions evicted by the size limit",
		}),
		cacheInvalidations: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lyceum_decision_cache_invalidations_total",
			Help: "Total number of per-user cache invalidations",
		}),
		defectsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lyceum_evaluator_defects_total",
				Help: "Total number of evaluator anomalies (registry drift)",
			},
			[]string{"kind"},
		),
		httpRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lyceum_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route"},
		),
		httpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lyceum_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"route"},
		),
		httpErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lyceum_http_errors_total",
				Help: "Total number of HTTP error responses",
			},
			[]string{"route"},
		),
	}
}

// Update updates Gauge metrics from the collector.
// Counters are updated via middleware, so only update gauges here.
// This should be called periodically (e.g., every 10 seconds).
func (e *PrometheusExporter) Update() {
	cacheMetrics := e.collector.GetCacheMetrics()
	e.cacheHitRate.Set(cacheMetrics.HitRate)
	e.cacheKeys.Set(float64(cacheMetrics.KeysCurrent))
	e.cacheEvictions.Set(float64(cacheMetrics.Evictions))
	e.cacheInvalidations.Set(float64(cacheMetrics.Invalidations))
}

// RecordDecision records a permission check outcome in Prometheus.
func (e *PrometheusExporter) RecordDecision(granted bool) {
	outcome := "denied"
	if granted {
		outcome = "granted"
	}
	e.checksTotal.WithLabelValues(outcome).Inc()
}

// RecordDefect records an evaluator anomaly in Prometheus.
func (e *PrometheusExporter) RecordDefect(kind string) {
	e.defectsTotal.WithLabelValues(kind).Inc()
}

// RecordRequest records a request in Prometheus.
func (e *PrometheusExporter) RecordRequest(route string) {
	e.httpRequests.WithLabelValues(route).Inc()
}

// RecordDuration records a duration in Prometheus.
func (e *PrometheusExporter) RecordDuration(route string, durationSeconds float64) {
	e.httpDuration.WithLabelValues(route).Observe(durationSeconds)
}

// RecordError records an error response in Prometheus.
func (e *PrometheusExporter) RecordError(route string) {
	e.httpErrors.WithLabelValues(route).Inc()
}
