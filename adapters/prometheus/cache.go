package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kdscrypto/mboa-market-place-sub003/core/cache"
	"github.com/kdscrypto/mboa-market-place-sub003/core/metrics"
)

// cacheMetrics implements cache.Metrics using Prometheus.
type cacheMetrics struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	evictions   *prometheus.CounterVec
	expirations *prometheus.CounterVec
	entries     *prometheus.GaugeVec

	persistDuration *prometheus.HistogramVec
	persistErrors   *prometheus.CounterVec
}

// NewCacheMetrics registers the cache metric families on reg. Call it once
// per registry and share the result between caches; they are told apart
// by the cache label.
func NewCacheMetrics(reg prometheus.Registerer) cache.Metrics {
	m := &cacheMetrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mboa_cache_hits_total",
			Help: "Total number of cache hits",
		}, []string{"cache"}),

		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mboa_cache_misses_total",
			Help: "Total number of cache misses, expired reads included",
		}, []string{"cache"}),

		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mboa_cache_evictions_total",
			Help: "Total number of entries evicted to make room",
		}, []string{"cache"}),

		expirations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mboa_cache_expirations_total",
			Help: "Total number of expired entries removed",
		}, []string{"cache", "reason"}),

		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mboa_cache_entries",
			Help: "Current number of entries",
		}, []string{"cache"}),

		persistDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mboa_cache_persist_duration_seconds",
			Help:    "Persistence operation latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"cache", "op"}),

		persistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mboa_cache_persist_errors_total",
			Help: "Total number of failed persistence operations",
		}, []string{"cache", "op"}),
	}

	reg.MustRegister(
		m.hits,
		m.misses,
		m.evictions,
		m.expirations,
		m.entries,
		m.persistDuration,
		m.persistErrors,
	)

	return m
}

func (m *cacheMetrics) Hit(name string) {
	m.hits.WithLabelValues(name).Inc()
}

func (m *cacheMetrics) Miss(name string) {
	m.misses.WithLabelValues(name).Inc()
}

func (m *cacheMetrics) Evicted(name string) {
	m.evictions.WithLabelValues(name).Inc()
}

func (m *cacheMetrics) Expired(name string, reason string, n int) {
	m.expirations.WithLabelValues(name, reason).Add(float64(n))
}

func (m *cacheMetrics) Size(name string, n int) {
	m.entries.WithLabelValues(name).Set(float64(n))
}

func (m *cacheMetrics) PersistDuration(name string, op string) metrics.Timer {
	return newTimer(m.persistDuration.WithLabelValues(name, op))
}

func (m *cacheMetrics) PersistError(name string, op string) {
	m.persistErrors.WithLabelValues(name, op).Inc()
}

var _ cache.Metrics = (*cacheMetrics)(nil)
