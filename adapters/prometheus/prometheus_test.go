package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdscrypto/mboa-market-place-sub003/core/cache"
)

func TestNewCacheMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCacheMetrics(reg)
	require.NotNil(t, m)

	m.Hit("listings")
	m.Hit("listings")
	m.Miss("listings")
	m.Evicted("listings")
	m.Expired("listings", cache.ExpiredOnSweep, 3)
	m.Size("listings", 12)

	timer := m.PersistDuration("listings", cache.PersistSave)
	assert.NotNil(t, timer)
	timer.ObserveDuration()
	m.PersistError("listings", cache.PersistSave)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}

	assert.True(t, names["mboa_cache_hits_total"])
	assert.True(t, names["mboa_cache_misses_total"])
	assert.True(t, names["mboa_cache_evictions_total"])
	assert.True(t, names["mboa_cache_expirations_total"])
	assert.True(t, names["mboa_cache_entries"])
	assert.True(t, names["mboa_cache_persist_duration_seconds"])
	assert.True(t, names["mboa_cache_persist_errors_total"])

	cm := m.(*cacheMetrics)
	assert.Equal(t, float64(2), testutil.ToFloat64(cm.hits.WithLabelValues("listings")))
	assert.Equal(t, float64(3), testutil.ToFloat64(cm.expirations.WithLabelValues("listings", cache.ExpiredOnSweep)))
	assert.Equal(t, float64(12), testutil.ToFloat64(cm.entries.WithLabelValues("listings")))
}

func TestCacheMetrics_WiredIntoLRU(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCacheMetrics(reg).(*cacheMetrics)

	c := cache.NewLRU[int](cache.Options{Name: "ads", MaxSize: 1, Metrics: m})
	defer c.Close()

	c.Set("a", 1, cache.WithTTL(time.Hour))
	c.Get("a")
	c.Get("b")
	c.Set("b", 2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.hits.WithLabelValues("ads")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.misses.WithLabelValues("ads")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.evictions.WithLabelValues("ads")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.entries.WithLabelValues("ads")))
}
