// Package prometheus implements cache.Metrics on top of the Prometheus
// client library.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kdscrypto/mboa-market-place-sub003/core/metrics"
)

// timer wraps a Prometheus histogram to implement the Timer interface.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Persistence round trips are local or one network hop, so the buckets
// start well below a millisecond.
var defaultBuckets = []float64{
	.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 5,
}
