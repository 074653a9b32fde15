package cache

import "github.com/kdscrypto/mboa-market-place-sub003/core/metrics"

// Expiration reasons passed to Metrics.Expired.
const (
	ExpiredOnAccess = "access"
	ExpiredOnSweep  = "sweep"
)

// Persistence operations passed to Metrics.PersistDuration and PersistError.
const (
	PersistLoad   = "load"
	PersistSave   = "save"
	PersistRemove = "remove"
	PersistPurge  = "purge"
)

// Metrics receives cache instrumentation. Implementations must be safe for
// concurrent use; the cache label is Options.Name.
type Metrics interface {
	Hit(cache string)
	Miss(cache string)
	Evicted(cache string)
	Expired(cache string, reason string, n int)
	Size(cache string, n int)

	PersistDuration(cache string, op string) metrics.Timer
	PersistError(cache string, op string)
}

type nopMetrics struct{}

func (nopMetrics) Hit(string)                  {}
func (nopMetrics) Miss(string)                 {}
func (nopMetrics) Evicted(string)              {}
func (nopMetrics) Expired(string, string, int) {}
func (nopMetrics) Size(string, int)            {}

func (nopMetrics) PersistDuration(string, string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) PersistError(string, string)                  {}

// NopMetrics returns a Metrics that discards everything.
func NopMetrics() Metrics { return nopMetrics{} }
