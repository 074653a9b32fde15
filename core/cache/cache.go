package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/kdscrypto/mboa-market-place-sub003/ports/kv"
)

const (
	DefaultMaxSize       = 100
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = time.Minute
	DefaultStorageKey    = "advanced-cache"
)

// defaultStore backs persistent caches created without Options.Storage.
// It lives as long as the process, so such a cache survives being closed
// and rebuilt.
var defaultStore = kv.NewMemStore()

type SetOptions struct {
	TTL time.Duration
}

type SetOption func(*SetOptions)

// WithTTL overrides the cache's default TTL for one entry. Non-positive
// values are ignored.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *SetOptions) {
		o.TTL = ttl
	}
}

// Cache is a bounded, time-limited key-value store.
type Cache[V any] interface {
	Set(key string, val V, opts ...SetOption)
	Get(key string) (V, bool)
	Has(key string) bool
	Delete(key string) bool
	Clear()
	Stats() Stats
}

// Stats is a point-in-time snapshot of a cache.
type Stats struct {
	Size             int
	TotalAccessCount int64

	// AverageAge is the mean time since each entry was written, or zero
	// when the cache is empty.
	AverageAge           time.Duration
	EstimatedMemoryBytes int64

	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
}

// Options configures an LRU. Zero values are replaced by defaults.
type Options struct {
	// Name labels log lines and metrics.
	Name          string
	MaxSize       int
	DefaultTTL    time.Duration
	SweepInterval time.Duration

	// Persist mirrors every write to Storage under StorageKey and restores
	// from it on construction. Caches sharing a StorageKey overwrite each
	// other's data.
	Persist    bool
	StorageKey string
	Storage    kv.Store

	// Context bounds the cache lifetime; cancelling it stops the sweep.
	Context context.Context
	Clock   func() time.Time
	Log     *slog.Logger
	Metrics Metrics
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "default"
	}
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.DefaultTTL <= 0 {
		o.DefaultTTL = DefaultTTL
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.StorageKey == "" {
		o.StorageKey = DefaultStorageKey
	}
	if o.Persist && o.Storage == nil {
		o.Storage = defaultStore
	}
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = NopMetrics()
	}
	return o
}
