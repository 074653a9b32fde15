package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/kdscrypto/mboa-market-place-sub003/core/cache"
	"github.com/kdscrypto/mboa-market-place-sub003/ports/kv"
)

type Config struct {
	// ID names the scope in log lines (default: app-<random>).
	ID      string
	Context context.Context
	Log     *slog.Logger
	Metrics cache.Metrics

	// Storage backs every cache created with persistence on.
	Storage kv.Store

	// Defaults apply to every cache; per-cache Options override them.
	Defaults cache.Options
}

// Option adjusts the options of one cache when it is first created.
type Option func(*cache.Options)

func WithMaxSize(n int) Option {
	return func(o *cache.Options) { o.MaxSize = n }
}

func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *cache.Options) { o.DefaultTTL = ttl }
}

func WithSweepInterval(d time.Duration) Option {
	return func(o *cache.Options) { o.SweepInterval = d }
}

// WithPersistence turns on write-through persistence under storageKey. An
// empty key uses the cache name.
func WithPersistence(storageKey string) Option {
	return func(o *cache.Options) {
		o.Persist = true
		o.StorageKey = storageKey
	}
}

func WithClock(clock func() time.Time) Option {
	return func(o *cache.Options) { o.Clock = clock }
}

type closer interface {
	Close()
	Name() string
}

// App is one consumer scope. Caches obtained from it live until Shutdown.
type App struct {
	id        string
	ctx       context.Context
	cancelCtx context.CancelFunc
	log       *slog.Logger
	cfg       Config

	mu        sync.Mutex
	caches    map[string]closer
	order     []string
	accessors map[string]any

	stopOnce sync.Once
	done     chan struct{}
}

func New(config Config) *App {
	if config.ID == "" {
		config.ID = fmt.Sprintf("app-%s", gonanoid.Must(6))
	}
	if config.Log == nil {
		config.Log = slog.Default()
	}
	if config.Context == nil {
		config.Context = context.Background()
	}

	a := &App{
		id:        config.ID,
		log:       config.Log.With(slog.String("app", config.ID)),
		cfg:       config,
		caches:    make(map[string]closer),
		accessors: make(map[string]any),
		done:      make(chan struct{}),
	}
	a.ctx, a.cancelCtx = context.WithCancel(config.Context)
	// a cancelled parent tears the scope down like Stop
	context.AfterFunc(a.ctx, a.Stop)

	a.log.Debug("app created")

	return a
}

func (a *App) ID() string { return a.id }

// Cache returns the cache registered under name, creating it on first use.
// Later calls return the same instance and ignore opts. Asking for an
// existing name with a different value type panics.
func Cache[V any](a *App, name string, opts ...Option) *cache.LRU[V] {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cacheLocked[V](a, name, opts)
}

func cacheLocked[V any](a *App, name string, opts []Option) *cache.LRU[V] {
	if existing, ok := a.caches[name]; ok {
		c, ok := existing.(*cache.LRU[V])
		if !ok {
			panic(fmt.Sprintf("app: cache %q already registered as %T", name, existing))
		}
		return c
	}

	o := a.cfg.Defaults
	for _, opt := range opts {
		opt(&o)
	}
	o.Name = name
	o.Context = a.ctx
	if o.Log == nil {
		o.Log = a.log
	}
	if o.Metrics == nil {
		o.Metrics = a.cfg.Metrics
	}
	if o.Persist {
		if o.Storage == nil {
			o.Storage = a.cfg.Storage
		}
		if o.StorageKey == "" {
			o.StorageKey = name
		}
	}

	c := cache.NewLRU[V](o)
	a.caches[name] = c
	a.order = append(a.order, name)
	a.log.Debug("cache created", slog.String("cache", name), slog.Bool("persist", o.Persist))
	return c
}

// Accessor exposes one cache's operations as plain functions, for layers
// that should not depend on the cache type.
type Accessor[V any] struct {
	Set    func(key string, val V, opts ...cache.SetOption)
	Get    func(key string) (V, bool)
	Has    func(key string) bool
	Delete func(key string) bool
	Clear  func()
	Stats  func() cache.Stats
}

// Use returns the Accessor for the cache registered under name, creating
// the cache on first use. Repeated calls return the same Accessor.
func Use[V any](a *App, name string, opts ...Option) *Accessor[V] {
	a.mu.Lock()
	defer a.mu.Unlock()

	c := cacheLocked[V](a, name, opts)
	if acc, ok := a.accessors[name].(*Accessor[V]); ok {
		return acc
	}

	acc := &Accessor[V]{
		Set:    c.Set,
		Get:    c.Get,
		Has:    c.Has,
		Delete: c.Delete,
		Clear:  c.Clear,
		Stats:  c.Stats,
	}
	a.accessors[name] = acc
	return acc
}

// Stop tears the scope down: every cache stops sweeping, flushes pending
// persistence writes and drops its entries, newest cache first. Stop is
// idempotent and blocks until teardown finished. Cancelling Config.Context
// runs Stop as well.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		a.cancelCtx()

		a.mu.Lock()
		closers := make([]closer, 0, len(a.order))
		for i := len(a.order) - 1; i >= 0; i-- {
			closers = append(closers, a.caches[a.order[i]])
		}
		a.mu.Unlock()

		for _, c := range closers {
			c.Close()
			a.log.Debug("cache released", slog.String("cache", c.Name()))
		}

		a.log.Info("app stopped", slog.Int("caches", len(closers)))
		close(a.done)
	})
}

// Shutdown is Stop bounded by ctx.
func (a *App) Shutdown(ctx context.Context) error {
	go a.Stop()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Stop finished.
func (a *App) Done() <-chan struct{} { return a.done }
