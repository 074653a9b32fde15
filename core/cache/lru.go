package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kdscrypto/mboa-market-place-sub003/core/sf"
)

// entryOverhead approximates the per-entry bookkeeping cost counted by
// Stats.EstimatedMemoryBytes.
const entryOverhead = 64

type state[V any] struct {
	ll    *list.List // front is most recently used
	items map[string]*list.Element

	hits        int64
	misses      int64
	evictions   int64
	expirations int64
}

func newState[V any]() *state[V] {
	return &state[V]{ll: list.New(), items: make(map[string]*list.Element)}
}

func (s *state[V]) remove(el *list.Element) *item[V] {
	it := s.ll.Remove(el).(*item[V])
	delete(s.items, it.key)
	return it
}

// LRU is a bounded TTL cache with least-recently-used eviction.
//
// A single goroutine owns the entries. Every operation is handed to it and
// runs to completion before the next one or the periodic sweep starts, so
// callers may share an LRU freely. Operations after Close are no-ops that
// return zero values.
type LRU[V any] struct {
	opts    Options
	log     *slog.Logger
	metrics Metrics

	ops    chan func(*state[V])
	done   chan struct{}
	cancel context.CancelFunc
	state  *state[V]

	persist *persister[V]
	loads   sf.Singleflight[V]
}

func NewLRU[V any](opts Options) *LRU[V] {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(opts.Context)

	c := &LRU[V]{
		opts:    opts,
		log:     opts.Log.With(slog.String("cache", opts.Name)),
		metrics: opts.Metrics,
		ops:     make(chan func(*state[V])),
		done:    make(chan struct{}),
		cancel:  cancel,
		state:   newState[V](),
	}

	if opts.Persist {
		c.persist = newPersister[V](opts, c.log)
		c.restore(c.persist.load(ctx))
	}

	go c.run(ctx)

	return c
}

func (c *LRU[V]) run(ctx context.Context) {
	defer close(c.done)
	defer c.release()

	// the sweep runs on wall time; Options.Clock only decides expiry
	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case op := <-c.ops:
			op(c.state)
		case <-ticker.C:
			c.sweep(c.state)
		case <-ctx.Done():
			return
		}
	}
}

// do runs fn on the owner goroutine and waits for it. It reports false
// when the cache is already closed.
func (c *LRU[V]) do(fn func(*state[V])) bool {
	finished := make(chan struct{})
	select {
	case c.ops <- func(s *state[V]) {
		defer close(finished)
		fn(s)
	}:
		<-finished
		return true
	case <-c.done:
		return false
	}
}

// restore seeds the entries from persisted data. Entries are taken as they
// are; expired ones go on their next access or sweep.
func (c *LRU[V]) restore(entries map[string]Entry[V]) {
	if len(entries) == 0 {
		return
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := entries[keys[i]], entries[keys[j]]
		if a.LastAccess.Equal(b.LastAccess) {
			return keys[i] < keys[j]
		}
		return a.LastAccess.Before(b.LastAccess)
	})

	s := c.state
	for _, k := range keys {
		s.items[k] = s.ll.PushFront(&item[V]{key: k, entry: entries[k]})
	}
	var trimmed []string
	for s.ll.Len() > c.opts.MaxSize {
		trimmed = append(trimmed, s.remove(s.ll.Back()).key)
	}
	if len(trimmed) > 0 {
		c.persist.remove(trimmed...)
	}

	c.metrics.Size(c.opts.Name, s.ll.Len())
	c.log.Debug("restored persisted entries", slog.Int("count", s.ll.Len()), slog.Int("stored", len(entries)))
}

// Set inserts or replaces the entry for key. When key is new and the cache
// is full, the least recently used entry is evicted first.
func (c *LRU[V]) Set(key string, val V, opts ...SetOption) {
	o := SetOptions{TTL: c.opts.DefaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.TTL <= 0 {
		o.TTL = c.opts.DefaultTTL
	}

	c.do(func(s *state[V]) {
		now := c.opts.Clock()
		e := Entry[V]{Value: val, WriteTime: now, TTL: o.TTL, LastAccess: now}

		if el, ok := s.items[key]; ok {
			el.Value.(*item[V]).entry = e
			s.ll.MoveToFront(el)
		} else {
			for s.ll.Len() >= c.opts.MaxSize {
				c.evictOldest(s)
			}
			s.items[key] = s.ll.PushFront(&item[V]{key: key, entry: e})
		}

		c.metrics.Size(c.opts.Name, s.ll.Len())
		if c.persist != nil {
			c.persist.save(key, e)
		}
	})
}

func (c *LRU[V]) evictOldest(s *state[V]) {
	el := s.ll.Back()
	if el == nil {
		return
	}
	it := s.remove(el)
	s.evictions++
	c.metrics.Evicted(c.opts.Name)
	c.log.Debug("evicted entry", slog.String("key", it.key))

	if c.persist != nil {
		c.persist.remove(it.key)
	}
}

// Get returns the value for key. Expired entries are removed and reported
// as missing. A hit bumps the entry's access count and recency.
func (c *LRU[V]) Get(key string) (val V, ok bool) {
	c.do(func(s *state[V]) {
		el, found := s.items[key]
		if !found {
			s.misses++
			c.metrics.Miss(c.opts.Name)
			return
		}

		it := el.Value.(*item[V])
		now := c.opts.Clock()
		if it.entry.expired(now) {
			s.remove(el)
			s.expirations++
			s.misses++
			c.metrics.Expired(c.opts.Name, ExpiredOnAccess, 1)
			c.metrics.Miss(c.opts.Name)
			c.metrics.Size(c.opts.Name, s.ll.Len())
			if c.persist != nil {
				c.persist.remove(key)
			}
			return
		}

		it.entry.AccessCount++
		it.entry.LastAccess = now
		s.ll.MoveToFront(el)
		s.hits++
		c.metrics.Hit(c.opts.Name)

		val, ok = it.entry.Value, true
	})
	return
}

// Has reports whether Get would find key, and counts as an access.
func (c *LRU[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Peek returns the live entry for key without touching its bookkeeping.
func (c *LRU[V]) Peek(key string) (e Entry[V], ok bool) {
	c.do(func(s *state[V]) {
		el, found := s.items[key]
		if !found {
			return
		}
		it := el.Value.(*item[V])
		if it.entry.expired(c.opts.Clock()) {
			return
		}
		e, ok = it.entry, true
	})
	return
}

// Delete removes key and reports whether it was present.
func (c *LRU[V]) Delete(key string) (removed bool) {
	c.do(func(s *state[V]) {
		if el, ok := s.items[key]; ok {
			s.remove(el)
			removed = true
			c.metrics.Size(c.opts.Name, s.ll.Len())
		}
		if c.persist != nil {
			c.persist.remove(key)
		}
	})
	return
}

// Clear removes every entry. Hit and miss counters are kept.
func (c *LRU[V]) Clear() {
	c.do(func(s *state[V]) {
		s.ll.Init()
		s.items = make(map[string]*list.Element)
		c.metrics.Size(c.opts.Name, 0)
		if c.persist != nil {
			c.persist.purge()
		}
	})
}

func (c *LRU[V]) Len() (n int) {
	c.do(func(s *state[V]) { n = s.ll.Len() })
	return
}

// Keys lists the keys from most to least recently used, expired entries
// included until they are swept.
func (c *LRU[V]) Keys() (keys []string) {
	c.do(func(s *state[V]) {
		keys = make([]string, 0, s.ll.Len())
		for el := s.ll.Front(); el != nil; el = el.Next() {
			keys = append(keys, el.Value.(*item[V]).key)
		}
	})
	return
}

func (c *LRU[V]) Stats() (st Stats) {
	c.do(func(s *state[V]) {
		now := c.opts.Clock()

		var totalAge int64
		for el := s.ll.Front(); el != nil; el = el.Next() {
			it := el.Value.(*item[V])
			st.TotalAccessCount += it.entry.AccessCount
			st.EstimatedMemoryBytes += estimateSize(it)
			totalAge += int64(now.Sub(it.entry.WriteTime))
		}

		st.Size = s.ll.Len()
		if st.Size > 0 {
			st.AverageAge = time.Duration(totalAge / int64(st.Size))
		}
		st.Hits = s.hits
		st.Misses = s.misses
		st.Evictions = s.evictions
		st.Expirations = s.expirations
	})
	return
}

// estimateSize counts key and JSON-encoded value at two bytes per
// character plus a fixed overhead.
func estimateSize[V any](it *item[V]) int64 {
	n := int64(entryOverhead + 2*len(it.key))
	if data, err := json.Marshal(it.entry.Value); err == nil {
		n += int64(2 * len(data))
	}
	return n
}

// Sweep removes every expired entry now and returns how many it removed.
// The cache also sweeps on its own every Options.SweepInterval.
func (c *LRU[V]) Sweep() (n int) {
	c.do(func(s *state[V]) { n = c.sweep(s) })
	return
}

func (c *LRU[V]) sweep(s *state[V]) int {
	now := c.opts.Clock()

	var expired []string
	for el := s.ll.Back(); el != nil; {
		prev := el.Prev()
		if it := el.Value.(*item[V]); it.entry.expired(now) {
			s.remove(el)
			expired = append(expired, it.key)
		}
		el = prev
	}
	if len(expired) == 0 {
		return 0
	}

	s.expirations += int64(len(expired))
	c.metrics.Expired(c.opts.Name, ExpiredOnSweep, len(expired))
	c.metrics.Size(c.opts.Name, s.ll.Len())
	c.log.Debug("swept expired entries", slog.Int("count", len(expired)))

	if c.persist != nil {
		c.persist.remove(expired...)
	}
	return len(expired)
}

// GetOrLoad returns the cached value for key, or calls load on a miss and
// caches its result. Concurrent misses for the same key share one load,
// which runs with the opts of the caller that started it. The load does
// not stop when that caller's ctx is cancelled; it keeps ctx values only.
func (c *LRU[V]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error), opts ...SetOption) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	v, _, err := c.loads.Do(key, func() (V, error) {
		v, err := load(loadCtx)
		if err != nil {
			return v, err
		}
		c.Set(key, v, opts...)
		return v, nil
	})
	if err != nil {
		return v, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return v, nil
}

// Flush blocks until every persistence write issued so far has been
// applied. It returns immediately when persistence is off.
func (c *LRU[V]) Flush(ctx context.Context) error {
	if c.persist == nil {
		return nil
	}
	return c.persist.flush(ctx)
}

// Close stops the sweep, drops all in-memory entries and waits for pending
// persistence writes. Persisted data is kept. Close is idempotent, and
// cancelling Options.Context has the same effect.
func (c *LRU[V]) Close() {
	c.cancel()
	<-c.done
}

// release runs on the owner goroutine as it exits.
func (c *LRU[V]) release() {
	c.state.ll.Init()
	c.state.items = make(map[string]*list.Element)
	c.metrics.Size(c.opts.Name, 0)

	if c.persist != nil {
		c.persist.close()
	}
	c.log.Debug("cache closed")
}

// Done is closed once the cache stopped serving operations, either through
// Close or because Options.Context was cancelled.
func (c *LRU[V]) Done() <-chan struct{} { return c.done }

func (c *LRU[V]) Name() string { return c.opts.Name }

var _ Cache[any] = (*LRU[any])(nil)
