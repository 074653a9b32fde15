package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kdscrypto/mboa-market-place-sub003/core/perkey"
	"github.com/kdscrypto/mboa-market-place-sub003/ports/kv"
)

const persistTimeout = 5 * time.Second

// record is the stored form of an Entry. Times are Unix milliseconds.
type record[V any] struct {
	Value       V     `json:"value"`
	WriteTime   int64 `json:"writeTime"`
	TTL         int64 `json:"ttl"`
	AccessCount int64 `json:"accessCount"`
	LastAccess  int64 `json:"lastAccess"`
}

func toRecord[V any](e Entry[V]) record[V] {
	return record[V]{
		Value:       e.Value,
		WriteTime:   e.WriteTime.UnixMilli(),
		TTL:         e.TTL.Milliseconds(),
		AccessCount: e.AccessCount,
		LastAccess:  e.LastAccess.UnixMilli(),
	}
}

func (r record[V]) entry() Entry[V] {
	return Entry[V]{
		Value:       r.Value,
		WriteTime:   time.UnixMilli(r.WriteTime),
		TTL:         time.Duration(r.TTL) * time.Millisecond,
		AccessCount: r.AccessCount,
		LastAccess:  time.UnixMilli(r.LastAccess),
	}
}

// blob is the whole cache as stored under one storage key.
type blob[V any] map[string]record[V]

// persister mirrors cache mutations into a kv.Store. Writes are queued on
// a per-key scheduler and applied in issue order by a background worker;
// every write re-reads the blob, changes it and stores it back. Nothing in
// here returns an error to the cache: failures are logged and counted.
type persister[V any] struct {
	name    string
	key     string
	store   kv.Store
	log     *slog.Logger
	metrics Metrics
	writes  *perkey.Scheduler[string]
}

func newPersister[V any](opts Options, log *slog.Logger) *persister[V] {
	p := &persister[V]{
		name:    opts.Name,
		key:     opts.StorageKey,
		store:   opts.Storage,
		log:     log.With(slog.String("storage_key", opts.StorageKey)),
		metrics: opts.Metrics,
	}
	p.writes = perkey.New[string](
		perkey.WithBufferSize(256),
		perkey.WithErrorHandler(func(_ any, err error) {
			p.log.Warn("cache persistence failed", slog.Any("error", err))
		}),
	)
	return p
}

// load reads the persisted entries. A missing blob is an empty cache, and
// so is an unreadable one.
func (p *persister[V]) load(ctx context.Context) map[string]Entry[V] {
	defer p.metrics.PersistDuration(p.name, PersistLoad).ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	b, err := p.read(ctx)
	if err != nil {
		p.metrics.PersistError(p.name, PersistLoad)
		p.log.Warn("failed to restore cache, starting empty", slog.Any("error", err))
		return nil
	}

	out := make(map[string]Entry[V], len(b))
	for k, r := range b {
		out[k] = r.entry()
	}
	return out
}

var errMalformed = errors.New("malformed persisted cache")

func (p *persister[V]) read(ctx context.Context) (blob[V], error) {
	raw, err := p.store.Get(ctx, p.key)
	if errors.Is(err, kv.ErrNotFound) {
		return blob[V]{}, nil
	}
	if err != nil {
		return nil, err
	}

	var b blob[V]
	if err = json.Unmarshal(raw.Data, &b); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformed, err)
	}
	if b == nil {
		b = blob[V]{}
	}
	return b, nil
}

// update runs one read-modify-write cycle on the blob. A malformed blob is
// replaced rather than blocking every later write.
func (p *persister[V]) update(ctx context.Context, mutate func(blob[V])) error {
	b, err := p.read(ctx)
	if errors.Is(err, errMalformed) {
		p.log.Warn("discarding malformed persisted cache", slog.Any("error", err))
		b, err = blob[V]{}, nil
	}
	if err != nil {
		return err
	}

	mutate(b)
	return kv.Put(ctx, p.store, p.key, b)
}

func (p *persister[V]) save(key string, e Entry[V]) {
	r := toRecord(e)
	p.submit(PersistSave, func(ctx context.Context) error {
		return p.update(ctx, func(b blob[V]) { b[key] = r })
	})
}

func (p *persister[V]) remove(keys ...string) {
	p.submit(PersistRemove, func(ctx context.Context) error {
		return p.update(ctx, func(b blob[V]) {
			for _, k := range keys {
				delete(b, k)
			}
		})
	})
}

func (p *persister[V]) purge() {
	p.submit(PersistPurge, func(ctx context.Context) error {
		return p.store.Delete(ctx, p.key)
	})
}

func (p *persister[V]) submit(op string, fn func(context.Context) error) {
	err := p.writes.Submit(p.key, func() error {
		defer p.metrics.PersistDuration(p.name, op).ObserveDuration()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			p.metrics.PersistError(p.name, op)
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
	if err != nil {
		p.log.Warn("cache persistence skipped", slog.String("op", op), slog.Any("error", err))
	}
}

// flush waits for the writes queued so far.
func (p *persister[V]) flush(ctx context.Context) error {
	return p.writes.DoContext(ctx, p.key, func() error { return nil })
}

func (p *persister[V]) close() {
	p.writes.Close()
}
