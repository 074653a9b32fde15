// Package cache provides a bounded in-memory cache with per-entry TTL,
// least-recently-used eviction and optional write-through persistence.
//
// # Implementations
//
// [LRU] is the real cache; [Nop] stores nothing and is handy for switching
// caching off. Both satisfy [Cache].
//
//	listings := cache.NewLRU[Listing](cache.Options{Name: "listings", MaxSize: 500})
//	defer listings.Close()
//
//	listings.Set("ad:123", ad, cache.WithTTL(30*time.Second))
//	if ad, ok := listings.Get("ad:123"); ok {
//	    // use ad
//	}
//
// # Expiry
//
// An entry expires once more than its TTL has passed since it was written.
// Expired entries are removed when they are next read and by a sweep that
// runs every [Options.SweepInterval], so unread entries do not hold on to
// capacity. Reads never return an expired value.
//
// # Eviction
//
// Setting a new key on a full cache first evicts the entry that was least
// recently read or written. Entries touched at the same instant are evicted
// in the order they were touched.
//
// # Persistence
//
// With [Options.Persist] every Set, Delete, Clear, eviction and expiry is
// mirrored to [Options.Storage] as one JSON object under
// [Options.StorageKey], and a new cache restores from it. Writes happen in
// the background and never fail the cache operation; storage errors are
// logged. Access counts from reads are not written back. Values must be
// JSON-serializable, and come back through JSON decoding: use a concrete V
// for exact round-trips, since an LRU[any] reloads numbers as float64 and
// objects as map[string]any.
//
// Every write rewrites the whole stored object, so two caches, or two
// processes, using the same storage key overwrite each other. Give each
// cache its own key.
//
// # Loading
//
// [LRU.GetOrLoad] fills the cache on a miss and lets concurrent misses for
// one key share a single load:
//
//	ad, err := listings.GetOrLoad(ctx, "ad:123", func(ctx context.Context) (Listing, error) {
//	    return backend.Listing(ctx, "123")
//	})
package cache
