// Package sf deduplicates concurrent loads for the same key.
//
// When several callers miss the cache for one key at the same moment, only
// the first runs the loader; the others block and receive its result. This
// keeps a burst of identical misses from turning into a burst of backend
// queries.
//
//	var loads sf.Singleflight[Listing]
//	ad, shared, err := loads.Do("ad:123", func() (Listing, error) {
//	    return backend.Listing(ctx, "123")
//	})
package sf
