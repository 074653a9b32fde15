// Package app scopes caches to the lifetime of one consumer.
//
// An [App] is created when the consumer starts and stopped when it goes
// away. Caches are looked up by name and created on first use; asking
// again returns the same instance, so a consumer can call [Cache] or [Use]
// wherever it needs the cache without rebuilding it.
//
//	scope := app.New(app.Config{Log: log, Storage: store})
//	defer scope.Stop()
//
//	listings := app.Cache[Listing](scope, "listings",
//	    app.WithMaxSize(500),
//	    app.WithDefaultTTL(2*time.Minute),
//	    app.WithPersistence("listings"),
//	)
//	listings.Set("ad:123", ad)
//
// # Accessors
//
// [Use] hands out the cache operations as a struct of functions. The same
// struct comes back on every call for a name, so it can be passed to other
// layers and compared by pointer:
//
//	acc := app.Use[Listing](scope, "listings")
//	render(acc.Get)
//
// # Teardown
//
// [App.Stop] cancels the sweep of every cache, waits for pending
// persistence writes and clears the in-memory entries. Persisted data
// survives, so a new App against the same storage starts warm. Using a
// cache after Stop is not supported.
package app
