// Package metrics holds the instrumentation primitives shared by the cache
// and its backends, so core packages never import a metrics library
// directly.
package metrics

// Timer measures one operation. Call ObserveDuration when it completes:
//
//	defer m.PersistDuration("listings", "save").ObserveDuration()
type Timer interface {
	ObserveDuration()
}
