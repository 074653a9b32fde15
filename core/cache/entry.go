package cache

import "time"

// Entry is a cached value together with its bookkeeping.
type Entry[V any] struct {
	Value       V
	WriteTime   time.Time
	TTL         time.Duration
	AccessCount int64
	LastAccess  time.Time
}

func (e Entry[V]) expired(now time.Time) bool {
	return now.Sub(e.WriteTime) > e.TTL
}

// ExpiresAt is the instant after which the entry is logically absent.
func (e Entry[V]) ExpiresAt() time.Time {
	return e.WriteTime.Add(e.TTL)
}

type item[V any] struct {
	key   string
	entry Entry[V]
}
