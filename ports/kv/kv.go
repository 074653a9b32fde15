// Package kv defines the durable key-value port used to persist cache
// contents, plus in-memory and file-backed implementations.
package kv

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
)

// Entry is a raw value as held by a Store.
type Entry struct {
	Data []byte
}

// Store is a flat key-value store. Implementations must be safe for
// concurrent use. Get returns ErrNotFound for absent keys; Delete of an
// absent key is not an error.
type Store interface {
	Put(ctx context.Context, key string, entry Entry) error
	Get(ctx context.Context, key string) (entry Entry, err error)
	Delete(ctx context.Context, key string) error
}

func Put[T any](ctx context.Context, store Store, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return store.Put(ctx, key, Entry{Data: data})
}

func Get[T any](ctx context.Context, store Store, key string) (out T, err error) {
	entry, err := store.Get(ctx, key)
	if err != nil {
		return
	}
	err = json.Unmarshal(entry.Data, &out)
	if err != nil {
		return
	}
	return
}
