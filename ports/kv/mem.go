package kv

import (
	"context"
	"sync"
)

// MemStore keeps entries in process memory. It stands in for a durable
// store in tests and when no backend is configured.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]Entry
}

func NewMemStore() *MemStore {
	return &MemStore{data: map[string]Entry{}}
}

func (m *MemStore) Put(_ context.Context, key string, entry Entry) error {
	data := make([]byte, len(entry.Data))
	copy(data, entry.Data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = Entry{Data: data}
	return nil
}

func (m *MemStore) Get(_ context.Context, key string) (entry Entry, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.data[key]
	if !ok {
		return entry, ErrNotFound
	}

	entry.Data = make([]byte, len(stored.Data))
	copy(entry.Data, stored.Data)
	return entry, nil
}

func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

var _ Store = (*MemStore)(nil)
