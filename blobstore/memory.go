package blobstore

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
)

var _ WritableStore = (*MemoryStore)(nil)

// MemoryStore keeps blobs in a map. It copies on the way in and out, counts
// reads per name, and is safe for concurrent use. Tests use it as a content
// source.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	reads map[string]int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
		reads: make(map[string]int),
	}
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.reads[name]++
	data, ok := m.blobs[name]
	m.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

// Put implements WritableStore.
func (m *MemoryStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data = slices.Clone(data)

	m.mu.Lock()
	m.blobs[name] = data
	m.mu.Unlock()
	return nil
}

// Delete removes name. Deleting a missing blob is not an error.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()
	return nil
}

// List returns the sorted names starting with prefix.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	names := slices.Sorted(maps.Keys(m.blobs))
	m.mu.RUnlock()

	return slices.DeleteFunc(names, func(name string) bool {
		return !strings.HasPrefix(name, prefix)
	}), nil
}

// Gets returns how many times name was requested, found or not.
func (m *MemoryStore) Gets(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reads[name]
}
