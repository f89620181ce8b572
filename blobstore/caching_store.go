package blobstore

import (
	"context"

	"github.com/hupe1980/docdb/internal/cache"
)

var _ Store = (*CachingStore)(nil)

// CachingStore wraps a Store and caches whole blobs by name.
// Errors are never cached.
type CachingStore struct {
	inner Store
	cache cache.Cache
}

// NewCachingStore creates a new CachingStore.
func NewCachingStore(inner Store, c cache.Cache) *CachingStore {
	return &CachingStore{
		inner: inner,
		cache: c,
	}
}

// Get returns the cached blob or reads it from the inner store.
// Returned slices must be treated as read-only.
func (s *CachingStore) Get(ctx context.Context, name string) ([]byte, error) {
	if b, ok := s.cache.Get(ctx, name); ok {
		return b, nil
	}

	b, err := s.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, name, b)
	return b, nil
}

// Invalidate drops the cached copy of name.
func (s *CachingStore) Invalidate(name string) {
	s.cache.Invalidate(func(key string) bool {
		return key == name
	})
}

// Stats returns the cache hit/miss counters.
func (s *CachingStore) Stats() (hits, misses int64) {
	return s.cache.Stats()
}
