package cache

import "context"

// Cache is a byte-oriented cache for immutable content.
// Returned slices must be treated as read-only.
type Cache interface {
	// Get returns cached content. ok=false if missing.
	Get(ctx context.Context, key string) (b []byte, ok bool)
	// Set caches content. Implementations retain b; caller must treat b as immutable.
	Set(ctx context.Context, key string, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key string) bool)
	// Stats returns cache statistics.
	Stats() (hits, misses int64)
	// Size returns the cached bytes.
	Size() int64
	// Close drops all entries and releases their memory.
	Close() error
}
