package cache

import (
	"context"
	"hash/maphash"
	"sync/atomic"

	"github.com/hupe1980/docdb/internal/resource"
)

const shardCount = 16

var _ Cache = (*ShardedLRUCache)(nil)

// ShardedLRUCache spreads content across independent LRU shards so that
// concurrent fetch workers rarely contend on the same lock. The shards share
// one byte budget: any single entry up to the full capacity can be cached,
// and making room evicts the oldest entries shard by shard.
type ShardedLRUCache struct {
	seed     maphash.Seed
	shards   []*LRUCache
	capacity int64
	total    atomic.Int64
	next     atomic.Uint32
}

// NewShardedLRUCache creates a cache holding at most capacity bytes in total.
func NewShardedLRUCache(capacity int64, rc *resource.Controller) *ShardedLRUCache {
	s := &ShardedLRUCache{
		seed:     maphash.MakeSeed(),
		shards:   make([]*LRUCache, shardCount),
		capacity: capacity,
	}
	for i := range s.shards {
		sh := NewLRUCache(capacity, rc)
		sh.total = &s.total
		s.shards[i] = sh
	}
	return s
}

func (s *ShardedLRUCache) shardFor(key string) *LRUCache {
	return s.shards[maphash.String(s.seed, key)%shardCount]
}

// Get implements Cache.
func (s *ShardedLRUCache) Get(ctx context.Context, key string) ([]byte, bool) {
	return s.shardFor(key).Get(ctx, key)
}

// Set implements Cache.
func (s *ShardedLRUCache) Set(ctx context.Context, key string, b []byte) {
	sh := s.shardFor(key)
	size := int64(len(b))
	if size <= s.capacity {
		s.shrinkTo(s.capacity - (size - sh.sizeOf(key)))
	}
	sh.Set(ctx, key, b)
	// Concurrent writers may have pushed the total past the budget.
	s.shrinkTo(s.capacity)
}

// shrinkTo evicts round-robin across shards until the total fits limit or
// nothing is left to evict.
func (s *ShardedLRUCache) shrinkTo(limit int64) {
	idle := 0
	for s.total.Load() > limit && idle < shardCount {
		i := s.next.Add(1) % shardCount
		if s.shards[i].evictOldest() {
			idle = 0
		} else {
			idle++
		}
	}
}

// Invalidate implements Cache.
func (s *ShardedLRUCache) Invalidate(predicate func(key string) bool) {
	for _, sh := range s.shards {
		sh.Invalidate(predicate)
	}
}

// Close empties every shard.
func (s *ShardedLRUCache) Close() error {
	for _, sh := range s.shards {
		_ = sh.Close()
	}
	return nil
}

// Stats sums hits and misses over all shards.
func (s *ShardedLRUCache) Stats() (hits, misses int64) {
	for _, sh := range s.shards {
		h, m := sh.Stats()
		hits, misses = hits+h, misses+m
	}
	return hits, misses
}

// Size implements Cache.
func (s *ShardedLRUCache) Size() int64 {
	return s.total.Load()
}
