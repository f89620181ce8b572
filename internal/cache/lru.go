package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/docdb/internal/resource"
)

var _ Cache = (*LRUCache)(nil)

// LRUCache is a byte-bounded least-recently-used cache. When a Controller is
// attached, every cached byte is also reserved against its memory budget and
// entries the budget cannot admit are simply not cached.
type LRUCache struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	items    map[string]*list.Element
	order    *list.List // front is most recently used
	rc       *resource.Controller
	total    *atomic.Int64 // shared with sibling shards, nil when standalone

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key   string
	value []byte
}

// NewLRUCache creates a cache holding at most capacity bytes.
func NewLRUCache(capacity int64, rc *resource.Controller) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		rc:       rc,
	}
}

// Get implements Cache.
func (c *LRUCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.order.MoveToFront(e)
	return e.Value.(*entry).value, true
}

// Set implements Cache. Values larger than the capacity are not cached; an
// existing entry for key is dropped in that case.
func (c *LRUCache) Set(_ context.Context, key string, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(len(b))
	cur, exists := c.items[key]

	if size > c.capacity {
		if exists {
			c.remove(cur)
		}
		return
	}

	var oldSize int64
	if exists {
		oldSize = int64(len(cur.Value.(*entry).value))
		c.order.MoveToFront(cur)
	}
	delta := size - oldSize

	// Make room among the other entries first so their memory is back in
	// the budget before asking for more.
	for c.size+delta > c.capacity {
		back := c.order.Back()
		if back == nil || back == cur {
			break
		}
		c.remove(back)
	}

	if delta > 0 && !c.rc.TryAcquireMemory(delta) {
		return
	}
	if delta < 0 {
		c.rc.ReleaseMemory(-delta)
	}
	c.size += delta
	c.account(delta)

	if exists {
		cur.Value.(*entry).value = b
		return
	}
	c.items[key] = c.order.PushFront(&entry{key: key, value: b})
}

// Invalidate implements Cache.
func (c *LRUCache) Invalidate(predicate func(key string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.order.Front(); e != nil; {
		next := e.Next()
		if predicate(e.Value.(*entry).key) {
			c.remove(e)
		}
		e = next
	}
}

// Close drops all entries and returns their memory to the Controller.
func (c *LRUCache) Close() error {
	c.Invalidate(func(string) bool { return true })
	return nil
}

// Stats implements Cache.
func (c *LRUCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *LRUCache) remove(e *list.Element) {
	ent := c.order.Remove(e).(*entry)
	delete(c.items, ent.key)
	n := int64(len(ent.value))
	c.size -= n
	c.account(-n)
	c.rc.ReleaseMemory(n)
}

func (c *LRUCache) account(delta int64) {
	if c.total != nil {
		c.total.Add(delta)
	}
}

// evictOldest drops the least recently used entry and reports whether there
// was one.
func (c *LRUCache) evictOldest() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	back := c.order.Back()
	if back == nil {
		return false
	}
	c.remove(back)
	return true
}

// sizeOf returns the size of the cached value for key, 0 if absent.
func (c *LRUCache) sizeOf(key string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		return int64(len(e.Value.(*entry).value))
	}
	return 0
}

// Size implements Cache.
func (c *LRUCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of cached entries.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
