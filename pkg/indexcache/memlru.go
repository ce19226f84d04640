package indexcache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/zlbkkk/cloudimpact/pkg/model"
)

// memEntry is one node's payload in the in-process hot cache.
type memEntry struct {
	key   string
	index *model.SymbolIndex
}

// MemLRU is a thread-safe, fixed-capacity LRU front-cache sitting in front
// of the SQLite-backed store, avoiding a round trip for repeated lookups
// within one task. Generalized from a doubly-linked-list eviction scheme
// to opaque string cache keys instead of a single hash type.
type MemLRU struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemLRU returns an LRU cache holding at most capacity entries.
func NewMemLRU(capacity int) *MemLRU {
	if capacity <= 0 {
		capacity = 1
	}

	return &MemLRU{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached index for key, promoting it to most-recently-used.
func (c *MemLRU) Get(key string) (*model.SymbolIndex, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses.Add(1)

		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits.Add(1)

	return elem.Value.(*memEntry).index, true //nolint:errcheck // type is owned entirely by this file
}

// Put inserts or refreshes key, evicting the least-recently-used entry if
// capacity is exceeded.
func (c *MemLRU) Put(key string, index *model.SymbolIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*memEntry).index = index //nolint:errcheck
		c.order.MoveToFront(elem)

		return
	}

	elem := c.order.PushFront(&memEntry{key: key, index: index})
	c.items[key] = elem

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*memEntry).key) //nolint:errcheck
		}
	}
}

// Delete evicts key, if present.
func (c *MemLRU) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return
	}

	c.order.Remove(elem)
	delete(c.items, key)
}

// Stats returns the cumulative hit/miss counters, used by test
// instrumentation for the cache-reuse scenario.
func (c *MemLRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
