// Package cache provides an LRU cache of introspected table columns.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/coregx/webdb/internal/dialects"
)

// DefaultCapacity is the number of tables kept when no capacity is given.
const DefaultCapacity = 128

// FieldCache stores column metadata per table with LRU eviction.
// Cached slices are copied on the way in and out so callers may modify them.
type FieldCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	lru      *list.List

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type entry struct {
	table   string
	columns []dialects.Column
}

// NewFieldCache creates a cache holding at most capacity tables.
func NewFieldCache(capacity int) *FieldCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &FieldCache{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		lru:      list.New(),
	}
}

// Get returns the columns of table and whether they were cached.
func (c *FieldCache) Get(table string) ([]dialects.Column, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[table]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	c.hits.Add(1)
	return clone(elem.Value.(*entry).columns), true
}

// Set stores the columns of table, evicting the least recently used table
// when full.
func (c *FieldCache) Set(table string, columns []dialects.Column) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[table]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*entry).columns = clone(columns)
		return
	}
	if c.lru.Len() >= c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).table)
			c.evictions.Add(1)
		}
	}
	c.items[table] = c.lru.PushFront(&entry{table: table, columns: clone(columns)})
}

// Invalidate drops the given tables, or every table when none is named.
func (c *FieldCache) Invalidate(tables ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(tables) == 0 {
		c.items = make(map[string]*list.Element, c.capacity)
		c.lru.Init()
		return
	}
	for _, t := range tables {
		if elem, ok := c.items[t]; ok {
			c.lru.Remove(elem)
			delete(c.items, t)
		}
	}
}

func clone(cols []dialects.Column) []dialects.Column {
	if cols == nil {
		return nil
	}
	out := make([]dialects.Column, len(cols))
	copy(out, cols)
	return out
}

// Stats holds cache counters.
type Stats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64
}

// Stats returns a snapshot of the cache counters.
func (c *FieldCache) Stats() Stats {
	c.mu.Lock()
	size := c.lru.Len()
	c.mu.Unlock()

	hits, misses := c.hits.Load(), c.misses.Load()
	rate := 0.0
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Size:      size,
		Capacity:  c.capacity,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRate:   rate,
	}
}
