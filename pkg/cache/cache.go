// Package cache provides a thread-safe LRU cache for compiled xq queries.
//
// Compiling a filter is pure, so a query string maps to exactly one
// Expression and can be reused across documents. The REPL and any caller
// that evaluates ad-hoc query strings repeatedly benefit from skipping the
// parse on a hit.
package cache

import (
	"container/list"
	"sync"

	"github.com/jayvdb/xq/pkg/types"
)

type entry struct {
	query string
	expr  *types.Expression
}

// Cache is a thread-safe LRU cache of compiled expressions keyed by query
// text. When capacity is reached the least recently used entry is evicted.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 256

// New creates an LRU cache holding up to capacity compiled queries.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Get returns the cached expression for query, promoting it to most
// recently used.
func (c *Cache) Get(query string) (*types.Expression, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[query]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*entry).expr, true
}

// Put inserts or replaces the expression for query, evicting the least
// recently used entry when at capacity.
func (c *Cache) Put(query string, expr *types.Expression) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[query]; ok {
		el.Value.(*entry).expr = expr
		c.ll.MoveToFront(el)
		return
	}
	if c.ll.Len() >= c.capacity {
		if back := c.ll.Back(); back != nil {
			c.ll.Remove(back)
			delete(c.items, back.Value.(*entry).query)
		}
	}
	c.items[query] = c.ll.PushFront(&entry{query: query, expr: expr})
}

// GetOrCompile returns the cached expression for query, or compiles, caches
// and returns it. Compile errors are not cached.
func (c *Cache) GetOrCompile(query string, compile func(string) (*types.Expression, error)) (*types.Expression, error) {
	if expr, ok := c.Get(query); ok {
		return expr, nil
	}
	expr, err := compile(query)
	if err != nil {
		return nil, err
	}
	c.Put(query, expr)
	return expr, nil
}

// Len returns the number of cached expressions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the maximum number of entries.
func (c *Cache) Capacity() int { return c.capacity }

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element, c.capacity)
}
