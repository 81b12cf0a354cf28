// Package viewcache memoizes dashboard views per snapshot.
package viewcache

import (
	"sync"

	"github.com/couchcryptid/water-balance-service/internal/observability"
)

// Key identifies one computed view. Snapshot IDs change on every load, so
// entries for replaced snapshots are never hit again and age out.
type Key struct {
	Snapshot string
	View     string
	Month    string
}

// Cache is a bounded LRU of computed views.
type Cache struct {
	lru     *lruCache
	metrics *observability.Metrics
}

// New creates a cache holding at most maxEntries views.
func New(maxEntries int, metrics *observability.Metrics) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		lru:     newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// Len reports the number of cached views.
func (c *Cache) Len() int {
	return c.lru.len()
}

// Lookup returns the cached view for key, computing and storing it on a miss.
// Errors are returned as-is and not cached.
func Lookup[V any](c *Cache, key Key, compute func() (V, error)) (V, error) {
	if v, ok := c.lru.get(key); ok {
		if typed, ok := v.(V); ok {
			c.record(key.View, "hit")
			return typed, nil
		}
	}
	c.record(key.View, "miss")

	v, err := compute()
	if err != nil {
		return v, err
	}
	c.lru.put(key, v)
	return v, nil
}

func (c *Cache) record(view, result string) {
	if c.metrics != nil {
		c.metrics.ViewCache.WithLabelValues(view, result).Inc()
	}
}

// lruCache is a thread-safe LRU keyed by Key.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[Key]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   Key
	value any
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[Key]*entry),
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
