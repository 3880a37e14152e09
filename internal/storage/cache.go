package storage

import (
	"sync"
	"time"
)

type cacheEntry[T any] struct {
	expires time.Time
	value   T
}

// readCache is a read-through cache keyed by identifier. The store stays the
// source of truth: writes invalidate, reads repopulate. It only serves reads;
// write preconditions are always checked against the database.
type readCache[T any] struct {
	entries map[string]cacheEntry[T]
	now     func() time.Time
	ttl     time.Duration
	gen     uint64
	mu      sync.RWMutex
}

func newReadCache[T any](ttl time.Duration) *readCache[T] {
	return &readCache[T]{
		entries: make(map[string]cacheEntry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// get returns a copy of the cached value.
func (c *readCache[T]) get(id string) (*T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[id]
	if !ok || c.now().After(entry.expires) {
		return nil, false
	}
	v := entry.value
	return &v, true
}

// generation must be read before the database read whose result is later
// handed to put.
func (c *readCache[T]) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// put stores value unless an invalidation happened since gen was taken, in
// which case the value may predate the write and is dropped.
func (c *readCache[T]) put(id string, value T, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.entries[id] = cacheEntry[T]{value: value, expires: c.now().Add(c.ttl)}
}

func (c *readCache[T]) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	delete(c.entries, id)
}

func (c *readCache[T]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries = make(map[string]cacheEntry[T])
}

func (c *readCache[T]) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
