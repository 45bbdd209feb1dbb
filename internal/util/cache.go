package util

import (
	"container/list"
	"sync"
)

type (
	// LRUCache is a size-bounded, concurrency-safe map that evicts its least
	// recently used entry once it grows past maxSize
	LRUCache[T any] struct {
		cache   map[string]*list.Element
		lru     *list.List
		onEvict func(string, T)
		maxSize int
		mu      sync.RWMutex
	}

	Constructor[T any] func() (T, error)

	cacheEntry[T any] struct {
		value T
		key   string
	}
)

// NewLRUCache creates a cache that holds at most maxSize entries
func NewLRUCache[T any](maxSize int) *LRUCache[T] {
	return &LRUCache[T]{
		cache:   map[string]*list.Element{},
		lru:     list.New(),
		maxSize: maxSize,
	}
}

// OnEvict registers a callback invoked, under the cache lock, whenever an
// entry is evicted for capacity
func (c *LRUCache[T]) OnEvict(fn func(string, T)) *LRUCache[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
	return c
}

// Get returns the cached value for key, building and caching it with create
// on a miss
func (c *LRUCache[T]) Get(key string, create Constructor[T]) (T, error) {
	c.mu.RLock()
	elem, ok := c.cache[key]
	c.mu.RUnlock()

	if ok {
		c.mu.Lock()
		c.lru.MoveToFront(elem)
		c.mu.Unlock()
		return elem.Value.(*cacheEntry[T]).value, nil
	}

	value, err := create()
	if err != nil {
		var zero T
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry[T]).value, nil
	}

	c.insert(key, value)
	return value, nil
}

// Put stores value under key, replacing any existing entry and marking it
// most recently used
func (c *LRUCache[T]) Put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		elem.Value.(*cacheEntry[T]).value = value
		c.lru.MoveToFront(elem)
		return
	}
	c.insert(key, value)
}

// Peek returns the value for key without affecting its recency
func (c *LRUCache[T]) Peek(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if elem, ok := c.cache[key]; ok {
		return elem.Value.(*cacheEntry[T]).value, true
	}
	var zero T
	return zero, false
}

// Remove deletes the entry for key, if present
func (c *LRUCache[T]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.Remove(elem)
		delete(c.cache, key)
	}
}

// Len returns the number of cached entries
func (c *LRUCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// Values returns every cached value, most recently used first
func (c *LRUCache[T]) Values() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res := make([]T, 0, c.lru.Len())
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		res = append(res, elem.Value.(*cacheEntry[T]).value)
	}
	return res
}

func (c *LRUCache[T]) insert(key string, value T) {
	entry := &cacheEntry[T]{key: key, value: value}
	c.cache[key] = c.lru.PushFront(entry)

	if c.lru.Len() > c.maxSize {
		c.evictLast()
	}
}

func (c *LRUCache[T]) evictLast() {
	back := c.lru.Back()
	if back != nil {
		c.lru.Remove(back)
		backEntry := back.Value.(*cacheEntry[T])
		delete(c.cache, backEntry.key)
		if c.onEvict != nil {
			c.onEvict(backEntry.key, backEntry.value)
		}
	}
}
