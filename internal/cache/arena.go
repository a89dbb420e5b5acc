// Package cache holds short-lived in-process state with TTL and size bounds.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Arena is an LRU map with TTL and size-based eviction. It holds pending
// work keyed by correlation id until it is taken, expires or is evicted.
type Arena[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	items   map[string]*list.Element
	lru     *list.List
}

type arenaItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

// NewArena creates an arena. A zero ttl disables expiry and a zero maxSize
// disables the size bound.
func NewArena[T any](maxSize int, ttl time.Duration) *Arena[T] {
	return &Arena[T]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// WithClock replaces the arena clock; used by tests.
func (c *Arena[T]) WithClock(now func() time.Time) *Arena[T] {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

func (c *Arena[T]) expired(item *arenaItem[T], now time.Time) bool {
	return c.ttl > 0 && now.After(item.expiresAt)
}

// Get retrieves a value without removing it
func (c *Arena[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}
	item := elem.Value.(*arenaItem[T])
	if c.expired(item, c.now()) {
		c.removeElement(elem)
		return zero, false
	}
	c.lru.MoveToFront(elem)
	return item.data, true
}

// Take removes and returns a value. Only one caller can take a given key.
func (c *Arena[T]) Take(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}
	item := elem.Value.(*arenaItem[T])
	c.removeElement(elem)
	if c.expired(item, c.now()) {
		return zero, false
	}
	return item.data, true
}

// Put stores a value and returns how many entries were evicted to make room.
func (c *Arena[T]) Put(key string, data T) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &arenaItem[T]{
		key:       key,
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return 0
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem

	evicted := 0
	for c.maxSize > 0 && c.lru.Len() > c.maxSize {
		c.removeElement(c.lru.Back())
		evicted++
	}
	return evicted
}

// Delete removes a key
func (c *Arena[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

func (c *Arena[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*arenaItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *Arena[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttl <= 0 {
		return 0
	}
	now := c.now()
	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if c.expired(elem.Value.(*arenaItem[T]), now) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

// Size returns the current number of entries
func (c *Arena[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
