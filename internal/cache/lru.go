package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a size-bounded cache whose entries also expire after ttl. With
// sliding expiry every Get pushes the deadline back, which suits idle
// session timeouts.
type LRU[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	sliding bool
	now     func() time.Time
	onEvict func(key string, value T)
	items   map[string]*list.Element
	order   *list.List
}

type entry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// Option configures an LRU.
type Option[T any] func(*LRU[T])

// WithSlidingExpiry renews an entry's ttl on every successful Get.
func WithSlidingExpiry[T any]() Option[T] {
	return func(c *LRU[T]) { c.sliding = true }
}

// WithEvictCallback is called, outside the cache lock, for every entry
// dropped by capacity or expiry. Explicit deletes do not trigger it.
func WithEvictCallback[T any](fn func(key string, value T)) Option[T] {
	return func(c *LRU[T]) { c.onEvict = fn }
}

// WithClock replaces time.Now.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *LRU[T]) { c.now = now }
}

// NewLRU creates a cache holding at most maxSize entries for ttl each.
func NewLRU[T any](maxSize int, ttl time.Duration, opts ...Option[T]) *LRU[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &LRU[T]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key if it is present and not expired.
func (c *LRU[T]) Get(key string) (T, bool) {
	var zero T
	c.mu.Lock()
	elem, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}

	e := elem.Value.(*entry[T])
	now := c.now()
	if now.After(e.expiresAt) {
		c.removeLocked(elem)
		c.mu.Unlock()
		c.evicted([]*entry[T]{e})
		return zero, false
	}

	if c.sliding {
		e.expiresAt = now.Add(c.ttl)
	}
	c.order.MoveToFront(elem)
	c.mu.Unlock()
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry when full.
func (c *LRU[T]) Set(key string, value T) {
	c.mu.Lock()
	expiresAt := c.now().Add(c.ttl)

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry[T])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		c.mu.Unlock()
		return
	}

	c.items[key] = c.order.PushFront(&entry[T]{key: key, value: value, expiresAt: expiresAt})

	var dropped []*entry[T]
	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		dropped = append(dropped, oldest.Value.(*entry[T]))
		c.removeLocked(oldest)
	}
	c.mu.Unlock()
	c.evicted(dropped)
}

// Delete removes key.
func (c *LRU[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeLocked(elem)
	}
}

// Len is the number of entries, expired ones included until they are cleaned.
func (c *LRU[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// CleanExpired drops every expired entry and returns how many were removed.
func (c *LRU[T]) CleanExpired() int {
	c.mu.Lock()
	now := c.now()
	var dropped []*entry[T]
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		e := elem.Value.(*entry[T])
		if now.After(e.expiresAt) {
			dropped = append(dropped, e)
			c.removeLocked(elem)
		}
		elem = next
	}
	c.mu.Unlock()

	c.evicted(dropped)
	return len(dropped)
}

func (c *LRU[T]) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry[T])
	delete(c.items, e.key)
	c.order.Remove(elem)
}

func (c *LRU[T]) evicted(entries []*entry[T]) {
	if c.onEvict == nil {
		return
	}
	for _, e := range entries {
		c.onEvict(e.key, e.value)
	}
}
