package cache

import (
	"container/list"
	"sync"
	"time"
)

// Option configures an LRUCache.
type Option func(*options)

type options struct {
	sliding bool
	now     func() time.Time
}

// WithSlidingExpiry restarts an entry's TTL on every hit, so only idle
// entries expire.
func WithSlidingExpiry() Option {
	return func(o *options) { o.sliding = true }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// LRUCache bounds entries by count and age. The least recently used entry is
// evicted once maxSize is exceeded.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	opts    options
	index   map[string]*list.Element
	order   *list.List // front is most recently used
}

type entry[T any] struct {
	key      string
	value    T
	deadline time.Time
}

// NewLRUCache creates a cache holding at most maxSize entries for ttl each.
// maxSize below one is treated as one.
func NewLRUCache[T any](maxSize int, ttl time.Duration, opts ...Option) *LRUCache[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &LRUCache[T]{
		maxSize: max(maxSize, 1),
		ttl:     ttl,
		opts:    o,
		index:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

var _ Cache[int] = (*LRUCache[int])(nil)

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.hitLocked(key); e != nil {
		return e.value, true
	}
	var zero T
	return zero, false
}

// GetOrAdd returns the live entry for key, or stores and returns create().
// create runs under the cache lock.
func (c *LRUCache[T]) GetOrAdd(key string, create func() T) T {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.hitLocked(key); e != nil {
		return e.value
	}
	v := create()
	c.putLocked(key, v)
	return v
}

func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, value)
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.unlinkLocked(el)
	}
}

// Clear empties the cache.
func (c *LRUCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.index)
	c.order.Init()
}

// CleanExpired drops every expired entry and reports how many went.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*entry[T]).deadline) {
			c.unlinkLocked(el)
			removed++
		}
		el = prev
	}
	return removed
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// hitLocked returns the live entry for key and marks it used. An expired
// entry is unlinked and reported as a miss.
func (c *LRUCache[T]) hitLocked(key string) *entry[T] {
	el, ok := c.index[key]
	if !ok {
		return nil
	}
	e := el.Value.(*entry[T])
	now := c.opts.now()
	if now.After(e.deadline) {
		c.unlinkLocked(el)
		return nil
	}
	if c.opts.sliding {
		e.deadline = now.Add(c.ttl)
	}
	c.order.MoveToFront(el)
	return e
}

func (c *LRUCache[T]) putLocked(key string, value T) {
	deadline := c.opts.now().Add(c.ttl)
	if el, ok := c.index[key]; ok {
		e := el.Value.(*entry[T])
		e.value, e.deadline = value, deadline
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(&entry[T]{key: key, value: value, deadline: deadline})
	for c.order.Len() > c.maxSize {
		c.unlinkLocked(c.order.Back())
	}
}

func (c *LRUCache[T]) unlinkLocked(el *list.Element) {
	delete(c.index, el.Value.(*entry[T]).key)
	c.order.Remove(el)
}
