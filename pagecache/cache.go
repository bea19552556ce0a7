// Package pagecache implements the L2 layer: a bounded write-through LRU
// cache of fixed-size records keyed by file address, threaded through
// container/list the way the teacher's Pager keeps its page cache
// (btree/pager.go: cache map[uint32]*Page, lru *list.List, lruMap
// map[uint32]*list.Element). Per the storage spec's "cache coherency"
// design note, every mutation is written through immediately rather than
// held dirty for a later flush, so eviction never needs to write anything
// back — it only drops the resident copy.
package pagecache

import (
	"container/list"
	"fmt"

	"go.uber.org/zap"
)

// Loader fetches the backing value for addr when it is not resident.
type Loader[T any] func(addr int64) (T, error)

// Writer persists v for addr to the backing store.
type Writer[T any] func(addr int64, v T) error

type entry[T any] struct {
	addr  int64
	value T
}

// Cache is a bounded write-through LRU cache of fixed-size records keyed
// by file address. At most Capacity entries are resident at once; the
// MRU end is never evicted.
type Cache[T any] struct {
	capacity int
	ll       *list.List
	items    map[int64]*list.Element
	load     Loader[T]
	store    Writer[T]
	log      *zap.SugaredLogger
}

// New creates a cache bounded to capacity entries.
func New[T any](capacity int, load Loader[T], store Writer[T], logger *zap.Logger) *Cache[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache[T]{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[int64]*list.Element, capacity),
		load:     load,
		store:    store,
		log:      logger.Sugar(),
	}
}

// Get returns the value at addr, loading it on a miss and evicting the
// least-recently-used entry if the cache is full. The returned value is
// moved to the MRU end.
func (c *Cache[T]) Get(addr int64) (T, error) {
	if el, ok := c.items[addr]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*entry[T]).value, nil
	}

	var zero T
	if c.ll.Len() >= c.capacity {
		c.evictOne()
	}

	v, err := c.load(addr)
	if err != nil {
		return zero, fmt.Errorf("pagecache: load %d: %w", addr, err)
	}
	el := c.ll.PushFront(&entry[T]{addr: addr, value: v})
	c.items[addr] = el
	return v, nil
}

// InsertNew primes the cache with a value known to have just been written
// to the backing store (e.g. right after File.Append), avoiding a
// redundant load.
func (c *Cache[T]) InsertNew(addr int64, v T) {
	if el, ok := c.items[addr]; ok {
		el.Value.(*entry[T]).value = v
		c.ll.MoveToFront(el)
		return
	}
	if c.ll.Len() >= c.capacity {
		c.evictOne()
	}
	el := c.ll.PushFront(&entry[T]{addr: addr, value: v})
	c.items[addr] = el
}

// WriteThrough updates the cached copy (if resident) and writes the
// backing store immediately, so later reads through the cache and reads
// that bypass it both observe the new value.
func (c *Cache[T]) WriteThrough(addr int64, v T) error {
	if el, ok := c.items[addr]; ok {
		el.Value.(*entry[T]).value = v
		c.ll.MoveToFront(el)
	}
	if err := c.store(addr, v); err != nil {
		return fmt.Errorf("pagecache: write through %d: %w", addr, err)
	}
	return nil
}

// evictOne drops the LRU entry. Nothing needs to be flushed: every
// mutation already reached the backing store via WriteThrough or an
// Append that preceded InsertNew.
func (c *Cache[T]) evictOne() {
	back := c.ll.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry[T])
	c.ll.Remove(back)
	delete(c.items, e.addr)
	c.log.Debugw("evicted", "addr", e.addr)
}

// FlushAll is a no-op under the write-through policy above; it exists so
// callers can treat Cache uniformly with a write-back cache and call it
// unconditionally before close.
func (c *Cache[T]) FlushAll() error { return nil }

// Clear drops every resident entry.
func (c *Cache[T]) Clear() error {
	c.ll.Init()
	c.items = make(map[int64]*list.Element, c.capacity)
	return nil
}

// Len reports the number of resident entries.
func (c *Cache[T]) Len() int { return c.ll.Len() }
