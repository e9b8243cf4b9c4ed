// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package cache

import (
	"sync"
)

// Entity is anything the cache can hold. Key returns the record's opaque
// id rendered as a string; it must be stable for the life of the record.
type Entity interface {
	Key() string
}

// OrderMode controls where realtime inserts land in a collection.
type OrderMode int

const (
	// PrependNewest puts realtime inserts at the front, matching the
	// newest-first ordering of bulk loads for feed-style collections.
	PrependNewest OrderMode = iota

	// Append puts realtime inserts at the back.
	Append
)

// Collection is an ordered, id-deduplicated set of records of one entity
// type. All methods are safe for concurrent use.
//
// Deleted ids are tombstoned: an update arriving after a delete is a
// no-op, while an insert for the same id clears the tombstone. Tombstones
// live until the next bulk load, which resets them along with the data.
type Collection[T Entity] struct {
	mu         sync.RWMutex
	order      OrderMode
	items      []T
	index      map[string]int
	tombstones map[string]struct{}
	loaded     bool
}

// NewCollection creates an empty collection with the given insert order.
func NewCollection[T Entity](order OrderMode) *Collection[T] {
	return &Collection[T]{
		order:      order,
		index:      make(map[string]int),
		tombstones: make(map[string]struct{}),
	}
}

// BulkLoad replaces the collection's contents with records, preserving
// their order. Duplicate ids within records collapse to the last
// occurrence, keeping the first occurrence's position. Tombstones are
// cleared; a bulk load is the authoritative restatement of the type.
// Loading the same slice twice yields the same state.
func (c *Collection[T]) BulkLoad(records []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = c.items[:0]
	c.index = make(map[string]int, len(records))
	c.tombstones = make(map[string]struct{})
	c.loaded = true

	for _, rec := range records {
		key := rec.Key()
		if at, ok := c.index[key]; ok {
			c.items[at] = rec
			continue
		}
		c.index[key] = len(c.items)
		c.items = append(c.items, rec)
	}
}

// Loaded reports whether the collection has seen a bulk load since
// creation or the last Reset.
func (c *Collection[T]) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Reset empties the collection and marks it unloaded, forcing the next
// view that depends on it to reload from the store.
func (c *Collection[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.index = make(map[string]int)
	c.tombstones = make(map[string]struct{})
	c.loaded = false
}

// ApplyInsert adds rec unless its id is already present, in which case
// the call is a no-op. A tombstone for the id is cleared; the record is
// a new row as far as the store is concerned. Returns true when the
// collection changed.
func (c *Collection[T]) ApplyInsert(rec T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := rec.Key()
	if _, ok := c.index[key]; ok {
		return false
	}
	delete(c.tombstones, key)

	if c.order == PrependNewest {
		c.items = append(c.items, rec)
		copy(c.items[1:], c.items)
		c.items[0] = rec
		for k, at := range c.index {
			c.index[k] = at + 1
		}
		c.index[key] = 0
	} else {
		c.index[key] = len(c.items)
		c.items = append(c.items, rec)
	}
	return true
}

// ApplyUpdate replaces the record with rec's id in place, keeping its
// position. Updates for absent or tombstoned ids are no-ops. Returns
// true when the collection changed.
func (c *Collection[T]) ApplyUpdate(rec T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := rec.Key()
	if _, dead := c.tombstones[key]; dead {
		return false
	}
	at, ok := c.index[key]
	if !ok {
		return false
	}
	c.items[at] = rec
	return true
}

// ApplyDelete removes the record with the given key and tombstones the
// id so a late update cannot resurrect it. Deleting an absent id still
// records the tombstone. Returns true when a record was removed.
func (c *Collection[T]) ApplyDelete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tombstones[key] = struct{}{}
	at, ok := c.index[key]
	if !ok {
		return false
	}
	c.items = append(c.items[:at], c.items[at+1:]...)
	delete(c.index, key)
	for k, i := range c.index {
		if i > at {
			c.index[k] = i - 1
		}
	}
	return true
}

// Get returns the record with the given key.
func (c *Collection[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	at, ok := c.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	return c.items[at], true
}

// Len returns the number of records held.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Snapshot returns a copy of the collection's records in order. Callers
// may read the slice freely; records are values.
func (c *Collection[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Mutate applies fn to the record with the given key in place. The
// update is skipped for absent or tombstoned ids. Returns true when fn
// was applied. Used by the merger for enrichment patches that must not
// race with concurrent event application.
func (c *Collection[T]) Mutate(key string, fn func(*T)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dead := c.tombstones[key]; dead {
		return false
	}
	at, ok := c.index[key]
	if !ok {
		return false
	}
	fn(&c.items[at])
	return true
}
