// Package cache keeps the advisory, non-authoritative copy of a collection
// that is populated on list and patched after each successful write.
package cache

import (
	"sync"

	"github.com/MarvelMathesh/trackflow/internal/docstore"
)

// EventKind enumerates local mutations.
type EventKind string

const (
	// EventCreated prepends Record.
	EventCreated EventKind = "created"
	// EventUpdated shallow-merges Patch into the record matching ID.
	EventUpdated EventKind = "updated"
	// EventDeleted removes the record matching ID.
	EventDeleted EventKind = "deleted"
)

// Event describes a single mutation applied to the cached collection.
type Event[T any] struct {
	Kind   EventKind
	ID     string
	Record T
	Patch  docstore.Patch[T]
}

// Created builds a creation event.
func Created[T any](record T) Event[T] {
	return Event[T]{Kind: EventCreated, Record: record}
}

// Updated builds an update event.
func Updated[T any](id string, patch docstore.Patch[T]) Event[T] {
	return Event[T]{Kind: EventUpdated, ID: id, Patch: patch}
}

// Deleted builds a deletion event.
func Deleted[T any](id string) Event[T] {
	return Event[T]{Kind: EventDeleted, ID: id}
}

// Reduce returns the collection that results from applying event to previous.
// previous is never modified. Updates and deletes for unknown ids leave the
// collection unchanged.
func Reduce[T any, P docstore.Record[T]](previous []T, event Event[T]) []T {
	switch event.Kind {
	case EventCreated:
		next := make([]T, 0, len(previous)+1)
		next = append(next, event.Record)
		return append(next, previous...)
	case EventUpdated:
		next := make([]T, len(previous))
		copy(next, previous)
		if event.Patch == nil {
			return next
		}
		for index := range next {
			if P(&next[index]).Meta().ID == event.ID {
				event.Patch.Apply(&next[index])
			}
		}
		return next
	case EventDeleted:
		next := make([]T, 0, len(previous))
		for index := range previous {
			if P(&previous[index]).Meta().ID == event.ID {
				continue
			}
			next = append(next, previous[index])
		}
		return next
	default:
		next := make([]T, len(previous))
		copy(next, previous)
		return next
	}
}

// Collection holds the cached records for one entity kind.
type Collection[T any, P docstore.Record[T]] struct {
	mu    sync.RWMutex
	items []T
}

// NewCollection constructs an empty cache.
func NewCollection[T any, P docstore.Record[T]]() *Collection[T, P] {
	return &Collection[T, P]{}
}

// Replace swaps the cached content for a freshly listed collection.
func (c *Collection[T, P]) Replace(items []T) {
	next := make([]T, len(items))
	copy(next, items)
	c.mu.Lock()
	c.items = next
	c.mu.Unlock()
}

// Apply folds event into the cached content.
func (c *Collection[T, P]) Apply(event Event[T]) {
	c.mu.Lock()
	c.items = Reduce[T, P](c.items, event)
	c.mu.Unlock()
}

// Snapshot returns a copy of the cached content.
func (c *Collection[T, P]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Find returns the cached record with the given id.
func (c *Collection[T, P]) Find(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for index := range c.items {
		if P(&c.items[index]).Meta().ID == id {
			return c.items[index], true
		}
	}
	var zero T
	return zero, false
}
