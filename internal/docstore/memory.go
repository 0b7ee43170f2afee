package docstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryCollection is an in-process Collection used by tests and local runs.
// It honours the same ordering and error contract as GormCollection.
type MemoryCollection[T any, P Record[T]] struct {
	mu         sync.RWMutex
	records    []T
	idProvider IDProvider
	failure    error
}

// NewMemoryCollection constructs an empty in-memory collection.
func NewMemoryCollection[T any, P Record[T]](idProvider IDProvider) *MemoryCollection[T, P] {
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	return &MemoryCollection[T, P]{idProvider: idProvider}
}

// FailWith makes every subsequent operation fail as unavailable with cause.
// A nil cause restores normal operation.
func (c *MemoryCollection[T, P]) FailWith(cause error) {
	c.mu.Lock()
	c.failure = cause
	c.mu.Unlock()
}

func (c *MemoryCollection[T, P]) List(ctx context.Context) ([]T, error) {
	return c.ListWhere(ctx, Filter[T]{})
}

func (c *MemoryCollection[T, P]) ListWhere(_ context.Context, filter Filter[T]) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.failed("list"); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(c.records))
	for index := len(c.records) - 1; index >= 0; index-- {
		record := c.records[index]
		if filter.Match != nil && !filter.Match(record) {
			continue
		}
		out = append(out, record)
	}
	slices.SortStableFunc(out, func(a, b T) int {
		return P(&b).Meta().CreatedAt.Compare(P(&a).Meta().CreatedAt)
	})
	return out, nil
}

func (c *MemoryCollection[T, P]) Get(_ context.Context, id string) (T, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var zero T
	if err := c.failed("get"); err != nil {
		return zero, false, err
	}
	index := c.indexOf(id)
	if index < 0 {
		return zero, false, nil
	}
	return c.records[index], true, nil
}

func (c *MemoryCollection[T, P]) Insert(_ context.Context, record *T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failed("insert"); err != nil {
		return err
	}
	id, err := c.idProvider.NewID()
	if err != nil {
		return fmt.Errorf("%w: id_generation: %v", ErrUnavailable, err)
	}
	P(record).Meta().ID = id
	c.records = append(c.records, *record)
	return nil
}

func (c *MemoryCollection[T, P]) Update(_ context.Context, id string, patch Patch[T]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failed("update"); err != nil {
		return err
	}
	index := c.indexOf(id)
	if index < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	patch.Apply(&c.records[index])
	return nil
}

func (c *MemoryCollection[T, P]) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failed("delete"); err != nil {
		return err
	}
	index := c.indexOf(id)
	if index < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c.records = slices.Delete(c.records, index, index+1)
	return nil
}

// indexOf must be called with the lock held.
func (c *MemoryCollection[T, P]) indexOf(id string) int {
	for index := range c.records {
		if P(&c.records[index]).Meta().ID == id {
			return index
		}
	}
	return -1
}

func (c *MemoryCollection[T, P]) failed(operation string) error {
	if c.failure == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, operation, c.failure)
}
