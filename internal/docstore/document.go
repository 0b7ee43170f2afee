// Package docstore models the backing document store: independent collections
// of records keyed by store-assigned identity.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the referenced document does not exist in the store.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrUnavailable indicates the store could not serve the request.
	ErrUnavailable = errors.New("docstore: store unavailable")
)

// Metadata carries the store-managed fields shared by every document.
type Metadata struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index;autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
}

// Meta exposes the metadata of an embedding document.
func (m *Metadata) Meta() *Metadata {
	return m
}

// Record constrains document types to pointers that expose Metadata.
type Record[T any] interface {
	*T
	Meta() *Metadata
}

// Patch is a partial-field update. Columns feeds the persistent store and
// Apply merges the same fields into an in-memory copy.
type Patch[T any] interface {
	Columns() map[string]any
	Apply(record *T)
}

// Filter selects documents whose Column equals Value. Match evaluates the same
// predicate against an in-memory document.
type Filter[T any] struct {
	Column string
	Value  any
	Match  func(record T) bool
}

// Collection is the contract every backing store implementation satisfies.
// List operations return documents ordered by creation time, newest first.
type Collection[T any] interface {
	List(ctx context.Context) ([]T, error)
	ListWhere(ctx context.Context, filter Filter[T]) ([]T, error)
	Get(ctx context.Context, id string) (T, bool, error)
	Insert(ctx context.Context, record *T) error
	Update(ctx context.Context, id string, patch Patch[T]) error
	Delete(ctx context.Context, id string) error
}
