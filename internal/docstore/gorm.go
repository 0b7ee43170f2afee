package docstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	columnID        = "id"
	queryID         = columnID + " = ?"
	orderNewest     = "created_at DESC"
	orderNewestTies = columnID + " DESC"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// GormCollection persists documents of type T in the table bound to T.
type GormCollection[T any, P Record[T]] struct {
	db         *gorm.DB
	idProvider IDProvider
}

// GormConfig describes the dependencies of a GormCollection.
type GormConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
}

// NewGormCollection constructs a gorm-backed collection for T.
func NewGormCollection[T any, P Record[T]](cfg GormConfig) (*GormCollection[T, P], error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	return &GormCollection[T, P]{
		db:         cfg.Database,
		idProvider: cfg.IDProvider,
	}, nil
}

func (c *GormCollection[T, P]) List(ctx context.Context) ([]T, error) {
	var records []T
	if err := c.db.WithContext(ctx).
		Order(orderNewest).
		Order(orderNewestTies).
		Find(&records).Error; err != nil {
		return nil, c.unavailable("list", err)
	}
	return records, nil
}

func (c *GormCollection[T, P]) ListWhere(ctx context.Context, filter Filter[T]) ([]T, error) {
	var records []T
	if err := c.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: filter.Column}, Value: filter.Value}).
		Order(orderNewest).
		Order(orderNewestTies).
		Find(&records).Error; err != nil {
		return nil, c.unavailable("list_where", err)
	}
	return records, nil
}

func (c *GormCollection[T, P]) Get(ctx context.Context, id string) (T, bool, error) {
	var record T
	err := c.db.WithContext(ctx).Where(queryID, id).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return record, false, nil
	}
	if err != nil {
		return record, false, c.unavailable("get", err)
	}
	return record, true, nil
}

// Insert assigns a fresh identifier and writes the document. Timestamps are
// taken from the record as supplied by the caller.
func (c *GormCollection[T, P]) Insert(ctx context.Context, record *T) error {
	id, err := c.idProvider.NewID()
	if err != nil {
		return c.unavailable("id_generation", err)
	}
	meta := P(record).Meta()
	meta.ID = id
	if err := c.db.WithContext(ctx).Create(record).Error; err != nil {
		meta.ID = ""
		return c.unavailable("insert", err)
	}
	return nil
}

func (c *GormCollection[T, P]) Update(ctx context.Context, id string, patch Patch[T]) error {
	result := c.db.WithContext(ctx).
		Model(new(T)).
		Where(queryID, id).
		Updates(patch.Columns())
	if result.Error != nil {
		return c.unavailable("update", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (c *GormCollection[T, P]) Delete(ctx context.Context, id string) error {
	result := c.db.WithContext(ctx).Where(queryID, id).Delete(new(T))
	if result.Error != nil {
		return c.unavailable("delete", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// unavailable wraps a driver failure; the calling service logs it.
func (c *GormCollection[T, P]) unavailable(operation string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, operation, err)
}
