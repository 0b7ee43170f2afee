package activity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MarvelMathesh/trackflow/internal/docstore"
	"gorm.io/gorm"
)

const orderNewest = "timestamp DESC"

// Store is the append-only audit collection.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
	ListForEntity(ctx context.Context, entityType EntityType, entityID string) ([]Entry, error)
}

// GormStore persists entries in the activities table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a gorm-backed Store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("activity: database handle is required")
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Append(ctx context.Context, entry *Entry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	return nil
}

func (s *GormStore) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	var entries []Entry
	query := s.db.WithContext(ctx).Order(orderNewest).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	return entries, nil
}

func (s *GormStore) ListForEntity(ctx context.Context, entityType EntityType, entityID string) ([]Entry, error) {
	var entries []Entry
	if err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order(orderNewest).
		Order("id DESC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	return entries, nil
}

// MemoryStore keeps entries in process. It can be told to fail so callers can
// exercise the swallowed-failure path.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	failure error
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// FailWith makes every subsequent operation fail with cause. A nil cause
// restores normal operation.
func (s *MemoryStore) FailWith(cause error) {
	s.mu.Lock()
	s.failure = cause
	s.mu.Unlock()
}

func (s *MemoryStore) Append(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return fmt.Errorf("%w: %v", docstore.ErrUnavailable, s.failure)
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]Entry, error) {
	entries, err := s.newest(func(Entry) bool { return true })
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *MemoryStore) ListForEntity(_ context.Context, entityType EntityType, entityID string) ([]Entry, error) {
	return s.newest(func(entry Entry) bool {
		return entry.EntityType == entityType && entry.EntityID == entityID
	})
}

func (s *MemoryStore) newest(match func(Entry) bool) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, fmt.Errorf("%w: %v", docstore.ErrUnavailable, s.failure)
	}
	out := make([]Entry, 0, len(s.entries))
	for index := len(s.entries) - 1; index >= 0; index-- {
		if match(s.entries[index]) {
			out = append(out, s.entries[index])
		}
	}
	slices.SortStableFunc(out, func(a, b Entry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out, nil
}
