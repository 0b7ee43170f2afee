// Package activity writes and reads the append-only audit trail of lead and
// order changes.
package activity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarvelMathesh/trackflow/internal/crm"
	"github.com/MarvelMathesh/trackflow/internal/docstore"
	"go.uber.org/zap"
)

// DefaultRecentLimit is the feed length used when callers pass no limit.
const DefaultRecentLimit = 10

const (
	opServiceNew = "activity.service.new"
	opRecord     = "activity.record"
	opRecent     = "activity.recent"
	opForEntity  = "activity.for_entity"
)

var (
	errMissingStore = errors.New("activity store is required")
	noOpLogger      = zap.NewNop()
)

// Publisher receives every entry the service records.
type Publisher interface {
	PublishActivity(entry Entry)
}

// Metrics counts audit writes.
type Metrics interface {
	IncActivityRecorded(action, entityType string)
	IncActivityFailure(entityType string)
}

// ServiceConfig describes the dependencies of the activity service.
type ServiceConfig struct {
	Store      Store
	Clock      func() time.Time
	IDProvider docstore.IDProvider
	Publisher  Publisher
	Metrics    Metrics
	Logger     *zap.Logger
}

// Service records audit entries on a best-effort basis and serves the feed.
type Service struct {
	store      Store
	clock      func() time.Time
	idProvider docstore.IDProvider
	publisher  Publisher
	metrics    Metrics
	logger     *zap.Logger
}

// NewService constructs the activity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, crm.NewServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = docstore.NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		store:      cfg.Store,
		clock:      clock,
		idProvider: idProvider,
		publisher:  cfg.Publisher,
		metrics:    cfg.Metrics,
		logger:     logger,
	}, nil
}

// Record appends an audit entry. Failures are logged and counted, never
// returned and never retried. Only stored entries are published. The write is
// detached from ctx cancellation so an aborted request cannot drop the audit
// of a write that already happened.
func (s *Service) Record(ctx context.Context, input Input) {
	if !input.Action.valid() || !input.EntityType.valid() || strings.TrimSpace(input.EntityID) == "" {
		s.logger.Warn("activity input rejected",
			zap.String("operation", opRecord),
			zap.String("action", string(input.Action)),
			zap.String("entity_type", string(input.EntityType)),
			zap.String("entity_id", input.EntityID))
		return
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.recordFailure(input, "id_generation_failed", err)
		return
	}

	entry := Entry{
		ID:         id,
		UserID:     input.Actor.ID,
		UserName:   input.Actor.DisplayName(),
		Action:     input.Action,
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		EntityName: input.EntityName,
		Timestamp:  s.clock().UTC(),
	}

	if err := s.store.Append(context.WithoutCancel(ctx), &entry); err != nil {
		s.recordFailure(input, "append_failed", err)
		return
	}
	if s.metrics != nil {
		s.metrics.IncActivityRecorded(string(entry.Action), string(entry.EntityType))
	}
	if s.publisher != nil {
		s.publisher.PublishActivity(entry)
	}
}

// Recent returns the newest entries, at most limit of them.
func (s *Service) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	entries, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, s.readFailure(opRecent, err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// ForEntity returns every entry recorded against one entity, newest first.
func (s *Service) ForEntity(ctx context.Context, entityType EntityType, entityID string) ([]Entry, error) {
	if !entityType.valid() {
		return nil, crm.NewServiceError(opForEntity, "invalid_entity_type",
			crm.NewFieldError("entity_type", "is invalid"))
	}
	if strings.TrimSpace(entityID) == "" {
		return nil, crm.NewServiceError(opForEntity, "missing_entity_id",
			crm.NewFieldError("entity_id", "is required"))
	}
	entries, err := s.store.ListForEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, s.readFailure(opForEntity, err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func (s *Service) recordFailure(input Input, reason string, err error) {
	if s.metrics != nil {
		s.metrics.IncActivityFailure(string(input.EntityType))
	}
	s.logger.Warn("activity write failed",
		zap.String("operation", opRecord),
		zap.String("reason", reason),
		zap.Error(err),
		zap.String("action", string(input.Action)),
		zap.String("entity_type", string(input.EntityType)),
		zap.String("entity_id", input.EntityID))
}

func (s *Service) readFailure(operation string, err error) error {
	reason, cause := crm.StoreFailure(err)
	s.logger.Error("activity service error",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err))
	return crm.NewServiceError(operation, reason, cause)
}
