// Package leads manages the sales pipeline: persisted lead records, the local
// cached copy and the audit entries every write produces.
package leads

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarvelMathesh/trackflow/internal/activity"
	"github.com/MarvelMathesh/trackflow/internal/cache"
	"github.com/MarvelMathesh/trackflow/internal/crm"
	"github.com/MarvelMathesh/trackflow/internal/docstore"
	"go.uber.org/zap"
)

// FallbackName labels audit entries when no lead name is known.
const FallbackName = "Lead"

const (
	opServiceNew  = "leads.service.new"
	opList        = "leads.list"
	opListByStage = "leads.list_by_stage"
	opGet         = "leads.get"
	opCreate      = "leads.create"
	opUpdate      = "leads.update"
	opUpdateStage = "leads.update_stage"
	opDelete      = "leads.delete"
)

var (
	errMissingCollection = errors.New("lead collection is required")
	errMissingRecorder   = errors.New("activity recorder is required")
	noOpLogger           = zap.NewNop()
)

// ActivityRecorder appends audit entries on a best-effort basis.
type ActivityRecorder interface {
	Record(ctx context.Context, input activity.Input)
}

// ServiceConfig describes the dependencies of the lead service.
type ServiceConfig struct {
	Collection docstore.Collection[Lead]
	Activity   ActivityRecorder
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service performs lead reads and writes for an authenticated actor.
type Service struct {
	collection docstore.Collection[Lead]
	activity   ActivityRecorder
	clock      func() time.Time
	logger     *zap.Logger
	cache      *cache.Collection[Lead, *Lead]
}

// NewService constructs the lead service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Collection == nil {
		return nil, crm.NewServiceError(opServiceNew, "missing_collection", errMissingCollection)
	}
	if cfg.Activity == nil {
		return nil, crm.NewServiceError(opServiceNew, "missing_activity", errMissingRecorder)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		collection: cfg.Collection,
		activity:   cfg.Activity,
		clock:      clock,
		logger:     logger,
		cache:      cache.NewCollection[Lead](),
	}, nil
}

// List returns every lead, newest first, and refreshes the cache.
func (s *Service) List(ctx context.Context, actor crm.Actor) ([]Lead, error) {
	if !actor.Present() {
		return nil, missingActor(opList)
	}
	records, err := s.collection.List(ctx)
	if err != nil {
		return nil, s.storeError(opList, err)
	}
	records = nonNil(records)
	s.cache.Replace(records)
	return records, nil
}

// ListByStage returns the leads at one pipeline stage, newest first.
func (s *Service) ListByStage(ctx context.Context, actor crm.Actor, stage Stage) ([]Lead, error) {
	if !actor.Present() {
		return nil, missingActor(opListByStage)
	}
	if !stage.Valid() {
		_, err := ParseStage(string(stage))
		return nil, crm.NewServiceError(opListByStage, "invalid_stage", err)
	}
	records, err := s.collection.ListWhere(ctx, docstore.Filter[Lead]{
		Column: "stage",
		Value:  string(stage),
		Match:  func(lead Lead) bool { return lead.Stage == stage },
	})
	if err != nil {
		return nil, s.storeError(opListByStage, err, zap.String("stage", string(stage)))
	}
	return nonNil(records), nil
}

// Get reads one lead from the store.
func (s *Service) Get(ctx context.Context, actor crm.Actor, id string) (Lead, bool, error) {
	if !actor.Present() {
		return Lead{}, false, missingActor(opGet)
	}
	lead, found, err := s.collection.Get(ctx, id)
	if err != nil {
		return Lead{}, false, s.storeError(opGet, err, zap.String("lead_id", id))
	}
	return lead, found, nil
}

// Create validates fields, persists a new lead and records a "created" entry.
// Stage defaults to new and the assignee defaults to the actor.
func (s *Service) Create(ctx context.Context, actor crm.Actor, fields Fields) (Lead, error) {
	if !actor.Present() {
		return Lead{}, missingActor(opCreate)
	}
	fields = fields.normalized()
	if err := crm.Validate(fields); err != nil {
		return Lead{}, crm.NewServiceError(opCreate, "invalid_input", err)
	}

	stage := fields.Stage
	if stage == "" {
		stage = StageNew
	}
	assignedTo := fields.AssignedTo
	if assignedTo == "" {
		assignedTo = actor.ID
	}
	var followUp *time.Time
	if fields.FollowUpDate != nil {
		value := fields.FollowUpDate.UTC()
		followUp = &value
	}

	now := s.clock().UTC()
	lead := Lead{
		Metadata:        docstore.Metadata{CreatedAt: now, UpdatedAt: now},
		Name:            fields.Name,
		Company:         fields.Company,
		Contact:         fields.Contact,
		ProductInterest: fields.ProductInterest,
		Stage:           stage,
		Value:           fields.Value.Round(2),
		FollowUpDate:    followUp,
		Notes:           fields.Notes,
		AssignedTo:      assignedTo,
	}
	if err := s.collection.Insert(ctx, &lead); err != nil {
		return Lead{}, s.storeError(opCreate, err)
	}

	s.cache.Apply(cache.Created(lead))
	s.activity.Record(ctx, activity.Input{
		Actor:      actor,
		Action:     activity.ActionCreated,
		EntityType: activity.EntityLead,
		EntityID:   lead.ID,
		EntityName: lead.Name,
	})
	return lead, nil
}

// Update applies a partial update and records an "updated" entry.
func (s *Service) Update(ctx context.Context, actor crm.Actor, id string, patch Patch) error {
	return s.update(ctx, opUpdate, actor, id, patch)
}

// UpdateStage moves a lead to another pipeline stage.
func (s *Service) UpdateStage(ctx context.Context, actor crm.Actor, id string, stage Stage) error {
	return s.update(ctx, opUpdateStage, actor, id, Patch{Stage: &stage})
}

func (s *Service) update(ctx context.Context, operation string, actor crm.Actor, id string, patch Patch) error {
	if !actor.Present() {
		return missingActor(operation)
	}
	if strings.TrimSpace(id) == "" {
		return crm.NewServiceError(operation, "missing_id", crm.NewFieldError("id", "is required"))
	}
	patch = patch.normalized()
	if err := crm.Validate(patch); err != nil {
		return crm.NewServiceError(operation, "invalid_input", err)
	}
	if patch.Value != nil {
		rounded := patch.Value.Round(2)
		patch.Value = &rounded
	}
	patch.UpdatedAt = s.clock().UTC()

	if err := s.collection.Update(ctx, id, patch); err != nil {
		return s.storeError(operation, err, zap.String("lead_id", id))
	}

	s.cache.Apply(cache.Updated[Lead](id, patch))
	s.activity.Record(ctx, activity.Input{
		Actor:      actor,
		Action:     activity.ActionUpdated,
		EntityType: activity.EntityLead,
		EntityID:   id,
		EntityName: s.updatedName(id, patch),
	})
	return nil
}

// Delete removes a lead and records a "deleted" entry labelled displayName.
func (s *Service) Delete(ctx context.Context, actor crm.Actor, id string, displayName string) error {
	if !actor.Present() {
		return missingActor(opDelete)
	}
	if strings.TrimSpace(id) == "" {
		return crm.NewServiceError(opDelete, "missing_id", crm.NewFieldError("id", "is required"))
	}
	name, err := s.deletedName(ctx, id, displayName)
	if err != nil {
		return s.storeError(opDelete, err, zap.String("lead_id", id))
	}

	if err := s.collection.Delete(ctx, id); err != nil {
		return s.storeError(opDelete, err, zap.String("lead_id", id))
	}

	s.cache.Apply(cache.Deleted[Lead](id))
	s.activity.Record(ctx, activity.Input{
		Actor:      actor,
		Action:     activity.ActionDeleted,
		EntityType: activity.EntityLead,
		EntityID:   id,
		EntityName: name,
	})
	return nil
}

// deletedName labels the audit entry of a delete: the caller's display name,
// else the cached name, else the stored name read before the delete.
func (s *Service) deletedName(ctx context.Context, id, displayName string) (string, error) {
	if name := strings.TrimSpace(displayName); name != "" {
		return name, nil
	}
	if cached, ok := s.cache.Find(id); ok && strings.TrimSpace(cached.Name) != "" {
		return cached.Name, nil
	}
	record, found, err := s.collection.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if found && strings.TrimSpace(record.Name) != "" {
		return record.Name, nil
	}
	return FallbackName, nil
}

// Snapshot returns the cached leads. The cache is advisory; the store remains
// authoritative.
func (s *Service) Snapshot() []Lead {
	return s.cache.Snapshot()
}

func (s *Service) updatedName(id string, patch Patch) string {
	if patch.Name != nil && *patch.Name != "" {
		return *patch.Name
	}
	if cached, ok := s.cache.Find(id); ok && cached.Name != "" {
		return cached.Name
	}
	return FallbackName
}

func (s *Service) storeError(operation string, err error, fields ...zap.Field) error {
	reason, cause := crm.StoreFailure(err)
	s.logError(operation, reason, err, fields...)
	return crm.NewServiceError(operation, reason, cause)
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	if s.logger == nil {
		return
	}
	attrs := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}, fields...)
	s.logger.Error("lead service error", attrs...)
}

func missingActor(operation string) error {
	return crm.NewServiceError(operation, "missing_actor", crm.ErrMissingActor)
}

func nonNil(records []Lead) []Lead {
	if records == nil {
		return []Lead{}
	}
	return records
}
