// Package orders manages customer orders through fulfilment and dispatch.
package orders

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

// FallbackName labels audit entries when no customer name is known.
const FallbackName = "Order"

const (
	opServiceNew   = "orders.service.new"
	opList         = "orders.list"
	opListByStatus = "orders.list_by_status"
	opGet          = "orders.get"
	opCreate       = "orders.create"
	opUpdate       = "orders.update"
	opDispatch     = "orders.dispatch"
	opDelete       = "orders.delete"
)

var (
	errMissingCollection = errors.New("order collection is required")
	errMissingRecorder   = errors.New("activity recorder is required")
	noOpLogger           = zap.NewNop()
)

// ActivityRecorder appends audit entries on a best-effort basis.
type ActivityRecorder interface {
	Record(ctx context.Context, input activity.Input)
}

type ServiceConfig struct {
	Collection docstore.Collection[Order]
	Activity   ActivityRecorder
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service performs order reads and writes for an authenticated actor.
type Service struct {
	collection docstore.Collection[Order]
	activity   ActivityRecorder
	clock      func() time.Time
	logger     *zap.Logger
	cache      *cache.Collection[Order, *Order]
}

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
		cache:      cache.NewCollection[Order](),
	}, nil
}

// List returns every order, newest first, and refreshes the cache.
func (s *Service) List(ctx context.Context, actor crm.Actor) ([]Order, error) {
	if !actor.Present() {
		return nil, missingActor(opList)
	}
	records, err := s.collection.List(ctx)
	if err != nil {
		return nil, s.storeError(opList, err)
	}
	if records == nil {
		records = []Order{}
	}
	s.cache.Replace(records)
	return records, nil
}

// ListByStatus returns the orders in one fulfilment status, newest first.
func (s *Service) ListByStatus(ctx context.Context, actor crm.Actor, status Status) ([]Order, error) {
	if !actor.Present() {
		return nil, missingActor(opListByStatus)
	}
	if !status.Valid() {
		_, err := ParseStatus(string(status))
		return nil, crm.NewServiceError(opListByStatus, "invalid_status", err)
	}
	records, err := s.collection.ListWhere(ctx, docstore.Filter[Order]{
		Column: "status",
		Value:  string(status),
		Match:  func(order Order) bool { return order.Status == status },
	})
	if err != nil {
		return nil, s.storeError(opListByStatus, err, zap.String("status", string(status)))
	}
	if records == nil {
		records = []Order{}
	}
	return records, nil
}

func (s *Service) Get(ctx context.Context, actor crm.Actor, id string) (Order, bool, error) {
	if !actor.Present() {
		return Order{}, false, missingActor(opGet)
	}
	order, found, err := s.collection.Get(ctx, id)
	if err != nil {
		return Order{}, false, s.storeError(opGet, err, zap.String("order_id", id))
	}
	return order, found, nil
}

// Create validates fields, persists a new order and records a "created"
// entry. Status defaults to received.
func (s *Service) Create(ctx context.Context, actor crm.Actor, fields Fields) (Order, error) {
	if !actor.Present() {
		return Order{}, missingActor(opCreate)
	}
	fields = fields.normalized()
	if err := crm.Validate(fields); err != nil {
		return Order{}, crm.NewServiceError(opCreate, "invalid_input", err)
	}

	status := fields.Status
	if status == "" {
		status = StatusReceived
	}

	now := s.clock().UTC()
	order := Order{
		Metadata:       docstore.Metadata{CreatedAt: now, UpdatedAt: now},
		LeadID:         fields.LeadID,
		CustomerName:   fields.CustomerName,
		Status:         status,
		OrderValue:     fields.OrderValue.Round(2),
		DispatchDate:   fields.DispatchDate,
		Courier:        fields.Courier,
		TrackingNumber: fields.TrackingNumber,
		Notes:          fields.Notes,
	}
	if err := s.collection.Insert(ctx, &order); err != nil {
		return Order{}, s.storeError(opCreate, err)
	}

	s.cache.Apply(cache.Created(order))
	s.record(ctx, actor, activity.ActionCreated, order.ID, order.CustomerName)
	return order, nil
}

// Update applies a partial update and records an "updated" entry.
func (s *Service) Update(ctx context.Context, actor crm.Actor, id string, patch Patch) error {
	if !actor.Present() {
		return missingActor(opUpdate)
	}
	if err := s.patch(ctx, opUpdate, id, patch.normalized()); err != nil {
		return err
	}
	s.record(ctx, actor, activity.ActionUpdated, id, s.updatedName(id, patch))
	return nil
}

// Dispatch marks an order as dispatched with its shipment details and records
// a "completed" entry. The dispatch date defaults to now.
func (s *Service) Dispatch(ctx context.Context, actor crm.Actor, id string, input DispatchInput) error {
	if !actor.Present() {
		return missingActor(opDispatch)
	}
	input.Courier = strings.TrimSpace(input.Courier)
	if err := crm.Validate(input); err != nil {
		return crm.NewServiceError(opDispatch, "invalid_input", err)
	}
	patch := input.patch(s.clock().UTC())
	if err := s.patch(ctx, opDispatch, id, patch); err != nil {
		return err
	}
	s.record(ctx, actor, activity.ActionCompleted, id, s.updatedName(id, patch))
	return nil
}

// Delete removes an order and records a "deleted" entry labelled displayName.
func (s *Service) Delete(ctx context.Context, actor crm.Actor, id string, displayName string) error {
	if !actor.Present() {
		return missingActor(opDelete)
	}
	if strings.TrimSpace(id) == "" {
		return crm.NewServiceError(opDelete, "missing_id", crm.NewFieldError("id", "is required"))
	}
	name, err := s.deletedName(ctx, id, displayName)
	if err != nil {
		return s.storeError(opDelete, err, zap.String("order_id", id))
	}

	if err := s.collection.Delete(ctx, id); err != nil {
		return s.storeError(opDelete, err, zap.String("order_id", id))
	}

	s.cache.Apply(cache.Deleted[Order](id))
	s.record(ctx, actor, activity.ActionDeleted, id, name)
	return nil
}

// deletedName labels the audit entry of a delete: the caller's display name,
// else the cached name, else the stored name read before the delete.
func (s *Service) deletedName(ctx context.Context, id, displayName string) (string, error) {
	if name := strings.TrimSpace(displayName); name != "" {
		return name, nil
	}
	if cached, ok := s.cache.Find(id); ok && strings.TrimSpace(cached.CustomerName) != "" {
		return cached.CustomerName, nil
	}
	record, found, err := s.collection.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if found && strings.TrimSpace(record.CustomerName) != "" {
		return record.CustomerName, nil
	}
	return FallbackName, nil
}

// Snapshot returns the cached orders.
func (s *Service) Snapshot() []Order {
	return s.cache.Snapshot()
}

func (s *Service) patch(ctx context.Context, operation, id string, patch Patch) error {
	if strings.TrimSpace(id) == "" {
		return crm.NewServiceError(operation, "missing_id", crm.NewFieldError("id", "is required"))
	}
	if err := crm.Validate(patch); err != nil {
		return crm.NewServiceError(operation, "invalid_input", err)
	}
	patch.UpdatedAt = s.clock().UTC()
	if err := s.collection.Update(ctx, id, patch); err != nil {
		return s.storeError(operation, err, zap.String("order_id", id))
	}
	s.cache.Apply(cache.Updated[Order](id, patch))
	return nil
}

func (s *Service) record(ctx context.Context, actor crm.Actor, action activity.Action, id, name string) {
	s.activity.Record(ctx, activity.Input{
		Actor:      actor,
		Action:     action,
		EntityType: activity.EntityOrder,
		EntityID:   id,
		EntityName: name,
	})
}

func (s *Service) updatedName(id string, patch Patch) string {
	if patch.CustomerName != nil && strings.TrimSpace(*patch.CustomerName) != "" {
		return strings.TrimSpace(*patch.CustomerName)
	}
	if cached, ok := s.cache.Find(id); ok && cached.CustomerName != "" {
		return cached.CustomerName
	}
	return FallbackName
}

func (s *Service) storeError(operation string, err error, fields ...zap.Field) error {
	reason, cause := crm.StoreFailure(err)
	attrs := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}, fields...)
	s.logger.Error("order service error", attrs...)
	return crm.NewServiceError(operation, reason, cause)
}

func missingActor(operation string) error {
	return crm.NewServiceError(operation, "missing_actor", crm.ErrMissingActor)
}
