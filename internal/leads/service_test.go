package leads

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MarvelMathesh/trackflow/internal/activity"
	"github.com/MarvelMathesh/trackflow/internal/crm"
	"github.com/MarvelMathesh/trackflow/internal/docstore"
	sqlite "github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type sequenceIDs struct {
	prefix string
	next   int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.next++
	return fmt.Sprintf("%s-%d", s.prefix, s.next), nil
}

type steppingClock struct {
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.now = c.now.Add(time.Minute)
	return c.now
}

var testActor = crm.Actor{ID: "user-1", Name: "Ada Lovelace", Email: "ada@example.com"}

type fixture struct {
	service    *Service
	collection docstore.Collection[Lead]
	audit      *activity.MemoryStore
	clock      *steppingClock
}

func newFixture(t *testing.T, collection docstore.Collection[Lead]) fixture {
	t.Helper()
	clock := &steppingClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	audit := activity.NewMemoryStore()
	recorder, err := activity.NewService(activity.ServiceConfig{
		Store:      audit,
		Clock:      clock.Now,
		IDProvider: &sequenceIDs{prefix: "activity"},
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build activity service: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Collection: collection,
		Activity:   recorder,
		Clock:      clock.Now,
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build lead service: %v", err)
	}
	return fixture{service: service, collection: collection, audit: audit, clock: clock}
}

func newMemoryFixture(t *testing.T) (fixture, *docstore.MemoryCollection[Lead, *Lead]) {
	t.Helper()
	collection := docstore.NewMemoryCollection[Lead](&sequenceIDs{prefix: "lead"})
	return newFixture(t, collection), collection
}

func auditTrail(t *testing.T, store *activity.MemoryStore) []activity.Entry {
	t.Helper()
	entries, err := store.ListRecent(context.Background(), 0)
	if err != nil {
		t.Fatalf("failed to read audit trail: %v", err)
	}
	return entries
}

func acmeFields() Fields {
	return Fields{
		Name:            "Acme Corp",
		Company:         "Acme",
		Contact:         "wile@acme.test",
		ProductInterest: "Rockets",
		Value:           decimal.RequireFromString("1250.50"),
	}
}

func TestCreateAppliesDefaultsAndRecordsActivity(t *testing.T) {
	f, _ := newMemoryFixture(t)
	ctx := context.Background()

	lead, err := f.service.Create(ctx, testActor, acmeFields())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead.ID != "lead-1" {
		t.Fatalf("expected store-assigned id, got %q", lead.ID)
	}
	if lead.Stage != StageNew {
		t.Fatalf("expected default stage new, got %s", lead.Stage)
	}
	if lead.AssignedTo != testActor.ID {
		t.Fatalf("expected lead assigned to actor, got %q", lead.AssignedTo)
	}
	if !lead.CreatedAt.Equal(lead.UpdatedAt) {
		t.Fatalf("expected createdAt == updatedAt on create")
	}

	stored, found, err := f.service.Get(ctx, testActor, lead.ID)
	if err != nil || !found {
		t.Fatalf("expected lead to be readable, found=%v err=%v", found, err)
	}
	if stored.Name != "Acme Corp" || !stored.Value.Equal(decimal.RequireFromString("1250.5")) {
		t.Fatalf("unexpected stored lead: %+v", stored)
	}

	snapshot := f.service.Snapshot()
	if len(snapshot) != 1 || snapshot[0].ID != lead.ID {
		t.Fatalf("expected created lead at head of cache, got %+v", snapshot)
	}

	trail := auditTrail(t, f.audit)
	if len(trail) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(trail))
	}
	entry := trail[0]
	if entry.Action != activity.ActionCreated || entry.EntityType != activity.EntityLead ||
		entry.EntityID != lead.ID || entry.EntityName != "Acme Corp" || entry.UserID != testActor.ID {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
}

func TestOperationsRequireActor(t *testing.T) {
	f, collection := newMemoryFixture(t)
	ctx := context.Background()
	anonymous := crm.Actor{}

	if _, err := f.service.Create(ctx, anonymous, acmeFields()); !errors.Is(err, crm.ErrMissingActor) {
		t.Fatalf("expected missing actor on create, got %v", err)
	}
	if _, err := f.service.List(ctx, anonymous); !errors.Is(err, crm.ErrMissingActor) {
		t.Fatalf("expected missing actor on list, got %v", err)
	}
	name := "Renamed"
	if err := f.service.Update(ctx, anonymous, "lead-1", Patch{Name: &name}); !errors.Is(err, crm.ErrMissingActor) {
		t.Fatalf("expected missing actor on update, got %v", err)
	}
	if err := f.service.Delete(ctx, anonymous, "lead-1", ""); !errors.Is(err, crm.ErrMissingActor) {
		t.Fatalf("expected missing actor on delete, got %v", err)
	}

	records, _ := collection.List(ctx)
	if len(records) != 0 {
		t.Fatalf("expected no store writes, got %d records", len(records))
	}
	if trail := auditTrail(t, f.audit); len(trail) != 0 {
		t.Fatalf("expected no audit entries, got %d", len(trail))
	}
}

func TestCreateRejectsInvalidFields(t *testing.T) {
	f, collection := newMemoryFixture(t)
	ctx := context.Background()

	fields := acmeFields()
	fields.Name = "   "
	fields.Value = decimal.NewFromInt(-5)
	fields.Stage = "archived"

	_, err := f.service.Create(ctx, testActor, fields)
	if !errors.Is(err, crm.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var validationErr *crm.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	for _, field := range []string{"name", "value", "stage"} {
		if _, ok := validationErr.Fields[field]; !ok {
			t.Fatalf("expected %s to be reported, got %+v", field, validationErr.Fields)
		}
	}
	if crm.ErrorCode(err) != "leads.create.invalid_input" {
		t.Fatalf("unexpected error code %q", crm.ErrorCode(err))
	}

	records, _ := collection.List(ctx)
	if len(records) != 0 {
		t.Fatalf("expected nothing persisted")
	}
	if trail := auditTrail(t, f.audit); len(trail) != 0 {
		t.Fatalf("expected no audit entries")
	}
}

func TestUpdateMergesFieldsAndAdvancesUpdatedAt(t *testing.T) {
	f, _ := newMemoryFixture(t)
	ctx := context.Background()

	lead, err := f.service.Create(ctx, testActor, acmeFields())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	followUp := time.Date(2026, 3, 12, 15, 0, 0, 0, time.UTC)
	value := decimal.RequireFromString("2000")
	if err := f.service.Update(ctx, testActor, lead.ID, Patch{Value: &value, FollowUpDate: &followUp}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _, err := f.service.Get(ctx, testActor, lead.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Name != "Acme Corp" || stored.Company != "Acme" {
		t.Fatalf("expected untouched fields to survive, got %+v", stored)
	}
	if !stored.Value.Equal(value) || stored.FollowUpDate == nil || !stored.FollowUpDate.Equal(followUp) {
		t.Fatalf("expected patched fields, got %+v", stored)
	}
	if !stored.UpdatedAt.After(stored.CreatedAt) {
		t.Fatalf("expected updatedAt after createdAt")
	}

	cached := f.service.Snapshot()
	if len(cached) != 1 || !cached[0].Value.Equal(value) {
		t.Fatalf("expected cache to reflect the update, got %+v", cached)
	}

	trail := auditTrail(t, f.audit)
	if len(trail) != 2 || trail[0].Action != activity.ActionUpdated || trail[0].EntityName != "Acme Corp" {
		t.Fatalf("unexpected audit trail: %+v", trail)
	}

	if err := f.service.Update(ctx, testActor, lead.ID, Patch{ClearFollowUpDate: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _, _ = f.service.Get(ctx, testActor, lead.ID)
	if stored.FollowUpDate != nil {
		t.Fatalf("expected follow-up date to be cleared")
	}
}

func TestUpdateFallsBackToGenericName(t *testing.T) {
	f, collection := newMemoryFixture(t)
	ctx := context.Background()

	lead, err := f.service.Create(ctx, testActor, acmeFields())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A second service shares the store but starts with an empty cache.
	other := newFixture(t, collection)
	if err := other.service.UpdateStage(ctx, testActor, lead.ID, StageContacted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trail := auditTrail(t, other.audit)
	if len(trail) != 1 || trail[0].EntityName != FallbackName {
		t.Fatalf("expected fallback entity name, got %+v", trail)
	}

	stored, _, _ := other.service.Get(ctx, testActor, lead.ID)
	if stored.Stage != StageContacted {
		t.Fatalf("expected stage contacted, got %s", stored.Stage)
	}
}

func TestUpdateMissingLeadReturnsNotFound(t *testing.T) {
	f, _ := newMemoryFixture(t)
	name := "Ghost"

	err := f.service.Update(context.Background(), testActor, "missing", Patch{Name: &name})
	if !errors.Is(err, crm.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if crm.ErrorCode(err) != "leads.update.not_found" {
		t.Fatalf("unexpected error code %q", crm.ErrorCode(err))
	}
	if trail := auditTrail(t, f.audit); len(trail) != 0 {
		t.Fatalf("expected no audit entry for failed update")
	}
}

func TestDeleteRemovesLeadAndRecordsDisplayName(t *testing.T) {
	f, _ := newMemoryFixture(t)
	ctx := context.Background()

	first, _ := f.service.Create(ctx, testActor, acmeFields())
	second := acmeFields()
	second.Name = "Globex"
	secondLead, _ := f.service.Create(ctx, testActor, second)

	if err := f.service.Delete(ctx, testActor, first.ID, "Acme (closed)"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, found, _ := f.service.Get(ctx, testActor, first.ID); found {
		t.Fatalf("expected lead to be gone")
	}
	cached := f.service.Snapshot()
	if len(cached) != 1 || cached[0].ID != secondLead.ID {
		t.Fatalf("expected only the remaining lead in cache, got %+v", cached)
	}
	if err := f.service.Delete(ctx, testActor, secondLead.ID, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	trail := auditTrail(t, f.audit)
	if len(trail) != 4 {
		t.Fatalf("expected four audit entries, got %d", len(trail))
	}
	if trail[1].Action != activity.ActionDeleted || trail[1].EntityName != "Acme (closed)" {
		t.Fatalf("unexpected delete entry: %+v", trail[1])
	}
	if trail[0].EntityName != "Globex" {
		t.Fatalf("expected cached name when display name is blank, got %q", trail[0].EntityName)
	}

	if err := f.service.Delete(ctx, testActor, first.ID, "Acme"); !errors.Is(err, crm.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestStoreFailureSurfacesUnavailable(t *testing.T) {
	f, collection := newMemoryFixture(t)
	collection.FailWith(errors.New("permission denied"))

	_, err := f.service.Create(context.Background(), testActor, acmeFields())
	if !errors.Is(err, crm.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	if crm.ErrorCode(err) != "leads.create.store_unavailable" {
		t.Fatalf("unexpected error code %q", crm.ErrorCode(err))
	}
	if len(f.service.Snapshot()) != 0 {
		t.Fatalf("expected cache untouched on failure")
	}
	if _, err := f.service.List(context.Background(), testActor); !errors.Is(err, crm.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable on list, got %v", err)
	}
}

func TestAuditFailureDoesNotFailWrite(t *testing.T) {
	f, _ := newMemoryFixture(t)
	f.audit.FailWith(errors.New("quota exceeded"))

	lead, err := f.service.Create(context.Background(), testActor, acmeFields())
	if err != nil {
		t.Fatalf("expected create to succeed despite audit failure, got %v", err)
	}
	if _, found, _ := f.service.Get(context.Background(), testActor, lead.ID); !found {
		t.Fatalf("expected lead to be persisted")
	}
}

func TestListRefreshesCacheAndListByStageFilters(t *testing.T) {
	f, collection := newMemoryFixture(t)
	ctx := context.Background()

	won := acmeFields()
	won.Name = "Won deal"
	won.Stage = StageWon
	if _, err := f.service.Create(ctx, testActor, won); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.service.Create(ctx, testActor, acmeFields()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other := newFixture(t, collection)
	listed, err := other.service.List(ctx, testActor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 2 || listed[0].Name != "Acme Corp" || listed[1].Name != "Won deal" {
		t.Fatalf("expected newest first, got %+v", listed)
	}
	if len(other.service.Snapshot()) != 2 {
		t.Fatalf("expected list to populate cache")
	}

	byStage, err := other.service.ListByStage(ctx, testActor, StageWon)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byStage) != 1 || byStage[0].Name != "Won deal" {
		t.Fatalf("unexpected stage listing: %+v", byStage)
	}
	if _, err := other.service.ListByStage(ctx, testActor, "archived"); !errors.Is(err, crm.ErrValidation) {
		t.Fatalf("expected validation error for unknown stage, got %v", err)
	}
}

func TestGormCollectionRoundTrip(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:leads_service?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Lead{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	collection, err := docstore.NewGormCollection[Lead](docstore.GormConfig{
		Database:   db,
		IDProvider: &sequenceIDs{prefix: "lead"},
	})
	if err != nil {
		t.Fatalf("failed to build collection: %v", err)
	}
	f := newFixture(t, collection)
	ctx := context.Background()

	followUp := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)
	fields := acmeFields()
	fields.FollowUpDate = &followUp
	lead, err := f.service.Create(ctx, testActor, fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := f.service.UpdateStage(ctx, testActor, lead.ID, StageProposal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.service.Update(ctx, testActor, lead.ID, Patch{ClearFollowUpDate: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, found, err := f.service.Get(ctx, testActor, lead.ID)
	if err != nil || !found {
		t.Fatalf("expected lead, found=%v err=%v", found, err)
	}
	if stored.Stage != StageProposal {
		t.Fatalf("expected stage proposal, got %s", stored.Stage)
	}
	if stored.FollowUpDate != nil {
		t.Fatalf("expected follow-up cleared, got %v", stored.FollowUpDate)
	}
	if !stored.Value.Equal(decimal.RequireFromString("1250.5")) {
		t.Fatalf("unexpected value %s", stored.Value)
	}

	if err := f.service.Delete(ctx, testActor, "missing", "Ghost"); !errors.Is(err, crm.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteReadsStoredNameWhenCacheIsCold(t *testing.T) {
	f, collection := newMemoryFixture(t)
	ctx := context.Background()

	stored := Lead{Name: "Initech", Company: "Initech LLC", Contact: "bill@initech.test", Stage: StageContacted}
	if err := collection.Insert(ctx, &stored); err != nil {
		t.Fatalf("failed to seed lead: %v", err)
	}
	if len(f.service.Snapshot()) != 0 {
		t.Fatalf("expected an empty cache")
	}

	if err := f.service.Delete(ctx, testActor, stored.ID, "  "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	trail := auditTrail(t, f.audit)
	if len(trail) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(trail))
	}
	if trail[0].EntityName != "Initech" {
		t.Fatalf("expected stored name on delete entry, got %q", trail[0].EntityName)
	}
}

func TestGormStoreFailureIsLoggedOnce(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:leads_closed?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Lead{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	collection, err := docstore.NewGormCollection[Lead](docstore.GormConfig{
		Database:   db,
		IDProvider: &sequenceIDs{prefix: "lead"},
	})
	if err != nil {
		t.Fatalf("failed to build collection: %v", err)
	}
	recorder, err := activity.NewService(activity.ServiceConfig{
		Store:      activity.NewMemoryStore(),
		IDProvider: &sequenceIDs{prefix: "activity"},
	})
	if err != nil {
		t.Fatalf("failed to build activity service: %v", err)
	}
	core, logs := observer.New(zapcore.DebugLevel)
	service, err := NewService(ServiceConfig{
		Collection: collection,
		Activity:   recorder,
		Logger:     zap.New(core),
	})
	if err != nil {
		t.Fatalf("failed to build lead service: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql handle: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("failed to close database: %v", err)
	}

	if _, err := service.List(context.Background(), testActor); !errors.Is(err, crm.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel || entries[0].Message != "lead service error" {
		t.Fatalf("unexpected log entry: %s %q", entries[0].Level, entries[0].Message)
	}
}
