package activity

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarvelMathesh/trackflow/internal/crm"
)

// Action enumerates audited operations.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionDeleted   Action = "deleted"
	ActionCompleted Action = "completed"
)

// EntityType enumerates audited entity kinds.
type EntityType string

const (
	EntityLead  EntityType = "lead"
	EntityOrder EntityType = "order"
)

// ParseEntityType validates raw input and returns an EntityType.
func ParseEntityType(raw string) (EntityType, error) {
	switch value := EntityType(strings.ToLower(strings.TrimSpace(raw))); value {
	case EntityLead, EntityOrder:
		return value, nil
	default:
		return "", crm.NewFieldError("entity_type", fmt.Sprintf("must be one of [%s %s]", EntityLead, EntityOrder))
	}
}

func (a Action) valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted, ActionCompleted:
		return true
	}
	return false
}

func (t EntityType) valid() bool {
	return t == EntityLead || t == EntityOrder
}

// Entry is an immutable audit record. Entries are appended and never updated
// or deleted.
type Entry struct {
	ID         string     `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	UserID     string     `gorm:"column:user_id;size:190;not null" json:"user_id"`
	UserName   string     `gorm:"column:user_name;size:320;not null" json:"user_name"`
	Action     Action     `gorm:"column:action;size:32;not null" json:"action"`
	EntityType EntityType `gorm:"column:entity_type;size:32;not null;index:idx_activities_entity,priority:1" json:"entity_type"`
	EntityID   string     `gorm:"column:entity_id;size:190;not null;index:idx_activities_entity,priority:2" json:"entity_id"`
	EntityName string     `gorm:"column:entity_name;size:320;not null" json:"entity_name"`
	Timestamp  time.Time  `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "activities"
}

// Input carries the fields a caller supplies when recording an action.
type Input struct {
	Actor      crm.Actor
	Action     Action
	EntityType EntityType
	EntityID   string
	EntityName string
}
