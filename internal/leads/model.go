package leads

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarvelMathesh/trackflow/internal/crm"
	"github.com/MarvelMathesh/trackflow/internal/docstore"
	"github.com/shopspring/decimal"
)

// Stage is the position of a lead in the sales pipeline.
type Stage string

const (
	StageNew       Stage = "new"
	StageContacted Stage = "contacted"
	StageQualified Stage = "qualified"
	StageProposal  Stage = "proposal"
	StageWon       Stage = "won"
	StageLost      Stage = "lost"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageNew, StageContacted, StageQualified, StageProposal, StageWon, StageLost}

const stageOneOf = "new contacted qualified proposal won lost"

// ParseStage validates raw input and returns a Stage.
func ParseStage(raw string) (Stage, error) {
	stage := Stage(strings.ToLower(strings.TrimSpace(raw)))
	if !stage.Valid() {
		return "", crm.NewFieldError("stage", fmt.Sprintf("must be one of [%s]", stageOneOf))
	}
	return stage, nil
}

// Valid reports whether s is one of the enumerated stages.
func (s Stage) Valid() bool {
	switch s {
	case StageNew, StageContacted, StageQualified, StageProposal, StageWon, StageLost:
		return true
	}
	return false
}

// Closed reports whether the lead has left the pipeline.
func (s Stage) Closed() bool {
	return s == StageWon || s == StageLost
}

// Qualifying reports whether the stage counts toward the conversion denominator.
func (s Stage) Qualifying() bool {
	switch s {
	case StageQualified, StageProposal, StageWon, StageLost:
		return true
	}
	return false
}

// Lead is a prospective customer tracked through the pipeline.
type Lead struct {
	docstore.Metadata
	Name            string          `gorm:"column:name;size:320;not null" json:"name"`
	Company         string          `gorm:"column:company;size:320;not null" json:"company"`
	Contact         string          `gorm:"column:contact;size:320;not null" json:"contact"`
	ProductInterest string          `gorm:"column:product_interest;size:320;not null" json:"product_interest"`
	Stage           Stage           `gorm:"column:stage;size:32;not null;index" json:"stage"`
	Value           decimal.Decimal `gorm:"column:value;type:numeric(14,2);not null" json:"value"`
	FollowUpDate    *time.Time      `gorm:"column:follow_up_date" json:"follow_up_date"`
	Notes           string          `gorm:"column:notes;type:text;not null" json:"notes"`
	AssignedTo      string          `gorm:"column:assigned_to;size:190;not null" json:"assigned_to"`
}

// TableName provides the explicit table binding for GORM.
func (Lead) TableName() string {
	return "leads"
}

// Fields carries the caller-supplied attributes of a new lead.
type Fields struct {
	Name            string          `json:"name" validate:"required,max=320"`
	Company         string          `json:"company" validate:"required,max=320"`
	Contact         string          `json:"contact" validate:"required,max=320"`
	ProductInterest string          `json:"product_interest" validate:"max=320"`
	Stage           Stage           `json:"stage" validate:"omitempty,oneof=new contacted qualified proposal won lost"`
	Value           decimal.Decimal `json:"value" validate:"gte=0"`
	FollowUpDate    *time.Time      `json:"follow_up_date"`
	Notes           string          `json:"notes"`
	AssignedTo      string          `json:"assigned_to" validate:"max=190"`
}

func (f Fields) normalized() Fields {
	f.Name = strings.TrimSpace(f.Name)
	f.Company = strings.TrimSpace(f.Company)
	f.Contact = strings.TrimSpace(f.Contact)
	f.ProductInterest = strings.TrimSpace(f.ProductInterest)
	f.Stage = Stage(strings.ToLower(strings.TrimSpace(string(f.Stage))))
	f.AssignedTo = strings.TrimSpace(f.AssignedTo)
	return f
}

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	Name              *string          `json:"name" validate:"omitnil,min=1,max=320"`
	Company           *string          `json:"company" validate:"omitnil,min=1,max=320"`
	Contact           *string          `json:"contact" validate:"omitnil,min=1,max=320"`
	ProductInterest   *string          `json:"product_interest" validate:"omitnil,max=320"`
	Stage             *Stage           `json:"stage" validate:"omitnil,oneof=new contacted qualified proposal won lost"`
	Value             *decimal.Decimal `json:"value" validate:"omitnil,gte=0"`
	FollowUpDate      *time.Time       `json:"follow_up_date"`
	ClearFollowUpDate bool             `json:"clear_follow_up_date"`
	Notes             *string          `json:"notes"`
	AssignedTo        *string          `json:"assigned_to" validate:"omitnil,max=190"`
	UpdatedAt         time.Time        `json:"-"`
}

func (p Patch) normalized() Patch {
	p.Name = trimmed(p.Name)
	p.Company = trimmed(p.Company)
	p.Contact = trimmed(p.Contact)
	p.ProductInterest = trimmed(p.ProductInterest)
	p.AssignedTo = trimmed(p.AssignedTo)
	if p.Stage != nil {
		stage := Stage(strings.ToLower(strings.TrimSpace(string(*p.Stage))))
		p.Stage = &stage
	}
	if p.FollowUpDate != nil {
		followUp := p.FollowUpDate.UTC()
		p.FollowUpDate = &followUp
	}
	return p
}

// Columns returns the persisted column values of the provided fields.
func (p Patch) Columns() map[string]any {
	columns := map[string]any{"updated_at": p.UpdatedAt}
	if p.Name != nil {
		columns["name"] = *p.Name
	}
	if p.Company != nil {
		columns["company"] = *p.Company
	}
	if p.Contact != nil {
		columns["contact"] = *p.Contact
	}
	if p.ProductInterest != nil {
		columns["product_interest"] = *p.ProductInterest
	}
	if p.Stage != nil {
		columns["stage"] = string(*p.Stage)
	}
	if p.Value != nil {
		columns["value"] = *p.Value
	}
	if p.ClearFollowUpDate {
		columns["follow_up_date"] = nil
	} else if p.FollowUpDate != nil {
		columns["follow_up_date"] = *p.FollowUpDate
	}
	if p.Notes != nil {
		columns["notes"] = *p.Notes
	}
	if p.AssignedTo != nil {
		columns["assigned_to"] = *p.AssignedTo
	}
	return columns
}

// Apply shallow-merges the provided fields into lead.
func (p Patch) Apply(lead *Lead) {
	if p.Name != nil {
		lead.Name = *p.Name
	}
	if p.Company != nil {
		lead.Company = *p.Company
	}
	if p.Contact != nil {
		lead.Contact = *p.Contact
	}
	if p.ProductInterest != nil {
		lead.ProductInterest = *p.ProductInterest
	}
	if p.Stage != nil {
		lead.Stage = *p.Stage
	}
	if p.Value != nil {
		lead.Value = *p.Value
	}
	if p.ClearFollowUpDate {
		lead.FollowUpDate = nil
	} else if p.FollowUpDate != nil {
		followUp := *p.FollowUpDate
		lead.FollowUpDate = &followUp
	}
	if p.Notes != nil {
		lead.Notes = *p.Notes
	}
	if p.AssignedTo != nil {
		lead.AssignedTo = *p.AssignedTo
	}
	lead.UpdatedAt = p.UpdatedAt
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	return &out
}
