package orders

import (
	"strings"
	"time"

	"github.com/MarvelMathesh/trackflow/internal/crm"
	"github.com/MarvelMathesh/trackflow/internal/docstore"
	"github.com/shopspring/decimal"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusReceived    Status = "received"
	StatusDevelopment Status = "development"
	StatusReady       Status = "ready"
	StatusDispatched  Status = "dispatched"
)

// Statuses lists every status in fulfilment order.
var Statuses = []Status{StatusReceived, StatusDevelopment, StatusReady, StatusDispatched}

// ParseStatus validates raw input and returns a Status.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", crm.NewFieldError("status", "must be one of [received development ready dispatched]")
	}
	return status, nil
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusDevelopment, StatusReady, StatusDispatched:
		return true
	}
	return false
}

// Order is a customer order moving through fulfilment.
type Order struct {
	docstore.Metadata
	LeadID         string          `gorm:"column:lead_id;size:190;not null;index" json:"lead_id"`
	CustomerName   string          `gorm:"column:customer_name;size:320;not null" json:"customer_name"`
	Status         Status          `gorm:"column:status;size:32;not null;index" json:"status"`
	OrderValue     decimal.Decimal `gorm:"column:order_value;type:numeric(14,2);not null" json:"order_value"`
	DispatchDate   *time.Time      `gorm:"column:dispatch_date" json:"dispatch_date"`
	Courier        string          `gorm:"column:courier;size:190;not null" json:"courier"`
	TrackingNumber string          `gorm:"column:tracking_number;size:190;not null" json:"tracking_number"`
	Notes          string          `gorm:"column:notes;type:text;not null" json:"notes"`
}

func (Order) TableName() string {
	return "orders"
}

// Fields carries the caller-supplied attributes of a new order.
type Fields struct {
	LeadID         string          `json:"lead_id" validate:"max=190"`
	CustomerName   string          `json:"customer_name" validate:"required,max=320"`
	Status         Status          `json:"status" validate:"omitempty,oneof=received development ready dispatched"`
	OrderValue     decimal.Decimal `json:"order_value" validate:"gte=0"`
	DispatchDate   *time.Time      `json:"dispatch_date"`
	Courier        string          `json:"courier" validate:"max=190"`
	TrackingNumber string          `json:"tracking_number" validate:"max=190"`
	Notes          string          `json:"notes"`
}

func (f Fields) normalized() Fields {
	f.LeadID = strings.TrimSpace(f.LeadID)
	f.CustomerName = strings.TrimSpace(f.CustomerName)
	f.Status = Status(strings.ToLower(strings.TrimSpace(string(f.Status))))
	f.Courier = strings.TrimSpace(f.Courier)
	f.TrackingNumber = strings.TrimSpace(f.TrackingNumber)
	if f.DispatchDate != nil {
		dispatched := f.DispatchDate.UTC()
		f.DispatchDate = &dispatched
	}
	return f
}

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	LeadID            *string          `json:"lead_id" validate:"omitnil,max=190"`
	CustomerName      *string          `json:"customer_name" validate:"omitnil,min=1,max=320"`
	Status            *Status          `json:"status" validate:"omitnil,oneof=received development ready dispatched"`
	OrderValue        *decimal.Decimal `json:"order_value" validate:"omitnil,gte=0"`
	DispatchDate      *time.Time       `json:"dispatch_date"`
	ClearDispatchDate bool             `json:"clear_dispatch_date"`
	Courier           *string          `json:"courier" validate:"omitnil,max=190"`
	TrackingNumber    *string          `json:"tracking_number" validate:"omitnil,max=190"`
	Notes             *string          `json:"notes"`
	UpdatedAt         time.Time        `json:"-"`
}

func (p Patch) normalized() Patch {
	p.LeadID = trimmed(p.LeadID)
	p.CustomerName = trimmed(p.CustomerName)
	p.Courier = trimmed(p.Courier)
	p.TrackingNumber = trimmed(p.TrackingNumber)
	if p.Status != nil {
		status := Status(strings.ToLower(strings.TrimSpace(string(*p.Status))))
		p.Status = &status
	}
	if p.OrderValue != nil {
		rounded := p.OrderValue.Round(2)
		p.OrderValue = &rounded
	}
	if p.DispatchDate != nil {
		dispatched := p.DispatchDate.UTC()
		p.DispatchDate = &dispatched
	}
	return p
}

func (p Patch) Columns() map[string]any {
	columns := map[string]any{"updated_at": p.UpdatedAt}
	if p.LeadID != nil {
		columns["lead_id"] = *p.LeadID
	}
	if p.CustomerName != nil {
		columns["customer_name"] = *p.CustomerName
	}
	if p.Status != nil {
		columns["status"] = string(*p.Status)
	}
	if p.OrderValue != nil {
		columns["order_value"] = *p.OrderValue
	}
	if p.ClearDispatchDate {
		columns["dispatch_date"] = nil
	} else if p.DispatchDate != nil {
		columns["dispatch_date"] = *p.DispatchDate
	}
	if p.Courier != nil {
		columns["courier"] = *p.Courier
	}
	if p.TrackingNumber != nil {
		columns["tracking_number"] = *p.TrackingNumber
	}
	if p.Notes != nil {
		columns["notes"] = *p.Notes
	}
	return columns
}

func (p Patch) Apply(order *Order) {
	if p.LeadID != nil {
		order.LeadID = *p.LeadID
	}
	if p.CustomerName != nil {
		order.CustomerName = *p.CustomerName
	}
	if p.Status != nil {
		order.Status = *p.Status
	}
	if p.OrderValue != nil {
		order.OrderValue = *p.OrderValue
	}
	if p.ClearDispatchDate {
		order.DispatchDate = nil
	} else if p.DispatchDate != nil {
		dispatched := *p.DispatchDate
		order.DispatchDate = &dispatched
	}
	if p.Courier != nil {
		order.Courier = *p.Courier
	}
	if p.TrackingNumber != nil {
		order.TrackingNumber = *p.TrackingNumber
	}
	if p.Notes != nil {
		order.Notes = *p.Notes
	}
	order.UpdatedAt = p.UpdatedAt
}

// DispatchInput carries the shipment details recorded when an order leaves.
type DispatchInput struct {
	Courier        string     `json:"courier" validate:"required,max=190"`
	TrackingNumber string     `json:"tracking_number" validate:"max=190"`
	DispatchDate   *time.Time `json:"dispatch_date"`
}

func (d DispatchInput) patch(now time.Time) Patch {
	status := StatusDispatched
	courier := strings.TrimSpace(d.Courier)
	tracking := strings.TrimSpace(d.TrackingNumber)
	dispatched := now
	if d.DispatchDate != nil {
		dispatched = d.DispatchDate.UTC()
	}
	return Patch{
		Status:         &status,
		Courier:        &courier,
		TrackingNumber: &tracking,
		DispatchDate:   &dispatched,
	}
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	return &out
}
