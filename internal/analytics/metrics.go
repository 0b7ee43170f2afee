// Package analytics derives dashboard aggregates from in-memory snapshots of
// leads and orders. Every function is pure: no I/O, no clock reads.
package analytics

import (
	"github.com/MarvelMathesh/trackflow/internal/leads"
	"github.com/MarvelMathesh/trackflow/internal/orders"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.RequireFromString("0.5")
)

// TotalCount returns the number of records in collection.
func TotalCount[T any](collection []T) int {
	return len(collection)
}

// SumValue totals the order value of the given subset.
func SumValue(subset []orders.Order) decimal.Decimal {
	total := decimal.Zero
	for _, order := range subset {
		total = total.Add(order.OrderValue)
	}
	return total
}

// AverageOrderValue is SumValue divided by the order count, rounded to cents.
func AverageOrderValue(subset []orders.Order) decimal.Decimal {
	if len(subset) == 0 {
		return decimal.Zero
	}
	return SumValue(subset).Div(decimal.NewFromInt(int64(len(subset)))).Round(2)
}

// ConversionRate is the share of won leads among leads that reached at least
// the qualified stage, as a percentage rounded to two places.
func ConversionRate(collection []leads.Lead) decimal.Decimal {
	var won, qualifying int64
	for _, lead := range collection {
		if lead.Stage.Qualifying() {
			qualifying++
		}
		if lead.Stage == leads.StageWon {
			won++
		}
	}
	if qualifying == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(won).Mul(hundred).Div(decimal.NewFromInt(qualifying)).Round(2)
}

// PercentChange returns (current-previous)/previous*100 rounded to the nearest
// integer with halves rounded up. A zero previous yields 100 when current is
// positive and 0 otherwise.
func PercentChange(current, previous decimal.Decimal) int64 {
	if previous.IsZero() {
		if current.IsPositive() {
			return 100
		}
		return 0
	}
	ratio := current.Sub(previous).Div(previous).Mul(hundred)
	return ratio.Add(half).Floor().IntPart()
}

// CountChange compares a count across two periods.
type CountChange struct {
	Current       int   `json:"current"`
	Previous      int   `json:"previous"`
	ChangePercent int64 `json:"change_percent"`
}

// NewCountChange builds a CountChange.
func NewCountChange(current, previous int) CountChange {
	return CountChange{
		Current:       current,
		Previous:      previous,
		ChangePercent: PercentChange(decimal.NewFromInt(int64(current)), decimal.NewFromInt(int64(previous))),
	}
}

// AmountChange compares a monetary total across two periods.
type AmountChange struct {
	Current       decimal.Decimal `json:"current"`
	Previous      decimal.Decimal `json:"previous"`
	ChangePercent int64           `json:"change_percent"`
}

// NewAmountChange builds an AmountChange.
func NewAmountChange(current, previous decimal.Decimal) AmountChange {
	return AmountChange{
		Current:       current,
		Previous:      previous,
		ChangePercent: PercentChange(current, previous),
	}
}
