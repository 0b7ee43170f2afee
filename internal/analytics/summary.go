package analytics

import (
	"time"

	"github.com/MarvelMathesh/trackflow/internal/leads"
	"github.com/MarvelMathesh/trackflow/internal/orders"
	"github.com/shopspring/decimal"
)

// Options tunes the follow-up section of the dashboard summary.
type Options struct {
	FollowUpWindowDays int
	FollowUpLimit      int
}

// Summary is the dashboard view of the current lead and order snapshots.
type Summary struct {
	TotalLeads        int               `json:"total_leads"`
	OpenLeads         int               `json:"open_leads"`
	TotalOrders       int               `json:"total_orders"`
	TotalRevenue      decimal.Decimal   `json:"total_revenue"`
	AverageOrderValue decimal.Decimal   `json:"average_order_value"`
	ConversionRate    decimal.Decimal   `json:"conversion_rate"`
	MonthOverMonth    MonthOverMonth    `json:"month_over_month"`
	Pipeline          []StageCount      `json:"pipeline"`
	MonthlyRevenue    []decimal.Decimal `json:"monthly_revenue"`
	UpcomingFollowUps []leads.Lead      `json:"upcoming_follow_ups"`
	GeneratedAt       time.Time         `json:"generated_at"`
}

// BuildSummary computes the dashboard summary as of now. A zero
// FollowUpLimit falls back to DefaultFollowUpLimit.
func BuildSummary(leadSet []leads.Lead, orderSet []orders.Order, now time.Time, options Options) Summary {
	limit := options.FollowUpLimit
	if limit == 0 {
		limit = DefaultFollowUpLimit
	}
	return Summary{
		TotalLeads:        TotalCount(leadSet),
		OpenLeads:         TotalCount(OpenLeads(leadSet)),
		TotalOrders:       TotalCount(orderSet),
		TotalRevenue:      SumValue(orderSet),
		AverageOrderValue: AverageOrderValue(orderSet),
		ConversionRate:    ConversionRate(leadSet),
		MonthOverMonth:    CompareMonths(leadSet, orderSet, now),
		Pipeline:          PipelineCounts(leadSet),
		MonthlyRevenue:    MonthlyBucket(orderSet, now.Year(), now.Location()),
		UpcomingFollowUps: UpcomingFollowUps(leadSet, now, options.FollowUpWindowDays, limit),
		GeneratedAt:       now,
	}
}

// Report is the analytics page view for one year.
type Report struct {
	Year              int             `json:"year"`
	Revenue           YearRevenue     `json:"revenue"`
	TotalLeads        int             `json:"total_leads"`
	TotalOrders       int             `json:"total_orders"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	ConversionRate    decimal.Decimal `json:"conversion_rate"`
	StageDistribution []StageCount    `json:"stage_distribution"`
	ConversionFunnel  []StageCount    `json:"conversion_funnel"`
	OrdersByStatus    []StatusCount   `json:"orders_by_status"`
}

// BuildReport computes the analytics report for year with months taken in loc.
func BuildReport(leadSet []leads.Lead, orderSet []orders.Order, year int, loc *time.Location) Report {
	return Report{
		Year:              year,
		Revenue:           YearOverYearRevenue(orderSet, year, loc),
		TotalLeads:        TotalCount(leadSet),
		TotalOrders:       TotalCount(orderSet),
		TotalRevenue:      SumValue(orderSet),
		AverageOrderValue: AverageOrderValue(orderSet),
		ConversionRate:    ConversionRate(leadSet),
		StageDistribution: StageDistribution(leadSet),
		ConversionFunnel:  ConversionFunnel(leadSet),
		OrdersByStatus:    StatusCounts(orderSet),
	}
}
