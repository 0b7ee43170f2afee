package analytics

import (
	"time"

	"github.com/MarvelMathesh/trackflow/internal/leads"
	"github.com/MarvelMathesh/trackflow/internal/orders"
	"github.com/shopspring/decimal"
)

// MonthlyBucket sums order value per calendar month of createdAt for year.
// Index 0 is January. Orders from other years contribute nothing. Months are
// taken in the location of loc; nil means UTC.
func MonthlyBucket(subset []orders.Order, year int, loc *time.Location) []decimal.Decimal {
	if loc == nil {
		loc = time.UTC
	}
	buckets := make([]decimal.Decimal, 12)
	for index := range buckets {
		buckets[index] = decimal.Zero
	}
	for _, order := range subset {
		created := order.CreatedAt.In(loc)
		if created.Year() != year {
			continue
		}
		month := int(created.Month()) - 1
		buckets[month] = buckets[month].Add(order.OrderValue)
	}
	return buckets
}

// YearRevenue pairs monthly revenue for a year with the previous year.
type YearRevenue struct {
	Year     int               `json:"year"`
	Current  []decimal.Decimal `json:"current"`
	Previous []decimal.Decimal `json:"previous"`
}

// YearOverYearRevenue buckets revenue for year and the year before it.
func YearOverYearRevenue(subset []orders.Order, year int, loc *time.Location) YearRevenue {
	return YearRevenue{
		Year:     year,
		Current:  MonthlyBucket(subset, year, loc),
		Previous: MonthlyBucket(subset, year-1, loc),
	}
}

// MonthOverMonth holds the current-versus-previous calendar month figures
// shown on the dashboard cards.
type MonthOverMonth struct {
	Leads   CountChange  `json:"leads"`
	Orders  CountChange  `json:"orders"`
	Revenue AmountChange `json:"revenue"`
}

// CompareMonths compares the calendar month containing now with the month
// before it. January compares against December of the previous year.
func CompareMonths(leadSet []leads.Lead, orderSet []orders.Order, now time.Time) MonthOverMonth {
	current := monthOf(now)
	previous := current.AddDate(0, -1, 0)
	loc := now.Location()

	var currentLeads, previousLeads int
	for _, lead := range leadSet {
		switch monthOf(lead.CreatedAt.In(loc)) {
		case current:
			currentLeads++
		case previous:
			previousLeads++
		}
	}

	var currentOrders, previousOrders int
	currentRevenue, previousRevenue := decimal.Zero, decimal.Zero
	for _, order := range orderSet {
		switch monthOf(order.CreatedAt.In(loc)) {
		case current:
			currentOrders++
			currentRevenue = currentRevenue.Add(order.OrderValue)
		case previous:
			previousOrders++
			previousRevenue = previousRevenue.Add(order.OrderValue)
		}
	}

	return MonthOverMonth{
		Leads:   NewCountChange(currentLeads, previousLeads),
		Orders:  NewCountChange(currentOrders, previousOrders),
		Revenue: NewAmountChange(currentRevenue, previousRevenue),
	}
}

func monthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
