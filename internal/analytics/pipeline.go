package analytics

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/MarvelMathesh/trackflow/internal/leads"
	"github.com/MarvelMathesh/trackflow/internal/orders"
)

// DefaultFollowUpLimit caps the follow-up list when callers pass no limit.
const DefaultFollowUpLimit = 5

// GroupByStage partitions leads by stage. Every stage has a key, and each
// group keeps the input order.
func GroupByStage(collection []leads.Lead) map[leads.Stage][]leads.Lead {
	groups := make(map[leads.Stage][]leads.Lead, len(leads.Stages))
	for _, stage := range leads.Stages {
		groups[stage] = []leads.Lead{}
	}
	for _, lead := range collection {
		if _, ok := groups[lead.Stage]; !ok {
			continue
		}
		groups[lead.Stage] = append(groups[lead.Stage], lead)
	}
	return groups
}

// GroupByStatus partitions orders by status, one key per status.
func GroupByStatus(collection []orders.Order) map[orders.Status][]orders.Order {
	groups := make(map[orders.Status][]orders.Order, len(orders.Statuses))
	for _, status := range orders.Statuses {
		groups[status] = []orders.Order{}
	}
	for _, order := range collection {
		if _, ok := groups[order.Status]; !ok {
			continue
		}
		groups[order.Status] = append(groups[order.Status], order)
	}
	return groups
}

// StageCount is the number of leads at one stage.
type StageCount struct {
	Stage leads.Stage `json:"stage"`
	Count int         `json:"count"`
}

// StatusCount is the number of orders in one status.
type StatusCount struct {
	Status orders.Status `json:"status"`
	Count  int           `json:"count"`
}

// PipelineCounts returns one count per stage in pipeline order.
func PipelineCounts(collection []leads.Lead) []StageCount {
	groups := GroupByStage(collection)
	counts := make([]StageCount, 0, len(leads.Stages))
	for _, stage := range leads.Stages {
		counts = append(counts, StageCount{Stage: stage, Count: len(groups[stage])})
	}
	return counts
}

// StageDistribution is PipelineCounts without the empty stages.
func StageDistribution(collection []leads.Lead) []StageCount {
	counts := PipelineCounts(collection)
	return slices.DeleteFunc(counts, func(count StageCount) bool { return count.Count == 0 })
}

// ConversionFunnel counts leads from new through won, lost excluded. Empty
// stages are kept so the funnel shape is stable.
func ConversionFunnel(collection []leads.Lead) []StageCount {
	counts := PipelineCounts(collection)
	return slices.DeleteFunc(counts, func(count StageCount) bool { return count.Stage == leads.StageLost })
}

// StatusCounts returns one count per order status in fulfilment order.
func StatusCounts(collection []orders.Order) []StatusCount {
	groups := GroupByStatus(collection)
	counts := make([]StatusCount, 0, len(orders.Statuses))
	for _, status := range orders.Statuses {
		counts = append(counts, StatusCount{Status: status, Count: len(groups[status])})
	}
	return counts
}

// OpenLeads returns the leads that are neither won nor lost.
func OpenLeads(collection []leads.Lead) []leads.Lead {
	open := make([]leads.Lead, 0, len(collection))
	for _, lead := range collection {
		if !lead.Stage.Closed() {
			open = append(open, lead)
		}
	}
	return open
}

// UpcomingFollowUps returns leads whose follow-up date falls between the start
// of now's day and now plus windowDays, soonest first, at most limit of them.
// windowDays <= 0 removes the upper bound and limit <= 0 disables truncation.
// Leads without a follow-up date are never included.
func UpcomingFollowUps(collection []leads.Lead, now time.Time, windowDays, limit int) []leads.Lead {
	from := startOfDay(now)
	var until time.Time
	if windowDays > 0 {
		until = now.AddDate(0, 0, windowDays)
	}

	upcoming := make([]leads.Lead, 0)
	for _, lead := range collection {
		if lead.FollowUpDate == nil {
			continue
		}
		due := *lead.FollowUpDate
		if due.Before(from) {
			continue
		}
		if !until.IsZero() && due.After(until) {
			continue
		}
		upcoming = append(upcoming, lead)
	}
	slices.SortStableFunc(upcoming, func(a, b leads.Lead) int {
		return cmp.Compare(a.FollowUpDate.UnixNano(), b.FollowUpDate.UnixNano())
	})
	if limit > 0 && len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return upcoming
}

// FilterLeads keeps leads whose name, company or contact contains query,
// ignoring case. A blank query keeps everything.
func FilterLeads(collection []leads.Lead, query string) []leads.Lead {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return collection
	}
	matched := make([]leads.Lead, 0, len(collection))
	for _, lead := range collection {
		if strings.Contains(strings.ToLower(lead.Name), needle) ||
			strings.Contains(strings.ToLower(lead.Company), needle) ||
			strings.Contains(strings.ToLower(lead.Contact), needle) {
			matched = append(matched, lead)
		}
	}
	return matched
}
