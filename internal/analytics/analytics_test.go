package analytics

import (
	"reflect"
	"testing"
	"time"

	"github.com/MarvelMathesh/trackflow/internal/docstore"
	"github.com/MarvelMathesh/trackflow/internal/leads"
	"github.com/MarvelMathesh/trackflow/internal/orders"
	"github.com/shopspring/decimal"
)

func lead(id string, stage leads.Stage, created time.Time) leads.Lead {
	return leads.Lead{
		Metadata: docstore.Metadata{ID: id, CreatedAt: created, UpdatedAt: created},
		Name:     "Lead " + id,
		Company:  "Company " + id,
		Contact:  id + "@example.com",
		Stage:    stage,
	}
}

func withFollowUp(l leads.Lead, due time.Time) leads.Lead {
	l.FollowUpDate = &due
	return l
}

func order(id string, value string, created time.Time) orders.Order {
	return orders.Order{
		Metadata:     docstore.Metadata{ID: id, CreatedAt: created, UpdatedAt: created},
		CustomerName: "Customer " + id,
		Status:       orders.StatusReceived,
		OrderValue:   decimal.RequireFromString(value),
	}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 10, 0, 0, 0, time.UTC)
}

func expectAmount(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s: got %s, want %s", label, got, want)
	}
}

func TestTotalCountAndSumValue(t *testing.T) {
	if got := TotalCount([]orders.Order{}); got != 0 {
		t.Fatalf("expected zero count, got %d", got)
	}
	expectAmount(t, "empty sum", SumValue(nil), "0")

	set := []orders.Order{
		order("a", "100.10", date(2026, 1, 2)),
		order("b", "0.20", date(2026, 1, 3)),
		order("c", "50", date(2026, 2, 1)),
	}
	if got := TotalCount(set); got != 3 {
		t.Fatalf("expected three orders, got %d", got)
	}
	expectAmount(t, "sum", SumValue(set), "150.30")
	expectAmount(t, "average", AverageOrderValue(set), "50.10")
	expectAmount(t, "empty average", AverageOrderValue(nil), "0")
}

func TestConversionRate(t *testing.T) {
	now := date(2026, 4, 1)
	set := []leads.Lead{
		lead("1", leads.StageQualified, now),
		lead("2", leads.StageProposal, now),
		lead("3", leads.StageWon, now),
		lead("4", leads.StageLost, now),
	}
	expectAmount(t, "quarter", ConversionRate(set), "25")

	onlyEarly := []leads.Lead{lead("5", leads.StageNew, now), lead("6", leads.StageContacted, now)}
	expectAmount(t, "no progress", ConversionRate(onlyEarly), "0")

	thirds := []leads.Lead{
		lead("7", leads.StageWon, now),
		lead("8", leads.StageLost, now),
		lead("9", leads.StageLost, now),
	}
	expectAmount(t, "thirds", ConversionRate(thirds), "33.33")
}

func TestPercentChange(t *testing.T) {
	cases := []struct {
		name     string
		current  int64
		previous int64
		want     int64
	}{
		{name: "growth", current: 15, previous: 10, want: 50},
		{name: "decline", current: 5, previous: 10, want: -50},
		{name: "rounds half up", current: 201, previous: 200, want: 1},
		{name: "negative half rounds toward positive", current: 195, previous: 200, want: -2},
		{name: "rounds thirds", current: 1, previous: 3, want: -67},
		{name: "from zero", current: 4, previous: 0, want: 100},
		{name: "both zero", current: 0, previous: 0, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PercentChange(decimal.NewFromInt(tc.current), decimal.NewFromInt(tc.previous))
			if got != tc.want {
				t.Fatalf("PercentChange(%d, %d) = %d, want %d", tc.current, tc.previous, got, tc.want)
			}
		})
	}
}

func TestMonthlyBucketAndYearOverYear(t *testing.T) {
	set := []orders.Order{
		order("a", "100", date(2026, 1, 15)),
		order("b", "25.50", date(2026, 1, 31)),
		order("c", "10", date(2026, 12, 1)),
		order("d", "999", date(2025, 1, 1)),
	}

	buckets := MonthlyBucket(set, 2026, nil)
	if len(buckets) != 12 {
		t.Fatalf("expected 12 buckets, got %d", len(buckets))
	}
	expectAmount(t, "january", buckets[0], "125.50")
	expectAmount(t, "december", buckets[11], "10")
	for month := 1; month < 11; month++ {
		if !buckets[month].IsZero() {
			t.Fatalf("month %d: expected zero, got %s", month+1, buckets[month])
		}
	}

	empty := MonthlyBucket(set, 2030, nil)
	if len(empty) != 12 {
		t.Fatalf("expected 12 buckets for an empty year, got %d", len(empty))
	}
	for month, bucket := range empty {
		if !bucket.IsZero() {
			t.Fatalf("month %d: expected zero, got %s", month+1, bucket)
		}
	}

	yoy := YearOverYearRevenue(set, 2026, time.UTC)
	if yoy.Year != 2026 {
		t.Fatalf("expected year 2026, got %d", yoy.Year)
	}
	expectAmount(t, "previous january", yoy.Previous[0], "999")
}

func TestMonthlyBucketUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	late := order("a", "40", time.Date(2026, 3, 31, 20, 0, 0, 0, time.UTC))

	utc := MonthlyBucket([]orders.Order{late}, 2026, time.UTC)
	local := MonthlyBucket([]orders.Order{late}, 2026, tokyo)
	expectAmount(t, "utc march", utc[2], "40")
	expectAmount(t, "tokyo april", local[3], "40")
}

func TestGroupByStageKeepsEveryStageAndOrder(t *testing.T) {
	now := date(2026, 4, 1)
	set := []leads.Lead{
		lead("3", leads.StageWon, now),
		lead("2", leads.StageNew, now),
		lead("1", leads.StageWon, now),
	}

	groups := GroupByStage(set)
	if len(groups) != len(leads.Stages) {
		t.Fatalf("expected %d groups, got %d", len(leads.Stages), len(groups))
	}
	for _, stage := range leads.Stages {
		if _, ok := groups[stage]; !ok {
			t.Fatalf("missing group for stage %s", stage)
		}
	}
	won := groups[leads.StageWon]
	if len(won) != 2 || won[0].ID != "3" || won[1].ID != "1" {
		t.Fatalf("expected won leads in input order, got %+v", won)
	}
	if len(groups[leads.StageLost]) != 0 {
		t.Fatalf("expected no lost leads, got %d", len(groups[leads.StageLost]))
	}

	total := 0
	for _, group := range groups {
		total += len(group)
	}
	if total != len(set) {
		t.Fatalf("expected %d grouped leads, got %d", len(set), total)
	}
}

func TestDistributionAndFunnel(t *testing.T) {
	now := date(2026, 4, 1)
	set := []leads.Lead{
		lead("1", leads.StageNew, now),
		lead("2", leads.StageNew, now),
		lead("3", leads.StageWon, now),
		lead("4", leads.StageLost, now),
	}

	want := []StageCount{
		{Stage: leads.StageNew, Count: 2},
		{Stage: leads.StageWon, Count: 1},
		{Stage: leads.StageLost, Count: 1},
	}
	if distribution := StageDistribution(set); !reflect.DeepEqual(distribution, want) {
		t.Fatalf("expected distribution %+v, got %+v", want, distribution)
	}

	funnel := ConversionFunnel(set)
	if len(funnel) != 5 {
		t.Fatalf("expected five funnel steps, got %d", len(funnel))
	}
	if funnel[0].Stage != leads.StageNew || funnel[4].Stage != leads.StageWon {
		t.Fatalf("unexpected funnel bounds %s..%s", funnel[0].Stage, funnel[4].Stage)
	}
	if funnel[1].Count != 0 {
		t.Fatalf("expected empty contacted step, got %d", funnel[1].Count)
	}

	if open := OpenLeads(set); len(open) != 2 {
		t.Fatalf("expected two open leads, got %d", len(open))
	}
}

func TestStatusCounts(t *testing.T) {
	now := date(2026, 4, 1)
	shipped := order("b", "10", now)
	shipped.Status = orders.StatusDispatched
	counts := StatusCounts([]orders.Order{order("a", "10", now), shipped})

	if len(counts) != len(orders.Statuses) {
		t.Fatalf("expected %d statuses, got %d", len(orders.Statuses), len(counts))
	}
	if counts[0] != (StatusCount{Status: orders.StatusReceived, Count: 1}) {
		t.Fatalf("unexpected received count %+v", counts[0])
	}
	if counts[3] != (StatusCount{Status: orders.StatusDispatched, Count: 1}) {
		t.Fatalf("unexpected dispatched count %+v", counts[3])
	}
}

func TestUpcomingFollowUps(t *testing.T) {
	now := time.Date(2026, 4, 10, 15, 0, 0, 0, time.UTC)
	created := date(2026, 4, 1)
	set := []leads.Lead{
		withFollowUp(lead("later", leads.StageNew, created), now.AddDate(0, 0, 3)),
		withFollowUp(lead("this-morning", leads.StageNew, created), time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)),
		withFollowUp(lead("yesterday", leads.StageNew, created), now.AddDate(0, 0, -1)),
		withFollowUp(lead("too-far", leads.StageNew, created), now.AddDate(0, 0, 8)),
		lead("no-date", leads.StageNew, created),
		withFollowUp(lead("soon", leads.StageNew, created), now.Add(2*time.Hour)),
	}

	upcoming := UpcomingFollowUps(set, now, 7, 5)
	ids := make([]string, 0, len(upcoming))
	for _, item := range upcoming {
		ids = append(ids, item.ID)
	}
	if want := []string{"this-morning", "soon", "later"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}

	limited := UpcomingFollowUps(set, now, 7, 1)
	if len(limited) != 1 || limited[0].ID != "this-morning" {
		t.Fatalf("expected only this-morning, got %+v", limited)
	}

	unbounded := UpcomingFollowUps(set, now, 0, 0)
	if len(unbounded) != 4 {
		t.Fatalf("expected four unbounded follow-ups, got %d", len(unbounded))
	}
	for _, item := range unbounded {
		if item.FollowUpDate == nil {
			t.Fatalf("lead %s has no follow-up date", item.ID)
		}
	}
}

func TestFilterLeads(t *testing.T) {
	now := date(2026, 4, 1)
	acme := lead("1", leads.StageNew, now)
	acme.Name = "Acme Corp"
	globex := lead("2", leads.StageNew, now)
	globex.Contact = "hank@GLOBEX.test"

	set := []leads.Lead{acme, globex}
	if got := FilterLeads(set, "  "); len(got) != 2 {
		t.Fatalf("blank query must keep every lead, got %d", len(got))
	}
	if got := FilterLeads(set, "acme"); len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("expected acme by name, got %+v", got)
	}
	if got := FilterLeads(set, "globex"); len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("expected globex by contact, got %+v", got)
	}
	if got := FilterLeads(set, "initech"); len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

func TestCompareMonthsWrapsAcrossYear(t *testing.T) {
	now := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)
	leadSet := []leads.Lead{
		lead("1", leads.StageNew, date(2026, 1, 5)),
		lead("2", leads.StageNew, date(2025, 12, 5)),
		lead("3", leads.StageNew, date(2025, 12, 6)),
		lead("4", leads.StageNew, date(2025, 11, 6)),
	}
	orderSet := []orders.Order{
		order("a", "300", date(2026, 1, 2)),
		order("b", "200", date(2025, 12, 2)),
	}

	mom := CompareMonths(leadSet, orderSet, now)
	if want := (CountChange{Current: 1, Previous: 2, ChangePercent: -50}); mom.Leads != want {
		t.Fatalf("expected leads %+v, got %+v", want, mom.Leads)
	}
	if want := (CountChange{Current: 1, Previous: 1, ChangePercent: 0}); mom.Orders != want {
		t.Fatalf("expected orders %+v, got %+v", want, mom.Orders)
	}
	if mom.Revenue.ChangePercent != 50 {
		t.Fatalf("expected revenue change 50, got %d", mom.Revenue.ChangePercent)
	}
}

func TestBuildSummaryAndReport(t *testing.T) {
	now := time.Date(2026, 5, 14, 9, 0, 0, 0, time.UTC)
	leadSet := []leads.Lead{
		withFollowUp(lead("1", leads.StageProposal, date(2026, 5, 2)), now.Add(time.Hour)),
		lead("2", leads.StageWon, date(2026, 4, 2)),
		lead("3", leads.StageNew, date(2026, 5, 3)),
	}
	orderSet := []orders.Order{
		order("a", "1000", date(2026, 5, 1)),
		order("b", "500", date(2025, 5, 1)),
	}

	summary := BuildSummary(leadSet, orderSet, now, Options{FollowUpWindowDays: 7})
	if summary.TotalLeads != 3 || summary.OpenLeads != 2 || summary.TotalOrders != 2 {
		t.Fatalf("unexpected totals %d/%d/%d", summary.TotalLeads, summary.OpenLeads, summary.TotalOrders)
	}
	expectAmount(t, "revenue", summary.TotalRevenue, "1500")
	expectAmount(t, "conversion", summary.ConversionRate, "50")
	if len(summary.Pipeline) != len(leads.Stages) || len(summary.MonthlyRevenue) != 12 {
		t.Fatalf("unexpected pipeline %d / monthly %d", len(summary.Pipeline), len(summary.MonthlyRevenue))
	}
	if len(summary.UpcomingFollowUps) != 1 || summary.UpcomingFollowUps[0].ID != "1" {
		t.Fatalf("expected follow-up for lead 1, got %+v", summary.UpcomingFollowUps)
	}
	if summary.MonthOverMonth.Leads.Current != 2 || summary.MonthOverMonth.Leads.Previous != 1 {
		t.Fatalf("unexpected month-over-month leads %+v", summary.MonthOverMonth.Leads)
	}

	report := BuildReport(leadSet, orderSet, 2026, time.UTC)
	if report.Year != 2026 {
		t.Fatalf("expected year 2026, got %d", report.Year)
	}
	expectAmount(t, "may", report.Revenue.Current[4], "1000")
	expectAmount(t, "previous may", report.Revenue.Previous[4], "500")
	if len(report.StageDistribution) != 3 || len(report.OrdersByStatus) != len(orders.Statuses) {
		t.Fatalf("unexpected report breakdowns %d / %d", len(report.StageDistribution), len(report.OrdersByStatus))
	}
}
