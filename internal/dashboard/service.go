// Package dashboard loads lead, order and activity snapshots concurrently and
// hands them to the analytics aggregator.
package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/MarvelMathesh/trackflow/internal/activity"
	"github.com/MarvelMathesh/trackflow/internal/analytics"
	"github.com/MarvelMathesh/trackflow/internal/crm"
	"github.com/MarvelMathesh/trackflow/internal/leads"
	"github.com/MarvelMathesh/trackflow/internal/orders"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	opServiceNew = "dashboard.service.new"
	opSummary    = "dashboard.summary"
	opReport     = "dashboard.report"
)

var errMissingSource = errors.New("lead, order and activity sources are required")

type LeadLister interface {
	List(ctx context.Context, actor crm.Actor) ([]leads.Lead, error)
}

type OrderLister interface {
	List(ctx context.Context, actor crm.Actor) ([]orders.Order, error)
}

type ActivityFeed interface {
	Recent(ctx context.Context, limit int) ([]activity.Entry, error)
}

// Options mirrors the dashboard.* configuration keys.
type Options struct {
	FollowUpWindowDays int
	FollowUpLimit      int
	ActivityLimit      int
}

type ServiceConfig struct {
	Leads    LeadLister
	Orders   OrderLister
	Activity ActivityFeed
	Options  Options
	Location *time.Location
	Clock    func() time.Time
	Logger   *zap.Logger
}

type Service struct {
	leads    LeadLister
	orders   OrderLister
	activity ActivityFeed
	options  Options
	location *time.Location
	clock    func() time.Time
	logger   *zap.Logger
}

// Dashboard is the payload of the landing page.
type Dashboard struct {
	Summary        analytics.Summary `json:"summary"`
	RecentActivity []activity.Entry  `json:"recent_activity"`
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Leads == nil || cfg.Orders == nil || cfg.Activity == nil {
		return nil, crm.NewServiceError(opServiceNew, "missing_source", errMissingSource)
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		leads:    cfg.Leads,
		orders:   cfg.Orders,
		activity: cfg.Activity,
		options:  cfg.Options,
		location: location,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Summary fetches the three snapshots in parallel and builds the dashboard.
// The first failing fetch cancels the others and its error is returned.
func (s *Service) Summary(ctx context.Context, actor crm.Actor) (Dashboard, error) {
	if !actor.Present() {
		return Dashboard{}, crm.NewServiceError(opSummary, "missing_actor", crm.ErrMissingActor)
	}

	var (
		leadSet  []leads.Lead
		orderSet []orders.Order
		recent   []activity.Entry
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		leadSet, err = s.leads.List(groupCtx, actor)
		return err
	})
	group.Go(func() error {
		var err error
		orderSet, err = s.orders.List(groupCtx, actor)
		return err
	})
	group.Go(func() error {
		var err error
		recent, err = s.activity.Recent(groupCtx, s.options.ActivityLimit)
		return err
	})
	if err := group.Wait(); err != nil {
		s.logger.Error("dashboard load failed", zap.String("operation", opSummary), zap.Error(err))
		return Dashboard{}, err
	}

	now := s.clock().In(s.location)
	summary := analytics.BuildSummary(leadSet, orderSet, now, analytics.Options{
		FollowUpWindowDays: s.options.FollowUpWindowDays,
		FollowUpLimit:      s.options.FollowUpLimit,
	})
	return Dashboard{Summary: summary, RecentActivity: recent}, nil
}

// Report builds the analytics report for year; zero means the current year.
func (s *Service) Report(ctx context.Context, actor crm.Actor, year int) (analytics.Report, error) {
	if !actor.Present() {
		return analytics.Report{}, crm.NewServiceError(opReport, "missing_actor", crm.ErrMissingActor)
	}
	if year == 0 {
		year = s.clock().In(s.location).Year()
	}

	var (
		leadSet  []leads.Lead
		orderSet []orders.Order
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		leadSet, err = s.leads.List(groupCtx, actor)
		return err
	})
	group.Go(func() error {
		var err error
		orderSet, err = s.orders.List(groupCtx, actor)
		return err
	})
	if err := group.Wait(); err != nil {
		s.logger.Error("report load failed", zap.String("operation", opReport), zap.Error(err))
		return analytics.Report{}, err
	}
	return analytics.BuildReport(leadSet, orderSet, year, s.location), nil
}
