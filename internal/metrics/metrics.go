// Package metrics exposes the Prometheus collectors for the HTTP surface, the
// activity log writer and the realtime stream.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trackflow"

// Metrics groups the registered collectors. A nil *Metrics, or one built with
// a nil registerer, records nothing.
type Metrics struct {
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	activityRecorded *prometheus.CounterVec
	activityFailures *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	activityRecorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activity_recorded_total",
		Help:      "Audit entries written.",
	}, []string{"action", "entity_type"})
	activityFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activity_write_failures_total",
		Help:      "Audit writes that failed and were dropped.",
	}, []string{"entity_type"})
	reg.MustRegister(requests, requestDuration, activityRecorded, activityFailures)
	return &Metrics{
		requests:         requests,
		requestDuration:  requestDuration,
		activityRecorded: activityRecorded,
		activityFailures: activityFailures,
	}
}

// RegisterSubscriberGauge exposes the live realtime subscription count.
func RegisterSubscriberGauge(reg prometheus.Registerer, count func() int) {
	if reg == nil || count == nil {
		return
	}
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_subscribers",
		Help:      "Live realtime event subscriptions.",
	}, func() float64 {
		return float64(count())
	}))
}

func (m *Metrics) IncActivityRecorded(action, entityType string) {
	if m == nil || m.activityRecorded == nil {
		return
	}
	m.activityRecorded.WithLabelValues(normalizeLabel(action), normalizeLabel(entityType)).Inc()
}

func (m *Metrics) IncActivityFailure(entityType string) {
	if m == nil || m.activityFailures == nil {
		return
	}
	m.activityFailures.WithLabelValues(normalizeLabel(entityType)).Inc()
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	route = normalizeLabel(route)
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware observes every request under its matched route template so ids
// do not explode label cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
