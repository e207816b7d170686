package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/flemzord/hlbroker/internal/approval"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hlbroker"

// Metrics holds the broker's Prometheus collectors. It observes request
// lifecycle events and HTTP traffic. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	authFailures  *prometheus.CounterVec
	created       *prometheus.CounterVec
	resolved      *prometheus.CounterVec
	notifications *prometheus.CounterVec
	escalations   *prometheus.CounterVec
	pending       *prometheus.GaugeVec
}

var _ approval.Observer = (*Metrics)(nil)

// NewMetrics creates the collectors on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		authFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "auth_failures_total",
			Help: "Rejected API authentications by error code.",
		}, []string{"code"}),
		created: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_created_total",
			Help: "Requests created by kind.",
		}, []string{"kind"}),
		resolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_resolved_total",
			Help: "Requests resolved by kind and outcome.",
		}, []string{"kind", "outcome"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_total",
			Help: "Channel notifications by kind and result.",
		}, []string{"kind", "result"}),
		escalations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "escalations_total",
			Help: "Escalations recorded by kind.",
		}, []string{"kind"}),
		pending: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pending_requests",
			Help: "Unresolved requests by kind, refreshed periodically.",
		}, []string{"kind"}),
	}
}

// Observe implements approval.Observer.
func (m *Metrics) Observe(e approval.Event) {
	kind := string(e.Kind)
	switch e.Type {
	case approval.EventCreated:
		m.created.WithLabelValues(kind).Inc()
	case approval.EventResponded:
		m.resolved.WithLabelValues(kind, outcome(e)).Inc()
	case approval.EventNotified:
		m.notifications.WithLabelValues(kind, "ok").Inc()
	case approval.EventNotifyFailed:
		m.notifications.WithLabelValues(kind, "error").Inc()
	case approval.EventEscalated:
		m.escalations.WithLabelValues(kind).Inc()
	}
}

func outcome(e approval.Event) string {
	switch {
	case e.Approved == nil:
		return "responded"
	case *e.Approved:
		return "approved"
	default:
		return "denied"
	}
}

// SetPending records the current number of unresolved requests.
func (m *Metrics) SetPending(p approval.Pending) {
	m.pending.WithLabelValues(string(approval.KindFunctionCall)).Set(float64(p.FunctionCalls))
	m.pending.WithLabelValues(string(approval.KindHumanContact)).Set(float64(p.HumanContacts))
}

func (m *Metrics) observeHTTP(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) authFailure(code string) {
	m.authFailures.WithLabelValues(code).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
