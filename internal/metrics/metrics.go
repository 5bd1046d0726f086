package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeEmpty   = "empty"
	OutcomeShared  = "shared"
)

// Metrics holds the console's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RefreshTotal      *prometheus.CounterVec
	RetryTotal        prometheus.Counter
	ForcedLogoutTotal *prometheus.CounterVec
	ProfileSyncTotal  *prometheus.CounterVec
	GuardDeniedTotal  *prometheus.CounterVec
	HTTPRequestsTotal *prometheus.CounterVec
	UpstreamDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_session_refresh_total",
			Help: "Session refresh attempts by outcome.",
		}, []string{"outcome"}),
		RetryTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "console_request_retry_total",
			Help: "Requests re-issued after a successful refresh.",
		}),
		ForcedLogoutTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_forced_logout_total",
			Help: "Logouts forced by the gateway or the profile reconciler.",
		}, []string{"reason"}),
		ProfileSyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_profile_sync_total",
			Help: "Profile reconciliation results.",
		}, []string{"result"}),
		GuardDeniedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_guard_denied_total",
			Help: "Guarded routes denied by permission checks.",
		}, []string{"module"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_http_requests_total",
			Help: "Console HTTP requests.",
		}, []string{"method", "status"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "console_upstream_request_duration_seconds",
			Help:    "Duration of backend calls made through the gateway.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RefreshTotal,
		m.RetryTotal,
		m.ForcedLogoutTotal,
		m.ProfileSyncTotal,
		m.GuardDeniedTotal,
		m.HTTPRequestsTotal,
		m.UpstreamDuration,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.RetryTotal.Inc()
}

func (m *Metrics) ForcedLogout(reason string) {
	if m == nil {
		return
	}
	m.ForcedLogoutTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) ProfileSync(result string) {
	if m == nil {
		return
	}
	m.ProfileSyncTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) GuardDenied(module string) {
	if m == nil {
		return
	}
	m.GuardDeniedTotal.WithLabelValues(module).Inc()
}

func (m *Metrics) HTTPRequest(method string, status string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, status).Inc()
}

func (m *Metrics) Upstream(method string, seconds float64) {
	if m == nil {
		return
	}
	m.UpstreamDuration.WithLabelValues(method).Observe(seconds)
}
