// ABOUTME: Prometheus collectors for backend requests and console sessions
// ABOUTME: Implements backend.Observer and serves the /metrics endpoint

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/posible/posible-admin/internal/backend"
)

const namespace = "posible"

// Outcome labels for backend requests.
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
	OutcomeStatus    = "status_error"
	OutcomeAPI       = "api_error"
	OutcomeOther     = "error"
)

// BackendMetrics holds the collectors for one registry.
type BackendMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	LoginsTotal     *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
	DegradedLoads   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. A nil reg means the default
// registry.
func New(reg *prometheus.Registry) *BackendMetrics {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	factory := promauto.With(registerer)

	return &BackendMetrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Backend API requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend API request latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		LoginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "console",
			Name:      "logins_total",
			Help:      "Console login attempts by result.",
		}, []string{"result"}), // result: success, failure
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "console",
			Name:      "active_sessions",
			Help:      "Browser sessions currently held by the console.",
		}),
		DegradedLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "degraded_figures_total",
			Help:      "Dashboard figures that fell back to zero.",
		}, []string{"figure"}),
		gatherer: gatherer,
	}
}

// ObserveRequest records one backend call.
func (m *BackendMetrics) ObserveRequest(op string, status int, err error, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(op, Classify(err)).Inc()
	m.RequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveLogin counts a login attempt.
func (m *BackendMetrics) ObserveLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

// ObserveDegraded counts dashboard figures that could not be loaded.
func (m *BackendMetrics) ObserveDegraded(figures []string) {
	for _, f := range figures {
		m.DegradedLoads.WithLabelValues(f).Inc()
	}
}

// SetActiveSessions records how many browser sessions the console holds.
func (m *BackendMetrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *BackendMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Classify maps a backend error to an outcome label.
func Classify(err error) string {
	var (
		transportErr *backend.TransportError
		statusErr    *backend.StatusError
		apiErr       *backend.APIError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &transportErr):
		return OutcomeTransport
	case errors.As(err, &statusErr):
		return OutcomeStatus
	case errors.As(err, &apiErr):
		return OutcomeAPI
	default:
		return OutcomeOther
	}
}

var _ backend.Observer = (*BackendMetrics)(nil)
