package app

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reel/cmd/internal/auth/session"
)

// Metrics holds the server's Prometheus instruments on a private registry
// so tests can run many instances without collisions.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	authOperations   *prometheus.CounterVec
}

// NewMetrics builds a registry with process, Go runtime, and HTTP metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reel",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern, and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reel",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reel",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
		authOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reel",
			Subsystem: "auth",
			Name:      "operations_total",
			Help:      "Credential operations by operation and outcome.",
		}, []string{"op", "outcome"}),
	}

	reg.MustRegister(m.requestsTotal, m.requestDuration, m.requestsInFlight, m.authOperations)
	return m
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(method, route string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// AuthObserver adapts the auth operation counter to the session service's
// observer hook.
func (m *Metrics) AuthObserver() session.Observer {
	return func(op string, err error) {
		m.authOperations.WithLabelValues(op, authOutcome(err)).Inc()
	}
}

func authOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, session.ErrExpired):
		return "expired"
	case errors.Is(err, session.ErrCredentialMismatch):
		return "reused"
	case errors.Is(err, session.ErrNoCredential):
		return "no_credential"
	case errors.Is(err, session.ErrSignatureInvalid), errors.Is(err, session.ErrMalformed):
		return "invalid"
	default:
		return "error"
	}
}
