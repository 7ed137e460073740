package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for auth_operations_total.
const (
	outcomeSuccess            = "success"
	outcomeValidation         = "validation_error"
	outcomeDuplicateEmail     = "duplicate_email"
	outcomeInvalidCredentials = "invalid_credentials"
	outcomeInvalidToken       = "invalid_token"
	outcomeStoreFailure       = "store_failure"
	outcomeInternal           = "internal_error"
)

// Metrics holds the Prometheus collectors of the HTTP layer.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	AuthOperationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upframer_auth_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upframer_auth_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "route"},
		),
		AuthOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upframer_auth_operations_total",
				Help: "Register, login and token checks by outcome",
			},
			[]string{"operation", "outcome"},
		),
	}

	registry.MustRegister(m.HTTPRequestsTotal, m.HTTPRequestDuration, m.AuthOperationsTotal)
	return m
}

func (m *Metrics) observeOperation(operation, outcome string) {
	m.AuthOperationsTotal.WithLabelValues(operation, outcome).Inc()
}
