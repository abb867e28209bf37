package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsTotal       *prometheus.CounterVec
	TokenVerificationsTotal *prometheus.CounterVec
	OAuthCallDuration       *prometheus.HistogramVec

	// Storage metrics
	StorageOperationsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubgate_auth_attempts_total",
				Help: "Authentication attempts by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		TokenVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubgate_token_verifications_total",
				Help: "Session token verifications by result",
			},
			[]string{"result"},
		),
		OAuthCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubgate_oauth_call_duration_seconds",
				Help:    "Duration of outbound OAuth provider calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubgate_storage_operations_total",
				Help: "Total number of user store operations",
			},
			[]string{"operation", "status"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthAttemptsTotal,
		m.TokenVerificationsTotal,
		m.OAuthCallDuration,
		m.StorageOperationsTotal,
	)

	return m
}

// Handler returns an HTTP handler that serves the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAuthAttempt records the outcome of an authentication attempt
func (m *Metrics) RecordAuthAttempt(strategy, outcome string) {
	m.AuthAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
}

// RecordTokenVerification records the result of a session token verification
func (m *Metrics) RecordTokenVerification(result string) {
	m.TokenVerificationsTotal.WithLabelValues(result).Inc()
}

// ObserveOAuthCall records the duration of one outbound provider call
func (m *Metrics) ObserveOAuthCall(operation string, duration time.Duration) {
	m.OAuthCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordStorageOperation records a user store operation
func (m *Metrics) RecordStorageOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.StorageOperationsTotal.WithLabelValues(operation, status).Inc()
}

// statusRecorder captures the response status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware instruments an HTTP handler with request metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration.Seconds())
	})
}
