package observability

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/piwi3910/msolo/internal/lcmerr"
)

const (
	// Metric status labels.
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds the gateway-level Prometheus metrics. Backend HTTP calls,
// token cache lookups and notification delivery are counted by their own
// packages.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Driver metrics
	DriverOperationsTotal   *prometheus.CounterVec
	DriverOperationDuration *prometheus.HistogramVec
	DriverErrorsTotal       *prometheus.CounterVec

	// Repository metrics
	RepositoryOperationsTotal   *prometheus.CounterVec
	RepositoryOperationDuration *prometheus.HistogramVec

	// NotificationsReceivedTotal counts notifications pushed by backends.
	NotificationsReceivedTotal *prometheus.CounterVec
}

var (
	// globalMetrics is the singleton metrics instance.
	globalMetrics *Metrics
)

// InitMetrics initializes and registers all Prometheus metrics.
// Returns the existing metrics instance if already initialized (idempotent).
func InitMetrics(namespace string) *Metrics {
	if globalMetrics != nil {
		return globalMetrics
	}

	if namespace == "" {
		namespace = "msolo"
	}

	m := &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),

		HTTPResponseSizeBytes: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		DriverOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "driver_operations_total",
				Help:      "Total number of driver operations",
			},
			[]string{"backend", "operation", "status"},
		),

		DriverOperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "driver_operation_duration_seconds",
				Help:      "Driver operation latency in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"backend", "operation"},
		),

		DriverErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "driver_errors_total",
				Help:      "Total number of driver errors by error kind",
			},
			[]string{"backend", "operation", "kind"},
		),

		RepositoryOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "repository_operations_total",
				Help:      "Total number of repository operations",
			},
			[]string{"operation", "status"},
		),

		RepositoryOperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "repository_operation_duration_seconds",
				Help:      "Repository operation latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		NotificationsReceivedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_received_total",
				Help:      "Total number of notifications pushed by backends",
			},
			[]string{"status"},
		),
	}

	globalMetrics = m
	return m
}

// GetMetrics returns the global metrics instance.
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		panic("metrics not initialized - call InitMetrics first")
	}
	return globalMetrics
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, responseSize int) {
	status := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	m.HTTPResponseSizeBytes.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordDriverOperation records one driver call. Failures are also counted
// by their error kind.
func (m *Metrics) RecordDriverOperation(backend, operation string, duration time.Duration, err error) {
	status := statusSuccess
	if err != nil {
		status = statusError
		m.DriverErrorsTotal.WithLabelValues(backend, operation, ErrorKind(err)).Inc()
	}
	m.DriverOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	m.DriverOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordRepositoryOperation records repository operation metrics.
func (m *Metrics) RecordRepositoryOperation(operation string, duration time.Duration, err error) {
	status := statusSuccess
	if err != nil {
		status = statusError
	}
	m.RepositoryOperationsTotal.WithLabelValues(operation, status).Inc()
	m.RepositoryOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordNotificationReceived records a pushed notification.
func (m *Metrics) RecordNotificationReceived(accepted bool) {
	status := "accepted"
	if !accepted {
		status = "rejected"
	}
	m.NotificationsReceivedTotal.WithLabelValues(status).Inc()
}

// HTTPInFlightInc increments the in-flight HTTP request counter.
func (m *Metrics) HTTPInFlightInc() {
	m.HTTPRequestsInFlight.Inc()
}

// HTTPInFlightDec decrements the in-flight HTTP request counter.
func (m *Metrics) HTTPInFlightDec() {
	m.HTTPRequestsInFlight.Dec()
}

// ErrorKind returns a short label for the taxonomy kind of err.
func ErrorKind(err error) string {
	kinds := []struct {
		target error
		label  string
	}{
		{lcmerr.ErrResourceNotFound, "not_found"},
		{lcmerr.ErrBadRequest, "bad_request"},
		{lcmerr.ErrUnauthorized, "unauthorized"},
		{lcmerr.ErrForbidden, "forbidden"},
		{lcmerr.ErrNotImplemented, "not_implemented"},
		{lcmerr.ErrConflict, "conflict"},
		{lcmerr.ErrMethodNotAllowed, "method_not_allowed"},
		{lcmerr.ErrUnprocessable, "unprocessable"},
		{lcmerr.ErrServerError, "server_error"},
	}
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.label
		}
	}
	return "unknown"
}
