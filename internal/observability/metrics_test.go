package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/piwi3910/msolo/internal/lcmerr"
)

// newTestMetrics builds unregistered collectors so tests do not collide
// with the global registry.
func newTestMetrics() *Metrics {
	counter := func(name string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "test", Name: name, Help: name}, labels)
	}
	histogram := func(name string, labels ...string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "test", Name: name, Help: name}, labels)
	}
	return &Metrics{
		HTTPRequestsTotal:           counter("http_requests_total", "method", "path", "status"),
		HTTPRequestDuration:         histogram("http_request_duration_seconds", "method", "path", "status"),
		HTTPRequestsInFlight:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "test", Name: "in_flight", Help: "in flight"}),
		HTTPResponseSizeBytes:       histogram("http_response_size_bytes", "method", "path"),
		DriverOperationsTotal:       counter("driver_operations_total", "backend", "operation", "status"),
		DriverOperationDuration:     histogram("driver_operation_duration_seconds", "backend", "operation"),
		DriverErrorsTotal:           counter("driver_errors_total", "backend", "operation", "kind"),
		RepositoryOperationsTotal:   counter("repository_operations_total", "operation", "status"),
		RepositoryOperationDuration: histogram("repository_operation_duration_seconds", "operation"),
		NotificationsReceivedTotal:  counter("notifications_received_total", "status"),
	}
}

func TestGetMetrics(t *testing.T) {
	saved := globalMetrics
	defer func() { globalMetrics = saved }()

	globalMetrics = nil
	assert.Panics(t, func() { GetMetrics() })

	globalMetrics = newTestMetrics()
	assert.Same(t, globalMetrics, GetMetrics())
	assert.Same(t, globalMetrics, InitMetrics("ignored"), "InitMetrics is idempotent")
}

func TestRecordHTTPRequest(t *testing.T) {
	m := newTestMetrics()

	m.RecordHTTPRequest("GET", "/nfvo/:orcId/ns_instances", 200, 50*time.Millisecond, 1024)

	count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/nfvo/:orcId/ns_instances", "200"))
	assert.Equal(t, float64(1), count)
}

func TestRecordDriverOperation(t *testing.T) {
	m := newTestMetrics()

	m.RecordDriverOperation("osm", "GetNs", 10*time.Millisecond, nil)
	m.RecordDriverOperation("osm", "GetNs", 5*time.Millisecond, lcmerr.NsNotFound("ns1"))
	m.RecordDriverOperation("osm", "GetNs", 5*time.Millisecond, errors.New("boom"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.DriverOperationsTotal.WithLabelValues("osm", "GetNs", "success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DriverOperationsTotal.WithLabelValues("osm", "GetNs", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DriverErrorsTotal.WithLabelValues("osm", "GetNs", "not_found")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DriverErrorsTotal.WithLabelValues("osm", "GetNs", "unknown")))
}

func TestRecordRepositoryOperation(t *testing.T) {
	m := newTestMetrics()

	m.RecordRepositoryOperation("CreateSubscription", time.Millisecond, nil)
	m.RecordRepositoryOperation("CreateSubscription", time.Millisecond, errors.New("down"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RepositoryOperationsTotal.WithLabelValues("CreateSubscription", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RepositoryOperationsTotal.WithLabelValues("CreateSubscription", "error")))
}

func TestRecordNotificationReceived(t *testing.T) {
	m := newTestMetrics()

	m.RecordNotificationReceived(true)
	m.RecordNotificationReceived(false)
	m.RecordNotificationReceived(false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationsReceivedTotal.WithLabelValues("accepted")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.NotificationsReceivedTotal.WithLabelValues("rejected")))
}

func TestHTTPInFlight(t *testing.T) {
	m := newTestMetrics()

	m.HTTPInFlightInc()
	m.HTTPInFlightInc()
	m.HTTPInFlightDec()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsInFlight))
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{lcmerr.OrchestratorNotFound("1"), "not_found"},
		{lcmerr.SubscriptionNotFound("s"), "not_found"},
		{lcmerr.BadRequest("bad"), "bad_request"},
		{lcmerr.New(lcmerr.ErrUnauthorized, "no"), "unauthorized"},
		{lcmerr.NotImplemented("ScaleNs", "ever"), "not_implemented"},
		{lcmerr.New(lcmerr.ErrConflict, "busy"), "conflict"},
		{lcmerr.ServerError("down"), "server_error"},
		{errors.New("plain"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}

func BenchmarkRecordDriverOperation(b *testing.B) {
	m := newTestMetrics()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordDriverOperation("osm", "GetNsList", time.Millisecond, nil)
	}
}
