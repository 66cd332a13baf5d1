package backend

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallsTotal counts backend calls by method and status code. Transport
	// failures are recorded with status "0".
	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msolo_backend_calls_total",
			Help: "Total number of backend orchestrator calls",
		},
		[]string{"method", "status"},
	)

	// CallDuration tracks backend call latency.
	CallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "msolo_backend_call_duration_seconds",
			Help:    "Backend orchestrator call latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method"},
	)
)

func recordCall(method string, status int, duration time.Duration) {
	CallsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	CallDuration.WithLabelValues(method).Observe(duration.Seconds())
}
