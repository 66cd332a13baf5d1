package notifications

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconcilePassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "msolo",
			Subsystem: "reconciler",
			Name:      "passes_total",
			Help:      "Total number of reconciliation passes",
		},
	)

	reconcilePollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msolo",
			Subsystem: "reconciler",
			Name:      "polls_total",
			Help:      "Total number of orchestrator operation-list polls",
		},
		[]string{"type", "backend", "result"},
	)

	reconcileEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msolo",
			Subsystem: "reconciler",
			Name:      "emitted_total",
			Help:      "Total number of notification events emitted on operation state changes",
		},
		[]string{"operation_state"},
	)

	reconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "msolo",
			Subsystem: "reconciler",
			Name:      "pass_duration_seconds",
			Help:      "Reconciliation pass duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msolo",
			Subsystem: "notifications",
			Name:      "delivered_total",
			Help:      "Total number of notification deliveries by result",
		},
		[]string{"result"},
	)

	deliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "msolo",
			Subsystem: "notifications",
			Name:      "delivery_duration_seconds",
			Help:      "Callback delivery duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"result"},
	)

	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "msolo",
			Subsystem: "notifications",
			Name:      "circuit_breaker_state",
			Help:      "Callback circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"callback"},
	)
)

// RecordPoll records one orchestrator poll outcome.
func RecordPoll(orchType, backendType, result string) {
	reconcilePollsTotal.WithLabelValues(orchType, backendType, result).Inc()
}

// RecordEmitted records an emitted notification event.
func RecordEmitted(state string) {
	reconcileEmittedTotal.WithLabelValues(state).Inc()
}

// RecordDelivery records one callback delivery.
func RecordDelivery(result string, seconds float64) {
	deliveriesTotal.WithLabelValues(result).Inc()
	deliveryDuration.WithLabelValues(result).Observe(seconds)
}

// RecordCircuitBreakerState records the state of a callback circuit breaker.
func RecordCircuitBreakerState(callback string, state float64) {
	circuitBreakerState.WithLabelValues(callback).Set(state)
}
