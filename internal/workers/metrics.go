package workers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsQueuedTotal tracks notifications appended to the stream.
	NotificationsQueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msolo_notifications_queued_total",
			Help: "Total number of notifications appended to the notification stream",
		},
		[]string{"status"},
	)

	// NotificationsProcessedTotal tracks stream messages handled by dispatch workers.
	NotificationsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msolo_notifications_processed_total",
			Help: "Total number of notification stream messages processed",
		},
		[]string{"status"},
	)

	// DispatchLatency tracks the time spent dispatching one notification.
	DispatchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "msolo_notification_dispatch_latency_seconds",
			Help:    "Notification dispatch latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
	)

	// DeadLetterQueueTotal tracks notifications moved to the dead letter stream.
	DeadLetterQueueTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "msolo_notifications_dlq_total",
			Help: "Total number of notifications moved to the dead letter stream",
		},
	)

	// PollerRunsTotal tracks scheduled reconciliation passes.
	PollerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "msolo_poller_runs_total",
			Help: "Total number of scheduled reconciliation passes",
		},
	)

	// VimSyncRunsTotal tracks VIM account sync passes by outcome.
	VimSyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msolo_vim_sync_runs_total",
			Help: "Total number of VIM account sync passes",
		},
		[]string{"status"},
	)

	// VimAccountsRegisteredTotal tracks VIM accounts created in the repository.
	VimAccountsRegisteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "msolo_vim_accounts_registered_total",
			Help: "Total number of VIM accounts registered in the repository",
		},
	)

	// ActiveWorkersGauge tracks the current number of dispatch workers.
	ActiveWorkersGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "msolo_active_dispatch_workers",
			Help: "Current number of active notification dispatch worker goroutines",
		},
	)
)
