package tokencache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msolo_token_cache_lookups_total",
			Help: "Token cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msolo_backend_logins_total",
			Help: "Backend logins performed on token cache misses",
		},
		[]string{"status"},
	)
)
