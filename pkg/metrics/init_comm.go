package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCommMetrics() {
	r.ExchangeRoundsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hemoflow_exchange_rounds_total",
			Help: "Completed bulk-synchronous exchange rounds",
		},
	)

	r.ExchangeBytes = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hemoflow_exchange_bytes_total",
			Help: "Compressed bytes moved through the ghost exchange",
		},
		[]string{"direction"}, // sent, received
	)

	r.BarrierSeconds = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hemoflow_barrier_seconds",
			Help:    "Wall time spent waiting for other ranks",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		},
	)
}
