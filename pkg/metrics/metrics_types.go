package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics of a solver run
type Registry struct {
	// Newton solver metrics
	NewtonIterations        *prometheus.HistogramVec
	NewtonNonConvergedTotal *prometheus.CounterVec
	NewtonSolvesTotal       *prometheus.CounterVec

	// Time integration metrics
	TimestepsTotal prometheus.Counter
	StageSeconds   prometheus.Histogram
	SimulationTime prometheus.Gauge

	// Communication metrics
	ExchangeRoundsTotal prometheus.Counter
	ExchangeBytes       *prometheus.CounterVec
	BarrierSeconds      prometheus.Histogram

	// Partition / layout metrics
	ActiveEdges    prometheus.Gauge
	ActiveDofs     prometheus.Gauge
	SharedVertices prometheus.Gauge

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initSolverMetrics()
	r.initCommMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
