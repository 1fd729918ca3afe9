package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSolverMetrics() {
	r.NewtonIterations = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hemoflow_newton_iterations",
			Help:    "Iterations per nonlinear boundary solve",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 250},
		},
		[]string{"boundary"}, // windkessel, inflow, nfurcation
	)

	r.NewtonNonConvergedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hemoflow_newton_nonconverged_total",
			Help: "Nonlinear boundary solves that hit the iteration cap",
		},
		[]string{"boundary"},
	)

	r.NewtonSolvesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hemoflow_newton_solves_total",
			Help: "Total nonlinear boundary solves",
		},
		[]string{"boundary"},
	)

	r.TimestepsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hemoflow_timesteps_total",
			Help: "Completed time steps",
		},
	)

	r.StageSeconds = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hemoflow_stage_seconds",
			Help:    "Wall time per Runge-Kutta stage",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		},
	)

	r.SimulationTime = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hemoflow_simulation_time",
			Help: "Current simulation time",
		},
	)

	r.ActiveEdges = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hemoflow_active_edges",
			Help: "Macro-edges owned by this rank",
		},
	)

	r.ActiveDofs = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hemoflow_active_dofs",
			Help: "Degrees of freedom owned by this rank",
		},
	)

	r.SharedVertices = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hemoflow_shared_vertices",
			Help: "Vertices shared with neighboring ranks",
		},
	)
}

// ObserveNewtonSolve records one nonlinear boundary solve.
func (r *Registry) ObserveNewtonSolve(boundary string, iterations int, converged bool) {
	r.NewtonSolvesTotal.WithLabelValues(boundary).Inc()
	r.NewtonIterations.WithLabelValues(boundary).Observe(float64(iterations))
	if !converged {
		r.NewtonNonConvergedTotal.WithLabelValues(boundary).Inc()
	}
}
