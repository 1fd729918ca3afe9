package flow

import "math"

const (
	newtonTolerance = 1.0e-10
	newtonDamping   = 0.25
	newtonMaxIter   = 250
)

// NewtonResult reports the outcome of a scalar Newton solve.
type NewtonResult struct {
	Root       float64
	Iterations int
	Residual   float64
	Converged  bool
}

// SolveNewton runs a damped Newton iteration on the residual f with
// derivative df, starting at x0. Non-convergence is reported, not an error:
// the last iterate is still returned so a simulation can proceed best-effort,
// and callers surface the miss through their diagnostics.
func SolveNewton(x0 float64, f, df func(float64) float64) NewtonResult {
	x := x0
	residual := math.Inf(1)
	iter := 0

	for iter < newtonMaxIter && residual > newtonTolerance {
		dx := -f(x) / df(x)
		x += newtonDamping * dx
		residual = math.Abs(f(x))
		iter++
	}

	return NewtonResult{
		Root:       x,
		Iterations: iter,
		Residual:   residual,
		Converged:  residual <= newtonTolerance,
	}
}
