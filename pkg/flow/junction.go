package flow

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	junctionTolerance = 1.0e-10
	junctionMaxIter   = 100
)

// nfurcationSystem is the nonlinear system coupling n vessels at a shared
// vertex. The unknowns are the upwinded areas A_i; each flow Q_i follows from
// the vessel's fixed outgoing Riemann invariant. The equations are n-1
// total-pressure continuity conditions plus conservation of mass.
type nfurcationSystem struct {
	params    []VesselParameters
	pointsTo  []bool
	invariant []float64 // W2 for vessels pointing into the vertex, W1 otherwise
}

func (s *nfurcationSystem) flow(i int, a float64) float64 {
	p := s.params[i]
	c0 := C0(p.G0, p.Rho)
	r := 4 * c0 * math.Pow(a/p.A0, 0.25)
	if s.pointsTo[i] {
		return a * (s.invariant[i] - r)
	}
	return a * (r - s.invariant[i])
}

func (s *nfurcationSystem) dFlowDA(i int, a float64) float64 {
	p := s.params[i]
	c0 := C0(p.G0, p.Rho)
	r := 5 * c0 * math.Pow(a/p.A0, 0.25)
	if s.pointsTo[i] {
		return s.invariant[i] - r
	}
	return r - s.invariant[i]
}

func (s *nfurcationSystem) totalPressure(i int, a float64) float64 {
	p := s.params[i]
	return TotalPressure(s.flow(i, a), a, p.G0, p.Rho, p.A0)
}

func (s *nfurcationSystem) dTotalPressureDA(i int, a float64) float64 {
	p := s.params[i]
	q := s.flow(i, a)
	u := q / a
	du := (s.dFlowDA(i, a) - u) / a
	return p.G0/(2*math.Sqrt(a*p.A0)) + p.Rho*u*du
}

// signedFlow is the flow oriented out of the vertex's perspective: positive
// for vessels pointing into the vertex.
func (s *nfurcationSystem) signedFlow(i int, a float64) float64 {
	if s.pointsTo[i] {
		return s.flow(i, a)
	}
	return -s.flow(i, a)
}

func (s *nfurcationSystem) residual(a []float64, f *mat.VecDense) {
	n := len(a)
	p0 := s.totalPressure(0, a[0])
	for k := 1; k < n; k++ {
		f.SetVec(k-1, s.totalPressure(k, a[k])-p0)
	}
	mass := 0.0
	for i := 0; i < n; i++ {
		mass += s.signedFlow(i, a[i])
	}
	f.SetVec(n-1, mass)
}

func (s *nfurcationSystem) jacobian(a []float64, jac *mat.Dense) {
	n := len(a)
	jac.Zero()
	dp0 := s.dTotalPressureDA(0, a[0])
	for k := 1; k < n; k++ {
		jac.Set(k-1, 0, -dp0)
		jac.Set(k-1, k, s.dTotalPressureDA(k, a[k]))
	}
	for i := 0; i < n; i++ {
		dq := s.dFlowDA(i, a[i])
		if !s.pointsTo[i] {
			dq = -dq
		}
		jac.Set(n-1, i, dq)
	}
}

// SolveAtNfurcation resolves the coupled upwind state of n >= 2 vessels
// meeting at a vertex. q and a are the boundary traces of each vessel at the
// vertex, params its parameters and pointsToVertex its orientation. The
// upwinded pairs are written to qUp and aUp.
func SolveAtNfurcation(q, a []float64, params []VesselParameters, pointsToVertex []bool, qUp, aUp []float64) (NewtonResult, error) {
	n := len(a)
	if len(q) != n || len(params) != n || len(pointsToVertex) != n || len(qUp) != n || len(aUp) != n || n < 2 {
		return NewtonResult{}, fmt.Errorf("%w: %d vessels", ErrDimensionMismatch, n)
	}

	sys := &nfurcationSystem{
		params:    params,
		pointsTo:  pointsToVertex,
		invariant: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		p := params[i]
		if pointsToVertex[i] {
			sys.invariant[i] = W2(q[i], a[i], p.G0, p.Rho, p.A0)
		} else {
			sys.invariant[i] = W1(q[i], a[i], p.G0, p.Rho, p.A0)
		}
	}

	x := make([]float64, n)
	copy(x, a)

	f := mat.NewVecDense(n, nil)
	jac := mat.NewDense(n, n, nil)
	dx := mat.NewVecDense(n, nil)
	var lu mat.LU

	residual := math.Inf(1)
	iter := 0
	for iter < junctionMaxIter && residual > junctionTolerance {
		sys.residual(x, f)
		sys.jacobian(x, jac)

		lu.Factorize(jac)
		f.ScaleVec(-1, f)
		if err := lu.SolveVecTo(dx, false, f); err != nil {
			return NewtonResult{}, fmt.Errorf("%w: %v", ErrSingularSystem, err)
		}

		// halve the step until all areas stay positive
		scale := 1.0
		for {
			ok := true
			for i := 0; i < n; i++ {
				if x[i]+scale*dx.AtVec(i) <= 0 {
					ok = false
					break
				}
			}
			if ok {
				break
			}
			scale *= 0.5
		}
		for i := 0; i < n; i++ {
			x[i] += scale * dx.AtVec(i)
		}

		sys.residual(x, f)
		residual = mat.Norm(f, math.Inf(1))
		iter++
	}

	for i := 0; i < n; i++ {
		aUp[i] = x[i]
		qUp[i] = sys.flow(i, x[i])
	}

	return NewtonResult{
		Iterations: iter,
		Residual:   residual,
		Converged:  residual <= junctionTolerance,
	}, nil
}
