package fem

// Element caches the basis values of one micro-segment at the points of a
// quadrature rule. Reinit rebinds it to a segment length; the reference-space
// shape values are shared between segments and only the metric terms change.
type Element struct {
	basis Basis
	rule  QuadratureRule

	h float64

	phi     [][]float64 // [qp][j] P_j at the quadrature points
	dphiDXi [][]float64 // [qp][j] dP_j/dxi at the quadrature points
	weights []float64   // physical-space quadrature weights, h/2 * w
}

// NewElement builds an element for the given rule and degree. Reinit must be
// called before the physical-space accessors are used.
func NewElement(rule QuadratureRule, degree int) *Element {
	basis := NewBasis(degree)
	e := &Element{
		basis:   basis,
		rule:    rule,
		phi:     make([][]float64, rule.Size()),
		dphiDXi: make([][]float64, rule.Size()),
		weights: make([]float64, rule.Size()),
	}
	for q, xi := range rule.Points {
		e.phi[q] = make([]float64, basis.NumFunctions())
		e.dphiDXi[q] = make([]float64, basis.NumFunctions())
		for j := 0; j < basis.NumFunctions(); j++ {
			e.phi[q][j] = basis.Eval(j, xi)
			e.dphiDXi[q][j] = basis.EvalDeriv(j, xi)
		}
	}
	return e
}

// Reinit rebinds the element to a micro-segment of length h.
func (e *Element) Reinit(h float64) {
	e.h = h
	for q, w := range e.rule.Weights {
		e.weights[q] = 0.5 * h * w
	}
}

// Basis returns the underlying basis.
func (e *Element) Basis() Basis { return e.basis }

// NumQuadraturePoints returns the size of the quadrature rule.
func (e *Element) NumQuadraturePoints() int { return e.rule.Size() }

// QuadraturePoints returns the rule's reference-space points.
func (e *Element) QuadraturePoints() []float64 { return e.rule.Points }

// QuadratureWeights returns the physical-space weights of the current segment.
func (e *Element) QuadratureWeights() []float64 { return e.weights }

// Phi returns P_j at quadrature point q.
func (e *Element) Phi(q, j int) float64 { return e.phi[q][j] }

// DPhiDXi returns dP_j/dxi at quadrature point q.
func (e *Element) DPhiDXi(q, j int) float64 { return e.dphiDXi[q][j] }

// EvaluateDofAtQuadraturePoints reconstructs the polynomial with the given
// coefficients at all quadrature points. out must have NumQuadraturePoints
// entries.
func (e *Element) EvaluateDofAtQuadraturePoints(dofs, out []float64) {
	for q := range out {
		v := 0.0
		for j, c := range dofs {
			v += c * e.phi[q][j]
		}
		out[q] = v
	}
}

// EvaluateDofAtBoundaryPoints reconstructs the polynomial at the segment
// boundaries xi = -1 and xi = +1.
func (e *Element) EvaluateDofAtBoundaryPoints(dofs []float64) (left, right float64) {
	for j, c := range dofs {
		left += c * e.basis.EvalLeft(j)
		right += c * e.basis.EvalRight(j)
	}
	return left, right
}

// EvaluateDofAt reconstructs the polynomial at an arbitrary reference point.
func (e *Element) EvaluateDofAt(dofs []float64, xi float64) float64 {
	v := 0.0
	for j, c := range dofs {
		v += c * e.basis.Eval(j, xi)
	}
	return v
}

// ApplyInverseMass scales a weak-form right hand side by the inverse of the
// diagonal mass matrix of the current segment, in place.
func (e *Element) ApplyInverseMass(rhs []float64) {
	for j := range rhs {
		rhs[j] /= e.basis.MassDiagonal(j, e.h)
	}
}

// ProjectConstant returns the modal coefficients representing a constant
// value: the mean mode carries it, all higher modes are zero.
func ProjectConstant(value float64, degree int, out []float64) {
	out[0] = value
	for j := 1; j <= degree; j++ {
		out[j] = 0
	}
}
