// Package fem provides the modal Legendre discretization used on the
// micro-segments of a vessel: basis evaluation, quadrature rules and a
// per-segment element that caches shape values at the quadrature points.
//
// The basis is orthogonal on [-1, 1], so the element mass matrix is diagonal
// with entries h/(2j+1) and its inverse is applied directly instead of through
// a linear solve.
package fem

import "fmt"

// MaxDegree is the highest supported polynomial degree.
const MaxDegree = 3

// Basis is the modal Legendre basis of a fixed degree.
type Basis struct {
	degree int
}

// NewBasis returns the Legendre basis with functions P_0 through P_degree.
func NewBasis(degree int) Basis {
	if degree < 0 || degree > MaxDegree {
		panic(fmt.Sprintf("fem: unsupported basis degree %d", degree))
	}
	return Basis{degree: degree}
}

// Degree returns the polynomial degree.
func (b Basis) Degree() int { return b.degree }

// NumFunctions returns the number of basis functions, degree+1.
func (b Basis) NumFunctions() int { return b.degree + 1 }

// Eval evaluates P_j at xi in [-1, 1].
func (b Basis) Eval(j int, xi float64) float64 {
	switch j {
	case 0:
		return 1
	case 1:
		return xi
	case 2:
		return 0.5 * (3*xi*xi - 1)
	case 3:
		return 0.5 * (5*xi*xi - 3) * xi
	default:
		panic(fmt.Sprintf("fem: basis function %d out of range", j))
	}
}

// EvalDeriv evaluates dP_j/dxi at xi.
func (b Basis) EvalDeriv(j int, xi float64) float64 {
	switch j {
	case 0:
		return 0
	case 1:
		return 1
	case 2:
		return 3 * xi
	case 3:
		return 0.5 * (15*xi*xi - 3)
	default:
		panic(fmt.Sprintf("fem: basis function %d out of range", j))
	}
}

// EvalLeft returns P_j(-1), which is (-1)^j.
func (b Basis) EvalLeft(j int) float64 {
	if j%2 == 1 {
		return -1
	}
	return 1
}

// EvalRight returns P_j(+1), which is 1 for all j.
func (b Basis) EvalRight(j int) float64 { return 1 }

// MassDiagonal returns the diagonal mass matrix entry for basis function j on
// a segment of length h: integral of P_j^2 over the segment.
func (b Basis) MassDiagonal(j int, h float64) float64 {
	return h / float64(2*j+1)
}
