package fem

import "fmt"

// QuadratureRule holds points and weights on the reference interval [-1, 1].
type QuadratureRule struct {
	Points  []float64
	Weights []float64
}

// Size returns the number of quadrature points.
func (q QuadratureRule) Size() int { return len(q.Points) }

// MidpointRule integrates constants exactly with a single point.
func MidpointRule() QuadratureRule {
	return QuadratureRule{
		Points:  []float64{0},
		Weights: []float64{2},
	}
}

// TrapezoidalRule places its points on the interval boundary, which makes it
// convenient for extracting boundary traces of a polynomial.
func TrapezoidalRule() QuadratureRule {
	return QuadratureRule{
		Points:  []float64{-1, 1},
		Weights: []float64{1, 1},
	}
}

// GaussRule returns the n-point Gauss-Legendre rule, exact for polynomials up
// to degree 2n-1. Supported sizes are 1 through 4.
func GaussRule(n int) QuadratureRule {
	switch n {
	case 1:
		return QuadratureRule{
			Points:  []float64{0},
			Weights: []float64{2},
		}
	case 2:
		return QuadratureRule{
			Points:  []float64{-0.5773502691896258, 0.5773502691896258},
			Weights: []float64{1, 1},
		}
	case 3:
		return QuadratureRule{
			Points:  []float64{-0.7745966692414834, 0, 0.7745966692414834},
			Weights: []float64{5.0 / 9.0, 8.0 / 9.0, 5.0 / 9.0},
		}
	case 4:
		return QuadratureRule{
			Points:  []float64{-0.8611363115940526, -0.3399810435848563, 0.3399810435848563, 0.8611363115940526},
			Weights: []float64{0.3478548451374538, 0.6521451548625461, 0.6521451548625461, 0.3478548451374538},
		}
	default:
		panic(fmt.Sprintf("fem: unsupported gauss rule size %d", n))
	}
}
