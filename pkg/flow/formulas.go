// Package flow implements the nonlinear pressure-area model of a compliant
// vessel: the characteristic decomposition into Riemann invariants, the
// upwind-flux evaluator that couples vessels at junctions and boundaries, and
// the explicit strong-stability-preserving time integrator.
package flow

import "math"

// VesselParameters is the subset of the physical data entering the
// characteristic decomposition.
type VesselParameters struct {
	G0  float64
	A0  float64
	Rho float64
}

// C0 returns the characteristic wave speed sqrt(G0/(2 rho)) at the
// unstressed area.
func C0(g0, rho float64) float64 {
	return math.Sqrt(g0 / (2 * rho))
}

// StaticPressure returns the transmural pressure G0*(sqrt(A/A0) - 1).
func StaticPressure(a, g0, a0 float64) float64 {
	return g0 * (math.Sqrt(a/a0) - 1)
}

// AreaFromStaticPressure inverts StaticPressure.
func AreaFromStaticPressure(p, g0, a0 float64) float64 {
	s := 1 + p/g0
	return a0 * s * s
}

// TotalPressure returns the static plus dynamic pressure,
// p(A) + rho/2 * (Q/A)^2.
func TotalPressure(q, a, g0, rho, a0 float64) float64 {
	u := q / a
	return StaticPressure(a, g0, a0) + 0.5*rho*u*u
}

// W1 returns the backward-traveling Riemann invariant
// -Q/A + 4 c0 (A/A0)^(1/4).
func W1(q, a, g0, rho, a0 float64) float64 {
	return -q/a + 4*C0(g0, rho)*math.Pow(a/a0, 0.25)
}

// W2 returns the forward-traveling Riemann invariant
// +Q/A + 4 c0 (A/A0)^(1/4).
func W2(q, a, g0, rho, a0 float64) float64 {
	return q/a + 4*C0(g0, rho)*math.Pow(a/a0, 0.25)
}

// SolveW12 recovers (Q, A) from a pair of Riemann invariants.
func SolveW12(w1, w2, g0, rho, a0 float64) (q, a float64) {
	c0 := C0(g0, rho)
	s := (w1 + w2) / (8 * c0)
	a = a0 * s * s * s * s
	q = a * (w2 - w1) / 2
	return q, a
}

// FluxQ returns the momentum flux Q^2/A + G0/(3 rho sqrt(A0)) * A^(3/2).
func FluxQ(q, a, g0, rho, a0 float64) float64 {
	return q*q/a + g0/(3*rho*math.Sqrt(a0))*a*math.Sqrt(a)
}

// FluxA returns the mass flux, which is the flow rate itself.
func FluxA(q float64) float64 {
	return q
}

// Friction returns the viscous momentum source
// -2 (gamma+2) pi mu Q / (rho A).
func Friction(q, a, gamma, mu, rho float64) float64 {
	return -2 * (gamma + 2) * math.Pi * mu * q / (rho * a)
}

// InflowArea back-solves the exterior area at a prescribed-inflow tip from the
// single outgoing Riemann invariant. q and a are the interior trace,
// pointsToVertex the incident vessel's orientation and qStar the forced flow
// rate, already sign-adjusted for that orientation.
func InflowArea(q, a float64, pointsToVertex bool, qStar float64, p VesselParameters) (float64, NewtonResult) {
	c0 := C0(p.G0, p.Rho)

	// outgoing invariant of the interior trace; the forced flow must ride the
	// same characteristic
	var w float64
	if pointsToVertex {
		w = W2(q, a, p.G0, p.Rho, p.A0)
	} else {
		w = W1(q, a, p.G0, p.Rho, p.A0)
	}
	sgn := 1.0
	if !pointsToVertex {
		sgn = -1.0
	}

	f := func(aUp float64) float64 {
		return w - sgn*qStar/aUp - 4*c0*math.Pow(aUp/p.A0, 0.25)
	}
	df := func(aUp float64) float64 {
		return sgn*qStar/(aUp*aUp) - c0*math.Pow(aUp, -0.75)/math.Pow(p.A0, 0.25)
	}

	res := SolveNewton(a, f, df)
	return res.Root, res
}
