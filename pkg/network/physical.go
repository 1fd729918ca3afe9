package network

import "math"

// Point is a position of the embedded network in 3D space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PhysicalData holds the immutable physical parameters of one vessel.
// It is set once before the first time step and never mutated afterwards.
type PhysicalData struct {
	// G0 is the reference wall stiffness coefficient
	G0 float64
	// A0 is the unstressed cross-sectional area
	A0 float64
	// Rho is the fluid density
	Rho float64
	// Length of the macro-edge
	Length float64
	// Viscosity of the fluid; zero disables the friction term
	Viscosity float64
	// Gamma is the exponent of the velocity profile used in the friction term
	Gamma float64
	// Radius is the unstressed vessel radius
	Radius float64
}

// CalculateG0 derives the wall stiffness coefficient from the wall thickness h,
// the elastic modulus E and the unstressed area A0.
func CalculateG0(wallThickness, elasticModulus, a0 float64) float64 {
	return 4.0 / 3.0 * math.Sqrt(math.Pi) * elasticModulus * wallThickness / math.Sqrt(a0)
}

// NewPhysicalData assembles vessel parameters from measured quantities.
func NewPhysicalData(elasticModulus, wallThickness, density, gamma, radius, length float64) PhysicalData {
	a0 := math.Pi * radius * radius
	return PhysicalData{
		G0:     CalculateG0(wallThickness, elasticModulus, a0),
		A0:     a0,
		Rho:    density,
		Length: length,
		Gamma:  gamma,
		Radius: radius,
	}
}
