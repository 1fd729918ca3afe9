package network

import "math"

// BoundaryKind tags the disjoint boundary-condition variants a vertex can carry.
type BoundaryKind int

const (
	// KindBifurcation marks purely internal coupling between >= 2 vessels.
	// It is never assigned explicitly; every unclassified interior vertex is one.
	KindBifurcation BoundaryKind = iota
	// KindInflow prescribes a fixed flow-rate waveform
	KindInflow
	// KindCharacteristicInflow fixes the incoming characteristic from a (p, q) pair
	KindCharacteristicInflow
	// KindFreeOutflow is the zero-reflection characteristic condition
	KindFreeOutflow
	// KindWindkesselOutflow couples the tip to a three-element RCR model
	KindWindkesselOutflow
	// KindVesselTreeOutflow delegates to a reduced lumped-tree model
	KindVesselTreeOutflow
)

// String returns a short name for the boundary kind.
func (k BoundaryKind) String() string {
	switch k {
	case KindBifurcation:
		return "bifurcation"
	case KindInflow:
		return "inflow"
	case KindCharacteristicInflow:
		return "characteristic_inflow"
	case KindFreeOutflow:
		return "free_outflow"
	case KindWindkesselOutflow:
		return "windkessel_outflow"
	case KindVesselTreeOutflow:
		return "vessel_tree_outflow"
	default:
		return "unknown"
	}
}

// BoundaryCondition is the capability carried by a classified leaf vertex.
// Each variant carries only the parameters relevant to its kind.
type BoundaryCondition interface {
	Kind() BoundaryKind
	// NumLumpedStates is the number of internal degrees of freedom the
	// condition adds to the global solution vector.
	NumLumpedStates() int
}

// InflowFixedFlow forces the flow rate at the tip to a waveform value.
type InflowFixedFlow struct {
	// Waveform returns the prescribed flow rate at time t,
	// positive when entering the network.
	Waveform func(t float64) float64
}

func (InflowFixedFlow) Kind() BoundaryKind   { return KindInflow }
func (InflowFixedFlow) NumLumpedStates() int { return 0 }

// CharacteristicInflow fixes the incoming Riemann invariant from a constant
// exterior state given by a static pressure and a flow rate. The flow rate q is
// expressed in the incident vessel's own direction, so the same q at both tips
// of a vessel describes one through-flow.
type CharacteristicInflow struct {
	// G0, A0, Rho describe the virtual exterior vessel supplying the invariant
	G0  float64
	A0  float64
	Rho float64
	// P is the exterior static pressure
	P float64
	// Q is the exterior flow rate in edge direction
	Q float64
}

func (CharacteristicInflow) Kind() BoundaryKind   { return KindCharacteristicInflow }
func (CharacteristicInflow) NumLumpedStates() int { return 0 }

// ExteriorArea is the cross-sectional area of the exterior state,
// recovered from the prescribed static pressure.
func (c CharacteristicInflow) ExteriorArea() float64 {
	s := 1 + c.P/c.G0
	return c.A0 * s * s
}

// FreeOutflow pairs the incoming characteristic with a Riemann invariant of the
// fixed reference state (A = A0, Q = 0), yielding a non-reflecting exterior.
type FreeOutflow struct{}

func (FreeOutflow) Kind() BoundaryKind   { return KindFreeOutflow }
func (FreeOutflow) NumLumpedStates() int { return 0 }

// WindkesselOutflow is the three-element RCR lumped model. R is the total
// resistance; the proximal resistance R1 = rho*c0/A0 follows from the vessel
// and the peripheral resistance is R - R1. The capacitor pressure is an extra
// degree of freedom integrated with the global solution.
type WindkesselOutflow struct {
	R float64
	C float64
}

func (WindkesselOutflow) Kind() BoundaryKind   { return KindWindkesselOutflow }
func (WindkesselOutflow) NumLumpedStates() int { return 1 }

// TreeProvider supplies the boundary pair of a reduced vessel-tree model.
// The coupling algorithm behind it is external to this core.
type TreeProvider interface {
	// NumStates is the number of internal pressure states of the tree
	NumStates() int
	// Resolve returns the upwinded (Q, A) pair at the tip given the trace
	// values, the incident vessel's orientation and parameters, and the
	// current internal states.
	Resolve(t float64, qTrace, aTrace float64, pointsToVertex bool, p PhysicalData, states []float64) (qUp, aUp float64)
	// StateRHS fills rhs with the time derivative of the internal states.
	StateRHS(t float64, qUp, aUp float64, pointsToVertex bool, p PhysicalData, states, rhs []float64)
}

// VesselTreeOutflow delegates the tip coupling to a reduced lumped-tree model.
type VesselTreeOutflow struct {
	Provider TreeProvider
}

func (VesselTreeOutflow) Kind() BoundaryKind { return KindVesselTreeOutflow }
func (v VesselTreeOutflow) NumLumpedStates() int {
	return v.Provider.NumStates()
}

// HeartBeatInflow returns a periodic half-sine inflow waveform with the given
// peak amplitude, one heartbeat per second with a systole of 0.3 s.
func HeartBeatInflow(amplitude float64) func(t float64) float64 {
	const (
		period  = 1.0
		systole = 0.3
	)
	return func(t float64) float64 {
		tp := math.Mod(t, period)
		if tp < systole {
			return amplitude * math.Sin(math.Pi*tp/systole)
		}
		return 0
	}
}
