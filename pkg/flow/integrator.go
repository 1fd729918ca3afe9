package flow

import (
	"fmt"
	"time"

	"github.com/perfusion-lab/hemoflow/pkg/comm"
	"github.com/perfusion-lab/hemoflow/pkg/dofmap"
	"github.com/perfusion-lab/hemoflow/pkg/fem"
	"github.com/perfusion-lab/hemoflow/pkg/logging"
	"github.com/perfusion-lab/hemoflow/pkg/metrics"
	"github.com/perfusion-lab/hemoflow/pkg/network"
)

// Method selects the strong-stability-preserving Runge-Kutta scheme.
type Method int

const (
	// SSPRK2 is the second-order two-stage scheme (Heun with SSP averaging).
	SSPRK2 Method = iota
	// SSPRK3 is the third-order three-stage scheme.
	SSPRK3
)

// String returns the scheme name.
func (m Method) String() string {
	switch m {
	case SSPRK2:
		return "ssp-rk2"
	case SSPRK3:
		return "ssp-rk3"
	default:
		return "unknown"
	}
}

// Integrator advances the coupled system of vessel unknowns and lumped
// boundary states with an explicit SSP Runge-Kutta scheme. Each stage runs
// the upwind evaluator (including the ghost exchange), assembles the
// discontinuous-Galerkin residual per owned vessel and the ODE right hand
// side per owned lumped state, and combines the stages.
type Integrator struct {
	comm      comm.Communicator
	graph     *network.Graph
	dofMap    *dofmap.Map
	evaluator *Evaluator
	log       logging.Logger
	reg       *metrics.Registry

	method Method

	rule    fem.QuadratureRule
	element *fem.Element

	// stage scratch vectors, global length
	rhs []float64
	u1  []float64
	u2  []float64
}

// NewIntegrator creates an integrator over a finalized, partitioned graph.
// The registry may be nil to disable metrics.
func NewIntegrator(c comm.Communicator, g *network.Graph, m *dofmap.Map, method Method, reg *metrics.Registry) *Integrator {
	rule := fem.GaussRule(m.Degree() + 1)
	n := m.GlobalDofs()
	return &Integrator{
		comm:      c,
		graph:     g,
		dofMap:    m,
		evaluator: NewEvaluator(c, g, m, reg),
		log: logging.DefaultLogger().With(
			logging.Component("flow.integrator"),
			logging.Rank(c.Rank()),
		),
		reg:     reg,
		method:  method,
		rule:    rule,
		element: fem.NewElement(rule, m.Degree()),
		rhs:     make([]float64, n),
		u1:      make([]float64, n),
		u2:      make([]float64, n),
	}
}

// Evaluator returns the integrator's upwind evaluator, initialized for the
// time of the most recent stage.
func (s *Integrator) Evaluator() *Evaluator { return s.evaluator }

// Step advances u in place from t to t+tau.
func (s *Integrator) Step(t, tau float64, u []float64) error {
	if len(u) != s.dofMap.GlobalDofs() {
		return fmt.Errorf("%w: solution vector has %d entries, want %d", ErrDimensionMismatch, len(u), s.dofMap.GlobalDofs())
	}

	switch s.method {
	case SSPRK2:
		if err := s.stage(t, u, s.rhs); err != nil {
			return err
		}
		for i := range u {
			s.u1[i] = u[i] + tau*s.rhs[i]
		}
		if err := s.stage(t+tau, s.u1, s.rhs); err != nil {
			return err
		}
		for i := range u {
			u[i] = 0.5*u[i] + 0.5*(s.u1[i]+tau*s.rhs[i])
		}

	case SSPRK3:
		if err := s.stage(t, u, s.rhs); err != nil {
			return err
		}
		for i := range u {
			s.u1[i] = u[i] + tau*s.rhs[i]
		}
		if err := s.stage(t+tau, s.u1, s.rhs); err != nil {
			return err
		}
		for i := range u {
			s.u2[i] = 0.75*u[i] + 0.25*(s.u1[i]+tau*s.rhs[i])
		}
		if err := s.stage(t+0.5*tau, s.u2, s.rhs); err != nil {
			return err
		}
		for i := range u {
			u[i] = u[i]/3 + 2.0/3.0*(s.u2[i]+tau*s.rhs[i])
		}

	default:
		return fmt.Errorf("flow: unknown integration method %d", s.method)
	}

	if s.reg != nil {
		s.reg.TimestepsTotal.Inc()
		s.reg.SimulationTime.Set(t + tau)
	}
	return nil
}

// stage evaluates the semi-discrete right hand side at (t, u) into rhs.
func (s *Integrator) stage(t float64, u, rhs []float64) error {
	start := time.Now()

	if err := s.evaluator.Init(t, u); err != nil {
		return err
	}
	for i := range rhs {
		rhs[i] = 0
	}

	rank := s.comm.Rank()
	for _, eid := range s.graph.ActiveEdgeIDs(rank) {
		edge, err := s.graph.Edge(eid)
		if err != nil {
			return err
		}
		if err := s.edgeRHS(t, edge, u, rhs); err != nil {
			return err
		}
	}
	if err := s.lumpedStateRHS(t, u, rhs); err != nil {
		return err
	}

	if s.reg != nil {
		s.reg.StageSeconds.Observe(time.Since(start).Seconds())
	}
	return nil
}

// edgeRHS assembles the weak-form residual of one vessel: interior quadrature
// of the flux against the basis gradients, upwinded interface fluxes at the
// cell boundaries and the viscous friction source, scaled by the inverse of
// the diagonal mass matrix.
func (s *Integrator) edgeRHS(t float64, edge *network.Edge, u, rhs []float64) error {
	local, err := s.dofMap.LocalDofMap(edge)
	if err != nil {
		return err
	}
	param := edge.PhysicalData()
	h := param.Length / float64(local.NumMicroEdges())
	s.element.Reinit(h)

	numVertices := local.NumMicroVertices()
	qUp := make([]float64, numVertices)
	aUp := make([]float64, numVertices)
	if err := s.evaluator.FluxesOnMacroEdge(t, edge, u, qUp, aUp); err != nil {
		return err
	}

	numBasis := local.NumBasisFunctions()
	numQP := s.element.NumQuadraturePoints()
	basis := s.element.Basis()

	qIndices := make([]int, numBasis)
	aIndices := make([]int, numBasis)
	qLoc := make([]float64, numBasis)
	aLoc := make([]float64, numBasis)
	qQP := make([]float64, numQP)
	aQP := make([]float64, numQP)
	rhsQ := make([]float64, numBasis)
	rhsA := make([]float64, numBasis)
	physW := s.element.QuadratureWeights()

	for micro := 0; micro < local.NumMicroEdges(); micro++ {
		local.DofIndices(micro, 0, qIndices)
		local.DofIndices(micro, 1, aIndices)
		dofmap.ExtractDof(qIndices, u, qLoc)
		dofmap.ExtractDof(aIndices, u, aLoc)
		s.element.EvaluateDofAtQuadraturePoints(qLoc, qQP)
		s.element.EvaluateDofAtQuadraturePoints(aLoc, aQP)

		// upwinded interface fluxes
		fqL := FluxQ(qUp[micro], aUp[micro], param.G0, param.Rho, param.A0)
		fqR := FluxQ(qUp[micro+1], aUp[micro+1], param.G0, param.Rho, param.A0)
		faL := FluxA(qUp[micro])
		faR := FluxA(qUp[micro+1])

		for j := 0; j < numBasis; j++ {
			volQ, volA, srcQ := 0.0, 0.0, 0.0
			for qp := 0; qp < numQP; qp++ {
				dphi := s.element.DPhiDXi(qp, j)
				volQ += s.rule.Weights[qp] * FluxQ(qQP[qp], aQP[qp], param.G0, param.Rho, param.A0) * dphi
				volA += s.rule.Weights[qp] * FluxA(qQP[qp]) * dphi
				srcQ += physW[qp] * Friction(qQP[qp], aQP[qp], param.Gamma, param.Viscosity, param.Rho) * s.element.Phi(qp, j)
			}
			rhsQ[j] = volQ - (fqR*basis.EvalRight(j) - fqL*basis.EvalLeft(j)) + srcQ
			rhsA[j] = volA - (faR*basis.EvalRight(j) - faL*basis.EvalLeft(j))
		}

		s.element.ApplyInverseMass(rhsQ)
		s.element.ApplyInverseMass(rhsA)
		for j := 0; j < numBasis; j++ {
			rhs[qIndices[j]] = rhsQ[j]
			rhs[aIndices[j]] = rhsA[j]
		}
	}
	return nil
}

// lumpedStateRHS fills in the ODE right hand side of the boundary models with
// internal states, on the rank owning them.
func (s *Integrator) lumpedStateRHS(t float64, u, rhs []float64) error {
	rank := s.comm.Rank()
	qTip := make([]float64, 1)
	aTip := make([]float64, 1)

	for _, vid := range s.graph.ActiveVertexIDs(rank) {
		v, err := s.graph.Vertex(vid)
		if err != nil {
			return err
		}
		bc := v.BoundaryCondition()
		if bc == nil || bc.NumLumpedStates() == 0 || s.graph.OwnerRank(v) != rank {
			continue
		}
		vdm, err := s.dofMap.LocalVertexDofMap(v)
		if err != nil {
			return err
		}
		if err := s.evaluator.FluxesOnNfurcation(t, v, qTip, aTip); err != nil {
			return err
		}

		edge, err := s.graph.Edge(v.EdgeNeighbors()[0])
		if err != nil {
			return err
		}
		param := edge.PhysicalData()

		switch bc := bc.(type) {
		case network.WindkesselOutflow:
			c0 := C0(param.G0, param.Rho)
			r1 := param.Rho * c0 / param.A0
			r2 := bc.R - r1
			pc := u[vdm.DofIndices()[0]]
			pTip := StaticPressure(aTip[0], param.G0, param.A0)
			rhs[vdm.DofIndices()[0]] = ((pTip-pc)/r1 - pc/r2) / bc.C

		case network.VesselTreeOutflow:
			indices := vdm.DofIndices()
			states := make([]float64, len(indices))
			stateRHS := make([]float64, len(indices))
			dofmap.ExtractDof(indices, u, states)
			in := edge.IsPointingTo(vid)
			bc.Provider.StateRHS(t, qTip[0], aTip[0], in, param, states, stateRHS)
			for i, idx := range indices {
				rhs[idx] = stateRHS[i]
			}

		default:
			return fmt.Errorf("%w: vertex %d carries %d lumped states", ErrUnknownBoundary, vid, bc.NumLumpedStates())
		}
	}
	return nil
}

// ApplyRestState writes the unstressed rest state into the rank's entries of
// u: zero flow, the unstressed area A0 on every vessel and zero pressure in
// every lumped state.
func ApplyRestState(g *network.Graph, m *dofmap.Map, rank int, u []float64) error {
	for _, eid := range g.ActiveEdgeIDs(rank) {
		edge, err := g.Edge(eid)
		if err != nil {
			return err
		}
		local, err := m.LocalDofMap(edge)
		if err != nil {
			return err
		}
		param := edge.PhysicalData()
		indices := make([]int, local.NumBasisFunctions())
		for micro := 0; micro < local.NumMicroEdges(); micro++ {
			local.DofIndices(micro, 0, indices)
			for _, idx := range indices {
				u[idx] = 0
			}
			local.DofIndices(micro, 1, indices)
			u[indices[0]] = param.A0
			for _, idx := range indices[1:] {
				u[idx] = 0
			}
		}
	}
	for _, vid := range g.ActiveVertexIDs(rank) {
		v, err := g.Vertex(vid)
		if err != nil {
			return err
		}
		bc := v.BoundaryCondition()
		if bc == nil || bc.NumLumpedStates() == 0 || g.OwnerRank(v) != rank {
			continue
		}
		vdm, err := m.LocalVertexDofMap(v)
		if err != nil {
			return err
		}
		for _, idx := range vdm.DofIndices() {
			u[idx] = 0
		}
	}
	return nil
}
