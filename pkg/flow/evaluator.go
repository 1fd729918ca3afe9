package flow

import (
	"fmt"
	"math"

	"github.com/perfusion-lab/hemoflow/pkg/comm"
	"github.com/perfusion-lab/hemoflow/pkg/dofmap"
	"github.com/perfusion-lab/hemoflow/pkg/fem"
	"github.com/perfusion-lab/hemoflow/pkg/logging"
	"github.com/perfusion-lab/hemoflow/pkg/metrics"
	"github.com/perfusion-lab/hemoflow/pkg/network"
)

// Evaluator computes the upwinded (Q, A) interface values of the whole
// network for one point in time. Init extracts the macro-edge boundary traces
// of the rank's own vessels, synchronizes them across ranks and resolves the
// junction and boundary coupling; afterwards the per-edge and per-vertex
// accessors serve the cached values for exactly that time.
type Evaluator struct {
	comm   comm.Communicator
	graph  *network.Graph
	dofMap *dofmap.Map
	log    logging.Logger
	reg    *metrics.Registry

	// boundary traces of every edge, left tip at 2*id, right tip at 2*id+1
	qBoundary []float64
	aBoundary []float64

	// resolved upwind values at the macro-edge tips
	fluxQL []float64
	fluxQR []float64
	fluxAL []float64
	fluxAR []float64

	element *fem.Element

	currentTime float64
}

// NewEvaluator creates an upwind-flux evaluator over a finalized, partitioned
// graph. The registry may be nil to disable metrics.
func NewEvaluator(c comm.Communicator, g *network.Graph, m *dofmap.Map, reg *metrics.Registry) *Evaluator {
	n := g.NumEdges()
	return &Evaluator{
		comm:   c,
		graph:  g,
		dofMap: m,
		log: logging.DefaultLogger().With(
			logging.Component("flow.evaluator"),
			logging.Rank(c.Rank()),
		),
		reg:         reg,
		qBoundary:   make([]float64, 2*n),
		aBoundary:   make([]float64, 2*n),
		fluxQL:      make([]float64, n),
		fluxQR:      make([]float64, n),
		fluxAL:      make([]float64, n),
		fluxAR:      make([]float64, n),
		element:     fem.NewElement(fem.MidpointRule(), m.Degree()),
		currentTime: math.NaN(),
	}
}

// Init caches the interface values for time t from the solution uPrev. It
// must be called once per stage before any flux accessor; the accessors
// reject other times.
func (e *Evaluator) Init(t float64, uPrev []float64) error {
	e.currentTime = t

	local, err := e.evaluateMacroEdgeBoundaryValues(uPrev)
	if err != nil {
		return err
	}
	merged, err := comm.ExchangeTraces(e.comm, local, e.reg)
	if err != nil {
		return fmt.Errorf("flow: ghost exchange: %w", err)
	}
	for id, tr := range merged {
		e.qBoundary[2*id] = tr.QLeft
		e.aBoundary[2*id] = tr.ALeft
		e.qBoundary[2*id+1] = tr.QRight
		e.aBoundary[2*id+1] = tr.ARight
	}

	if err := e.calculateNfurcationFluxes(t); err != nil {
		return err
	}
	return e.calculateInOutFluxes(t, uPrev)
}

// evaluateMacroEdgeBoundaryValues reconstructs the solution polynomial at the
// two tips of every owned vessel.
func (e *Evaluator) evaluateMacroEdgeBoundaryValues(uPrev []float64) ([]comm.EdgeTrace, error) {
	rank := e.comm.Rank()
	active := e.graph.ActiveEdgeIDs(rank)
	traces := make([]comm.EdgeTrace, 0, len(active))

	for _, eid := range active {
		edge, err := e.graph.Edge(eid)
		if err != nil {
			return nil, err
		}
		local, err := e.dofMap.LocalDofMap(edge)
		if err != nil {
			return nil, err
		}

		numBasis := local.NumBasisFunctions()
		indices := make([]int, numBasis)
		dofs := make([]float64, numBasis)
		tr := comm.EdgeTrace{Edge: eid}

		local.DofIndices(0, 0, indices)
		dofmap.ExtractDof(indices, uPrev, dofs)
		tr.QLeft, _ = e.element.EvaluateDofAtBoundaryPoints(dofs)

		local.DofIndices(0, 1, indices)
		dofmap.ExtractDof(indices, uPrev, dofs)
		tr.ALeft, _ = e.element.EvaluateDofAtBoundaryPoints(dofs)

		local.DofIndices(local.NumMicroEdges()-1, 0, indices)
		dofmap.ExtractDof(indices, uPrev, dofs)
		_, tr.QRight = e.element.EvaluateDofAtBoundaryPoints(dofs)

		local.DofIndices(local.NumMicroEdges()-1, 1, indices)
		dofmap.ExtractDof(indices, uPrev, dofs)
		_, tr.ARight = e.element.EvaluateDofAtBoundaryPoints(dofs)

		traces = append(traces, tr)
	}
	return traces, nil
}

// trace returns the boundary (Q, A) of an edge at the tip facing the vertex.
func (e *Evaluator) trace(edge *network.Edge, v network.VertexID) (q, a float64) {
	if edge.IsPointingTo(v) {
		return e.qBoundary[2*edge.ID()+1], e.aBoundary[2*edge.ID()+1]
	}
	return e.qBoundary[2*edge.ID()], e.aBoundary[2*edge.ID()]
}

// storeFlux records the resolved upwind pair at the tip facing the vertex.
func (e *Evaluator) storeFlux(edge *network.Edge, v network.VertexID, q, a float64) {
	if edge.IsPointingTo(v) {
		e.fluxQR[edge.ID()] = q
		e.fluxAR[edge.ID()] = a
	} else {
		e.fluxQL[edge.ID()] = q
		e.fluxAL[edge.ID()] = a
	}
}

// calculateNfurcationFluxes resolves every active bifurcation. Vertices on a
// partition boundary are resolved redundantly on each adjacent rank from the
// synchronized traces, which spares a second communication round.
func (e *Evaluator) calculateNfurcationFluxes(t float64) error {
	for _, vid := range e.graph.ActiveVertexIDs(e.comm.Rank()) {
		v, err := e.graph.Vertex(vid)
		if err != nil {
			return err
		}
		if !v.IsBifurcation() {
			continue
		}

		neighbors := v.EdgeNeighbors()
		n := len(neighbors)

		edges := make([]*network.Edge, n)
		pointsTo := make([]bool, n)
		params := make([]VesselParameters, n)
		q := make([]float64, n)
		a := make([]float64, n)
		for i, eid := range neighbors {
			edge, err := e.graph.Edge(eid)
			if err != nil {
				return err
			}
			edges[i] = edge
			pointsTo[i] = edge.IsPointingTo(vid)
			p := edge.PhysicalData()
			params[i] = VesselParameters{G0: p.G0, A0: p.A0, Rho: p.Rho}
			q[i], a[i] = e.trace(edge, vid)
		}

		qUp := make([]float64, n)
		aUp := make([]float64, n)
		res, err := SolveAtNfurcation(q, a, params, pointsTo, qUp, aUp)
		if err != nil {
			return fmt.Errorf("flow: vertex %d: %w", vid, err)
		}
		e.observeNewton(t, v, res)

		for i := range edges {
			e.storeFlux(edges[i], vid, qUp[i], aUp[i])
		}
	}
	return nil
}

// calculateInOutFluxes resolves every active exterior boundary.
func (e *Evaluator) calculateInOutFluxes(t float64, uPrev []float64) error {
	for _, vid := range e.graph.ActiveVertexIDs(e.comm.Rank()) {
		v, err := e.graph.Vertex(vid)
		if err != nil {
			return err
		}
		if !v.IsLeaf() {
			continue
		}

		edge, err := e.graph.Edge(v.EdgeNeighbors()[0])
		if err != nil {
			return err
		}
		param := edge.PhysicalData()
		vp := VesselParameters{G0: param.G0, A0: param.A0, Rho: param.Rho}
		in := edge.IsPointingTo(vid)
		q, a := e.trace(edge, vid)

		switch bc := v.BoundaryCondition().(type) {
		case network.InflowFixedFlow:
			qStar := bc.Waveform(t)
			if in {
				qStar = -qStar
			}
			aUp, res := InflowArea(q, a, in, qStar, vp)
			e.observeNewton(t, v, res)
			e.storeFlux(edge, vid, qStar, aUp)

		case network.FreeOutflow:
			// pair the incoming characteristic with the reference state
			qUp, aUp := e.solveAgainstExterior(q, a, in, 0, param.A0, vp, vp)
			e.storeFlux(edge, vid, qUp, aUp)

		case network.CharacteristicInflow:
			ext := VesselParameters{G0: bc.G0, A0: bc.A0, Rho: bc.Rho}
			qUp, aUp := e.solveAgainstExterior(q, a, in, bc.Q, bc.ExteriorArea(), ext, vp)
			e.storeFlux(edge, vid, qUp, aUp)

		case network.WindkesselOutflow:
			if err := e.solveWindkessel(t, v, edge, in, q, a, uPrev); err != nil {
				return err
			}

		case network.VesselTreeOutflow:
			vdm, err := e.dofMap.LocalVertexDofMap(v)
			if err != nil {
				return err
			}
			states := make([]float64, vdm.NumLocalDofs())
			dofmap.ExtractDof(vdm.DofIndices(), uPrev, states)
			qUp, aUp := bc.Provider.Resolve(t, q, a, in, param, states)
			e.storeFlux(edge, vid, qUp, aUp)

		default:
			return fmt.Errorf("%w: vertex %d", ErrUnknownBoundary, vid)
		}
	}
	return nil
}

// solveAgainstExterior pairs the interior trace with a fixed exterior state
// (qExt in edge direction, area aExt, living on a vessel with parameters ext)
// and solves the invariant pair on the interior vessel.
func (e *Evaluator) solveAgainstExterior(q, a float64, in bool, qExt, aExt float64, ext, p VesselParameters) (qUp, aUp float64) {
	var w1, w2 float64
	if in {
		w1 = W1(qExt, aExt, ext.G0, ext.Rho, ext.A0)
		w2 = W2(q, a, p.G0, p.Rho, p.A0)
	} else {
		w1 = W1(q, a, p.G0, p.Rho, p.A0)
		w2 = W2(qExt, aExt, ext.G0, ext.Rho, ext.A0)
	}
	return SolveW12(w1, w2, p.G0, p.Rho, p.A0)
}

// solveWindkessel couples the tip to the lumped capacitor pressure p_c held
// in the vertex's degree of freedom.
func (e *Evaluator) solveWindkessel(t float64, v *network.Vertex, edge *network.Edge, in bool, q, a float64, uPrev []float64) error {
	param := edge.PhysicalData()

	vdm, err := e.dofMap.LocalVertexDofMap(v)
	if err != nil {
		return err
	}
	pc := uPrev[vdm.DofIndices()[0]]

	c0 := C0(param.G0, param.Rho)
	r1 := param.Rho * c0 / param.A0

	var w float64
	if in {
		w = W2(q, a, param.G0, param.Rho, param.A0)
	} else {
		w = W1(q, a, param.G0, param.Rho, param.A0)
	}

	f := func(aOut float64) float64 {
		p := param.G0 * (math.Sqrt(aOut/param.A0) - 1)
		return w - (p-pc)/(aOut*r1) - 4*c0*math.Pow(aOut/param.A0, 0.25)
	}
	df := func(aOut float64) float64 {
		p := param.G0 * (math.Sqrt(aOut/param.A0) - 1)
		dp := param.G0 * 0.5 / math.Sqrt(aOut*param.A0)
		return -dp/(aOut*r1) + (p-pc)/(aOut*aOut*r1) - c0*math.Pow(aOut, -0.75)/math.Pow(param.A0, 0.25)
	}

	res := SolveNewton(a, f, df)
	e.observeNewton(t, v, res)

	sgn := 1.0
	if !in {
		sgn = -1.0
	}
	aOut := res.Root
	qOut := sgn * (StaticPressure(aOut, param.G0, param.A0) - pc) / r1

	e.storeFlux(edge, v.ID(), qOut, aOut)
	return nil
}

func (e *Evaluator) observeNewton(t float64, v *network.Vertex, res NewtonResult) {
	if e.reg != nil {
		e.reg.ObserveNewtonSolve(v.Kind().String(), res.Iterations, res.Converged)
	}
	if !res.Converged {
		e.log.Warn("newton iteration did not converge",
			logging.Vertex(int(v.ID())),
			logging.String("boundary", v.Kind().String()),
			logging.SimTime(t),
			logging.Iterations(res.Iterations),
			logging.Residual(res.Residual),
		)
	}
}

// FluxesOnMacroEdge fills qUp and aUp with the upwinded values at every micro
// vertex of an owned vessel: the synchronized macro values at the tips and
// pairwise characteristic solves at the interior cell interfaces. Both slices
// must have NumMicroVertices entries.
func (e *Evaluator) FluxesOnMacroEdge(t float64, edge *network.Edge, uPrev []float64, qUp, aUp []float64) error {
	if e.currentTime != t {
		return fmt.Errorf("%w: have %v, want %v", ErrStaleTime, e.currentTime, t)
	}

	local, err := e.dofMap.LocalDofMap(edge)
	if err != nil {
		return err
	}
	if len(qUp) != local.NumMicroVertices() || len(aUp) != local.NumMicroVertices() {
		return fmt.Errorf("%w: need %d micro vertices", ErrDimensionMismatch, local.NumMicroVertices())
	}

	param := edge.PhysicalData()
	numBasis := local.NumBasisFunctions()
	indices := make([]int, numBasis)
	dofs := make([]float64, numBasis)

	readTip := func(microEdge, component int) (left, right float64) {
		local.DofIndices(microEdge, component, indices)
		dofmap.ExtractDof(indices, uPrev, dofs)
		return e.element.EvaluateDofAtBoundaryPoints(dofs)
	}

	for mv := 1; mv < local.NumMicroVertices()-1; mv++ {
		_, qL := readTip(mv-1, 0)
		_, aL := readTip(mv-1, 1)
		qR, _ := readTip(mv, 0)
		aR, _ := readTip(mv, 1)

		w2 := W2(qL, aL, param.G0, param.Rho, param.A0)
		w1 := W1(qR, aR, param.G0, param.Rho, param.A0)
		qUp[mv], aUp[mv] = SolveW12(w1, w2, param.G0, param.Rho, param.A0)
	}

	qUp[0] = e.fluxQL[edge.ID()]
	aUp[0] = e.fluxAL[edge.ID()]
	qUp[local.NumMicroVertices()-1] = e.fluxQR[edge.ID()]
	aUp[local.NumMicroVertices()-1] = e.fluxAR[edge.ID()]
	return nil
}

// FluxesOnNfurcation fills qUp and aUp with the resolved upwind pair of every
// vessel incident to the vertex, in neighbor order.
func (e *Evaluator) FluxesOnNfurcation(t float64, v *network.Vertex, qUp, aUp []float64) error {
	if e.currentTime != t {
		return fmt.Errorf("%w: have %v, want %v", ErrStaleTime, e.currentTime, t)
	}
	if len(qUp) != len(v.EdgeNeighbors()) || len(aUp) != len(v.EdgeNeighbors()) {
		return fmt.Errorf("%w: need %d vessels", ErrDimensionMismatch, len(v.EdgeNeighbors()))
	}

	for i, eid := range v.EdgeNeighbors() {
		edge, err := e.graph.Edge(eid)
		if err != nil {
			return err
		}
		if edge.IsPointingTo(v.ID()) {
			qUp[i] = e.fluxQR[eid]
			aUp[i] = e.fluxAR[eid]
		} else {
			qUp[i] = e.fluxQL[eid]
			aUp[i] = e.fluxAL[eid]
		}
	}
	return nil
}
