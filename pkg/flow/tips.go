package flow

import (
	"fmt"
	"math"
	"sort"

	"github.com/perfusion-lab/hemoflow/pkg/dofmap"
	"github.com/perfusion-lab/hemoflow/pkg/fem"
	"github.com/perfusion-lab/hemoflow/pkg/network"
)

// PointValues evaluates the (Q, A) pair at the relative arc position s in
// [0, 1] along an owned vessel, reconstructing the local polynomial of the
// micro-segment containing s.
func PointValues(edge *network.Edge, m *dofmap.Map, u []float64, s float64) (q, a float64, err error) {
	if s < 0 || s > 1 {
		return 0, 0, fmt.Errorf("%w: arc position %v outside [0, 1]", ErrDimensionMismatch, s)
	}
	local, err := m.LocalDofMap(edge)
	if err != nil {
		return 0, 0, err
	}

	x := s * float64(local.NumMicroEdges())
	micro := int(x)
	if micro == local.NumMicroEdges() {
		micro--
	}
	xi := 2*(x-float64(micro)) - 1

	basis := fem.NewBasis(m.Degree())
	indices := make([]int, local.NumBasisFunctions())
	dofs := make([]float64, local.NumBasisFunctions())

	eval := func(component int) float64 {
		local.DofIndices(micro, component, indices)
		dofmap.ExtractDof(indices, u, dofs)
		v := 0.0
		for j, c := range dofs {
			v += c * basis.Eval(j, xi)
		}
		return v
	}
	return eval(0), eval(1), nil
}

// PointPressure evaluates the static pressure at the relative arc position s
// along an owned vessel.
func PointPressure(edge *network.Edge, m *dofmap.Map, u []float64, s float64) (float64, error) {
	_, a, err := PointValues(edge, m, u, s)
	if err != nil {
		return 0, err
	}
	p := edge.PhysicalData()
	return StaticPressure(a, p.G0, p.A0), nil
}

// VesselTip describes one outflow tip with a lumped pressure state.
type VesselTip struct {
	Vertex  network.VertexID
	Point   network.Point
	PC      float64 // capacitor pressure
	R2      float64 // peripheral resistance
	Radius  float64
	AvgFlow float64 // time-averaged outflow, zero unless accumulated
}

// CollectVesselTips gathers the windkessel tips owned by the given rank with
// their current capacitor pressures, sorted by vertex id.
func CollectVesselTips(g *network.Graph, m *dofmap.Map, rank int, u []float64) ([]VesselTip, error) {
	var tips []VesselTip
	for _, vid := range g.ActiveVertexIDs(rank) {
		v, err := g.Vertex(vid)
		if err != nil {
			return nil, err
		}
		bc, ok := v.BoundaryCondition().(network.WindkesselOutflow)
		if !ok || g.OwnerRank(v) != rank {
			continue
		}
		vdm, err := m.LocalVertexDofMap(v)
		if err != nil {
			return nil, err
		}
		edge, err := g.Edge(v.EdgeNeighbors()[0])
		if err != nil {
			return nil, err
		}
		param := edge.PhysicalData()
		r1 := param.Rho * C0(param.G0, param.Rho) / param.A0

		tip := VesselTip{
			Vertex: vid,
			PC:     u[vdm.DofIndices()[0]],
			R2:     bc.R - r1,
			Radius: param.Radius,
		}
		if emb := edge.EmbeddingData(); len(emb) > 0 {
			if edge.IsPointingTo(vid) {
				tip.Point = emb[len(emb)-1]
			} else {
				tip.Point = emb[0]
			}
		}
		tips = append(tips, tip)
	}
	sort.Slice(tips, func(i, j int) bool { return tips[i].Vertex < tips[j].Vertex })
	return tips, nil
}

// FlowAccumulator integrates the outflow through the windkessel tips over
// time, for time-averaged perfusion output.
type FlowAccumulator struct {
	graph  *network.Graph
	rank   int
	totals map[network.VertexID]float64
	window float64
}

// NewFlowAccumulator creates an accumulator over the rank's windkessel tips.
func NewFlowAccumulator(g *network.Graph, rank int) *FlowAccumulator {
	return &FlowAccumulator{
		graph:  g,
		rank:   rank,
		totals: make(map[network.VertexID]float64),
	}
}

// Add integrates one timestep of length tau using the tip fluxes cached in
// the evaluator for time t.
func (f *FlowAccumulator) Add(t, tau float64, ev *Evaluator) error {
	qTip := make([]float64, 1)
	aTip := make([]float64, 1)
	for _, vid := range f.graph.ActiveVertexIDs(f.rank) {
		v, err := f.graph.Vertex(vid)
		if err != nil {
			return err
		}
		if _, ok := v.BoundaryCondition().(network.WindkesselOutflow); !ok {
			continue
		}
		if f.graph.OwnerRank(v) != f.rank {
			continue
		}
		if err := ev.FluxesOnNfurcation(t, v, qTip, aTip); err != nil {
			return err
		}
		edge, err := f.graph.Edge(v.EdgeNeighbors()[0])
		if err != nil {
			return err
		}
		out := qTip[0]
		if !edge.IsPointingTo(vid) {
			out = -out
		}
		f.totals[vid] += tau * out
	}
	f.window += tau
	return nil
}

// Reset clears the accumulated flows and the averaging window.
func (f *FlowAccumulator) Reset() {
	f.totals = make(map[network.VertexID]float64)
	f.window = 0
}

// AverageFlow returns the time-averaged outflow of a tip over the window
// accumulated so far.
func (f *FlowAccumulator) AverageFlow(v network.VertexID) float64 {
	if f.window == 0 {
		return 0
	}
	return f.totals[v] / f.window
}

// TotalFlow returns the integrated outflow volume of a tip.
func (f *FlowAccumulator) TotalFlow(v network.VertexID) float64 {
	return f.totals[v]
}

// Window returns the accumulated time span.
func (f *FlowAccumulator) Window() float64 { return f.window }

// StableTimestep returns a CFL-type bound on the timestep for the given
// graph and discretization degree: the shortest micro-segment length divided
// by the largest characteristic speed, shrunk by the degree-dependent factor.
func StableTimestep(g *network.Graph, degree int) float64 {
	tau := math.Inf(1)
	for i := 0; i < g.NumEdges(); i++ {
		edge, err := g.Edge(network.EdgeID(i))
		if err != nil || !edge.HasPhysicalData() {
			continue
		}
		p := edge.PhysicalData()
		h := p.Length / float64(edge.NumMicroEdges())
		c := C0(p.G0, p.Rho)
		bound := h / (c * float64(2*degree+1))
		if bound < tau {
			tau = bound
		}
	}
	return tau
}
