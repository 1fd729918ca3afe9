// Package dofmap assigns global indices to the discretized unknowns of the
// vessel network: per micro-segment polynomial coefficients for every
// component, plus lumped boundary states. Indices are contiguous per rank and
// globally unique; the layout is reproducible from the same graph and
// partition, which checkpoint restart relies on.
package dofmap

import (
	"errors"
	"fmt"

	"github.com/perfusion-lab/hemoflow/pkg/comm"
	"github.com/perfusion-lab/hemoflow/pkg/network"
)

var (
	// ErrNotLocal is returned when asking for the dof layout of an edge or
	// vertex that is not active on this rank
	ErrNotLocal = errors.New("dofmap: not owned by this rank")

	// ErrInvalidArgs is returned for nonsensical creation parameters
	ErrInvalidArgs = errors.New("dofmap: invalid arguments")
)

// LocalDofMap is the per-edge view of the global numbering.
type LocalDofMap struct {
	start         int
	numMicroEdges int
	numBasis      int
	numComponents int
}

// NumMicroEdges returns the number of micro-segments of the edge.
func (m *LocalDofMap) NumMicroEdges() int { return m.numMicroEdges }

// NumMicroVertices returns the number of micro-segment boundaries.
func (m *LocalDofMap) NumMicroVertices() int { return m.numMicroEdges + 1 }

// NumBasisFunctions returns the basis functions per micro-segment and component.
func (m *LocalDofMap) NumBasisFunctions() int { return m.numBasis }

// NumLocalDofs returns the total unknowns of the edge.
func (m *LocalDofMap) NumLocalDofs() int {
	return m.numMicroEdges * m.numComponents * m.numBasis
}

// DofIndices fills out with the global indices of the given micro-segment and
// component. out must have length NumBasisFunctions.
func (m *LocalDofMap) DofIndices(microEdge, component int, out []int) {
	base := m.start + (microEdge*m.numComponents+component)*m.numBasis
	for j := range out {
		out[j] = base + j
	}
}

// LocalVertexDofMap is the per-vertex view for lumped boundary states.
type LocalVertexDofMap struct {
	indices []int
}

// DofIndices returns the global indices of the vertex's lumped states.
func (m *LocalVertexDofMap) DofIndices() []int { return m.indices }

// NumLocalDofs returns the number of lumped states.
func (m *LocalVertexDofMap) NumLocalDofs() int { return len(m.indices) }

// Map is the degree-of-freedom layout of one rank.
type Map struct {
	numComponents int
	degree        int

	edges    map[network.EdgeID]*LocalDofMap
	vertices map[network.VertexID]*LocalVertexDofMap

	rankOffsets []int // length size+1; rank r owns [rankOffsets[r], rankOffsets[r+1])
	rank        int
}

// Create walks all active edges and vertices in ascending id order, assigns
// contiguous indices per rank and computes prefix offsets across ranks via the
// communicator. The partition must already be recorded on the graph; this map
// only consumes it. With includeLumpedStates, boundary conditions with
// internal states (Windkessel, vessel trees) receive vertex dofs on the rank
// owning the vertex.
func Create(c comm.Communicator, g *network.Graph, numComponents, degree int, includeLumpedStates bool) (*Map, error) {
	if numComponents < 1 || degree < 0 {
		return nil, fmt.Errorf("%w: components=%d degree=%d", ErrInvalidArgs, numComponents, degree)
	}

	rank := c.Rank()
	numBasis := degree + 1

	m := &Map{
		numComponents: numComponents,
		degree:        degree,
		edges:         make(map[network.EdgeID]*LocalDofMap),
		vertices:      make(map[network.VertexID]*LocalVertexDofMap),
		rank:          rank,
	}

	// first pass: count this rank's dofs in the deterministic walk order
	count := 0
	for _, eid := range g.ActiveEdgeIDs(rank) {
		e, err := g.Edge(eid)
		if err != nil {
			return nil, err
		}
		count += e.NumMicroEdges() * numComponents * numBasis
	}
	if includeLumpedStates {
		for _, vid := range g.ActiveVertexIDs(rank) {
			v, err := g.Vertex(vid)
			if err != nil {
				return nil, err
			}
			if bc := v.BoundaryCondition(); bc != nil && g.OwnerRank(v) == rank {
				count += bc.NumLumpedStates()
			}
		}
	}

	counts, err := comm.AllGatherInt(c, count)
	if err != nil {
		return nil, err
	}
	m.rankOffsets = make([]int, len(counts)+1)
	for r, n := range counts {
		m.rankOffsets[r+1] = m.rankOffsets[r] + n
	}

	// second pass: assign indices starting at this rank's prefix offset
	next := m.rankOffsets[rank]
	for _, eid := range g.ActiveEdgeIDs(rank) {
		e, _ := g.Edge(eid)
		local := &LocalDofMap{
			start:         next,
			numMicroEdges: e.NumMicroEdges(),
			numBasis:      numBasis,
			numComponents: numComponents,
		}
		m.edges[eid] = local
		next += local.NumLocalDofs()
	}
	if includeLumpedStates {
		for _, vid := range g.ActiveVertexIDs(rank) {
			v, _ := g.Vertex(vid)
			bc := v.BoundaryCondition()
			if bc == nil || g.OwnerRank(v) != rank || bc.NumLumpedStates() == 0 {
				continue
			}
			indices := make([]int, bc.NumLumpedStates())
			for i := range indices {
				indices[i] = next
				next++
			}
			m.vertices[vid] = &LocalVertexDofMap{indices: indices}
		}
	}

	if next != m.rankOffsets[rank+1] {
		return nil, fmt.Errorf("dofmap: assigned %d dofs, counted %d", next-m.rankOffsets[rank], count)
	}
	return m, nil
}

// LocalDofMap returns the layout of an edge owned by this rank.
func (m *Map) LocalDofMap(e *network.Edge) (*LocalDofMap, error) {
	local, ok := m.edges[e.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: edge %d", ErrNotLocal, e.ID())
	}
	return local, nil
}

// LocalVertexDofMap returns the lumped-state layout of a vertex owned by this
// rank.
func (m *Map) LocalVertexDofMap(v *network.Vertex) (*LocalVertexDofMap, error) {
	local, ok := m.vertices[v.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: vertex %d", ErrNotLocal, v.ID())
	}
	return local, nil
}

// NumComponents returns the number of physical components (Q and A).
func (m *Map) NumComponents() int { return m.numComponents }

// Degree returns the polynomial degree of the discretization.
func (m *Map) Degree() int { return m.degree }

// GlobalDofs returns the size of the full solution vector.
func (m *Map) GlobalDofs() int { return m.rankOffsets[len(m.rankOffsets)-1] }

// OwnedRange returns this rank's half-open global index range.
func (m *Map) OwnedRange() (int, int) {
	return m.rankOffsets[m.rank], m.rankOffsets[m.rank+1]
}

// RankOffsets returns the prefix offsets, length size+1.
func (m *Map) RankOffsets() []int { return m.rankOffsets }

// ExtractDof copies the solution values at the given global indices into out.
func ExtractDof(indices []int, u, out []float64) {
	for i, idx := range indices {
		out[i] = u[idx]
	}
}
