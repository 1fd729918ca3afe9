package network

import "fmt"

// VertexID is a stable integer identifier of a junction or boundary vertex.
type VertexID int

// EdgeID is a stable integer identifier of a macro-edge (one vessel).
type EdgeID int

// Vertex is a junction or boundary point of the network. Interior vertices
// with two or more incident vessels are bifurcations; leaves carry exactly one
// boundary-condition variant after FinalizeBCs.
type Vertex struct {
	id    VertexID
	name  string
	edges []EdgeID
	bc    BoundaryCondition
}

// ID returns the stable identifier of the vertex.
func (v *Vertex) ID() VertexID { return v.id }

// Name returns the optional vertex name from the mesh input.
func (v *Vertex) Name() string { return v.name }

// SetName attaches a name to the vertex.
func (v *Vertex) SetName(name string) { v.name = name }

// EdgeNeighbors lists the incident macro-edges in insertion order.
func (v *Vertex) EdgeNeighbors() []EdgeID { return v.edges }

// IsLeaf reports whether the vertex has exactly one incident vessel.
func (v *Vertex) IsLeaf() bool { return len(v.edges) == 1 }

// BoundaryCondition returns the assigned variant, or nil for a bifurcation.
func (v *Vertex) BoundaryCondition() BoundaryCondition { return v.bc }

// Kind returns the boundary kind of the vertex. Unclassified interior
// vertices are bifurcations.
func (v *Vertex) Kind() BoundaryKind {
	if v.bc == nil {
		return KindBifurcation
	}
	return v.bc.Kind()
}

// IsBifurcation reports whether the vertex couples vessels internally.
func (v *Vertex) IsBifurcation() bool { return v.bc == nil && len(v.edges) >= 2 }

// Edge is one vessel segment, subdivided into micro-segments for the
// discretization. The edge points from its left to its right vertex.
type Edge struct {
	id            EdgeID
	name          string
	left, right   VertexID
	numMicroEdges int
	physical      *PhysicalData
	embedding     []Point
	rank          int
}

// ID returns the stable identifier of the edge.
func (e *Edge) ID() EdgeID { return e.id }

// Name returns the optional vessel name from the mesh input.
func (e *Edge) Name() string { return e.name }

// SetName attaches a name to the edge.
func (e *Edge) SetName(name string) { e.name = name }

// Left returns the vertex the edge points away from.
func (e *Edge) Left() VertexID { return e.left }

// Right returns the vertex the edge points to.
func (e *Edge) Right() VertexID { return e.right }

// IsPointingTo reports whether the edge points into the given vertex.
func (e *Edge) IsPointingTo(v VertexID) bool { return e.right == v }

// NumMicroEdges returns the number of micro-segments of the vessel.
func (e *Edge) NumMicroEdges() int { return e.numMicroEdges }

// HasPhysicalData reports whether vessel parameters were assigned.
func (e *Edge) HasPhysicalData() bool { return e.physical != nil }

// PhysicalData returns the vessel parameters. It panics when called before
// AddPhysicalData; FinalizeBCs guarantees assignment for finalized graphs.
func (e *Edge) PhysicalData() PhysicalData {
	if e.physical == nil {
		panic(fmt.Sprintf("network: vessel %d has no physical data", e.id))
	}
	return *e.physical
}

// AddPhysicalData assigns the vessel parameters.
func (e *Edge) AddPhysicalData(p PhysicalData) { e.physical = &p }

// AddEmbeddingData stores the physical coordinates of the vessel course.
func (e *Edge) AddEmbeddingData(points []Point) { e.embedding = points }

// EmbeddingData returns the stored coordinates, which may be empty.
func (e *Edge) EmbeddingData() []Point { return e.embedding }

// Rank returns the process owning the edge's interior degrees of freedom.
func (e *Edge) Rank() int { return e.rank }

// Graph is the vessel network: an arena of vertices and edges addressed by
// stable integer ids, with adjacency stored as id lists.
type Graph struct {
	vertices  []*Vertex
	edges     []*Edge
	finalized bool
}

// New creates an empty vessel network graph.
func New() *Graph {
	return &Graph{}
}

// CreateVertex adds a vertex and returns it.
func (g *Graph) CreateVertex() (*Vertex, error) {
	if g.finalized {
		return nil, ErrFinalized
	}
	v := &Vertex{id: VertexID(len(g.vertices))}
	g.vertices = append(g.vertices, v)
	return v, nil
}

// Connect adds a vessel pointing from one vertex to another, subdivided into
// the given number of micro-segments.
func (g *Graph) Connect(from, to VertexID, numMicroEdges int) (*Edge, error) {
	if g.finalized {
		return nil, ErrFinalized
	}
	if from == to {
		return nil, ErrSelfLoop
	}
	if numMicroEdges < 1 {
		return nil, ErrNoMicroEdges
	}
	vFrom, err := g.Vertex(from)
	if err != nil {
		return nil, err
	}
	vTo, err := g.Vertex(to)
	if err != nil {
		return nil, err
	}
	e := &Edge{
		id:            EdgeID(len(g.edges)),
		left:          from,
		right:         to,
		numMicroEdges: numMicroEdges,
	}
	g.edges = append(g.edges, e)
	vFrom.edges = append(vFrom.edges, e.id)
	vTo.edges = append(vTo.edges, e.id)
	return e, nil
}

// Vertex returns the vertex with the given id.
func (g *Graph) Vertex(id VertexID) (*Vertex, error) {
	if id < 0 || int(id) >= len(g.vertices) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVertex, id)
	}
	return g.vertices[id], nil
}

// Edge returns the edge with the given id.
func (g *Graph) Edge(id EdgeID) (*Edge, error) {
	if id < 0 || int(id) >= len(g.edges) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEdge, id)
	}
	return g.edges[id], nil
}

// FindVertexByName returns the first vertex with the given name.
func (g *Graph) FindVertexByName(name string) (*Vertex, bool) {
	for _, v := range g.vertices {
		if v.name == name {
			return v, true
		}
	}
	return nil, false
}

// NumVertices returns the number of vertices.
func (g *Graph) NumVertices() int { return len(g.vertices) }

// NumEdges returns the number of macro-edges.
func (g *Graph) NumEdges() int { return len(g.edges) }

// Finalized reports whether the topology is immutable.
func (g *Graph) Finalized() bool { return g.finalized }

// SetBoundaryCondition assigns a boundary-condition variant to a vertex.
// Exactly one variant per leaf vertex; interior vertices stay bifurcations.
func (g *Graph) SetBoundaryCondition(id VertexID, bc BoundaryCondition) error {
	if g.finalized {
		return ErrFinalized
	}
	v, err := g.Vertex(id)
	if err != nil {
		return err
	}
	if v.bc != nil {
		return fmt.Errorf("%w: vertex %d", ErrBoundaryAlreadySet, id)
	}
	v.bc = bc
	return nil
}

// FinalizeBCs validates the boundary classification and freezes the topology:
// every leaf vertex carries exactly one variant, no vertex is isolated, no
// interior vertex carries a variant, and every vessel has physical data.
func (g *Graph) FinalizeBCs() error {
	for _, v := range g.vertices {
		switch {
		case len(v.edges) == 0:
			return fmt.Errorf("%w: vertex %d", ErrIsolatedVertex, v.id)
		case v.IsLeaf() && v.bc == nil:
			return fmt.Errorf("%w: vertex %d", ErrUnclassifiedVertex, v.id)
		case !v.IsLeaf() && v.bc != nil:
			return fmt.Errorf("%w: vertex %d has %d incident vessels", ErrBoundaryOnInteriorVertex, v.id, len(v.edges))
		}
	}
	for _, e := range g.edges {
		if e.physical == nil {
			return fmt.Errorf("%w: vessel %d", ErrMissingPhysicalData, e.id)
		}
	}
	g.finalized = true
	return nil
}

// AssignEdgeToRank records the partition decision for an edge. Partitioning
// itself is computed by an external strategy; the graph only stores it.
func (g *Graph) AssignEdgeToRank(id EdgeID, rank int) error {
	e, err := g.Edge(id)
	if err != nil {
		return err
	}
	e.rank = rank
	return nil
}

// ActiveEdgeIDs lists the edges owned by the given rank, ascending by id.
func (g *Graph) ActiveEdgeIDs(rank int) []EdgeID {
	var ids []EdgeID
	for _, e := range g.edges {
		if e.rank == rank {
			ids = append(ids, e.id)
		}
	}
	return ids
}

// ActiveVertexIDs lists the vertices incident to at least one edge owned by
// the given rank, ascending by id. A vertex on a partition boundary is active
// on every adjacent rank; junction resolution is repeated redundantly there
// using the ghost traces instead of a second communication round.
func (g *Graph) ActiveVertexIDs(rank int) []VertexID {
	var ids []VertexID
	for _, v := range g.vertices {
		for _, eid := range v.edges {
			if g.edges[eid].rank == rank {
				ids = append(ids, v.id)
				break
			}
		}
	}
	return ids
}

// OwnerRank returns the rank owning a vertex's lumped degrees of freedom:
// the owner of its lowest-id incident edge. Incident edges are recorded in
// creation order, so the first entry has the lowest id.
func (g *Graph) OwnerRank(v *Vertex) int {
	if len(v.edges) == 0 {
		return 0
	}
	return g.edges[v.edges[0]].rank
}
