package partition

import (
	"github.com/perfusion-lab/hemoflow/pkg/network"
)

// Strategy defines how macro-edges are distributed over ranks.
type Strategy interface {
	// GetRank returns the rank owning the given edge
	GetRank(e *network.Edge) int
	// GetRankCount returns the total number of ranks
	GetRankCount() int
}

// Uniform assigns contiguous blocks of edge ids to ranks, splitting the edge
// count as evenly as possible.
type Uniform struct {
	rankCount int
	numEdges  int
}

// NewUniform creates a uniform block partitioning strategy.
func NewUniform(rankCount, numEdges int) *Uniform {
	return &Uniform{rankCount: rankCount, numEdges: numEdges}
}

// GetRank returns the rank for an edge
func (u *Uniform) GetRank(e *network.Edge) int {
	if u.numEdges == 0 {
		return 0
	}
	rank := int(e.ID()) * u.rankCount / u.numEdges
	if rank >= u.rankCount {
		rank = u.rankCount - 1
	}
	return rank
}

// GetRankCount returns the total number of ranks
func (u *Uniform) GetRankCount() int { return u.rankCount }

// WorkWeighted assigns contiguous blocks of edge ids so that the degrees of
// freedom per rank, not the edge count, are balanced. Vessels with many
// micro-segments carry proportionally more work.
type WorkWeighted struct {
	rankCount   int
	assignments map[network.EdgeID]int
}

// NewWorkWeighted precomputes a dof-balanced contiguous partitioning for the
// given polynomial degree.
func NewWorkWeighted(g *network.Graph, rankCount, degree int) *WorkWeighted {
	w := &WorkWeighted{
		rankCount:   rankCount,
		assignments: make(map[network.EdgeID]int, g.NumEdges()),
	}

	total := 0
	weights := make([]int, g.NumEdges())
	for i := 0; i < g.NumEdges(); i++ {
		e, _ := g.Edge(network.EdgeID(i))
		weights[i] = e.NumMicroEdges() * (degree + 1)
		total += weights[i]
	}

	// walk edges ascending by id and advance the rank whenever the running
	// weight passes the rank's share of the total
	acc := 0
	rank := 0
	for i := 0; i < g.NumEdges(); i++ {
		share := (rank + 1) * total / rankCount
		if acc >= share && rank < rankCount-1 {
			rank++
		}
		w.assignments[network.EdgeID(i)] = rank
		acc += weights[i]
	}
	return w
}

// GetRank returns the rank for an edge
func (w *WorkWeighted) GetRank(e *network.Edge) int {
	return w.assignments[e.ID()]
}

// GetRankCount returns the total number of ranks
func (w *WorkWeighted) GetRankCount() int { return w.rankCount }

// Apply records the strategy's decision for every edge on the graph.
func Apply(g *network.Graph, s Strategy) error {
	for i := 0; i < g.NumEdges(); i++ {
		e, err := g.Edge(network.EdgeID(i))
		if err != nil {
			return err
		}
		if err := g.AssignEdgeToRank(e.ID(), s.GetRank(e)); err != nil {
			return err
		}
	}
	return nil
}

// Metrics describes the quality of a partitioning.
type Metrics struct {
	// RankLoads is the number of edges per rank
	RankLoads []int
	// SharedVertices counts vertices incident to edges of more than one rank;
	// each one causes redundant junction resolution on every adjacent rank
	SharedVertices int
	// LoadBalance is max load divided by mean load (1 = perfect)
	LoadBalance float64
}

// ComputeMetrics analyzes the partition currently recorded on the graph.
func ComputeMetrics(g *network.Graph, rankCount int) *Metrics {
	m := &Metrics{RankLoads: make([]int, rankCount)}

	for i := 0; i < g.NumEdges(); i++ {
		e, _ := g.Edge(network.EdgeID(i))
		if e.Rank() >= 0 && e.Rank() < rankCount {
			m.RankLoads[e.Rank()]++
		}
	}

	for i := 0; i < g.NumVertices(); i++ {
		v, _ := g.Vertex(network.VertexID(i))
		ranks := make(map[int]struct{})
		for _, eid := range v.EdgeNeighbors() {
			e, _ := g.Edge(eid)
			ranks[e.Rank()] = struct{}{}
		}
		if len(ranks) > 1 {
			m.SharedVertices++
		}
	}

	maxLoad := 0
	for _, l := range m.RankLoads {
		if l > maxLoad {
			maxLoad = l
		}
	}
	if g.NumEdges() > 0 {
		mean := float64(g.NumEdges()) / float64(rankCount)
		m.LoadBalance = float64(maxLoad) / mean
	}
	return m
}
