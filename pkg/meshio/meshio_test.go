package meshio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfusion-lab/hemoflow/pkg/network"
)

const sampleMesh = `{
  "vertices": [
    {"name": "heart", "boundary": {"type": "inflow", "amplitude": 485}},
    {"name": "junction"},
    {"name": "tip_a", "boundary": {"type": "windkessel", "r": 20, "c": 0.05}},
    {"name": "tip_b", "boundary": {"type": "free_outflow"}}
  ],
  "vessels": [
    {"name": "aorta", "left": 0, "right": 1, "micro_edges": 20,
     "length": 42.2, "radius": 0.403, "wall_thickness": 0.067,
     "elastic_modulus": 400000, "gamma": 9,
     "points": [{"x": 0, "y": 0, "z": 0}, {"x": 42.2, "y": 0, "z": 0}]},
    {"left": 1, "right": 2, "micro_edges": 10,
     "length": 30, "radius": 0.28, "wall_thickness": 0.05,
     "elastic_modulus": 400000, "gamma": 9},
    {"left": 1, "right": 3, "micro_edges": 10,
     "length": 30, "radius": 0.28, "wall_thickness": 0.05,
     "elastic_modulus": 400000, "gamma": 9, "rho": 1.05e-3}
  ]
}`

func TestParseNetwork(t *testing.T) {
	doc, err := ParseNetwork(strings.NewReader(sampleMesh))
	require.NoError(t, err)
	assert.Len(t, doc.Vertices, 4)
	assert.Len(t, doc.Vessels, 3)
	assert.Equal(t, "aorta", doc.Vessels[0].Name)
}

func TestParseNetworkRejectsUnknownFields(t *testing.T) {
	_, err := ParseNetwork(strings.NewReader(`{"vertices": [], "vessels": [], "bogus": 1}`))
	assert.ErrorIs(t, err, ErrBadMesh)
}

func TestBuildGraph(t *testing.T) {
	doc, err := ParseNetwork(strings.NewReader(sampleMesh))
	require.NoError(t, err)
	g, err := BuildGraph(doc, 0)
	require.NoError(t, err)

	assert.Equal(t, 4, g.NumVertices())
	assert.Equal(t, 3, g.NumEdges())
	assert.True(t, g.Finalized())

	heart, ok := g.FindVertexByName("heart")
	require.True(t, ok)
	assert.Equal(t, network.KindInflow, heart.Kind())

	junction, _ := g.Vertex(1)
	assert.True(t, junction.IsBifurcation())

	tipA, _ := g.FindVertexByName("tip_a")
	wk, ok := tipA.BoundaryCondition().(network.WindkesselOutflow)
	require.True(t, ok)
	assert.Equal(t, 20.0, wk.R)

	aorta, _ := g.Edge(0)
	assert.Equal(t, "aorta", aorta.Name())
	assert.Equal(t, 20, aorta.NumMicroEdges())
	assert.Len(t, aorta.EmbeddingData(), 2)
	// density defaults when omitted
	assert.InDelta(t, DefaultDensity, aorta.PhysicalData().Rho, 1e-15)
	third, _ := g.Edge(2)
	assert.InDelta(t, 1.05e-3, third.PhysicalData().Rho, 1e-15)
}

func TestBuildGraphDefaultInflowAmplitude(t *testing.T) {
	doc, err := ParseNetwork(strings.NewReader(sampleMesh))
	require.NoError(t, err)

	// an inflow vertex without its own amplitude falls back to the default
	doc.Vertices[0].Boundary = &BoundaryJSON{Type: "inflow"}
	g, err := BuildGraph(doc, 250)
	require.NoError(t, err)
	heart, _ := g.FindVertexByName("heart")
	inflow, ok := heart.BoundaryCondition().(network.InflowFixedFlow)
	require.True(t, ok)
	// the waveform peaks mid-systole
	assert.InDelta(t, 250, inflow.Waveform(0.15), 1e-12)

	// an explicit amplitude wins over the default
	doc, err = ParseNetwork(strings.NewReader(sampleMesh))
	require.NoError(t, err)
	g, err = BuildGraph(doc, 250)
	require.NoError(t, err)
	heart, _ = g.FindVertexByName("heart")
	inflow = heart.BoundaryCondition().(network.InflowFixedFlow)
	assert.InDelta(t, 485, inflow.Waveform(0.15), 1e-12)
}

func TestBuildGraphRejectsInteriorBoundary(t *testing.T) {
	doc, err := ParseNetwork(strings.NewReader(sampleMesh))
	require.NoError(t, err)
	doc.Vertices[1].Boundary = &BoundaryJSON{Type: "free_outflow"}
	_, err = BuildGraph(doc, 0)
	assert.ErrorIs(t, err, ErrBadMesh)
}

func TestBuildGraphUnknownBoundaryType(t *testing.T) {
	doc, err := ParseNetwork(strings.NewReader(sampleMesh))
	require.NoError(t, err)
	doc.Vertices[0].Boundary = &BoundaryJSON{Type: "absorbing"}
	_, err = BuildGraph(doc, 0)
	assert.ErrorIs(t, err, ErrUnknownBoundaryType)
}

func TestReadGraphWithBoundaryOverride(t *testing.T) {
	dir := t.TempDir()
	meshPath := filepath.Join(dir, "network.json")
	require.NoError(t, os.WriteFile(meshPath, []byte(sampleMesh), 0o644))

	boundaryPath := filepath.Join(dir, "boundary.json")
	require.NoError(t, os.WriteFile(boundaryPath, []byte(`{
  "boundaries": {
    "tip_b": {"type": "characteristic_inflow", "p": 5, "q": 4}
  }
}`), 0o644))

	g, err := ReadGraph(meshPath, boundaryPath, 0)
	require.NoError(t, err)

	tipB, ok := g.FindVertexByName("tip_b")
	require.True(t, ok)
	ci, ok := tipB.BoundaryCondition().(network.CharacteristicInflow)
	require.True(t, ok)
	assert.Equal(t, 5.0, ci.P)
	assert.Equal(t, 4.0, ci.Q)
	// exterior data comes from the incident vessel
	edge, _ := g.Edge(tipB.EdgeNeighbors()[0])
	assert.Equal(t, edge.PhysicalData().G0, ci.G0)
}

func TestReadGraphUnknownOverrideVertex(t *testing.T) {
	dir := t.TempDir()
	meshPath := filepath.Join(dir, "network.json")
	require.NoError(t, os.WriteFile(meshPath, []byte(sampleMesh), 0o644))
	boundaryPath := filepath.Join(dir, "boundary.json")
	require.NoError(t, os.WriteFile(boundaryPath, []byte(`{"boundaries": {"nope": {"type": "free_outflow"}}}`), 0o644))

	_, err := ReadGraph(meshPath, boundaryPath, 0)
	assert.ErrorIs(t, err, ErrBadMesh)
}
