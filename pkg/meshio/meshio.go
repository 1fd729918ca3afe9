// Package meshio reads vessel-network descriptions from JSON files and
// assembles the runtime graph. A second boundary file can override the
// boundary data of named vertices, which keeps one mesh reusable across
// scenarios.
package meshio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/perfusion-lab/hemoflow/pkg/network"
)

// DefaultDensity is assumed when a vessel does not state its fluid density.
const DefaultDensity = 1.028e-3

var (
	// ErrBadMesh is returned for structurally invalid network files
	ErrBadMesh = errors.New("meshio: invalid network description")

	// ErrUnknownBoundaryType is returned for unrecognized boundary variants
	ErrUnknownBoundaryType = errors.New("meshio: unknown boundary type")
)

// BoundaryJSON describes the boundary condition of one vertex.
type BoundaryJSON struct {
	// Type is one of "inflow", "characteristic_inflow", "free_outflow",
	// "windkessel".
	Type string `json:"type"`
	// Amplitude of the heartbeat waveform for "inflow"; zero selects the
	// configured default.
	Amplitude float64 `json:"amplitude,omitempty"`
	// P and Q fix the exterior state for "characteristic_inflow".
	P float64 `json:"p,omitempty"`
	Q float64 `json:"q,omitempty"`
	// R and C are the windkessel parameters.
	R float64 `json:"r,omitempty"`
	C float64 `json:"c,omitempty"`
}

// VertexJSON is one vertex of the mesh file, in creation order.
type VertexJSON struct {
	Name     string        `json:"name,omitempty"`
	Boundary *BoundaryJSON `json:"boundary,omitempty"`
}

// VesselJSON is one vessel of the mesh file.
type VesselJSON struct {
	Name       string `json:"name,omitempty"`
	Left       int    `json:"left"`
	Right      int    `json:"right"`
	MicroEdges int    `json:"micro_edges"`

	Length         float64 `json:"length"`
	Radius         float64 `json:"radius"`
	WallThickness  float64 `json:"wall_thickness"`
	ElasticModulus float64 `json:"elastic_modulus"`
	Gamma          float64 `json:"gamma"`
	Rho            float64 `json:"rho,omitempty"`
	Viscosity      float64 `json:"viscosity,omitempty"`

	Points []network.Point `json:"points,omitempty"`
}

// NetworkJSON is the top-level mesh document.
type NetworkJSON struct {
	Vertices []VertexJSON `json:"vertices"`
	Vessels  []VesselJSON `json:"vessels"`
}

// BoundaryFileJSON maps vertex names to replacement boundary data.
type BoundaryFileJSON struct {
	Boundaries map[string]BoundaryJSON `json:"boundaries"`
}

// ParseNetwork decodes a mesh document.
func ParseNetwork(r io.Reader) (NetworkJSON, error) {
	var doc NetworkJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrBadMesh, err)
	}
	if len(doc.Vertices) == 0 || len(doc.Vessels) == 0 {
		return doc, fmt.Errorf("%w: needs vertices and vessels", ErrBadMesh)
	}
	return doc, nil
}

// buildBoundaryCondition converts the JSON variant into the runtime one.
// The vessel parameters supply the characteristic-inflow exterior data.
func buildBoundaryCondition(b BoundaryJSON, p network.PhysicalData, defaultAmplitude float64) (network.BoundaryCondition, error) {
	switch b.Type {
	case "inflow":
		amp := b.Amplitude
		if amp == 0 {
			amp = defaultAmplitude
		}
		return network.InflowFixedFlow{Waveform: network.HeartBeatInflow(amp)}, nil
	case "characteristic_inflow":
		return network.CharacteristicInflow{
			G0:  p.G0,
			A0:  p.A0,
			Rho: p.Rho,
			P:   b.P,
			Q:   b.Q,
		}, nil
	case "free_outflow":
		return network.FreeOutflow{}, nil
	case "windkessel":
		return network.WindkesselOutflow{R: b.R, C: b.C}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBoundaryType, b.Type)
	}
}

// BuildGraph assembles and finalizes the runtime graph from a parsed mesh.
// defaultAmplitude supplies the heartbeat amplitude of inflow vertices that do
// not state their own.
func BuildGraph(doc NetworkJSON, defaultAmplitude float64) (*network.Graph, error) {
	g := network.New()

	for _, vj := range doc.Vertices {
		v, err := g.CreateVertex()
		if err != nil {
			return nil, err
		}
		if vj.Name != "" {
			v.SetName(vj.Name)
		}
	}

	for i, ej := range doc.Vessels {
		if ej.Rho == 0 {
			ej.Rho = DefaultDensity
		}
		e, err := g.Connect(network.VertexID(ej.Left), network.VertexID(ej.Right), ej.MicroEdges)
		if err != nil {
			return nil, fmt.Errorf("%w: vessel %d: %v", ErrBadMesh, i, err)
		}
		if ej.Name != "" {
			e.SetName(ej.Name)
		}
		p := network.NewPhysicalData(ej.ElasticModulus, ej.WallThickness, ej.Rho, ej.Gamma, ej.Radius, ej.Length)
		p.Viscosity = ej.Viscosity
		e.AddPhysicalData(p)
		if len(ej.Points) > 0 {
			e.AddEmbeddingData(ej.Points)
		}
	}

	for i, vj := range doc.Vertices {
		if vj.Boundary == nil {
			continue
		}
		v, err := g.Vertex(network.VertexID(i))
		if err != nil {
			return nil, err
		}
		if !v.IsLeaf() {
			return nil, fmt.Errorf("%w: vertex %d carries boundary data but is interior", ErrBadMesh, i)
		}
		edge, err := g.Edge(v.EdgeNeighbors()[0])
		if err != nil {
			return nil, err
		}
		bc, err := buildBoundaryCondition(*vj.Boundary, edge.PhysicalData(), defaultAmplitude)
		if err != nil {
			return nil, fmt.Errorf("vertex %d: %w", i, err)
		}
		if err := g.SetBoundaryCondition(network.VertexID(i), bc); err != nil {
			return nil, err
		}
	}

	if err := g.FinalizeBCs(); err != nil {
		return nil, err
	}
	return g, nil
}

// mergeBoundaryFile replaces the boundary data of named vertices in the mesh
// document before the graph is built.
func mergeBoundaryFile(doc *NetworkJSON, overrides BoundaryFileJSON) error {
	byName := make(map[string]int)
	for i, vj := range doc.Vertices {
		if vj.Name != "" {
			byName[vj.Name] = i
		}
	}
	for name, b := range overrides.Boundaries {
		i, ok := byName[name]
		if !ok {
			return fmt.Errorf("%w: boundary override for unknown vertex %q", ErrBadMesh, name)
		}
		bc := b
		doc.Vertices[i].Boundary = &bc
	}
	return nil
}

// ReadGraph reads a mesh file, optionally applies a boundary override file,
// and returns the finalized graph. boundaryPath may be empty; defaultAmplitude
// is used for inflow vertices that omit their own.
func ReadGraph(meshPath, boundaryPath string, defaultAmplitude float64) (*network.Graph, error) {
	f, err := os.Open(meshPath)
	if err != nil {
		return nil, fmt.Errorf("meshio: %w", err)
	}
	defer f.Close()

	doc, err := ParseNetwork(f)
	if err != nil {
		return nil, fmt.Errorf("meshio: %s: %w", meshPath, err)
	}

	if boundaryPath != "" {
		bf, err := os.Open(boundaryPath)
		if err != nil {
			return nil, fmt.Errorf("meshio: %w", err)
		}
		defer bf.Close()
		var overrides BoundaryFileJSON
		if err := json.NewDecoder(bf).Decode(&overrides); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadMesh, boundaryPath, err)
		}
		if err := mergeBoundaryFile(&doc, overrides); err != nil {
			return nil, err
		}
	}

	return BuildGraph(doc, defaultAmplitude)
}
