package network

import (
	"errors"
	"math"
	"testing"
)

func testPhysicalData() PhysicalData {
	return NewPhysicalData(400000.0, 0.067, 1.028e-3, 9, 0.403, 42.2)
}

func buildSingleVessel(t *testing.T) (*Graph, *Vertex, *Vertex, *Edge) {
	t.Helper()
	g := New()
	v0, err := g.CreateVertex()
	if err != nil {
		t.Fatalf("CreateVertex() error = %v", err)
	}
	v1, err := g.CreateVertex()
	if err != nil {
		t.Fatalf("CreateVertex() error = %v", err)
	}
	e, err := g.Connect(v0.ID(), v1.ID(), 20)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	e.AddPhysicalData(testPhysicalData())
	return g, v0, v1, e
}

func TestConnect(t *testing.T) {
	g := New()
	v0, _ := g.CreateVertex()
	v1, _ := g.CreateVertex()

	tests := []struct {
		name     string
		from, to VertexID
		numMicro int
		wantErr  error
	}{
		{"valid", v0.ID(), v1.ID(), 4, nil},
		{"self loop", v0.ID(), v0.ID(), 4, ErrSelfLoop},
		{"zero micro edges", v0.ID(), v1.ID(), 0, ErrNoMicroEdges},
		{"unknown vertex", v0.ID(), VertexID(99), 4, ErrUnknownVertex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Connect(tt.from, tt.to, tt.numMicro)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Connect() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEdgeOrientation(t *testing.T) {
	_, v0, v1, e := buildSingleVessel(t)

	if !e.IsPointingTo(v1.ID()) {
		t.Error("edge should point to its right vertex")
	}
	if e.IsPointingTo(v0.ID()) {
		t.Error("edge should not point to its left vertex")
	}
}

func TestFinalizeBCs(t *testing.T) {
	t.Run("unclassified leaf", func(t *testing.T) {
		g, _, _, _ := buildSingleVessel(t)
		if err := g.FinalizeBCs(); !errors.Is(err, ErrUnclassifiedVertex) {
			t.Errorf("FinalizeBCs() error = %v, want %v", err, ErrUnclassifiedVertex)
		}
	})

	t.Run("isolated vertex", func(t *testing.T) {
		g := New()
		g.CreateVertex()
		if err := g.FinalizeBCs(); !errors.Is(err, ErrIsolatedVertex) {
			t.Errorf("FinalizeBCs() error = %v, want %v", err, ErrIsolatedVertex)
		}
	})

	t.Run("missing physical data", func(t *testing.T) {
		g := New()
		v0, _ := g.CreateVertex()
		v1, _ := g.CreateVertex()
		g.Connect(v0.ID(), v1.ID(), 4)
		g.SetBoundaryCondition(v0.ID(), FreeOutflow{})
		g.SetBoundaryCondition(v1.ID(), FreeOutflow{})
		if err := g.FinalizeBCs(); !errors.Is(err, ErrMissingPhysicalData) {
			t.Errorf("FinalizeBCs() error = %v, want %v", err, ErrMissingPhysicalData)
		}
	})

	t.Run("boundary condition on interior vertex", func(t *testing.T) {
		g := New()
		v0, _ := g.CreateVertex()
		v1, _ := g.CreateVertex()
		v2, _ := g.CreateVertex()
		e1, _ := g.Connect(v0.ID(), v1.ID(), 4)
		e2, _ := g.Connect(v1.ID(), v2.ID(), 4)
		e1.AddPhysicalData(testPhysicalData())
		e2.AddPhysicalData(testPhysicalData())
		g.SetBoundaryCondition(v0.ID(), FreeOutflow{})
		g.SetBoundaryCondition(v1.ID(), FreeOutflow{})
		g.SetBoundaryCondition(v2.ID(), FreeOutflow{})
		if err := g.FinalizeBCs(); !errors.Is(err, ErrBoundaryOnInteriorVertex) {
			t.Errorf("FinalizeBCs() error = %v, want %v", err, ErrBoundaryOnInteriorVertex)
		}
	})

	t.Run("valid graph freezes topology", func(t *testing.T) {
		g, v0, v1, _ := buildSingleVessel(t)
		g.SetBoundaryCondition(v0.ID(), InflowFixedFlow{Waveform: HeartBeatInflow(485)})
		g.SetBoundaryCondition(v1.ID(), FreeOutflow{})
		if err := g.FinalizeBCs(); err != nil {
			t.Fatalf("FinalizeBCs() error = %v", err)
		}
		if !g.Finalized() {
			t.Error("graph should be finalized")
		}
		if _, err := g.CreateVertex(); !errors.Is(err, ErrFinalized) {
			t.Errorf("CreateVertex() after finalize error = %v, want %v", err, ErrFinalized)
		}
		if _, err := g.Connect(v0.ID(), v1.ID(), 4); !errors.Is(err, ErrFinalized) {
			t.Errorf("Connect() after finalize error = %v, want %v", err, ErrFinalized)
		}
	})
}

func TestSetBoundaryConditionTwice(t *testing.T) {
	g, v0, _, _ := buildSingleVessel(t)
	if err := g.SetBoundaryCondition(v0.ID(), FreeOutflow{}); err != nil {
		t.Fatalf("SetBoundaryCondition() error = %v", err)
	}
	if err := g.SetBoundaryCondition(v0.ID(), FreeOutflow{}); !errors.Is(err, ErrBoundaryAlreadySet) {
		t.Errorf("second SetBoundaryCondition() error = %v, want %v", err, ErrBoundaryAlreadySet)
	}
}

func TestBifurcationClassification(t *testing.T) {
	g := New()
	center, _ := g.CreateVertex()
	for i := 0; i < 3; i++ {
		leaf, _ := g.CreateVertex()
		var e *Edge
		if i == 0 {
			e, _ = g.Connect(leaf.ID(), center.ID(), 4)
		} else {
			e, _ = g.Connect(center.ID(), leaf.ID(), 4)
		}
		e.AddPhysicalData(testPhysicalData())
		if i == 0 {
			g.SetBoundaryCondition(leaf.ID(), InflowFixedFlow{Waveform: HeartBeatInflow(485)})
		} else {
			g.SetBoundaryCondition(leaf.ID(), FreeOutflow{})
		}
	}
	if err := g.FinalizeBCs(); err != nil {
		t.Fatalf("FinalizeBCs() error = %v", err)
	}
	if !center.IsBifurcation() {
		t.Error("center vertex should be a bifurcation")
	}
	if center.Kind() != KindBifurcation {
		t.Errorf("center Kind() = %v, want %v", center.Kind(), KindBifurcation)
	}
}

func TestActiveIDs(t *testing.T) {
	g := New()
	v0, _ := g.CreateVertex()
	v1, _ := g.CreateVertex()
	v2, _ := g.CreateVertex()
	e0, _ := g.Connect(v0.ID(), v1.ID(), 4)
	e1, _ := g.Connect(v1.ID(), v2.ID(), 4)

	g.AssignEdgeToRank(e0.ID(), 0)
	g.AssignEdgeToRank(e1.ID(), 1)

	if got := g.ActiveEdgeIDs(0); len(got) != 1 || got[0] != e0.ID() {
		t.Errorf("ActiveEdgeIDs(0) = %v", got)
	}
	if got := g.ActiveEdgeIDs(1); len(got) != 1 || got[0] != e1.ID() {
		t.Errorf("ActiveEdgeIDs(1) = %v", got)
	}

	// the shared vertex v1 must be active on both ranks
	for rank := 0; rank < 2; rank++ {
		found := false
		for _, id := range g.ActiveVertexIDs(rank) {
			if id == v1.ID() {
				found = true
			}
		}
		if !found {
			t.Errorf("vertex %d should be active on rank %d", v1.ID(), rank)
		}
	}
}

func TestCalculateG0(t *testing.T) {
	// reference values of the characteristic boundary-condition scenario
	a0 := math.Pi * 0.403 * 0.403
	g0 := CalculateG0(0.067, 400000.0, a0)
	want := 4.0 / 3.0 * math.Sqrt(math.Pi) * 400000.0 * 0.067 / math.Sqrt(a0)
	if math.Abs(g0-want) > 1e-9 {
		t.Errorf("CalculateG0() = %v, want %v", g0, want)
	}
	if g0 <= 0 {
		t.Error("G0 must be positive")
	}
}

func TestCharacteristicInflowExteriorArea(t *testing.T) {
	bc := CharacteristicInflow{G0: 100, A0: 2, Rho: 1, P: 5, Q: 4}
	got := bc.ExteriorArea()
	want := 2 * (1 + 5.0/100) * (1 + 5.0/100)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("ExteriorArea() = %v, want %v", got, want)
	}
}

func TestHeartBeatInflow(t *testing.T) {
	wave := HeartBeatInflow(485)
	if got := wave(0.15); math.Abs(got-485) > 1e-9 {
		t.Errorf("peak = %v, want 485", got)
	}
	if got := wave(0.5); got != 0 {
		t.Errorf("diastole = %v, want 0", got)
	}
	if got, want := wave(1.15), wave(0.15); math.Abs(got-want) > 1e-9 {
		t.Errorf("waveform not periodic: %v != %v", got, want)
	}
}
