package writer

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfusion-lab/hemoflow/pkg/comm"
	"github.com/perfusion-lab/hemoflow/pkg/dofmap"
	"github.com/perfusion-lab/hemoflow/pkg/flow"
	"github.com/perfusion-lab/hemoflow/pkg/network"
)

func TestNewRunID(t *testing.T) {
	assert.NotEqual(t, NewRunID(), NewRunID())
}

func TestTipCSVWriter(t *testing.T) {
	dir := t.TempDir()
	runID := NewRunID()

	w, err := NewTipCSVWriter(dir, runID, 0)
	require.NoError(t, err)

	tips := []flow.VesselTip{
		{Vertex: 3, PC: 1.25, AvgFlow: 0.5, R2: 6.8, Radius: 0.403, Point: network.Point{X: 1, Y: 2, Z: 3}},
		{Vertex: 7, PC: 0.75, R2: 4.2, Radius: 0.28},
	}
	require.NoError(t, w.Append(0.01, tips))
	require.NoError(t, w.Append(0.02, tips[:1]))
	require.NoError(t, w.Close())

	f, err := os.Open(rankFile(dir, runID, "vessel_tips", 0, "csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 4) // header + 3 data rows
	assert.Equal(t, tipHeader, rows[0])
	assert.Equal(t, "0.01", rows[1][0])
	assert.Equal(t, "3", rows[1][1])
	assert.Equal(t, "1.25", rows[1][2])
	assert.Equal(t, "7", rows[2][1])
	assert.Equal(t, "0.02", rows[3][0])
}

func testDofMap(t *testing.T, degree int) *dofmap.Map {
	t.Helper()
	g := network.New()
	v0, _ := g.CreateVertex()
	v1, _ := g.CreateVertex()
	e, err := g.Connect(v0.ID(), v1.ID(), 4)
	require.NoError(t, err)
	e.AddPhysicalData(network.NewPhysicalData(400000, 0.067, 1.028e-3, 9, 0.403, 42.2))
	require.NoError(t, g.SetBoundaryCondition(v0.ID(), network.FreeOutflow{}))
	require.NoError(t, g.SetBoundaryCondition(v1.ID(), network.WindkesselOutflow{R: 20, C: 0.05}))
	require.NoError(t, g.FinalizeBCs())

	world := comm.NewLocalWorld(1)
	m, err := dofmap.Create(world.Communicator(0), g, 2, degree, true)
	require.NoError(t, err)
	return m
}

func TestCheckpointRoundtrip(t *testing.T) {
	m := testDofMap(t, 2)
	fp := LayoutFingerprint(m)

	u := make([]float64, m.GlobalDofs())
	for i := range u {
		u[i] = float64(i) * 0.25
	}

	path := filepath.Join(t.TempDir(), "state.snap")
	require.NoError(t, WriteCheckpoint(path, fp, 1.5, u))

	tRestored, restored, err := ReadCheckpoint(path, fp)
	require.NoError(t, err)
	assert.Equal(t, 1.5, tRestored)
	assert.Equal(t, u, restored)
}

func TestCheckpointLayoutMismatch(t *testing.T) {
	m2 := testDofMap(t, 2)
	m3 := testDofMap(t, 3)
	require.NotEqual(t, LayoutFingerprint(m2), LayoutFingerprint(m3))

	u := make([]float64, m2.GlobalDofs())
	path := filepath.Join(t.TempDir(), "state.snap")
	require.NoError(t, WriteCheckpoint(path, LayoutFingerprint(m2), 0.5, u))

	_, _, err := ReadCheckpoint(path, LayoutFingerprint(m3))
	assert.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestCheckpointCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.snap")
	require.NoError(t, os.WriteFile(path, []byte("not a checkpoint"), 0o644))
	_, _, err := ReadCheckpoint(path, 0)
	assert.ErrorIs(t, err, ErrCorruptCheckpoint)
}
