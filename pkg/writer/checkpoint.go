package writer

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"os"

	"github.com/golang/snappy"

	"github.com/perfusion-lab/hemoflow/pkg/dofmap"
)

// checkpoint file layout: a fixed header followed by the snappy-compressed
// little-endian float64 solution vector.
const (
	checkpointMagic   = 0x48464b31 // "HFK1"
	checkpointVersion = 1
	checkpointHeader  = 4 + 4 + 8 + 8 + 8 // magic, version, fingerprint, time, count
)

// LayoutFingerprint hashes the properties a checkpoint depends on: the global
// numbering offsets, the discretization degree and the component count. A
// restart on a different graph, partition or degree is rejected up front.
func LayoutFingerprint(m *dofmap.Map) uint64 {
	h := fnv.New64a()
	buf := make([]byte, 8)
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf, v)
		h.Write(buf)
	}
	put(uint64(m.NumComponents()))
	put(uint64(m.Degree()))
	for _, off := range m.RankOffsets() {
		put(uint64(off))
	}
	return h.Sum64()
}

// WriteCheckpoint writes the solution vector with its layout fingerprint.
func WriteCheckpoint(path string, fingerprint uint64, t float64, u []float64) error {
	raw := make([]byte, 8*len(u))
	for i, v := range u {
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
	}
	compressed := snappy.Encode(nil, raw)

	out := make([]byte, checkpointHeader, checkpointHeader+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], checkpointMagic)
	binary.LittleEndian.PutUint32(out[4:], checkpointVersion)
	binary.LittleEndian.PutUint64(out[8:], fingerprint)
	binary.LittleEndian.PutUint64(out[16:], math.Float64bits(t))
	binary.LittleEndian.PutUint64(out[24:], uint64(len(u)))
	out = append(out, compressed...)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("writer: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadCheckpoint restores a solution vector, verifying the layout
// fingerprint.
func ReadCheckpoint(path string, fingerprint uint64) (t float64, u []float64, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, fmt.Errorf("writer: %w", err)
	}
	if len(data) < checkpointHeader {
		return 0, nil, fmt.Errorf("%w: truncated header", ErrCorruptCheckpoint)
	}
	if binary.LittleEndian.Uint32(data[0:]) != checkpointMagic {
		return 0, nil, fmt.Errorf("%w: bad magic", ErrCorruptCheckpoint)
	}
	if v := binary.LittleEndian.Uint32(data[4:]); v != checkpointVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptCheckpoint, v)
	}
	if got := binary.LittleEndian.Uint64(data[8:]); got != fingerprint {
		return 0, nil, fmt.Errorf("%w: fingerprint %x, want %x", ErrLayoutMismatch, got, fingerprint)
	}
	t = math.Float64frombits(binary.LittleEndian.Uint64(data[16:]))
	count := binary.LittleEndian.Uint64(data[24:])

	raw, err := snappy.Decode(nil, data[checkpointHeader:])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrCorruptCheckpoint, err)
	}
	if uint64(len(raw)) != 8*count {
		return 0, nil, fmt.Errorf("%w: payload has %d bytes, want %d", ErrCorruptCheckpoint, len(raw), 8*count)
	}

	u = make([]float64, count)
	for i := range u {
		u[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return t, u, nil
}

// CheckpointPath names the per-rank checkpoint file.
func CheckpointPath(dir, runID string, rank int) string {
	return rankFile(dir, runID, "checkpoint", rank, "snap")
}
