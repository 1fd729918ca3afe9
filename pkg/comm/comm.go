// Package comm provides the rank-based SPMD communication primitives of the
// solver. The only collective is a bulk-synchronous all-gather; every rank
// must reach it, and a rank that never does deadlocks the computation. That
// is an accepted property of the model: there is no timeout inside a stage.
package comm

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrClosed is returned when using a communicator after Close
	ErrClosed = errors.New("comm: communicator is closed")

	// ErrShortPayload is returned when decoding a truncated frame
	ErrShortPayload = errors.New("comm: payload too short")

	// ErrRankMismatch is returned when a gathered frame names an impossible rank
	ErrRankMismatch = errors.New("comm: frame from unknown rank")
)

// Communicator is one rank's handle on the SPMD world.
type Communicator interface {
	// Rank is this process's index in [0, Size)
	Rank() int
	// Size is the number of cooperating ranks
	Size() int
	// AllGather distributes each rank's payload to every rank and returns
	// the payloads indexed by rank. All ranks must call it in lockstep.
	AllGather(payload []byte) ([][]byte, error)
	// Barrier blocks until every rank has reached it
	Barrier() error
	// Close releases transport resources
	Close() error
}

// AllGatherInt gathers one integer per rank.
func AllGatherInt(c Communicator, v int) ([]int, error) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	parts, err := c.AllGather(buf)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(parts))
	for i, p := range parts {
		if len(p) < 8 {
			return nil, ErrShortPayload
		}
		out[i] = int(binary.LittleEndian.Uint64(p))
	}
	return out, nil
}
