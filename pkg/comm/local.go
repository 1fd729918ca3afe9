package comm

import (
	"fmt"
	"sync"
)

// LocalWorld runs several ranks inside one process, one goroutine per rank.
// It backs the tests and single-machine runs; the semantics are identical to
// the socket transport.
type LocalWorld struct {
	size    int
	mu      sync.Mutex
	cond    *sync.Cond
	slots   [][]byte
	arrived int
	gen     uint64
	result  [][]byte
	closed  bool
}

// NewLocalWorld creates an in-process world with the given number of ranks.
func NewLocalWorld(size int) *LocalWorld {
	if size < 1 {
		panic(fmt.Sprintf("comm: world size must be positive, got %d", size))
	}
	w := &LocalWorld{
		size:  size,
		slots: make([][]byte, size),
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Communicator returns the handle for one rank.
func (w *LocalWorld) Communicator(rank int) Communicator {
	if rank < 0 || rank >= w.size {
		panic(fmt.Sprintf("comm: rank %d outside world of size %d", rank, w.size))
	}
	return &localComm{world: w, rank: rank}
}

type localComm struct {
	world *LocalWorld
	rank  int
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.world.size }

func (c *localComm) AllGather(payload []byte) ([][]byte, error) {
	w := c.world
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}

	gen := w.gen
	w.slots[c.rank] = payload
	w.arrived++

	if w.arrived == w.size {
		// last rank in: snapshot the round and release everyone
		res := make([][]byte, w.size)
		copy(res, w.slots)
		w.result = res
		w.arrived = 0
		w.gen++
		w.cond.Broadcast()
	} else {
		for w.gen == gen && !w.closed {
			w.cond.Wait()
		}
		if w.closed {
			return nil, ErrClosed
		}
	}
	// the snapshot is immutable once taken, so reading it after unlocking
	// the next round's deposits is safe
	return w.result, nil
}

func (c *localComm) Barrier() error {
	_, err := c.AllGather(nil)
	return err
}

func (c *localComm) Close() error {
	w := c.world
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		w.cond.Broadcast()
	}
	return nil
}
