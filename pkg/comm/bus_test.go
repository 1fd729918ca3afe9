package comm

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// the bus transport test runs over the inproc transport so it needs no
// free TCP ports
func busAddrs(t *testing.T, size int) []string {
	t.Helper()
	addrs := make([]string, size)
	for i := range addrs {
		addrs[i] = fmt.Sprintf("inproc://%s-%d", t.Name(), i)
	}
	return addrs
}

func TestBusWorldSingleRank(t *testing.T) {
	w, err := NewBusWorld(0, busAddrs(t, 1))
	require.NoError(t, err)
	defer w.Close()

	got, err := w.AllGather([]byte("solo"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "solo", string(got[0]))
}

func TestBusWorldAllGather(t *testing.T) {
	const size = 3
	addrs := busAddrs(t, size)

	worlds := make([]*BusWorld, size)
	setupErrs := make(chan error, size)
	var setup sync.WaitGroup
	for rank := 0; rank < size; rank++ {
		setup.Add(1)
		go func(rank int) {
			defer setup.Done()
			w, err := NewBusWorld(rank, addrs)
			if err != nil {
				setupErrs <- fmt.Errorf("rank %d: %w", rank, err)
				return
			}
			worlds[rank] = w
		}(rank)
	}
	setup.Wait()
	close(setupErrs)
	for err := range setupErrs {
		t.Fatal(err)
	}
	defer func() {
		for _, w := range worlds {
			w.Close()
		}
	}()

	const rounds = 5
	var wg sync.WaitGroup
	errs := make(chan error, size)
	for rank := 0; rank < size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			for round := 0; round < rounds; round++ {
				got, err := worlds[rank].AllGather([]byte{byte(rank), byte(round)})
				if err != nil {
					errs <- err
					return
				}
				for peer := 0; peer < size; peer++ {
					if len(got[peer]) != 2 || got[peer][0] != byte(peer) || got[peer][1] != byte(round) {
						errs <- fmt.Errorf("rank %d round %d: bad frame from %d: %v", rank, round, peer, got[peer])
						return
					}
				}
			}
		}(rank)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// a rank that dials a peer whose listener does not exist yet must wait for it
// instead of failing; ranks of a multi-process run start in arbitrary order
func TestBusWorldStaggeredStartup(t *testing.T) {
	addrs := busAddrs(t, 2)

	type result struct {
		w   *BusWorld
		err error
	}
	late := make(chan result, 1)
	go func() {
		w, err := NewBusWorld(1, addrs)
		late <- result{w, err}
	}()

	// rank 1 has dialed by now, rank 0 has not listened yet
	time.Sleep(200 * time.Millisecond)
	w0, err := NewBusWorld(0, addrs)
	require.NoError(t, err)
	defer w0.Close()

	r := <-late
	require.NoError(t, r.err)
	defer r.w.Close()

	gather := make(chan error, 1)
	go func() {
		got, err := r.w.AllGather([]byte{1})
		if err == nil && (len(got) != 2 || len(got[0]) != 1 || got[0][0] != 0) {
			err = fmt.Errorf("rank 1: bad gather %v", got)
		}
		gather <- err
	}()
	got, err := w0.AllGather([]byte{0})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []byte{0}, got[0])
	assert.Equal(t, []byte{1}, got[1])
	require.NoError(t, <-gather)
}
