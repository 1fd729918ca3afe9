package comm

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/bus"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

const (
	// handshakeGen is the reserved generation of hello/ack frames
	handshakeGen uint64 = 0

	helloFrame byte = 0
	ackFrame   byte = 1

	handshakeInterval = 100 * time.Millisecond
	handshakeTimeout  = 30 * time.Second
)

// BusWorld connects the ranks of a multi-process run through a mangos bus
// socket mesh. Every rank listens on its own address and dials all others.
type BusWorld struct {
	rank int
	size int
	sock mangos.Socket
	gen  uint64

	// frames of future generations received while gathering an older one,
	// keyed by generation then rank
	pending map[uint64]map[int][]byte

	closed bool
}

// NewBusWorld creates the communicator for one rank of a socket-connected
// world. addrs lists the listen addresses of all ranks in rank order; the
// call blocks until the full mesh is established.
func NewBusWorld(rank int, addrs []string) (*BusWorld, error) {
	size := len(addrs)
	if rank < 0 || rank >= size {
		return nil, fmt.Errorf("comm: rank %d outside world of size %d", rank, size)
	}

	w := &BusWorld{
		rank:    rank,
		size:    size,
		pending: make(map[uint64]map[int][]byte),
	}

	if size == 1 {
		return w, nil
	}

	sock, err := bus.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("comm: creating bus socket: %w", err)
	}
	w.sock = sock

	if err := sock.Listen(addrs[rank]); err != nil {
		sock.Close()
		return nil, fmt.Errorf("comm: listening on %s: %w", addrs[rank], err)
	}
	// ranks come up in arbitrary order, so the first connection attempts may
	// hit peers that are not listening yet; asynchronous dialing lets the
	// background dialer retry until they are, and the handshake below covers
	// the wait
	if err := sock.SetOption(mangos.OptionDialAsynch, true); err != nil {
		sock.Close()
		return nil, fmt.Errorf("comm: enabling asynchronous dial: %w", err)
	}
	for peer, addr := range addrs {
		if peer == rank {
			continue
		}
		if err := sock.Dial(addr); err != nil {
			sock.Close()
			return nil, fmt.Errorf("comm: dialing %s: %w", addr, err)
		}
	}

	if err := w.handshake(); err != nil {
		sock.Close()
		return nil, err
	}
	return w, nil
}

// handshake floods hello frames until every peer is visible, then ack frames
// until every peer confirmed seeing us. Ghost exchange frames must not be
// sent before all bus links exist, since the bus drops messages to peers that
// have not connected yet.
func (w *BusWorld) handshake() error {
	if err := w.sock.SetOption(mangos.OptionRecvDeadline, handshakeInterval); err != nil {
		return fmt.Errorf("comm: setting handshake deadline: %w", err)
	}

	seenHello := map[int]bool{}
	seenAck := map[int]bool{}
	deadline := time.Now().Add(handshakeTimeout)

	for len(seenAck) < w.size-1 {
		if time.Now().After(deadline) {
			return fmt.Errorf("comm: handshake timed out, saw %d/%d peers", len(seenHello), w.size-1)
		}

		kind := helloFrame
		if len(seenHello) == w.size-1 {
			kind = ackFrame
		}
		if err := w.sock.Send(marshalFrame(handshakeGen, w.rank, []byte{kind})); err != nil {
			return fmt.Errorf("comm: handshake send: %w", err)
		}

		data, err := w.sock.Recv()
		if err != nil {
			// deadline expired without a frame; resend and keep waiting
			continue
		}
		gen, peer, payload, err := unmarshalFrame(data)
		if err != nil {
			return err
		}
		if peer < 0 || peer >= w.size {
			return fmt.Errorf("%w: %d", ErrRankMismatch, peer)
		}
		if gen != handshakeGen {
			// a fast peer already started its first exchange round
			w.buffer(gen, peer, payload)
			continue
		}
		seenHello[peer] = true
		if len(payload) == 1 && payload[0] == ackFrame {
			seenAck[peer] = true
		}
	}

	// block forever from now on; a missing rank is a deadlock by design
	if err := w.sock.SetOption(mangos.OptionRecvDeadline, time.Duration(0)); err != nil {
		return fmt.Errorf("comm: clearing recv deadline: %w", err)
	}
	return nil
}

func (w *BusWorld) buffer(gen uint64, rank int, payload []byte) {
	if w.pending[gen] == nil {
		w.pending[gen] = make(map[int][]byte)
	}
	w.pending[gen][rank] = payload
}

func (w *BusWorld) Rank() int { return w.rank }
func (w *BusWorld) Size() int { return w.size }

func (w *BusWorld) AllGather(payload []byte) ([][]byte, error) {
	if w.closed {
		return nil, ErrClosed
	}

	w.gen++
	result := make([][]byte, w.size)
	result[w.rank] = payload

	if w.size == 1 {
		return result, nil
	}

	if err := w.sock.Send(marshalFrame(w.gen, w.rank, payload)); err != nil {
		return nil, fmt.Errorf("comm: exchange send: %w", err)
	}

	have := 1
	if buffered := w.pending[w.gen]; buffered != nil {
		for peer, p := range buffered {
			result[peer] = p
			have++
		}
		delete(w.pending, w.gen)
	}

	for have < w.size {
		data, err := w.sock.Recv()
		if err != nil {
			return nil, fmt.Errorf("comm: exchange recv: %w", err)
		}
		gen, peer, p, err := unmarshalFrame(data)
		if err != nil {
			return nil, err
		}
		if peer < 0 || peer >= w.size {
			return nil, fmt.Errorf("%w: %d", ErrRankMismatch, peer)
		}
		switch {
		case gen < w.gen:
			// stale handshake or duplicate frame
			continue
		case gen > w.gen:
			w.buffer(gen, peer, p)
		default:
			if result[peer] == nil {
				have++
			}
			result[peer] = p
		}
	}
	return result, nil
}

func (w *BusWorld) Barrier() error {
	_, err := w.AllGather(nil)
	return err
}

func (w *BusWorld) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.sock != nil {
		return w.sock.Close()
	}
	return nil
}

// marshalFrame encodes generation and sender rank in front of the payload.
func marshalFrame(gen uint64, rank int, payload []byte) []byte {
	buf := make([]byte, 12+len(payload))
	binary.LittleEndian.PutUint64(buf[0:8], gen)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(rank))
	copy(buf[12:], payload)
	return buf
}

func unmarshalFrame(data []byte) (gen uint64, rank int, payload []byte, err error) {
	if len(data) < 12 {
		return 0, 0, nil, ErrShortPayload
	}
	gen = binary.LittleEndian.Uint64(data[0:8])
	rank = int(binary.LittleEndian.Uint32(data[8:12]))
	payload = data[12:]
	return gen, rank, payload, nil
}
