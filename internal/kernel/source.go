package kernel

import (
	"context"
	"errors"
	"sync"

	"github.com/cilium/ebpf/ringbuf"
)

// Source abstracts the kernel ring buffer itself so the Reader's decode and
// publish logic is independent of the kernel bytecode, per §1's scoping:
// the probe program is out of scope, only the shape of what it emits is
// specified.
type Source interface {
	// Read blocks for the next raw record, or returns ctx.Err() when ctx
	// is cancelled. lost reports how many records the kernel overwrote
	// before user-space could read them since the previous call.
	Read(ctx context.Context) (raw []byte, lost uint64, err error)
	Close() error
}

// RingbufSource adapts a real cilium/ebpf ring buffer map to Source. The
// kernel's BPF_MAP_TYPE_RINGBUF semantics apply backpressure at reservation
// time rather than overwriting unread entries, so this adapter always
// reports lost=0; a kernel-side dropped-event counter map is the mechanism
// for observing true producer-side loss, and wiring that map is left to the
// probe program (out of scope per §1).
type RingbufSource struct {
	reader *ringbuf.Reader
}

func NewRingbufSource(r *ringbuf.Reader) *RingbufSource {
	return &RingbufSource{reader: r}
}

func (s *RingbufSource) Read(ctx context.Context) ([]byte, uint64, error) {
	done := make(chan struct{})
	var rec ringbuf.Record
	var err error
	go func() {
		rec, err = s.reader.Read()
		close(done)
	}()
	select {
	case <-ctx.Done():
		s.reader.Close()
		<-done
		return nil, 0, ctx.Err()
	case <-done:
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) {
				return nil, 0, context.Canceled
			}
			return nil, 0, err
		}
		return rec.RawSample, 0, nil
	}
}

func (s *RingbufSource) Close() error { return s.reader.Close() }

// ChannelSource is a software ring buffer: a fixed-capacity circular buffer
// of pending raw records with drop-oldest overflow, exposed through the
// same Source contract. It backs tests and any deployment that pushes raw
// (still undecoded) records via Push instead of reading a live kernel map.
type ChannelSource struct {
	mu       sync.Mutex
	notify   chan struct{}
	closed   chan struct{}
	closeOne sync.Once
	buf      [][]byte
	capacity int
	lost     uint64
}

func NewChannelSource(capacity int) *ChannelSource {
	if capacity <= 0 {
		capacity = 256
	}
	return &ChannelSource{
		notify:   make(chan struct{}, 1),
		closed:   make(chan struct{}),
		capacity: capacity,
	}
}

// Push enqueues a raw record, evicting the oldest pending one if the
// software ring is full and counting it as a loss, mirroring what happens
// when the kernel overwrites an unread slot.
func (s *ChannelSource) Push(raw []byte) {
	s.mu.Lock()
	if len(s.buf) >= s.capacity {
		s.buf = s.buf[1:]
		s.lost++
	}
	s.buf = append(s.buf, raw)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *ChannelSource) Read(ctx context.Context) ([]byte, uint64, error) {
	for {
		s.mu.Lock()
		if len(s.buf) > 0 {
			raw := s.buf[0]
			s.buf = s.buf[1:]
			lost := s.lost
			s.lost = 0
			s.mu.Unlock()
			return raw, lost, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
			continue
		case <-s.closed:
			return nil, 0, context.Canceled
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
}

func (s *ChannelSource) Close() error {
	s.closeOne.Do(func() { close(s.closed) })
	return nil
}
