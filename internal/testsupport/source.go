package testsupport

import (
	"context"
	"errors"
	"io"
	"sync"

	"holocap/internal/stream"
)

// FakeSource is a scripted stream.Source. It yields Packets in order, then
// returns ReadErr if set, or blocks until ctx ends when Block is true, or
// returns io.EOF.
type FakeSource struct {
	Packets []stream.Packet
	OpenErr error
	ReadErr error
	Block   bool

	mu     sync.Mutex
	next   int
	opened bool
	closes int
}

func (s *FakeSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenErr != nil {
		return s.OpenErr
	}
	s.opened = true
	return nil
}

func (s *FakeSource) ReadNext(ctx context.Context) (stream.Packet, error) {
	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return stream.Packet{}, errors.New("fake source: not open")
	}
	if s.next < len(s.Packets) {
		pkt := s.Packets[s.next]
		s.next++
		s.mu.Unlock()
		return pkt, nil
	}
	readErr, block := s.ReadErr, s.Block
	s.mu.Unlock()

	if readErr != nil {
		return stream.Packet{}, readErr
	}
	if block {
		<-ctx.Done()
		return stream.Packet{}, ctx.Err()
	}
	return stream.Packet{}, io.EOF
}

func (s *FakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Closes reports how many times Close was called.
func (s *FakeSource) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Delivered reports how many scripted packets were read.
func (s *FakeSource) Delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// FakeOpener hands out FakeSources by kind. Kinds without an entry fail to
// open, like an unconfigured device port.
type FakeOpener struct {
	mu      sync.Mutex
	Sources map[stream.Kind]*FakeSource
}

// Opener returns the stream.Opener backed by o.
func (o *FakeOpener) Opener() stream.Opener {
	return func(kind stream.Kind) (stream.Source, error) {
		o.mu.Lock()
		defer o.mu.Unlock()
		src, ok := o.Sources[kind]
		if !ok {
			return nil, errors.New("fake opener: no source for " + string(kind))
		}
		return src, nil
	}
}

// Sequence builds n packets starting at ts0 and spaced by step ticks, each
// with the given payload.
func Sequence(ts0, step uint64, n int, payload []byte, withPose bool) []stream.Packet {
	out := make([]stream.Packet, n)
	for i := range out {
		out[i] = stream.Packet{Timestamp: ts0 + uint64(i)*step, Payload: payload}
		if withPose {
			pose := stream.Identity()
			pose[3] = float32(i)
			out[i].Pose = &pose
		}
	}
	return out
}
