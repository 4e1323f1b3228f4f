package device

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"

	"holocap/internal/stream"
)

// SimFormat describes the frame geometry a simulated source emits.
type SimFormat struct {
	PVWidth     int
	PVHeight    int
	PVStride    int
	PVFramerate int
	DepthWidth  int
	DepthHeight int
}

// SimSource synthesizes packets at the nominal rate of its kind. It lets the
// pipeline run end to end without a headset attached.
type SimSource struct {
	kind   stream.Kind
	format SimFormat
	period time.Duration
	now    func() time.Time

	mu     sync.Mutex
	ticker *time.Ticker
	seq    uint64
	last   uint64
}

// NewSimSource returns a simulated source for kind.
func NewSimSource(kind stream.Kind, format SimFormat) *SimSource {
	return &SimSource{kind: kind, format: format, period: simPeriod(kind, format.PVFramerate), now: time.Now}
}

// Period returns the interval between generated packets.
func (s *SimSource) Period() time.Duration { return s.period }

func simPeriod(kind stream.Kind, fps int) time.Duration {
	switch kind {
	case stream.KindVideo:
		if fps <= 0 {
			fps = 30
		}
		return time.Second / time.Duration(fps)
	case stream.KindDepth:
		return time.Second / 45
	case stream.KindSpatial:
		return time.Second / 60
	case stream.KindMicrophone:
		return 20 * time.Millisecond
	default:
		return 10 * time.Millisecond
	}
}

func (s *SimSource) Open(ctx context.Context) error {
	if !s.kind.Valid() {
		return errors.New("simulated source: unknown stream " + string(s.kind))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticker = time.NewTicker(s.period)
	return nil
}

func (s *SimSource) ReadNext(ctx context.Context) (stream.Packet, error) {
	s.mu.Lock()
	ticker := s.ticker
	s.mu.Unlock()
	if ticker == nil {
		return stream.Packet{}, errors.New("simulated source: not open")
	}
	select {
	case <-ctx.Done():
		return stream.Packet{}, ctx.Err()
	case <-ticker.C:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ts := uint64(s.now().UnixNano() / 100)
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	s.seq++
	pkt := stream.Packet{Timestamp: ts, Payload: s.payload(s.seq)}
	if s.kind.HasPose() {
		pose := stream.Identity()
		pose[3] = float32(s.seq) * 0.001
		pkt.Pose = &pose
	}
	return pkt, nil
}

func (s *SimSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	return nil
}

func (s *SimSource) payload(seq uint64) []byte {
	switch s.kind {
	case stream.KindVideo:
		return simNV12(s.format.PVWidth, s.format.PVHeight, s.format.PVStride, seq)
	case stream.KindDepth:
		return simDepth(s.format.DepthWidth, s.format.DepthHeight, seq)
	case stream.KindMicrophone:
		// 20ms of 48kHz stereo int16 silence.
		return make([]byte, 960*2*2)
	case stream.KindSpatial:
		buf := make([]byte, stream.PoseSize)
		stream.PutPose(buf, stream.Identity())
		return buf
	default:
		buf := make([]byte, 12)
		phase := float64(seq) / 100
		binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(float32(math.Sin(phase))))
		binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(math.Cos(phase))))
		binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(9.81))
		return buf
	}
}

func simNV12(width, height, stride int, seq uint64) []byte {
	if stride < width {
		stride = width
	}
	buf := make([]byte, stride*height*3/2)
	for y := 0; y < height; y++ {
		row := buf[y*stride:]
		for x := 0; x < width; x++ {
			row[x] = byte(x + y + int(seq))
		}
	}
	for i := stride * height; i < len(buf); i++ {
		buf[i] = 128
	}
	return buf
}

func simDepth(width, height int, seq uint64) []byte {
	n := width * height
	buf := make([]byte, n*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(500+i%256+int(seq%100)))
		binary.LittleEndian.PutUint16(buf[(n+i)*2:], uint16(i%1024))
	}
	return buf
}
