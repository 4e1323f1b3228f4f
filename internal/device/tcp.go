package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"holocap/internal/stream"
)

// TCPSource reads one stream from the device's per-port TCP server.
type TCPSource struct {
	kind    stream.Kind
	addr    string
	timeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// NewTCPSource returns a source for kind at host:port.
func NewTCPSource(kind stream.Kind, host string, port int, timeout time.Duration) *TCPSource {
	return &TCPSource{
		kind:    kind,
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		timeout: timeout,
	}
}

// Addr returns the dialled address.
func (s *TCPSource) Addr() string { return s.addr }

func (s *TCPSource) Open(ctx context.Context) error {
	dialer := net.Dialer{Timeout: s.timeout, KeepAlive: 15 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.conn = conn
	s.reader = bufio.NewReaderSize(conn, 1<<20)
	s.mu.Unlock()
	return nil
}

// ReadNext blocks until a full packet arrives. Cancelling ctx interrupts a
// blocked read.
func (s *TCPSource) ReadNext(ctx context.Context) (stream.Packet, error) {
	s.mu.Lock()
	conn, reader := s.conn, s.reader
	s.mu.Unlock()
	if conn == nil {
		return stream.Packet{}, errors.New("tcp source: not open")
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	pkt, err := ReadFrame(reader, s.kind)
	if err != nil {
		if ctx.Err() != nil {
			return stream.Packet{}, ctx.Err()
		}
		return stream.Packet{}, fmt.Errorf("read %s: %w", s.addr, err)
	}
	return pkt, nil
}

func (s *TCPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.reader = nil
	return err
}
