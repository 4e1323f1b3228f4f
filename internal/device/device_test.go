package device_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"holocap/internal/config"
	"holocap/internal/device"
	"holocap/internal/services"
	"holocap/internal/stream"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	pose := stream.Identity()
	pose[7] = 2.5
	if err := device.WriteFrame(&buf, stream.KindVideo, stream.Packet{Timestamp: 42, Payload: []byte("frame"), Pose: &pose}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := device.WriteFrame(&buf, stream.KindAccel, stream.Packet{Timestamp: 43, Payload: []byte{9}}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	r := bufio.NewReader(&buf)
	first, err := device.ReadFrame(r, stream.KindVideo)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if first.Timestamp != 42 || string(first.Payload) != "frame" || first.Pose == nil || first.Pose[7] != 2.5 {
		t.Fatalf("unexpected packet %+v", first)
	}
	second, err := device.ReadFrame(r, stream.KindAccel)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if second.Timestamp != 43 || second.Pose != nil {
		t.Fatalf("unexpected packet %+v", second)
	}
	if _, err := device.ReadFrame(r, stream.KindAccel); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF at end, got %v", err)
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := device.WriteFrame(&buf, stream.KindAccel, stream.Packet{Timestamp: 1, Payload: []byte("abcdef")}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	data := buf.Bytes()[:buf.Len()-2]
	_, err := device.ReadFrame(bufio.NewReader(bytes.NewReader(data)), stream.KindAccel)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func listen(t *testing.T) (net.Listener, string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return ln, host, port
}

func TestTCPSourceReadsFramesAndHonoursCancel(t *testing.T) {
	ln, host, port := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for ts := uint64(1); ts <= 3; ts++ {
			if err := device.WriteFrame(conn, stream.KindGyro, stream.Packet{Timestamp: ts * 100, Payload: []byte{byte(ts)}}); err != nil {
				return
			}
		}
		time.Sleep(2 * time.Second)
	}()

	src := device.NewTCPSource(stream.KindGyro, host, port, time.Second)
	if err := src.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()
	for want := uint64(100); want <= 300; want += 100 {
		pkt, err := src.ReadNext(context.Background())
		if err != nil {
			t.Fatalf("ReadNext: %v", err)
		}
		if pkt.Timestamp != want {
			t.Fatalf("timestamp = %d, want %d", pkt.Timestamp, want)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := src.ReadNext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("cancel did not interrupt the blocked read")
	}
}

func TestTCPSourceOpenFailure(t *testing.T) {
	ln, host, port := listen(t)
	ln.Close()
	src := device.NewTCPSource(stream.KindMag, host, port, 200*time.Millisecond)
	if err := src.Open(context.Background()); err == nil {
		t.Fatal("expected dial failure on closed port")
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close after failed open: %v", err)
	}
}

func TestControlCommands(t *testing.T) {
	ln, host, port := listen(t)
	received := make(chan string, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			line, _ := bufio.NewReader(conn).ReadString('\n')
			line = strings.TrimSpace(line)
			received <- line
			switch {
			case strings.HasPrefix(line, "START"):
				conn.Write([]byte("OK\n"))
			case line == "UTC_OFFSET":
				conn.Write([]byte("OK 133000000000\n"))
			default:
				conn.Write([]byte("ERR not recording\n"))
			}
			conn.Close()
		}
	}()

	ctl := device.NewControl(host, port, time.Second)
	if err := ctl.Start(context.Background(), []stream.Kind{stream.KindVideo, stream.KindDepth}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := <-received; got != "START pv,depth_ahat" {
		t.Fatalf("unexpected start line %q", got)
	}
	offset, err := ctl.UTCOffset(context.Background())
	if err != nil || offset != 133000000000 {
		t.Fatalf("UTCOffset = %d, %v", offset, err)
	}
	<-received
	err = ctl.Stop(context.Background())
	if err == nil || !strings.Contains(err.Error(), "not recording") {
		t.Fatalf("expected rejected stop, got %v", err)
	}
}

func TestSimSourceProducesIncreasingPackets(t *testing.T) {
	format := device.SimFormat{PVWidth: 8, PVHeight: 4, PVStride: 8, PVFramerate: 200, DepthWidth: 4, DepthHeight: 4}
	cases := map[stream.Kind]int{
		stream.KindVideo: 8 * 4 * 3 / 2,
		stream.KindDepth: 4 * 4 * 4,
		stream.KindAccel: 12,
	}
	for kind, size := range cases {
		src := device.NewSimSource(kind, format)
		if err := src.Open(context.Background()); err != nil {
			t.Fatalf("Open %s: %v", kind, err)
		}
		var last uint64
		for i := 0; i < 3; i++ {
			pkt, err := src.ReadNext(context.Background())
			if err != nil {
				t.Fatalf("ReadNext %s: %v", kind, err)
			}
			if pkt.Timestamp <= last {
				t.Fatalf("%s timestamp %d not after %d", kind, pkt.Timestamp, last)
			}
			last = pkt.Timestamp
			if len(pkt.Payload) != size {
				t.Fatalf("%s payload %d bytes, want %d", kind, len(pkt.Payload), size)
			}
			if (pkt.Pose != nil) != kind.HasPose() {
				t.Fatalf("%s pose presence mismatch", kind)
			}
		}
		src.Close()
	}
}

func TestNewOpenerModes(t *testing.T) {
	cfg := config.Default()
	cfg.Device.Mode = config.DeviceModeSimulated
	src, err := device.NewOpener(&cfg)(stream.KindVideo)
	if err != nil {
		t.Fatalf("simulated opener: %v", err)
	}
	if _, ok := src.(*device.SimSource); !ok {
		t.Fatalf("expected SimSource, got %T", src)
	}
	if _, ok := device.NewCompanion(&cfg).(device.Static); !ok {
		t.Fatal("expected static companion in simulated mode")
	}

	cfg = config.Default()
	delete(cfg.Capture.Ports, "imu_mag")
	tcpSrc, err := device.NewOpener(&cfg)(stream.KindVideo)
	if err != nil {
		t.Fatalf("tcp opener: %v", err)
	}
	if got := tcpSrc.(*device.TCPSource).Addr(); got != "192.168.0.117:3810" {
		t.Fatalf("unexpected addr %q", got)
	}
	if _, err := device.NewOpener(&cfg)(stream.KindMag); !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for unmapped port, got %v", err)
	}
	if _, ok := device.NewCompanion(&cfg).(*device.Control); !ok {
		t.Fatal("expected control client in tcp mode")
	}
}
