package capture

import (
	"fmt"
	"os"
	"path/filepath"

	"holocap/internal/config"
	"holocap/internal/recordlog"
	"holocap/internal/services"
	"holocap/internal/stream"
)

// Writer persists the packets of one stream. Write errors wrapping
// services.ErrMalformed reject only that packet; any other error is fatal for
// the stream.
type Writer interface {
	Write(pkt stream.Packet) error
	Close() error
}

// Options carries the per-stream format settings resolved at session start.
type Options struct {
	PVWidth     int
	PVHeight    int
	PVStride    int
	DepthWidth  int
	DepthHeight int
	JPEGQuality int
}

// OptionsFromConfig extracts writer settings from the capture section.
func OptionsFromConfig(c config.Capture) Options {
	return Options{
		PVWidth:     c.PVWidth,
		PVHeight:    c.PVHeight,
		PVStride:    c.PVStride,
		DepthWidth:  c.DepthWidth,
		DepthHeight: c.DepthHeight,
		JPEGQuality: c.JPEGQuality,
	}
}

// NewWriter builds the writer strategy for kind under dir. dir must already
// exist.
func NewWriter(kind stream.Kind, dir string, opts Options) (Writer, error) {
	switch kind.Layout() {
	case stream.LayoutFrames:
		return newVideoWriter(dir, opts)
	case stream.LayoutPlanes:
		return newDepthWriter(dir, opts)
	case stream.LayoutLog:
		return newLogWriter(kind, dir)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "capture", "new writer", fmt.Sprintf("no writer for stream %q", kind), nil)
	}
}

func writeErr(op, path string, err error) error {
	return services.WithHint(
		services.Wrap(services.ErrWrite, "capture", op, path, err),
		"check free space and permissions under data_dir",
	)
}

func malformedPayload(kind stream.Kind, format string, args ...any) error {
	return services.Wrap(services.ErrMalformed, "capture", "write "+string(kind), fmt.Sprintf(format, args...), nil)
}

// writeFileAtomic writes via a temp file in the same directory and renames
// it into place so a crash never leaves a partial image behind.
func writeFileAtomic(path string, encode func(f *os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := encode(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// poseLog appends (timestamp, pose) records next to per-frame images.
type poseLog struct {
	log *recordlog.Writer
}

func openPoseLog(dir string) (*poseLog, error) {
	path := filepath.Join(dir, stream.PoseLogName)
	w, err := recordlog.Create(path, recordlog.KeyTimestamp)
	if err != nil {
		return nil, writeErr("open pose log", path, err)
	}
	return &poseLog{log: w}, nil
}

func (p *poseLog) append(pkt stream.Packet) error {
	err := p.log.Append(recordlog.Record{Key: pkt.Timestamp, Timestamp: pkt.Timestamp, Pose: pkt.Pose})
	if err != nil {
		return writeErr("append pose", p.log.Path(), err)
	}
	return nil
}

func (p *poseLog) close() error {
	syncErr := p.log.Sync()
	if err := p.log.Close(); err != nil {
		return writeErr("close pose log", p.log.Path(), err)
	}
	if syncErr != nil {
		return writeErr("sync pose log", p.log.Path(), syncErr)
	}
	return nil
}
