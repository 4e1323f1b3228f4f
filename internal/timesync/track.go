package timesync

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"holocap/internal/recordlog"
	"holocap/internal/services"
	"holocap/internal/stream"
)

// track is the scanned raw data of one stream.
type track struct {
	kind      stream.Kind
	dir       string
	frames    []Frame
	records   []recordlog.Record
	poses     map[uint64]*stream.Pose
	truncated bool
}

func (t *track) timestamps() []uint64 {
	if t.kind.Layout() == stream.LayoutLog {
		return RecordTimestamps(t.records)
	}
	return FrameTimestamps(t.frames)
}

func (t *track) size() int {
	if t.kind.Layout() == stream.LayoutLog {
		return len(t.records)
	}
	return len(t.frames)
}

func (t *track) timestampAt(i int) uint64 {
	if t.kind.Layout() == stream.LayoutLog {
		return t.records[i].Timestamp
	}
	return t.frames[i].Timestamp
}

// loadTrack scans raw/<kind>. Streams that were never captured or are marked
// unavailable return an error wrapping services.ErrMissingInput.
func loadTrack(rawDir string, kind stream.Kind) (*track, error) {
	dir := filepath.Join(rawDir, string(kind))
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, missing(kind, "no raw data", err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "timesync", "stat stream", dir, err)
	}
	if !info.IsDir() {
		return nil, missing(kind, "raw path is not a directory", nil)
	}
	if reason, ok := unavailableReason(dir); ok {
		return nil, missing(kind, "marked unavailable: "+reason, nil)
	}

	t := &track{kind: kind, dir: dir}
	switch kind.Layout() {
	case stream.LayoutFrames:
		t.frames, err = ScanFrames(dir, stream.ColorPrefix, stream.ColorExt)
	case stream.LayoutPlanes:
		t.frames, err = ScanFrames(filepath.Join(dir, stream.DepthDir), stream.DepthPrefix, stream.PlaneExt)
	case stream.LayoutLog:
		t.records, t.truncated, err = ScanLog(filepath.Join(dir, kind.LogName()))
	default:
		return nil, fmt.Errorf("stream %s: unsupported layout %s", kind, kind.Layout())
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, missing(kind, "no raw data", err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrMalformed, "timesync", "scan stream", dir, err)
	}
	if kind.HasPose() {
		poses, truncated, err := loadPoses(filepath.Join(dir, stream.PoseLogName))
		if err != nil {
			return nil, services.Wrap(services.ErrMalformed, "timesync", "read pose log", dir, err)
		}
		t.poses = poses
		t.truncated = t.truncated || truncated
	}
	return t, nil
}

// loadPoses indexes a pose log by timestamp. A missing log yields nil.
func loadPoses(path string) (map[uint64]*stream.Pose, bool, error) {
	records, truncated, err := ScanLog(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	poses := make(map[uint64]*stream.Pose, len(records))
	for _, rec := range records {
		if rec.Pose != nil {
			poses[rec.Timestamp] = rec.Pose
		}
	}
	return poses, truncated, nil
}

func unavailableReason(dir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, stream.UnavailableMarker))
	if err != nil {
		return "", false
	}
	reason := strings.TrimSpace(string(data))
	if reason == "" {
		reason = "unavailable"
	}
	return reason, true
}

func missing(kind stream.Kind, reason string, err error) error {
	return services.Wrap(services.ErrMissingInput, "timesync", "load "+string(kind), reason, err)
}
