package timesync

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"holocap/internal/recordlog"
	"holocap/internal/stream"
)

// Frame is one timestamped file of a frames or planes stream.
type Frame struct {
	Timestamp uint64
	Name      string
}

// ScanFrames lists dir for files named <prefix>-<ts>.<ext>, ignoring anything
// else, and returns them sorted by timestamp. When two files carry the same
// timestamp the first in name order is kept.
func ScanFrames(dir, prefix, ext string) ([]Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ts, ok := stream.ParseFrameName(entry.Name(), prefix, ext)
		if !ok {
			continue
		}
		frames = append(frames, Frame{Timestamp: ts, Name: entry.Name()})
	}
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].Timestamp < frames[j].Timestamp })
	return dedupeFrames(frames), nil
}

func dedupeFrames(frames []Frame) []Frame {
	if len(frames) < 2 {
		return frames
	}
	out := frames[:1]
	for _, f := range frames[1:] {
		if f.Timestamp == out[len(out)-1].Timestamp {
			continue
		}
		out = append(out, f)
	}
	return out
}

// FrameTimestamps projects frames onto their timestamps.
func FrameTimestamps(frames []Frame) []uint64 {
	out := make([]uint64, len(frames))
	for i, f := range frames {
		out[i] = f.Timestamp
	}
	return out
}

// ScanLog reads a timestamp-keyed record log and returns its records sorted
// by timestamp with duplicates dropped. A truncated tail is tolerated; the
// complete records before it are returned and truncated is set.
func ScanLog(path string) (records []recordlog.Record, truncated bool, err error) {
	mode, records, err := recordlog.ReadAll(path)
	if errors.Is(err, recordlog.ErrTruncated) {
		truncated = true
		err = nil
	}
	if err != nil {
		return nil, false, err
	}
	if mode != recordlog.KeyTimestamp {
		return nil, false, fmt.Errorf("%s: expected %s-keyed log, got %s", path, recordlog.KeyTimestamp, mode)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Timestamp < records[j].Timestamp })
	if len(records) > 1 {
		out := records[:1]
		for _, rec := range records[1:] {
			if rec.Timestamp == out[len(out)-1].Timestamp {
				continue
			}
			out = append(out, rec)
		}
		records = out
	}
	return records, truncated, nil
}

// RecordTimestamps projects records onto their timestamps.
func RecordTimestamps(records []recordlog.Record) []uint64 {
	out := make([]uint64, len(records))
	for i, rec := range records {
		out[i] = rec.Timestamp
	}
	return out
}
