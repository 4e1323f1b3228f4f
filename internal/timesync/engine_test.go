package timesync_test

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"holocap/internal/capture"
	"holocap/internal/queue"
	"holocap/internal/recordlog"
	"holocap/internal/services"
	"holocap/internal/session"
	"holocap/internal/stream"
	"holocap/internal/testsupport"
	"holocap/internal/timesync"
)

var writerOpts = capture.Options{
	PVWidth:     8,
	PVHeight:    4,
	PVStride:    8,
	DepthWidth:  4,
	DepthHeight: 4,
	JPEGQuality: 80,
}

const (
	pvStart = 1_000_000
	pvStep  = 333_333
	pvCount = 5
)

// writeStream records packets for kind under <rec>/raw/<kind> using the
// capture writers.
func writeStream(t *testing.T, rec string, kind stream.Kind, packets []stream.Packet) {
	t.Helper()
	dir := filepath.Join(rec, session.RawDir, string(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	w, err := capture.NewWriter(kind, dir, writerOpts)
	if err != nil {
		t.Fatalf("NewWriter(%s): %v", kind, err)
	}
	for _, pkt := range packets {
		if err := w.Write(pkt); err != nil {
			t.Fatalf("write %s: %v", kind, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close %s: %v", kind, err)
	}
}

func markUnavailable(t *testing.T, rec string, kind stream.Kind, reason string) {
	t.Helper()
	dir := filepath.Join(rec, session.RawDir, string(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	testsupport.WriteFile(t, filepath.Join(dir, stream.UnavailableMarker), []byte(reason))
}

// buildRecording lays out a small recording:
//   - pv: 5 frames, ~30fps
//   - depth_ahat: 8 frames offset by 50k ticks
//   - imu_accel: 20 samples at 100k ticks
//   - imu_mag: samples far outside tolerance
//   - microphone: marked unavailable
//   - spatial: never captured
func buildRecording(t *testing.T, root, name string) string {
	t.Helper()
	rec := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Join(rec, session.RawDir), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := session.WriteDeviceInfo(rec, session.DeviceInfo{
		Name:      "hl2-test",
		Recording: name,
		Started:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}); err != nil {
		t.Fatalf("WriteDeviceInfo: %v", err)
	}

	nv12 := make([]byte, writerOpts.PVStride*writerOpts.PVHeight*3/2)
	for i := range nv12 {
		nv12[i] = byte(i * 5)
	}
	writeStream(t, rec, stream.KindVideo, testsupport.Sequence(pvStart, pvStep, pvCount, nv12, true))

	planes := make([]byte, 2*writerOpts.DepthWidth*writerOpts.DepthHeight*2)
	for i := range planes {
		planes[i] = byte(i)
	}
	writeStream(t, rec, stream.KindDepth, testsupport.Sequence(pvStart+50_000, 222_222, 8, planes, true))

	writeStream(t, rec, stream.KindAccel, testsupport.Sequence(pvStart, 100_000, 20, []byte{1, 2, 3, 4}, false))
	writeStream(t, rec, stream.KindMag, testsupport.Sequence(5_000_000_000, 100_000, 3, []byte{9}, false))
	markUnavailable(t, rec, stream.KindMicrophone, "connection refused")
	return rec
}

func newEngine(parallel bool) *timesync.Engine {
	return timesync.NewEngine(timesync.Options{
		BaseStream: stream.KindVideo,
		Streams: []stream.Kind{
			stream.KindDepth,
			stream.KindSpatial,
			stream.KindAccel,
			stream.KindMag,
			stream.KindMicrophone,
		},
		Periods:  map[stream.Kind]uint64{stream.KindVideo: pvStep},
		Parallel: parallel,
	}, nil, nil)
}

func TestSyncAlignsStreams(t *testing.T) {
	rec := buildRecording(t, t.TempDir(), "rec-a")

	report, err := newEngine(false).Sync(context.Background(), rec)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if report.Frames != pvCount || !report.MetaWritten {
		t.Fatalf("unexpected report %+v", report)
	}

	syncDir := filepath.Join(rec, timesync.SyncDir)
	for i := 0; i < pvCount; i++ {
		for _, path := range []string{
			filepath.Join(syncDir, "pv", stream.OrdinalName(stream.ColorPrefix, i, stream.ColorExt)),
			filepath.Join(syncDir, "depth_ahat", stream.DepthDir, stream.OrdinalName(stream.DepthPrefix, i, stream.PlaneExt)),
			filepath.Join(syncDir, "depth_ahat", stream.ABDir, stream.OrdinalName(stream.ABPrefix, i, stream.PlaneExt)),
		} {
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("expected output %s: %v", path, err)
			}
		}
	}

	srcFrames, err := timesync.ScanFrames(filepath.Join(rec, session.RawDir, "pv"), stream.ColorPrefix, stream.ColorExt)
	if err != nil {
		t.Fatalf("ScanFrames: %v", err)
	}
	raw, _ := os.ReadFile(filepath.Join(rec, session.RawDir, "pv", srcFrames[2].Name))
	synced, _ := os.ReadFile(filepath.Join(syncDir, "pv", "color-000002.jpg"))
	if !bytes.Equal(raw, synced) {
		t.Fatal("expected synced frame 2 to be a copy of the third raw frame")
	}

	mode, poses, err := recordlog.ReadAll(filepath.Join(syncDir, "pv", stream.PoseLogName))
	if err != nil {
		t.Fatalf("read pose log: %v", err)
	}
	if mode != recordlog.KeyOrdinal || len(poses) != pvCount {
		t.Fatalf("unexpected pose log mode=%s n=%d", mode, len(poses))
	}
	for i, p := range poses {
		if p.Key != uint64(i) || p.Timestamp != pvStart+uint64(i)*pvStep || p.Pose == nil || p.Pose[3] != float32(i) {
			t.Fatalf("pose %d: unexpected %+v", i, p)
		}
	}

	mode, accel, err := recordlog.ReadAll(filepath.Join(syncDir, "imu_accel", stream.KindAccel.LogName()))
	if err != nil {
		t.Fatalf("read accel log: %v", err)
	}
	if mode != recordlog.KeyOrdinal || len(accel) != pvCount {
		t.Fatalf("unexpected accel log mode=%s n=%d", mode, len(accel))
	}
	for i, r := range accel {
		base := uint64(pvStart + i*pvStep)
		diff := int64(r.Timestamp) - int64(base)
		if diff < -50_000 || diff > 50_000 {
			t.Fatalf("accel ordinal %d matched %d, too far from %d", i, r.Timestamp, base)
		}
	}

	_, mag, err := recordlog.ReadAll(filepath.Join(syncDir, "imu_mag", stream.KindMag.LogName()))
	if err != nil {
		t.Fatalf("read mag log: %v", err)
	}
	if len(mag) != 0 {
		t.Fatalf("expected no mag records within tolerance, got %d", len(mag))
	}

	for _, kind := range []stream.Kind{stream.KindSpatial, stream.KindMicrophone} {
		sr, ok := report.Stream(kind)
		if !ok || sr.Status != timesync.StreamSkipped {
			t.Fatalf("expected %s skipped, got %+v", kind, sr)
		}
		if _, err := os.Stat(filepath.Join(syncDir, string(kind))); !errors.Is(err, fs.ErrNotExist) {
			t.Fatalf("expected no output for %s", kind)
		}
	}
	if sr, _ := report.Stream(stream.KindMag); sr.Matched != 0 || sr.Unmatched != pvCount {
		t.Fatalf("unexpected mag report %+v", sr)
	}

	meta, err := timesync.ReadMeta(syncDir)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if meta.DeviceID != "hl2-test" || meta.NumOfFrames != pvCount || meta.BaseStream != "pv" {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if meta.PVWidth != 8 || meta.PVHeight != 4 {
		t.Fatalf("unexpected pv dims %dx%d", meta.PVWidth, meta.PVHeight)
	}
	if meta.DepthMode != timesync.DepthModeAHAT || meta.DepthWidth != 4 || meta.DepthHeight != 4 {
		t.Fatalf("unexpected depth meta %+v", meta)
	}
	if meta.ToleranceTicks != timesync.DefaultTolerance {
		t.Fatalf("unexpected tolerance %d", meta.ToleranceTicks)
	}
	if s := meta.Streams["depth_ahat"]; s.Matched != pvCount || s.Status != timesync.StreamSynced {
		t.Fatalf("unexpected depth stream meta %+v", s)
	}
	if s := meta.Streams["microphone"]; s.Status != timesync.StreamSkipped {
		t.Fatalf("unexpected microphone stream meta %+v", s)
	}
}

func snapshotTree(t *testing.T, root string) map[string][]byte {
	t.Helper()
	files := map[string][]byte{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		files[rel] = data
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return files
}

func TestSyncRerunIsIdempotent(t *testing.T) {
	rec := buildRecording(t, t.TempDir(), "rec-b")
	engine := newEngine(false)

	if _, err := engine.Sync(context.Background(), rec); err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	syncDir := filepath.Join(rec, timesync.SyncDir)
	first := snapshotTree(t, syncDir)

	report, err := engine.Sync(context.Background(), rec)
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if report.MetaWritten {
		t.Fatal("expected meta.yaml to be left in place")
	}
	for _, sr := range report.Streams {
		if sr.Written != 0 {
			t.Fatalf("stream %s rewrote %d outputs", sr.Stream, sr.Written)
		}
	}
	second := snapshotTree(t, syncDir)
	if len(first) != len(second) {
		t.Fatalf("file count changed: %d -> %d", len(first), len(second))
	}
	for name, data := range first {
		if !bytes.Equal(data, second[name]) {
			t.Fatalf("file %s changed between runs", name)
		}
	}
}

func TestSyncFillsInMissingOutputs(t *testing.T) {
	rec := buildRecording(t, t.TempDir(), "rec-c")
	engine := newEngine(false)
	if _, err := engine.Sync(context.Background(), rec); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	victim := filepath.Join(rec, timesync.SyncDir, "pv", "color-000003.jpg")
	if err := os.Remove(victim); err != nil {
		t.Fatal(err)
	}
	report, err := engine.Sync(context.Background(), rec)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if sr, _ := report.Stream(stream.KindVideo); sr.Written != 1 {
		t.Fatalf("expected one frame restored, got %+v", sr)
	}
	if _, err := os.Stat(victim); err != nil {
		t.Fatalf("expected %s restored: %v", victim, err)
	}
}

func TestSyncParallelMatchesSequential(t *testing.T) {
	root := t.TempDir()
	seqRec := buildRecording(t, root, "seq")
	parRec := buildRecording(t, root, "par")

	seq, err := newEngine(false).Sync(context.Background(), seqRec)
	if err != nil {
		t.Fatalf("sequential Sync: %v", err)
	}
	par, err := newEngine(true).Sync(context.Background(), parRec)
	if err != nil {
		t.Fatalf("parallel Sync: %v", err)
	}
	if len(seq.Streams) != len(par.Streams) {
		t.Fatalf("stream count differs: %d vs %d", len(seq.Streams), len(par.Streams))
	}
	for i := range seq.Streams {
		a, b := seq.Streams[i], par.Streams[i]
		if a.Stream != b.Stream || a.Matched != b.Matched || a.Unmatched != b.Unmatched || a.Status != b.Status {
			t.Fatalf("stream %d differs: %+v vs %+v", i, a, b)
		}
	}
	seqMeta, _ := os.ReadFile(filepath.Join(seqRec, timesync.SyncDir, timesync.MetaFile))
	parMeta, _ := os.ReadFile(filepath.Join(parRec, timesync.SyncDir, timesync.MetaFile))
	if !bytes.Equal(seqMeta, parMeta) {
		t.Fatalf("meta differs:\n%s\nvs\n%s", seqMeta, parMeta)
	}
}

func TestSyncMissingBaseIsMissingInput(t *testing.T) {
	root := t.TempDir()

	_, err := newEngine(false).Sync(context.Background(), filepath.Join(root, "nothing"))
	if !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input for absent recording, got %v", err)
	}

	rec := filepath.Join(root, "no-pv")
	writeStream(t, rec, stream.KindAccel, testsupport.Sequence(0, 100, 3, []byte{1}, false))
	_, err = newEngine(false).Sync(context.Background(), rec)
	if !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input for absent base, got %v", err)
	}
	if queue.FailureStatus(err) != queue.StatusSkipped {
		t.Fatalf("expected skipped status mapping, got %s", queue.FailureStatus(err))
	}

	unavailable := filepath.Join(root, "pv-down")
	markUnavailable(t, unavailable, stream.KindVideo, "timeout")
	_, err = newEngine(false).Sync(context.Background(), unavailable)
	if !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input for unavailable base, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(unavailable, timesync.SyncDir)); !errors.Is(statErr, fs.ErrNotExist) {
		t.Fatal("expected no sync directory for skipped recording")
	}
}

func TestSyncHonoursCancellation(t *testing.T) {
	rec := buildRecording(t, t.TempDir(), "rec-cancel")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newEngine(false).Sync(ctx, rec); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStageRecordsCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := buildRecording(t, cfg.Paths.DataDir, "staged")

	item, err := store.NewRecording(context.Background(), "staged", rec, queue.StatusSyncing, cfg.Capture.Streams)
	if err != nil {
		t.Fatalf("NewRecording: %v", err)
	}
	st := timesync.NewStage(newEngine(true), store, nil)
	if health := st.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy stage, got %+v", health)
	}
	if err := st.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := st.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.FrameCount != pvCount || item.ProgressPercent != 100 {
		t.Fatalf("unexpected recording after sync: %+v", item)
	}
	found := map[string]bool{}
	for _, name := range item.Unavailable {
		found[name] = true
	}
	if !found["spatial"] || !found["microphone"] {
		t.Fatalf("expected skipped streams recorded, got %v", item.Unavailable)
	}

	missingDir := &queue.Recording{Name: "gone", Path: filepath.Join(cfg.Paths.DataDir, "gone")}
	if err := st.Prepare(context.Background(), missingDir); !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input from Prepare, got %v", err)
	}
}
