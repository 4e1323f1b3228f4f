package timesync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"holocap/internal/logging"
	"holocap/internal/metrics"
	"holocap/internal/recordlog"
	"holocap/internal/services"
	"holocap/internal/session"
	"holocap/internal/stream"
)

// SyncDir is the output subdirectory of a recording.
const SyncDir = "sync"

// Stream outcomes reported by Sync.
const (
	StreamSynced  = "synced"
	StreamSkipped = "skipped"
)

// Run results recorded in metrics.
const (
	ResultOK      = "ok"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// StreamReport describes what Sync did for one stream.
type StreamReport struct {
	Stream    string `json:"stream"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Samples   int    `json:"samples"`
	Matched   int    `json:"matched"`
	Unmatched int    `json:"unmatched"`
	Period    uint64 `json:"period"`
	Gaps      []Gap  `json:"gaps,omitempty"`
	// Written counts outputs created by this run; Existing counts outputs
	// left untouched because they were already present.
	Written       int  `json:"written"`
	Existing      int  `json:"existing"`
	MissingPlanes int  `json:"missing_planes,omitempty"`
	Truncated     bool `json:"truncated,omitempty"`
}

// Report is the outcome of one Sync call.
type Report struct {
	Recording   string         `json:"recording"`
	Dir         string         `json:"dir"`
	BaseStream  string         `json:"base_stream"`
	Frames      int            `json:"frames"`
	Tolerance   uint64         `json:"tolerance_ticks"`
	Streams     []StreamReport `json:"streams"`
	MetaWritten bool           `json:"meta_written"`
	Elapsed     time.Duration  `json:"elapsed"`
}

// GapCount sums the gaps found across all streams.
func (r Report) GapCount() int {
	total := 0
	for _, s := range r.Streams {
		total += len(s.Gaps)
	}
	return total
}

// Stream returns the report for kind, if present.
func (r Report) Stream(kind stream.Kind) (StreamReport, bool) {
	for _, s := range r.Streams {
		if s.Stream == string(kind) {
			return s, true
		}
	}
	return StreamReport{}, false
}

// Engine aligns recordings. It holds no per-run state and may be shared.
type Engine struct {
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewEngine constructs an engine. logger and m may be nil.
func NewEngine(opts Options, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		opts:    opts.withDefaults(),
		logger:  logging.NewComponentLogger(logger, "timesync"),
		metrics: m,
	}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// Sync aligns the recording rooted at dir. A missing or unavailable base
// stream returns an error wrapping services.ErrMissingInput; missing
// secondary streams are reported as skipped.
func (e *Engine) Sync(ctx context.Context, dir string) (Report, error) {
	started := time.Now()
	name := filepath.Base(filepath.Clean(dir))
	ctx = services.WithRecordingID(ctx, name)
	logger := logging.WithContext(ctx, e.logger)

	report, err := e.run(ctx, dir, name, logger)
	report.Elapsed = time.Since(started)
	switch {
	case err == nil:
		e.metrics.SyncRun(ResultOK)
		for _, s := range report.Streams {
			e.metrics.SyncStream(s.Stream, s.Matched, s.Unmatched, len(s.Gaps))
		}
		logger.Info("recording synchronized",
			logging.Int("frames", report.Frames),
			logging.Int("gaps", report.GapCount()),
			logging.Bool("meta_written", report.MetaWritten),
			logging.Duration("elapsed", report.Elapsed),
		)
	case errors.Is(err, services.ErrMissingInput):
		e.metrics.SyncRun(ResultSkipped)
		logging.WarnWithContext(logger, "recording skipped", "sync_skipped",
			append(logging.ErrorAttrs(err),
				logging.String(logging.FieldImpact, "no synchronized output for this recording"),
				logging.String(logging.FieldErrorHint, "the base stream was not captured; re-record or change sync.base_stream"),
			)...)
	default:
		e.metrics.SyncRun(ResultFailed)
		logging.ErrorWithContext(logger, "synchronization failed", "sync_failed", logging.ErrorAttrs(err)...)
	}
	return report, err
}

func (e *Engine) run(ctx context.Context, dir, name string, logger *slog.Logger) (Report, error) {
	report := Report{
		Recording:  name,
		Dir:        dir,
		BaseStream: string(e.opts.BaseStream),
		Tolerance:  e.opts.Tolerance,
	}
	rawDir := filepath.Join(dir, session.RawDir)
	if _, err := os.Stat(rawDir); err != nil {
		return report, services.Wrap(services.ErrMissingInput, "timesync", "open recording", rawDir, err)
	}

	base, err := loadTrack(rawDir, e.opts.BaseStream)
	if err != nil {
		return report, err
	}
	if base.size() == 0 {
		return report, missing(e.opts.BaseStream, "base stream has no frames", nil)
	}
	report.Frames = base.size()
	baseTS := base.timestamps()

	syncDir := filepath.Join(dir, SyncDir)
	if err := os.MkdirAll(syncDir, 0o755); err != nil {
		return report, writeErr("create sync directory", syncDir, err)
	}

	baseReport := StreamReport{Stream: string(base.kind), Status: StreamSynced}
	if err := e.align(ctx, base, Identity(base.size()), syncDir, &baseReport); err != nil {
		return report, err
	}
	e.logStream(logger, baseReport)

	reports := make([]StreamReport, len(e.opts.Streams))
	errs := make([]error, len(e.opts.Streams))
	work := func(i int) {
		kind := e.opts.Streams[i]
		reports[i], errs[i] = e.syncStream(ctx, rawDir, syncDir, kind, baseTS)
		if errs[i] == nil {
			e.logStream(logger, reports[i])
		}
	}
	if e.opts.Parallel {
		var wg sync.WaitGroup
		for i := range e.opts.Streams {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				work(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range e.opts.Streams {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			work(i)
			if errs[i] != nil {
				break
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return report, err
	}

	report.Streams = append([]StreamReport{baseReport}, reports...)

	meta, err := e.buildMeta(dir, base, report.Streams)
	if err != nil {
		return report, err
	}
	encoded, err := EncodeMeta(meta)
	if err != nil {
		return report, err
	}
	metaPath := filepath.Join(syncDir, MetaFile)
	present, err := exists(metaPath)
	if err != nil {
		return report, writeErr("stat output", metaPath, err)
	}
	if !present {
		if err := publish(metaPath, func(w io.Writer) error {
			_, err := w.Write(encoded)
			return err
		}); err != nil {
			return report, err
		}
		report.MetaWritten = true
	}
	return report, nil
}

func (e *Engine) syncStream(ctx context.Context, rawDir, syncDir string, kind stream.Kind, baseTS []uint64) (StreamReport, error) {
	rep := StreamReport{Stream: string(kind), Status: StreamSynced}
	t, err := loadTrack(rawDir, kind)
	if errors.Is(err, services.ErrMissingInput) {
		rep.Status = StreamSkipped
		rep.Reason = services.Details(err).Message
		rep.Unmatched = len(baseTS)
		return rep, nil
	}
	if err != nil {
		return rep, err
	}
	corr := Correspond(baseTS, t.timestamps(), e.opts.Tolerance)
	if err := e.align(ctx, t, corr, syncDir, &rep); err != nil {
		return rep, err
	}
	return rep, nil
}

// align fills rep from the correspondence and writes the stream's outputs.
func (e *Engine) align(ctx context.Context, t *track, corr Correspondence, syncDir string, rep *StreamReport) error {
	ts := t.timestamps()
	rep.Samples = len(ts)
	rep.Matched = corr.Matched
	rep.Unmatched = corr.Unmatched
	rep.Truncated = t.truncated
	rep.Period = e.opts.Periods[t.kind]
	if rep.Period == 0 {
		rep.Period = EstimatePeriod(ts)
	}
	rep.Gaps = DetectGaps(ts, rep.Period, e.opts.GapFactor)

	outDir := filepath.Join(syncDir, string(t.kind))
	switch t.kind.Layout() {
	case stream.LayoutFrames:
		return e.alignFrames(ctx, t, corr, outDir, rep)
	case stream.LayoutPlanes:
		return e.alignPlanes(ctx, t, corr, outDir, rep)
	case stream.LayoutLog:
		return e.alignLog(t, corr, outDir, rep)
	default:
		return fmt.Errorf("stream %s: unsupported layout %s", t.kind, t.kind.Layout())
	}
}

func (e *Engine) alignFrames(ctx context.Context, t *track, corr Correspondence, outDir string, rep *StreamReport) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return writeErr("create output directory", outDir, err)
	}
	for i := range corr.Matches {
		idx, ok := corr.Match(i)
		if !ok {
			continue
		}
		if err := checkCancel(ctx, i); err != nil {
			return err
		}
		src := filepath.Join(t.dir, t.frames[idx].Name)
		dst := filepath.Join(outDir, stream.OrdinalName(stream.ColorPrefix, i, stream.ColorExt))
		if err := rep.tally(copyIfAbsent(src, dst)); err != nil {
			return err
		}
		e.progress(t.kind, i, len(corr.Matches))
	}
	return e.alignPoses(t, corr, outDir, rep)
}

func (e *Engine) alignPlanes(ctx context.Context, t *track, corr Correspondence, outDir string, rep *StreamReport) error {
	depthOut := filepath.Join(outDir, stream.DepthDir)
	abOut := filepath.Join(outDir, stream.ABDir)
	for _, d := range []string{depthOut, abOut} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return writeErr("create output directory", d, err)
		}
	}
	for i := range corr.Matches {
		idx, ok := corr.Match(i)
		if !ok {
			continue
		}
		if err := checkCancel(ctx, i); err != nil {
			return err
		}
		frame := t.frames[idx]
		depthSrc := filepath.Join(t.dir, stream.DepthDir, frame.Name)
		depthDst := filepath.Join(depthOut, stream.OrdinalName(stream.DepthPrefix, i, stream.PlaneExt))
		if err := rep.tally(copyIfAbsent(depthSrc, depthDst)); err != nil {
			return err
		}
		abSrc := filepath.Join(t.dir, stream.ABDir, stream.FrameName(stream.ABPrefix, frame.Timestamp, stream.PlaneExt))
		abDst := filepath.Join(abOut, stream.OrdinalName(stream.ABPrefix, i, stream.PlaneExt))
		if present, err := exists(abSrc); err != nil || !present {
			rep.MissingPlanes++
			continue
		}
		if err := rep.tally(copyIfAbsent(abSrc, abDst)); err != nil {
			return err
		}
		e.progress(t.kind, i, len(corr.Matches))
	}
	return e.alignPoses(t, corr, outDir, rep)
}

// alignPoses re-keys the stream's pose log by ordinal using exact timestamp
// lookup against the matched frames.
func (e *Engine) alignPoses(t *track, corr Correspondence, outDir string, rep *StreamReport) error {
	if t.poses == nil {
		return nil
	}
	records := make([]recordlog.Record, 0, corr.Matched)
	for i := range corr.Matches {
		idx, ok := corr.Match(i)
		if !ok {
			continue
		}
		ts := t.timestampAt(idx)
		pose, ok := t.poses[ts]
		if !ok {
			continue
		}
		records = append(records, recordlog.Record{Key: uint64(i), Timestamp: ts, Pose: pose})
	}
	return rep.tally(writeLogIfAbsent(filepath.Join(outDir, stream.PoseLogName), records))
}

func (e *Engine) alignLog(t *track, corr Correspondence, outDir string, rep *StreamReport) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return writeErr("create output directory", outDir, err)
	}
	records := make([]recordlog.Record, 0, corr.Matched)
	for i := range corr.Matches {
		idx, ok := corr.Match(i)
		if !ok {
			continue
		}
		src := t.records[idx]
		records = append(records, recordlog.Record{
			Key:       uint64(i),
			Timestamp: src.Timestamp,
			Payload:   src.Payload,
			Pose:      src.Pose,
		})
	}
	if err := rep.tally(writeLogIfAbsent(filepath.Join(outDir, t.kind.LogName()), records)); err != nil {
		return err
	}
	e.progress(t.kind, len(corr.Matches)-1, len(corr.Matches))
	return nil
}

func (r *StreamReport) tally(written bool, err error) error {
	if err != nil {
		return err
	}
	if written {
		r.Written++
	} else {
		r.Existing++
	}
	return nil
}

func (e *Engine) progress(kind stream.Kind, i, total int) {
	if e.opts.Progress == nil || total == 0 {
		return
	}
	e.opts.Progress(kind, float64(i+1)*100/float64(total))
}

func (e *Engine) logStream(logger *slog.Logger, rep StreamReport) {
	logger = logger.With(logging.String(logging.FieldStream, rep.Stream))
	if rep.Status == StreamSkipped {
		logging.WarnWithContext(logger, "stream skipped", "sync_stream_skipped",
			logging.String("reason", rep.Reason),
			logging.String(logging.FieldImpact, "stream absent from synchronized output"),
			logging.String(logging.FieldErrorHint, "check the stream's UNAVAILABLE marker or raw directory"),
		)
		return
	}
	logger.Info("stream aligned",
		logging.Int("samples", rep.Samples),
		logging.Int("matched", rep.Matched),
		logging.Int("unmatched", rep.Unmatched),
		logging.Int("gaps", len(rep.Gaps)),
		logging.Int("written", rep.Written),
		logging.Int("existing", rep.Existing),
	)
	if rep.Truncated {
		logging.WarnWithContext(logger, "raw log truncated", "sync_log_truncated",
			logging.String(logging.FieldImpact, "trailing partial record ignored"),
			logging.String(logging.FieldErrorHint, "capture was likely interrupted; earlier records are intact"),
		)
	}
}

func (e *Engine) buildMeta(dir string, base *track, streams []StreamReport) (Meta, error) {
	meta := Meta{
		BaseStream:     string(e.opts.BaseStream),
		NumOfFrames:    base.size(),
		ToleranceTicks: e.opts.Tolerance,
		Streams:        make(map[string]StreamMeta, len(streams)),
	}
	if info, err := session.ReadDeviceInfo(dir); err == nil {
		meta.DeviceID = info.Name
	} else {
		e.logger.Debug("device info unavailable", logging.Error(err))
	}

	for _, s := range streams {
		meta.Streams[s.Stream] = StreamMeta{
			Status:    s.Status,
			Matched:   s.Matched,
			Unmatched: s.Unmatched,
			Gaps:      len(s.Gaps),
		}
	}

	rawDir := filepath.Join(dir, session.RawDir)
	if frames, err := ScanFrames(filepath.Join(rawDir, string(stream.KindVideo)), stream.ColorPrefix, stream.ColorExt); err == nil && len(frames) > 0 {
		w, h, err := imageSize(filepath.Join(rawDir, string(stream.KindVideo), frames[0].Name))
		if err != nil {
			return meta, services.Wrap(services.ErrMalformed, "timesync", "read video dimensions", frames[0].Name, err)
		}
		meta.PVWidth, meta.PVHeight = w, h
	}
	if s, ok := meta.Streams[string(stream.KindDepth)]; ok && s.Status == StreamSynced {
		depthDir := filepath.Join(rawDir, string(stream.KindDepth), stream.DepthDir)
		if frames, err := ScanFrames(depthDir, stream.DepthPrefix, stream.PlaneExt); err == nil && len(frames) > 0 {
			w, h, err := imageSize(filepath.Join(depthDir, frames[0].Name))
			if err != nil {
				return meta, services.Wrap(services.ErrMalformed, "timesync", "read depth dimensions", frames[0].Name, err)
			}
			meta.DepthMode = DepthModeAHAT
			meta.DepthWidth, meta.DepthHeight = w, h
		}
	}
	return meta, nil
}

func checkCancel(ctx context.Context, i int) error {
	if i%64 != 0 {
		return nil
	}
	return ctx.Err()
}

// WithProgress returns a copy of e that reports progress to fn.
func (e *Engine) WithProgress(fn func(kind stream.Kind, percent float64)) *Engine {
	clone := *e
	clone.opts.Progress = fn
	return &clone
}
