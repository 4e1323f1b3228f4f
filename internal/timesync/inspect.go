package timesync

import (
	"errors"
	"os"
	"path/filepath"

	"holocap/internal/services"
	"holocap/internal/session"
	"holocap/internal/stream"
)

// Inspect scans the raw streams of the recording at dir without writing
// anything. Each report carries the sample count, period, gaps and the
// match counts a Sync would produce against the base stream. A missing base
// stream leaves the base report skipped and every other stream unmatched.
func (e *Engine) Inspect(dir string) (Report, error) {
	report := Report{
		Recording:  filepath.Base(filepath.Clean(dir)),
		Dir:        dir,
		BaseStream: string(e.opts.BaseStream),
		Tolerance:  e.opts.Tolerance,
	}
	rawDir := filepath.Join(dir, session.RawDir)
	if _, err := os.Stat(rawDir); err != nil {
		return report, services.Wrap(services.ErrMissingInput, "timesync", "open recording", rawDir, err)
	}

	var baseTS []uint64
	kinds := append([]stream.Kind{e.opts.BaseStream}, e.opts.Streams...)
	for i, kind := range kinds {
		rep := StreamReport{Stream: string(kind), Status: StreamSynced}
		t, err := loadTrack(rawDir, kind)
		switch {
		case errors.Is(err, services.ErrMissingInput):
			rep.Status = StreamSkipped
			rep.Reason = services.Details(err).Message
			rep.Unmatched = len(baseTS)
			report.Streams = append(report.Streams, rep)
			continue
		case err != nil:
			return report, err
		}

		ts := t.timestamps()
		rep.Samples = len(ts)
		rep.Truncated = t.truncated
		rep.Period = e.opts.Periods[kind]
		if rep.Period == 0 {
			rep.Period = EstimatePeriod(ts)
		}
		rep.Gaps = DetectGaps(ts, rep.Period, e.opts.GapFactor)
		if i == 0 {
			baseTS = ts
			report.Frames = len(ts)
			rep.Matched = len(ts)
		} else {
			corr := Correspond(baseTS, ts, e.opts.Tolerance)
			rep.Matched = corr.Matched
			rep.Unmatched = corr.Unmatched
		}
		report.Streams = append(report.Streams, rep)
	}
	return report, nil
}
