package timesync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"holocap/internal/logging"
	"holocap/internal/queue"
	"holocap/internal/stage"
	"holocap/internal/stream"
)

// StageName identifies the sync stage in health output and logs.
const StageName = "sync"

// Stage runs the engine as the workflow's sync step.
type Stage struct {
	engine *Engine
	store  *queue.Store
	logger *slog.Logger
}

// NewStage wires an engine to the catalogue. store may be nil, in which case
// progress is only logged.
func NewStage(engine *Engine, store *queue.Store, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{engine: engine, store: store, logger: logging.NewComponentLogger(logger, "sync-stage")}
}

// Prepare validates the recording directory and resets progress.
func (s *Stage) Prepare(ctx context.Context, rec *queue.Recording) error {
	if err := stage.RequireRecordingDir(rec); err != nil {
		return err
	}
	rec.InitProgress("Syncing", "Aligning streams to "+string(s.engine.Options().BaseStream))
	return nil
}

// Execute synchronizes the recording and records frame and gap counts.
func (s *Stage) Execute(ctx context.Context, rec *queue.Recording) error {
	logger := logging.WithContext(ctx, s.logger)
	sampler := logging.NewProgressSampler(10)
	var mu sync.Mutex
	engine := s.engine.WithProgress(func(kind stream.Kind, percent float64) {
		mu.Lock()
		defer mu.Unlock()
		if !sampler.ShouldLog(percent, string(kind)) {
			return
		}
		rec.SetProgress("Syncing", fmt.Sprintf("%s %.0f%%", kind, percent), percent)
		logger.Debug("sync progress",
			logging.String(logging.FieldStream, string(kind)),
			logging.Float64(logging.FieldProgressPercent, percent),
		)
		if s.store != nil {
			if err := s.store.Update(ctx, rec); err != nil {
				logger.Debug("progress update failed", logging.Error(err))
			}
		}
	})

	report, err := engine.Sync(ctx, rec.Path)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	rec.FrameCount = report.Frames
	rec.GapCount = report.GapCount()
	var skipped []string
	for _, sr := range report.Streams {
		if sr.Status == StreamSkipped {
			skipped = append(skipped, sr.Stream)
		}
	}
	if len(skipped) > 0 {
		rec.Unavailable = mergeNames(rec.Unavailable, skipped)
	}
	rec.SetProgressComplete("Synced", fmt.Sprintf("%d frames, %d gaps", report.Frames, rec.GapCount))
	return nil
}

// HealthCheck reports whether the engine is configured.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.engine == nil {
		return stage.Unhealthy(StageName, "engine not configured")
	}
	if !s.engine.Options().BaseStream.Valid() {
		return stage.Unhealthy(StageName, "invalid base stream")
	}
	return stage.Healthy(StageName)
}

func mergeNames(existing, extra []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(extra))
	out := make([]string, 0, len(existing)+len(extra))
	for _, list := range [][]string{existing, extra} {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
