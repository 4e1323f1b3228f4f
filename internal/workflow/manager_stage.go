package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"holocap/internal/logging"
	"holocap/internal/queue"
)

// processRecording claims rec, runs the sync handler and persists the
// outcome. Only context cancellation and persistence failures are returned
// as errors the lane cares about; stage failures are recorded on rec.
func (m *Manager) processRecording(ctx context.Context, lane *syncLane, laneLogger *slog.Logger, rec *queue.Recording) error {
	if !lane.accepts(rec.Status) {
		laneLogger.Warn("recording not in a syncable status", logging.String("status", string(rec.Status)))
		m.waitForWorkOrShutdown(ctx)
		return nil
	}

	ctx = stageContext(ctx, lane, rec, uuid.NewString())
	logger, release := m.recordingLogger(ctx, lane, rec)
	defer release()

	claim(rec, lane.claim)
	if err := m.persist(ctx, rec); err != nil {
		logger.Error("failed to claim recording", logging.Error(err))
		return m.fail(fmt.Errorf("persist processing transition: %w", err))
	}

	started := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("recording_dir", rec.Path),
		logging.String("log_file", m.recLogs.Path(rec)),
	)

	if err := lane.handler.Prepare(ctx, rec); err != nil {
		m.recordFailure(ctx, logger, lane, rec, err)
		return m.fail(err)
	}
	if err := m.store.Update(ctx, rec); err != nil {
		logger.Error("failed to persist stage preparation", logging.Error(err))
		return m.fail(fmt.Errorf("persist stage preparation: %w", err))
	}

	err := m.heartbeat.run(ctx, logger, rec.ID, func() error { return lane.handler.Execute(ctx, rec) })
	switch {
	case errors.Is(err, context.Canceled):
		// the claim is left for reclaim after restart
		logger.Debug("stage interrupted by shutdown")
		return err
	case err != nil:
		m.recordFailure(ctx, logger, lane, rec, err)
		return m.fail(err)
	}

	finish(rec, lane)
	if err := m.persist(ctx, rec); err != nil {
		logger.Error("failed to persist stage result", logging.Error(err))
		return m.fail(fmt.Errorf("persist stage result: %w", err))
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(rec.Status)),
		logging.Int("num_of_frames", rec.FrameCount),
		logging.Int("gaps", rec.GapCount),
		logging.String("progress_message", rec.ProgressMessage),
		logging.Duration("sync_duration", time.Since(started)),
	)
	return nil
}

// persist saves rec and republishes status surfaces.
func (m *Manager) persist(ctx context.Context, rec *queue.Recording) error {
	if err := m.store.Update(ctx, rec); err != nil {
		return err
	}
	m.setLastRecording(rec)
	m.refreshMetrics(ctx)
	return nil
}

func (m *Manager) fail(err error) error {
	m.setLastError(err)
	return err
}

func claim(rec *queue.Recording, status queue.Status) {
	now := time.Now().UTC()
	rec.Status = status
	rec.ErrorMessage = ""
	rec.LastHeartbeat = &now
	rec.InitProgress(statusLabel(status), statusLabel(status)+" started")
}

// finish applies the done status unless the handler chose another outcome.
func finish(rec *queue.Recording, lane *syncLane) {
	if rec.Status == lane.claim || rec.Status == "" {
		rec.Status = lane.done
	}
	rec.LastHeartbeat = nil
	if rec.Status != queue.StatusSynced {
		return
	}
	rec.ProgressStage = statusLabel(queue.StatusSynced)
	rec.ProgressPercent = max(rec.ProgressPercent, 100)
	if rec.ProgressMessage == "" {
		rec.ProgressMessage = rec.ProgressStage
	}
}
