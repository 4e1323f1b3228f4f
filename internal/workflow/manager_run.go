package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"holocap/internal/logging"
	"holocap/internal/queue"
	"holocap/internal/services"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	lane := m.lane
	if lane == nil {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	lane.logger = m.logger.With(
		logging.String(logging.FieldComponent, "workflow-"+lane.name+"-runner"),
		logging.String(logging.FieldLane, lane.name),
	)
	m.wg.Add(1)
	m.mu.Unlock()

	go m.runLane(runCtx, lane)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Request queues recordings for sync regardless of sync.auto_sync. Synced,
// skipped and failed recordings are moved back to captured; a rerun over a
// synced recording only fills in missing outputs. It returns how many
// recordings were queued.
func (m *Manager) Request(ctx context.Context, ids ...int64) (int, error) {
	queued := 0
	for _, id := range ids {
		rec, err := m.store.GetByID(ctx, id)
		if err != nil {
			return queued, err
		}
		if rec == nil {
			return queued, services.Wrap(services.ErrValidation, "workflow", "request sync", fmt.Sprintf("recording %d not found", id), nil)
		}
		switch rec.Status {
		case queue.StatusRecording, queue.StatusSyncing:
			return queued, services.Wrap(services.ErrValidation, "workflow", "request sync",
				fmt.Sprintf("recording %d is %s", id, rec.Status), nil)
		case queue.StatusCaptured:
		default:
			rec.Status = queue.StatusCaptured
			rec.ErrorMessage = ""
			rec.InitProgress("Queued", "Sync requested")
			if err := m.store.Update(ctx, rec); err != nil {
				return queued, err
			}
		}
		if !m.autoSync {
			m.mu.Lock()
			m.requested[rec.ID] = struct{}{}
			m.mu.Unlock()
		}
		queued++
	}
	if queued > 0 {
		m.refreshMetrics(ctx)
		m.Wake()
	}
	return queued, nil
}

func (m *Manager) runLane(ctx context.Context, lane *syncLane) {
	defer m.wg.Done()
	logger := lane.logger
	if logger == nil {
		logger = m.logger
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.reclaim(ctx, logger); err != nil {
			logger.Warn("reclaim stale processing failed; stuck recordings may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check catalogue database access"),
			)
		}

		rec, err := m.nextRecording(ctx, lane)
		if err != nil {
			m.handleNextRecordingError(ctx, logger, err)
			continue
		}
		if rec == nil {
			m.waitForWorkOrShutdown(ctx)
			continue
		}

		if err := m.runPreflightChecks(logger); err != nil {
			m.setLastError(err)
			m.waitForRetryOrShutdown(ctx)
			continue
		}

		if err := m.processRecording(ctx, lane, logger, rec); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) nextRecording(ctx context.Context, lane *syncLane) (*queue.Recording, error) {
	if m.autoSync {
		return m.store.NextForStatuses(ctx, lane.entry)
	}

	m.mu.RLock()
	ids := make([]int64, 0, len(m.requested))
	for id := range m.requested {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	slices.Sort(ids)

	for _, id := range ids {
		rec, err := m.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		delete(m.requested, id)
		m.mu.Unlock()
		if rec != nil && lane.accepts(rec.Status) {
			return rec, nil
		}
	}
	return nil, nil
}

func (m *Manager) handleNextRecordingError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to fetch next recording",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check catalogue database access"),
	)
	m.waitForRetryOrShutdown(ctx)
}

func (m *Manager) waitForWorkOrShutdown(ctx context.Context) {
	timer := time.NewTimer(m.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-timer.C:
	}
}

func (m *Manager) waitForRetryOrShutdown(ctx context.Context) {
	timer := time.NewTimer(m.retryInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
