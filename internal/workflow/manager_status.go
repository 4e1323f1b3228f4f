package workflow

import (
	"context"

	"holocap/internal/logging"
	"holocap/internal/queue"
	"holocap/internal/stage"
)

// StatusSummary is the workflow slice of daemon status.
type StatusSummary struct {
	Running       bool
	AutoSync      bool
	LastError     string
	LastRecording *queue.Recording
	QueueStats    map[queue.Status]int
	StageHealth   map[string]stage.Health
}

// Status snapshots lane state, catalogue counts and stage readiness.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:       m.running,
		AutoSync:      m.autoSync,
		LastRecording: cloneRecording(m.lastRec),
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	lane := m.lane
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("catalogue stats unavailable", logging.Error(err))
	}
	summary.QueueStats = stats

	summary.StageHealth = map[string]stage.Health{}
	if lane != nil {
		summary.StageHealth[lane.name] = lane.handler.HealthCheck(ctx)
	}
	return summary
}

func cloneRecording(rec *queue.Recording) *queue.Recording {
	if rec == nil {
		return nil
	}
	dup := *rec
	return &dup
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = err
}

func (m *Manager) setLastRecording(rec *queue.Recording) {
	dup := cloneRecording(rec)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRec = dup
}
