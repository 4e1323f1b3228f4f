package workflow

import (
	"context"

	"holocap/internal/logging"
)

// refreshMetrics republishes the per-status catalogue gauge.
func (m *Manager) refreshMetrics(ctx context.Context) {
	if m.metrics == nil {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Debug("catalogue stats unavailable for metrics", logging.Error(err))
		return
	}
	counts := make(map[string]int, len(stats))
	for status, count := range stats {
		counts[string(status)] = count
	}
	m.metrics.SetRecordings(counts)
}
