package workflow

import (
	"context"
	"log/slog"
	"strings"

	"holocap/internal/logging"
	"holocap/internal/queue"
	"holocap/internal/services"
)

// recordingLogger returns the logger for one stage run: the lane logger
// teed into the recording's sync log, tagged from ctx, and filtered by any
// logging.stage_overrides entry for the stage. The returned func closes the
// sync log.
func (m *Manager) recordingLogger(ctx context.Context, lane *syncLane, rec *queue.Recording) (*slog.Logger, func()) {
	logger := lane.logger
	if logger == nil {
		logger = m.logger
	}
	release := func() {}
	if handler, closer, err := m.recLogs.Open(rec); err != nil {
		logger.Warn("recording sync log unavailable", logging.Error(err))
	} else {
		logger = logging.TeeLogger(logger, handler)
		release = func() { _ = closer.Close() }
	}

	logger = logging.WithContext(ctx, logger)
	if m.cfg != nil {
		if level, ok := overrideFor(m.cfg.Logging.StageOverrides, lane.name); ok {
			logger = logging.WithLevelOverride(logger, logging.ParseLevel(level))
		}
	}
	return logger, release
}

// overrideFor finds stage's level ignoring case and surrounding space.
func overrideFor(overrides map[string]string, stage string) (string, bool) {
	stage = strings.TrimSpace(stage)
	for key, level := range overrides {
		if strings.EqualFold(strings.TrimSpace(key), stage) && strings.TrimSpace(level) != "" {
			return strings.TrimSpace(level), true
		}
	}
	return "", false
}

func stageContext(ctx context.Context, lane *syncLane, rec *queue.Recording, requestID string) context.Context {
	ctx = services.WithItemID(ctx, rec.ID)
	ctx = services.WithRecordingID(ctx, rec.Name)
	ctx = services.WithStage(ctx, lane.name)
	ctx = services.WithLane(ctx, lane.name)
	return services.WithRequestID(ctx, requestID)
}

// statusLabel turns a status such as "syncing" into "Syncing" for progress.
func statusLabel(status queue.Status) string {
	words := strings.Fields(strings.ReplaceAll(string(status), "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
