package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"holocap/internal/logging"
	"holocap/internal/queue"
	"holocap/internal/services"
)

// recordFailure marks rec failed (or skipped when its inputs are missing)
// and persists the change. Persistence errors are logged, not returned.
func (m *Manager) recordFailure(ctx context.Context, logger *slog.Logger, lane *syncLane, rec *queue.Recording, cause error) {
	status := queue.FailureStatus(cause)
	rec.SetFailed(status, failureMessage(lane.name, cause))

	d := services.Details(cause)
	root := d.Cause
	if root == nil {
		root = cause
	}
	attrs := []logging.Attr{
		logging.String("resolved_status", string(status)),
		logging.String("error_message", rec.ErrorMessage),
		logging.String(logging.FieldErrorKind, string(d.Kind)),
		logging.String(logging.FieldErrorOperation, d.Operation),
		logging.String(logging.FieldErrorHint, d.Hint),
		logging.Error(root),
	}
	if status == queue.StatusSkipped {
		logger.Warn("stage skipped", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "stage_skipped"),
			logging.String(logging.FieldImpact, "recording stays unsynced until its inputs exist"),
		)...)...)
	} else {
		logger.Error("stage failed", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.Alert("stage_failure"),
		)...)...)
	}

	if err := m.persist(ctx, rec); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}
}

// failureMessage prefers the classified message over the raw error chain.
func failureMessage(stage string, err error) string {
	if err != nil {
		if msg := strings.TrimSpace(services.Details(err).Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			return msg
		}
	}
	if stage == "" {
		stage = "workflow"
	}
	return stage + " failed"
}
