package workflow

import (
	"fmt"
	"log/slog"
	"strings"

	"holocap/internal/logging"
	"holocap/internal/preflight"
)

// runPreflightChecks validates storage readiness before a recording is
// claimed. It returns nil when all checks pass, or an error describing all
// failures.
func (m *Manager) runPreflightChecks(logger *slog.Logger) error {
	if m.preflight == nil {
		return nil
	}
	failed := preflight.Failed(m.preflight(m.cfg))
	if len(failed) == 0 {
		return nil
	}

	failures := make([]string, 0, len(failed))
	for _, r := range failed {
		logger.Error("preflight check failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "free space or fix permissions; the lane retries automatically"),
		)
		failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return fmt.Errorf("preflight checks failed: %s", strings.Join(failures, "; "))
}
