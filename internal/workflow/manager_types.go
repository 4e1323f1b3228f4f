package workflow

import (
	"log/slog"

	"holocap/internal/queue"
	"holocap/internal/stage"
)

// StageSet bundles the concrete handlers the manager orchestrates.
type StageSet struct {
	Sync stage.Handler
}

// syncLane is the manager's only lane. Recordings enter at entry, are held
// at claim while the handler runs and finish at done.
type syncLane struct {
	name    string
	handler stage.Handler
	entry   queue.Status
	claim   queue.Status
	done    queue.Status
	logger  *slog.Logger
}

func (l *syncLane) accepts(status queue.Status) bool {
	return l != nil && status == l.entry
}
