package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"holocap/internal/logging"
	"holocap/internal/queue"
)

// heartbeat keeps a claimed recording's last_heartbeat fresh so a crashed
// daemon's work can be recognised and returned to captured.
type heartbeat struct {
	store    *queue.Store
	interval time.Duration
	timeout  time.Duration
}

// reclaim moves syncing recordings with a heartbeat older than the timeout
// back to captured. A zero timeout disables reclaiming.
func (h heartbeat) reclaim(ctx context.Context, logger *slog.Logger) error {
	if h.timeout <= 0 {
		return nil
	}
	n, err := h.store.ReclaimStaleProcessing(ctx, time.Now().Add(-h.timeout))
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("reclaimed stale recordings",
			logging.Int64("count", n),
			logging.String(logging.FieldEventType, "heartbeat_reclaimed"),
		)
	}
	return nil
}

// run wraps fn with a ticker that touches id's heartbeat until fn returns.
func (h heartbeat) run(ctx context.Context, logger *slog.Logger, id int64, fn func() error) error {
	if h.interval <= 0 {
		return fn()
	}
	beatCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-beatCtx.Done():
				return
			case <-ticker.C:
				err := h.store.UpdateHeartbeat(beatCtx, id)
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
			}
		}
	}()
	err := fn()
	stop()
	<-done
	return err
}
