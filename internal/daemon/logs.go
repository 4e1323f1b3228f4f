package daemon

import (
	"context"
	"errors"

	"holocap/internal/logging"
)

const defaultLogLimit = 200

// LogQuery selects daemon log events for the tail surfaces.
type LogQuery struct {
	Since  uint64
	Limit  int
	Follow bool // block until a newer event arrives or ctx ends
	Tail   bool // with Since 0, start from the newest events instead of the oldest
	Filter logging.EventFilter
}

// ReadLogs returns events after q.Since plus the cursor for the next call.
// Cursors older than the in-memory ring are served from the run's event
// archive. A follow that times out returns no events and no error.
func (d *Daemon) ReadLogs(ctx context.Context, q LogQuery) ([]logging.LogEvent, uint64, error) {
	if q.Limit <= 0 {
		q.Limit = defaultLogLimit
	}
	hub, archive := d.logHub, d.logArchive

	if archive != nil && q.Since > 0 && (hub == nil || q.Since < hub.FirstSequence()) {
		events, next, err := archive.ReadFiltered(q.Since, q.Limit, q.Filter)
		if err != nil {
			d.logger.Warn("log archive read failed", logging.Error(err))
		} else if len(events) > 0 {
			return events, next, nil
		}
	}
	if hub == nil {
		return nil, q.Since, nil
	}

	var (
		events []logging.LogEvent
		next   uint64
	)
	if q.Tail && q.Since == 0 && !q.Follow {
		events, next = hub.Tail(q.Limit)
	} else {
		var err error
		events, next, err = hub.Fetch(ctx, q.Since, q.Limit, q.Follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, q.Since, err
		}
	}
	matched := events[:0]
	for _, evt := range events {
		if q.Filter.Match(evt) {
			matched = append(matched, evt)
		}
	}
	return matched, next, nil
}
