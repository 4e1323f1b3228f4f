package queue

import (
	"context"
	"fmt"
	"time"
)

// requeue moves rows matching where back to StatusCaptured with progress
// reset and label as the progress stage.
func (s *Store) requeue(ctx context.Context, label, extraSet, where string, args ...any) (int64, error) {
	query := `UPDATE recordings SET status = ?, progress_stage = ?, progress_percent = 0,
        progress_message = NULL, last_heartbeat = NULL` + extraSet + `, updated_at = ? WHERE ` + where
	res, err := s.execWithRetry(ctx, query, append([]any{StatusCaptured, label, s.timestamp()}, args...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetStuckProcessing requeues recordings left in flight by a previous
// daemon run: interrupted syncs and sessions whose Stop never completed.
// Their raw data on disk stays usable.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	n, err := s.requeue(ctx, "Reset from stuck processing", "",
		`status IN (?, ?)`, StatusSyncing, StatusRecording)
	if err != nil {
		return 0, fmt.Errorf("reset stuck recordings: %w", err)
	}
	return n, nil
}

// ReclaimStaleProcessing requeues syncing recordings whose heartbeat is
// older than cutoff.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.requeue(ctx, "Reclaimed from stale processing", "",
		`status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusSyncing, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("reclaim stale recordings: %w", err)
	}
	return n, nil
}

// RetryFailed requeues failed recordings, all of them when ids is empty.
// Skipped recordings are never retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	where := `status = ?`
	args := []any{StatusFailed}
	if len(ids) > 0 {
		where += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	n, err := s.requeue(ctx, "Retry requested", ", error_message = NULL", where, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed recordings: %w", err)
	}
	return n, nil
}

// UpdateHeartbeat stamps an in-flight sync as alive.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := s.timestamp()
	err := s.execWithoutResultRetry(ctx,
		`UPDATE recordings SET last_heartbeat = ?, updated_at = ? WHERE id = ?`, now, now, id)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}
