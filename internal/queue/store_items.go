package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateName is returned when a recording name is already catalogued.
var ErrDuplicateName = errors.New("recording name already catalogued")

// NewRecording catalogues a recording directory with the given initial status.
func (s *Store) NewRecording(ctx context.Context, name, path string, status Status, streams []string) (*Recording, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("recording name is required")
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("recording path is required")
	}
	if _, ok := statusSet[status]; !ok {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	existing, err := s.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	timestamp := s.timestamp()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO recordings (
            name, path, status, streams, created_at, updated_at, progress_percent
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name,
		path,
		status,
		joinList(streams),
		timestamp,
		timestamp,
		0.0,
	)
	if err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a recording by identifier. A missing row returns nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Recording, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

// FindByName returns the recording with the given name, or nil.
func (s *Store) FindByName(ctx context.Context, name string) (*Recording, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE name = ?`, strings.TrimSpace(name))
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	return rec, nil
}

// Update persists changes to an existing recording.
func (s *Store) Update(ctx context.Context, rec *Recording) error {
	if rec == nil {
		return errors.New("recording is nil")
	}
	rec.UpdatedAt = s.now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE recordings
         SET path = ?, status = ?, streams = ?, unavailable = ?, error_message = ?,
             frame_count = ?, gap_count = ?, updated_at = ?, progress_stage = ?,
             progress_percent = ?, progress_message = ?, last_heartbeat = ?
         WHERE id = ?`,
		rec.Path,
		rec.Status,
		joinList(rec.Streams),
		joinList(rec.Unavailable),
		nullableString(rec.ErrorMessage),
		rec.FrameCount,
		rec.GapCount,
		s.timestamp(),
		nullableString(rec.ProgressStage),
		rec.ProgressPercent,
		nullableString(rec.ProgressMessage),
		nullableTime(rec.LastHeartbeat),
		rec.ID,
	); err != nil {
		return fmt.Errorf("update recording: %w", err)
	}
	return nil
}

// List returns recordings filtered by status (all recordings when none given),
// oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		args = statusArgs(statuses)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return scanRecordings(rows)
}

// NextForStatuses returns the oldest recording matching any of the statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Recording, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := `SELECT ` + recordingColumns + ` FROM recordings WHERE status IN (` +
		makePlaceholders(len(statuses)) + `) ORDER BY created_at, id LIMIT 1`
	rec, err := scanRecording(s.db.QueryRowContext(ctx, query, statusArgs(statuses)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Remove deletes a recording row. Files on disk are left alone.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete recording: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes every catalogue row.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM recordings`)
	if err != nil {
		return 0, fmt.Errorf("clear catalogue: %w", err)
	}
	return res.RowsAffected()
}
