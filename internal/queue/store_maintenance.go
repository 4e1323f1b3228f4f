package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Stats counts recordings per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM recordings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("catalogue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var (
			status Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats[status] = n
	}
	return stats, rows.Err()
}

// Health folds Stats into lifecycle buckets.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	var h HealthSummary
	buckets := map[Status]*int{
		StatusRecording: &h.Recording,
		StatusCaptured:  &h.Pending,
		StatusSyncing:   &h.Syncing,
		StatusSynced:    &h.Synced,
		StatusSkipped:   &h.Skipped,
		StatusFailed:    &h.Failed,
	}
	for status, n := range stats {
		h.Total += n
		if b, ok := buckets[status]; ok {
			*b += n
		}
	}
	return h, nil
}

// CheckHealth probes the catalogue file, schema and integrity. Probing
// stops at the first failing step, which is also recorded in Error.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	h := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return h, errors.New("catalogue database path is unknown")
	}
	switch info, err := os.Stat(s.path); {
	case errors.Is(err, os.ErrNotExist):
		return h, nil
	case err != nil:
		return h, fmt.Errorf("stat catalogue database: %w", err)
	case info.IsDir():
		return h, fmt.Errorf("catalogue database path %q is a directory", s.path)
	}
	h.DatabaseExists = true
	if s.db == nil {
		return h, errors.New("catalogue database connection unavailable")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	steps := []func(context.Context, *DatabaseHealth) error{
		s.probeReadable,
		s.probeColumns,
		s.probeIntegrity,
	}
	for _, step := range steps {
		if err := step(ctx, &h); err != nil {
			h.Error = err.Error()
			return h, err
		}
	}
	return h, nil
}

func (s *Store) probeReadable(ctx context.Context, h *DatabaseHealth) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping catalogue database: %w", err)
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	h.DatabaseReadable = true
	h.SchemaVersion = strconv.Itoa(version)
	return nil
}

func (s *Store) probeColumns(ctx context.Context, h *DatabaseHealth) error {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info('recordings')")
	if err != nil {
		return fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan table info: %w", err)
		}
		h.ColumnsPresent = append(h.ColumnsPresent, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate table info: %w", err)
	}
	h.TableExists = len(h.ColumnsPresent) > 0
	if !h.TableExists {
		return nil
	}
	for _, col := range strings.Split(recordingColumns, ", ") {
		if !slices.Contains(h.ColumnsPresent, col) {
			h.MissingColumns = append(h.MissingColumns, col)
		}
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM recordings").Scan(&h.TotalRecordings); err != nil {
		return fmt.Errorf("count recordings: %w", err)
	}
	return nil
}

func (s *Store) probeIntegrity(ctx context.Context, h *DatabaseHealth) error {
	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	h.IntegrityCheck = strings.EqualFold(result, "ok")
	return nil
}
