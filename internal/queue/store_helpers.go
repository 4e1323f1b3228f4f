package queue

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const recordingColumns = "id, name, path, status, streams, unavailable, error_message, frame_count, gap_count, created_at, updated_at, progress_stage, progress_percent, progress_message, last_heartbeat"

func scanRecording(scanner interface{ Scan(dest ...any) error }) (*Recording, error) {
	var (
		id               int64
		name             string
		path             string
		statusStr        string
		streams          sql.NullString
		unavailable      sql.NullString
		errorMessage     sql.NullString
		frameCount       sql.NullInt64
		gapCount         sql.NullInt64
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&name,
		&path,
		&statusStr,
		&streams,
		&unavailable,
		&errorMessage,
		&frameCount,
		&gapCount,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	rec := &Recording{
		ID:              id,
		Name:            name,
		Path:            path,
		Status:          Status(statusStr),
		Streams:         splitList(streams.String),
		Unavailable:     splitList(unavailable.String),
		ErrorMessage:    errorMessage.String,
		FrameCount:      int(frameCount.Int64),
		GapCount:        int(gapCount.Int64),
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		rec.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			rec.LastHeartbeat = &heartbeat
		}
	}
	return rec, nil
}

func scanRecordings(rows *sql.Rows) ([]*Recording, error) {
	defer rows.Close()
	var out []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func joinList(values []string) any {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	return strings.Join(cleaned, ",")
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return args
}
