package logging

import (
	"context"
	"log/slog"

	"holocap/internal/services"
)

// Structured log keys shared by every holocap component.
const (
	FieldComponent   = "component"
	FieldItemID      = "item_id" // catalogue row id
	FieldStage       = "stage"
	FieldLane        = "lane"
	FieldRecordingID = "recording_id" // recording directory name
	FieldStream      = "stream"       // sensor stream name such as pv or imu_accel
	FieldRequestID   = "request_id"

	// FieldEventType classifies a line for filtering, e.g. "stream_unavailable".
	FieldEventType = "event_type"

	FieldErrorHint       = "error_hint"
	FieldErrorKind       = "error_kind"
	FieldErrorOperation  = "error_operation"
	FieldErrorDetailPath = "error_detail_path"

	FieldProgressStage   = "progress_stage"
	FieldProgressPercent = "progress_percent"

	// FieldAlert marks anomalies that should stand out, such as timestamp gaps.
	FieldAlert = "alert"
)

type contextString struct {
	key    string
	lookup func(context.Context) (string, bool)
}

var contextStrings = []contextString{
	{FieldStage, services.StageFromContext},
	{FieldLane, services.LaneFromContext},
	{FieldRecordingID, services.RecordingIDFromContext},
	{FieldStream, services.StreamFromContext},
	{FieldRequestID, services.RequestIDFromContext},
}

// WithContext returns logger extended with the catalogue, recording and
// workflow identifiers carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var args []any
	if id, ok := services.ItemIDFromContext(ctx); ok {
		args = append(args, slog.Int64(FieldItemID, id))
	}
	for _, entry := range contextStrings {
		if value, ok := entry.lookup(ctx); ok {
			args = append(args, slog.String(entry.key, value))
		}
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}
