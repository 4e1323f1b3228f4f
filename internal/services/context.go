package services

import "context"

type ctxKey int

const (
	keyItemID ctxKey = iota
	keyStage
	keyLane
	keyRequestID
	keyRecordingID
	keyStream
)

func withString(ctx context.Context, key ctxKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key ctxKey) (string, bool) {
	s, _ := ctx.Value(key).(string)
	return s, s != ""
}

// WithItemID tags ctx with a catalogue row id.
func WithItemID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, keyItemID, id)
}

// ItemIDFromContext returns the catalogue row id set by WithItemID.
func ItemIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(keyItemID).(int64)
	return id, ok
}

// WithStage tags ctx with the workflow stage name. Blank values are ignored.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, keyStage, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, keyStage)
}

// WithLane tags ctx with the workflow lane serving the item.
func WithLane(ctx context.Context, lane string) context.Context {
	return withString(ctx, keyLane, lane)
}

func LaneFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, keyLane)
}

// WithRequestID tags ctx with the API or IPC request that started the work.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, keyRequestID, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, keyRequestID)
}

// WithRecordingID tags ctx with the recording name.
func WithRecordingID(ctx context.Context, name string) context.Context {
	return withString(ctx, keyRecordingID, name)
}

func RecordingIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, keyRecordingID)
}

// WithStream tags ctx with the stream a capture worker serves.
func WithStream(ctx context.Context, stream string) context.Context {
	return withString(ctx, keyStream, stream)
}

func StreamFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, keyStream)
}
