package services_test

import (
	"context"
	"testing"

	"holocap/internal/services"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := services.WithItemID(t.Context(), 42)
	ctx = services.WithStage(ctx, "sync")
	ctx = services.WithLane(ctx, "sync")
	ctx = services.WithRequestID(ctx, "req-123")
	ctx = services.WithRecordingID(ctx, "rec-1")
	ctx = services.WithStream(ctx, "pv")

	if id, ok := services.ItemIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("item id = %d, %v", id, ok)
	}
	checks := []struct {
		name string
		get  func(context.Context) (string, bool)
		want string
	}{
		{"stage", services.StageFromContext, "sync"},
		{"lane", services.LaneFromContext, "sync"},
		{"request", services.RequestIDFromContext, "req-123"},
		{"recording", services.RecordingIDFromContext, "rec-1"},
		{"stream", services.StreamFromContext, "pv"},
	}
	for _, c := range checks {
		if got, ok := c.get(ctx); !ok || got != c.want {
			t.Errorf("%s = %q, %v; want %q", c.name, got, ok, c.want)
		}
	}
}

func TestBlankValuesLeaveContextUntouched(t *testing.T) {
	base := t.Context()
	if services.WithStage(base, "") != base || services.WithStream(base, "") != base {
		t.Fatal("blank values must return the parent context")
	}
	if _, ok := services.ItemIDFromContext(base); ok {
		t.Fatal("unexpected item id on bare context")
	}
}
