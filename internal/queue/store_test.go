package queue_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"holocap/internal/queue"
	"holocap/internal/services"
	"holocap/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec := testsupport.NewRecording(t, store, cfg, "session-a", queue.StatusRecording)
	if rec.ID == 0 {
		t.Fatal("expected recording ID to be assigned")
	}
	if len(rec.Streams) != len(cfg.Capture.Streams) {
		t.Fatalf("expected streams %v, got %v", cfg.Capture.Streams, rec.Streams)
	}

	fetched, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.Name != "session-a" || fetched.Status != queue.StatusRecording {
		t.Fatalf("unexpected fetched recording: %#v", fetched)
	}

	found, err := store.FindByName(ctx, "session-a")
	if err != nil {
		t.Fatalf("FindByName failed: %v", err)
	}
	if found == nil || found.ID != rec.ID {
		t.Fatalf("expected to find inserted recording, got %#v", found)
	}

	missing, err := store.GetByID(ctx, rec.ID+100)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing id, got %#v, %v", missing, err)
	}
}

func TestReopenKeepsRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	testsupport.NewRecording(t, store, cfg, "persisted", queue.StatusCaptured)
	store.Close()

	reopened := testsupport.MustOpenStore(t, cfg)
	rec, err := reopened.FindByName(context.Background(), "persisted")
	if err != nil || rec == nil {
		t.Fatalf("expected persisted recording after reopen, got %#v, %v", rec, err)
	}
}

func TestNewRecordingRejectsDuplicateName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.NewRecording(t, store, cfg, "dup", queue.StatusCaptured)
	_, err := store.NewRecording(context.Background(), "dup", "/tmp/dup", queue.StatusCaptured, nil)
	if !errors.Is(err, queue.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestNewRecordingValidatesInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.NewRecording(ctx, "", "/tmp/x", queue.StatusCaptured, nil); err == nil {
		t.Fatal("expected error for empty name")
	}
	if _, err := store.NewRecording(ctx, "x", "", queue.StatusCaptured, nil); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := store.NewRecording(ctx, "x", "/tmp/x", queue.Status("bogus"), nil); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestUpdatePersistsFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	rec := testsupport.NewRecording(t, store, cfg, "update-me", queue.StatusRecording)
	heartbeat := time.Now().UTC().Truncate(time.Millisecond)
	rec.Status = queue.StatusSynced
	rec.Unavailable = []string{"imu_mag", "microphone"}
	rec.FrameCount = 120
	rec.GapCount = 2
	rec.LastHeartbeat = &heartbeat
	rec.SetProgressComplete("Synced", "120 frames")
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != queue.StatusSynced || got.FrameCount != 120 || got.GapCount != 2 {
		t.Fatalf("unexpected recording after update: %#v", got)
	}
	if len(got.Unavailable) != 2 || got.Unavailable[1] != "microphone" {
		t.Fatalf("unexpected unavailable list %v", got.Unavailable)
	}
	if got.ProgressPercent != 100 || got.ProgressMessage != "120 frames" {
		t.Fatalf("unexpected progress %v %q", got.ProgressPercent, got.ProgressMessage)
	}
	if got.LastHeartbeat == nil || !got.LastHeartbeat.Equal(heartbeat) {
		t.Fatalf("expected heartbeat %v, got %v", heartbeat, got.LastHeartbeat)
	}
	if err := store.Update(ctx, nil); err == nil {
		t.Fatal("expected error for nil recording")
	}
}

func TestListAndNextForStatuses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	statuses := []queue.Status{queue.StatusCaptured, queue.StatusSynced, queue.StatusCaptured, queue.StatusFailed}
	for i, status := range statuses {
		testsupport.NewRecording(t, store, cfg, fmt.Sprintf("rec-%d", i), status)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != len(statuses) {
		t.Fatalf("expected %d recordings, got %d", len(statuses), len(all))
	}

	captured, err := store.List(ctx, queue.StatusCaptured)
	if err != nil {
		t.Fatalf("List captured failed: %v", err)
	}
	if len(captured) != 2 || captured[0].Name != "rec-0" || captured[1].Name != "rec-2" {
		t.Fatalf("unexpected captured list %#v", captured)
	}

	next, err := store.NextForStatuses(ctx, queue.StatusCaptured)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.Name != "rec-0" {
		t.Fatalf("expected oldest captured recording, got %#v", next)
	}

	none, err := store.NextForStatuses(ctx, queue.StatusSyncing)
	if err != nil || none != nil {
		t.Fatalf("expected no syncing recording, got %#v, %v", none, err)
	}
	if empty, err := store.NextForStatuses(ctx); err != nil || empty != nil {
		t.Fatalf("expected nil for empty status set, got %#v, %v", empty, err)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cases := []struct {
		name     string
		initial  queue.Status
		expected queue.Status
	}{
		{"syncing", queue.StatusSyncing, queue.StatusCaptured},
		{"recording", queue.StatusRecording, queue.StatusCaptured},
		{"synced", queue.StatusSynced, queue.StatusSynced},
		{"failed", queue.StatusFailed, queue.StatusFailed},
	}
	ids := make([]int64, len(cases))
	for i, tc := range cases {
		ids[i] = testsupport.NewRecording(t, store, cfg, tc.name, tc.initial).ID
	}

	changed, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if changed != 2 {
		t.Fatalf("expected 2 rows reset, got %d", changed)
	}
	for i, tc := range cases {
		rec, err := store.GetByID(ctx, ids[i])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if rec.Status != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, rec.Status)
		}
	}
}

func TestHeartbeatAndReclaim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stale := testsupport.NewRecording(t, store, cfg, "stale", queue.StatusSyncing)
	fresh := testsupport.NewRecording(t, store, cfg, "fresh", queue.StatusSyncing)

	old := time.Now().Add(-time.Hour)
	stale.LastHeartbeat = &old
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := store.UpdateHeartbeat(ctx, fresh.ID); err != nil {
		t.Fatalf("UpdateHeartbeat failed: %v", err)
	}

	reclaimed, err := store.ReclaimStaleProcessing(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed, got %d", reclaimed)
	}

	got, _ := store.GetByID(ctx, stale.ID)
	if got.Status != queue.StatusCaptured || got.LastHeartbeat != nil {
		t.Fatalf("expected stale recording reclaimed, got %#v", got)
	}
	got, _ = store.GetByID(ctx, fresh.ID)
	if got.Status != queue.StatusSyncing || got.LastHeartbeat == nil {
		t.Fatalf("expected fresh recording untouched, got %#v", got)
	}
}

func TestRetryFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewRecording(t, store, cfg, "f1", queue.StatusFailed)
	second := testsupport.NewRecording(t, store, cfg, "f2", queue.StatusFailed)
	skipped := testsupport.NewRecording(t, store, cfg, "s1", queue.StatusSkipped)

	n, err := store.RetryFailed(ctx, first.ID, skipped.ID)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 retried, got %d", n)
	}
	n, err = store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed all failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected remaining failed recording retried, got %d", n)
	}
	for _, id := range []int64{first.ID, second.ID} {
		rec, _ := store.GetByID(ctx, id)
		if rec.Status != queue.StatusCaptured || rec.ErrorMessage != "" {
			t.Fatalf("expected captured with cleared error, got %#v", rec)
		}
	}
	rec, _ := store.GetByID(ctx, skipped.ID)
	if rec.Status != queue.StatusSkipped {
		t.Fatalf("skipped recording must not be retried, got %s", rec.Status)
	}
}

func TestStatsHealthAndCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewRecording(t, store, cfg, "a", queue.StatusCaptured)
	testsupport.NewRecording(t, store, cfg, "b", queue.StatusSynced)
	testsupport.NewRecording(t, store, cfg, "c", queue.StatusFailed)

	summary, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if summary.Total != 3 || summary.Pending != 1 || summary.Synced != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %#v", summary)
	}

	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists || !health.IntegrityCheck {
		t.Fatalf("unexpected health %#v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("unexpected missing columns %v", health.MissingColumns)
	}
	if health.TotalRecordings != 3 {
		t.Fatalf("expected 3 recordings, got %d", health.TotalRecordings)
	}
}

func TestRemoveAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.NewRecording(t, store, cfg, "a", queue.StatusCaptured)
	testsupport.NewRecording(t, store, cfg, "b", queue.StatusCaptured)

	removed, err := store.Remove(ctx, a.ID)
	if err != nil || !removed {
		t.Fatalf("expected remove to succeed, got %v, %v", removed, err)
	}
	removed, err = store.Remove(ctx, a.ID)
	if err != nil || removed {
		t.Fatalf("expected second remove to report false, got %v, %v", removed, err)
	}
	n, err := store.Clear(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 cleared, got %d, %v", n, err)
	}
}

func TestFailureStatus(t *testing.T) {
	missing := services.Wrap(services.ErrMissingInput, "sync", "scan base", "raw/pv absent", nil)
	if got := queue.FailureStatus(missing); got != queue.StatusSkipped {
		t.Fatalf("expected skipped for missing input, got %s", got)
	}
	write := services.Wrap(services.ErrWrite, "sync", "copy", "disk full", errors.New("ENOSPC"))
	if got := queue.FailureStatus(write); got != queue.StatusFailed {
		t.Fatalf("expected failed for write error, got %s", got)
	}
	if got := queue.FailureStatus(errors.New("boom")); got != queue.StatusFailed {
		t.Fatalf("expected failed for plain error, got %s", got)
	}
}

func TestParseStatus(t *testing.T) {
	if got, ok := queue.ParseStatus(" Synced "); !ok || got != queue.StatusSynced {
		t.Fatalf("expected synced, got %q %v", got, ok)
	}
	if _, ok := queue.ParseStatus("ripping"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}
