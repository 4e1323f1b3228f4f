package api

import (
	"testing"
	"time"

	"holocap/internal/queue"
	"holocap/internal/session"
	"holocap/internal/stage"
	"holocap/internal/workflow"
)

func TestFromRecordingDefaultsStageLabel(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &queue.Recording{
		ID:          7,
		Name:        "walkthrough",
		Path:        "/data/walkthrough",
		Status:      queue.StatusCaptured,
		Streams:     []string{"pv", "imu_accel"},
		Unavailable: []string{"imu_accel"},
		CreatedAt:   created,
	}
	dto := FromRecording(rec)
	if dto.Progress.Stage != "Waiting for sync" {
		t.Fatalf("stage = %q", dto.Progress.Stage)
	}
	if dto.CreatedAt != "2026-03-01T12:00:00.000Z" || dto.UpdatedAt != "" {
		t.Fatalf("timestamps = %q / %q", dto.CreatedAt, dto.UpdatedAt)
	}
	if len(dto.Unavailable) != 1 || dto.Unavailable[0] != "imu_accel" {
		t.Fatalf("unavailable = %v", dto.Unavailable)
	}
	rec.Streams[0] = "mutated"
	if dto.Streams[0] != "pv" {
		t.Fatal("DTO must not alias the catalogue slice")
	}

	rec.ProgressStage = "Syncing pv"
	if got := FromRecording(rec).Progress.Stage; got != "Syncing pv" {
		t.Fatalf("explicit stage overwritten: %q", got)
	}
}

func TestFromStatusSummarySortsStageHealth(t *testing.T) {
	summary := workflow.StatusSummary{
		Running:  true,
		AutoSync: true,
		QueueStats: map[queue.Status]int{
			queue.StatusCaptured: 2,
			queue.StatusSynced:   5,
		},
		StageHealth: map[string]stage.Health{
			"sync":    stage.Healthy("sync"),
			"archive": stage.Unhealthy("archive", "disk full"),
		},
		LastRecording: &queue.Recording{ID: 3, Status: queue.StatusSynced},
	}
	wf := FromStatusSummary(summary)
	if wf.QueueStats["captured"] != 2 || wf.QueueStats["synced"] != 5 {
		t.Fatalf("queue stats = %v", wf.QueueStats)
	}
	if len(wf.StageHealth) != 2 || wf.StageHealth[0].Name != "archive" || wf.StageHealth[0].Ready {
		t.Fatalf("stage health = %+v", wf.StageHealth)
	}
	if wf.LastRecording == nil || wf.LastRecording.ID != 3 {
		t.Fatalf("last recording = %+v", wf.LastRecording)
	}
}

func TestFromSummaryCarriesResult(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	summary := session.Summary{
		Info:        session.Info{Name: "a", Started: started},
		Stopped:     started.Add(time.Minute),
		Results:     []session.StreamResult{{Stream: "pv", Status: session.StreamRecorded, PacketsRead: 4, Written: 4}},
		Unavailable: []string{"microphone"},
	}
	dto := FromSummary(summary)
	if dto.Result != "degraded" || dto.Results[0].Written != 4 {
		t.Fatalf("unexpected summary %+v", dto)
	}
	if got, ok := ParseTime(dto.Stopped); !ok || !got.Equal(summary.Stopped) {
		t.Fatalf("stopped round trip = %v, %v", got, ok)
	}
}

func TestFromHealthSummary(t *testing.T) {
	h := FromHealthSummary(queue.HealthSummary{Total: 4, Pending: 1, Failed: 3})
	if h.Total != 4 || h.Pending != 1 || h.Failed != 3 {
		t.Fatalf("unexpected health %+v", h)
	}
}
