package api

import (
	"slices"
	"time"

	"holocap/internal/logging"
	"holocap/internal/preflight"
	"holocap/internal/queue"
	"holocap/internal/session"
	"holocap/internal/stage"
	"holocap/internal/workflow"
)

// FromRecording converts a catalogue row to its API representation.
func FromRecording(rec *queue.Recording) Recording {
	if rec == nil {
		return Recording{}
	}
	dto := Recording{
		ID:          rec.ID,
		Name:        rec.Name,
		Path:        rec.Path,
		Status:      string(rec.Status),
		Streams:     append([]string(nil), rec.Streams...),
		Unavailable: append([]string(nil), rec.Unavailable...),
		Progress: RecordingProgress{
			Stage:   rec.ProgressStage,
			Percent: rec.ProgressPercent,
			Message: rec.ProgressMessage,
		},
		ErrorMessage: rec.ErrorMessage,
		FrameCount:   rec.FrameCount,
		GapCount:     rec.GapCount,
		CreatedAt:    FormatTime(rec.CreatedAt),
		UpdatedAt:    FormatTime(rec.UpdatedAt),
	}
	if dto.Progress.Stage == "" {
		dto.Progress.Stage = defaultStageLabel(rec.Status)
	}
	return dto
}

func defaultStageLabel(status queue.Status) string {
	switch status {
	case queue.StatusRecording:
		return "Recording"
	case queue.StatusCaptured:
		return "Waiting for sync"
	case queue.StatusSyncing:
		return "Syncing"
	case queue.StatusSynced:
		return "Synced"
	case queue.StatusSkipped:
		return "Skipped"
	case queue.StatusFailed:
		return "Failed"
	default:
		return ""
	}
}

// FromRecordings converts a slice of catalogue rows into API DTOs.
func FromRecordings(recs []*queue.Recording) []Recording {
	out := make([]Recording, 0, len(recs))
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		out = append(out, FromRecording(rec))
	}
	return out
}

// FromSnapshot converts the session controller snapshot.
func FromSnapshot(snap session.Snapshot) SessionStatus {
	dto := SessionStatus{State: snap.State}
	if snap.Recording != nil {
		dto.Recording = snap.Recording.Name
		dto.Dir = snap.Recording.Dir
		dto.Started = FormatTime(snap.Recording.Started)
	}
	for _, st := range snap.Streams {
		dto.Streams = append(dto.Streams, StreamStatus{
			Stream:     st.Stream,
			State:      st.State,
			QueueDepth: st.QueueDepth,
			HighWater:  st.HighWater,
			Read:       st.Read,
			Written:    st.Written,
			Malformed:  st.Malformed,
		})
	}
	return dto
}

// FromInfo converts a started recording.
func FromInfo(info session.Info) SessionInfo {
	return SessionInfo{
		Name:    info.Name,
		Dir:     info.Dir,
		Started: FormatTime(info.Started),
		Streams: append([]string(nil), info.Streams...),
	}
}

// FromSummary converts a stopped recording.
func FromSummary(summary session.Summary) SessionSummary {
	dto := SessionSummary{
		SessionInfo: FromInfo(summary.Info),
		Stopped:     FormatTime(summary.Stopped),
		Result:      summary.Result(),
		Unavailable: append([]string(nil), summary.Unavailable...),
		Failed:      append([]string(nil), summary.Failed...),
	}
	for _, res := range summary.Results {
		dto.Results = append(dto.Results, StreamResult{
			Stream:    res.Stream,
			Status:    res.Status,
			Reason:    res.Reason,
			Read:      res.PacketsRead,
			Written:   res.Written,
			Malformed: res.Malformed,
		})
	}
	return dto
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	stats := make(map[string]int, len(summary.QueueStats))
	for status, count := range summary.QueueStats {
		stats[string(status)] = count
	}
	wf := WorkflowStatus{
		Running:     summary.Running,
		AutoSync:    summary.AutoSync,
		QueueStats:  stats,
		LastError:   summary.LastError,
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if summary.LastRecording != nil {
		last := FromRecording(summary.LastRecording)
		wf.LastRecording = &last
	}
	return wf
}

// StageHealthSlice converts a stage health map into a deterministic slice.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromDatabaseHealth converts catalogue database diagnostics.
func FromDatabaseHealth(h queue.DatabaseHealth) DatabaseHealth {
	return DatabaseHealth{
		DBPath:           h.DBPath,
		DatabaseExists:   h.DatabaseExists,
		DatabaseReadable: h.DatabaseReadable,
		SchemaVersion:    h.SchemaVersion,
		TableExists:      h.TableExists,
		ColumnsPresent:   append([]string(nil), h.ColumnsPresent...),
		MissingColumns:   append([]string(nil), h.MissingColumns...),
		IntegrityCheck:   h.IntegrityCheck,
		TotalRecordings:  h.TotalRecordings,
		Error:            h.Error,
	}
}

// FromHealthSummary converts aggregate catalogue counts.
func FromHealthSummary(h queue.HealthSummary) CatalogueHealth {
	return CatalogueHealth(h)
}

// FromPreflight converts preflight check results.
func FromPreflight(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// FromLogEvents converts hub or archive events.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		out = append(out, LogEvent{
			Sequence:    evt.Sequence,
			Timestamp:   FormatTime(evt.Timestamp),
			Level:       evt.Level,
			Message:     evt.Message,
			Component:   evt.Component,
			Stage:       evt.Stage,
			ItemID:      evt.ItemID,
			RecordingID: evt.RecordingID,
			Stream:      evt.Stream,
			Fields:      evt.Fields,
		})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime parses a timestamp produced by FormatTime.
func ParseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
