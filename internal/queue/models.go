package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a catalogued recording.
type Status string

const (
	StatusRecording Status = "recording"
	StatusCaptured  Status = "captured"
	StatusSyncing   Status = "syncing"
	StatusSynced    Status = "synced"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// DaemonStopReason is the error message set when a sync is interrupted by shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusRecording,
	StatusCaptured,
	StatusSyncing,
	StatusSynced,
	StatusSkipped,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// DatabaseHealth captures diagnostic information about the catalogue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalRecordings  int
	Error            string
}

// HealthSummary aggregates recording counts by lifecycle group.
type HealthSummary struct {
	Total     int
	Recording int
	Pending   int
	Syncing   int
	Synced    int
	Skipped   int
	Failed    int
}

// Recording is one catalogued capture session.
type Recording struct {
	ID              int64
	Name            string
	Path            string
	Status          Status
	Streams         []string
	Unavailable     []string
	ErrorMessage    string
	FrameCount      int
	GapCount        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	LastHeartbeat   *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing reports whether the recording is being synchronized.
func (r Recording) IsProcessing() bool {
	return r.Status == StatusSyncing
}

// IsTerminal reports whether no further work is scheduled for the status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSynced, StatusSkipped, StatusFailed:
		return true
	default:
		return false
	}
}

// InitProgress resets progress fields for a new stage.
func (r *Recording) InitProgress(stage, message string) {
	r.ProgressStage = stage
	r.ProgressMessage = message
	r.ProgressPercent = 0
	r.ErrorMessage = ""
}

// SetProgress updates all three progress fields together.
func (r *Recording) SetProgress(stage, message string, percent float64) {
	r.ProgressStage = stage
	r.ProgressMessage = message
	r.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (r *Recording) SetProgressComplete(stage, message string) {
	r.SetProgress(stage, message, 100)
}

// SetFailed marks the recording with a terminal failure status.
func (r *Recording) SetFailed(status Status, message string) {
	if status == "" {
		status = StatusFailed
	}
	r.Status = status
	r.ErrorMessage = message
	r.ProgressPercent = 0
	r.ProgressMessage = message
	r.LastHeartbeat = nil
	r.ProgressStage = strings.ToUpper(string(status[:1])) + string(status[1:])
}
