package ipc

import "holocap/internal/api"

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse mirrors the HTTP status payload.
type StatusResponse = api.DaemonStatus

// RecordStartRequest begins a capture session. An empty name is generated.
type RecordStartRequest struct {
	Name string `json:"name"`
}

// RecordStartResponse identifies the started recording.
type RecordStartResponse struct {
	Recording api.SessionInfo `json:"recording"`
}

// RecordStopRequest ends the active capture session.
type RecordStopRequest struct{}

// RecordStopResponse reports the stopped recording.
type RecordStopResponse struct {
	Summary api.SessionSummary `json:"summary"`
}

// RecordingListRequest filters the catalogue by status.
type RecordingListRequest struct {
	Statuses []string `json:"statuses"`
}

// RecordingListResponse contains catalogue entries.
type RecordingListResponse struct {
	Recordings []api.Recording `json:"recordings"`
}

// RecordingDescribeRequest fetches a single recording by id.
type RecordingDescribeRequest struct {
	ID int64 `json:"id"`
}

// RecordingDescribeResponse contains a single recording.
type RecordingDescribeResponse struct {
	Recording api.Recording `json:"recording"`
}

// RecordingImportRequest catalogues an existing recording directory.
type RecordingImportRequest struct {
	Dir string `json:"dir"`
}

// RecordingImportResponse contains the imported recording.
type RecordingImportResponse struct {
	Recording api.Recording `json:"recording"`
}

// RecordingRetryRequest retries failed recordings. Empty list means all.
type RecordingRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// RecordingRetryResponse reports number of retried recordings.
type RecordingRetryResponse struct {
	Updated int64 `json:"updated"`
}

// RecordingSyncRequest schedules recordings for sync now.
type RecordingSyncRequest struct {
	IDs []int64 `json:"ids"`
}

// RecordingSyncResponse reports number of queued recordings.
type RecordingSyncResponse struct {
	Queued int `json:"queued"`
}

// RecordingRemoveRequest drops recordings from the catalogue.
type RecordingRemoveRequest struct {
	IDs []int64 `json:"ids"`
}

// RecordingRemoveResponse reports number of removed entries.
type RecordingRemoveResponse struct {
	Removed int64 `json:"removed"`
}

// RecordingClearRequest removes every catalogue entry.
type RecordingClearRequest struct{}

// RecordingClearResponse reports number of removed entries.
type RecordingClearResponse struct {
	Removed int64 `json:"removed"`
}

// CatalogueHealthRequest fetches aggregate counts.
type CatalogueHealthRequest struct{}

// CatalogueHealthResponse reports catalogue counts.
type CatalogueHealthResponse = api.CatalogueHealth

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse = api.DatabaseHealth

// PreflightRequest runs the storage and device checks.
type PreflightRequest struct{}

// PreflightResponse lists check outcomes.
type PreflightResponse struct {
	Checks []api.CheckResult `json:"checks"`
}

// LogTailRequest fetches daemon log events after a sequence cursor.
type LogTailRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
	Recording  string `json:"recording"`
	Stream     string `json:"stream"`
	Component  string `json:"component"`
}

// LogTailResponse returns log events and the next cursor.
type LogTailResponse = api.LogStreamResponse
