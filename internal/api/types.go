package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Recording describes a catalogued recording in a transport-friendly format.
type Recording struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	Path         string            `json:"path"`
	Status       string            `json:"status"`
	Streams      []string          `json:"streams"`
	Unavailable  []string          `json:"unavailable,omitempty"`
	Progress     RecordingProgress `json:"progress"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	FrameCount   int               `json:"frameCount"`
	GapCount     int               `json:"gapCount"`
	CreatedAt    string            `json:"createdAt,omitempty"`
	UpdatedAt    string            `json:"updatedAt,omitempty"`
}

// RecordingProgress captures sync progress for a recording.
type RecordingProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// StreamStatus is the live view of one capture stream.
type StreamStatus struct {
	Stream     string `json:"stream"`
	State      string `json:"state"`
	QueueDepth int    `json:"queueDepth"`
	HighWater  int    `json:"highWater"`
	Read       uint64 `json:"read"`
	Written    uint64 `json:"written"`
	Malformed  uint64 `json:"malformed"`
}

// SessionStatus reports the capture session controller.
type SessionStatus struct {
	State     string         `json:"state"`
	Recording string         `json:"recording,omitempty"`
	Dir       string         `json:"dir,omitempty"`
	Started   string         `json:"started,omitempty"`
	Streams   []StreamStatus `json:"streams,omitempty"`
}

// SessionInfo identifies a started recording.
type SessionInfo struct {
	Name    string   `json:"name"`
	Dir     string   `json:"dir"`
	Started string   `json:"started"`
	Streams []string `json:"streams"`
}

// StreamResult is one stream's outcome after a recording stops.
type StreamResult struct {
	Stream    string `json:"stream"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Read      uint64 `json:"read"`
	Written   uint64 `json:"written"`
	Malformed uint64 `json:"malformed"`
}

// SessionSummary reports a stopped recording.
type SessionSummary struct {
	SessionInfo
	Stopped     string         `json:"stopped"`
	Result      string         `json:"result"`
	Results     []StreamResult `json:"results"`
	Unavailable []string       `json:"unavailable,omitempty"`
	Failed      []string       `json:"failed,omitempty"`
}

// LinkStatus reports the device network interface.
type LinkStatus struct {
	Interface  string `json:"interface,omitempty"`
	Monitoring bool   `json:"monitoring"`
	Present    bool   `json:"present"`
	Up         bool   `json:"up"`
	State      string `json:"state,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Changed    string `json:"changed,omitempty"`
}

// WorkflowStatus summarizes background sync state.
type WorkflowStatus struct {
	Running       bool           `json:"running"`
	AutoSync      bool           `json:"autoSync"`
	QueueStats    map[string]int `json:"queueStats"`
	LastError     string         `json:"lastError,omitempty"`
	LastRecording *Recording     `json:"lastRecording,omitempty"`
	StageHealth   []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// CheckResult is one preflight check outcome.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	DeviceMode    string         `json:"deviceMode"`
	DeviceAddress string         `json:"deviceAddress"`
	CatalogPath   string         `json:"catalogPath"`
	LockFilePath  string         `json:"lockFilePath"`
	SocketPath    string         `json:"socketPath"`
	APIBind       string         `json:"apiBind,omitempty"`
	Session       SessionStatus  `json:"session"`
	Link          LinkStatus     `json:"link"`
	Workflow      WorkflowStatus `json:"workflow"`
}

// DatabaseHealth reports catalogue database diagnostics.
type DatabaseHealth struct {
	DBPath           string   `json:"dbPath"`
	DatabaseExists   bool     `json:"databaseExists"`
	DatabaseReadable bool     `json:"databaseReadable"`
	SchemaVersion    string   `json:"schemaVersion"`
	TableExists      bool     `json:"tableExists"`
	ColumnsPresent   []string `json:"columnsPresent,omitempty"`
	MissingColumns   []string `json:"missingColumns,omitempty"`
	IntegrityCheck   bool     `json:"integrityCheck"`
	TotalRecordings  int      `json:"totalRecordings"`
	Error            string   `json:"error,omitempty"`
}

// CatalogueHealth aggregates recording counts by lifecycle group.
type CatalogueHealth struct {
	Total     int `json:"total"`
	Recording int `json:"recording"`
	Pending   int `json:"pending"`
	Syncing   int `json:"syncing"`
	Synced    int `json:"synced"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// LogEvent is a structured log line for live tailing.
type LogEvent struct {
	Sequence    uint64            `json:"seq"`
	Timestamp   string            `json:"ts"`
	Level       string            `json:"level"`
	Message     string            `json:"msg"`
	Component   string            `json:"component,omitempty"`
	Stage       string            `json:"stage,omitempty"`
	ItemID      int64             `json:"itemId,omitempty"`
	RecordingID string            `json:"recordingId,omitempty"`
	Stream      string            `json:"stream,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// LogStreamResponse wraps a batch of log events and the next cursor.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// RecordingListResponse wraps a collection of recordings.
type RecordingListResponse struct {
	Recordings []Recording `json:"recordings"`
}

// RecordingResponse wraps a single recording.
type RecordingResponse struct {
	Recording Recording `json:"recording"`
}

// CountResponse reports how many recordings an action touched.
type CountResponse struct {
	Updated int64 `json:"updated"`
}

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
