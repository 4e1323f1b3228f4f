package session

import (
	"context"
	"errors"
	"time"

	"holocap/internal/stream"
)

var (
	// ErrAlreadyRecording is returned by Start when a session is active.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording is returned by Stop when no session is recording.
	ErrNotRecording = errors.New("not recording")
)

// State is the controller lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRecording
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Companion drives the device-side recording state.
type Companion interface {
	Start(ctx context.Context, kinds []stream.Kind) error
	Stop(ctx context.Context) error
	UTCOffset(ctx context.Context) (int64, error)
}

// Stream outcomes reported in a Summary.
const (
	StreamRecorded    = "recorded"
	StreamUnavailable = "unavailable"
	StreamFailed      = "failed"
	StreamInterrupted = "interrupted"
)

// Info identifies a running or finished recording.
type Info struct {
	Name    string    `json:"name"`
	Dir     string    `json:"dir"`
	Started time.Time `json:"started"`
	Streams []string  `json:"streams"`
}

// StreamResult is one stream's outcome after stop.
type StreamResult struct {
	Stream        string `json:"stream"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	PacketsRead   uint64 `json:"packets_read"`
	Written       uint64 `json:"written"`
	Malformed     uint64 `json:"malformed"`
	LastTimestamp uint64 `json:"last_timestamp,omitempty"`
}

// Summary reports a completed session.
type Summary struct {
	Info
	Stopped     time.Time      `json:"stopped"`
	Results     []StreamResult `json:"results"`
	Unavailable []string       `json:"unavailable,omitempty"`
	Failed      []string       `json:"failed,omitempty"`
}

// Result classifies the session for metrics and logs.
func (s Summary) Result() string {
	switch {
	case len(s.Failed) > 0:
		return "failed_streams"
	case len(s.Unavailable) > 0:
		return "degraded"
	default:
		return "ok"
	}
}

// StreamStatus is the live view of one stream.
type StreamStatus struct {
	Stream     string `json:"stream"`
	State      string `json:"state"`
	QueueDepth int    `json:"queue_depth"`
	HighWater  int    `json:"high_water"`
	Read       uint64 `json:"read"`
	Written    uint64 `json:"written"`
	Malformed  uint64 `json:"malformed"`
}

// Snapshot is the controller state reported by status surfaces.
type Snapshot struct {
	State     string         `json:"state"`
	Recording *Info          `json:"recording,omitempty"`
	Streams   []StreamStatus `json:"streams,omitempty"`
}
