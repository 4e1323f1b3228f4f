package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// EventArchive journals every hub event as a JSON line so log clients can
// read further back than the in-memory ring. One archive belongs to one
// daemon run and starts empty.
type EventArchive struct {
	path string

	mu  sync.Mutex
	out *os.File
}

// NewEventArchive truncates or creates path. An empty path disables the
// archive and returns nil, which is safe to use.
func NewEventArchive(path string) (*EventArchive, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	f, err := openAppend(path)
	if err != nil {
		return nil, fmt.Errorf("open event archive: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate event archive %s: %w", path, err)
	}
	return &EventArchive{path: path, out: f}, nil
}

// Append implements LogEventSink. Write failures are dropped so logging
// never blocks on the journal.
func (a *EventArchive) Append(evt LogEvent) {
	if a == nil {
		return
	}
	line, err := json.Marshal(evt)
	if err != nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.out == nil {
		return
	}
	_, _ = a.out.Write(append(line, '\n'))
}

// EventFilter narrows archived events to one recording, stream or component.
// Zero fields match anything.
type EventFilter struct {
	RecordingID string
	Stream      string
	Component   string
}

// Match reports whether evt satisfies every set field.
func (f EventFilter) Match(evt LogEvent) bool {
	return (f.RecordingID == "" || evt.RecordingID == f.RecordingID) &&
		(f.Stream == "" || evt.Stream == f.Stream) &&
		(f.Component == "" || evt.Component == f.Component)
}

// ReadFiltered scans the journal for events after since that match filter,
// stopping at limit when positive. The returned cursor is the highest
// sequence seen, matched or not, so callers can resume past filtered lines.
func (a *EventArchive) ReadFiltered(since uint64, limit int, filter EventFilter) ([]LogEvent, uint64, error) {
	if a == nil {
		return nil, since, nil
	}
	f, err := os.Open(a.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, since, nil
	}
	if err != nil {
		return nil, since, fmt.Errorf("open event archive: %w", err)
	}
	defer f.Close()

	var out []LogEvent
	cursor := since
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var evt LogEvent
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			// a torn final line from a crash is not fatal
			continue
		}
		if evt.Sequence <= since {
			continue
		}
		cursor = max(cursor, evt.Sequence)
		if !filter.Match(evt) {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return out, cursor, fmt.Errorf("read event archive %s: %w", a.path, err)
	}
	return out, cursor, nil
}

// Close stops further appends.
func (a *EventArchive) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.out == nil {
		return nil
	}
	err := a.out.Close()
	a.out = nil
	return err
}
