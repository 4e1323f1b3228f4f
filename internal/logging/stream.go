package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultHubCapacity = 512

// LogEvent is one log record as served to log tailing clients.
type LogEvent struct {
	Sequence    uint64            `json:"seq"`
	Timestamp   time.Time         `json:"ts"`
	Level       string            `json:"level"`
	Message     string            `json:"msg"`
	Component   string            `json:"component,omitempty"`
	Stage       string            `json:"stage,omitempty"`
	ItemID      int64             `json:"item_id,omitempty"`
	RecordingID string            `json:"recording_id,omitempty"`
	Stream      string            `json:"stream,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// LogEventSink receives every published event, after sequencing.
type LogEventSink interface {
	Append(LogEvent)
}

// StreamHub is a fixed-size ring of recent events. Sequences start at 1 and
// never repeat within a process.
type StreamHub struct {
	mu      sync.Mutex
	ring    []LogEvent
	head    int // index of the oldest event
	size    int
	lastSeq uint64
	// notify is closed and replaced on every publish to wake waiters.
	notify chan struct{}
	sinks  []LogEventSink
}

// NewStreamHub keeps the latest capacity events; non-positive capacities
// use a default.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = defaultHubCapacity
	}
	return &StreamHub{
		ring:   make([]LogEvent, capacity),
		notify: make(chan struct{}),
	}
}

// AddSink registers sink for all subsequent events.
func (h *StreamHub) AddSink(sink LogEventSink) {
	if h == nil || sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// Publish sequences evt, stores it and hands it to the sinks.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	h.lastSeq++
	evt.Sequence = h.lastSeq
	capacity := len(h.ring)
	if h.size < capacity {
		h.ring[(h.head+h.size)%capacity] = evt
		h.size++
	} else {
		h.ring[h.head] = evt
		h.head = (h.head + 1) % capacity
	}
	close(h.notify)
	h.notify = make(chan struct{})
	sinks := h.sinks
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Append(evt)
	}
}

// Fetch returns up to limit events newer than since, plus the cursor to pass
// next time. With wait it blocks until an event arrives or ctx ends; the
// context error is returned alongside whatever was collected.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEvent, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		h.mu.Lock()
		events := h.collectLocked(since, limit)
		next := h.lastSeq
		if len(events) > 0 {
			next = events[len(events)-1].Sequence
		}
		notify := h.notify
		h.mu.Unlock()

		if len(events) > 0 || !wait {
			return events, next, ctx.Err()
		}
		select {
		case <-ctx.Done():
			return nil, next, ctx.Err()
		case <-notify:
		}
	}
}

// Tail returns the newest limit events and the latest sequence.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > h.size {
		limit = h.size
	}
	if limit == 0 {
		return nil, h.lastSeq
	}
	out := make([]LogEvent, limit)
	for i := range out {
		out[i] = h.at(h.size - limit + i)
	}
	return out, h.lastSeq
}

// FirstSequence is the oldest sequence still held, or the latest sequence
// when the ring is empty.
func (h *StreamHub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.size == 0 {
		return h.lastSeq
	}
	return h.at(0).Sequence
}

func (h *StreamHub) at(i int) LogEvent {
	return h.ring[(h.head+i)%len(h.ring)]
}

func (h *StreamHub) collectLocked(since uint64, limit int) []LogEvent {
	if h.size == 0 || h.lastSeq <= since {
		return nil
	}
	oldest := h.at(0).Sequence
	start := 0
	if since >= oldest {
		start = int(since - oldest + 1)
	}
	n := h.size - start
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]LogEvent, n)
	for i := range out {
		out[i] = h.at(start + i)
	}
	return out
}

// publishHandler mirrors every record into a StreamHub before passing it on.
type publishHandler struct {
	next   slog.Handler
	hub    *StreamHub
	preset []slog.Attr
	group  string
}

func newStreamHandler(next slog.Handler, hub *StreamHub) slog.Handler {
	if hub == nil || next == nil {
		return next
	}
	return &publishHandler{next: next, hub: hub}
}

func (h *publishHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *publishHandler) Handle(ctx context.Context, record slog.Record) error {
	evt := LogEvent{
		Timestamp: record.Time,
		Level:     strings.ToUpper(record.Level.String()),
		Message:   strings.TrimSpace(record.Message),
	}
	for _, attr := range h.preset {
		evt.apply("", attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		evt.apply(h.group, attr)
		return true
	})
	h.hub.Publish(evt)
	return h.next.Handle(ctx, record.Clone())
}

func (h *publishHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.preset = make([]slog.Attr, 0, len(h.preset)+len(attrs))
	clone.preset = append(clone.preset, h.preset...)
	for _, attr := range attrs {
		if h.group != "" {
			attr.Key = h.group + "." + attr.Key
		}
		clone.preset = append(clone.preset, attr)
	}
	return &clone
}

func (h *publishHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.next = h.next.WithGroup(name)
	clone.group = joinGroup(h.group, name)
	return &clone
}

// apply routes well-known keys to their LogEvent fields; everything else
// lands in Fields under its dotted group path. Later values win.
func (evt *LogEvent) apply(group string, attr slog.Attr) {
	key := strings.TrimSpace(attr.Key)
	if key == "" {
		return
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		for _, inner := range value.Group() {
			evt.apply(joinGroup(group, key), inner)
		}
		return
	}
	if group == "" {
		switch key {
		case FieldComponent:
			evt.Component = attrString(value)
			return
		case FieldStage:
			evt.Stage = attrString(value)
			return
		case FieldRecordingID:
			evt.RecordingID = attrString(value)
			return
		case FieldStream:
			evt.Stream = attrString(value)
			return
		case FieldItemID:
			if value.Kind() == slog.KindInt64 {
				evt.ItemID = value.Int64()
				return
			}
		}
	}
	if evt.Fields == nil {
		evt.Fields = make(map[string]string)
	}
	evt.Fields[joinGroup(group, key)] = attrString(value)
}

func joinGroup(group, name string) string {
	if group == "" {
		return name
	}
	return group + "." + name
}
