package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const consoleTimeLayout = "2006-01-02 15:04:05"

// consoleHandler renders records for people watching a terminal or the
// daemon log. Info lines list a curated set of fields under the header;
// debug lines dump everything.
type consoleHandler struct {
	out       *consoleOutput
	level     slog.Leveler
	addSource bool
	preset    []kv
	groups    []string
}

// consoleOutput is shared by every clone of a handler.
type consoleOutput struct {
	mu sync.Mutex
	w  io.Writer
	// seen remembers the last value printed per subject and label so
	// repeated progress lines only show what changed.
	seen map[string]map[string]string
}

type kv struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return &consoleHandler{
		out:       &consoleOutput{w: w, seen: make(map[string]map[string]string)},
		level:     level,
		addSource: addSource,
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = slices.Clip(h.preset)
	for _, attr := range attrs {
		clone.preset = flatten(clone.preset, h.groups, attr)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clip(h.groups), name)
	return &clone
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	attrs := slices.Clone(h.preset)
	record.Attrs(func(attr slog.Attr) bool {
		attrs = flatten(attrs, h.groups, attr)
		return true
	})
	attrs = lastWins(attrs)

	line := consoleLine{
		when:    record.Time,
		level:   record.Level,
		message: strings.TrimSpace(record.Message),
	}
	if line.when.IsZero() {
		line.when = time.Now()
	}
	if line.message == "" {
		line.message = "(no message)"
	}
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil && src.File != "" {
			line.source = filepath.Base(src.File) + ":" + strconv.Itoa(src.Line)
		}
	}
	rest := make([]kv, 0, len(attrs))
	for _, a := range attrs {
		switch a.key {
		case FieldComponent:
			line.component = attrString(a.value)
			continue
		case FieldRecordingID:
			line.recording = attrString(a.value)
		case FieldStream:
			line.stream = attrString(a.value)
		case FieldStage:
			line.stage = attrString(a.value)
		}
		rest = append(rest, a)
	}

	var b strings.Builder
	line.writeHeader(&b)
	if record.Level < slog.LevelInfo {
		for _, a := range rest {
			fmt.Fprintf(&b, "    %s: %s\n", a.key, formatValue(a.value))
		}
	} else {
		fields := highlightFields(rest)
		h.out.mu.Lock()
		fields = h.out.changed(line.subjectKey(), fields, record.Level > slog.LevelInfo)
		h.out.mu.Unlock()
		for _, f := range fields {
			fmt.Fprintf(&b, "    - %s: %s\n", f.label, f.value)
		}
	}

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err := io.WriteString(h.out.w, b.String())
	return err
}

type consoleLine struct {
	when      time.Time
	level     slog.Level
	component string
	recording string
	stream    string
	stage     string
	message   string
	source    string
}

func (l consoleLine) writeHeader(b *strings.Builder) {
	b.WriteString(l.when.In(time.Local).Format(consoleTimeLayout))
	b.WriteByte(' ')
	b.WriteString(levelLabel(l.level))
	if l.component != "" {
		b.WriteString(" [" + l.component + "]")
	}
	if subject := l.subject(); subject != "" {
		b.WriteString(" " + subject)
	}
	b.WriteString(" – " + l.message)
	if l.source != "" {
		b.WriteString(" [" + l.source + "]")
	}
	b.WriteByte('\n')
}

// subject reads "<recording> · <stream> (<stage>)" with absent parts left out.
func (l consoleLine) subject() string {
	var parts []string
	if l.recording != "" {
		parts = append(parts, l.recording)
	}
	switch {
	case l.stream != "" && l.stage != "":
		parts = append(parts, l.stream+" ("+l.stage+")")
	case l.stream != "":
		parts = append(parts, l.stream)
	case l.stage != "":
		parts = append(parts, l.stage)
	}
	return strings.Join(parts, " · ")
}

func (l consoleLine) subjectKey() string {
	switch {
	case l.recording != "" && l.stream != "":
		return l.recording + "/" + l.stream
	case l.recording != "":
		return l.recording
	}
	return l.component
}

// changed drops info fields whose value matches what was last printed for
// the same subject. Warnings and errors always print in full.
func (o *consoleOutput) changed(subject string, fields []consoleField, force bool) []consoleField {
	if subject == "" {
		return fields
	}
	last := o.seen[subject]
	if last == nil {
		last = make(map[string]string)
		o.seen[subject] = last
	}
	out := fields[:0]
	for _, f := range fields {
		prev, ok := last[f.label]
		last[f.label] = f.value
		if force || !ok || prev != f.value {
			out = append(out, f)
		}
	}
	return out
}

func flatten(dst []kv, groups []string, attr slog.Attr) []kv {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		inner := groups
		if attr.Key != "" {
			inner = append(slices.Clip(groups), attr.Key)
		}
		for _, a := range value.Group() {
			dst = flatten(dst, inner, a)
		}
		return dst
	}
	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(append(slices.Clip(groups), key), ".")
	}
	return append(dst, kv{key: key, value: value})
}

// lastWins keeps the first position of each key with its latest value.
func lastWins(attrs []kv) []kv {
	index := make(map[string]int, len(attrs))
	out := attrs[:0]
	for _, a := range attrs {
		if a.key == "" {
			continue
		}
		if i, ok := index[a.key]; ok {
			out[i].value = a.value
			continue
		}
		index[a.key] = len(out)
		out = append(out, a)
	}
	return out
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN "
	case level >= slog.LevelInfo:
		return "INFO "
	}
	return "DEBUG"
}
