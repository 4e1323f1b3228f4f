package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

type consoleField struct {
	label string
	value string
}

// fieldRank orders the fields an operator scans first. Unlisted keys follow
// in record order.
var fieldRank = map[string]int{}

func init() {
	for i, key := range []string{
		FieldAlert, FieldEventType,
		FieldErrorKind, FieldErrorOperation, "error", FieldErrorHint, FieldImpact,
		"status", "state", "result",
		FieldProgressStage, FieldProgressPercent,
		"device_host", "link_state", "streams", "unavailable_streams",
		"base_stream", "num_of_frames", "matched", "unmatched", "gaps", "tolerance_ticks",
		"packets_read", "packets_written", "packets_malformed", "queue_depth",
		"capture_duration", "sync_duration", "recording_dir",
	} {
		fieldRank[key] = i
	}
}

var fieldLabels = map[string]string{
	FieldAlert:            "Alert",
	FieldEventType:        "Event",
	FieldErrorKind:        "Error Kind",
	FieldErrorOperation:   "Operation",
	FieldErrorHint:        "Hint",
	FieldErrorDetailPath:  "Error Detail",
	FieldProgressStage:    "Progress Stage",
	FieldProgressPercent:  "Progress",
	"device_host":         "Device",
	"link_state":          "Link",
	"num_of_frames":       "Frames",
	"unavailable_streams": "Unavailable",
	"tolerance_ticks":     "Tolerance",
	"queue_depth":         "Queue",
	"capture_duration":    "Duration",
	"sync_duration":       "Duration",
	"recording_dir":       "Recording",
}

// highlightFields picks and formats the info-level fields of a record.
// Subject keys are already in the header, identifiers stay in debug output.
func highlightFields(attrs []kv) []consoleField {
	picked := make([]kv, 0, len(attrs))
	var detailPath string
	for _, a := range attrs {
		if a.key == FieldErrorDetailPath {
			detailPath = attrString(a.value)
		}
		if inHeader(a.key) || debugOnly(a.key) {
			continue
		}
		picked = append(picked, a)
	}
	// stable insertion sort: ranked keys first, in rank order
	for i := 1; i < len(picked); i++ {
		for j := i; j > 0 && ranksBefore(picked[j].key, picked[j-1].key); j-- {
			picked[j], picked[j-1] = picked[j-1], picked[j]
		}
	}
	out := make([]consoleField, 0, len(picked))
	for _, a := range picked {
		value := humanValue(a.key, a.value)
		if a.key == "error" {
			value = clipError(value, detailPath)
		} else if len(value) > 120 && a.key != FieldErrorHint {
			continue
		}
		out = append(out, consoleField{label: labelFor(a.key), value: value})
	}
	return out
}

func ranksBefore(a, b string) bool {
	ra, okA := fieldRank[a]
	rb, okB := fieldRank[b]
	return okA && (!okB || ra < rb)
}

func inHeader(key string) bool {
	switch key {
	case FieldItemID, FieldStage, FieldLane, FieldComponent, FieldRecordingID, FieldStream:
		return true
	}
	return false
}

func debugOnly(key string) bool {
	switch key {
	case FieldRequestID, FieldSessionID, "port", "timestamp", "payload_len", "width", "height", "stride":
		return true
	}
	if strings.HasSuffix(key, "_id") {
		return true
	}
	return strings.Contains(key, "_path") || (strings.HasSuffix(key, "_dir") && key != "recording_dir")
}

func labelFor(key string) string {
	if label, ok := fieldLabels[key]; ok {
		return label
	}
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func clipError(value, detailPath string) string {
	const limit = 200
	if len(value) > limit {
		value = value[:limit] + "…"
	}
	if detailPath != "" && !strings.Contains(value, "detail_path") {
		value += " (see error_detail_path)"
	}
	return value
}

// humanValue formats sizes, durations, percentages and booleans for reading.
func humanValue(key string, v slog.Value) string {
	switch v.Kind() {
	case slog.KindBool:
		if v.Bool() {
			return "yes"
		}
		return "no"
	case slog.KindDuration:
		return roundDuration(v.Duration()).String()
	case slog.KindFloat64:
		if strings.HasSuffix(key, "_percent") {
			return strconv.FormatFloat(v.Float64(), 'f', 1, 64) + "%"
		}
	case slog.KindInt64, slog.KindUint64:
		if strings.HasSuffix(key, "_bytes") || strings.HasSuffix(key, "_size") {
			n := v.Uint64()
			if v.Kind() == slog.KindInt64 {
				n = uint64(max(v.Int64(), 0))
			}
			return byteSize(n)
		}
	}
	return formatValue(v)
}

func roundDuration(d time.Duration) time.Duration {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond)
	case d < time.Minute:
		return d.Round(100 * time.Millisecond)
	}
	return d.Round(time.Second)
}

func byteSize(n uint64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatUint(n, 10) + " B"
	}
	value, suffix := float64(n), 0
	for value >= unit && suffix < 5 {
		value /= unit
		suffix++
	}
	return fmt.Sprintf("%.1f %ciB", value, "KMGTP"[suffix-1])
}

// attrString is the unquoted text of v.
func attrString(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	if v.Kind() == slog.KindTime {
		return v.Time().In(time.Local).Format(consoleTimeLayout)
	}
	return v.String()
}

// formatValue is attrString quoted when the text would be ambiguous.
func formatValue(v slog.Value) string {
	s := attrString(v)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
