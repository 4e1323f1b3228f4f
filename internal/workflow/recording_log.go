package workflow

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode"

	"holocap/internal/config"
	"holocap/internal/logging"
	"holocap/internal/queue"
)

// RecordingLogger manages the per-recording sync logs under
// <log_dir>/sync. Reruns append to the same file.
type RecordingLogger struct {
	baseDir string
	format  string
	level   string
}

// NewRecordingLogger creates a new recording logger.
func NewRecordingLogger(cfg *config.Config) *RecordingLogger {
	r := &RecordingLogger{format: "json", level: "info"}
	if cfg == nil {
		return r
	}
	if cfg.Paths.LogDir != "" {
		r.baseDir = filepath.Join(cfg.Paths.LogDir, "sync")
	}
	if strings.TrimSpace(cfg.Logging.Format) != "" {
		r.format = cfg.Logging.Format
	}
	if strings.TrimSpace(cfg.Logging.Level) != "" {
		r.level = cfg.Logging.Level
	}
	return r
}

// Path returns the log file for rec, or "" when no log directory is set.
func (r *RecordingLogger) Path(rec *queue.Recording) string {
	if r == nil || rec == nil || strings.TrimSpace(r.baseDir) == "" {
		return ""
	}
	name := sanitizeSlug(rec.Name)
	if name == "" {
		name = fmt.Sprintf("recording-%d", rec.ID)
	}
	return filepath.Join(r.baseDir, name+".log")
}

// Open returns a handler appending to rec's sync log.
func (r *RecordingLogger) Open(rec *queue.Recording) (slog.Handler, io.Closer, error) {
	if rec == nil {
		return nil, nil, errors.New("recording is nil")
	}
	path := r.Path(rec)
	if path == "" {
		return nil, nil, errors.New("sync log directory not configured")
	}
	return logging.NewFileHandler(path, r.format, r.level)
}

func sanitizeSlug(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	var builder strings.Builder
	builder.Grow(len(value))
	lastDash := false
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			builder.WriteRune(r)
			lastDash = false
		case r >= 'A' && r <= 'Z':
			builder.WriteRune(unicode.ToLower(r))
			lastDash = false
		default:
			if !lastDash {
				builder.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(builder.String(), "-.")
}
