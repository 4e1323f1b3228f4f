package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options configures New.
type Options struct {
	Level  string
	Format string // "console" (default) or "json"
	// Outputs lists "stdout", "stderr" or file paths. Files are appended to
	// and their directories created. Empty means stdout.
	Outputs     []string
	Development bool
	// Stream, when set, receives every record for API log tailing.
	Stream *StreamHub
	// SessionID, when set, is stamped on every record.
	SessionID string
}

// New builds the process logger. Source locations are added at debug level
// or in development mode.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(opts.Level))

	w, err := openOutputs(opts.Outputs)
	if err != nil {
		return nil, err
	}
	handler, err := formatHandler(opts.Format, w, level, opts.Development || level.Level() <= slog.LevelDebug)
	if err != nil {
		return nil, err
	}
	if id := strings.TrimSpace(opts.SessionID); id != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String(FieldSessionID, id)})
	}
	if opts.Stream != nil {
		handler = newStreamHandler(handler, opts.Stream)
	}
	return slog.New(handler), nil
}

// NewFileHandler appends to path in the given format. Callers close the
// returned closer when the owning recording or item finishes.
func NewFileHandler(path, format, level string) (slog.Handler, io.Closer, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, nil, err
	}
	lv := new(slog.LevelVar)
	lv.Set(ParseLevel(level))
	handler, err := formatHandler(format, f, lv, false)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return handler, f, nil
}

// ParseLevel maps a config level name to a slog level; unknown names are info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func formatHandler(format string, w io.Writer, level slog.Leveler, addSource bool) (slog.Handler, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console":
		return newConsoleHandler(w, level, addSource), nil
	case "json":
		return newJSONHandler(w, level, addSource), nil
	}
	return nil, fmt.Errorf("log format: unsupported value %q", format)
}

func openOutputs(outputs []string) (io.Writer, error) {
	seen := make(map[string]bool)
	var writers []io.Writer
	for _, out := range outputs {
		out = strings.TrimSpace(out)
		if out == "" || seen[out] {
			continue
		}
		seen[out] = true
		switch out {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			f, err := openAppend(out)
			if err != nil {
				return nil, err
			}
			writers = append(writers, f)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}
