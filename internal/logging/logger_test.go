package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"holocap/internal/logging"
	"holocap/internal/services"
)

func TestNewWritesEveryOutputOnce(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "holocap-run.log")

	logger, err := logging.New(logging.Options{Outputs: []string{logPath, " " + logPath + " ", ""}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("startup message")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Count(string(content), "startup message") != 1 {
		t.Fatalf("expected message exactly once, got %q", content)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, " WARNING ": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo, "loud": slog.LevelInfo}
	for in, want := range cases {
		if got := logging.ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")

	logger, err := logging.New(logging.Options{
		Format:  "console",
		Level:   "info",
		Outputs: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")

	logger, err := logging.New(logging.Options{
		Format:  "console",
		Level:   "debug",
		Outputs: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleSubjectShowsRecordingAndStream(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "subject.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Outputs: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger = logging.NewComponentLogger(logger, "capture")
	logger.Info("stream drained",
		logging.String(logging.FieldRecordingID, "rec-1"),
		logging.String(logging.FieldStream, "pv"),
		logging.Int("packets_written", 90),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(content)
	for _, want := range []string{"[capture]", "rec-1 · pv", "stream drained", "Packets Written: 90"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestNewJSONLoggerWithSession(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format:    "json",
		Level:     "debug",
		Outputs:   []string{logPath},
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("json message", logging.String("k", "v"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &payload); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, content)
	}
	if payload["msg"] != "json message" || payload["k"] != "v" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if payload[logging.FieldSessionID] != "sess-1" {
		t.Fatalf("expected session id, got %v", payload)
	}
	if payload["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logger, err := logging.New(logging.Options{Format: "console", Level: "invalid"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug to be disabled for invalid level")
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected info to be enabled")
	}
}

func TestStreamHubReceivesRecords(t *testing.T) {
	hub := logging.NewStreamHub(16)
	logger, err := logging.New(logging.Options{Format: "json", Outputs: []string{filepath.Join(t.TempDir(), "x.log")}, Stream: hub})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("recording started", logging.String(logging.FieldRecordingID, "rec-9"))

	events, next := hub.Tail(10)
	if len(events) != 1 || next != 1 {
		t.Fatalf("expected one event, got %d (next %d)", len(events), next)
	}
	if events[0].RecordingID != "rec-9" {
		t.Fatalf("expected recording id on event, got %+v", events[0])
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithItemID(ctx, 123)
	ctx = services.WithStage(ctx, "sync")
	ctx = services.WithRequestID(ctx, "req-xyz")
	ctx = services.WithRecordingID(ctx, "rec-1")
	ctx = services.WithStream(ctx, "depth_ahat")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WithContext(ctx, logger).Info("contextual log")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]any{
		logging.FieldItemID:        float64(123),
		logging.FieldStage:         "sync",
		logging.FieldRequestID:   "req-xyz",
		logging.FieldRecordingID:   "rec-1",
		logging.FieldStream:        "depth_ahat",
	}
	for key, value := range want {
		if payload[key] != value {
			t.Fatalf("field %s = %v, want %v", key, payload[key], value)
		}
	}
}

func TestErrorAttrsCarryClassification(t *testing.T) {
	err := services.WithHint(
		services.Wrap(services.ErrWrite, "capture", "write frame", "disk full", errors.New("ENOSPC")),
		"free space under data_dir",
	)
	attrs := logging.ErrorAttrs(err)
	found := map[string]string{}
	for _, attr := range attrs {
		found[attr.Key] = attr.Value.String()
	}
	if found[logging.FieldErrorKind] != string(services.KindWrite) {
		t.Fatalf("unexpected kind attr %v", found)
	}
	if found[logging.FieldErrorOperation] != "write frame" {
		t.Fatalf("unexpected operation attr %v", found)
	}
	if found[logging.FieldErrorHint] != "free space under data_dir" {
		t.Fatalf("unexpected hint attr %v", found)
	}
	if logging.ErrorAttrs(nil) != nil {
		t.Fatal("expected nil attrs for nil error")
	}
}
