package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"holocap/internal/capture"
	"holocap/internal/queue"
	"holocap/internal/session"
	"holocap/internal/stream"
	"holocap/internal/testsupport"
	"holocap/internal/timesync"
)

func TestConfigInitAndValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "holocap", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, filepath.Join(t.TempDir(), "none.sock"), "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected config init to refuse overwriting without --overwrite")
	}

	env := setupOfflineEnv(t)
	out, _, err = runCLI(t, []string{"config", "validate"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)
}

func TestConfigShowPrintsEffectiveConfig(t *testing.T) {
	env := setupOfflineEnv(t)
	out, _, err := runCLI(t, []string{"config", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[paths]")
	requireContains(t, out, env.cfg.Paths.DataDir)
}

func TestRecordingsListOffline(t *testing.T) {
	env := setupOfflineEnv(t)
	testsupport.NewRecording(t, env.store, env.cfg, "hallway", queue.StatusCaptured)
	failed := testsupport.NewRecording(t, env.store, env.cfg, "stairs", queue.StatusFailed)

	out, _, err := runCLI(t, []string{"recordings", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("recordings list: %v", err)
	}
	requireContains(t, out, "hallway")
	requireContains(t, out, "stairs")

	out, _, err = runCLI(t, []string{"recordings", "list", "--status", "failed", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("recordings list --json: %v", err)
	}
	var payload struct {
		Recordings []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"recordings"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode list output: %v\n%s", err, out)
	}
	if len(payload.Recordings) != 1 || payload.Recordings[0].ID != failed.ID {
		t.Fatalf("unexpected filtered list %+v", payload.Recordings)
	}

	if _, _, err := runCLI(t, []string{"recordings", "list", "--status", "bogus"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}

	out, _, err = runCLI(t, []string{"recordings", "health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("recordings health: %v", err)
	}
	requireContains(t, out, "Integrity:  yes")
}

func TestMutatingCommandsRequireDaemon(t *testing.T) {
	env := setupOfflineEnv(t)
	_, _, err := runCLI(t, []string{"recordings", "retry"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "holocap start") {
		t.Fatalf("expected daemon hint, got %v", err)
	}
	if _, _, err := runCLI(t, []string{"recordings", "sync", "abc"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected invalid id to be rejected")
	}
	if _, _, err := runCLI(t, []string{"recordings", "clear"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected clear without --force to be rejected")
	}
}

func TestStatusOffline(t *testing.T) {
	env := setupOfflineEnv(t)
	testsupport.NewRecording(t, env.store, env.cfg, "porch", queue.StatusSynced)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "Catalogue")
	requireContains(t, out, "Synced")
}

func TestRecordThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"record", "start", "kitchen"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("record start: %v", err)
	}
	requireContains(t, out, "Recording kitchen started")
	requireContains(t, out, "imu_gyro")

	waitFor(t, 5*time.Second, func() bool { return env.gyro.Delivered() == 3 })

	out, _, err = runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	requireContains(t, out, `"recording": "kitchen"`)

	out, _, err = runCLI(t, []string{"record", "stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("record stop: %v", err)
	}
	requireContains(t, out, "Recording kitchen stopped (Ok)")

	out, _, err = runCLI(t, []string{"recordings", "list", "--status", "captured"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("recordings list: %v", err)
	}
	requireContains(t, out, "kitchen")

	if _, _, err := runCLI(t, []string{"record", "stop"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected stop without an active recording to fail")
	}
}

func TestGapsAndSyncCommands(t *testing.T) {
	env := setupOfflineEnv(t, testsupport.WithSyncStreams("imu_gyro", "imu_accel"))
	rec := filepath.Join(env.cfg.Paths.DataDir, "garden")
	if err := os.MkdirAll(filepath.Join(rec, session.RawDir), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := session.WriteDeviceInfo(rec, session.DeviceInfo{
		Name:      "hl2-test",
		Recording: "garden",
		Started:   time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		Streams:   []string{"imu_gyro", "imu_accel"},
	}); err != nil {
		t.Fatalf("WriteDeviceInfo: %v", err)
	}
	gyro := testsupport.Sequence(1_000, 100, 5, []byte{1}, false)
	gyro = append(gyro, testsupport.Sequence(1_900, 100, 5, []byte{1}, false)...)
	writeRawStream(t, rec, stream.KindGyro, gyro)
	writeRawStream(t, rec, stream.KindAccel, testsupport.Sequence(1_010, 100, 14, []byte{2}, false))

	out, _, err := runCLI(t, []string{"gaps", rec}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("gaps: %v", err)
	}
	requireContains(t, out, "1400")
	requireContains(t, out, "1900")
	if _, err := os.Stat(filepath.Join(rec, timesync.SyncDir)); !os.IsNotExist(err) {
		t.Fatal("gaps must not write sync output")
	}

	out, _, err = runCLI(t, []string{"sync", rec, "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	var report timesync.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode sync report: %v\n%s", err, out)
	}
	if report.BaseStream != "imu_gyro" || report.Frames != 10 || report.GapCount() == 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	accel, ok := report.Stream(stream.KindAccel)
	if !ok || accel.Status != timesync.StreamSynced {
		t.Fatalf("unexpected accel report %+v", accel)
	}
	if _, err := os.Stat(filepath.Join(rec, timesync.SyncDir, timesync.MetaFile)); err != nil {
		t.Fatalf("expected sync metadata: %v", err)
	}
}

func writeRawStream(t *testing.T, rec string, kind stream.Kind, packets []stream.Packet) {
	t.Helper()
	dir := filepath.Join(rec, session.RawDir, string(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	w, err := capture.NewWriter(kind, dir, capture.Options{})
	if err != nil {
		t.Fatalf("NewWriter(%s): %v", kind, err)
	}
	for _, pkt := range packets {
		if err := w.Write(pkt); err != nil {
			t.Fatalf("write %s: %v", kind, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close %s: %v", kind, err)
	}
}

func TestLogsFallsBackToLogFile(t *testing.T) {
	env := setupOfflineEnv(t)
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.LogDir, "holocap.log"), []byte("first\nsecond\nthird\n"))

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "first") {
		t.Fatalf("expected only the last two lines, got %q", out)
	}
	requireContains(t, out, "second\nthird\n")
}

func TestLogsThroughDaemonWithoutEvents(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"logs"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No log entries available")
}
