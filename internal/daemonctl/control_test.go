package daemonctl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"holocap/internal/daemonrun"
	"holocap/internal/queue"
	"holocap/internal/testsupport"
)

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	pid, err := ReadPID(dir)
	if err != nil || pid != 0 {
		t.Fatalf("missing pid file: pid=%d err=%v", pid, err)
	}
	path := filepath.Join(dir, daemonrun.PIDFileName)
	if err := os.WriteFile(path, []byte("4242\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if pid, err := ReadPID(dir); err != nil || pid != 4242 {
		t.Fatalf("pid=%d err=%v", pid, err)
	}
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := ReadPID(dir); err == nil {
		t.Fatal("expected invalid pid file error")
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := StopAndTerminate(cfg.SocketPath(), cfg, time.Second)
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewRecording(t, store, cfg, "one", queue.StatusCaptured)
	testsupport.NewRecording(t, store, cfg, "two", queue.StatusSynced)
	testsupport.NewRecording(t, store, cfg, "three", queue.StatusSynced)

	snap, err := BuildStatusSnapshot(context.Background(), cfg.SocketPath(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snap.Reachable || snap.Status.Running {
		t.Fatalf("expected offline snapshot, got %+v", snap)
	}
	if snap.Status.Session.State != "offline" {
		t.Fatalf("session state = %q", snap.Status.Session.State)
	}
	stats := snap.Status.Workflow.QueueStats
	if stats["captured"] != 1 || stats["synced"] != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(snap.Checks) == 0 {
		t.Fatal("expected local storage checks")
	}
}

func TestLaunchRejectsEmptyExecutable(t *testing.T) {
	if err := Launch("  ", LaunchOptions{}); err == nil {
		t.Fatal("expected empty executable to be rejected")
	}
}

func TestPollReturnsLastError(t *testing.T) {
	calls := 0
	err := poll(50*time.Millisecond, func() (bool, error) {
		calls++
		return false, errors.New("socket missing")
	})
	if err == nil || err.Error() != "socket missing" || calls == 0 {
		t.Fatalf("poll = %v after %d calls", err, calls)
	}
	if err := poll(time.Second, func() (bool, error) { return true, nil }); err != nil {
		t.Fatalf("immediate success returned %v", err)
	}
}
