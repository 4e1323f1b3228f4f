package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"holocap/internal/testsupport"
	"holocap/internal/workflow"
)

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), PIDFileName)
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file = %q", data)
	}
	if err := writePIDFile(""); err != nil {
		t.Fatalf("empty path should be ignored, got %v", err)
	}
}

func TestEnsureCurrentLogPointerReplacesLink(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "holocap-1.log")
	second := filepath.Join(dir, "holocap-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "holocap.log"))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "holocap-2.log" {
		t.Fatalf("pointer resolves to %q", data)
	}
}

func TestRegisterStagesConfiguresSync(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, nil)
	if err := registerStages(mgr, cfg, store, nil, nil); err != nil {
		t.Fatalf("registerStages: %v", err)
	}
	if _, ok := mgr.Status(context.Background()).StageHealth["sync"]; !ok {
		t.Fatal("expected sync stage to be registered")
	}
	cfg.Sync.BaseStream = "bogus"
	if err := registerStages(mgr, cfg, store, nil, nil); err == nil {
		t.Fatal("expected invalid base stream to fail")
	}
}
