package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"holocap/internal/config"
	"holocap/internal/daemon"
	"holocap/internal/ipc"
	"holocap/internal/logging"
	"holocap/internal/preflight"
	"holocap/internal/queue"
	"holocap/internal/stage"
	"holocap/internal/stream"
	"holocap/internal/testsupport"
	"holocap/internal/workflow"
)

type noopStage struct{}

func (noopStage) Prepare(context.Context, *queue.Recording) error { return nil }
func (noopStage) Execute(context.Context, *queue.Recording) error { return nil }
func (noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("noop")
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	socketPath string
	configPath string
	gyro       *testsupport.FakeSource
}

// setupOfflineEnv writes a config file and opens the catalogue, without a
// daemon listening on the socket.
func setupOfflineEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	homeDir := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t, opts...)
	cfg.Paths.APIBind = ""
	configPath := filepath.Join(homeDir, ".config", "holocap", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		socketPath: filepath.Join(cfg.Paths.LogDir, "cli.sock"),
		configPath: configPath,
	}
}

// setupCLITestEnv adds a daemon with a fake gyro source behind an IPC socket.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	env := setupOfflineEnv(t, testsupport.WithStreams("imu_gyro"))
	env.cfg.Sync.AutoSync = false

	logger := logging.NewNop()
	mgr := workflow.NewManager(env.cfg, env.store, logger, workflow.WithPreflight(func(*config.Config) []preflight.Result {
		return []preflight.Result{{Name: "storage", Passed: true, Detail: "writable"}}
	}))
	mgr.ConfigureStages(workflow.StageSet{Sync: noopStage{}})

	env.gyro = &testsupport.FakeSource{Packets: testsupport.Sequence(100, 10, 3, []byte{7}, false), Block: true}
	opener := &testsupport.FakeOpener{Sources: map[stream.Kind]*testsupport.FakeSource{stream.KindGyro: env.gyro}}
	d, err := daemon.New(env.cfg, env.store, logger, mgr, daemon.WithOpener(opener.Opener()))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	env.daemon = d

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, env.socketPath, d, logger)
	if err != nil {
		cancel()
		d.Close()
		if strings.Contains(err.Error(), "operation not permitted") || strings.Contains(err.Error(), "invalid argument") {
			t.Skipf("skipping daemon CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})
	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	testsupport.WriteFile(t, path, data)
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
