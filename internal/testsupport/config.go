package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"holocap/internal/config"
)

// ConfigOption adjusts the config returned by NewConfig.
type ConfigOption func(*config.Config)

// NewConfig returns a simulated-device config rooted in t.TempDir with tiny
// frame geometry so video fixtures stay small.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "recordings")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Device.Mode = config.DeviceModeSimulated
	cfg.Device.ControlPort = 0
	cfg.Capture.PopTimeoutSeconds = 1
	cfg.Capture.PVWidth, cfg.Capture.PVHeight, cfg.Capture.PVStride = 8, 4, 8
	cfg.Capture.DepthWidth, cfg.Capture.DepthHeight = 4, 4

	for _, opt := range opts {
		opt(&cfg)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return &cfg
}

// WithStreams replaces the capture stream set.
func WithStreams(names ...string) ConfigOption {
	return func(c *config.Config) { c.Capture.Streams = append([]string(nil), names...) }
}

// WithSyncStreams sets the base stream and the streams aligned to it.
func WithSyncStreams(base string, names ...string) ConfigOption {
	return func(c *config.Config) {
		c.Sync.BaseStream = base
		c.Sync.Streams = append([]string(nil), names...)
	}
}

// BaseDir is the temp root behind a NewConfig result.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
