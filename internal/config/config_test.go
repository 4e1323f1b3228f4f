package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"holocap/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "holocap", "recordings")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Sync.BaseStream != "pv" {
		t.Fatalf("unexpected base stream: %q", cfg.Sync.BaseStream)
	}
	if cfg.Sync.ToleranceTicks != 100_000_000 {
		t.Fatalf("unexpected tolerance: %d", cfg.Sync.ToleranceTicks)
	}
	if cfg.Capture.PVStride != cfg.Capture.PVWidth {
		t.Fatalf("expected stride to default to width, got %d", cfg.Capture.PVStride)
	}
	if cfg.PopTimeout().Seconds() != 3 {
		t.Fatalf("unexpected pop timeout: %v", cfg.PopTimeout())
	}
	if port, ok := cfg.PortFor("pv"); !ok || port != 3810 {
		t.Fatalf("unexpected pv port: %d %v", port, ok)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "holocap.toml")

	type payload struct {
		Device struct {
			Mode string `toml:"mode"`
		} `toml:"device"`
		Capture struct {
			Streams []string       `toml:"streams"`
			Ports   map[string]int `toml:"ports"`
		} `toml:"capture"`
		Sync struct {
			BaseStream     string   `toml:"base_stream"`
			Streams        []string `toml:"streams"`
			ToleranceTicks uint64   `toml:"tolerance_ticks"`
		} `toml:"sync"`
		Workflow struct {
			HeartbeatInterval int `toml:"heartbeat_interval"`
			HeartbeatTimeout  int `toml:"heartbeat_timeout"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Device.Mode = "Simulated"
	custom.Capture.Streams = []string{" PV ", "imu_accel", "pv"}
	custom.Capture.Ports = map[string]int{"pv": 4000}
	custom.Sync.BaseStream = "pv"
	custom.Sync.Streams = []string{"imu_accel", "pv"}
	custom.Sync.ToleranceTicks = 5000
	custom.Workflow.HeartbeatInterval = 20
	custom.Workflow.HeartbeatTimeout = 200
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Device.Mode != config.DeviceModeSimulated {
		t.Fatalf("expected simulated mode, got %q", cfg.Device.Mode)
	}
	if strings.Join(cfg.Capture.Streams, ",") != "pv,imu_accel" {
		t.Fatalf("expected normalized stream list, got %v", cfg.Capture.Streams)
	}
	if cfg.Capture.Ports["pv"] != 4000 {
		t.Fatalf("expected pv port override, got %d", cfg.Capture.Ports["pv"])
	}
	if cfg.Capture.Ports["spatial"] != 3812 {
		t.Fatalf("expected default spatial port to be merged, got %d", cfg.Capture.Ports["spatial"])
	}
	if strings.Join(cfg.Sync.Streams, ",") != "imu_accel" {
		t.Fatalf("expected base stream removed from sync streams, got %v", cfg.Sync.Streams)
	}
	if cfg.Sync.ToleranceTicks != 5000 {
		t.Fatalf("expected tolerance override, got %d", cfg.Sync.ToleranceTicks)
	}
	if cfg.Workflow.HeartbeatInterval != 20 {
		t.Fatalf("expected heartbeat interval 20, got %d", cfg.Workflow.HeartbeatInterval)
	}
}

func TestDotEnvSuppliesSecrets(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "holocap.toml")
	if err := os.WriteFile(configPath, []byte("[device]\nmode = \"tcp\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envBody := "HOLOCAP_API_TOKEN=from-dotenv\nHOLOCAP_DEVICE_HOST=10.0.0.9\n"
	if err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte(envBody), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("HOLOCAP_API_TOKEN", "")
	os.Unsetenv("HOLOCAP_API_TOKEN")
	t.Setenv("HOLOCAP_DEVICE_HOST", "")
	os.Unsetenv("HOLOCAP_DEVICE_HOST")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.APIToken != "from-dotenv" {
		t.Fatalf("expected api token from .env, got %q", cfg.Paths.APIToken)
	}
	if cfg.Device.Host != "10.0.0.9" {
		t.Fatalf("expected device host from .env, got %q", cfg.Device.Host)
	}
}

func TestProcessEnvWinsOverDotEnv(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "holocap.toml")
	if err := os.WriteFile(configPath, []byte(""), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte("HOLOCAP_API_TOKEN=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("HOLOCAP_API_TOKEN", "from-process")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.APIToken != "from-process" {
		t.Fatalf("expected process env to win, got %q", cfg.Paths.APIToken)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	cfg := config.Default()
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.DataDir, "holocap") {
		t.Fatalf("expected data dir to contain holocap, got %q", cfg.Paths.DataDir)
	}
	if cfg.Sync.GapFactor != 1.5 {
		t.Fatalf("unexpected gap factor in sample: %v", cfg.Sync.GapFactor)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"heartbeat interval", func(c *config.Config) { c.Workflow.HeartbeatInterval = 0 }},
		{"timeout <= interval", func(c *config.Config) { c.Workflow.HeartbeatTimeout = c.Workflow.HeartbeatInterval }},
		{"unknown capture stream", func(c *config.Config) { c.Capture.Streams = []string{"thermal"} }},
		{"empty capture streams", func(c *config.Config) { c.Capture.Streams = nil }},
		{"unknown base stream", func(c *config.Config) { c.Sync.BaseStream = "lidar" }},
		{"gap factor", func(c *config.Config) { c.Sync.GapFactor = 1 }},
		{"device mode", func(c *config.Config) { c.Device.Mode = "usb" }},
		{"tcp without host", func(c *config.Config) { c.Device.Host = "" }},
		{"jpeg quality", func(c *config.Config) { c.Capture.JPEGQuality = 0 }},
		{"narrow stride", func(c *config.Config) { c.Capture.PVStride = c.Capture.PVWidth - 1 }},
		{"odd pv width", func(c *config.Config) { c.Capture.PVWidth, c.Capture.PVStride = 641, 641 }},
		{"odd pv height", func(c *config.Config) { c.Capture.PVHeight = 359 }},
		{"missing port", func(c *config.Config) { delete(c.Capture.Ports, "pv") }},
		{"stage override level", func(c *config.Config) { c.Logging.StageOverrides = map[string]string{"sync": "loud"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestValidateSimulatedModeSkipsHostAndPorts(t *testing.T) {
	cfg := config.Default()
	cfg.Device.Mode = config.DeviceModeSimulated
	cfg.Device.Host = ""
	cfg.Capture.Ports = nil
	if err := cfg.Validate(); err != nil {
		t.Fatalf("simulated mode should not require host or ports: %v", err)
	}
}
