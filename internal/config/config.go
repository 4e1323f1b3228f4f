package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Device describes the head-mounted capture device and how to reach it.
type Device struct {
	Name           string `toml:"name"`
	Host           string `toml:"host"`
	Interface      string `toml:"interface"`
	UTCOffset      int64  `toml:"utc_offset"`
	Mode           string `toml:"mode"`
	ConnectTimeout int    `toml:"connect_timeout"`
	ControlPort    int    `toml:"control_port"`
	StopOnLinkLoss bool   `toml:"stop_on_link_loss"`
}

// Capture contains the active stream set and per-stream format settings
// consumed once at session start.
type Capture struct {
	Streams           []string       `toml:"streams"`
	Ports             map[string]int `toml:"ports"`
	QueueCapacity     int            `toml:"queue_capacity"`
	PopTimeoutSeconds int            `toml:"pop_timeout_seconds"`
	PVWidth           int            `toml:"pv_width"`
	PVHeight          int            `toml:"pv_height"`
	PVFramerate       int            `toml:"pv_framerate"`
	PVStride          int            `toml:"pv_stride"`
	DepthWidth        int            `toml:"depth_width"`
	DepthHeight       int            `toml:"depth_height"`
	JPEGQuality       int            `toml:"jpeg_quality"`
}

// Sync contains synchronization engine settings.
type Sync struct {
	BaseStream      string            `toml:"base_stream"`
	Streams         []string          `toml:"streams"`
	ToleranceTicks  uint64            `toml:"tolerance_ticks"`
	GapFactor       float64           `toml:"gap_factor"`
	Periods         map[string]uint64 `toml:"periods"`
	ParallelStreams bool              `toml:"parallel_streams"`
	AutoSync        bool              `toml:"auto_sync"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`

	// StageOverrides maps a workflow stage name to its own minimum level.
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Metrics toggles the Prometheus endpoint on the daemon API.
type Metrics struct {
	Enabled bool `toml:"enabled"`
}

// Config encapsulates all configuration values for holocap.
//
// Configuration sections by subsystem:
//   - Paths: recording data root, logs, and API bind address
//   - Device: capture device address, link interface, and transport mode
//   - Capture: active streams and per-stream resolution
//   - Sync: base stream, tolerance, and gap detection
//   - Workflow: daemon polling intervals and heartbeats
//   - Logging: log format, level, and retention
//   - Metrics: Prometheus exposure
type Config struct {
	Paths    Paths    `toml:"paths"`
	Device   Device   `toml:"device"`
	Capture  Capture  `toml:"capture"`
	Sync     Sync     `toml:"sync"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
	Metrics  Metrics  `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file beside the config (or in the working
// directory) is loaded first so secrets can stay out of the TOML file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(resolvedPath); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("holocap.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// loadDotEnv loads .env files without overriding variables already present
// in the process environment.
func loadDotEnv(configPath string) error {
	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load env file %s: %w", candidate, err)
		}
	}
	return nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RecordingDir returns the root directory for a named recording.
func (c *Config) RecordingDir(name string) string {
	return filepath.Join(c.Paths.DataDir, name)
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "holocap.sock")
}

// CatalogPath returns the SQLite recording catalogue location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.LogDir, "recordings.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "holocapd.lock")
}

// PopTimeout returns the consumer queue poll timeout.
func (c *Config) PopTimeout() time.Duration {
	return time.Duration(c.Capture.PopTimeoutSeconds) * time.Second
}

// ConnectTimeout returns the device dial timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Device.ConnectTimeout) * time.Second
}

// PortFor returns the configured device port for a stream name.
func (c *Config) PortFor(stream string) (int, bool) {
	port, ok := c.Capture.Ports[stream]
	return port, ok && port > 0
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
