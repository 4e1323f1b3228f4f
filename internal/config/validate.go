package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDevice(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

// KnownStream reports whether name is one of the supported stream kinds.
func KnownStream(name string) bool {
	return slices.Contains(StreamNames, name)
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateDevice() error {
	switch c.Device.Mode {
	case DeviceModeTCP:
		if c.Device.Host == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = "~/.config/holocap/config.toml"
			}
			return fmt.Errorf("device.host is required in tcp mode. Set HOLOCAP_DEVICE_HOST env var or edit %s (create with 'holocap config init')", defaultPath)
		}
		if c.Device.ControlPort < 0 || c.Device.ControlPort > 65535 {
			return errors.New("device.control_port must be between 0 and 65535")
		}
	case DeviceModeSimulated:
	default:
		return fmt.Errorf("device.mode %q is not supported (use %q or %q)", c.Device.Mode, DeviceModeTCP, DeviceModeSimulated)
	}
	return nil
}

func (c *Config) validateCapture() error {
	if len(c.Capture.Streams) == 0 {
		return errors.New("capture.streams must include at least one stream")
	}
	for _, name := range c.Capture.Streams {
		if !KnownStream(name) {
			return fmt.Errorf("capture.streams: unknown stream %q", name)
		}
		if c.Device.Mode == DeviceModeTCP {
			port := c.Capture.Ports[name]
			if port <= 0 || port > 65535 {
				return fmt.Errorf("capture.ports.%s must be between 1 and 65535", name)
			}
		}
	}
	if err := ensurePositiveMap(map[string]int{
		"capture.pop_timeout_seconds": c.Capture.PopTimeoutSeconds,
		"capture.pv_width":            c.Capture.PVWidth,
		"capture.pv_height":           c.Capture.PVHeight,
		"capture.pv_framerate":        c.Capture.PVFramerate,
		"capture.depth_width":         c.Capture.DepthWidth,
		"capture.depth_height":        c.Capture.DepthHeight,
	}); err != nil {
		return err
	}
	// NV12 subsamples chroma 2x2.
	if c.Capture.PVWidth%2 != 0 || c.Capture.PVHeight%2 != 0 {
		return fmt.Errorf("capture.pv_width and capture.pv_height must be even, got %dx%d", c.Capture.PVWidth, c.Capture.PVHeight)
	}
	if c.Capture.PVStride < c.Capture.PVWidth {
		return errors.New("capture.pv_stride must be >= capture.pv_width")
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return errors.New("capture.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateSync() error {
	if !KnownStream(c.Sync.BaseStream) {
		return fmt.Errorf("sync.base_stream: unknown stream %q", c.Sync.BaseStream)
	}
	for _, name := range c.Sync.Streams {
		if !KnownStream(name) {
			return fmt.Errorf("sync.streams: unknown stream %q", name)
		}
	}
	if c.Sync.GapFactor <= 1 {
		return errors.New("sync.gap_factor must be greater than 1")
	}
	for name := range c.Sync.Periods {
		if !KnownStream(name) {
			return fmt.Errorf("sync.periods: unknown stream %q", name)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	for stage, level := range c.Logging.StageOverrides {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.stage_overrides.%s: unknown level %q", stage, level)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
