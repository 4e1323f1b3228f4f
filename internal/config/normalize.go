package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDevice()
	c.normalizeCapture()
	c.normalizeSync()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("HOLOCAP_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeDevice() {
	if value, ok := os.LookupEnv("HOLOCAP_DEVICE_HOST"); ok && strings.TrimSpace(value) != "" {
		c.Device.Host = strings.TrimSpace(value)
	}
	c.Device.Host = strings.TrimSpace(c.Device.Host)
	c.Device.Name = strings.TrimSpace(c.Device.Name)
	if c.Device.Name == "" {
		c.Device.Name = defaultDeviceName
	}
	c.Device.Interface = strings.TrimSpace(c.Device.Interface)
	c.Device.Mode = strings.ToLower(strings.TrimSpace(c.Device.Mode))
	if c.Device.Mode == "" {
		c.Device.Mode = defaultDeviceMode
	}
	if c.Device.ConnectTimeout <= 0 {
		c.Device.ConnectTimeout = defaultConnectTimeout
	}
}

func (c *Config) normalizeCapture() {
	c.Capture.Streams = normalizeStreamList(c.Capture.Streams)
	if c.Capture.Ports == nil {
		c.Capture.Ports = defaultPorts()
	} else {
		for name, port := range defaultPorts() {
			if _, ok := c.Capture.Ports[name]; !ok {
				c.Capture.Ports[name] = port
			}
		}
	}
	if c.Capture.PVStride <= 0 {
		c.Capture.PVStride = c.Capture.PVWidth
	}
	if c.Capture.QueueCapacity < 0 {
		c.Capture.QueueCapacity = 0
	}
}

func (c *Config) normalizeSync() {
	c.Sync.BaseStream = strings.ToLower(strings.TrimSpace(c.Sync.BaseStream))
	if c.Sync.BaseStream == "" {
		c.Sync.BaseStream = defaultBaseStream
	}
	streams := normalizeStreamList(c.Sync.Streams)
	filtered := streams[:0]
	for _, name := range streams {
		if name != c.Sync.BaseStream {
			filtered = append(filtered, name)
		}
	}
	c.Sync.Streams = filtered
	if c.Sync.ToleranceTicks == 0 {
		c.Sync.ToleranceTicks = defaultToleranceTicks
	}
	if c.Sync.GapFactor == 0 {
		c.Sync.GapFactor = defaultGapFactor
	}
	if c.Sync.Periods == nil {
		c.Sync.Periods = make(map[string]uint64)
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if len(c.Logging.StageOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.StageOverrides))
		for stage, level := range c.Logging.StageOverrides {
			stage = strings.ToLower(strings.TrimSpace(stage))
			if stage == "" {
				continue
			}
			overrides[stage] = strings.ToLower(strings.TrimSpace(level))
		}
		c.Logging.StageOverrides = overrides
	}
}

// normalizeStreamList lowercases, trims, and de-duplicates stream names
// while keeping their first-seen order.
func normalizeStreamList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		name := strings.ToLower(strings.TrimSpace(value))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
