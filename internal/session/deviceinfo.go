package session

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DeviceInfoFile is written under <recording>/raw.
const DeviceInfoFile = "device.toml"

// RawDir is the capture-time subdirectory of a recording.
const RawDir = "raw"

// DeviceInfo describes the device and stream set of one recording. The sync
// engine reads it to fill the descriptor.
type DeviceInfo struct {
	Name        string     `toml:"name"`
	Host        string     `toml:"host"`
	UTCOffset   int64      `toml:"utc_offset"`
	Recording   string     `toml:"recording"`
	Started     time.Time  `toml:"started"`
	Stopped     *time.Time `toml:"stopped,omitempty"`
	Streams     []string   `toml:"streams"`
	Unavailable []string   `toml:"unavailable,omitempty"`
	Failed      []string   `toml:"failed,omitempty"`
	PVWidth     int        `toml:"pv_width"`
	PVHeight    int        `toml:"pv_height"`
	PVFramerate int        `toml:"pv_framerate"`
	DepthWidth  int        `toml:"depth_width"`
	DepthHeight int        `toml:"depth_height"`
}

// WriteDeviceInfo stores info as <recordingDir>/raw/device.toml, replacing
// any previous version atomically.
func WriteDeviceInfo(recordingDir string, info DeviceInfo) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(info); err != nil {
		return fmt.Errorf("encode device info: %w", err)
	}
	path := filepath.Join(recordingDir, RawDir, DeviceInfoFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write device info: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace device info: %w", err)
	}
	return nil
}

// ReadDeviceInfo loads <recordingDir>/raw/device.toml.
func ReadDeviceInfo(recordingDir string) (DeviceInfo, error) {
	var info DeviceInfo
	data, err := os.ReadFile(filepath.Join(recordingDir, RawDir, DeviceInfoFile))
	if err != nil {
		return info, err
	}
	if err := toml.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("parse device info: %w", err)
	}
	return info, nil
}
