package timesync

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MetaFile is the descriptor written at the root of the sync directory.
const MetaFile = "meta.yaml"

// DepthModeAHAT names the short-throw depth mode recorded by the device.
const DepthModeAHAT = "ahat"

// Meta is the dataset descriptor. It carries no wall-clock fields so that
// reruns over the same input produce the same bytes.
type Meta struct {
	DeviceID       string                `yaml:"device_id"`
	BaseStream     string                `yaml:"base_stream"`
	NumOfFrames    int                   `yaml:"num_of_frames"`
	PVWidth        int                   `yaml:"pv_width,omitempty"`
	PVHeight       int                   `yaml:"pv_height,omitempty"`
	DepthMode      string                `yaml:"depth_mode,omitempty"`
	DepthWidth     int                   `yaml:"depth_width,omitempty"`
	DepthHeight    int                   `yaml:"depth_height,omitempty"`
	ToleranceTicks uint64                `yaml:"tolerance_ticks"`
	Streams        map[string]StreamMeta `yaml:"streams"`
}

// StreamMeta summarizes one stream's alignment.
type StreamMeta struct {
	Status    string `yaml:"status"`
	Matched   int    `yaml:"matched"`
	Unmatched int    `yaml:"unmatched"`
	Gaps      int    `yaml:"gaps"`
}

// EncodeMeta renders m as YAML.
func EncodeMeta(m Meta) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadMeta loads <syncDir>/meta.yaml.
func ReadMeta(syncDir string) (Meta, error) {
	var m Meta
	data, err := os.ReadFile(filepath.Join(syncDir, MetaFile))
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse meta: %w", err)
	}
	return m, nil
}

// imageSize reads only the header of an encoded image.
func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return cfg.Width, cfg.Height, nil
}
