package stream

import (
	"fmt"
	"strings"
)

// Kind identifies one semantic sensor channel of the capture device.
type Kind string

const (
	KindVideo      Kind = "pv"
	KindDepth      Kind = "depth_ahat"
	KindSpatial    Kind = "spatial"
	KindAccel      Kind = "imu_accel"
	KindGyro       Kind = "imu_gyro"
	KindMag        Kind = "imu_mag"
	KindMicrophone Kind = "microphone"
)

// Layout describes how a kind is persisted on disk.
type Layout int

const (
	// LayoutFrames writes one image file per timestamp.
	LayoutFrames Layout = iota
	// LayoutPlanes writes two image files per timestamp (depth + active brightness).
	LayoutPlanes
	// LayoutLog appends every packet to a single record log.
	LayoutLog
)

func (l Layout) String() string {
	switch l {
	case LayoutFrames:
		return "frames"
	case LayoutPlanes:
		return "planes"
	case LayoutLog:
		return "log"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

type kindInfo struct {
	port   int
	layout Layout
	pose   bool
	label  string
}

var allKinds = []Kind{
	KindVideo,
	KindDepth,
	KindSpatial,
	KindAccel,
	KindGyro,
	KindMag,
	KindMicrophone,
}

var kindTable = map[Kind]kindInfo{
	KindVideo:      {port: 3810, layout: LayoutFrames, pose: true, label: "video"},
	KindDepth:      {port: 3804, layout: LayoutPlanes, pose: true, label: "depth"},
	KindSpatial:    {port: 3812, layout: LayoutLog, label: "spatial tracking"},
	KindAccel:      {port: 3806, layout: LayoutLog, label: "accelerometer"},
	KindGyro:       {port: 3807, layout: LayoutLog, label: "gyroscope"},
	KindMag:        {port: 3808, layout: LayoutLog, label: "magnetometer"},
	KindMicrophone: {port: 3811, layout: LayoutLog, label: "microphone"},
}

// AllKinds returns every known kind in canonical order.
func AllKinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// ParseKind resolves a configured stream name.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := kindTable[k]; !ok {
		return "", fmt.Errorf("unknown stream %q", name)
	}
	return k, nil
}

// ParseKinds resolves a list of stream names, preserving order and dropping
// duplicates.
func ParseKinds(names []string) ([]Kind, error) {
	out := make([]Kind, 0, len(names))
	seen := make(map[Kind]struct{}, len(names))
	for _, name := range names {
		k, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out, nil
}

func (k Kind) String() string { return string(k) }

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindTable[k]
	return ok
}

// DefaultPort returns the device port the kind is served on.
func (k Kind) DefaultPort() int { return kindTable[k].port }

// Layout returns the on-disk persistence layout for k.
func (k Kind) Layout() Layout { return kindTable[k].layout }

// HasPose reports whether packets of this kind carry a rigid-body pose.
func (k Kind) HasPose() bool { return kindTable[k].pose }

// Label returns a human-readable description of k.
func (k Kind) Label() string {
	if info, ok := kindTable[k]; ok {
		return info.label
	}
	return string(k)
}
