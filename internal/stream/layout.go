package stream

import (
	"fmt"
	"strconv"
	"strings"
)

// On-disk names shared by the capture writers and the sync engine.
const (
	ColorPrefix = "color"
	ColorExt    = "jpg"
	DepthPrefix = "depth"
	ABPrefix    = "ab"
	PlaneExt    = "png"
	DepthDir    = "depth"
	ABDir       = "ab"
	PoseLogName = "pose.hlog"

	// UnavailableMarker is written into a stream directory whose source
	// could not be opened. It holds the reason as plain text.
	UnavailableMarker = "UNAVAILABLE"
)

// LogName returns the record log file name for a log-layout kind.
func (k Kind) LogName() string { return string(k) + ".hlog" }

// FrameName returns the capture-time file name embedding the device timestamp.
func FrameName(prefix string, ts uint64, ext string) string {
	return prefix + "-" + strconv.FormatUint(ts, 10) + "." + ext
}

// OrdinalName returns the synchronized file name for base ordinal i.
func OrdinalName(prefix string, i int, ext string) string {
	return fmt.Sprintf("%s-%06d.%s", prefix, i, ext)
}

// ParseFrameName extracts the timestamp from a FrameName. ok is false when
// name does not have the given prefix and extension or the timestamp does not
// parse.
func ParseFrameName(name, prefix, ext string) (uint64, bool) {
	head := prefix + "-"
	tail := "." + ext
	if !strings.HasPrefix(name, head) || !strings.HasSuffix(name, tail) {
		return 0, false
	}
	digits := name[len(head) : len(name)-len(tail)]
	if digits == "" {
		return 0, false
	}
	ts, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
