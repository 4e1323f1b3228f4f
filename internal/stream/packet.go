package stream

import (
	"encoding/binary"
	"fmt"
	"math"

	"holocap/internal/services"
)

// Pose is a row-major 4x4 rigid transform reported by the device.
type Pose [16]float32

// PoseSize is the encoded size of a Pose in bytes.
const PoseSize = 16 * 4

// Identity returns the identity transform.
func Identity() Pose {
	return Pose{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

// PutPose writes p little-endian into dst, which must hold PoseSize bytes.
func PutPose(dst []byte, p Pose) {
	for i, v := range p {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

// ReadPose decodes a little-endian pose from src.
func ReadPose(src []byte) Pose {
	var p Pose
	for i := range p {
		p[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return p
}

// Packet is one timestamped unit of stream data. Timestamps are device clock
// ticks (100ns units).
type Packet struct {
	Timestamp uint64
	Payload   []byte
	Pose      *Pose
}

const (
	envelopeHeaderSize = 8 + 4 + 1
	flagPose           = 1 << 0
	flagKnownMask      = flagPose
)

// EncodeEnvelope serializes p into the transfer queue wire form:
// u64 timestamp, u32 payload length, u8 flags, payload, optional pose.
func EncodeEnvelope(p Packet) []byte {
	size := envelopeHeaderSize + len(p.Payload)
	if p.Pose != nil {
		size += PoseSize
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint64(buf[0:8], p.Timestamp)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(p.Payload)))
	var flags byte
	if p.Pose != nil {
		flags |= flagPose
	}
	buf[12] = flags
	copy(buf[envelopeHeaderSize:], p.Payload)
	if p.Pose != nil {
		PutPose(buf[envelopeHeaderSize+len(p.Payload):], *p.Pose)
	}
	return buf
}

// DecodeEnvelope parses an envelope produced by EncodeEnvelope. The returned
// payload aliases buf.
func DecodeEnvelope(buf []byte) (Packet, error) {
	if len(buf) < envelopeHeaderSize {
		return Packet{}, malformed("envelope shorter than header (%d bytes)", len(buf))
	}
	ts := binary.LittleEndian.Uint64(buf[0:8])
	n := int(binary.LittleEndian.Uint32(buf[8:12]))
	flags := buf[12]
	if flags&^flagKnownMask != 0 {
		return Packet{}, malformed("unknown envelope flags 0x%02x", flags)
	}
	want := envelopeHeaderSize + n
	if flags&flagPose != 0 {
		want += PoseSize
	}
	if n < 0 || len(buf) != want {
		return Packet{}, malformed("envelope length %d does not match declared %d", len(buf), want)
	}
	pkt := Packet{
		Timestamp: ts,
		Payload:   buf[envelopeHeaderSize : envelopeHeaderSize+n],
	}
	if flags&flagPose != 0 {
		pose := ReadPose(buf[envelopeHeaderSize+n:])
		pkt.Pose = &pose
	}
	return pkt, nil
}

func malformed(format string, args ...any) error {
	return services.Wrap(services.ErrMalformed, "stream", "decode envelope", fmt.Sprintf(format, args...), nil)
}
