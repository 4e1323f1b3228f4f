package device

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"holocap/internal/stream"
)

// MaxPayload bounds a single packet read from the device so a corrupt
// length prefix cannot trigger a huge allocation.
const MaxPayload = 64 << 20

const frameHeaderSize = 8 + 4

// WriteFrame writes pkt in the device stream framing: u64 timestamp,
// u32 payload size, payload, then a 64-byte pose when the kind carries one.
// Kinds with a pose but a nil Pose are sent with the identity transform.
func WriteFrame(w io.Writer, kind stream.Kind, pkt stream.Packet) error {
	var header [frameHeaderSize]byte
	binary.LittleEndian.PutUint64(header[0:8], pkt.Timestamp)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(pkt.Payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write(pkt.Payload); err != nil {
		return err
	}
	if kind.HasPose() {
		pose := stream.Identity()
		if pkt.Pose != nil {
			pose = *pkt.Pose
		}
		var buf [stream.PoseSize]byte
		stream.PutPose(buf[:], pose)
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame reads one packet in the device stream framing.
func ReadFrame(r *bufio.Reader, kind stream.Kind) (stream.Packet, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return stream.Packet{}, err
	}
	size := binary.LittleEndian.Uint32(header[8:12])
	if size > MaxPayload {
		return stream.Packet{}, fmt.Errorf("payload size %d exceeds limit %d", size, MaxPayload)
	}
	pkt := stream.Packet{
		Timestamp: binary.LittleEndian.Uint64(header[0:8]),
		Payload:   make([]byte, size),
	}
	if _, err := io.ReadFull(r, pkt.Payload); err != nil {
		return stream.Packet{}, noEOF(err)
	}
	if kind.HasPose() {
		var buf [stream.PoseSize]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return stream.Packet{}, noEOF(err)
		}
		pose := stream.ReadPose(buf[:])
		pkt.Pose = &pose
	}
	return pkt, nil
}

// noEOF turns a clean EOF inside a frame into ErrUnexpectedEOF.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
