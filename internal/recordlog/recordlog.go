package recordlog

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"holocap/internal/services"
	"holocap/internal/stream"
)

// Magic opens every record log file.
const Magic = "HCAPLOG1"

// Ext is the file extension used for record logs.
const Ext = ".hlog"

// KeyMode describes what a record's key means.
type KeyMode uint8

const (
	// KeyTimestamp keys raw capture logs by device timestamp.
	KeyTimestamp KeyMode = 1
	// KeyOrdinal keys synchronized logs by base-stream frame ordinal.
	KeyOrdinal KeyMode = 2
)

func (m KeyMode) String() string {
	switch m {
	case KeyTimestamp:
		return "timestamp"
	case KeyOrdinal:
		return "ordinal"
	default:
		return fmt.Sprintf("keymode(%d)", uint8(m))
	}
}

// ErrTruncated reports a log whose final record is incomplete, typically
// after a crash mid-write. Records before it are still returned.
var ErrTruncated = errors.New("record log truncated")

const (
	headerSize       = len(Magic) + 1
	recordHeaderSize = 8 + 8 + 4 + 1
	flagPose         = 1 << 0
)

// Record is one entry in a log.
type Record struct {
	Key       uint64
	Timestamp uint64
	Payload   []byte
	Pose      *stream.Pose
}

// Writer appends records to a log file. It is safe for use by one goroutine
// at a time; Close is idempotent.
type Writer struct {
	path string
	mode KeyMode

	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	count  int
	closed bool
}

// Create truncates or creates path and writes the header.
func Create(path string, mode KeyMode) (*Writer, error) {
	if mode != KeyTimestamp && mode != KeyOrdinal {
		return nil, fmt.Errorf("record log: invalid key mode %d", mode)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, services.Wrap(services.ErrWrite, "recordlog", "create", path, err)
	}
	w := &Writer{path: path, mode: mode, file: file, buf: bufio.NewWriterSize(file, 64*1024)}
	header := make([]byte, headerSize)
	copy(header, Magic)
	header[len(Magic)] = byte(mode)
	if _, err := w.buf.Write(header); err != nil {
		file.Close()
		return nil, services.Wrap(services.ErrWrite, "recordlog", "write header", path, err)
	}
	return w, nil
}

// Path returns the file backing the writer.
func (w *Writer) Path() string { return w.path }

// Count returns the number of records appended so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Append writes one record.
func (w *Writer) Append(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return services.Wrap(services.ErrWrite, "recordlog", "append", "writer closed", nil)
	}
	if err := writeRecord(w.buf, rec); err != nil {
		return services.Wrap(services.ErrWrite, "recordlog", "append", w.path, err)
	}
	w.count++
	return nil
}

// Sync flushes buffered records and fsyncs the file.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		return services.Wrap(services.ErrWrite, "recordlog", "flush", w.path, err)
	}
	if err := w.file.Sync(); err != nil {
		return services.Wrap(services.ErrWrite, "recordlog", "sync", w.path, err)
	}
	return nil
}

// Close flushes and closes the file. Subsequent calls return nil.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return services.Wrap(services.ErrWrite, "recordlog", "flush", w.path, flushErr)
	}
	if closeErr != nil {
		return services.Wrap(services.ErrWrite, "recordlog", "close", w.path, closeErr)
	}
	return nil
}

// ReadAll loads every record in path in write order. When the final record is
// incomplete the complete records are returned together with ErrTruncated.
func ReadAll(path string) (KeyMode, []Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, err
	}
	return Decode(data)
}

// Decode parses an in-memory log image.
func Decode(data []byte) (KeyMode, []Record, error) {
	if len(data) < headerSize || !bytes.Equal(data[:len(Magic)], []byte(Magic)) {
		return 0, nil, services.Wrap(services.ErrMalformed, "recordlog", "read header", "missing "+Magic+" magic", nil)
	}
	mode := KeyMode(data[len(Magic)])
	if mode != KeyTimestamp && mode != KeyOrdinal {
		return 0, nil, services.Wrap(services.ErrMalformed, "recordlog", "read header", fmt.Sprintf("unknown key mode %d", mode), nil)
	}
	var records []Record
	rest := data[headerSize:]
	for len(rest) > 0 {
		if len(rest) < recordHeaderSize {
			return mode, records, ErrTruncated
		}
		n := int(binary.LittleEndian.Uint32(rest[16:20]))
		flags := rest[20]
		size := recordHeaderSize + n
		if flags&flagPose != 0 {
			size += stream.PoseSize
		}
		if len(rest) < size {
			return mode, records, ErrTruncated
		}
		rec := Record{
			Key:       binary.LittleEndian.Uint64(rest[0:8]),
			Timestamp: binary.LittleEndian.Uint64(rest[8:16]),
			Payload:   rest[recordHeaderSize : recordHeaderSize+n],
		}
		if flags&flagPose != 0 {
			pose := stream.ReadPose(rest[recordHeaderSize+n:])
			rec.Pose = &pose
		}
		records = append(records, rec)
		rest = rest[size:]
	}
	return mode, records, nil
}

// Encode renders records into a complete log image. It is used to build
// outputs that are later written atomically.
func Encode(w io.Writer, mode KeyMode, records []Record) error {
	header := make([]byte, headerSize)
	copy(header, Magic)
	header[len(Magic)] = byte(mode)
	if _, err := w.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writeRecord(w, rec); err != nil {
			return err
		}
	}
	return nil
}

func writeRecord(w io.Writer, rec Record) error {
	var header [recordHeaderSize]byte
	binary.LittleEndian.PutUint64(header[0:8], rec.Key)
	binary.LittleEndian.PutUint64(header[8:16], rec.Timestamp)
	binary.LittleEndian.PutUint32(header[16:20], uint32(len(rec.Payload)))
	if rec.Pose != nil {
		header[20] = flagPose
	}
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write(rec.Payload); err != nil {
		return err
	}
	if rec.Pose != nil {
		var pose [stream.PoseSize]byte
		stream.PutPose(pose[:], *rec.Pose)
		if _, err := w.Write(pose[:]); err != nil {
			return err
		}
	}
	return nil
}
