package recordlog_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"holocap/internal/recordlog"
	"holocap/internal/services"
	"holocap/internal/stream"
)

func TestWriterAppendsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imu_accel.hlog")
	w, err := recordlog.Create(path, recordlog.KeyTimestamp)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	pose := stream.Identity()
	inputs := []recordlog.Record{
		{Key: 10, Timestamp: 10, Payload: []byte("a")},
		{Key: 20, Timestamp: 20, Payload: []byte("bb"), Pose: &pose},
		{Key: 30, Timestamp: 30},
	}
	for _, rec := range inputs {
		if err := w.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if w.Count() != 3 {
		t.Fatalf("Count = %d", w.Count())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close should be a no-op: %v", err)
	}
	if err := w.Append(inputs[0]); !errors.Is(err, services.ErrWrite) {
		t.Fatalf("expected ErrWrite after close, got %v", err)
	}

	mode, records, err := recordlog.ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if mode != recordlog.KeyTimestamp {
		t.Fatalf("mode = %s", mode)
	}
	if len(records) != len(inputs) {
		t.Fatalf("got %d records", len(records))
	}
	for i, rec := range records {
		if rec.Key != inputs[i].Key || rec.Timestamp != inputs[i].Timestamp || !bytes.Equal(rec.Payload, inputs[i].Payload) {
			t.Fatalf("record %d = %+v", i, rec)
		}
		if (rec.Pose == nil) != (inputs[i].Pose == nil) {
			t.Fatalf("record %d pose mismatch", i)
		}
	}
}

func TestReadAllReportsTruncation(t *testing.T) {
	var buf bytes.Buffer
	records := []recordlog.Record{
		{Key: 0, Timestamp: 100, Payload: []byte("first")},
		{Key: 1, Timestamp: 200, Payload: []byte("second")},
	}
	if err := recordlog.Encode(&buf, recordlog.KeyOrdinal, records); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data := buf.Bytes()
	path := filepath.Join(t.TempDir(), "cut.hlog")
	if err := os.WriteFile(path, data[:len(data)-3], 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	mode, got, err := recordlog.ReadAll(path)
	if !errors.Is(err, recordlog.ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if mode != recordlog.KeyOrdinal {
		t.Fatalf("mode = %s", mode)
	}
	if len(got) != 1 || got[0].Timestamp != 100 {
		t.Fatalf("expected first record to survive, got %+v", got)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, _, err := recordlog.Decode([]byte("NOTALOG!\x01"))
	if !errors.Is(err, services.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	_, _, err = recordlog.Decode([]byte(recordlog.Magic + "\x09"))
	if !errors.Is(err, services.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for unknown mode, got %v", err)
	}
}

func TestEncodeMatchesWriterOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pose.hlog")
	records := []recordlog.Record{{Key: 5, Timestamp: 5, Payload: []byte{9}}}
	w, err := recordlog.Create(path, recordlog.KeyTimestamp)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, rec := range records {
		if err := w.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	w.Close()

	var buf bytes.Buffer
	if err := recordlog.Encode(&buf, recordlog.KeyTimestamp, records); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(onDisk, buf.Bytes()) {
		t.Fatal("writer and Encode produced different bytes")
	}
}
