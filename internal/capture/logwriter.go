package capture

import (
	"path/filepath"

	"holocap/internal/recordlog"
	"holocap/internal/stream"
)

type logWriter struct {
	log *recordlog.Writer
}

func newLogWriter(kind stream.Kind, dir string) (*logWriter, error) {
	path := filepath.Join(dir, kind.LogName())
	w, err := recordlog.Create(path, recordlog.KeyTimestamp)
	if err != nil {
		return nil, writeErr("open stream log", path, err)
	}
	return &logWriter{log: w}, nil
}

func (w *logWriter) Write(pkt stream.Packet) error {
	err := w.log.Append(recordlog.Record{
		Key:       pkt.Timestamp,
		Timestamp: pkt.Timestamp,
		Payload:   pkt.Payload,
		Pose:      pkt.Pose,
	})
	if err != nil {
		return writeErr("append record", w.log.Path(), err)
	}
	return nil
}

func (w *logWriter) Close() error {
	syncErr := w.log.Sync()
	if err := w.log.Close(); err != nil {
		return writeErr("close stream log", w.log.Path(), err)
	}
	if syncErr != nil {
		return writeErr("sync stream log", w.log.Path(), syncErr)
	}
	return nil
}
