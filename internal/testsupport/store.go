package testsupport

import (
	"path/filepath"
	"testing"

	"holocap/internal/config"
	"holocap/internal/queue"
)

// MustOpenStore opens the catalogue under cfg's log dir and closes it when
// the test ends.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open catalogue %s: %v", filepath.Join(cfg.Paths.LogDir, queue.DatabaseFile), err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// NewRecording catalogues name at <data_dir>/<name> with the configured
// streams. The directory itself is not created.
func NewRecording(t testing.TB, store *queue.Store, cfg *config.Config, name string, status queue.Status) *queue.Recording {
	t.Helper()
	rec, err := store.NewRecording(t.Context(), name, cfg.RecordingDir(name), status, cfg.Capture.Streams)
	if err != nil {
		t.Fatalf("catalogue %s as %s: %v", name, status, err)
	}
	return rec
}
