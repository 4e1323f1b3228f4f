package stage

import (
	"os"
	"strings"

	"holocap/internal/queue"
	"holocap/internal/services"
)

// RequireRecordingDir checks that the recording's directory is present.
// On failure it returns a services.ErrMissingInput suitable for Prepare,
// which the workflow maps to a skipped recording.
func RequireRecordingDir(rec *queue.Recording) error {
	if rec == nil || strings.TrimSpace(rec.Path) == "" {
		return services.Wrap(services.ErrValidation, "stage", "resolve recording",
			"recording has no directory", nil)
	}
	info, err := os.Stat(rec.Path)
	if err != nil {
		return services.Wrap(services.ErrMissingInput, "stage", "resolve recording",
			"Recording directory missing; it may have been moved or deleted", err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrMissingInput, "stage", "resolve recording",
			"Recording path is not a directory", nil)
	}
	return nil
}
