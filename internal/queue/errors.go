package queue

import (
	"errors"

	"holocap/internal/services"
)

// ErrorClassifier allows errors to declare their classification for status mapping.
type ErrorClassifier interface {
	ErrorKind() string
}

// FailureStatus maps a sync error to the status the workflow should persist.
//
// Missing raw input cannot be fixed by retrying, so those recordings are
// marked StatusSkipped. Everything else is StatusFailed and eligible for
// RetryFailed.
func FailureStatus(err error) Status {
	if errors.Is(err, services.ErrMissingInput) {
		return StatusSkipped
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) && classifier.ErrorKind() == string(services.KindMissingInput) {
		return StatusSkipped
	}
	return StatusFailed
}
