package services

import (
	"errors"
	"strings"
)

var (
	ErrUnavailable   = errors.New("stream unavailable")
	ErrMalformed     = errors.New("malformed packet")
	ErrWrite         = errors.New("write failure")
	ErrMissingInput  = errors.New("missing input")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// ErrorKind is the short classification persisted alongside failures.
type ErrorKind string

const (
	KindUnavailable   ErrorKind = "unavailable"
	KindMalformed     ErrorKind = "malformed"
	KindWrite         ErrorKind = "write"
	KindMissingInput  ErrorKind = "missing_input"
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindTimeout       ErrorKind = "timeout"
	KindTransient     ErrorKind = "transient"
)

var markerKinds = []struct {
	marker error
	kind   ErrorKind
}{
	{ErrUnavailable, KindUnavailable},
	{ErrMalformed, KindMalformed},
	{ErrWrite, KindWrite},
	{ErrMissingInput, KindMissingInput},
	{ErrValidation, KindValidation},
	{ErrConfiguration, KindConfiguration},
	{ErrTimeout, KindTimeout},
	{ErrTransient, KindTransient},
}

// ServiceError carries the marker, the failing operation and an optional
// operator hint. It unwraps to both the marker and the cause.
type ServiceError struct {
	Marker    error
	Component string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Component, e.Operation, e.Message)
	var b strings.Builder
	if e.Marker != nil {
		b.WriteString(e.Marker.Error())
		b.WriteString(": ")
	}
	b.WriteString(detail)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *ServiceError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// ErrorKind satisfies classifiers that only need a string kind.
func (e *ServiceError) ErrorKind() string {
	return string(kindOf(e.Marker))
}

// Wrap builds an error that includes component context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &ServiceError{
		Marker:    marker,
		Component: strings.TrimSpace(component),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// WithHint attaches an operator hint to a service error. Other errors are
// returned unchanged.
func WithHint(err error, hint string) error {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		svcErr.Hint = strings.TrimSpace(hint)
	}
	return err
}

// ErrorDetails is the flattened view of a failure used for logs and
// persisted error messages.
type ErrorDetails struct {
	Kind      ErrorKind
	Component string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

// Details extracts classification data from err.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return ErrorDetails{
			Kind:      kindOf(svcErr.Marker),
			Component: svcErr.Component,
			Operation: svcErr.Operation,
			Message:   svcErr.Message,
			Hint:      svcErr.Hint,
			Cause:     svcErr.Cause,
		}
	}
	return ErrorDetails{Kind: Kind(err), Message: err.Error()}
}

// Kind classifies err by the first marker it wraps.
func Kind(err error) ErrorKind {
	for _, mk := range markerKinds {
		if errors.Is(err, mk.marker) {
			return mk.kind
		}
	}
	return KindTransient
}

// IsStreamLocal reports whether err should be confined to the stream that
// raised it instead of aborting the session.
func IsStreamLocal(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrWrite) || errors.Is(err, ErrTransient)
}

func kindOf(marker error) ErrorKind {
	if marker == nil {
		return KindTransient
	}
	for _, mk := range markerKinds {
		if marker == mk.marker {
			return mk.kind
		}
	}
	return KindTransient
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component != "" {
		parts = append(parts, component)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
