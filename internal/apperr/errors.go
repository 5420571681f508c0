package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest         = errors.New("bad request")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrSourceUnavailable  = errors.New("unread source unavailable")
)

// ValidationError is returned for malformed input. It is rejected
// synchronously and never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrBadRequest }

// AttachmentRejected reports a single attachment descriptor that violated
// the attachment policy. Rule names the violated constraint.
type AttachmentRejected struct {
	Filename string
	Rule     string
}

func (e *AttachmentRejected) Error() string {
	return fmt.Sprintf("attachment %q rejected: %s", e.Filename, e.Rule)
}

func (e *AttachmentRejected) Unwrap() error { return ErrBadRequest }

// Unavailable wraps a storage-layer failure so handlers can map it to 503.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrServiceUnavailable, err)
}
