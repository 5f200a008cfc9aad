// Package errors defines the sentinel errors shared by the store, the codecs
// and the build pipeline, plus an AppError wrapper that tags a sentinel with
// the operation that produced it.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrIntegrity       = errors.New("index/data integrity mismatch")
	ErrCapacity        = errors.New("record exceeds format capacity")
	ErrMalformedRecord = errors.New("malformed input record")
	ErrInvalidInput    = errors.New("invalid input")
	ErrStageFailed     = errors.New("pipeline stage failed")
)

// AppError wraps a sentinel with the failing operation and a detail message.
type AppError struct {
	Err     error
	Op      string
	Message string
}

func (e *AppError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, op string, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Op:      op,
		Message: message,
	}
}

func Newf(sentinel error, op string, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Is and As re-export the standard library helpers so callers only need to
// import one errors package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsRecoverable reports whether err only invalidates a single input record.
// Extraction skips such records; every other error aborts the stage.
func IsRecoverable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrMalformedRecord), errors.Is(err, ErrCapacity):
		return true
	default:
		return false
	}
}

// ExitCode maps an error to a process exit status for the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNotFound):
		return 3
	case errors.Is(err, ErrInvalidInput):
		return 2
	case errors.Is(err, ErrIntegrity):
		return 4
	default:
		return 1
	}
}
