package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means no caller identity accompanied the request.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound covers a document that is absent, soft-deleted, or
	// owned by someone else. The three are deliberately indistinguishable
	// so the API never confirms the existence of another user's records.
	ErrNotFound = errors.New("document not found")

	// ErrUserNotFound means a share target email resolved to no account.
	ErrUserNotFound = errors.New("user not found")
)

// ValidationError reports malformed or missing input. Always the
// caller's fault and recoverable by correcting the request.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StorageError wraps a blob storage failure. Fatal during create;
// logged and swallowed on best-effort cleanup paths.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }
