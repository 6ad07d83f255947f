package errors

import (
	"errors"
	"fmt"
)

// Custom error types for the file sharing service.
//
// The five sentinel values below are the access controller's DENY reasons.
// They are expected, user-facing outcomes and map to stable HTTP statuses;
// none of them represent a programming defect.

// ErrFileNotFound is returned when a link id is unknown or already purged.
var ErrFileNotFound = errors.New("file not found")

// ErrLinkExpired is returned when the link's time window has passed.
var ErrLinkExpired = errors.New("link expired")

// ErrQuotaExhausted is returned when the download count limit is reached.
var ErrQuotaExhausted = errors.New("download quota exhausted")

// ErrPasswordRequired is returned when a protected link is accessed
// without a credential.
var ErrPasswordRequired = errors.New("password required")

// ErrIncorrectPassword is returned when the supplied password does not match.
var ErrIncorrectPassword = errors.New("incorrect password")

// ErrInvalidTTL is returned when the expiry token is not one of the
// accepted values (10m, 20m, 30m, 1h, permanent).
var ErrInvalidTTL = errors.New("invalid expiry value")

// ErrFileTooLarge is returned by upload intake when the declared size
// exceeds the configured ceiling.
var ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

// ErrFileTypeNotAllowed is returned by upload intake when the extension or
// MIME type is not on the allow-list.
var ErrFileTypeNotAllowed = errors.New("file type not allowed")

// StorageError is returned when an underlying read/write fails. It is the
// only error kind that should also be logged server-side as an operational
// signal.
type StorageError struct {
	Op  string // the operation that failed, e.g. "save object"
	Err error  // the underlying cause
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
