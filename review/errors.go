package review

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when no identity was resolved for the caller.
	ErrUnauthorized = errors.New("review: unauthorized")

	// ErrInvalidInput is returned when id or message is missing or is not a
	// string.
	ErrInvalidInput = errors.New("review: invalid input")

	// ErrStorage is matched by every *StorageError.
	ErrStorage = errors.New("review: storage failure")

	// ErrCancelled is returned when the caller's context ended before the
	// update finished.
	ErrCancelled = errors.New("review: cancelled")
)

// StorageError wraps a failure reported by the store. The cause is kept for
// logs only; callers outside the process must see ErrStorage alone.
type StorageError struct {
	Cause error
}

func (e *StorageError) Error() string        { return fmt.Sprintf("%s: %v", ErrStorage, e.Cause) }
func (e *StorageError) Is(target error) bool { return target == ErrStorage }
func (e *StorageError) Unwrap() error        { return e.Cause }
