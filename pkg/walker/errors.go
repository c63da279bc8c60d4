package walker

import (
	"errors"
	"fmt"
)

var (
	// ErrTooLarge marks a file skipped for exceeding the size limit.
	ErrTooLarge = errors.New("file exceeds size limit")

	// ErrBinary marks a file skipped because it is not text.
	ErrBinary = errors.New("binary file")
)

// WalkError reports an artifact that could not be visited.
type WalkError struct {
	// Path is the slash-separated path relative to the root.
	Path string

	// Op is the failing operation (stat, readdir, open, filter).
	Op string

	Err error
}

// Error implements the error interface.
func (e *WalkError) Error() string {
	return fmt.Sprintf("walk %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *WalkError) Unwrap() error {
	return e.Err
}

// Filtered reports whether the artifact was skipped by a size or content
// filter rather than an access failure.
func (e *WalkError) Filtered() bool {
	return errors.Is(e.Err, ErrTooLarge) || errors.Is(e.Err, ErrBinary)
}

// IsAccessError reports whether err is a WalkError caused by an access
// failure such as permission denied.
func IsAccessError(err error) bool {
	var we *WalkError
	return errors.As(err, &we) && !we.Filtered()
}
