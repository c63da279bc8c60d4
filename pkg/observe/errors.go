package observe

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull indicates the webhook queue dropped an event.
	ErrQueueFull = errors.New("webhook queue full")

	// ErrSinkClosed indicates an event was enqueued after Close.
	ErrSinkClosed = errors.New("webhook sink closed")

	// ErrUnknownDriver indicates an unsupported state driver.
	ErrUnknownDriver = errors.New("unknown state driver")
)

// StateError wraps a state storage failure.
type StateError struct {
	Backend string
	Op      string
	Err     error
}

// Error returns the error message.
func (e *StateError) Error() string {
	return fmt.Sprintf("%s state %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StateError) Unwrap() error {
	return e.Err
}

// DeliveryError reports a failed webhook delivery attempt.
type DeliveryError struct {
	URL    string
	Status int
	Err    error
}

// Error returns the error message.
func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("webhook %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("webhook %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}
