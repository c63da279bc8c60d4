package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoMatcher indicates no matcher is registered for a rule's type.
	ErrNoMatcher = errors.New("no matcher registered for rule type")

	// ErrCancelled indicates a rule was cancelled before it completed.
	ErrCancelled = errors.New("rule evaluation cancelled")
)

// TimeoutError indicates a rule evaluation exceeded the per-rule timeout.
type TimeoutError struct {
	RuleID  int
	Timeout time.Duration
}

// Error returns the error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("rule %d: evaluation timeout after %v", e.RuleID, e.Timeout)
}

// Is makes errors.Is(err, context.DeadlineExceeded) hold for timeouts.
func (e *TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// EvaluationError wraps a matcher failure that is not a policy finding.
type EvaluationError struct {
	RuleID int
	Type   string
	Cause  error
}

// Error returns the error message.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("rule %d (%s): %v", e.RuleID, e.Type, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *EvaluationError) Unwrap() error {
	return e.Cause
}
