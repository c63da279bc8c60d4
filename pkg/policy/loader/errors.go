package loader

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is matched by every *ValidationError via errors.Is.
var ErrValidation = errors.New("policy validation failed")

// LoadError represents a failure to read policy bytes.
type LoadError struct {
	// Path is the file or source that failed to load
	Path string

	// Message describes the error
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load policy %q: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load policy %q: %s", e.Path, e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// ParseError represents malformed YAML.
type ParseError struct {
	Path  string
	Line  int
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %q at line %d: %v", e.Path, e.Line, e.Cause)
	}
	return fmt.Sprintf("parse error in %q: %v", e.Path, e.Cause)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// IssueKind names the invariant an Issue violates.
type IssueKind string

// Issue kinds.
const (
	IssueDuplicateID   IssueKind = "duplicate-id"
	IssueMissingField  IssueKind = "missing-field"
	IssueInvalidRegex  IssueKind = "invalid-regex"
	IssueUnknownType   IssueKind = "unknown-type"
	IssueInvalidRuleID IssueKind = "invalid-id"
	IssueInvalidCron   IssueKind = "invalid-schedule"
)

// Issue is one violated policy invariant.
type Issue struct {
	RuleID int
	Index  int // position of the rule in the document
	Kind   IssueKind
	Field  string
	Detail string
}

// String renders the issue for CLI output.
func (i Issue) String() string {
	s := fmt.Sprintf("rule #%d (index %d): %s", i.RuleID, i.Index, i.Kind)
	if i.Field != "" {
		s += " " + i.Field
	}
	if i.Detail != "" {
		s += ": " + i.Detail
	}
	return s
}

// ValidationError aggregates every invariant violated by a document. A
// document with any issue is rejected as a whole.
type ValidationError struct {
	Path   string
	Issues []Issue
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("invalid policy %q: %s", e.Path, e.Issues[0])
	}
	lines := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		lines = append(lines, "  - "+i.String())
	}
	return fmt.Sprintf("invalid policy %q: %d issues:\n%s", e.Path, len(e.Issues), strings.Join(lines, "\n"))
}

// Is allows errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Has reports whether an issue of kind was recorded.
func (e *ValidationError) Has(kind IssueKind) bool {
	for _, i := range e.Issues {
		if i.Kind == kind {
			return true
		}
	}
	return false
}
