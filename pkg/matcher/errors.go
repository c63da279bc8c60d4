package matcher

import (
	"errors"
	"fmt"
)

var (
	// ErrPackageMismatch indicates a Rego query outside the module's package.
	ErrPackageMismatch = errors.New("query package does not match module package")

	// ErrNoStructure indicates an assure-filetype rule without exactly one
	// structured payload.
	ErrNoStructure = errors.New("rule has no single structured payload")

	// ErrUnsupportedFormat indicates a structured format with no decoder.
	ErrUnsupportedFormat = errors.New("unsupported structured format")

	// ErrCredentialMissing indicates an unset INTERCEPT_<name> variable.
	ErrCredentialMissing = errors.New("credential not set")

	// ErrUnexpectedStatus indicates a non-2xx API response.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// MatchError reports a failure to evaluate a rule or one of its artifacts:
// an uncompilable pattern or schema, unparsable structured data or a
// policy-language evaluation failure.
type MatchError struct {
	RuleID int
	Path   string
	Op     string
	Err    error
}

// Error implements the error interface.
func (e *MatchError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("rule %d: %s %s: %v", e.RuleID, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("rule %d: %s: %v", e.RuleID, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *MatchError) Unwrap() error {
	return e.Err
}

// NetworkError reports an outbound request that failed after retries.
type NetworkError struct {
	Method   string
	Endpoint string
	Status   int
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d after %d attempt(s): %v", e.Method, e.Endpoint, e.Status, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s %s: failed after %d attempt(s): %v", e.Method, e.Endpoint, e.Attempts, e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}
