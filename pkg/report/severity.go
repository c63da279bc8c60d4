package report

import (
	"fmt"
	"strings"
)

// Severity is the resolved outcome of a rule or run. Higher is worse.
type Severity int

const (
	SeverityClean Severity = iota
	SeverityWarning
	SeverityCritical
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityClean:
		return "clean"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "clean":
		*s = SeverityClean
	case "warning":
		*s = SeverityWarning
	case "critical":
		*s = SeverityCritical
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// Exit codes.
const (
	ExitClean       = 0
	ExitWarning     = 1
	ExitCritical    = 2
	ExitInterrupted = 130
)

// ExitCode maps a severity to the process exit code.
func (s Severity) ExitCode() int {
	switch s {
	case SeverityCritical:
		return ExitCritical
	case SeverityWarning:
		return ExitWarning
	default:
		return ExitClean
	}
}
