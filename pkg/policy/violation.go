package policy

import (
	"cmp"
	"fmt"
	"strconv"
	"time"
)

// ViolationKind separates policy findings from evaluation failures.
type ViolationKind string

// Violation kinds.
const (
	KindPolicy          ViolationKind = "policy"
	KindInformational   ViolationKind = "informational"
	KindEvaluationError ViolationKind = "evaluation-error"
	KindWalkError       ViolationKind = "walk-error"
)

// IsError reports whether the kind stems from a failed evaluation rather than
// from the rule's matching condition.
func (k ViolationKind) IsError() bool {
	return k == KindEvaluationError || k == KindWalkError
}

// Location identifies where a violation was observed. File sources set Path
// and optionally Line and Offset; non-file sources and structured key paths
// use Logical.
type Location struct {
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line,omitempty"`
	Offset  int    `json:"offset,omitempty"`
	Logical string `json:"logical,omitempty"`
}

// String renders the location as path:line or path#logical.
func (l Location) String() string {
	s := l.Path
	if l.Line > 0 {
		s += ":" + strconv.Itoa(l.Line)
	}
	if l.Logical != "" {
		if s != "" {
			s += "#"
		}
		s += l.Logical
	}
	if s == "" {
		return "<unknown>"
	}
	return s
}

// Compare orders locations by path, line, offset and logical path.
func (l Location) Compare(o Location) int {
	return cmp.Or(
		cmp.Compare(l.Path, o.Path),
		cmp.Compare(l.Line, o.Line),
		cmp.Compare(l.Offset, o.Offset),
		cmp.Compare(l.Logical, o.Logical),
	)
}

// Violation is one instance of a rule's condition being met, or unmet for
// assurance types.
type Violation struct {
	RuleID    int           `json:"rule_id"`
	Kind      ViolationKind `json:"kind"`
	Location  Location      `json:"location"`
	Content   string        `json:"content,omitempty"`
	Message   string        `json:"message,omitempty"`
	Trace     string        `json:"trace,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Key identifies the violation for deduplication: rule ID and location.
func (v Violation) Key() string {
	return fmt.Sprintf("%d|%s", v.RuleID, v.Location.String())
}

// Compare orders violations by location, then kind, message and content.
func (v Violation) Compare(o Violation) int {
	return cmp.Or(
		v.Location.Compare(o.Location),
		cmp.Compare(v.Kind, o.Kind),
		cmp.Compare(v.Message, o.Message),
		cmp.Compare(v.Content, o.Content),
	)
}
