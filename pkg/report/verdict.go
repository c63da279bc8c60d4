package report

import (
	"slices"
	"time"

	"github.com/xfhg/intercept/pkg/policy"
)

// Status says how a rule's evaluation ended.
type Status string

const (
	StatusClean      Status = "clean"
	StatusViolations Status = "violations"
	StatusError      Status = "error"
	StatusSkipped    Status = "skipped"
	StatusExcepted   Status = "excepted"
	StatusCancelled  Status = "cancelled"
)

// Verdict is the resolved result of one rule in one run.
type Verdict struct {
	RuleID      int               `json:"rule_id"`
	RuleName    string            `json:"rule_name"`
	Type        policy.RuleType   `json:"type"`
	Severity    Severity          `json:"severity"`
	Status      Status            `json:"status"`
	Confidence  policy.Confidence `json:"confidence,omitempty"`
	Enforcement bool              `json:"enforcement"`
	Fatal       bool              `json:"fatal"`

	// Reason explains skipped, excepted and cancelled verdicts.
	Reason string `json:"reason,omitempty"`

	Violations []policy.Violation `json:"violations"`

	// Skipped lists artifact paths the walk skipped or could not read.
	Skipped []string `json:"skipped,omitempty"`

	Artifacts int           `json:"artifacts"`
	Duration  time.Duration `json:"duration_ns"`
}

// NewVerdict returns a verdict for rule with no outcome yet.
func NewVerdict(rule *policy.Rule) Verdict {
	return Verdict{
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		Type:        rule.Type,
		Confidence:  rule.Confidence,
		Enforcement: rule.Enforcement,
		Fatal:       rule.Fatal,
		Status:      StatusClean,
		Violations:  []policy.Violation{},
	}
}

// Count returns the number of violations of kind.
func (v Verdict) Count(kind policy.ViolationKind) int {
	n := 0
	for _, x := range v.Violations {
		if x.Kind == kind {
			n++
		}
	}
	return n
}

// CountByKind returns violation counts keyed by kind.
func (v Verdict) CountByKind() map[string]int {
	out := make(map[string]int)
	for _, x := range v.Violations {
		out[string(x.Kind)]++
	}
	return out
}

// HasErrors reports whether any violation is an evaluation or walk error.
func (v Verdict) HasErrors() bool {
	return slices.ContainsFunc(v.Violations, func(x policy.Violation) bool { return x.Kind.IsError() })
}

func (v *Verdict) normalize() {
	if v.Violations == nil {
		v.Violations = []policy.Violation{}
	}
	slices.SortStableFunc(v.Violations, policy.Violation.Compare)
	slices.Sort(v.Skipped)
}
