package matcher

import (
	"context"
	"fmt"
	"regexp"

	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/walker"
)

// AssureMatcher flags every artifact in which no pattern matches. When the
// filter selects no artifact at all a single violation is recorded at the
// target root.
type AssureMatcher struct {
	base
}

// NewAssureMatcher creates an assure-regex matcher.
func NewAssureMatcher(opts Options) *AssureMatcher {
	opts.setDefaults()
	return &AssureMatcher{base{opts}}
}

// Evaluate implements Matcher.
func (m *AssureMatcher) Evaluate(ctx context.Context, rule *policy.Rule, src Source) (Result, error) {
	patterns, filter, err := textInputs(rule)
	if err != nil {
		return Result{}, err
	}

	res, err := forEachArtifact(ctx, src, filter, m.opts.ArtifactConcurrency, func(_ context.Context, a walker.Artifact) ([]policy.Violation, error) {
		return m.assureArtifact(rule, patterns, a), nil
	})
	if err != nil {
		return Result{}, err
	}

	if res.Artifacts == 0 {
		res.Violations = append(res.Violations, m.violation(rule, policy.KindPolicy,
			policy.Location{Path: RootPath},
			"",
			ruleMessage(rule, "no artifact matched the rule's file pattern"),
		))
	}
	return res, nil
}

func (m *AssureMatcher) assureArtifact(rule *policy.Rule, patterns []*regexp.Regexp, a walker.Artifact) []policy.Violation {
	content, err := a.ReadAll()
	if err != nil {
		return []policy.Violation{m.errorViolation(rule, policy.Location{Path: a.Path}, &MatchError{RuleID: rule.ID, Path: a.Path, Op: "read", Err: err})}
	}
	for _, re := range patterns {
		if re.Match(content) {
			return nil
		}
	}
	return []policy.Violation{m.violation(rule, policy.KindPolicy,
		policy.Location{Path: a.Path},
		"",
		ruleMessage(rule, fmt.Sprintf("none of %d required pattern(s) found", len(patterns))),
	)}
}

// RootPath locates violations that concern the target as a whole.
const RootPath = "."
