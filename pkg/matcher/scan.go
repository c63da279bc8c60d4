package matcher

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"

	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/walker"
)

// ScanMatcher flags every pattern match. Patterns run over the whole artifact
// so anchors and multi-line expressions behave as they do for assure-regex.
type ScanMatcher struct {
	base
}

// NewScanMatcher creates a scan matcher.
func NewScanMatcher(opts Options) *ScanMatcher {
	opts.setDefaults()
	return &ScanMatcher{base{opts}}
}

// Evaluate implements Matcher.
func (m *ScanMatcher) Evaluate(ctx context.Context, rule *policy.Rule, src Source) (Result, error) {
	patterns, filter, err := textInputs(rule)
	if err != nil {
		return Result{}, err
	}

	return forEachArtifact(ctx, src, filter, m.opts.ArtifactConcurrency, func(ctx context.Context, a walker.Artifact) ([]policy.Violation, error) {
		return m.scanArtifact(ctx, rule, patterns, a), nil
	})
}

func (m *ScanMatcher) scanArtifact(ctx context.Context, rule *policy.Rule, patterns []*regexp.Regexp, a walker.Artifact) []policy.Violation {
	content, err := a.ReadAll()
	if err != nil {
		return []policy.Violation{m.errorViolation(rule, policy.Location{Path: a.Path}, &MatchError{RuleID: rule.ID, Path: a.Path, Op: "read", Err: err})}
	}

	lines := newLineIndex(content)
	var violations []policy.Violation
	for i, re := range patterns {
		if ctx.Err() != nil {
			break
		}
		for _, loc := range re.FindAllIndex(content, -1) {
			violations = append(violations, m.violation(rule, policy.KindPolicy,
				policy.Location{Path: a.Path, Line: lines.line(loc[0]), Offset: loc[0]},
				string(content[loc[0]:loc[1]]),
				ruleMessage(rule, fmt.Sprintf("pattern %q matched", rule.Patterns[i])),
			))
		}
	}
	slices.SortStableFunc(violations, func(x, y policy.Violation) int {
		return cmp.Compare(x.Location.Offset, y.Location.Offset)
	})
	return violations
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex []int

func newLineIndex(content []byte) lineIndex {
	var idx lineIndex
	for i, b := range content {
		if b == '\n' {
			idx = append(idx, i)
		}
	}
	return idx
}

// line returns the line holding offset. A newline belongs to the line it ends.
func (idx lineIndex) line(offset int) int {
	n, _ := slices.BinarySearch(idx, offset)
	return n + 1
}

// textInputs returns the compiled patterns and the artifact filter shared by
// the text-pattern matchers.
func textInputs(rule *policy.Rule) ([]*regexp.Regexp, walker.Filter, error) {
	patterns, err := rule.Regexps()
	if err != nil {
		return nil, walker.Filter{}, &MatchError{RuleID: rule.ID, Op: "compile", Err: err}
	}
	if len(patterns) == 0 {
		return nil, walker.Filter{}, &MatchError{RuleID: rule.ID, Op: "compile", Err: fmt.Errorf("no patterns")}
	}
	filter, err := walker.NewFilter(rule.FilePattern, true)
	if err != nil {
		return nil, walker.Filter{}, &MatchError{RuleID: rule.ID, Op: "filepattern", Err: err}
	}
	return patterns, filter, nil
}
