package policy

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// RuleType discriminates which matcher evaluates a rule.
type RuleType string

// Supported rule types.
const (
	TypeScan           RuleType = "scan"
	TypeAssureRegex    RuleType = "assure-regex"
	TypeAssureFiletype RuleType = "assure-filetype"
	TypeAssureAPI      RuleType = "assure-api"
	TypeAssureRego     RuleType = "assure-rego"
	TypeCollect        RuleType = "collect"
	TypeRuntime        RuleType = "runtime"
)

// MatcherTypes lists the types backed directly by a matcher. collect and
// runtime rules delegate to one of these through Subtype.
var MatcherTypes = []RuleType{
	TypeScan,
	TypeAssureRegex,
	TypeAssureFiletype,
	TypeAssureAPI,
	TypeAssureRego,
}

// IsKnown reports whether t is one of the supported rule types.
func (t RuleType) IsKnown() bool {
	switch t {
	case TypeScan, TypeAssureRegex, TypeAssureFiletype, TypeAssureAPI, TypeAssureRego, TypeCollect, TypeRuntime:
		return true
	}
	return false
}

// IsMatcherType reports whether t maps directly to a matcher.
func (t RuleType) IsMatcherType() bool {
	return slices.Contains(MatcherTypes, t)
}

// IsTextPattern reports whether t evaluates regex patterns over file text.
func (t RuleType) IsTextPattern() bool {
	return t == TypeScan || t == TypeAssureRegex
}

// Confidence is informational certainty metadata. It never drives severity.
type Confidence string

// Confidence levels.
const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// AuthMode selects how an assure-api rule authenticates.
type AuthMode string

// Authentication modes for assure-api rules.
const (
	AuthNone  AuthMode = "none"
	AuthBasic AuthMode = "basic"
	AuthToken AuthMode = "token"
)

// EnvironmentAll matches every execution environment.
const EnvironmentAll = "all"

// Rule is a single named check.
type Rule struct {
	ID           int        `yaml:"id" json:"id"`
	Name         string     `yaml:"name" json:"name"`
	Description  string     `yaml:"description" json:"description,omitempty"`
	Solution     string     `yaml:"solution" json:"solution,omitempty"`
	ErrorMessage string     `yaml:"error" json:"error,omitempty"`
	Type         RuleType   `yaml:"type" json:"type"`
	Subtype      RuleType   `yaml:"subtype" json:"subtype,omitempty"` // collect and runtime only
	Environment  string     `yaml:"environment" json:"environment,omitempty"`
	Enforcement  bool       `yaml:"enforcement" json:"enforcement"`
	Fatal        bool       `yaml:"fatal" json:"fatal"`
	Tags         []string   `yaml:"tags" json:"tags,omitempty"`
	Impact       string     `yaml:"impact" json:"impact,omitempty"`
	Confidence   Confidence `yaml:"confidence" json:"confidence,omitempty"`
	Patterns     []string   `yaml:"patterns" json:"patterns,omitempty"`
	FilePattern  string     `yaml:"filepattern" json:"filepattern,omitempty"`
	Schedule     string     `yaml:"schedule" json:"schedule,omitempty"` // observe only

	Structure StructureSpec `yaml:",inline" json:"-"`
	API       APISpec       `yaml:",inline" json:"-"`
	Rego      RegoSpec      `yaml:",inline" json:"-"`

	compiled []*regexp.Regexp
}

// EffectiveType returns the matcher type that evaluates the rule. For collect
// and runtime rules this is the Subtype, defaulting to scan.
func (r *Rule) EffectiveType() RuleType {
	if r.Type != TypeCollect && r.Type != TypeRuntime {
		return r.Type
	}
	if r.Subtype == "" {
		return TypeScan
	}
	return r.Subtype
}

// ScheduleOr returns the rule's observe schedule, or def when it has none.
func (r *Rule) ScheduleOr(def string) string {
	if s := strings.TrimSpace(r.Schedule); s != "" {
		return s
	}
	return def
}

// IsInformational reports whether the rule's findings never affect severity.
func (r *Rule) IsInformational() bool {
	return r.Type == TypeCollect
}

// MatchesEnvironment reports whether the rule applies under the current
// environment tag. An empty or "all" rule environment applies everywhere; a
// comma separated list applies to each listed tag. Matching is case-insensitive.
func (r *Rule) MatchesEnvironment(current string) bool {
	env := strings.TrimSpace(r.Environment)
	if env == "" || strings.EqualFold(env, EnvironmentAll) {
		return true
	}
	current = strings.TrimSpace(current)
	if current == "" {
		return false
	}
	for _, tag := range strings.Split(env, ",") {
		if strings.EqualFold(strings.TrimSpace(tag), current) {
			return true
		}
	}
	return false
}

// HasAnyTag reports whether the rule carries at least one of tags.
// An empty filter matches every rule.
func (r *Rule) HasAnyTag(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		if r.hasTag(want) {
			return true
		}
	}
	return false
}

// HasAllTags reports whether the rule carries every one of tags.
func (r *Rule) HasAllTags(tags []string) bool {
	for _, want := range tags {
		if !r.hasTag(want) {
			return false
		}
	}
	return true
}

func (r *Rule) hasTag(want string) bool {
	want = strings.TrimSpace(want)
	for _, tag := range r.Tags {
		if strings.EqualFold(strings.TrimSpace(tag), want) {
			return true
		}
	}
	return false
}

// PatternFlags are applied to every rule pattern. Matching ignores case and
// ^ and $ anchor at line boundaries wherever a pattern is matched.
const PatternFlags = "(?mi)"

// CompilePatterns compiles Patterns and caches the result on the rule.
// The first invalid pattern is returned as an error naming its index.
func (r *Rule) CompilePatterns() error {
	compiled := make([]*regexp.Regexp, 0, len(r.Patterns))
	for i, p := range r.Patterns {
		re, err := regexp.Compile(PatternFlags + p)
		if err != nil {
			return fmt.Errorf("pattern %d %q: %w", i, p, err)
		}
		compiled = append(compiled, re)
	}
	r.compiled = compiled
	return nil
}

// Regexps returns the compiled patterns. Rules that did not pass through the
// loader are compiled on demand without caching.
func (r *Rule) Regexps() ([]*regexp.Regexp, error) {
	if r.compiled != nil || len(r.Patterns) == 0 {
		return r.compiled, nil
	}
	cp := *r
	if err := cp.CompilePatterns(); err != nil {
		return nil, err
	}
	return cp.compiled, nil
}

// String returns "#<id> <name>".
func (r *Rule) String() string {
	return fmt.Sprintf("#%d %s", r.ID, r.Name)
}
