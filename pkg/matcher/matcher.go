package matcher

import (
	"cmp"
	"context"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/xfhg/intercept/pkg/config"
	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/walker"
)

// Source yields the artifacts a rule is evaluated against.
type Source interface {
	Root() string
	Walk(ctx context.Context, filter walker.Filter) iter.Seq2[walker.Artifact, error]
}

// Matcher evaluates one rule against a source.
type Matcher interface {
	Evaluate(ctx context.Context, rule *policy.Rule, src Source) (Result, error)
}

// Result is the raw outcome of a matcher run.
type Result struct {
	Violations []policy.Violation

	// Skipped lists artifacts the walk could not visit or filtered out.
	Skipped []*walker.WalkError

	// Artifacts is the number of artifacts evaluated.
	Artifacts int
}

func (r *Result) sort() {
	slices.SortStableFunc(r.Violations, policy.Violation.Compare)
	slices.SortStableFunc(r.Skipped, func(a, b *walker.WalkError) int {
		return cmp.Compare(a.Path, b.Path)
	})
}

// Options configures the matchers built by NewRegistry.
type Options struct {
	// ArtifactConcurrency caps parallel artifact evaluation within a rule.
	ArtifactConcurrency int

	// API configures outbound requests for assure-api rules.
	API config.APIConfig

	// PolicyDir resolves relative rego_policy_file and rego_policy_data paths.
	PolicyDir string

	// PatchDir receives patched copies of structured artifacts.
	PatchDir string

	// Now stamps violations. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

func (o *Options) setDefaults() {
	if o.ArtifactConcurrency <= 0 {
		o.ArtifactConcurrency = config.DefaultArtifactConcurrency
	}
	if o.API.Timeout <= 0 {
		o.API.Timeout = config.DefaultAPITimeout
	}
	if o.API.MaxBodyBytes <= 0 {
		o.API.MaxBodyBytes = config.DefaultAPIMaxBodyBytes
	}
	if o.API.CredentialPrefix == "" {
		o.API.CredentialPrefix = config.DefaultAPICredentialPrefix
	}
	if o.PatchDir == "" {
		o.PatchDir = config.DefaultPatchDir
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default().With("component", "matcher")
	}
}

// Registry maps rule types to matchers.
type Registry struct {
	matchers map[policy.RuleType]Matcher
}

// NewRegistry returns a registry populated with every built-in matcher.
func NewRegistry(opts Options) *Registry {
	opts.setDefaults()
	return &Registry{
		matchers: map[policy.RuleType]Matcher{
			policy.TypeScan:           NewScanMatcher(opts),
			policy.TypeAssureRegex:    NewAssureMatcher(opts),
			policy.TypeAssureFiletype: NewStructuredMatcher(opts),
			policy.TypeAssureAPI:      NewAPIMatcher(opts),
			policy.TypeAssureRego:     NewRegoMatcher(opts),
		},
	}
}

// Register installs or replaces the matcher for t.
func (r *Registry) Register(t policy.RuleType, m Matcher) {
	r.matchers[t] = m
}

// Lookup returns the matcher for rule's effective type.
func (r *Registry) Lookup(rule *policy.Rule) (Matcher, bool) {
	m, ok := r.matchers[rule.EffectiveType()]
	return m, ok
}

// base carries what every matcher needs to build violations.
type base struct {
	opts Options
}

func (b base) violation(rule *policy.Rule, kind policy.ViolationKind, loc policy.Location, content, message string) policy.Violation {
	return policy.Violation{
		RuleID:    rule.ID,
		Kind:      kind,
		Location:  loc,
		Content:   content,
		Message:   message,
		Timestamp: b.opts.Now().UTC(),
	}
}

// errorViolation records an artifact-scoped failure.
func (b base) errorViolation(rule *policy.Rule, loc policy.Location, err error) policy.Violation {
	return b.violation(rule, policy.KindEvaluationError, loc, "", err.Error())
}

func ruleMessage(rule *policy.Rule, fallback string) string {
	if rule.ErrorMessage != "" {
		return rule.ErrorMessage
	}
	return fallback
}
