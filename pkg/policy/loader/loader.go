package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/xfhg/intercept/pkg/policy"
)

// DefaultMaxFileSize bounds the size of a policy document.
const DefaultMaxFileSize = 10 * 1024 * 1024

// Loader parses and validates policy documents.
type Loader struct {
	maxFileSize int64
	logger      *slog.Logger
}

// New creates a Loader. A non-positive maxFileSize selects the default.
func New(maxFileSize int64, logger *slog.Logger) *Loader {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = slog.Default().With("component", "policy.loader")
	}
	return &Loader{maxFileSize: maxFileSize, logger: logger}
}

// LoadFile reads, parses and validates the policy at path.
func (l *Loader) LoadFile(path string) (*policy.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "failed to access file", Cause: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &LoadError{Path: path, Message: "not a regular file"}
	}
	if info.Size() > l.maxFileSize {
		return nil, &LoadError{
			Path:    path,
			Message: fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), l.maxFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "failed to read file", Cause: err}
	}
	return l.Parse(data, path)
}

// Parse decodes data and validates the resulting document. name is used in
// error messages only.
func (l *Loader) Parse(data []byte, name string) (*policy.Document, error) {
	if int64(len(data)) > l.maxFileSize {
		return nil, &LoadError{Path: name, Message: "policy exceeds maximum size"}
	}
	if !utf8.Valid(data) {
		return nil, &LoadError{Path: name, Message: "policy contains invalid UTF-8 encoding"}
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, parseError(name, err)
	}
	if len(root.Content) == 0 {
		return nil, &LoadError{Path: name, Message: "policy is empty"}
	}
	lowerKeys(&root)

	doc := &policy.Document{}
	if err := root.Decode(doc); err != nil {
		return nil, parseError(name, err)
	}
	doc.Path = name
	normalize(doc)

	if err := Validate(doc); err != nil {
		return nil, err
	}

	l.logger.Info("policy loaded",
		"path", name,
		"rules", len(doc.Rules),
		"exceptions", len(doc.Exceptions),
	)
	return doc, nil
}

func parseError(name string, err error) error {
	pe := &ParseError{Path: name, Cause: err}
	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		var line int
		if _, scanErr := fmt.Sscanf(te.Errors[0], "line %d:", &line); scanErr == nil {
			pe.Line = line
		}
	}
	return pe
}

// normalize lower-cases enumerated values.
func normalize(doc *policy.Document) {
	for i := range doc.Rules {
		r := &doc.Rules[i]
		r.Type = policy.RuleType(strings.ToLower(strings.TrimSpace(string(r.Type))))
		r.Subtype = policy.RuleType(strings.ToLower(strings.TrimSpace(string(r.Subtype))))
		r.Confidence = policy.Confidence(strings.ToLower(strings.TrimSpace(string(r.Confidence))))
		r.API.Auth = policy.AuthMode(strings.ToLower(strings.TrimSpace(string(r.API.Auth))))
		r.API.Method = strings.ToUpper(strings.TrimSpace(r.API.Method))
	}
}

// Validate checks every document invariant and compiles rule patterns.
// All violations are collected into a single *ValidationError.
func Validate(doc *policy.Document) error {
	var issues []Issue
	seen := make(map[int]int, len(doc.Rules))

	for i := range doc.Rules {
		r := &doc.Rules[i]
		add := func(kind IssueKind, field, detail string) {
			issues = append(issues, Issue{RuleID: r.ID, Index: i, Kind: kind, Field: field, Detail: detail})
		}

		if r.ID <= 0 {
			add(IssueInvalidRuleID, "id", "must be a positive integer")
		} else if first, dup := seen[r.ID]; dup {
			add(IssueDuplicateID, "id", fmt.Sprintf("already used by rule at index %d", first))
		} else {
			seen[r.ID] = i
		}

		if r.Schedule != "" {
			if _, err := cron.ParseStandard(r.Schedule); err != nil {
				add(IssueInvalidCron, "schedule", err.Error())
			}
		}

		if !r.Type.IsKnown() {
			add(IssueUnknownType, "type", fmt.Sprintf("%q", r.Type))
			continue
		}
		if r.Type == policy.TypeCollect || r.Type == policy.TypeRuntime {
			if r.Subtype != "" && !r.Subtype.IsMatcherType() {
				add(IssueUnknownType, "subtype", fmt.Sprintf("%q", r.Subtype))
				continue
			}
		}

		for _, is := range validatePayload(r) {
			add(is.Kind, is.Field, is.Detail)
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Path: doc.Path, Issues: issues}
	}
	return nil
}

// validatePayload checks the fields required by the rule's effective type.
// Fields irrelevant to the type are ignored.
func validatePayload(r *policy.Rule) []Issue {
	var issues []Issue
	missing := func(field string) {
		issues = append(issues, Issue{Kind: IssueMissingField, Field: field})
	}
	badRegex := func(field string, err error) {
		issues = append(issues, Issue{Kind: IssueInvalidRegex, Field: field, Detail: err.Error()})
	}
	checkRegex := func(field, expr string) {
		if expr == "" {
			return
		}
		if _, err := regexp.Compile(expr); err != nil {
			badRegex(field, err)
		}
	}

	checkRegex("filepattern", r.FilePattern)

	switch r.EffectiveType() {
	case policy.TypeScan, policy.TypeAssureRegex:
		if len(r.Patterns) == 0 {
			missing("patterns")
		}
	case policy.TypeAssureFiletype:
		bindings := r.Structure.Bindings()
		switch len(bindings) {
		case 0:
			missing("yml_structure|json_structure|toml_structure|ini_structure")
		case 1:
			b := bindings[0]
			if strings.TrimSpace(b.Schema) == "" {
				missing(string(b.Format) + "_structure")
			}
			if strings.TrimSpace(b.FilePattern) == "" {
				missing(string(b.Format) + "_filepattern")
			}
			checkRegex(string(b.Format)+"_filepattern", b.FilePattern)
		default:
			formats := make([]string, 0, len(bindings))
			for _, b := range bindings {
				formats = append(formats, string(b.Format))
			}
			issues = append(issues, Issue{
				Kind:   IssueMissingField,
				Field:  "structure",
				Detail: "exactly one structured format expected, got " + strings.Join(formats, ","),
			})
		}
	case policy.TypeAssureAPI:
		if r.API.Endpoint == "" {
			missing("api_endpoint")
		}
		if r.API.Method == "" {
			missing("api_request")
		}
		switch r.API.Auth {
		case "", policy.AuthNone:
		case policy.AuthBasic:
			if r.API.BasicEnv == "" {
				missing("api_auth_basic")
			}
		case policy.AuthToken:
			if r.API.TokenEnv == "" {
				missing("api_auth_token")
			}
		default:
			issues = append(issues, Issue{Kind: IssueMissingField, Field: "api_auth", Detail: fmt.Sprintf("unsupported mode %q", r.API.Auth)})
		}
	case policy.TypeAssureRego:
		if r.Rego.PolicyFile == "" {
			missing("rego_policy_file")
		}
		if r.Rego.Query == "" {
			missing("rego_policy_query")
		}
		if r.Rego.FilePattern == "" {
			missing("rego_filepattern")
		}
		checkRegex("rego_filepattern", r.Rego.FilePattern)
	}

	if err := r.CompilePatterns(); err != nil {
		badRegex("patterns", err)
	}
	return issues
}
