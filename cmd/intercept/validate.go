package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/xfhg/intercept/pkg/cli"
	"github.com/xfhg/intercept/pkg/config"
	"github.com/xfhg/intercept/pkg/policy/loader"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate [policy...]",
	Short: "Validate policy files",
	Long: `Validate policy files without evaluating them.

Every rule is checked for a known type, a positive unique ID, the fields its
type requires and compilable regular expressions. All issues of a document
are reported together; a document with any issue is rejected as a whole.

Without arguments the policy path from the configuration is validated.

Examples:
  # Validate a single policy
  intercept validate policy.yaml

  # Validate several policies with JSON output for CI
  intercept validate policies/*.yaml --format json`,
	RunE: validatePolicies,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

// ValidationResult is the validation outcome of one policy file.
type ValidationResult struct {
	File   string            `json:"file"`
	Valid  bool              `json:"valid"`
	Rules  int               `json:"rules,omitempty"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// ValidationIssue is one reason a policy was rejected.
type ValidationIssue struct {
	RuleID  int    `json:"rule_id,omitempty"`
	Index   int    `json:"index,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Field   string `json:"field,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func validatePolicies(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(validateFlags.format))
	if err != nil {
		return err
	}

	files := args
	maxSize := int64(config.DefaultPolicyMaxFileSize)
	if len(files) == 0 {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		files = []string{cfg.Policy.Path}
		maxSize = cfg.Policy.MaxFileSize
	}

	l := loader.New(maxSize, slog.New(slog.DiscardHandler))
	results := make([]ValidationResult, 0, len(files))
	valid := true
	for _, file := range files {
		result := validatePolicyFile(l, file)
		valid = valid && result.Valid
		results = append(results, result)
	}

	out := cmd.OutOrStdout()
	if _, ok := formatter.(*cli.JSONFormatter); ok {
		if err := formatter.FormatTo(out, results); err != nil {
			return cli.NewCommandError("validate", err)
		}
	} else if err := outputText(out, formatter, results); err != nil {
		return cli.NewCommandError("validate", err)
	}

	if !valid {
		return cli.Exit(cli.ExitFailure, nil)
	}
	return nil
}

func validatePolicyFile(l *loader.Loader, path string) ValidationResult {
	result := ValidationResult{File: path, Valid: true}

	doc, err := l.LoadFile(path)
	if err == nil {
		result.Rules = len(doc.Rules)
		return result
	}

	result.Valid = false
	var (
		verr *loader.ValidationError
		perr *loader.ParseError
	)
	switch {
	case errors.As(err, &verr):
		for _, issue := range verr.Issues {
			result.Errors = append(result.Errors, ValidationIssue{
				RuleID:  issue.RuleID,
				Index:   issue.Index,
				Kind:    string(issue.Kind),
				Field:   issue.Field,
				Message: issue.String(),
			})
		}
	case errors.As(err, &perr):
		result.Errors = append(result.Errors, ValidationIssue{
			Kind:    "parse",
			Line:    perr.Line,
			Message: perr.Error(),
		})
	default:
		result.Errors = append(result.Errors, ValidationIssue{Message: err.Error()})
	}
	return result
}

func outputText(w io.Writer, f cli.Formatter, results []ValidationResult) error {
	var lines []string
	for _, r := range results {
		if r.Valid {
			lines = append(lines, fmt.Sprintf("✓ %s: valid (%d rules)", r.File, r.Rules))
			continue
		}
		lines = append(lines, fmt.Sprintf("✗ %s: %d error(s)", r.File, len(r.Errors)))
		for _, e := range r.Errors {
			lines = append(lines, "  - "+e.Message)
		}
	}
	return f.FormatTo(w, lines)
}
