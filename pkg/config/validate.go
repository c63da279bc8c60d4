package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "engine.workers").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All field errors are
// collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateReport(&cfg.Report)...)
	errs = append(errs, validateObserve(&cfg.Observe)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if cfg.Target.MaxFileSize < 0 {
		errs = append(errs, FieldError{"target.max_file_size", "must not be negative"})
	}
	if cfg.API.Retries < 0 {
		errs = append(errs, FieldError{"api.retries", "must not be negative"})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError

	switch cfg.Source {
	case PolicySourceFile:
		if cfg.Path == "" {
			errs = append(errs, FieldError{"policy.path", "required for file source"})
		}
	case PolicySourceHTTP:
		u, err := url.Parse(cfg.URL)
		if cfg.URL == "" || err != nil || u.Host == "" {
			errs = append(errs, FieldError{"policy.url", "must be an absolute http(s) URL"})
		}
		if c := strings.TrimPrefix(cfg.Checksum, "sha256:"); c != "" && len(c) != 64 {
			errs = append(errs, FieldError{"policy.checksum", "must be a hex encoded sha256 digest"})
		}
	case PolicySourceGit:
		if cfg.Git.Repository == "" {
			errs = append(errs, FieldError{"policy.git.repository", "required for git source"})
		}
		if cfg.Git.Path == "" {
			errs = append(errs, FieldError{"policy.git.path", "required for git source"})
		}
		if !slices.Contains([]string{"", "none", "token", "ssh"}, cfg.Git.Auth.Type) {
			errs = append(errs, FieldError{"policy.git.auth.type", fmt.Sprintf("unknown auth type %q", cfg.Git.Auth.Type)})
		}
	default:
		errs = append(errs, FieldError{"policy.source", fmt.Sprintf("must be file, http or git, got %q", cfg.Source)})
	}

	return errs
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError
	if cfg.Workers < 1 {
		errs = append(errs, FieldError{"engine.workers", "must be at least 1"})
	}
	if cfg.ArtifactConcurrency < 1 {
		errs = append(errs, FieldError{"engine.artifact_concurrency", "must be at least 1"})
	}
	if cfg.RuleTimeout <= 0 {
		errs = append(errs, FieldError{"engine.rule_timeout", "must be positive"})
	}
	if cfg.GracePeriod < 0 {
		errs = append(errs, FieldError{"engine.grace_period", "must not be negative"})
	}
	return errs
}

func validateReport(cfg *ReportConfig) []FieldError {
	if !slices.Contains([]string{FormatText, FormatJSON, FormatSARIF}, cfg.Format) {
		return []FieldError{{"report.format", fmt.Sprintf("must be text, json or sarif, got %q", cfg.Format)}}
	}
	return nil
}

func validateObserve(cfg *ObserveConfig) []FieldError {
	var errs []FieldError

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		errs = append(errs, FieldError{"observe.schedule", fmt.Sprintf("invalid schedule: %v", err)})
	}
	if !slices.Contains([]string{StateMemory, StateSQLite, StateSQLite3}, cfg.State.Driver) {
		errs = append(errs, FieldError{"observe.state.driver", fmt.Sprintf("must be memory, sqlite or sqlite3, got %q", cfg.State.Driver)})
	}
	if cfg.Webhook.URL != "" {
		u, err := url.Parse(cfg.Webhook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, FieldError{"observe.webhook.url", "must be an absolute http(s) URL"})
		}
	}
	if cfg.Webhook.MaxRetries < 0 {
		errs = append(errs, FieldError{"observe.webhook.max_retries", "must not be negative"})
	}
	if cfg.Webhook.QueueSize < 1 {
		errs = append(errs, FieldError{"observe.webhook.queue_size", "must be at least 1"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(cfg.Logging.Level)) {
		errs = append(errs, FieldError{"telemetry.logging.level", fmt.Sprintf("unknown level %q", cfg.Logging.Level)})
	}
	if !slices.Contains([]string{"json", "text"}, strings.ToLower(cfg.Logging.Format)) {
		errs = append(errs, FieldError{"telemetry.logging.format", fmt.Sprintf("unknown format %q", cfg.Logging.Format)})
	}
	if cfg.Tracing.Enabled {
		if !slices.Contains([]string{"otlpgrpc", "otlphttp"}, cfg.Tracing.Protocol) {
			errs = append(errs, FieldError{"telemetry.tracing.protocol", fmt.Sprintf("must be otlpgrpc or otlphttp, got %q", cfg.Tracing.Protocol)})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{"telemetry.tracing.endpoint", "required when tracing is enabled"})
		}
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{"telemetry.tracing.sample_ratio", "must be between 0 and 1"})
	}

	return errs
}
