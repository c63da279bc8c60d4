package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of Default, so omitted fields keep their
// defaults. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// INTERCEPT_* environment variable overrides. An empty path starts from
// Default. Environment variables always take precedence over the file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		cfg, err = LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// ApplyEnvOverrides applies INTERCEPT_SECTION_FIELD environment variables.
// Malformed numeric, boolean and duration values are ignored.
func ApplyEnvOverrides(cfg *Config) {
	str("INTERCEPT_ENV", &cfg.Environment)

	// Policy overrides
	str("INTERCEPT_POLICY_SOURCE", &cfg.Policy.Source)
	str("INTERCEPT_POLICY_PATH", &cfg.Policy.Path)
	str("INTERCEPT_POLICY_URL", &cfg.Policy.URL)
	str("INTERCEPT_POLICY_CHECKSUM", &cfg.Policy.Checksum)
	str("INTERCEPT_POLICY_GIT_REPOSITORY", &cfg.Policy.Git.Repository)
	str("INTERCEPT_POLICY_GIT_BRANCH", &cfg.Policy.Git.Branch)
	str("INTERCEPT_POLICY_GIT_PATH", &cfg.Policy.Git.Path)

	// Target overrides
	str("INTERCEPT_TARGET_ROOT", &cfg.Target.Root)
	list("INTERCEPT_TARGET_EXCLUDE", &cfg.Target.Exclude)
	int64v("INTERCEPT_TARGET_MAX_FILE_SIZE", &cfg.Target.MaxFileSize)

	// Engine overrides
	intv("INTERCEPT_ENGINE_WORKERS", &cfg.Engine.Workers)
	intv("INTERCEPT_ENGINE_ARTIFACT_CONCURRENCY", &cfg.Engine.ArtifactConcurrency)
	duration("INTERCEPT_ENGINE_RULE_TIMEOUT", &cfg.Engine.RuleTimeout)
	duration("INTERCEPT_ENGINE_GRACE_PERIOD", &cfg.Engine.GracePeriod)
	boolean("INTERCEPT_ENGINE_NO_EXCEPTIONS", &cfg.Engine.NoExceptions)
	list("INTERCEPT_ENGINE_TAGS_ANY", &cfg.Engine.TagsAny)
	list("INTERCEPT_ENGINE_TAGS_ALL", &cfg.Engine.TagsAll)
	str("INTERCEPT_ENGINE_PATCH_DIR", &cfg.Engine.PatchDir)

	// API overrides
	duration("INTERCEPT_API_TIMEOUT", &cfg.API.Timeout)
	intv("INTERCEPT_API_RETRIES", &cfg.API.Retries)

	// Report overrides
	str("INTERCEPT_REPORT_FORMAT", &cfg.Report.Format)
	str("INTERCEPT_REPORT_OUTPUT", &cfg.Report.Output)
	boolean("INTERCEPT_REPORT_NO_COLOR", &cfg.Report.NoColor)
	boolean("INTERCEPT_REPORT_REDACT", &cfg.Report.Redact)

	// Observe overrides
	str("INTERCEPT_OBSERVE_SCHEDULE", &cfg.Observe.Schedule)
	str("INTERCEPT_OBSERVE_STATE_DRIVER", &cfg.Observe.State.Driver)
	str("INTERCEPT_OBSERVE_STATE_PATH", &cfg.Observe.State.Path)
	str("INTERCEPT_OBSERVE_WEBHOOK_URL", &cfg.Observe.Webhook.URL)
	intv("INTERCEPT_OBSERVE_WEBHOOK_MAX_RETRIES", &cfg.Observe.Webhook.MaxRetries)
	str("INTERCEPT_OBSERVE_METRICS_ADDRESS", &cfg.Observe.MetricsAddress)
	boolean("INTERCEPT_OBSERVE_WATCH_POLICY", &cfg.Observe.WatchPolicy)

	// Telemetry overrides
	str("INTERCEPT_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	str("INTERCEPT_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	boolean("INTERCEPT_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	boolean("INTERCEPT_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	str("INTERCEPT_TELEMETRY_TRACING_PROTOCOL", &cfg.Telemetry.Tracing.Protocol)
	str("INTERCEPT_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	boolean("INTERCEPT_TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)
}

func str(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func list(key string, dst *[]string) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func intv(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func int64v(key string, dst *int64) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = i
		}
	}
}

func boolean(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func duration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
