package config

import (
	"runtime"
	"time"
)

// Default values for configuration fields.
const (
	// Policy defaults
	DefaultPolicySource      = PolicySourceFile
	DefaultPolicyPath        = "policy.yaml"
	DefaultPolicyTimeout     = 30 * time.Second
	DefaultPolicyMaxFileSize = 10 * 1024 * 1024
	DefaultGitTimeout        = time.Minute

	// Target defaults
	DefaultTargetRoot        = "."
	DefaultTargetMaxFileSize = 5 * 1024 * 1024

	// Engine defaults
	DefaultArtifactConcurrency = 4
	DefaultRuleTimeout         = 60 * time.Second
	DefaultGracePeriod         = 5 * time.Second
	DefaultPatchDir            = "_patched"

	// API defaults
	DefaultAPITimeout          = 15 * time.Second
	DefaultAPIRetries          = 2
	DefaultAPIRetryWait        = 500 * time.Millisecond
	DefaultAPIMaxBodyBytes     = 64 * 1024
	DefaultAPICredentialPrefix = "INTERCEPT_"

	// Report defaults
	DefaultReportFormat = FormatText

	// Observe defaults
	DefaultObserveSchedule        = "@every 5m"
	DefaultStateDriver            = StateMemory
	DefaultStatePath              = "intercept-observe.db"
	DefaultStateBusyTimeout       = 5 * time.Second
	DefaultWebhookTimeout         = 10 * time.Second
	DefaultWebhookMaxRetries      = 5
	DefaultWebhookInitialInterval = 500 * time.Millisecond
	DefaultWebhookMaxInterval     = 30 * time.Second
	DefaultWebhookQueueSize       = 256
	DefaultWatchDebounce          = 500 * time.Millisecond

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultMetricsNamespace   = "intercept"
	DefaultTracingProtocol    = "otlpgrpc"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "intercept"
)

// Default returns a configuration with every field at its default,
// including boolean fields whose default is true.
func Default() *Config {
	cfg := &Config{}
	cfg.Target.FollowSymlinks = true
	cfg.Report.Redact = true
	cfg.Telemetry.Logging.Redact = true
	cfg.Telemetry.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-valued field with its default.
func ApplyDefaults(cfg *Config) {
	// Policy defaults
	if cfg.Policy.Source == "" {
		cfg.Policy.Source = DefaultPolicySource
	}
	if cfg.Policy.Source == PolicySourceFile && cfg.Policy.Path == "" {
		cfg.Policy.Path = DefaultPolicyPath
	}
	if cfg.Policy.Timeout == 0 {
		cfg.Policy.Timeout = DefaultPolicyTimeout
	}
	if cfg.Policy.MaxFileSize == 0 {
		cfg.Policy.MaxFileSize = DefaultPolicyMaxFileSize
	}
	if cfg.Policy.Git.Timeout == 0 {
		cfg.Policy.Git.Timeout = DefaultGitTimeout
	}

	// Target defaults
	if cfg.Target.Root == "" {
		cfg.Target.Root = DefaultTargetRoot
	}
	if cfg.Target.MaxFileSize == 0 {
		cfg.Target.MaxFileSize = DefaultTargetMaxFileSize
	}

	// Engine defaults
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = runtime.NumCPU()
	}
	if cfg.Engine.ArtifactConcurrency == 0 {
		cfg.Engine.ArtifactConcurrency = DefaultArtifactConcurrency
	}
	if cfg.Engine.RuleTimeout == 0 {
		cfg.Engine.RuleTimeout = DefaultRuleTimeout
	}
	if cfg.Engine.GracePeriod == 0 {
		cfg.Engine.GracePeriod = DefaultGracePeriod
	}
	if cfg.Engine.PatchDir == "" {
		cfg.Engine.PatchDir = DefaultPatchDir
	}

	// API defaults
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = DefaultAPITimeout
	}
	if cfg.API.Retries == 0 {
		cfg.API.Retries = DefaultAPIRetries
	}
	if cfg.API.RetryWait == 0 {
		cfg.API.RetryWait = DefaultAPIRetryWait
	}
	if cfg.API.MaxBodyBytes == 0 {
		cfg.API.MaxBodyBytes = DefaultAPIMaxBodyBytes
	}
	if cfg.API.CredentialPrefix == "" {
		cfg.API.CredentialPrefix = DefaultAPICredentialPrefix
	}

	// Report defaults
	if cfg.Report.Format == "" {
		cfg.Report.Format = DefaultReportFormat
	}

	// Observe defaults
	if cfg.Observe.Schedule == "" {
		cfg.Observe.Schedule = DefaultObserveSchedule
	}
	if cfg.Observe.State.Driver == "" {
		cfg.Observe.State.Driver = DefaultStateDriver
	}
	if cfg.Observe.State.Path == "" {
		cfg.Observe.State.Path = DefaultStatePath
	}
	if cfg.Observe.State.BusyTimeout == 0 {
		cfg.Observe.State.BusyTimeout = DefaultStateBusyTimeout
	}
	if cfg.Observe.Webhook.Timeout == 0 {
		cfg.Observe.Webhook.Timeout = DefaultWebhookTimeout
	}
	if cfg.Observe.Webhook.MaxRetries == 0 {
		cfg.Observe.Webhook.MaxRetries = DefaultWebhookMaxRetries
	}
	if cfg.Observe.Webhook.InitialInterval == 0 {
		cfg.Observe.Webhook.InitialInterval = DefaultWebhookInitialInterval
	}
	if cfg.Observe.Webhook.MaxInterval == 0 {
		cfg.Observe.Webhook.MaxInterval = DefaultWebhookMaxInterval
	}
	if cfg.Observe.Webhook.QueueSize == 0 {
		cfg.Observe.Webhook.QueueSize = DefaultWebhookQueueSize
	}
	if cfg.Observe.WatchDebounce == 0 {
		cfg.Observe.WatchDebounce = DefaultWatchDebounce
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.Protocol == "" {
		cfg.Telemetry.Tracing.Protocol = DefaultTracingProtocol
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
}
