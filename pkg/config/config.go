package config

import "time"

// Config is the root configuration structure for intercept.
type Config struct {
	// Environment is the current execution environment tag matched against
	// each rule's environment. Overridden by INTERCEPT_ENV.
	Environment string `yaml:"environment"`

	// Policy selects where the policy document is loaded from.
	Policy PolicyConfig `yaml:"policy"`

	// Target describes the file tree being audited.
	Target TargetConfig `yaml:"target"`

	// Engine controls rule dispatch concurrency and timeouts.
	Engine EngineConfig `yaml:"engine"`

	// API configures the HTTP client used by assure-api rules.
	API APIConfig `yaml:"api"`

	// Report controls report rendering.
	Report ReportConfig `yaml:"report"`

	// Observe configures the continuous observe daemon.
	Observe ObserveConfig `yaml:"observe"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Policy source kinds.
const (
	PolicySourceFile = "file"
	PolicySourceHTTP = "http"
	PolicySourceGit  = "git"
)

// PolicyConfig selects the policy source.
type PolicyConfig struct {
	// Source is one of "file", "http" or "git".
	// Default: "file"
	Source string `yaml:"source"`

	// Path is the local policy file for the file source.
	Path string `yaml:"path"`

	// URL is the remote policy location for the http source.
	URL string `yaml:"url"`

	// Checksum is an optional sha256 digest the downloaded policy must match.
	Checksum string `yaml:"checksum"`

	// Timeout bounds remote fetches.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// MaxFileSize bounds the policy document size in bytes.
	// Default: 10MB
	MaxFileSize int64 `yaml:"max_file_size"`

	// Git configures the git source.
	Git GitPolicyConfig `yaml:"git"`
}

// GitPolicyConfig locates a policy inside a git repository.
type GitPolicyConfig struct {
	Repository string        `yaml:"repository"`
	Branch     string        `yaml:"branch"`
	Path       string        `yaml:"path"`
	Depth      int           `yaml:"depth"`
	Timeout    time.Duration `yaml:"timeout"`
	Auth       GitAuthConfig `yaml:"auth"`
}

// GitAuthConfig holds git credentials. Secrets are never stored in the file;
// only the names of the environment variables holding them.
type GitAuthConfig struct {
	// Type is one of "none", "token" or "ssh".
	Type string `yaml:"type"`

	TokenEnv         string `yaml:"token_env"`
	SSHKeyPath       string `yaml:"ssh_key_path"`
	SSHPassphraseEnv string `yaml:"ssh_passphrase_env"`
}

// TargetConfig describes the audited file tree.
type TargetConfig struct {
	// Root is the directory walked for artifacts.
	// Default: "."
	Root string `yaml:"root"`

	// Include restricts the walk to paths matching any of these globs.
	Include []string `yaml:"include"`

	// Exclude removes paths matching any of these globs. Exclusion is
	// applied before inclusion.
	Exclude []string `yaml:"exclude"`

	// MaxFileSize is the largest file, in bytes, text rules will read.
	// Default: 5MB
	MaxFileSize int64 `yaml:"max_file_size"`

	// FollowSymlinks descends into symlinked directories. Cycles are
	// detected and skipped.
	// Default: true
	FollowSymlinks bool `yaml:"follow_symlinks"`

	// SkipHidden ignores dot files and directories.
	SkipHidden bool `yaml:"skip_hidden"`
}

// EngineConfig controls the rule dispatcher.
type EngineConfig struct {
	// Workers is the number of rules evaluated in parallel.
	// Default: number of CPUs
	Workers int `yaml:"workers"`

	// ArtifactConcurrency caps parallel artifact evaluation within a rule.
	// Default: 4
	ArtifactConcurrency int `yaml:"artifact_concurrency"`

	// RuleTimeout abandons a rule evaluation after this long.
	// Default: 60s
	RuleTimeout time.Duration `yaml:"rule_timeout"`

	// GracePeriod is how long in-flight rules may finish after cancellation.
	// Default: 5s
	GracePeriod time.Duration `yaml:"grace_period"`

	// NoExceptions ignores the policy exceptions list.
	NoExceptions bool `yaml:"no_exceptions"`

	// TagsAny evaluates only rules carrying at least one of these tags.
	TagsAny []string `yaml:"tags_any"`

	// TagsAll evaluates only rules carrying all of these tags.
	TagsAll []string `yaml:"tags_all"`

	// PatchDir receives schema-patched copies of structured artifacts for
	// rules with patch enabled. The target itself is never modified.
	// Default: _patched
	PatchDir string `yaml:"patch_dir"`
}

// APIConfig configures the assure-api HTTP client.
type APIConfig struct {
	// Timeout bounds a single request.
	// Default: 15s
	Timeout time.Duration `yaml:"timeout"`

	// Retries is the number of retries after a network failure.
	// Default: 2
	Retries int `yaml:"retries"`

	// RetryWait is the initial wait between retries.
	// Default: 500ms
	RetryWait time.Duration `yaml:"retry_wait"`

	// MaxBodyBytes truncates response bodies kept for trace output.
	// Default: 64KB
	MaxBodyBytes int `yaml:"max_body_bytes"`

	// CredentialPrefix is prepended to the variable names in api_auth_basic
	// and api_auth_token.
	// Default: "INTERCEPT_"
	CredentialPrefix string `yaml:"credential_prefix"`
}

// Report formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatSARIF = "sarif"
)

// ReportConfig controls report rendering.
type ReportConfig struct {
	// Format is one of "text", "json" or "sarif".
	// Default: "text"
	Format string `yaml:"format"`

	// Output is the file the report is written to. Empty means stdout.
	Output string `yaml:"output"`

	// NoColor disables ANSI colors in text output.
	NoColor bool `yaml:"no_color"`

	// Redact masks matched content of medium and high confidence findings.
	// Default: true
	Redact bool `yaml:"redact"`
}

// ObserveConfig configures the observe daemon.
type ObserveConfig struct {
	// Schedule is a cron expression or "@every <duration>".
	// Default: "@every 5m"
	Schedule string `yaml:"schedule"`

	// State configures deduplication state storage.
	State StateConfig `yaml:"state"`

	// Webhook configures delivery of new violations.
	Webhook WebhookConfig `yaml:"webhook"`

	// MetricsAddress serves Prometheus metrics when non-empty.
	MetricsAddress string `yaml:"metrics_address"`

	// WatchPolicy reloads a local policy file when it changes.
	WatchPolicy bool `yaml:"watch_policy"`

	// WatchDebounce coalesces bursts of file events.
	// Default: 500ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// State drivers.
const (
	StateMemory  = "memory"
	StateSQLite  = "sqlite"  // modernc.org/sqlite, pure Go
	StateSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3, cgo
)

// StateConfig configures observe state storage.
type StateConfig struct {
	// Driver is one of "memory", "sqlite" or "sqlite3".
	// Default: "memory"
	Driver string `yaml:"driver"`

	// Path is the database file for the sqlite drivers.
	// Default: "intercept-observe.db"
	Path string `yaml:"path"`

	// BusyTimeout is the SQLite busy timeout.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	// URL receives one POST per rule with new violations. Empty disables
	// delivery.
	URL string `yaml:"url"`

	// Headers are added to every request.
	Headers map[string]string `yaml:"headers"`

	// Timeout bounds a single delivery attempt.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries bounds delivery attempts after the first.
	// Default: 5
	MaxRetries int `yaml:"max_retries"`

	// InitialInterval is the first backoff interval.
	// Default: 500ms
	InitialInterval time.Duration `yaml:"initial_interval"`

	// MaxInterval caps the backoff interval.
	// Default: 30s
	MaxInterval time.Duration `yaml:"max_interval"`

	// QueueSize bounds pending deliveries; overflow is dropped and logged.
	// Default: 256
	QueueSize int `yaml:"queue_size"`

	// Insecure skips TLS verification.
	Insecure bool `yaml:"insecure"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`

	// Redact masks credentials in log attributes.
	// Default: true
	Redact bool `yaml:"redact"`

	// RedactPatterns adds custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace prefixes every metric name.
	// Default: "intercept"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	Enabled bool `yaml:"enabled"`

	// Protocol is "otlpgrpc" or "otlphttp".
	// Default: "otlpgrpc"
	Protocol string `yaml:"protocol"`

	// Endpoint is the collector address, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// SampleRatio is the fraction of runs traced (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is the service name in traces.
	// Default: "intercept"
	ServiceName string `yaml:"service_name"`
}
