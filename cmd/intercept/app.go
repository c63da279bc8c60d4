package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/xfhg/intercept/pkg/cli"
	"github.com/xfhg/intercept/pkg/config"
	"github.com/xfhg/intercept/pkg/engine"
	"github.com/xfhg/intercept/pkg/matcher"
	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/policy/loader"
	"github.com/xfhg/intercept/pkg/policy/source"
	"github.com/xfhg/intercept/pkg/telemetry/metrics"
	"github.com/xfhg/intercept/pkg/telemetry/tracing"
	"github.com/xfhg/intercept/pkg/walker"
)

// runFlags are shared by audit and observe.
type runFlags struct {
	policy       string
	env          string
	workers      int
	ruleTimeout  time.Duration
	noExceptions bool
	tagsAny      []string
	tagsAll      []string
	redact       bool
	noRedact     bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.policy, "policy", "p", "", "policy file (overrides policy.path)")
	cmd.Flags().StringVarP(&f.env, "env", "e", "", "current environment tag (overrides INTERCEPT_ENV)")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "rules evaluated in parallel")
	cmd.Flags().DurationVar(&f.ruleTimeout, "rule-timeout", 0, "per-rule evaluation timeout")
	cmd.Flags().BoolVarP(&f.noExceptions, "no-exceptions", "x", false, "ignore the policy exceptions list")
	cmd.Flags().StringSliceVar(&f.tagsAny, "tags-any", nil, "evaluate rules carrying any of these tags")
	cmd.Flags().StringSliceVar(&f.tagsAll, "tags-all", nil, "evaluate rules carrying all of these tags")
	cmd.Flags().BoolVar(&f.redact, "redact", false, "mask matched content of confident findings")
	cmd.Flags().BoolVar(&f.noRedact, "no-redact", false, "report matched content unmasked")
}

// apply overrides cfg with the flags that were set. target, when non-empty,
// replaces target.root.
func (f *runFlags) apply(cfg *config.Config, target string) {
	if f.policy != "" {
		cfg.Policy.Source = config.PolicySourceFile
		cfg.Policy.Path = f.policy
	}
	if target != "" {
		cfg.Target.Root = target
	}
	if f.env != "" {
		cfg.Environment = f.env
	}
	if f.workers > 0 {
		cfg.Engine.Workers = f.workers
	}
	if f.ruleTimeout > 0 {
		cfg.Engine.RuleTimeout = f.ruleTimeout
	}
	if f.noExceptions {
		cfg.Engine.NoExceptions = true
	}
	if len(f.tagsAny) > 0 {
		cfg.Engine.TagsAny = f.tagsAny
	}
	if len(f.tagsAll) > 0 {
		cfg.Engine.TagsAll = f.tagsAll
	}
	if f.redact {
		cfg.Report.Redact = true
	}
	if f.noRedact {
		cfg.Report.Redact = false
	}
}

// app holds the components shared by audit and observe.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	loader  *loader.Loader
}

func newApp(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*app, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	tracer, err := tracing.New(ctx, cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.tracing", err.Error())
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewCollector(cfg.Telemetry.Metrics, nil),
		tracer:  tracer,
		loader:  loader.New(cfg.Policy.MaxFileSize, logger.With("component", "policy.loader")),
	}, nil
}

// close flushes pending spans.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to flush traces", "error", err)
	}
}

// loadPolicy fetches and validates the configured policy.
func (a *app) loadPolicy(ctx context.Context) (*policy.Document, error) {
	src, err := source.FromConfig(&a.cfg.Policy, a.logger.With("component", "policy.source"))
	if err != nil {
		return nil, cli.NewConfigError("policy", err.Error())
	}
	doc, err := source.Load(ctx, src, a.loader)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (a *app) walker() (*walker.Walker, error) {
	w, err := walker.New(a.cfg.Target, a.logger.With("component", "walker"))
	if err != nil {
		return nil, cli.NewConfigError("target", err.Error())
	}
	return w, nil
}

func (a *app) pipeline() *engine.Pipeline {
	registry := matcher.NewRegistry(matcher.Options{
		ArtifactConcurrency: a.cfg.Engine.ArtifactConcurrency,
		API:                 a.cfg.API,
		PolicyDir:           a.policyDir(),
		PatchDir:            a.cfg.Engine.PatchDir,
		Logger:              a.logger.With("component", "matcher"),
	})
	return engine.NewPipeline(registry, engine.Options{
		Engine:      a.cfg.Engine,
		Environment: a.cfg.Environment,
		Redact:      a.cfg.Report.Redact,
		Metrics:     a.metrics,
		Tracer:      a.tracer,
		Logger:      a.logger.With("component", "engine"),
	})
}

// policyDir resolves relative rego file paths. Remote policies resolve them
// against the working directory.
func (a *app) policyDir() string {
	if isFileSource(a.cfg) {
		return filepath.Dir(a.cfg.Policy.Path)
	}
	return "."
}

func targetArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
