package engine

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xfhg/intercept/pkg/config"
	"github.com/xfhg/intercept/pkg/matcher"
	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/report"
	"github.com/xfhg/intercept/pkg/telemetry/logging"
	"github.com/xfhg/intercept/pkg/telemetry/metrics"
	"github.com/xfhg/intercept/pkg/telemetry/tracing"
)

// Mode selects which rules a run evaluates.
type Mode int

const (
	// ModeAudit is a one-shot run. Runtime rules are skipped.
	ModeAudit Mode = iota

	// ModeObserve is a scheduled observe tick. Runtime rules are evaluated.
	ModeObserve
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeObserve {
		return "observe"
	}
	return "audit"
}

// Options configures a Pipeline.
type Options struct {
	Engine config.EngineConfig

	// Environment is the current environment tag rules are matched against.
	Environment string

	// Redact masks matched content of medium and high confidence findings.
	Redact bool

	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
	Logger  *slog.Logger

	// Now is the clock used for report timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Pipeline evaluates policy documents. It holds no per-run state and is safe
// for concurrent use; each Run builds its own aggregator.
type Pipeline struct {
	registry *matcher.Registry
	cfg      config.EngineConfig
	env      string
	redact   bool
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	logger   *slog.Logger
	now      func() time.Time
}

// NewPipeline creates a pipeline dispatching to the matchers in registry.
func NewPipeline(registry *matcher.Registry, opts Options) *Pipeline {
	cfg := opts.Engine
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.RuleTimeout <= 0 {
		cfg.RuleTimeout = config.DefaultRuleTimeout
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = config.DefaultGracePeriod
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.Noop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		registry: registry,
		cfg:      cfg,
		env:      opts.Environment,
		redact:   opts.Redact,
		metrics:  opts.Metrics,
		tracer:   tracer,
		logger:   logger.With("component", "engine"),
		now:      now,
	}
}

// Environment returns the environment tag rules are matched against.
func (p *Pipeline) Environment() string {
	return p.env
}

// Run evaluates every rule of doc against src and returns the report. Run
// always returns a complete report: when ctx is cancelled the report is
// marked interrupted and unfinished rules carry status cancelled.
func (p *Pipeline) Run(ctx context.Context, doc *policy.Document, src matcher.Source, mode Mode) *report.Report {
	runID := uuid.NewString()
	started := p.now()

	ctx = logging.WithRunID(ctx, runID)
	ctx, span := p.tracer.Start(ctx, tracing.SpanRun, trace.WithAttributes(
		attribute.String(tracing.AttrRunID, runID),
		attribute.Int(tracing.AttrRuleCount, len(doc.Rules)),
	))
	defer span.End()

	p.logger.InfoContext(ctx, "run started",
		"mode", mode.String(),
		"rules", len(doc.Rules),
		"environment", p.env,
		"root", src.Root(),
	)

	agg := report.NewAggregator(doc)
	verdicts := make(chan report.Verdict)
	aggregated := make(chan struct{})
	go func() {
		defer close(aggregated)
		for v := range verdicts {
			agg.Add(v)
		}
	}()

	d := &dispatch{pipeline: p, doc: doc, src: src, mode: mode, runID: runID, out: verdicts}
	d.run(ctx)
	close(verdicts)
	<-aggregated

	interrupted := ctx.Err() != nil
	r := agg.Report(report.Meta{
		RunID:       runID,
		Environment: p.env,
		StartedAt:   started,
		FinishedAt:  p.now(),
		Interrupted: interrupted,
	})

	p.metrics.RecordRun(r.Status.String(), r.FinishedAt.Sub(started))
	runStatus := "complete"
	if interrupted {
		runStatus = "interrupted"
	}
	span.SetAttributes(attribute.Bool(tracing.AttrInterrupted, interrupted))
	tracing.RecordOutcome(span, runStatus, r.Status.String(), r.Summary.Violations)

	p.logger.InfoContext(ctx, "run finished",
		"status", r.Status.String(),
		"exit_code", r.ExitCode,
		"violations", r.Summary.Violations,
		"interrupted", interrupted,
		"duration", r.FinishedAt.Sub(started),
	)
	return r
}
