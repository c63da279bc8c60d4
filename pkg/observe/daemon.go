package observe

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xfhg/intercept/pkg/engine"
	"github.com/xfhg/intercept/pkg/matcher"
	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/report"
	"github.com/xfhg/intercept/pkg/telemetry/logging"
	"github.com/xfhg/intercept/pkg/telemetry/metrics"
	"github.com/xfhg/intercept/pkg/telemetry/tracing"
)

// Options configures a Daemon.
type Options struct {
	// Schedule is a standard cron expression or a descriptor such as
	// "@every 30s". Rules with their own schedule run on that instead.
	Schedule string

	// State stores tracked violations. Defaults to a MemoryState.
	State State

	// Sink receives new-violation events. Nil disables delivery.
	Sink Sink

	// OnReport is called with every tick's report.
	OnReport func(*report.Report)

	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
	Logger  *slog.Logger
	Now     func() time.Time
}

// TickResult is the outcome of one tick.
type TickResult struct {
	Tick uint64

	// Schedule is the schedule whose rules were evaluated, empty when the
	// tick covered the whole policy.
	Schedule string

	Report *report.Report
	Delta  Delta
	Events []Event
}

// Daemon evaluates the policy on a schedule.
type Daemon struct {
	pipeline *engine.Pipeline
	src      matcher.Source
	schedule string
	state    State
	sink     Sink
	tracker  *Tracker
	onReport func(*report.Report)
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	logger   *slog.Logger
	now      func() time.Time

	doc   atomic.Pointer[policy.Document]
	ticks atomic.Uint64

	// mu serializes ticks; a manual Tick never overlaps a scheduled one.
	mu sync.Mutex

	// cronMu guards cron and the entries registered for the current policy.
	cronMu  sync.Mutex
	cron    *cron.Cron
	tickCtx context.Context
	entries []cron.EntryID
}

// NewDaemon creates a daemon evaluating doc against src.
func NewDaemon(p *engine.Pipeline, doc *policy.Document, src matcher.Source, opts Options) (*Daemon, error) {
	if _, err := cron.ParseStandard(opts.Schedule); err != nil {
		return nil, fmt.Errorf("invalid observe schedule %q: %w", opts.Schedule, err)
	}
	if opts.State == nil {
		opts.State = NewMemoryState()
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Noop()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	d := &Daemon{
		pipeline: p,
		src:      src,
		schedule: opts.Schedule,
		state:    opts.State,
		sink:     opts.Sink,
		tracker:  NewTracker(opts.Now),
		onReport: opts.OnReport,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		logger:   opts.Logger.With("component", "observe"),
		now:      opts.Now,
	}
	d.doc.Store(doc)
	return d, nil
}

// SetPolicy replaces the policy evaluated from the next tick on. While the
// daemon runs, its schedules are rebuilt from the new rules.
func (d *Daemon) SetPolicy(doc *policy.Document) {
	d.doc.Store(doc)
	d.logger.Info("observe policy replaced", "rules", len(doc.Rules))

	d.cronMu.Lock()
	defer d.cronMu.Unlock()
	if d.cron != nil {
		d.reschedule()
	}
}

// Schedules groups the IDs of the current policy's rules by the schedule
// they run on.
func (d *Daemon) Schedules() map[string][]int {
	out := make(map[string][]int)
	for _, r := range d.doc.Load().Rules {
		s := r.ScheduleOr(d.schedule)
		out[s] = append(out[s], r.ID)
	}
	return out
}

// Policy returns the policy currently evaluated.
func (d *Daemon) Policy() *policy.Document {
	return d.doc.Load()
}

// Run ticks once immediately and then on the schedule until ctx is done.
// Cancellation is observed between ticks; an in-flight tick completes.
func (d *Daemon) Run(ctx context.Context) error {
	tickCtx := context.WithoutCancel(ctx)
	if _, err := d.Tick(tickCtx); err != nil {
		d.logger.Error("observe tick failed", "error", err)
	}

	d.cronMu.Lock()
	d.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{d.logger})))
	d.tickCtx = tickCtx
	d.reschedule()
	d.cron.Start()
	d.cronMu.Unlock()

	d.logger.Info("observe started",
		"schedule", d.schedule,
		"state", d.state.Name(),
		"root", d.src.Root(),
	)

	<-ctx.Done()

	d.cronMu.Lock()
	stopped := d.cron.Stop()
	d.cron = nil
	d.cronMu.Unlock()
	<-stopped.Done()
	d.logger.Info("observe stopped", "ticks", d.ticks.Load())
	return nil
}

// reschedule replaces the cron entries with one per schedule of the current
// policy. A rule schedule that does not parse is logged and left out.
// cronMu must be held.
func (d *Daemon) reschedule() {
	for _, id := range d.entries {
		d.cron.Remove(id)
	}
	d.entries = d.entries[:0]

	ctx := d.tickCtx
	for schedule, ids := range d.Schedules() {
		id, err := d.cron.AddFunc(schedule, func() {
			if _, err := d.TickSchedule(ctx, schedule); err != nil {
				d.logger.Error("observe tick failed", "schedule", schedule, "error", err)
			}
		})
		if err != nil {
			d.logger.Error("invalid rule schedule, rules not observed", "schedule", schedule, "rules", ids, "error", err)
			continue
		}
		d.entries = append(d.entries, id)
		d.logger.Debug("observe schedule registered", "schedule", schedule, "rules", ids)
	}
}

// Tick evaluates the whole policy once, diffs the result against the stored
// state and enqueues events for new violations.
func (d *Daemon) Tick(ctx context.Context) (*TickResult, error) {
	return d.tick(ctx, "")
}

// TickSchedule is Tick limited to the rules running on schedule. Stored
// violations of every other rule are left untouched.
func (d *Daemon) TickSchedule(ctx context.Context, schedule string) (*TickResult, error) {
	return d.tick(ctx, schedule)
}

func (d *Daemon) tick(ctx context.Context, schedule string) (*TickResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.ticks.Add(1)
	ctx = logging.WithTick(ctx, n)
	ctx, span := d.tracer.Start(ctx, tracing.SpanTick, trace.WithAttributes(
		attribute.Int64(tracing.AttrObserveTick, int64(n)),
	))
	defer span.End()

	prev, err := d.state.Load(ctx)
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}

	doc, carry := d.scope(schedule)
	r := d.pipeline.Run(ctx, doc, d.src, engine.ModeObserve)
	delta := d.tracker.DiffPartial(prev, r, carry)

	if err := d.state.Save(ctx, delta.State); err != nil {
		tracing.SetError(span, err)
		return nil, err
	}

	events := NewEvents(r, delta.New, d.now())
	if d.sink != nil {
		for _, e := range events {
			d.sink.Enqueue(e)
		}
	}

	d.metrics.RecordTick(delta.NewCount())
	span.SetAttributes(attribute.Int(tracing.AttrViolations, delta.NewCount()))
	d.logger.InfoContext(ctx, "observe tick",
		"schedule", cmp.Or(schedule, "all"),
		"status", r.Status.String(),
		"new_violations", delta.NewCount(),
		"resolved", len(delta.Resolved),
		"events", len(events),
	)

	if d.onReport != nil {
		d.onReport(r)
	}
	return &TickResult{Tick: n, Schedule: schedule, Report: r, Delta: delta, Events: events}, nil
}

// scope returns the part of the policy running on schedule and the IDs of
// the rules left out. An empty schedule selects every rule.
func (d *Daemon) scope(schedule string) (*policy.Document, map[int]bool) {
	doc := d.doc.Load()
	if schedule == "" {
		return doc, nil
	}
	sub := *doc
	sub.Rules = nil
	carry := make(map[int]bool)
	for _, r := range doc.Rules {
		if r.ScheduleOr(d.schedule) == schedule {
			sub.Rules = append(sub.Rules, r)
		} else {
			carry[r.ID] = true
		}
	}
	return &sub, carry
}

// cronLogger adapts slog to the cron logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
