package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/xfhg/intercept/pkg/matcher"
	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/report"
	"github.com/xfhg/intercept/pkg/telemetry/logging"
	"github.com/xfhg/intercept/pkg/telemetry/tracing"
	"github.com/xfhg/intercept/pkg/walker"
)

// dispatch is the state of one run's rule dispatch.
type dispatch struct {
	pipeline *Pipeline
	doc      *policy.Document
	src      matcher.Source
	mode     Mode
	runID    string
	out      chan<- report.Verdict
}

// run sends exactly one verdict per rule of the document to d.out.
func (d *dispatch) run(ctx context.Context) {
	p := d.pipeline

	// In-flight rules outlive ctx by the grace period.
	evalCtx, hardCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer hardCancel()

	sem := semaphore.NewWeighted(int64(p.cfg.Workers))
	var g errgroup.Group

	for i := range d.doc.Rules {
		rule := &d.doc.Rules[i]

		if ctx.Err() != nil {
			d.out <- d.cancelled(rule, "run cancelled before dispatch")
			continue
		}
		if v, skip := d.preflight(rule); skip {
			d.out <- v
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			d.out <- d.cancelled(rule, "run cancelled before dispatch")
			continue
		}

		g.Go(func() error {
			defer sem.Release(1)
			d.out <- d.evaluate(evalCtx, rule)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
	}

	p.logger.WarnContext(ctx, "run cancelled, waiting for in-flight rules",
		"grace_period", p.cfg.GracePeriod,
	)
	timer := time.NewTimer(p.cfg.GracePeriod)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		p.logger.WarnContext(ctx, "grace period elapsed, cancelling in-flight rules")
		hardCancel()
		<-done
	}
}

// preflight decides whether rule is evaluated at all. Skipped rules get a
// clean verdict with zero violations.
func (d *dispatch) preflight(rule *policy.Rule) (report.Verdict, bool) {
	p := d.pipeline

	var status report.Status
	var reason string
	switch {
	case rule.Type == policy.TypeRuntime && d.mode == ModeAudit:
		status, reason = report.StatusSkipped, "runtime rules are evaluated by observe"
	case !rule.MatchesEnvironment(p.env):
		status, reason = report.StatusSkipped, fmt.Sprintf("environment %q does not match %q", p.env, rule.Environment)
	case !rule.HasAnyTag(p.cfg.TagsAny):
		status, reason = report.StatusSkipped, "no tag in tags_any"
	case !rule.HasAllTags(p.cfg.TagsAll):
		status, reason = report.StatusSkipped, "missing tags from tags_all"
	case d.doc.IsExcepted(rule.ID) && !rule.Enforcement && !p.cfg.NoExceptions:
		status, reason = report.StatusExcepted, d.doc.ExceptionMessage
		if reason == "" {
			reason = "rule deactivated by exception"
		}
	default:
		return report.Verdict{}, false
	}

	v := report.NewVerdict(rule)
	v.Status = status
	v.Reason = reason
	p.logger.Debug("rule not evaluated",
		"rule_id", rule.ID,
		"status", string(status),
		"reason", reason,
	)
	return v, true
}

func (d *dispatch) cancelled(rule *policy.Rule, reason string) report.Verdict {
	v := report.NewVerdict(rule)
	v.Status = report.StatusCancelled
	v.Reason = reason
	return v
}

type outcome struct {
	res matcher.Result
	err error
}

// evaluate runs one rule under the per-rule timeout and resolves its verdict.
func (d *dispatch) evaluate(evalCtx context.Context, rule *policy.Rule) report.Verdict {
	p := d.pipeline
	start := time.Now()

	ctx := logging.WithRuleID(evalCtx, rule.ID)
	ctx, span := p.tracer.Start(ctx, tracing.SpanRule, trace.WithAttributes(
		tracing.RuleAttributes(d.runID, rule.ID, string(rule.Type))...,
	))
	defer span.End()

	v := report.NewVerdict(rule)

	m, ok := p.registry.Lookup(rule)
	if !ok {
		err := &EvaluationError{RuleID: rule.ID, Type: string(rule.EffectiveType()), Cause: ErrNoMatcher}
		v.Violations = append(v.Violations, d.ruleError(rule, err))
		return d.finish(ctx, span, rule, v, start, err)
	}

	rctx, cancel := context.WithTimeout(ctx, p.cfg.RuleTimeout)
	defer cancel()

	// The matcher runs in its own goroutine so a stuck evaluation can be
	// abandoned at the deadline.
	results := make(chan outcome, 1)
	go func() {
		res, err := m.Evaluate(rctx, rule, d.src)
		results <- outcome{res: res, err: err}
	}()

	var o outcome
	select {
	case o = <-results:
	case <-rctx.Done():
		o.err = rctx.Err()
	}

	switch {
	case o.err == nil:
	case evalCtx.Err() != nil:
		v = d.cancelled(rule, "cancelled after grace period")
		return d.finish(ctx, span, rule, v, start, ErrCancelled)
	case errors.Is(rctx.Err(), context.DeadlineExceeded):
		err := &TimeoutError{RuleID: rule.ID, Timeout: p.cfg.RuleTimeout}
		o.res.Violations = append(o.res.Violations, d.ruleError(rule, err))
		o.err = err
	default:
		err := &EvaluationError{RuleID: rule.ID, Type: string(rule.EffectiveType()), Cause: o.err}
		o.res.Violations = append(o.res.Violations, d.ruleError(rule, err))
		o.err = err
	}

	v.Violations = append(v.Violations, o.res.Violations...)
	v.Artifacts = o.res.Artifacts
	d.applySkips(rule, &v, o.res.Skipped)

	if rule.IsInformational() {
		for i := range v.Violations {
			if v.Violations[i].Kind == policy.KindPolicy {
				v.Violations[i].Kind = policy.KindInformational
			}
		}
	}
	if p.redact {
		redactViolations(rule, v.Violations)
	}

	return d.finish(ctx, span, rule, v, start, o.err)
}

// applySkips records walk skips. Access failures of fatal rules become
// walk-error violations.
func (d *dispatch) applySkips(rule *policy.Rule, v *report.Verdict, skipped []*walker.WalkError) {
	for _, we := range skipped {
		v.Skipped = append(v.Skipped, fmt.Sprintf("%s (%v)", we.Path, we.Err))
		if !rule.Fatal || we.Filtered() {
			continue
		}
		v.Violations = append(v.Violations, policy.Violation{
			RuleID:    rule.ID,
			Kind:      policy.KindWalkError,
			Location:  policy.Location{Path: we.Path},
			Message:   we.Error(),
			Timestamp: d.pipeline.now(),
		})
	}
}

func (d *dispatch) ruleError(rule *policy.Rule, err error) policy.Violation {
	return policy.Violation{
		RuleID:    rule.ID,
		Kind:      policy.KindEvaluationError,
		Location:  policy.Location{Path: matcher.RootPath},
		Message:   err.Error(),
		Timestamp: d.pipeline.now(),
	}
}

// finish resolves severity and status and records telemetry.
func (d *dispatch) finish(ctx context.Context, span trace.Span, rule *policy.Rule, v report.Verdict, start time.Time, err error) report.Verdict {
	p := d.pipeline
	v.Duration = time.Since(start)

	if v.Status != report.StatusCancelled {
		v.Severity = Enforce(rule, v.Violations)
		v.Status = statusOf(v)
	}

	p.metrics.RecordRule(string(rule.Type), v.Severity.String(), v.CountByKind(), v.Duration)
	tracing.RecordOutcome(span, string(v.Status), v.Severity.String(), len(v.Violations))
	tracing.SetError(span, err)

	attrs := []any{
		"status", string(v.Status),
		"severity", v.Severity.String(),
		"violations", len(v.Violations),
		"artifacts", v.Artifacts,
		"duration", v.Duration,
	}
	switch {
	case err != nil:
		p.logger.WarnContext(ctx, "rule evaluation failed", append(attrs, "error", err)...)
	default:
		p.logger.DebugContext(ctx, "rule evaluated", attrs...)
	}
	return v
}
