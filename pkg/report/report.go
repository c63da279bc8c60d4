package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/xfhg/intercept/pkg/policy"
)

// Summary counts verdicts and violations.
type Summary struct {
	Rules         int `json:"rules"`
	Clean         int `json:"clean"`
	Warning       int `json:"warning"`
	Critical      int `json:"critical"`
	Skipped       int `json:"skipped"`
	Errors        int `json:"errors"`
	Violations    int `json:"violations"`
	Informational int `json:"informational"`
}

// Report is the outcome of one run.
type Report struct {
	RunID       string    `json:"run_id"`
	Policy      string    `json:"policy,omitempty"`
	Environment string    `json:"environment,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Interrupted bool      `json:"interrupted"`
	Status      Severity  `json:"status"`
	ExitCode    int       `json:"exit_code"`
	Message     string    `json:"message,omitempty"`
	Banner      string    `json:"-"`
	Summary     Summary   `json:"summary"`
	Verdicts    []Verdict `json:"verdicts"`
}

// StripVolatile zeroes the fields that differ between runs over an
// unchanged target: run ID, timestamps and durations.
func (r *Report) StripVolatile() *Report {
	r.RunID = ""
	r.StartedAt = time.Time{}
	r.FinishedAt = time.Time{}
	for i := range r.Verdicts {
		r.Verdicts[i].Duration = 0
		for j := range r.Verdicts[i].Violations {
			r.Verdicts[i].Violations[j].Timestamp = time.Time{}
		}
	}
	return r
}

// Verdict returns the verdict for a rule ID.
func (r *Report) Verdict(id int) (Verdict, bool) {
	i, ok := slices.BinarySearchFunc(r.Verdicts, id, func(v Verdict, id int) int {
		return cmp.Compare(v.RuleID, id)
	})
	if !ok {
		return Verdict{}, false
	}
	return r.Verdicts[i], true
}

// Meta describes a run for the aggregator.
type Meta struct {
	RunID       string
	Environment string
	StartedAt   time.Time
	FinishedAt  time.Time
	Interrupted bool
}

// Aggregator accumulates verdicts. It is not safe for concurrent use; the
// engine feeds it from a single goroutine.
type Aggregator struct {
	doc      *policy.Document
	verdicts map[int]Verdict
}

// NewAggregator creates an aggregator for doc.
func NewAggregator(doc *policy.Document) *Aggregator {
	return &Aggregator{doc: doc, verdicts: make(map[int]Verdict)}
}

// Add records v. A later verdict for the same rule replaces the earlier one
// only when it is more severe, keeping Add order-independent.
func (a *Aggregator) Add(v Verdict) {
	v.normalize()
	if prev, ok := a.verdicts[v.RuleID]; ok && !moreSevere(v, prev) {
		return
	}
	a.verdicts[v.RuleID] = v
}

// Merge folds o into a.
func (a *Aggregator) Merge(o *Aggregator) {
	for _, v := range o.verdicts {
		a.Add(v)
	}
}

// Len returns the number of verdicts recorded.
func (a *Aggregator) Len() int {
	return len(a.verdicts)
}

func moreSevere(v, prev Verdict) bool {
	return cmp.Or(
		cmp.Compare(v.Severity, prev.Severity),
		cmp.Compare(len(v.Violations), len(prev.Violations)),
		cmp.Compare(v.Status, prev.Status),
	) > 0
}

// Report builds the final report.
func (a *Aggregator) Report(meta Meta) *Report {
	r := &Report{
		RunID:       meta.RunID,
		Environment: meta.Environment,
		StartedAt:   meta.StartedAt,
		FinishedAt:  meta.FinishedAt,
		Interrupted: meta.Interrupted,
		Verdicts:    make([]Verdict, 0, len(a.verdicts)),
	}
	if a.doc != nil {
		r.Policy = a.doc.Path
		r.Banner = a.doc.Banner
	}

	for _, v := range a.verdicts {
		r.Verdicts = append(r.Verdicts, v)
	}
	slices.SortFunc(r.Verdicts, func(x, y Verdict) int { return cmp.Compare(x.RuleID, y.RuleID) })

	status := SeverityClean
	for _, v := range r.Verdicts {
		status = max(status, v.Severity)
		r.Summary.add(v)
	}
	if r.Interrupted {
		status = max(status, SeverityWarning)
	}
	r.Status = status
	r.ExitCode = status.ExitCode()
	if r.Interrupted {
		r.ExitCode = ExitInterrupted
	}
	r.Message = a.exitMessage(status)
	return r
}

func (a *Aggregator) exitMessage(s Severity) string {
	if a.doc == nil {
		return ""
	}
	switch s {
	case SeverityCritical:
		return a.doc.ExitCritical
	case SeverityWarning:
		return a.doc.ExitWarning
	default:
		return a.doc.ExitClean
	}
}

func (s *Summary) add(v Verdict) {
	s.Rules++
	switch v.Status {
	case StatusSkipped, StatusExcepted, StatusCancelled:
		s.Skipped++
	case StatusError:
		s.Errors++
	}
	switch v.Severity {
	case SeverityCritical:
		s.Critical++
	case SeverityWarning:
		s.Warning++
	default:
		s.Clean++
	}
	for _, x := range v.Violations {
		if x.Kind == policy.KindInformational {
			s.Informational++
		} else {
			s.Violations++
		}
	}
}
