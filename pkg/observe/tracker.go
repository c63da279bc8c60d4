package observe

import (
	"encoding/hex"
	"slices"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/report"
)

// Delta is the difference between the stored state and a new report.
type Delta struct {
	// State is the state to save for the next tick.
	State map[Key]Entry

	// New holds the violations not present in the previous state, by rule.
	New map[int][]policy.Violation

	// Resolved lists keys present before and absent now.
	Resolved []Key
}

// NewCount returns the number of new violations.
func (d Delta) NewCount() int {
	n := 0
	for _, vs := range d.New {
		n += len(vs)
	}
	return n
}

// Tracker computes deltas between ticks.
type Tracker struct {
	now func() time.Time
}

// NewTracker creates a tracker. A nil clock means time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

// Diff compares cur with prev. Entries of rules that were not evaluated in
// cur (skipped, excepted or cancelled) are carried over unchanged so that a
// rule missing one tick does not re-emit its violations on the next. Entries
// of rules no longer in the policy are dropped.
func (t *Tracker) Diff(prev map[Key]Entry, cur *report.Report) Delta {
	return t.DiffPartial(prev, cur, nil)
}

// DiffPartial is Diff for a report covering part of the policy. Entries of
// the rules in carry belong to the rest of the policy and are kept as is.
func (t *Tracker) DiffPartial(prev map[Key]Entry, cur *report.Report, carry map[int]bool) Delta {
	now := t.now()
	d := Delta{
		State: make(map[Key]Entry),
		New:   make(map[int][]policy.Violation),
	}

	evaluated := make(map[int]bool, len(cur.Verdicts))
	for _, v := range cur.Verdicts {
		evaluated[v.RuleID] = isEvaluated(v.Status)
		if !evaluated[v.RuleID] {
			continue
		}

		for key, group := range groupByKey(v.Violations) {
			fp := Fingerprint(group)
			entry := Entry{Fingerprint: fp, FirstSeen: now, LastSeen: now}
			if old, ok := prev[key]; ok && old.Fingerprint == fp {
				entry.FirstSeen = old.FirstSeen
			} else {
				d.New[v.RuleID] = append(d.New[v.RuleID], group...)
			}
			d.State[key] = entry
		}
	}

	for key, old := range prev {
		if carry[key.RuleID] {
			d.State[key] = old
			continue
		}
		if ok, present := evaluated[key.RuleID]; present && !ok {
			d.State[key] = old
			continue
		}
		if _, ok := d.State[key]; !ok {
			d.Resolved = append(d.Resolved, key)
		}
	}

	for id := range d.New {
		slices.SortStableFunc(d.New[id], policy.Violation.Compare)
	}
	slices.SortFunc(d.Resolved, func(a, b Key) int { return strings.Compare(a.String(), b.String()) })
	return d
}

func isEvaluated(s report.Status) bool {
	switch s {
	case report.StatusSkipped, report.StatusExcepted, report.StatusCancelled:
		return false
	}
	return true
}

func groupByKey(vs []policy.Violation) map[Key][]policy.Violation {
	out := make(map[Key][]policy.Violation)
	for _, v := range vs {
		k := Key{RuleID: v.RuleID, Location: v.Location.String()}
		out[k] = append(out[k], v)
	}
	return out
}

// Fingerprint hashes the kind, message and content of vs. Timestamps and
// trace data are excluded.
func Fingerprint(vs []policy.Violation) string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		parts = append(parts, string(v.Kind)+"\x00"+v.Message+"\x00"+v.Content)
	}
	slices.Sort(parts)

	sum := blake3.Sum256([]byte(strings.Join(parts, "\x01")))
	return hex.EncodeToString(sum[:])
}
