package observe

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/report"
)

func TestIdempotencyKey(t *testing.T) {
	k1 := IdempotencyKey(7, []string{"b.txt:2", "a.txt:1"})
	k2 := IdempotencyKey(7, []string{"a.txt:1", "b.txt:2"})

	if k1 != k2 {
		t.Errorf("key depends on location order: %s != %s", k1, k2)
	}
	if !strings.HasPrefix(k1, "7-") || len(k1) != len("7-")+64 {
		t.Errorf("key = %q, want 7-<64 hex chars>", k1)
	}
	if k1 == IdempotencyKey(8, []string{"a.txt:1", "b.txt:2"}) {
		t.Error("key ignores rule ID")
	}
	if k1 == IdempotencyKey(7, []string{"a.txt:1"}) {
		t.Error("key ignores locations")
	}
}

func TestNewEvents(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	r := &report.Report{
		RunID: "run-1",
		Verdicts: []report.Verdict{
			{RuleID: 1, RuleName: "creds", Severity: report.SeverityCritical},
			{RuleID: 2, RuleName: "todo", Severity: report.SeverityWarning},
		},
	}
	fresh := map[int][]policy.Violation{
		2: {
			violation(2, "b.txt", 3, "TODO"),
			violation(2, "a.txt", 1, "TODO"),
			violation(2, "a.txt", 1, "TODO again"),
		},
	}

	events := NewEvents(r, fresh, now)

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.RuleID != 2 || e.RuleName != "todo" || e.Severity != "warning" || e.RunID != "run-1" {
		t.Errorf("event = %+v", e)
	}
	if e.ViolationCount != 3 {
		t.Errorf("violation_count = %d, want 3", e.ViolationCount)
	}
	if !slices.Equal(e.Locations, []string{"a.txt:1", "b.txt:3"}) {
		t.Errorf("locations = %v", e.Locations)
	}
	if e.IdempotencyKey != IdempotencyKey(2, e.Locations) {
		t.Errorf("idempotency key = %q", e.IdempotencyKey)
	}
	if !e.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v", e.Timestamp)
	}
}
