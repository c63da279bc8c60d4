package observe

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/report"
)

// Event is the webhook payload for one rule with new violations.
type Event struct {
	RuleID         int       `json:"rule_id"`
	RuleName       string    `json:"rule_name"`
	Severity       string    `json:"severity"`
	ViolationCount int       `json:"violation_count"`
	Locations      []string  `json:"locations"`
	Timestamp      time.Time `json:"timestamp"`
	IdempotencyKey string    `json:"idempotency_key"`
	RunID          string    `json:"run_id"`
}

// NewEvents builds one event per rule in fresh, ordered by rule ID.
func NewEvents(r *report.Report, fresh map[int][]policy.Violation, now time.Time) []Event {
	events := make([]Event, 0, len(fresh))
	for _, v := range r.Verdicts {
		vs, ok := fresh[v.RuleID]
		if !ok || len(vs) == 0 {
			continue
		}
		locations := locationsOf(vs)
		events = append(events, Event{
			RuleID:         v.RuleID,
			RuleName:       v.RuleName,
			Severity:       v.Severity.String(),
			ViolationCount: len(vs),
			Locations:      locations,
			Timestamp:      now,
			IdempotencyKey: IdempotencyKey(v.RuleID, locations),
			RunID:          r.RunID,
		})
	}
	return events
}

func locationsOf(vs []policy.Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Location.String())
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// IdempotencyKey returns "<ruleID>-" followed by the blake3 hash of the
// sorted locations. The same set of locations always yields the same key.
func IdempotencyKey(ruleID int, locations []string) string {
	sorted := slices.Clone(locations)
	slices.Sort(sorted)

	sum := blake3.Sum256([]byte(strings.Join(sorted, "\n")))
	return fmt.Sprintf("%d-%s", ruleID, hex.EncodeToString(sum[:]))
}
