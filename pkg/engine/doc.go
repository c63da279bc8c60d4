// Package engine runs a policy document against a target.
//
// A Pipeline dispatches every rule to the matcher registered for its type,
// bounds how many rules run at once, applies a per-rule timeout and resolves
// each rule's raw findings into a report.Verdict. Verdicts flow to a single
// aggregator goroutine which builds the final report.Report.
//
// # Enforcement
//
// Severity is resolved per rule in a fixed order:
//
//  1. collect rules are always clean
//  2. rules with enforcement disabled are clean
//  3. rules without violations are clean
//  4. fatal rules are critical
//  5. everything else is a warning
//
// Confidence is carried through to the report and never changes severity.
//
// # Cancellation
//
// When the run context is cancelled the pipeline stops dispatching, waits up
// to the configured grace period for in-flight rules and then cancels them.
// Rules that never ran or were cancelled are reported with status cancelled
// and the report is marked interrupted.
package engine
