// Package observe runs the evaluation pipeline on a schedule and reports
// violations that are new since the previous tick.
//
// Each tick evaluates the current policy in observe mode, diffs the result
// against the stored state and enqueues one webhook event per rule with new
// violations. A violation is tracked by rule ID and location together with a
// fingerprint of its content; a violation that disappears and later returns
// is reported again.
//
// State is kept in memory or in SQLite through either the mattn (cgo) or the
// modernc (pure Go) driver.
package observe
