// Package checkin is the orchestration core: it decides which accounts are
// eligible, runs their signin attempts through the dispatcher, judges success
// from observed balance movement, and aggregates one run into a summary that
// drives persistence, notification and the process exit code.
package checkin

import (
	"time"

	"github.com/pysugar/relay-checkin/internal/store"
)

// Status is the terminal state of one account in one run.
type Status string

const (
	// StatusSuccess means the balance moved up after the attempt.
	StatusSuccess Status = "SUCCESS"

	// StatusFirstRun means the attempt ran with no prior balance baseline.
	StatusFirstRun Status = "FIRST_RUN"

	// StatusCooldown means the attempt ran but the balance did not increase:
	// the reward was already granted today, or normal consumption ate it.
	StatusCooldown Status = "COOLDOWN"

	// StatusSkipped means the cooldown window made the account ineligible;
	// no network call was issued.
	StatusSkipped Status = "SKIPPED"

	// StatusFailed means the attempt ran and failed recoverably (network,
	// site defense, provider rejection).
	StatusFailed Status = "FAILED"

	// StatusError means a fatal per-account fault: dead session, bad config,
	// exhausted fallbacks, or an unexpected fault downgraded at the boundary.
	StatusError Status = "ERROR"
)

// Bad reports whether the status counts against the process exit code.
func (s Status) Bad() bool { return s == StatusFailed || s == StatusError }

// Decisive reports whether the status settles the account's record for
// cooldown purposes.
func (s Status) Decisive() bool {
	return s == StatusSuccess || s == StatusFirstRun || s == StatusCooldown
}

// SigninResult is the immutable outcome of one account in one run. It is
// constructed once and never patched afterwards.
type SigninResult struct {
	AccountKey    string
	DisplayName   string
	Status        Status
	BalanceBefore *float64
	BalanceAfter  *float64
	Diff          *float64
	Message       string

	// NextEligible is set for SKIPPED and COOLDOWN results.
	NextEligible *time.Time

	// NewRecord is attached to decisive statuses and merged into the
	// history map after the run.
	NewRecord *store.Record
}

// RunSummary aggregates one complete run.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []SigninResult

	BalanceChanged bool
	FirstRun       bool
}

// Count returns how many results ended in the given status.
func (s RunSummary) Count(status Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// BadCount returns how many results count against the exit code.
func (s RunSummary) BadCount() int {
	n := 0
	for _, r := range s.Results {
		if r.Status.Bad() {
			n++
		}
	}
	return n
}

// NeedsNotification reports whether this run is worth a push: anything
// failed, anything succeeded, the balance fingerprint moved, or this is the
// first run ever.
func (s RunSummary) NeedsNotification() bool {
	if s.BalanceChanged || s.FirstRun {
		return true
	}
	for _, r := range s.Results {
		if r.Status.Bad() || r.Status == StatusSuccess || r.Status == StatusFirstRun {
			return true
		}
	}
	return false
}
