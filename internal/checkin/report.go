package checkin

import (
	"fmt"
	"strings"
	"time"
)

// Title builds the one-line notification subject.
func Title(s RunSummary) string {
	ok := s.Count(StatusSuccess) + s.Count(StatusFirstRun)
	bad := s.BadCount()
	if bad > 0 {
		return fmt.Sprintf("Relay check-in: %d ok, %d failed", ok, bad)
	}
	return fmt.Sprintf("Relay check-in: %d ok", ok)
}

// Render produces the human-readable run report: failures first, then the
// accounts that earned or settled a balance, then the waiting ones, then the
// counts block. Order inside each group follows the configured account
// order, so the report is deterministic.
func Render(s RunSummary) string {
	var b strings.Builder

	for _, r := range s.Results {
		if !r.Status.Bad() {
			continue
		}
		fmt.Fprintf(&b, "❌ %s [%s]: %s\n", r.DisplayName, r.Status, r.Message)
	}

	for _, r := range s.Results {
		switch r.Status {
		case StatusSuccess:
			fmt.Fprintf(&b, "✅ %s: %s → %s (%s)\n",
				r.DisplayName, money(r.BalanceBefore), money(r.BalanceAfter), signedMoney(r.Diff))
		case StatusFirstRun:
			fmt.Fprintf(&b, "✅ %s: first run, balance %s\n", r.DisplayName, money(r.BalanceAfter))
		}
	}

	now := s.FinishedAt
	for _, r := range s.Results {
		switch r.Status {
		case StatusCooldown:
			fmt.Fprintf(&b, "⏳ %s: no reward credited, next attempt %s\n",
				r.DisplayName, remaining(r.NextEligible, now))
		case StatusSkipped:
			fmt.Fprintf(&b, "⏳ %s: in cooldown, ready in %s\n",
				r.DisplayName, remaining(r.NextEligible, now))
		}
	}

	fmt.Fprintf(&b, "\nTotal: %d | Success: %d | Waiting: %d | Failed: %d\n",
		len(s.Results),
		s.Count(StatusSuccess)+s.Count(StatusFirstRun),
		s.Count(StatusCooldown)+s.Count(StatusSkipped),
		s.BadCount())
	fmt.Fprintf(&b, "Run %s finished at %s\n", s.RunID, now.Format("2006-01-02 15:04:05"))

	return b.String()
}

func money(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("$%.2f", *v)
}

func signedMoney(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f", *v)
}

func remaining(next *time.Time, now time.Time) string {
	if next == nil {
		return "ready"
	}
	return FormatTimeRemaining(next.Sub(now))
}
