package checkin

import (
	"strings"
	"testing"
	"time"
)

func TestRenderGroupsByOutcome(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	eligible := now.Add(3*time.Hour + 4*time.Minute)

	s := RunSummary{
		RunID:      "run-1",
		FinishedAt: now,
		Results: []SigninResult{
			{DisplayName: "Account 1", Status: StatusSuccess, BalanceBefore: f64(5.0), BalanceAfter: f64(7.5), Diff: f64(2.5)},
			{DisplayName: "Account 2", Status: StatusFailed, Message: "signin rejected"},
			{DisplayName: "Account 3", Status: StatusSkipped, NextEligible: &eligible},
			{DisplayName: "Account 4", Status: StatusFirstRun, BalanceAfter: f64(10.0)},
		},
	}

	report := Render(s)

	failed := strings.Index(report, "Account 2")
	success := strings.Index(report, "Account 1")
	firstRun := strings.Index(report, "Account 4")
	skipped := strings.Index(report, "Account 3")
	for name, idx := range map[string]int{"failed": failed, "success": success, "first run": firstRun, "skipped": skipped} {
		if idx < 0 {
			t.Fatalf("%s line missing from report:\n%s", name, report)
		}
	}
	if !(failed < success && success < firstRun && firstRun < skipped) {
		t.Fatalf("report groups out of order (failed=%d success=%d firstRun=%d skipped=%d):\n%s",
			failed, success, firstRun, skipped, report)
	}

	for _, want := range []string{
		"$5.00 → $7.50 (+2.50)",
		"first run, balance $10.00",
		"ready in 3h 4m",
		"Total: 4 | Success: 2 | Waiting: 1 | Failed: 1",
		"run-1",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}
}

func TestTitle(t *testing.T) {
	ok := RunSummary{Results: []SigninResult{{Status: StatusSuccess}, {Status: StatusFirstRun}}}
	if got := Title(ok); got != "Relay check-in: 2 ok" {
		t.Fatalf("title = %q", got)
	}
	mixed := RunSummary{Results: []SigninResult{{Status: StatusSuccess}, {Status: StatusError}}}
	if got := Title(mixed); got != "Relay check-in: 1 ok, 1 failed" {
		t.Fatalf("title = %q", got)
	}
}
