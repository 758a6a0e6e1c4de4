package checkin

import "math"

// AnomalyDropThreshold is the balance decrease (in display units) beyond
// which a COOLDOWN outcome is logged as an anomaly. Drops inside the
// threshold are treated as normal consumption.
const AnomalyDropThreshold = 5.0

// AnalyzeBalance maps an observed balance pair to a status and a diff.
// No baseline means a first run; a positive diff means the reward landed;
// anything else collapses to COOLDOWN. Failure statuses never come from
// balances alone, only from dispatch faults.
func AnalyzeBalance(after float64, before *float64) (Status, *float64) {
	if before == nil {
		return StatusFirstRun, nil
	}
	diff := math.Round((after-*before)*100) / 100
	if diff > 0 {
		return StatusSuccess, &diff
	}
	return StatusCooldown, &diff
}

// AnomalousDrop reports whether the diff is a decrease large enough to
// warrant a warning alongside the COOLDOWN outcome.
func AnomalousDrop(diff *float64) bool {
	return diff != nil && *diff < -AnomalyDropThreshold
}
