package checkin

import (
	"fmt"
	"time"
)

// cooldownWindow is how long after a decisive signin an account stays
// ineligible.
const cooldownWindow = 24 * time.Hour

// NextEligibleTime returns when the account may attempt again.
func NextEligibleTime(lastSignin time.Time) time.Time {
	return lastSignin.Add(cooldownWindow)
}

// IsInCooldown reports whether now falls inside the cooldown window opened
// by lastSignin.
func IsInCooldown(lastSignin, now time.Time) bool {
	return now.Before(NextEligibleTime(lastSignin))
}

// FormatTimeRemaining renders a duration as "2d 3h 4m", "3h 4m" or "4m",
// and "ready" once it is non-positive.
func FormatTimeRemaining(d time.Duration) string {
	if d <= 0 {
		return "ready"
	}

	minutes := int(d.Minutes())
	days := minutes / (24 * 60)
	hours := (minutes / 60) % 24
	mins := minutes % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
