package util

import "fmt"

// DefaultErrMaxLen is the default maximum length for error text carried into
// results and notifications. Full detail is still available in the run log.
const DefaultErrMaxLen = 120

// Truncate shortens long strings for result fields and log lines.
// This keeps notification bodies readable when an upstream error dumps a
// whole HTML challenge page into the message.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}

// TruncateErr is a convenience wrapper for Truncate that accepts an error
// and uses DefaultErrMaxLen. Returns "" for a nil error.
func TruncateErr(err error) string {
	if err == nil {
		return ""
	}
	return Truncate(err.Error(), DefaultErrMaxLen)
}
