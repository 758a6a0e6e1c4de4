// Package logging configures the process-wide zerolog logger and provides
// run/account scoped sub-loggers so every line of a concurrent run can be
// attributed to the account that produced it.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Setup initializes the global logging defaults and returns the root logger.
// Console output goes to stderr; level comes from CHECKIN_LOG_LEVEL
// (debug|info|warn|error, default info).
func Setup() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(levelFromEnv())

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).With().Timestamp().Logger()
}

// ForRun returns a logger tagged with the run identifier.
func ForRun(base zerolog.Logger, runID string) zerolog.Logger {
	return base.With().Str("run_id", runID).Logger()
}

// ForAccount returns a logger tagged with the account display name and
// provider. All per-account pipeline stages log through this.
func ForAccount(base zerolog.Logger, account, provider string) zerolog.Logger {
	return base.With().Str("account", account).Str("provider", provider).Logger()
}

func levelFromEnv() zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("CHECKIN_LOG_LEVEL"))) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
