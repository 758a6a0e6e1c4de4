package dispatch

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every way a signin trigger can fail. The set is
// closed; callers switch on it exhaustively instead of parsing messages.
type ErrorKind string

const (
	// ErrNone means no error.
	ErrNone ErrorKind = ""

	// ErrTransient is a transport failure that survived the retry budget.
	ErrTransient ErrorKind = "transient"

	// ErrSiteDefense is an unparsable response, the usual signature of an
	// anti-bot challenge page. Triggers strategy fallback, not terminal by
	// itself.
	ErrSiteDefense ErrorKind = "site_defense_blocked"

	// ErrRejected is a well-formed business rejection of the signin call.
	// Like ErrSiteDefense it triggers fallback before becoming terminal.
	ErrRejected ErrorKind = "signin_rejected"

	// ErrSessionInvalid means the account session itself is dead. Fatal per
	// account, never retried; the user must refresh credentials.
	ErrSessionInvalid ErrorKind = "session_invalid"

	// ErrConfig is a malformed or unknown account/provider configuration.
	ErrConfig ErrorKind = "config_error"

	// ErrNoFallback means the strategy chain was exhausted.
	ErrNoFallback ErrorKind = "no_fallback_available"

	// ErrUnexpected is anything else, downgraded at the account boundary.
	ErrUnexpected ErrorKind = "unexpected"
)

// Fatal reports whether the kind must stop the fallback chain immediately.
func (k ErrorKind) Fatal() bool {
	return k == ErrSessionInvalid || k == ErrConfig || k == ErrNoFallback
}

// fallbackable reports whether the kind invites the next strategy in the
// chain rather than a terminal result.
func (k ErrorKind) fallbackable() bool {
	return k == ErrSiteDefense || k == ErrRejected
}

// Error is the typed error carried between session, dispatcher and
// processor. It keeps the original cause; nothing is silently discarded.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the ErrorKind from err, defaulting to ErrUnexpected for
// untyped errors and ErrNone for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrUnexpected
}
