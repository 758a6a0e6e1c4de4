// Package httpx wraps outbound HTTP calls with the retry policy the signin
// pipeline uses: bounded exponential backoff for transient transport errors
// only. HTTP error statuses, malformed payloads and business rejections are
// never retried here; they belong to the dispatcher's fallback logic.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// DefaultTimeout bounds a single outbound request.
const DefaultTimeout = 30 * time.Second

// RetryPolicy retries an operation on transient transport errors.
// The zero value is not usable; call DefaultRetryPolicy.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the backoff before the second attempt; it doubles per
	// attempt, clamped at MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// sleep is replaced in tests to observe the schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy is 3 total attempts with 2s/4s backoff (clamped at 10s).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
}

// Do runs op until it succeeds, fails terminally, or the attempt budget is
// spent. On exhaustion the last transient error is returned to the caller,
// which maps it to a terminal per-account error.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, p.delay(attempt-1)); err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("giving up after %d attempts: %w", p.MaxAttempts, lastErr)
}

// delay returns the backoff after the given completed attempt (1-based).
func (p RetryPolicy) delay(completed int) time.Duration {
	d := p.BaseDelay << (completed - 1)
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// IsTransient reports whether err is a transport-level failure worth
// retrying: timeouts, connection refused/reset, DNS hiccups. Anything the
// server actually answered is not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout || dnsErr.IsNotFound
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// http.Client wraps everything in url.Error; look at the cause.
		if urlErr.Timeout() {
			return true
		}
		msg := urlErr.Err.Error()
		return strings.Contains(msg, "connection refused") ||
			strings.Contains(msg, "connection reset") ||
			strings.Contains(msg, "EOF")
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
