// Package retry implements the transient-error retry policy from §5/§7: exponential
// backoff fixed at 1s/2s/4s (three retries after the first attempt), honoring a server-directed
// Retry-After when one is extracted from the error, and a token-bucket rate limiter for
// outbound transport/KB calls.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Schedule is the spec's fixed backoff ladder; index i is the delay before retry i+1.
var Schedule = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// WaitExtractor inspects an error and, if it encodes a server-directed wait (e.g. a
// transport's rate-limit retry-after), returns the duration to honor instead of the
// fixed schedule.
type WaitExtractor func(err error) (time.Duration, bool)

// Retryable marks an error as eligible for retry; non-retryable errors (permanent,
// validation, not-found) return immediately from Do.
type Retryable interface {
	Retryable() bool
}

// Do runs fn up to len(Schedule)+1 times, sleeping per Schedule between attempts unless
// a WaitExtractor recognizes the error and supplies a different wait. fn's error is
// inspected for Retryable(); if present and false, Do returns immediately without
// exhausting the schedule.
func Do(ctx context.Context, fn func() error, extractors ...WaitExtractor) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var r Retryable
		if errors.As(lastErr, &r) && !r.Retryable() {
			return lastErr
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}

		if attempt >= len(Schedule) {
			return lastErr
		}
		wait, fromServer := extractWait(lastErr, extractors)
		if !fromServer {
			wait = jittered(Schedule[attempt])
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func extractWait(err error, extractors []WaitExtractor) (time.Duration, bool) {
	for _, ex := range extractors {
		if ex == nil {
			continue
		}
		if d, ok := ex(err); ok {
			return d, true
		}
	}
	return 0, false
}

// jittered adds +/-15% jitter to avoid synchronized retries across components.
func jittered(d time.Duration) time.Duration {
	factor := 0.85 + rand.Float64()*0.3
	return time.Duration(float64(d) * factor)
}

// NewExponentialBackOff builds a cenkalti/backoff/v4 policy matching Schedule's shape,
// for callers that keep their own retry-count bookkeeping rather than using Do's
// immediate-sleep loop. No package in this module calls it at present.
func NewExponentialBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = 4 * time.Second
	b.MaxElapsedTime = 0 // caller owns the attempt-count ceiling, not elapsed time
	return b
}
