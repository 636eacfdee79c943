package retry

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate for outbound KB gateway calls (kb.HTTPClient is
// its only user; transport sends are not rate-limited here), replacing the teacher's hand-rolled channel token bucket with the ecosystem
// equivalent the teacher's go.mod already carries as a direct dependency.
type Limiter struct {
	l *rate.Limiter
}

// NewLimiter builds a limiter allowing rps sustained requests per second with a burst
// capacity of burst (minimum 1).
func NewLimiter(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{l: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.l.Wait(ctx)
}
