package telegram

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces out requests to t.me.
type RateLimiter struct {
	// nil when unlimited
	limiter *rate.Limiter

	// pause requested by the server with Retry-After
	pausedUntil time.Time
	mu          sync.Mutex
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst. rps <= 0 disables the steady limit; server requested pauses
// are still honoured.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return &RateLimiter{}
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Wait blocks until the next request is allowed.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	waitUntil := r.pausedUntil
	r.mu.Unlock()

	if time.Now().Before(waitUntil) {
		timer := time.NewTimer(time.Until(waitUntil))
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if r.limiter == nil {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

// SetRetryAfter pauses every request for d. A shorter pause never cuts an
// active one.
func (r *RateLimiter) SetRetryAfter(d time.Duration) {
	if d <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if until := time.Now().Add(d); until.After(r.pausedUntil) {
		r.pausedUntil = until
	}
}
