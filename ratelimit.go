package gsheets

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Defaults sit well below the Sheets API per-user read quota (60/min) so a
// busy host render loop cannot exhaust it.
const (
	defaultRequestsPerSecond = 4.0
	defaultBurst             = 8
	defaultBackoffSeconds    = 60
)

// rateLimiter paces remote calls with a token bucket and honours backoff
// windows recorded after 429 responses. One limiter is shared by all calls
// through a Connection.
type rateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		limiter: rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultBurst),
	}
}

// wait blocks until a request may be issued, first sitting out any recorded
// backoff window, then waiting on the token bucket.
func (r *rateLimiter) wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(retryAt)):
		}
	}

	return r.limiter.Wait(ctx)
}

// backoff records a rate-limit response. Subsequent waits pause until the
// window has passed.
func (r *rateLimiter) backoff(retryAfterSeconds int) {
	if retryAfterSeconds <= 0 {
		retryAfterSeconds = defaultBackoffSeconds
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryAt = time.Now().Add(time.Duration(retryAfterSeconds) * time.Second)
}
