package analyzer

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum interval between calls to one provider.
// One instance per provider identity; the mutex exists for a possible
// future concurrent-batch mode, the current orchestrator calls it from a
// single goroutine.
type RateLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastCall    time.Time
}

// NewRateLimiter derives the minimum spacing from a requests-per-minute
// budget. rpm <= 0 disables throttling.
func NewRateLimiter(rpm int) *RateLimiter {
	var interval time.Duration
	if rpm > 0 {
		interval = time.Minute / time.Duration(rpm)
	}
	return &RateLimiter{minInterval: interval}
}

// Throttle waits out the remainder of the minimum interval, then runs op.
// The timestamp is taken before op starts so the call's own duration does
// not widen the enforced spacing.
func (r *RateLimiter) Throttle(ctx context.Context, op func() error) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return op()
}

func (r *RateLimiter) wait(ctx context.Context) error {
	r.mu.Lock()
	var sleep time.Duration
	if r.minInterval > 0 && !r.lastCall.IsZero() {
		if elapsed := time.Since(r.lastCall); elapsed < r.minInterval {
			sleep = r.minInterval - elapsed
		}
	}
	r.mu.Unlock()

	if sleep > 0 {
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	r.lastCall = time.Now()
	r.mu.Unlock()
	return nil
}

// Reset clears the last-call timestamp. Test isolation only.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	r.lastCall = time.Time{}
	r.mu.Unlock()
}
