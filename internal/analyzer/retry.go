package analyzer

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/saikrishnan/promptlens/internal/llm"
)

// RetryPolicy configures the classified exponential-backoff executor.
// Stateless and reusable across calls.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Retryable reports whether the error is worth another attempt.
	Retryable func(error) bool
}

// DefaultRetryPolicy retries transient provider errors, network errors and
// timeouts. Fatal provider errors (auth, malformed responses) are never
// retried.
func DefaultRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		Retryable:  IsRetryable,
	}
}

// IsRetryable classifies errors into the transient/fatal taxonomy.
func IsRetryable(err error) bool {
	var fatal *llm.FatalError
	if errors.As(err, &fatal) {
		return false
	}

	var transient *llm.TransientError
	if errors.As(err, &transient) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return false
}

// WithRetry runs op until it succeeds, a fatal error occurs, or the retry
// budget is spent. The op is attempted MaxRetries+1 times in the worst case.
// The last error is returned unchanged so callers can still branch on its
// type.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, op func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !policy.Retryable(err) {
			return zero, err
		}
		if attempt == policy.MaxRetries {
			break
		}

		select {
		case <-time.After(backoffDelay(policy, attempt)):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}

// backoffDelay computes min(base * 2^attempt, max).
func backoffDelay(policy RetryPolicy, attempt int) time.Duration {
	delay := policy.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= policy.MaxDelay {
			return policy.MaxDelay
		}
	}
	if delay > policy.MaxDelay {
		return policy.MaxDelay
	}
	return delay
}
