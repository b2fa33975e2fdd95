package provider

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"
)

const (
	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond
	defaultMaxBackoff  = 10 * time.Second
)

// RetryPolicy controls how provider requests are retried.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// BaseBackoff is the delay before the first retry; subsequent retries
	// double it, capped at MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// Retry5xx enables retrying server errors. Rate-limit responses (429)
	// are always retried.
	Retry5xx bool
}

// DefaultRetryPolicy returns the policy used when none is configured.
// Server errors are not retried unless Retry5xx is switched on.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  defaultMaxRetries,
		BaseBackoff: defaultBaseBackoff,
		MaxBackoff:  defaultMaxBackoff,
	}
}

// backoff computes the delay before the given retry attempt (1-based),
// exponential with a 10% jitter to avoid thundering herds.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseBackoff
	if base <= 0 {
		base = defaultBaseBackoff
	}
	max := p.MaxBackoff
	if max <= 0 {
		max = defaultMaxBackoff
	}

	d := float64(base) * math.Pow(2, float64(attempt-1))
	if d > float64(max) {
		d = float64(max)
	}
	jitter := d * 0.1 * (2*rand.Float64() - 1)
	return time.Duration(d + jitter)
}

// apiError is a non-2xx HTTP response from a provider API.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// retryableError wraps transport-level errors that should always trigger
// a retry.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// isRetryable reports whether the error should trigger another attempt
// under the given policy.
func isRetryable(err error, policy RetryPolicy) bool {
	if _, ok := err.(*retryableError); ok {
		return true
	}
	if ae, ok := err.(*apiError); ok {
		if ae.Status == http.StatusTooManyRequests {
			return true
		}
		return ae.Status >= 500 && policy.Retry5xx
	}
	return false
}

// withRetry runs fn with the policy's backoff schedule. The context is
// checked before every backoff sleep so cancellation aborts promptly.
func withRetry(ctx context.Context, policy RetryPolicy, name string, fn func() (*Response, error)) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(policy.backoff(attempt)):
			}
		}

		resp, err := fn()
		if err != nil {
			if !isRetryable(err, policy) {
				return nil, err
			}
			lastErr = err
			continue
		}
		return resp, nil
	}

	return nil, fmt.Errorf("%s API request failed after %d attempts: %w", name, policy.MaxRetries+1, lastErr)
}
