// Package ratelimit implements a token bucket limiter used to throttle
// provider API calls.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a token bucket rate limiter. A zero-value bucket is not
// usable; construct one with New.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// New creates a token bucket that allows roughly rps requests per second
// with bursts up to capacity.
func New(rps float64, capacity float64) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: rps,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(tb.retryInterval()):
		}
	}
}

// Allow consumes a token if one is available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1.0 {
		tb.tokens--
		return true
	}
	return false
}

// retryInterval is how long Wait sleeps between Allow attempts: a quarter
// of the per-token refill time, bounded to keep polling cheap.
func (tb *TokenBucket) retryInterval() time.Duration {
	tb.mu.Lock()
	rate := tb.refillRate
	tb.mu.Unlock()

	if rate <= 0 {
		return 100 * time.Millisecond
	}
	interval := time.Duration(float64(time.Second) / rate / 4)
	if interval < 5*time.Millisecond {
		interval = 5 * time.Millisecond
	}
	if interval > 250*time.Millisecond {
		interval = 250 * time.Millisecond
	}
	return interval
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)

	tb.tokens += elapsed.Seconds() * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}
