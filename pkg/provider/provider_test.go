package provider

import "time"

// testPolicy returns a retry policy with near-zero backoff so retry tests
// run fast.
func testPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:  maxRetries,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
		Retry5xx:    true,
	}
}

func strPtr(s string) *string { return &s }
