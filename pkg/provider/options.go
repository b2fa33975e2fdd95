package provider

import (
	"net/http"
	"time"

	"github.com/prompteval/prompteval/pkg/ratelimit"
)

// settings holds configuration shared by all HTTP-backed adapters.
type settings struct {
	client  *http.Client
	baseURL string
	policy  RetryPolicy
	limiter *ratelimit.TokenBucket
	headers map[string]string
}

func defaultSettings() settings {
	return settings{
		client: &http.Client{Timeout: 60 * time.Second},
		policy: DefaultRetryPolicy(),
	}
}

// Option configures an HTTP-backed provider adapter.
type Option func(*settings)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.client = c }
}

// WithBaseURL overrides the adapter's API endpoint URL.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.baseURL = url }
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *settings) { s.policy = p }
}

// WithRateLimit throttles the adapter to roughly rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(s *settings) {
		if rps > 0 {
			s.limiter = ratelimit.New(rps, rps)
		}
	}
}

// WithHeader adds a header to every request the adapter sends.
func WithHeader(key, value string) Option {
	return func(s *settings) {
		if s.headers == nil {
			s.headers = make(map[string]string)
		}
		s.headers[key] = value
	}
}

func applyOptions(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
