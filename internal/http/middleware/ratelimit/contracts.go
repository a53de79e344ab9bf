package ratelimit

import "time"

// Limiter decides whether one more request for key fits the budget.
type Limiter interface {
	Allow(key string) bool
}

// Clock provides current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns current time.
func (SystemClock) Now() time.Time { return time.Now() }

// AllowAll is the limiter used when rate limiting is disabled.
type AllowAll struct{}

// Allow always returns true.
func (AllowAll) Allow(string) bool { return true }

// retryHinter is implemented by limiters that know when a rejected key
// regains a token.
type retryHinter interface {
	RetryAfter() time.Duration
}
