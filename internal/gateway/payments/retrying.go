package payment

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v74"

	"service-delivery-tracking/internal/logx"
)

type verifier interface {
	Verify(ctx context.Context, reference string) (Payment, error)
}

type counter interface {
	Inc()
}

// RetryConfig describes RetryingVerifier behaviour.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryingVerifier retries transient provider failures.
type RetryingVerifier struct {
	next    verifier
	logger  logx.Logger
	retries counter
	cfg     RetryConfig
}

// NewRetryingVerifier wraps next; it returns nil when next is nil.
func NewRetryingVerifier(next verifier, logger logx.Logger, retries counter, cfg RetryConfig) *RetryingVerifier {
	if next == nil {
		return nil
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &RetryingVerifier{next: next, logger: logger, retries: retries, cfg: cfg}
}

// Verify calls the wrapped verifier until it succeeds, fails permanently or
// runs out of attempts.
func (g *RetryingVerifier) Verify(ctx context.Context, reference string) (Payment, error) {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		p, err := g.next.Verify(ctx, reference)
		if err == nil {
			return p, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == g.cfg.MaxAttempts || !isRetryable(err) {
			return p, lastErr
		}

		delay := backoff(g.cfg.BaseDelay, g.cfg.MaxDelay, attempt)
		if g.retries != nil {
			g.retries.Inc()
		}
		g.logger.Warn("payment gateway retry",
			logx.String("method", "Verify"),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
		if !sleepWithContext(ctx, delay) {
			break
		}
	}
	return Payment{}, lastErr
}

// isRetryable reports rate limiting, provider 5xx and network failures.
func isRetryable(err error) bool {
	var se *stripe.Error
	if errors.As(err, &se) {
		return se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= http.StatusInternalServerError
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
