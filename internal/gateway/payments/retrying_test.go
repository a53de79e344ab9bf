package payment

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v74"

	"service-delivery-tracking/internal/apperr"
	testlog "service-delivery-tracking/internal/testutil"
)

type fakeVerifier struct {
	fn func(context.Context, string) (Payment, error)
}

func (f *fakeVerifier) Verify(ctx context.Context, ref string) (Payment, error) {
	return f.fn(ctx, ref)
}

type counterStub struct{ n int64 }

func (c *counterStub) Inc() { atomic.AddInt64(&c.n, 1) }
func (c *counterStub) Count() int64 {
	return atomic.LoadInt64(&c.n)
}

func TestRetryingVerifier_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	rec := testlog.New()

	var calls int32
	next := &fakeVerifier{
		fn: func(context.Context, string) (Payment, error) {
			switch atomic.AddInt32(&calls, 1) {
			case 1:
				return Payment{}, &stripe.Error{HTTPStatusCode: http.StatusTooManyRequests}
			case 2:
				return Payment{}, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
			default:
				return Payment{Reference: "pi_1", Amount: 10}, nil
			}
		},
	}
	ctr := &counterStub{}
	g := NewRetryingVerifier(next, rec.Logger(), ctr, RetryConfig{MaxAttempts: 5})
	if g == nil {
		t.Fatalf("expected non-nil verifier")
	}

	got, err := g.Verify(context.Background(), "pi_1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Reference != "pi_1" {
		t.Fatalf("unexpected payment: %#v", got)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if ctr.Count() != 2 {
		t.Fatalf("expected 2 retries, got %d", ctr.Count())
	}
	if n := len(rec.Find("payment gateway retry")); n != 2 {
		t.Fatalf("expected 2 retry logs, got %d", n)
	}
}

func TestRetryingVerifier_NoRetryOnPermanent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"not paid", apperr.ErrPaymentRequired},
		{"bad request", &stripe.Error{HTTPStatusCode: http.StatusBadRequest}},
		{"plain", errors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			next := &fakeVerifier{fn: func(context.Context, string) (Payment, error) {
				atomic.AddInt32(&calls, 1)
				return Payment{}, tt.err
			}}
			ctr := &counterStub{}
			g := NewRetryingVerifier(next, testlog.New().Logger(), ctr, RetryConfig{MaxAttempts: 5})

			_, err := g.Verify(context.Background(), "pi_1")
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
			if atomic.LoadInt32(&calls) != 1 {
				t.Fatalf("expected 1 call, got %d", calls)
			}
			if ctr.Count() != 0 {
				t.Fatalf("expected 0 retries, got %d", ctr.Count())
			}
		})
	}
}

func TestRetryingVerifier_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	var calls int32
	unavailable := &stripe.Error{HTTPStatusCode: http.StatusBadGateway}
	next := &fakeVerifier{fn: func(context.Context, string) (Payment, error) {
		atomic.AddInt32(&calls, 1)
		return Payment{}, unavailable
	}}
	ctr := &counterStub{}
	g := NewRetryingVerifier(next, testlog.New().Logger(), ctr, RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})

	_, err := g.Verify(context.Background(), "pi_1")
	if !errors.Is(err, unavailable) {
		t.Fatalf("unexpected err: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 || ctr.Count() != 2 {
		t.Fatalf("calls=%d retries=%d", calls, ctr.Count())
	}
}

func TestRetryingVerifier_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	next := &fakeVerifier{fn: func(context.Context, string) (Payment, error) {
		atomic.AddInt32(&calls, 1)
		cancel()
		return Payment{}, &stripe.Error{HTTPStatusCode: http.StatusServiceUnavailable}
	}}
	g := NewRetryingVerifier(next, testlog.New().Logger(), nil, RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour})

	if _, err := g.Verify(ctx, "pi_1"); err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	base, max := 100*time.Millisecond, time.Second
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second}
	for i, w := range want {
		if got := backoff(base, max, i+1); got != w {
			t.Fatalf("attempt %d: got %v want %v", i+1, got, w)
		}
	}
}
