package ratelimit

import (
	"io"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"service-delivery-tracking/internal/logx"
)

const rejectedBody = `{"error":"too many requests","code":"rate_limited"}`

// KeyFunc derives the bucket key of a request.
type KeyFunc func(r *http.Request) string

// Middleware rejects clients that exceed their request budget.
type Middleware struct {
	logger  logx.Logger
	counter prometheus.Counter
	limiter Limiter
	key     KeyFunc
}

// New creates a per-client-IP Middleware; a nil limiter disables limiting.
func New(logger logx.Logger, counter prometheus.Counter, limiter Limiter) *Middleware {
	if limiter == nil {
		limiter = AllowAll{}
	}
	return &Middleware{
		logger:  logger,
		counter: counter,
		limiter: limiter,
		key:     ClientIP,
	}
}

// WithKey replaces the bucket key function.
func (m *Middleware) WithKey(fn KeyFunc) *Middleware {
	if fn != nil {
		m.key = fn
	}
	return m
}

// Handler returns chi-style middleware.
func (m *Middleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := m.key(r)
			if m.limiter.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}

			if m.counter != nil {
				m.counter.Inc()
			}
			m.logger.Warn("rate limit exceeded",
				logx.String("key", key),
				logx.String("method", r.Method),
				logx.String("path", r.URL.Path),
			)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", m.retryAfter())
			w.WriteHeader(http.StatusTooManyRequests)
			if _, err := io.WriteString(w, rejectedBody); err != nil {
				m.logger.Debug("rate limit response write failed", logx.String("key", key), logx.Err(err))
			}
		})
	}
}

// retryAfter is whole seconds, at least one.
func (m *Middleware) retryAfter() string {
	secs := 1
	if h, ok := m.limiter.(retryHinter); ok {
		if d := h.RetryAfter().Seconds(); d > 1 {
			secs = int(math.Ceil(d))
		}
	}
	return strconv.Itoa(secs)
}

// ClientIP keys buckets by remote host; chi's RealIP runs first so proxies
// are already unwrapped.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
