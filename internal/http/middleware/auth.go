package middleware

import (
	"io"
	"net/http"
	"strings"

	"service-delivery-tracking/internal/identity"
	"service-delivery-tracking/internal/logx"
)

// Auth resolves the bearer token into an actor stored on the request context.
type Auth struct {
	auth   identity.Authenticator
	logger logx.Logger
}

// NewAuth creates a new Auth middleware.
func NewAuth(auth identity.Authenticator, logger logx.Logger) *Auth {
	return &Auth{auth: auth, logger: logger}
}

// Handler returns chi-style middleware answering 401 when the caller is unknown.
func (a *Auth) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r)
			actor, err := a.auth.Authenticate(r.Context(), token)
			if err != nil {
				a.logger.Info("unauthenticated request",
					logx.String("method", r.Method),
					logx.String("path", r.URL.Path),
					logx.Err(err),
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="tracking"`)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error":"unauthorized","code":"unauthorized"}`)
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), actor)))
		})
	}
}

// bearer reads only the Authorization header; query tokens are for WebSocket
// handshakes.
func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
