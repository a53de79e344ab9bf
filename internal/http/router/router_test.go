package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"service-delivery-tracking/internal/domain"
	"service-delivery-tracking/internal/http/handlers"
	mw "service-delivery-tracking/internal/http/middleware"
	"service-delivery-tracking/internal/http/middleware/ratelimit"
	"service-delivery-tracking/internal/http/router"
	"service-delivery-tracking/internal/identity"
	"service-delivery-tracking/internal/logx"
	"service-delivery-tracking/internal/repository"
	"service-delivery-tracking/internal/service/courier"
	"service-delivery-tracking/internal/service/delivery"
)

type noRealtime struct{}

func (noRealtime) ServeDelivery(w http.ResponseWriter, _ *http.Request, _ uuid.UUID) {
	w.WriteHeader(http.StatusTeapot)
}

func (noRealtime) ServeNotifications(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}

type noTracking struct{}

func (noTracking) RequestTransition(context.Context, uuid.UUID, domain.Actor, domain.Status, string) (domain.Delivery, error) {
	return domain.Delivery{}, nil
}

func (noTracking) RecordLocation(context.Context, uuid.UUID, domain.Actor, float64, float64, uint64) (bool, error) {
	return true, nil
}

func (noTracking) ConfirmPayment(context.Context, uuid.UUID, string, float64) (domain.Delivery, error) {
	return domain.Delivery{}, nil
}

func newRouter(t *testing.T, limiter ratelimit.Limiter) (http.Handler, *identity.JWTAuthenticator) {
	t.Helper()

	log := logx.Nop()
	jwt := identity.NewJWTAuthenticator("secret")
	repo := repository.NewMemoryRepo()
	svc := delivery.NewDeliveryService(repo, delivery.NewQuoteFactory(delivery.Pricing{BaseFare: 500, PerKm: 150}), time.Second, log)

	return router.New(
		log,
		handlers.New(log),
		handlers.NewDeliveryHandler(log, svc, noTracking{}, nil),
		handlers.NewCourierHandler(log, courier.NewService(repo, 0.9, time.Second)),
		handlers.NewRealtimeHandler(log, noRealtime{}),
		mw.NewAuth(jwt, log),
		ratelimit.New(log, nil, limiter),
	), jwt
}

func do(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_PublicRoutes(t *testing.T) {
	h, _ := newRouter(t, nil)

	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/ping", "").Code)
	require.Equal(t, http.StatusNoContent, do(h, http.MethodHead, "/healthcheck", "").Code)

	rr := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "http_requests_total")

	require.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/nope", "").Code)
}

func TestRouter_AuthRequired(t *testing.T) {
	h, jwt := newRouter(t, nil)

	require.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/deliveries", "").Code)
	require.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/couriers/me/earnings", "").Code)

	token, err := jwt.Issue(domain.Actor{ID: "courier-a", Role: domain.RoleCourier}, time.Minute)
	require.NoError(t, err)

	rr := do(h, http.MethodGet, "/deliveries", token)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"items":[],"limit":0,"offset":0}`, rr.Body.String())

	rr = do(h, http.MethodGet, "/couriers/me/earnings", token)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_WebSocketRoutesSkipBearerAuth(t *testing.T) {
	h, _ := newRouter(t, nil)

	require.Equal(t, http.StatusTeapot, do(h, http.MethodGet, "/ws/deliveries/"+uuid.NewString(), "").Code)
	require.Equal(t, http.StatusTeapot, do(h, http.MethodGet, "/ws/notifications", "").Code)
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func TestRouter_RateLimitedRoutes(t *testing.T) {
	h, _ := newRouter(t, denyAll{})

	require.Equal(t, http.StatusTooManyRequests, do(h, http.MethodGet, "/deliveries", "").Code)
	require.Equal(t, http.StatusTooManyRequests, do(h, http.MethodGet, "/ws/notifications", "").Code)
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/ping", "").Code)
}
