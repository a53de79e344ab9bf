package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"service-delivery-tracking/internal/http/handlers"
	mw "service-delivery-tracking/internal/http/middleware"
	"service-delivery-tracking/internal/http/middleware/ratelimit"
	"service-delivery-tracking/internal/logx"
)

// New constructs a chi-based http.Handler with base middleware and routes.
// WebSocket routes sit outside the request timeout; they authenticate during
// the handshake themselves.
func New(
	logger logx.Logger,
	h *handlers.Handlers,
	del *handlers.DeliveryHandler,
	cour *handlers.CourierHandler,
	ws *handlers.RealtimeHandler,
	auth *mw.Auth,
	limiter *ratelimit.Middleware,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Observability(logger))
	r.Use(middleware.Recoverer)

	r.Get("/ping", h.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(h.HealthcheckHead))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(limiter.Handler())

		r.Get("/ws/deliveries/{id}", ws.Delivery)
		r.Get("/ws/notifications", ws.Notifications)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(5 * time.Second))
			r.Use(auth.Handler())

			r.Route("/deliveries", func(r chi.Router) {
				r.Post("/", del.Create)
				r.Get("/", del.ListAvailable)
				r.Get("/{id}", del.Get)
				r.Patch("/{id}", del.UpdateDraft)
				r.Post("/{id}/transitions", del.Transition)
				r.Post("/{id}/location", del.Location)
				r.Post("/{id}/payment/verify", del.VerifyPayment)
			})
			r.Get("/couriers/me/earnings", cour.Earnings)
		})
	})

	r.NotFound(http.HandlerFunc(h.NotFound))

	return r
}
