package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"service-delivery-tracking/internal/broadcast"
	"service-delivery-tracking/internal/config"
	payment "service-delivery-tracking/internal/gateway/payments"
	"service-delivery-tracking/internal/http/handlers"
	mw "service-delivery-tracking/internal/http/middleware"
	"service-delivery-tracking/internal/http/middleware/ratelimit"
	"service-delivery-tracking/internal/http/router"
	"service-delivery-tracking/internal/identity"
	"service-delivery-tracking/internal/logx"
	"service-delivery-tracking/internal/metrics"
	"service-delivery-tracking/internal/realtime"
	"service-delivery-tracking/internal/service/courier"
	"service-delivery-tracking/internal/service/delivery"
	"service-delivery-tracking/internal/service/tracking"
)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect dbConnectFunc
	logFatalf func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect: connectDbWithRetry,
		logFatalf: log.Fatalf,
	}
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(fn dbConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds and returns the API container
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

// MustBuildWorker builds and returns the worker container
func (b *ContainerBuilder) MustBuildWorker(ctx context.Context) *dig.Container {
	container, err := b.buildWorker(ctx)
	if err != nil {
		b.logFatalf("failed to build worker container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerStorage(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if err := registerBroadcast(container, true); err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}
	if err := registerServices(container); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds and returns the API container
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context) error {
	return provideAll(container,
		func() context.Context { return ctx },
		config.Load,
		NewLogger,
		provideMetrics,
	)
}

func registerServices(container *dig.Container) error {
	return provideAll(container,
		func(store deliveryStore, cfg *config.Config, logger logx.Logger, m *metrics.Tracking, pubs []tracking.Publisher) *tracking.Engine {
			return tracking.NewEngine(store, tracking.Options{
				PaymentGate:      cfg.Tracking.PaymentGate,
				OperationTimeout: cfg.Tracking.OperationTimeout,
			}, logger, m, pubs...)
		},
		func(store deliveryStore, cfg *config.Config, logger logx.Logger) *delivery.Service {
			quotes := delivery.NewQuoteFactory(delivery.Pricing{
				BaseFare:    cfg.Pricing.BaseFare,
				PerKm:       cfg.Pricing.PerKm,
				AvgSpeedKmh: cfg.Pricing.AvgSpeedKmh,
			})
			return delivery.NewDeliveryService(store, quotes, cfg.Tracking.OperationTimeout, logger)
		},
		func(store deliveryStore, cfg *config.Config) *courier.Service {
			return courier.NewService(store, cfg.Pricing.CourierShare, cfg.Tracking.OperationTimeout)
		},
		provideVerifier,
	)
}

type verifierIn struct {
	dig.In

	Config  *config.Config
	Logger  logx.Logger
	Retries prometheus.Counter `name:"gateway_retries_total"`
}

// provideVerifier returns nil when no Stripe key is configured.
func provideVerifier(in verifierIn) *payment.RetryingVerifier {
	stripe := payment.NewStripeVerifier(in.Config.Payments.StripeKey)
	if stripe == nil {
		in.Logger.Warn("payment verification disabled: STRIPE_API_KEY is not set")
		return nil
	}
	return payment.NewRetryingVerifier(stripe, in.Logger, in.Retries, payment.RetryConfig{
		MaxAttempts: in.Config.Payments.MaxAttempts,
		BaseDelay:   in.Config.Payments.BaseDelay,
		MaxDelay:    in.Config.Payments.MaxDelay,
	})
}

func registerHTTP(container *dig.Container) error {
	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	return provideAll(container,
		func(cfg *config.Config) identity.Authenticator {
			return identity.NewJWTAuthenticator(cfg.Auth.JWTSecret)
		},
		func(
			engine *tracking.Engine,
			groups *broadcast.Router,
			auth identity.Authenticator,
			cfg *config.Config,
			logger logx.Logger,
			m *metrics.Tracking,
		) *realtime.Manager {
			t := cfg.Tracking
			return realtime.NewManager(engine, groups, auth, realtime.Options{
				IdleTimeout:     t.IdleTimeout,
				PingInterval:    t.PingInterval,
				WriteTimeout:    t.WriteTimeout,
				SendBuffer:      t.SendBuffer,
				MaxMessageBytes: t.MaxMessageBytes,
				InboundRate:     t.InboundRate,
				InboundBurst:    t.InboundBurst,
			}, logger, m)
		},
		handlers.New,
		func(logger logx.Logger, svc *delivery.Service, engine *tracking.Engine, v *payment.RetryingVerifier) *handlers.DeliveryHandler {
			uc := handlers.NewDeliveryUsecase(svc)
			if v == nil {
				return handlers.NewDeliveryHandler(logger, uc, engine, nil)
			}
			return handlers.NewDeliveryHandler(logger, uc, engine, v)
		},
		func(logger logx.Logger, svc *courier.Service) *handlers.CourierHandler {
			return handlers.NewCourierHandler(logger, handlers.NewEarningsUsecase(svc))
		},
		func(logger logx.Logger, m *realtime.Manager) *handlers.RealtimeHandler {
			return handlers.NewRealtimeHandler(logger, m)
		},
		mw.NewAuth,
		newRateLimiter,
		newRateLimitMiddleware,
		router.New,
		serverProvider,
	)
}

// newRateLimiter limits per client IP; it is shared by the REST and
// WebSocket handshake routes.
func newRateLimiter(cfg *config.Config, logger logx.Logger) ratelimit.Limiter {
	rl := cfg.RateLimit
	if !rl.Enabled {
		logger.Info("http rate limiting disabled")
		return ratelimit.AllowAll{}
	}
	return ratelimit.NewTokenBucketLimiter(ratelimit.SystemClock{}, ratelimit.Config{
		Rate:       rl.Rate,
		Burst:      rl.Burst,
		TTL:        rl.TTL,
		MaxBuckets: rl.MaxBuckets,
	})
}

type rateLimitIn struct {
	dig.In

	Logger  logx.Logger
	Counter prometheus.Counter `name:"rate_limit_exceeded_total"`
	Limiter ratelimit.Limiter
}

func newRateLimitMiddleware(in rateLimitIn) *ratelimit.Middleware {
	return ratelimit.New(in.Logger, in.Counter, in.Limiter)
}
