package app

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"service-delivery-tracking/internal/metrics"
)

type metricsOut struct {
	dig.Out

	RateLimitExceededTotal prometheus.Counter     `name:"rate_limit_exceeded_total"`
	GatewayRetriesTotal    prometheus.Counter     `name:"gateway_retries_total"`
	PaymentEventsTotal     *prometheus.CounterVec `name:"payment_events_total"`
	Tracking               *metrics.Tracking
}

// provideMetrics registers collectors on the default registerer. Collectors
// registered by an earlier container in the same process are reused.
func provideMetrics() (metricsOut, error) {
	var out metricsOut
	var err error

	if out.RateLimitExceededTotal, err = register("rate_limit_exceeded_total", metrics.NewRateLimitExceededTotal()); err != nil {
		return metricsOut{}, err
	}
	if out.GatewayRetriesTotal, err = register("gateway_retries_total", metrics.NewGatewayRetriesTotal()); err != nil {
		return metricsOut{}, err
	}
	if out.PaymentEventsTotal, err = register("payment_events_total", metrics.NewPaymentEventsTotal()); err != nil {
		return metricsOut{}, err
	}

	t := metrics.NewTracking()
	if t.Transitions, err = register("tracking_transitions_total", t.Transitions); err != nil {
		return metricsOut{}, err
	}
	if t.LocationUpdates, err = register("tracking_location_updates_total", t.LocationUpdates); err != nil {
		return metricsOut{}, err
	}
	if t.Published, err = register("broadcast_events_published_total", t.Published); err != nil {
		return metricsOut{}, err
	}
	if t.Dropped, err = register("broadcast_events_dropped_total", t.Dropped); err != nil {
		return metricsOut{}, err
	}
	if t.Groups, err = register("broadcast_groups_active", t.Groups); err != nil {
		return metricsOut{}, err
	}
	if t.Connections, err = register("realtime_connections_active", t.Connections); err != nil {
		return metricsOut{}, err
	}
	out.Tracking = t
	return out, nil
}

func register[T prometheus.Collector](name string, c T) (T, error) {
	if err := prometheus.DefaultRegisterer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register %s: %w", name, err)
	}
	return c, nil
}
