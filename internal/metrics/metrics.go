package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewRateLimitExceededTotal returns a Prometheus counter for the number of rejected HTTP requests due to rate limiting
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// NewGatewayRetriesTotal returns a Prometheus counter for the number of retry attempts performed by gateways
func NewGatewayRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_retries_total",
		Help: "Total number of retry attempts performed by gateways",
	})
}

// NewTransitionsTotal counts status transition requests by target status and result
// (applied, noop, rejected).
func NewTransitionsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_transitions_total",
		Help: "Total number of status transition requests by target status and result",
	}, []string{"to", "result"})
}

// NewLocationUpdatesTotal counts courier location updates by result (accepted, ignored, invalid).
func NewLocationUpdatesTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_location_updates_total",
		Help: "Total number of courier location updates by result",
	}, []string{"result"})
}

// NewEventsPublishedTotal counts events handed to the broadcast router by event type.
func NewEventsPublishedTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_events_published_total",
		Help: "Total number of events published to broadcast groups",
	}, []string{"type"})
}

// NewEventsDroppedTotal counts events evicted from full subscriber queues.
func NewEventsDroppedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_events_dropped_total",
		Help: "Total number of events dropped because a subscriber queue was full",
	})
}

// NewActiveGroups tracks broadcast groups with at least one member.
func NewActiveGroups() prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "broadcast_groups_active",
		Help: "Number of broadcast groups with at least one member",
	})
}

// NewActiveConnections tracks open realtime sessions.
func NewActiveConnections() prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections_active",
		Help: "Number of open realtime connections",
	})
}

// NewPaymentEventsTotal counts consumed payment events by action.
func NewPaymentEventsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_events_total",
		Help: "Total number of consumed payment events by action",
	}, []string{"action"})
}

// Tracking bundles the collectors shared by the tracking core.
type Tracking struct {
	Transitions     *prometheus.CounterVec
	LocationUpdates *prometheus.CounterVec
	Published       *prometheus.CounterVec
	Dropped         prometheus.Counter
	Groups          prometheus.Gauge
	Connections     prometheus.Gauge
}

// NewTracking returns unregistered tracking collectors.
func NewTracking() *Tracking {
	return &Tracking{
		Transitions:     NewTransitionsTotal(),
		LocationUpdates: NewLocationUpdatesTotal(),
		Published:       NewEventsPublishedTotal(),
		Dropped:         NewEventsDroppedTotal(),
		Groups:          NewActiveGroups(),
		Connections:     NewActiveConnections(),
	}
}

// Collectors returns every collector for registration.
func (t *Tracking) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		t.Transitions, t.LocationUpdates, t.Published, t.Dropped, t.Groups, t.Connections,
	}
}
