package config

import "time"

const defaultPort = 8080

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "myuser",
	Pass: "mypassword",
	Name: "tracking_db",
}

var defaultRedis = Redis{
	Channel: "tracking:events",
}

var defaultKafka = Kafka{
	GroupID:       "service-tracking-worker",
	PaymentsTopic: "payments",
	EventsTopic:   "delivery-events",
}

var defaultTracking = Tracking{
	IdleTimeout:      60 * time.Second,
	PingInterval:     25 * time.Second,
	WriteTimeout:     5 * time.Second,
	SendBuffer:       64,
	MaxMessageBytes:  4096,
	InboundRate:      10,
	InboundBurst:     20,
	PaymentGate:      true,
	OperationTimeout: 3 * time.Second,
}

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       20,
	Burst:      40,
	TTL:        5 * time.Minute,
	MaxBuckets: 10000,
}

var defaultPricing = Pricing{
	BaseFare:     500,
	PerKm:        150,
	AvgSpeedKmh:  25,
	CourierShare: 0.9,
}

var defaultPayments = Payments{
	MaxAttempts: 3,
	BaseDelay:   150 * time.Millisecond,
	MaxDelay:    time.Second,
}

// DefaultPort returns the default port.
func DefaultPort() int { return defaultPort }

// DefaultDB returns the default database settings.
func DefaultDB() DB { return defaultDB }

// DefaultRedis returns the default Redis settings (bridge disabled).
func DefaultRedis() Redis { return defaultRedis }

// DefaultKafka returns the default Kafka settings (no brokers: disabled).
func DefaultKafka() Kafka { return defaultKafka }

// DefaultTracking returns the default real-time settings.
func DefaultTracking() Tracking { return defaultTracking }

// DefaultRateLimit returns the default HTTP rate limit.
func DefaultRateLimit() RateLimit { return defaultRateLimit }

// DefaultPricing returns the default quote settings.
func DefaultPricing() Pricing { return defaultPricing }

// DefaultPayments returns the default payment gateway settings.
func DefaultPayments() Payments { return defaultPayments }
