package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config stores service settings.
type Config struct {
	Port      int
	Log       Log
	Storage   string
	DB        DB
	Redis     Redis
	Kafka     Kafka
	Auth      Auth
	Tracking  Tracking
	RateLimit RateLimit
	Pricing   Pricing
	Payments  Payments
}

// Log selects the logging backend and threshold.
type Log struct {
	Level   string
	Backend string
}

// DB stores Postgres connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN returns a pgx connection string.
func (d DB) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Pass),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Redis configures the cross-instance fan-out bridge; empty Addr disables it.
type Redis struct {
	Addr     string
	Password string
	Channel  string
}

// Kafka configures the payments consumer and the lifecycle events writer.
type Kafka struct {
	Brokers       []string
	GroupID       string
	PaymentsTopic string
	EventsTopic   string
}

// Auth configures bearer token validation.
type Auth struct {
	JWTSecret string
}

// Tracking configures the real-time core.
type Tracking struct {
	IdleTimeout      time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	SendBuffer       int
	MaxMessageBytes  int64
	InboundRate      float64
	InboundBurst     int
	PaymentGate      bool
	OperationTimeout time.Duration
}

// RateLimit configures the per-IP HTTP limiter.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// Pricing configures quotes for drafts.
type Pricing struct {
	BaseFare     float64
	PerKm        float64
	AvgSpeedKmh  float64
	CourierShare float64
}

// Payments configures the payment verification gateway.
type Payments struct {
	StripeKey   string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:      DefaultPort(),
		Log:       Log{Level: "info", Backend: "slog"},
		Storage:   StoragePostgres,
		DB:        DefaultDB(),
		Redis:     DefaultRedis(),
		Kafka:     DefaultKafka(),
		Tracking:  DefaultTracking(),
		RateLimit: DefaultRateLimit(),
		Pricing:   DefaultPricing(),
		Payments:  DefaultPayments(),
	}

	var errs []string
	p := parser{errs: &errs}

	cfg.Port = p.int("PORT", cfg.Port)
	cfg.Log.Level = p.str("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Backend = p.str("LOG_BACKEND", cfg.Log.Backend)
	cfg.Storage = strings.ToLower(p.str("STORAGE", cfg.Storage))

	cfg.DB.Host = p.str("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = p.str("POSTGRES_PORT", cfg.DB.Port)
	cfg.DB.User = p.str("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Pass = p.str("POSTGRES_PASSWORD", cfg.DB.Pass)
	cfg.DB.Name = p.str("POSTGRES_DB", cfg.DB.Name)
	if _, err := strconv.Atoi(cfg.DB.Port); err != nil {
		errs = append(errs, fmt.Sprintf("POSTGRES_PORT: %q is not a number", cfg.DB.Port))
	}

	cfg.Redis.Addr = p.str("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = p.str("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.Channel = p.str("REDIS_CHANNEL", cfg.Redis.Channel)

	cfg.Kafka.Brokers = p.list("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.GroupID = p.str("KAFKA_GROUP_ID", cfg.Kafka.GroupID)
	cfg.Kafka.PaymentsTopic = p.str("KAFKA_PAYMENTS_TOPIC", cfg.Kafka.PaymentsTopic)
	cfg.Kafka.EventsTopic = p.str("KAFKA_EVENTS_TOPIC", cfg.Kafka.EventsTopic)

	cfg.Auth.JWTSecret = p.str("JWT_SECRET", cfg.Auth.JWTSecret)

	cfg.Tracking.IdleTimeout = p.duration("TRACKING_IDLE_TIMEOUT", cfg.Tracking.IdleTimeout)
	cfg.Tracking.PingInterval = p.duration("TRACKING_PING_INTERVAL", cfg.Tracking.PingInterval)
	cfg.Tracking.WriteTimeout = p.duration("TRACKING_WRITE_TIMEOUT", cfg.Tracking.WriteTimeout)
	cfg.Tracking.SendBuffer = p.int("TRACKING_SEND_BUFFER", cfg.Tracking.SendBuffer)
	cfg.Tracking.InboundRate = p.float("TRACKING_INBOUND_RATE", cfg.Tracking.InboundRate)
	cfg.Tracking.InboundBurst = p.int("TRACKING_INBOUND_BURST", cfg.Tracking.InboundBurst)
	cfg.Tracking.PaymentGate = p.bool("TRACKING_PAYMENT_GATE", cfg.Tracking.PaymentGate)
	cfg.Tracking.OperationTimeout = p.duration("TRACKING_OPERATION_TIMEOUT", cfg.Tracking.OperationTimeout)

	cfg.RateLimit.Enabled = p.bool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.Rate = p.float("RATE_LIMIT_RATE", cfg.RateLimit.Rate)
	cfg.RateLimit.Burst = p.int("RATE_LIMIT_BURST", cfg.RateLimit.Burst)
	cfg.RateLimit.TTL = p.duration("RATE_LIMIT_TTL", cfg.RateLimit.TTL)

	cfg.Pricing.BaseFare = p.float("PRICING_BASE_FARE", cfg.Pricing.BaseFare)
	cfg.Pricing.PerKm = p.float("PRICING_PER_KM", cfg.Pricing.PerKm)
	cfg.Pricing.AvgSpeedKmh = p.float("PRICING_AVG_SPEED_KMH", cfg.Pricing.AvgSpeedKmh)
	cfg.Pricing.CourierShare = p.float("PRICING_COURIER_SHARE", cfg.Pricing.CourierShare)

	cfg.Payments.StripeKey = p.str("STRIPE_API_KEY", cfg.Payments.StripeKey)
	cfg.Payments.MaxAttempts = p.int("PAYMENTS_MAX_ATTEMPTS", cfg.Payments.MaxAttempts)
	cfg.Payments.BaseDelay = p.duration("PAYMENTS_BASE_DELAY", cfg.Payments.BaseDelay)
	cfg.Payments.MaxDelay = p.duration("PAYMENTS_MAX_DELAY", cfg.Payments.MaxDelay)

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	pflag.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level (debug|info|warn|error)")
	pflag.StringVar(&cfg.Storage, "storage", cfg.Storage, "storage backend (postgres|memory)")
	if err := pflag.CommandLine.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Storage != StoragePostgres && c.Storage != StorageMemory {
		return fmt.Errorf("invalid storage: %q", c.Storage)
	}
	if c.Tracking.IdleTimeout <= 0 {
		return fmt.Errorf("invalid tracking idle timeout: %s", c.Tracking.IdleTimeout)
	}
	if c.Tracking.PingInterval >= c.Tracking.IdleTimeout {
		return fmt.Errorf("tracking ping interval %s must be shorter than idle timeout %s",
			c.Tracking.PingInterval, c.Tracking.IdleTimeout)
	}
	if c.Tracking.SendBuffer <= 0 {
		return fmt.Errorf("invalid tracking send buffer: %d", c.Tracking.SendBuffer)
	}
	if c.Pricing.CourierShare < 0 || c.Pricing.CourierShare > 1 {
		return fmt.Errorf("invalid courier share: %v", c.Pricing.CourierShare)
	}
	return nil
}

// parser reads typed environment variables, collecting every error.
type parser struct {
	errs *[]string
}

func (p parser) fail(key, v string) {
	*p.errs = append(*p.errs, fmt.Sprintf("%s: invalid value %q", key, v))
}

func (p parser) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (p parser) int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v)
		return def
	}
	return n
}

func (p parser) float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v)
		return def
	}
	return f
}

func (p parser) bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v)
		return def
	}
	return b
}

func (p parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v)
		return def
	}
	return d
}

func (p parser) list(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
