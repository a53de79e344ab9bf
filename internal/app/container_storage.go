package app

import (
	"context"
	"time"

	"go.uber.org/dig"

	"service-delivery-tracking/internal/broadcast"
	"service-delivery-tracking/internal/broadcast/redisbridge"
	"service-delivery-tracking/internal/config"
	"service-delivery-tracking/internal/domain"
	"service-delivery-tracking/internal/logx"
	"service-delivery-tracking/internal/repository"
	"service-delivery-tracking/internal/service/delivery"
	"service-delivery-tracking/internal/service/tracking"
	"service-delivery-tracking/internal/transport/kafka"
)

// deliveryStore is the union of what the services need from storage.
type deliveryStore interface {
	delivery.Repository
	ListCompletedByCourier(ctx context.Context, courierRef string) ([]domain.Delivery, error)
}

// storageCloser releases the storage backend.
type storageCloser func()

func registerStorage(container *dig.Container, dbConnect dbConnectFunc) error {
	provider := func(ctx context.Context, cfg *config.Config, logger logx.Logger) (deliveryStore, storageCloser, error) {
		if cfg.Storage == config.StorageMemory {
			logger.Warn("using in-memory storage, data is lost on restart")
			return repository.NewMemoryRepo(), func() {}, nil
		}
		pool, err := dbConnect(ctx, logger, cfg.DB.DSN(), 10, time.Second)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewDeliveryRepo(pool), pool.Close, nil
	}
	return provideAll(container, provider)
}

// registerBroadcast wires the fan-out side. The API process owns a local
// Router; the worker only publishes.
func registerBroadcast(container *dig.Container, local bool) error {
	providers := []any{provideRedisBridge, provideEventWriter, providePublishers}
	if local {
		providers = append([]any{broadcast.NewRouter}, providers...)
	}
	return provideAll(container, providers...)
}

type bridgeIn struct {
	dig.In

	Config *config.Config
	Logger logx.Logger
	Router *broadcast.Router `optional:"true"`
}

// provideRedisBridge returns nil when Redis is not configured.
func provideRedisBridge(in bridgeIn) *redisbridge.Bridge {
	r := in.Config.Redis
	if r.Addr == "" {
		return nil
	}
	var sink redisbridge.Sink
	if in.Router != nil {
		sink = in.Router
	}
	return redisbridge.New(redisbridge.NewClient(r.Addr, r.Password), r.Channel, sink, in.Logger)
}

// provideEventWriter returns nil when Kafka events are not configured.
func provideEventWriter(cfg *config.Config) *kafka.EventWriter {
	return kafka.NewEventWriter(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
}

type publishersIn struct {
	dig.In

	Logger logx.Logger
	Router *broadcast.Router `optional:"true"`
	Bridge *redisbridge.Bridge
	Writer *kafka.EventWriter
}

// providePublishers orders the engine's publishers. With Redis configured
// every replica's Router is fed through the bridge, including this one.
func providePublishers(in publishersIn) []tracking.Publisher {
	var pubs []tracking.Publisher
	switch {
	case in.Bridge != nil:
		pubs = append(pubs, in.Bridge)
	case in.Router != nil:
		pubs = append(pubs, in.Router)
	default:
		in.Logger.Warn("no broadcast publisher configured, websocket subscribers will not see events")
	}
	if in.Writer != nil {
		pubs = append(pubs, in.Writer)
	}
	return pubs
}
