package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"service-delivery-tracking/internal/config"
	"service-delivery-tracking/internal/logx"
	"service-delivery-tracking/internal/service/payments"
	"service-delivery-tracking/internal/service/tracking"
	"service-delivery-tracking/internal/transport/kafka"
)

func (b *ContainerBuilder) buildWorker(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerStorage(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if err := registerBroadcast(container, false); err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}
	if err := registerServices(container); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if err := registerWorker(container); err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	return container, nil
}

// MustBuildWorkerContainer builds and returns the payments worker container
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuildWorker(ctx)
}

type processorIn struct {
	dig.In

	Engine *tracking.Engine
	Logger logx.Logger
	Events *prometheus.CounterVec `name:"payment_events_total"`
}

func registerWorker(container *dig.Container) error {
	return provideAll(container,
		func(in processorIn) *payments.Processor {
			return payments.NewProcessor(in.Engine, in.Logger, in.Events)
		},
		func(cfg *config.Config, logger logx.Logger, p *payments.Processor) (*kafka.Consumer, error) {
			k := cfg.Kafka
			return kafka.NewConsumer(logger, k.Brokers, k.GroupID, k.PaymentsTopic, makePaymentsHandler(p))
		},
	)
}
