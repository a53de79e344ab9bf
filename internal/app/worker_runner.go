package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/dig"

	"service-delivery-tracking/internal/broadcast/redisbridge"
	"service-delivery-tracking/internal/logx"
	"service-delivery-tracking/internal/transport/kafka"
)

// WorkerRunner runs the payments consumer
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun runs the consumer until its context is done
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

func runWorker(container *dig.Container) error {
	return container.Invoke(workerRun)
}

func workerRun(
	ctx context.Context,
	logger logx.Logger,
	consumer *kafka.Consumer,
	bridge *redisbridge.Bridge,
	writer *kafka.EventWriter,
	closer storageCloser,
) error {
	if consumer == nil {
		return fmt.Errorf("kafka consumer is nil: worker container misconfigured")
	}
	defer closeWorker(logger, consumer, bridge, writer, closer)

	logger.Info("service-delivery-tracking-worker started")
	return consumer.Run(ctx)
}

func closeWorker(
	logger logx.Logger,
	consumer *kafka.Consumer,
	bridge *redisbridge.Bridge,
	writer *kafka.EventWriter,
	closer storageCloser,
) {
	if err := consumer.Close(); err != nil {
		logger.Error("kafka close error", logx.Err(err))
	}
	if bridge != nil {
		if err := bridge.Close(); err != nil {
			logger.Error("redis close error", logx.Err(err))
		}
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", logx.Err(err))
	}
	if closer != nil {
		closer()
	}
}
