package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"go.uber.org/dig"

	"service-delivery-tracking/internal/broadcast/redisbridge"
	"service-delivery-tracking/internal/logx"
	"service-delivery-tracking/internal/realtime"
	"service-delivery-tracking/internal/transport/kafka"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the API process.
type Runner struct {
	runFn     func(*dig.Container) error
	logFatalf func(string, ...interface{})
}

// NewRunner returns a new Runner
func NewRunner() *Runner {
	return &Runner{runFn: run, logFatalf: log.Fatalf}
}

// MustRun starts the HTTP server using the provided DI container and blocks
// until its context is done.
func (r *Runner) MustRun(container *dig.Container) {
	if err := r.runFn(container); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			log.Println("shutdown requested, exiting")
			return
		case errors.Is(err, context.DeadlineExceeded):
			log.Println("startup aborted: startup timeout exceeded")
			return
		default:
			r.logFatalf("run error: %v", err)
		}
	}
}

type apiResources struct {
	Server  *http.Server
	Manager *realtime.Manager
	Bridge  *redisbridge.Bridge
	Writer  *kafka.EventWriter
	Closer  storageCloser
	Logger  logx.Logger
}

func run(container *dig.Container) error {
	return container.Invoke(func(
		ctx context.Context,
		server *http.Server,
		manager *realtime.Manager,
		bridge *redisbridge.Bridge,
		writer *kafka.EventWriter,
		closer storageCloser,
		logger logx.Logger,
	) error {
		res := apiResources{
			Server:  server,
			Manager: manager,
			Bridge:  bridge,
			Writer:  writer,
			Closer:  closer,
			Logger:  logger,
		}
		errCh := startServer(server, logger)
		startBridge(ctx, bridge, logger)
		err := waitForShutdown(ctx, errCh, logger)
		gracefulShutdown(res, shutdownTimeout)
		return err
	})
}

func startServer(server *http.Server, logger logx.Logger) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("service-delivery-tracking listening", logx.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

func startBridge(ctx context.Context, bridge *redisbridge.Bridge, logger logx.Logger) {
	if bridge == nil {
		return
	}
	go func() {
		if err := bridge.Run(ctx); err != nil {
			logger.Error("redis bridge stopped", logx.Err(err))
		}
	}()
}

func waitForShutdown(ctx context.Context, errCh <-chan error, logger logx.Logger) error {
	select {
	case <-ctx.Done():
		logger.Info("shutting down service-delivery-tracking")
		return nil
	case err := <-errCh:
		logger.Error("listen error", logx.Err(err))
		return err
	}
}

// gracefulShutdown closes websocket sessions first so their goroutines stop
// before the server and storage go away.
func gracefulShutdown(res apiResources, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if res.Manager != nil {
		if err := res.Manager.Shutdown(shCtx); err != nil {
			res.Logger.Warn("realtime shutdown incomplete", logx.Err(err))
		}
	}
	if res.Server != nil {
		if err := res.Server.Shutdown(shCtx); err != nil {
			res.Logger.Warn("graceful shutdown error", logx.Err(err))
		}
	}
	if res.Bridge != nil {
		if err := res.Bridge.Close(); err != nil {
			res.Logger.Warn("redis close error", logx.Err(err))
		}
	}
	if err := res.Writer.Close(); err != nil {
		res.Logger.Warn("kafka writer close error", logx.Err(err))
	}
	if res.Closer != nil {
		res.Closer()
	}
}
