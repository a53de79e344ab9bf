package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"service-delivery-tracking/internal/broadcast"
	"service-delivery-tracking/internal/identity"
	"service-delivery-tracking/internal/logx"
	"service-delivery-tracking/internal/realtime"
	"service-delivery-tracking/internal/repository"
	"service-delivery-tracking/internal/service/tracking"
	testlog "service-delivery-tracking/internal/testutil"
)

func TestRunner_MustRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"canceled", fmt.Errorf("connect: %w", context.Canceled), false},
		{"deadline", context.DeadlineExceeded, false},
		{"other", errors.New("boom"), true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var fatal string
			r := &Runner{
				runFn:     func(*dig.Container) error { return tc.err },
				logFatalf: func(format string, args ...interface{}) { fatal = fmt.Sprintf(format, args...) },
			}
			r.MustRun(dig.New())
			if tc.fatal {
				require.Contains(t, fatal, "boom")
			} else {
				require.Empty(t, fatal)
			}
		})
	}
}

func TestWaitForShutdown(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, waitForShutdown(ctx, make(chan error), rec.Logger()))
	require.Len(t, rec.Find("shutting down service-delivery-tracking"), 1)

	errCh := make(chan error, 1)
	errCh <- errors.New("address in use")
	err := waitForShutdown(context.Background(), errCh, rec.Logger())
	require.EqualError(t, err, "address in use")
	require.Len(t, rec.Find("listen error"), 1)
}

func TestGracefulShutdown_ClosesEverything(t *testing.T) {
	t.Parallel()

	logger := logx.Nop()
	router := broadcast.NewRouter(logger, nil)
	engine := tracking.NewEngine(repository.NewMemoryRepo(), tracking.Options{}, logger, nil, router)
	manager := realtime.NewManager(engine, router, identity.NewJWTAuthenticator("secret"), realtime.Options{}, logger, nil)

	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()}
	errCh := startServer(srv, logger)

	closed := false
	require.NotPanics(t, func() {
		gracefulShutdown(apiResources{
			Server:  srv,
			Manager: manager,
			Closer:  func() { closed = true },
			Logger:  logger,
		}, time.Second)
	})
	require.True(t, closed)
	require.Zero(t, manager.Active())

	select {
	case err := <-errCh:
		t.Fatalf("unexpected listen error: %v", err)
	default:
	}
}

func TestGracefulShutdown_NilResources(t *testing.T) {
	t.Parallel()

	require.NotPanics(t, func() {
		gracefulShutdown(apiResources{Logger: logx.Nop()}, time.Second)
	})
}
