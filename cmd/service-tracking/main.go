// Command service-tracking serves the delivery API and the real-time
// tracking WebSocket endpoints.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"service-delivery-tracking/internal/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	container := app.MustBuildContainer(ctx)
	app.NewRunner().MustRun(container)
}
