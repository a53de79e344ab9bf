// Command worker consumes payment events from Kafka and confirms the
// deliveries they pay for.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"service-delivery-tracking/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.NewWorkerRunner().MustRun(app.MustBuildWorkerContainer(ctx))
}
