//go:generate mockgen -source=contracts.go -destination=tracking_mocks_test.go -package=tracking_test
package tracking

import (
	"context"

	"github.com/google/uuid"

	"service-delivery-tracking/internal/domain"
	"service-delivery-tracking/internal/ports/deliverytx"
)

// Store is the persistence the engine needs.
type Store interface {
	deliverytx.Runner
	Get(ctx context.Context, id uuid.UUID) (*domain.Delivery, error)
}

// Publisher fans an event out to the given broadcast groups.
type Publisher interface {
	PublishAll(ctx context.Context, groups []string, ev domain.Event) error
}
