//go:generate mockgen -source=contracts.go -destination=delivery_mocks_test.go -package=delivery_test
package delivery

import (
	"context"

	"github.com/google/uuid"

	"service-delivery-tracking/internal/domain"
	"service-delivery-tracking/internal/ports/deliverytx"
)

// Repository is the delivery persistence used by drafts and queries.
type Repository interface {
	deliverytx.Runner
	Create(ctx context.Context, d *domain.Delivery) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Delivery, error)
	ListByStatus(ctx context.Context, status domain.Status, limit, offset int) ([]domain.Delivery, error)
}

// QuoteFactory prices a trip between two points.
type QuoteFactory interface {
	Quote(from, to domain.Point) domain.Quote
}
