package courier

import (
	"context"

	"service-delivery-tracking/internal/domain"
)

// completedRepository returns the courier's delivered shipments.
type completedRepository interface {
	ListCompletedByCourier(ctx context.Context, courierRef string) ([]domain.Delivery, error)
}
