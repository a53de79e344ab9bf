package deliverytx

import (
	"context"

	"github.com/google/uuid"

	"service-delivery-tracking/internal/domain"
)

// Repository is the delivery repository bound to one transaction.
// Rows read with GetForUpdate stay locked until the transaction ends.
type Repository interface {
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Delivery, error)
	Update(ctx context.Context, d *domain.Delivery) error
	// HasActiveForCustomer serializes concurrent callers for the same customer
	// until the transaction ends.
	HasActiveForCustomer(ctx context.Context, customerRef string, exclude uuid.UUID) (bool, error)
	// InsertTransaction stores t once per reference and returns the delivery the
	// reference is recorded against, which differs from t.DeliveryID when
	// another delivery already used it.
	InsertTransaction(ctx context.Context, t *domain.Transaction) (uuid.UUID, error)
}

// Runner is a transaction runner
type Runner interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
