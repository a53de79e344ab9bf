//go:generate mockgen -source=contracts.go -destination=payments_mocks_test.go -package=payments_test
package payments

import (
	"context"

	"github.com/google/uuid"

	"service-delivery-tracking/internal/domain"
)

// ConfirmationPort is the engine operation a confirmed payment drives.
type ConfirmationPort interface {
	ConfirmPayment(ctx context.Context, id uuid.UUID, reference string, amount float64) (domain.Delivery, error)
}
