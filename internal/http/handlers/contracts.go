package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"service-delivery-tracking/internal/domain"
	payment "service-delivery-tracking/internal/gateway/payments"
	"service-delivery-tracking/internal/service/courier"
	"service-delivery-tracking/internal/service/delivery"
)

type deliveryUsecase interface {
	Create(ctx context.Context, actor domain.Actor, in domain.DraftInput) (domain.Delivery, error)
	UpdateDraft(ctx context.Context, actor domain.Actor, id uuid.UUID, in domain.DraftInput) (domain.Delivery, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Delivery, error)
	ListAvailable(ctx context.Context, actor domain.Actor, limit, offset int) ([]domain.Delivery, error)
}

// NewDeliveryUsecase wires a delivery Service into a deliveryUsecase.
func NewDeliveryUsecase(svc *delivery.Service) deliveryUsecase {
	return svc
}

type trackingUsecase interface {
	RequestTransition(ctx context.Context, id uuid.UUID, actor domain.Actor, target domain.Status, note string) (domain.Delivery, error)
	RecordLocation(ctx context.Context, id uuid.UUID, actor domain.Actor, lat, lon float64, seq uint64) (bool, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID, reference string, amount float64) (domain.Delivery, error)
}

type paymentVerifier interface {
	Verify(ctx context.Context, reference string) (payment.Payment, error)
}

type earningsUsecase interface {
	Earnings(ctx context.Context, actor domain.Actor) (domain.Earnings, error)
}

// NewEarningsUsecase wires a courier Service into an earningsUsecase.
func NewEarningsUsecase(svc *courier.Service) earningsUsecase {
	return svc
}

type realtimeServer interface {
	ServeDelivery(w http.ResponseWriter, r *http.Request, id uuid.UUID)
	ServeNotifications(w http.ResponseWriter, r *http.Request)
}
