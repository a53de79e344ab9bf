package courier

import (
	"context"
	"fmt"
	"math"
	"time"

	"service-delivery-tracking/internal/apperr"
	"service-delivery-tracking/internal/domain"
)

// DefaultShare is the courier's cut of the delivery price.
const DefaultShare = 0.9

// Service computes courier earnings over completed deliveries.
type Service struct {
	repo             completedRepository
	share            float64
	operationTimeout time.Duration
}

// NewService creates and configures a courier Service.
func NewService(r completedRepository, share float64, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if share <= 0 || share > 1 {
		share = DefaultShare
	}
	return &Service{repo: r, share: share, operationTimeout: timeout}
}

// courier
func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// Earnings summarizes the calling courier's delivered shipments.
func (s *Service) Earnings(ctx context.Context, actor domain.Actor) (domain.Earnings, error) {
	if actor.Role != domain.RoleCourier || actor.ID == "" {
		return domain.Earnings{}, fmt.Errorf("%w: earnings are per courier", apperr.ErrForbidden)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	done, err := s.repo.ListCompletedByCourier(ctx, actor.ID)
	if err != nil {
		return domain.Earnings{}, err
	}
	return Summarize(actor.ID, done, s.share), nil
}

// Summarize folds completed deliveries into an Earnings record.
func Summarize(courierRef string, done []domain.Delivery, share float64) domain.Earnings {
	out := domain.Earnings{CourierRef: courierRef}
	var gross float64
	for _, d := range done {
		if d.Status != domain.StatusCompleted || d.CourierRef != courierRef {
			continue
		}
		out.Completed++
		out.TotalKm += d.Quote.DistanceKm
		gross += d.Quote.Price
	}
	out.TotalKm = round2(out.TotalKm)
	out.Earnings = round2(gross * share)
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
