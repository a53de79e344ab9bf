package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"service-delivery-tracking/internal/apperr"
	"service-delivery-tracking/internal/domain"
	"service-delivery-tracking/internal/logx"
	"service-delivery-tracking/internal/ports/deliverytx"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Service manages drafts and read access to deliveries. Status changes are
// the tracking engine's business.
type Service struct {
	repo             Repository
	quotes           QuoteFactory
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// NewDeliveryService - creates a new delivery Service.
func NewDeliveryService(r Repository, q QuoteFactory, timeout time.Duration, logger logx.Logger) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{
		repo:             r,
		quotes:           q,
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new draft owned by the customer.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in domain.DraftInput) (domain.Delivery, error) {
	if actor.Role != domain.RoleCustomer {
		return domain.Delivery{}, fmt.Errorf("%w: only customers create deliveries", apperr.ErrForbidden)
	}
	if err := validateDraft(in); err != nil {
		return domain.Delivery{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	d := &domain.Delivery{
		ID:          uuid.New(),
		Status:      domain.StatusCreating,
		CustomerRef: actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.applyDraft(d, in)

	if err := s.repo.Create(ctx, d); err != nil {
		return domain.Delivery{}, err
	}

	s.logger.Info("delivery created",
		logx.String("event", "delivery_created"),
		logx.String("delivery_id", d.ID.String()),
		logx.String("customer", d.CustomerRef),
		logx.String("tracking_number", d.TrackingNumber),
	)
	return *d, nil
}

// UpdateDraft edits a draft; only the owner may, and only while it is creating.
func (s *Service) UpdateDraft(ctx context.Context, actor domain.Actor, id uuid.UUID, in domain.DraftInput) (domain.Delivery, error) {
	if err := validateDraft(in); err != nil {
		return domain.Delivery{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out domain.Delivery
	err := s.repo.WithTx(ctx, func(tx deliverytx.Repository) error {
		d, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if d == nil {
			return apperr.ErrNotFound
		}
		if !actor.IsCustomer(d.CustomerRef) {
			return apperr.ErrForbidden
		}
		if d.Status != domain.StatusCreating {
			return fmt.Errorf("%w: delivery is %s", apperr.ErrConflict, d.Status)
		}

		s.applyDraft(d, in)
		d.UpdatedAt = s.now()
		if err := tx.Update(ctx, d); err != nil {
			return err
		}
		out = d.Clone()
		return nil
	})
	if err != nil {
		return domain.Delivery{}, err
	}
	return out, nil
}

// Get returns the delivery if the actor may see it.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Delivery, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Delivery{}, err
	}
	if d == nil {
		return domain.Delivery{}, apperr.ErrNotFound
	}
	if !d.VisibleTo(actor) {
		return domain.Delivery{}, apperr.ErrForbidden
	}
	return *d, nil
}

// ListAvailable returns the dispatchable pool, oldest first.
func (s *Service) ListAvailable(ctx context.Context, actor domain.Actor, limit, offset int) ([]domain.Delivery, error) {
	if actor.Role != domain.RoleCourier && actor.Role != domain.RoleStaff {
		return nil, apperr.ErrForbidden
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: negative offset", apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := s.repo.ListByStatus(ctx, domain.StatusProcessing, limit, offset)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Delivery{}
	}
	return out, nil
}

func (s *Service) applyDraft(d *domain.Delivery, in domain.DraftInput) {
	if in.ItemName != nil {
		d.ItemName = strings.TrimSpace(*in.ItemName)
	}
	if in.PaymentMethod != nil {
		d.PaymentMethod = *in.PaymentMethod
	}
	if in.Pickup != nil {
		p := *in.Pickup
		d.Pickup = &p
	}
	if in.Dropoff != nil {
		p := *in.Dropoff
		d.Dropoff = &p
	}
	if d.Pickup != nil && d.Dropoff != nil && s.quotes != nil {
		d.Quote = s.quotes.Quote(d.Pickup.Point, d.Dropoff.Point)
	}
}

func validateDraft(in domain.DraftInput) error {
	if in.ItemName != nil && strings.TrimSpace(*in.ItemName) == "" {
		return fmt.Errorf("%w: item name is empty", apperr.ErrInvalid)
	}
	if in.PaymentMethod != nil && !in.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", apperr.ErrInvalid, *in.PaymentMethod)
	}
	for name, p := range map[string]*domain.Place{"pickup": in.Pickup, "dropoff": in.Dropoff} {
		if p == nil {
			continue
		}
		if strings.TrimSpace(p.Address) == "" {
			return fmt.Errorf("%w: %s address is empty", apperr.ErrInvalid, name)
		}
		if !p.Point.Valid() {
			return fmt.Errorf("%w: %s coordinates out of range", apperr.ErrInvalid, name)
		}
	}
	return nil
}
