// Package tracking implements the delivery status transition engine and courier
// location intake. Every mutation of a delivery goes through Engine.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"service-delivery-tracking/internal/apperr"
	"service-delivery-tracking/internal/domain"
	"service-delivery-tracking/internal/logx"
	"service-delivery-tracking/internal/metrics"
	"service-delivery-tracking/internal/ports/deliverytx"
)

const (
	defaultOperationTimeout = 3 * time.Second
	publishTimeout          = 2 * time.Second
)

// Transition results for metrics.
const (
	resultApplied  = "applied"
	resultNoop     = "noop"
	resultRejected = "rejected"
	resultAccepted = "accepted"
	resultIgnored  = "ignored"
	resultInvalid  = "invalid"
)

// Options configures the engine.
type Options struct {
	// PaymentGate holds non-cash deliveries in creating until payment is confirmed.
	PaymentGate      bool
	OperationTimeout time.Duration
}

// Engine validates and applies status transitions and location updates, then
// publishes the resulting events after commit.
type Engine struct {
	store      Store
	publishers []Publisher
	locks      *keyLock
	opts       Options
	logger     logx.Logger
	metrics    *metrics.Tracking
	now        func() time.Time
}

// NewEngine creates a new Engine. Events are published to every publisher in order.
func NewEngine(store Store, opts Options, logger logx.Logger, m *metrics.Tracking, publishers ...Publisher) *Engine {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = defaultOperationTimeout
	}
	if m == nil {
		m = metrics.NewTracking()
	}
	return &Engine{
		store:      store,
		publishers: publishers,
		locks:      newKeyLock(),
		opts:       opts,
		logger:     logger,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.opts.OperationTimeout)
}

// RequestTransition moves the delivery to target on behalf of actor.
// Requesting the current status again is a no-op for a party entitled to it.
func (e *Engine) RequestTransition(ctx context.Context, id uuid.UUID, actor domain.Actor, target domain.Status, note string) (domain.Delivery, error) {
	if !target.Valid() {
		e.metrics.Transitions.WithLabelValues("unknown", resultRejected).Inc()
		return domain.Delivery{}, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidTransition, target)
	}

	unlock := e.locks.Lock(id.String())
	defer unlock()

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var (
		out     domain.Delivery
		from    domain.Status
		changed bool
	)
	err := e.store.WithTx(ctx, func(tx deliverytx.Repository) error {
		d, err := load(ctx, tx, id)
		if err != nil {
			return err
		}
		from = d.Status

		if d.Status == target {
			if err := checkRepeat(d, actor, target); err != nil {
				return err
			}
			out = d.Clone()
			return nil
		}

		if err := e.apply(ctx, tx, d, actor, target); err != nil {
			return err
		}
		if err := tx.Update(ctx, d); err != nil {
			return err
		}
		out, changed = d.Clone(), true
		return nil
	})
	if err != nil {
		e.metrics.Transitions.WithLabelValues(string(target), resultRejected).Inc()
		if errors.Is(err, apperr.ErrAlreadyClaimed) {
			e.logger.Info("claim lost",
				logx.String("event", "claim_lost"),
				logx.String("delivery_id", id.String()),
				logx.String("courier", actor.ID),
			)
		}
		return domain.Delivery{}, err
	}
	if !changed {
		e.metrics.Transitions.WithLabelValues(string(target), resultNoop).Inc()
		return out, nil
	}

	e.metrics.Transitions.WithLabelValues(string(target), resultApplied).Inc()
	e.logger.Info("status changed",
		logx.String("event", "status_changed"),
		logx.String("delivery_id", id.String()),
		logx.String("from", string(from)),
		logx.String("to", string(target)),
		logx.String("actor", actor.ID),
		logx.String("role", string(actor.Role)),
		logx.String("note", note),
	)
	e.publish(ctx, &out, domain.StatusChanged(&out, out.UpdatedAt, note))
	return out, nil
}

// apply validates the edge from d.Status to target and mutates d accordingly.
func (e *Engine) apply(ctx context.Context, tx deliverytx.Repository, d *domain.Delivery, actor domain.Actor, target domain.Status) error {
	allowed, ok := domain.Allowed(d.Status, target)
	if !ok {
		return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, d.Status, target)
	}
	if !d.PartiesOf(actor).Has(allowed) {
		if lostClaim(d, actor, target) {
			return apperr.ErrAlreadyClaimed
		}
		return fmt.Errorf("%w: %s may not move %s -> %s", apperr.ErrForbidden, actor.Role, d.Status, target)
	}

	if d.Status == domain.StatusCreating && target == domain.StatusProcessing {
		if err := e.checkDispatch(ctx, tx, d); err != nil {
			return err
		}
	}

	now := e.now()
	switch target {
	case domain.StatusPickupInProgress:
		d.CourierRef = actor.ID
	case domain.StatusDeliveryInProgress:
		d.PickedUpAt = &now
	case domain.StatusCompleted:
		d.DeliveredAt = &now
	case domain.StatusCanceled:
		d.CanceledAt = &now
	}
	d.Status = target
	d.UpdatedAt = now
	return nil
}

// checkDispatch guards creating -> processing.
func (e *Engine) checkDispatch(ctx context.Context, tx deliverytx.Repository, d *domain.Delivery) error {
	if err := d.Ready(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	busy, err := tx.HasActiveForCustomer(ctx, d.CustomerRef, d.ID)
	if err != nil {
		return err
	}
	if busy {
		return fmt.Errorf("%w: customer already has an ongoing delivery", apperr.ErrConflict)
	}
	if e.opts.PaymentGate && d.RequiresPrepayment() && !d.Paid {
		return apperr.ErrPaymentRequired
	}
	return nil
}

// checkRepeat decides whether re-requesting the current status is a no-op.
func checkRepeat(d *domain.Delivery, actor domain.Actor, target domain.Status) error {
	parties := d.PartiesOf(actor)
	if target == domain.StatusPickupInProgress && parties.Has(domain.PartyAssignedCourier) {
		return nil
	}
	if parties.Has(domain.Into(target)) {
		return nil
	}
	if lostClaim(d, actor, target) {
		return apperr.ErrAlreadyClaimed
	}
	return fmt.Errorf("%w: %s may not request %s", apperr.ErrForbidden, actor.Role, target)
}

func lostClaim(d *domain.Delivery, actor domain.Actor, target domain.Status) bool {
	return target == domain.StatusPickupInProgress &&
		actor.Role == domain.RoleCourier &&
		d.CourierRef != "" && d.CourierRef != actor.ID
}

// RecordLocation stores the assigned courier's position and reports whether it was accepted.
// Updates from anyone else, outside pickup/in-progress, or with a stale seq are ignored.
// A zero seq disables ordering (last write wins).
func (e *Engine) RecordLocation(ctx context.Context, id uuid.UUID, actor domain.Actor, lat, lon float64, seq uint64) (bool, error) {
	p := domain.Point{Lat: lat, Lon: lon}
	if !p.Valid() {
		e.metrics.LocationUpdates.WithLabelValues(resultInvalid).Inc()
		return false, fmt.Errorf("%w: coordinates out of range", apperr.ErrInvalid)
	}

	unlock := e.locks.Lock(id.String())
	defer unlock()

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var (
		out      domain.Delivery
		accepted bool
	)
	err := e.store.WithTx(ctx, func(tx deliverytx.Repository) error {
		d, err := load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !d.Status.Tracking() || !actor.IsCourier(d.CourierRef) {
			return nil
		}
		if seq > 0 && seq <= d.PositionSeq {
			return nil
		}

		now := e.now()
		d.CourierPosition = &p
		d.PositionAt = &now
		if seq > 0 {
			d.PositionSeq = seq
		}
		if err := tx.Update(ctx, d); err != nil {
			return err
		}
		out, accepted = d.Clone(), true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !accepted {
		e.metrics.LocationUpdates.WithLabelValues(resultIgnored).Inc()
		e.logger.Debug("location ignored",
			logx.String("delivery_id", id.String()),
			logx.String("actor", actor.ID),
			logx.Uint64("seq", seq),
		)
		return false, nil
	}

	e.metrics.LocationUpdates.WithLabelValues(resultAccepted).Inc()
	e.publish(ctx, &out, domain.LocationChanged(&out, p, *out.PositionAt))
	return true, nil
}

// ConfirmPayment marks the delivery paid. A complete draft still in creating is
// dispatched on the owner's behalf. Repeated confirmations are no-ops.
func (e *Engine) ConfirmPayment(ctx context.Context, id uuid.UUID, reference string, amount float64) (domain.Delivery, error) {
	if reference == "" {
		return domain.Delivery{}, fmt.Errorf("%w: empty payment reference", apperr.ErrInvalid)
	}

	unlock := e.locks.Lock(id.String())
	defer unlock()

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var (
		out        domain.Delivery
		dispatched bool
	)
	err := e.store.WithTx(ctx, func(tx deliverytx.Repository) error {
		d, err := load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := coversPrice(d, amount); err != nil {
			return err
		}
		payee, err := tx.InsertTransaction(ctx, &domain.Transaction{
			DeliveryID: d.ID,
			Reference:  reference,
			Amount:     amount,
			Verified:   true,
			CreatedAt:  e.now(),
		})
		if err != nil {
			return err
		}
		if payee != d.ID {
			return fmt.Errorf("%w: payment %q already paid for delivery %s", apperr.ErrConflict, reference, payee)
		}

		dirty := !d.Paid
		d.Paid = true
		if d.Status == domain.StatusCreating {
			owner := domain.Actor{ID: d.CustomerRef, Role: domain.RoleCustomer}
			switch err := e.apply(ctx, tx, d, owner, domain.StatusProcessing); {
			case err == nil:
				dirty, dispatched = true, true
			case errors.Is(err, apperr.ErrInvalid), errors.Is(err, apperr.ErrConflict):
				e.logger.Info("paid draft kept in creating",
					logx.String("delivery_id", id.String()),
					logx.Err(err),
				)
			default:
				return err
			}
		}
		if dirty {
			if !dispatched {
				d.UpdatedAt = e.now()
			}
			if err := tx.Update(ctx, d); err != nil {
				return err
			}
		}
		out = d.Clone()
		return nil
	})
	if err != nil {
		return domain.Delivery{}, err
	}

	e.logger.Info("payment confirmed",
		logx.String("event", "payment_confirmed"),
		logx.String("delivery_id", id.String()),
		logx.String("reference", reference),
		logx.Bool("dispatched", dispatched),
	)
	if dispatched {
		e.metrics.Transitions.WithLabelValues(string(domain.StatusProcessing), resultApplied).Inc()
		e.publish(ctx, &out, domain.StatusChanged(&out, out.UpdatedAt, "payment confirmed"))
	}
	return out, nil
}

// priceTolerance absorbs the provider's minor-unit rounding.
const priceTolerance = 0.005

// coversPrice checks a payment against the quoted price. An unquoted draft
// cannot be paid for.
func coversPrice(d *domain.Delivery, amount float64) error {
	if d.Quote.Price <= 0 {
		return fmt.Errorf("%w: delivery %s has no quote yet", apperr.ErrInvalid, d.ID)
	}
	if amount+priceTolerance < d.Quote.Price {
		return fmt.Errorf("%w: paid %.2f, price is %.2f", apperr.ErrPaymentRequired, amount, d.Quote.Price)
	}
	return nil
}

// Snapshot returns the current state of the delivery.
func (e *Engine) Snapshot(ctx context.Context, id uuid.UUID) (domain.Delivery, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	d, err := e.store.Get(ctx, id)
	if err != nil {
		return domain.Delivery{}, err
	}
	if d == nil {
		return domain.Delivery{}, apperr.ErrNotFound
	}
	return *d, nil
}

func load(ctx context.Context, tx deliverytx.Repository, id uuid.UUID) (*domain.Delivery, error) {
	d, err := tx.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("delivery %s: %w", id, apperr.ErrNotFound)
	}
	return d, nil
}

// publish hands ev to every publisher, retrying each once. Failures are logged
// and never affect the committed change.
func (e *Engine) publish(ctx context.Context, d *domain.Delivery, ev domain.Event) {
	groups := domain.GroupsFor(d, ev)
	ctx = context.WithoutCancel(ctx)

	for _, p := range e.publishers {
		err := e.publishOnce(ctx, p, groups, ev)
		if err != nil {
			err = e.publishOnce(ctx, p, groups, ev)
		}
		if err != nil {
			e.logger.Warn("publish failed",
				logx.String("event", string(ev.Type)),
				logx.String("delivery_id", ev.DeliveryID.String()),
				logx.Err(fmt.Errorf("%w: %v", apperr.ErrTransport, err)),
			)
		}
	}
}

func (e *Engine) publishOnce(ctx context.Context, p Publisher, groups []string, ev domain.Event) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return p.PublishAll(ctx, groups, ev)
}
