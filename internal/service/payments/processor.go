package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"service-delivery-tracking/internal/apperr"
	"service-delivery-tracking/internal/logx"
)

// Processor processes payment events
type Processor struct {
	confirm ConfirmationPort
	factory *actionFactory
	logger  logx.Logger
	events  *prometheus.CounterVec
}

// NewProcessor creates a new payments.Processor. events may be nil.
func NewProcessor(confirm ConfirmationPort, logger logx.Logger, events *prometheus.CounterVec) *Processor {
	p := &Processor{
		confirm: confirm,
		logger:  logger,
		events:  events,
	}
	p.factory = newActionFactory(p.onConfirmed, p.onFailed)
	return p
}

// Handle processes a single payments.Event. A returned error means the event
// should be redelivered.
func (p *Processor) Handle(ctx context.Context, e Event) error {
	fn, ok := p.factory.get(e.Status)
	if !ok {
		p.count("ignored")
		return nil
	}
	return fn(ctx, e)
}

func (p *Processor) onConfirmed(ctx context.Context, e Event) error {
	id, err := uuid.Parse(strings.TrimSpace(e.DeliveryID))
	if err != nil {
		p.count("invalid")
		p.logger.Warn("payment event with bad delivery id", logx.String("delivery_id", e.DeliveryID))
		return nil
	}

	_, err = p.confirm.ConfirmPayment(ctx, id, e.Reference, e.Amount)
	switch {
	case err == nil:
		p.count("confirmed")
		return nil
	case errors.Is(err, apperr.ErrNotFound):
		p.count("stale")
		p.logger.Warn("payment for unknown delivery", logx.String("delivery_id", e.DeliveryID))
		return nil
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrPaymentRequired):
		p.count("rejected")
		p.logger.Warn("payment event rejected",
			logx.String("delivery_id", e.DeliveryID),
			logx.String("reference", e.Reference),
			logx.Err(err),
		)
		return nil
	case errors.Is(err, apperr.ErrInvalid):
		p.count("invalid")
		p.logger.Warn("payment event rejected", logx.String("delivery_id", e.DeliveryID), logx.Err(err))
		return nil
	default:
		return fmt.Errorf("confirm payment %s: %w", id, err)
	}
}

func (p *Processor) onFailed(_ context.Context, e Event) error {
	p.count("failed")
	p.logger.Info("payment failed",
		logx.String("event", "payment_failed"),
		logx.String("delivery_id", e.DeliveryID),
		logx.String("reference", e.Reference),
		logx.String("status", e.Status),
	)
	return nil
}

func (p *Processor) count(action string) {
	if p.events != nil {
		p.events.WithLabelValues(action).Inc()
	}
}
