package app

import (
	"context"
	"errors"

	"service-delivery-tracking/internal/apperr"
	"service-delivery-tracking/internal/service/payments"
	"service-delivery-tracking/internal/transport/kafka"
)

type paymentHandler interface {
	Handle(ctx context.Context, e payments.Event) error
}

// makePaymentsHandler adapts the processor to the consumer. Rejections that
// redelivery cannot fix are marked permanent so the partition moves on.
func makePaymentsHandler(p paymentHandler) kafka.HandleFunc {
	return func(ctx context.Context, event payments.Event) error {
		err := p.Handle(ctx, event)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, apperr.ErrInvalidTransition),
			errors.Is(err, apperr.ErrConflict),
			errors.Is(err, apperr.ErrPaymentRequired),
			errors.Is(err, apperr.ErrForbidden):
			return kafka.Permanent(err)
		default:
			return err
		}
	}
}
