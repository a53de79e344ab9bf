package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"service-delivery-tracking/internal/apperr"
)

// Payment is a verified payment as reported by the provider.
type Payment struct {
	Reference string
	Status    string
	Amount    float64
	Currency  string
	// DeliveryID is the delivery the intent was created for, empty when the
	// intent carries no delivery_id metadata.
	DeliveryID string
}

// MetadataDeliveryID is the PaymentIntent metadata key naming the delivery.
const MetadataDeliveryID = "delivery_id"

type intentGetter func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)

// StripeVerifier verifies payment references against Stripe PaymentIntents.
type StripeVerifier struct {
	get intentGetter
}

// NewStripeVerifier configures the stripe client with the API key.
func NewStripeVerifier(key string) *StripeVerifier {
	if key == "" {
		return nil
	}
	stripe.Key = key
	return &StripeVerifier{get: paymentintent.Get}
}

// Verify fetches the PaymentIntent and succeeds only when it has been paid.
func (v *StripeVerifier) Verify(ctx context.Context, reference string) (Payment, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Payment{}, fmt.Errorf("%w: empty payment reference", apperr.ErrInvalid)
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := v.get(reference, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return Payment{}, fmt.Errorf("%w: unknown payment reference %q", apperr.ErrInvalid, reference)
		}
		return Payment{}, fmt.Errorf("payment gateway: get intent: %w", err)
	}

	p := Payment{
		Reference: pi.ID,
		Status:    string(pi.Status),
		Amount:    float64(pi.Amount) / 100,
		Currency:  string(pi.Currency),
	}
	if pi.Metadata != nil {
		p.DeliveryID = strings.TrimSpace(pi.Metadata[MetadataDeliveryID])
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return p, fmt.Errorf("%w: payment %s is %s", apperr.ErrPaymentRequired, pi.ID, pi.Status)
	}
	return p, nil
}
