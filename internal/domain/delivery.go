package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentMethod is how the customer pays for a delivery.
type PaymentMethod string

// List of possible payment methods
const (
	PaymentCard PaymentMethod = "card"
	PaymentCOD  PaymentMethod = "cod"
)

// Valid checks if the PaymentMethod is valid
func (m PaymentMethod) Valid() bool {
	return m == PaymentCard || m == PaymentCOD
}

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

// Valid checks that the coordinates are within range.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Place is an address with its coordinates.
type Place struct {
	Address string
	Point   Point
}

// Quote is computed once both pickup and drop-off are known.
type Quote struct {
	DistanceKm  float64
	DurationMin int
	Price       float64
}

// Delivery is one pickup-to-dropoff shipment and its lifecycle state.
type Delivery struct {
	ID            uuid.UUID
	Status        Status
	CustomerRef   string
	CourierRef    string
	ItemName      string
	PaymentMethod PaymentMethod
	Paid          bool

	Pickup  *Place
	Dropoff *Place
	Quote   Quote

	CourierPosition *Point
	PositionSeq     uint64
	PositionAt      *time.Time

	PickedUpAt  *time.Time
	DeliveredAt *time.Time
	CanceledAt  *time.Time

	TrackingNumber string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Errors returned by Ready; all of them describe an incomplete draft.
var (
	ErrMissingItem    = errors.New("item name is required")
	ErrMissingPickup  = errors.New("pickup location is required")
	ErrMissingDropoff = errors.New("delivery location is required")
	ErrMissingPayment = errors.New("payment method is required")
)

// Ready reports whether the draft carries everything needed to be dispatched.
func (d *Delivery) Ready() error {
	switch {
	case strings.TrimSpace(d.ItemName) == "":
		return ErrMissingItem
	case d.Pickup == nil:
		return ErrMissingPickup
	case d.Dropoff == nil:
		return ErrMissingDropoff
	case !d.PaymentMethod.Valid():
		return ErrMissingPayment
	}
	return nil
}

// RequiresPrepayment reports whether payment must be confirmed before dispatch.
func (d *Delivery) RequiresPrepayment() bool {
	return d.PaymentMethod != PaymentCOD
}

// PartiesOf returns the parties the actor belongs to for this delivery.
func (d *Delivery) PartiesOf(a Actor) Party {
	var p Party
	if a.IsCustomer(d.CustomerRef) {
		p |= PartyOwner
	}
	if a.Role == RoleCourier {
		if d.CourierRef == "" {
			p |= PartyClaimant
		} else if a.ID == d.CourierRef {
			p |= PartyAssignedCourier
		}
	}
	if a.Role == RoleStaff {
		p |= PartyStaff
	}
	return p
}

// VisibleTo reports whether the actor may observe the delivery.
// Couriers see the dispatchable pool before claiming.
func (d *Delivery) VisibleTo(a Actor) bool {
	switch {
	case a.Role == RoleStaff:
		return true
	case a.IsCustomer(d.CustomerRef):
		return true
	case a.IsCourier(d.CourierRef):
		return true
	case a.Role == RoleCourier && d.CourierRef == "" && d.Status == StatusProcessing:
		return true
	}
	return false
}

// Clone returns a deep copy so callers may mutate it without aliasing.
func (d Delivery) Clone() Delivery {
	out := d
	if d.Pickup != nil {
		p := *d.Pickup
		out.Pickup = &p
	}
	if d.Dropoff != nil {
		p := *d.Dropoff
		out.Dropoff = &p
	}
	if d.CourierPosition != nil {
		p := *d.CourierPosition
		out.CourierPosition = &p
	}
	out.PositionAt = cloneTime(d.PositionAt)
	out.PickedUpAt = cloneTime(d.PickedUpAt)
	out.DeliveredAt = cloneTime(d.DeliveredAt)
	out.CanceledAt = cloneTime(d.CanceledAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Transaction is the payment record confirming a delivery was paid.
type Transaction struct {
	DeliveryID uuid.UUID
	Reference  string
	Amount     float64
	Verified   bool
	CreatedAt  time.Time
}

// DraftInput carries optional draft fields; a nil field means "do not change".
type DraftInput struct {
	ItemName      *string
	PaymentMethod *PaymentMethod
	Pickup        *Place
	Dropoff       *Place
}

// Earnings is the courier summary over completed deliveries.
type Earnings struct {
	CourierRef string
	Completed  int
	TotalKm    float64
	Earnings   float64
}
