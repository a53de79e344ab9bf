package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a server-to-client event.
type EventType string

// List of event types
const (
	EventStatusChanged   EventType = "status_changed"
	EventLocationChanged EventType = "location_changed"
)

// Event is a lifecycle or position change fanned out to subscribers.
type Event struct {
	Type       EventType
	DeliveryID uuid.UUID
	Status     Status
	Timestamp  time.Time
	Position   Point
	Note       string
}

// StatusChanged builds a status_changed event for d.
func StatusChanged(d *Delivery, at time.Time, note string) Event {
	return Event{
		Type:       EventStatusChanged,
		DeliveryID: d.ID,
		Status:     d.Status,
		Timestamp:  at,
		Note:       note,
	}
}

// LocationChanged builds a location_changed event for d.
func LocationChanged(d *Delivery, p Point, at time.Time) Event {
	return Event{
		Type:       EventLocationChanged,
		DeliveryID: d.ID,
		Status:     d.Status,
		Timestamp:  at,
		Position:   p,
	}
}

// Group key prefixes.
const (
	groupDelivery = "delivery:"
	groupCustomer = "customer:"
	groupCourier  = "courier:"
)

// DeliveryGroup is the group of everyone watching one delivery.
func DeliveryGroup(id uuid.UUID) string { return groupDelivery + id.String() }

// CustomerGroup is the cross-delivery group of one customer.
func CustomerGroup(ref string) string { return groupCustomer + ref }

// CourierGroup is the cross-delivery group of one courier.
func CourierGroup(ref string) string { return groupCourier + ref }

// ActorGroup returns the identity group of an actor, if it has one.
func ActorGroup(a Actor) (string, bool) {
	switch a.Role {
	case RoleCustomer:
		return CustomerGroup(a.ID), true
	case RoleCourier:
		return CourierGroup(a.ID), true
	default:
		return "", false
	}
}

// GroupsFor returns the groups interested in ev for delivery d.
func GroupsFor(d *Delivery, ev Event) []string {
	groups := []string{DeliveryGroup(d.ID), CustomerGroup(d.CustomerRef)}
	if ev.Type == EventStatusChanged && d.CourierRef != "" {
		groups = append(groups, CourierGroup(d.CourierRef))
	}
	return groups
}
