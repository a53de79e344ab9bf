package domain

import "strings"

// Status represents a delivery lifecycle state.
type Status string

// List of possible delivery statuses
const (
	StatusCreating           Status = "creating"
	StatusProcessing         Status = "processing"
	StatusPickupInProgress   Status = "pickup_in_progress"
	StatusDeliveryInProgress Status = "in-progress"
	StatusCompleted          Status = "delivered"
	StatusCanceled           Status = "canceled"
)

var allowedStatuses = [...]Status{
	StatusCreating,
	StatusProcessing,
	StatusPickupInProgress,
	StatusDeliveryInProgress,
	StatusCompleted,
	StatusCanceled,
}

// Valid checks if the Status is valid
func (s Status) Valid() bool {
	for _, v := range allowedStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// Active reports whether a courier is (or may soon be) working on the delivery.
func (s Status) Active() bool {
	switch s {
	case StatusProcessing, StatusPickupInProgress, StatusDeliveryInProgress:
		return true
	default:
		return false
	}
}

// Tracking reports whether courier positions are accepted in s.
func (s Status) Tracking() bool {
	return s == StatusPickupInProgress || s == StatusDeliveryInProgress
}

// ParseStatus parses a wire status name.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", false
	}
	return s, true
}

// Party is a bit set of the parties allowed to trigger a transition.
type Party uint8

// List of parties
const (
	// PartyOwner is the customer owning the delivery.
	PartyOwner Party = 1 << iota
	// PartyClaimant is any courier not yet assigned (claim).
	PartyClaimant
	// PartyAssignedCourier is the courier holding the claim.
	PartyAssignedCourier
	// PartyStaff is an operator.
	PartyStaff
)

// Has reports whether p includes q.
func (p Party) Has(q Party) bool { return p&q != 0 }

// Transition is a directed edge of the lifecycle graph.
type Transition struct {
	From Status
	To   Status
}

// transitions is the only place where valid edges and their parties are declared.
var transitions = map[Transition]Party{
	{StatusCreating, StatusProcessing}:                 PartyOwner,
	{StatusProcessing, StatusPickupInProgress}:         PartyClaimant,
	{StatusProcessing, StatusCanceled}:                 PartyOwner | PartyStaff,
	{StatusPickupInProgress, StatusDeliveryInProgress}: PartyAssignedCourier,
	{StatusPickupInProgress, StatusCanceled}:           PartyOwner | PartyAssignedCourier | PartyStaff,
	{StatusDeliveryInProgress, StatusCompleted}:        PartyAssignedCourier,
}

// Allowed returns the parties permitted on the edge from → to.
func Allowed(from, to Status) (Party, bool) {
	p, ok := transitions[Transition{From: from, To: to}]
	return p, ok
}

// Into returns the union of parties permitted on any edge entering to.
func Into(to Status) Party {
	var p Party
	for t, parties := range transitions {
		if t.To == to {
			p |= parties
		}
	}
	return p
}
