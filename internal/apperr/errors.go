package apperr

import "errors"

// ErrInvalid is returned when the input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrConflict indicates a uniqueness or state conflict (HTTP 409).
var ErrConflict = errors.New("conflict")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized is returned when the caller cannot be identified.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden indicates the actor lacks permission for the operation.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidTransition indicates the target status is not reachable from the current one.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrAlreadyClaimed is returned to the courier that lost a claim race.
var ErrAlreadyClaimed = errors.New("already claimed")

// ErrPaymentRequired indicates dispatch was attempted before payment was confirmed.
var ErrPaymentRequired = errors.New("payment required")

// ErrMalformedMessage indicates an unparseable inbound real-time payload.
var ErrMalformedMessage = errors.New("malformed message")

// ErrTransport indicates a failed send to a subscriber or event sink.
var ErrTransport = errors.New("transport error")

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidTransition, "invalid_transition"},
	{ErrForbidden, "forbidden"},
	{ErrAlreadyClaimed, "already_claimed"},
	{ErrPaymentRequired, "payment_required"},
	{ErrMalformedMessage, "malformed_message"},
	{ErrNotFound, "not_found"},
	{ErrInvalid, "invalid"},
	{ErrConflict, "conflict"},
	{ErrUnauthorized, "unauthorized"},
	{ErrTransport, "transport"},
}

// Code maps err to the short code sent to real-time clients.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
