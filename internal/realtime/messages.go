package realtime

import (
	"encoding/json"
	"fmt"

	"service-delivery-tracking/internal/apperr"
)

// Inbound message types.
const (
	msgStatusUpdate   = "status_update"
	msgLocationUpdate = "location_update"
)

// inbound is any client-to-server message.
type inbound struct {
	Type       string   `json:"type"`
	DeliveryID string   `json:"delivery_id,omitempty"`
	Status     string   `json:"status,omitempty"`
	Note       string   `json:"note,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	Seq        uint64   `json:"seq,omitempty"`
}

// ErrorMessage is the server-to-client error frame.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func encodeError(err error) []byte {
	code := apperr.Code(err)
	msg := err.Error()
	if code == "internal" {
		msg = "internal error"
	}
	raw, mErr := json.Marshal(ErrorMessage{Type: "error", Code: code, Message: msg})
	if mErr != nil {
		return []byte(`{"type":"error","code":"internal","message":"internal error"}`)
	}
	return raw
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", apperr.ErrMalformedMessage, reason)
}
