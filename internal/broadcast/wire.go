package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"service-delivery-tracking/internal/domain"
)

// StatusChangedMessage is the wire form of a status_changed event.
type StatusChangedMessage struct {
	Type       string `json:"type"`
	DeliveryID string `json:"delivery_id"`
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
}

// LocationChangedMessage is the wire form of a location_changed event.
type LocationChangedMessage struct {
	Type       string  `json:"type"`
	DeliveryID string  `json:"delivery_id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// Encode renders ev as the JSON frame sent to subscribers.
func Encode(ev domain.Event) ([]byte, error) {
	switch ev.Type {
	case domain.EventStatusChanged:
		return json.Marshal(StatusChangedMessage{
			Type:       string(ev.Type),
			DeliveryID: ev.DeliveryID.String(),
			Status:     string(ev.Status),
			Timestamp:  ev.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	case domain.EventLocationChanged:
		return json.Marshal(LocationChangedMessage{
			Type:       string(ev.Type),
			DeliveryID: ev.DeliveryID.String(),
			Latitude:   ev.Position.Lat,
			Longitude:  ev.Position.Lon,
		})
	default:
		return nil, fmt.Errorf("encode event: unknown type %q", ev.Type)
	}
}
