package kafka

import (
	"strings"
	"time"

	"service-delivery-tracking/internal/domain"
	"service-delivery-tracking/internal/service/payments"
)

// EventDTO is a data transfer object for payments.Event
type EventDTO struct {
	DeliveryID string    `json:"delivery_id"`
	Reference  string    `json:"reference"`
	Status     string    `json:"status"`
	Amount     float64   `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToDomain converts EventDTO to payments.Event
func ToDomain(dto EventDTO) payments.Event {
	return payments.Event{
		DeliveryID: strings.TrimSpace(dto.DeliveryID),
		Reference:  strings.TrimSpace(dto.Reference),
		Status:     strings.TrimSpace(dto.Status),
		Amount:     dto.Amount,
		CreatedAt:  dto.CreatedAt,
	}
}

// LifecycleDTO is the record written to the delivery events topic.
type LifecycleDTO struct {
	Type       string    `json:"type"`
	DeliveryID string    `json:"delivery_id"`
	Status     string    `json:"status"`
	Note       string    `json:"note,omitempty"`
	Groups     []string  `json:"groups"`
	Timestamp  time.Time `json:"timestamp"`
}

// FromEvent converts a status event to its topic record.
func FromEvent(groups []string, ev domain.Event) LifecycleDTO {
	return LifecycleDTO{
		Type:       string(ev.Type),
		DeliveryID: ev.DeliveryID.String(),
		Status:     string(ev.Status),
		Note:       ev.Note,
		Groups:     groups,
		Timestamp:  ev.Timestamp.UTC(),
	}
}
