package payments

import (
	"time"
)

// Event is a single payment event from the payments topic.
type Event struct {
	DeliveryID string    `json:"delivery_id"`
	Reference  string    `json:"reference"`
	Status     string    `json:"status"`
	Amount     float64   `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}
