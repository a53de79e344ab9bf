package handlers

import "time"

type pointDTO struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type placeDTO struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

type quoteDTO struct {
	DistanceKm  float64 `json:"distance_km"`
	DurationMin int     `json:"duration_min"`
	Price       float64 `json:"price"`
}

type draftRequest struct {
	ItemName      *string   `json:"item_name,omitempty"`
	PaymentMethod *string   `json:"payment_method,omitempty"`
	Pickup        *placeDTO `json:"pickup,omitempty"`
	Dropoff       *placeDTO `json:"dropoff,omitempty"`
}

type deliveryDTO struct {
	ID              string     `json:"id"`
	TrackingNumber  string     `json:"tracking_number"`
	Status          string     `json:"status"`
	CustomerID      string     `json:"customer_id"`
	CourierID       string     `json:"courier_id,omitempty"`
	ItemName        string     `json:"item_name,omitempty"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	Paid            bool       `json:"paid"`
	Pickup          *placeDTO  `json:"pickup,omitempty"`
	Dropoff         *placeDTO  `json:"dropoff,omitempty"`
	Quote           *quoteDTO  `json:"quote,omitempty"`
	CourierPosition *pointDTO  `json:"courier_position,omitempty"`
	PickedUpAt      *time.Time `json:"picked_up_at,omitempty"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
	CanceledAt      *time.Time `json:"canceled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type listResponse struct {
	Items  []deliveryDTO `json:"items"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type transitionRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

type locationRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Seq uint64  `json:"seq,omitempty"`
}

type locationResponse struct {
	Accepted bool `json:"accepted"`
}

type verifyPaymentRequest struct {
	Reference string `json:"reference"`
}

type earningsDTO struct {
	CourierID string  `json:"courier_id"`
	Completed int     `json:"completed"`
	TotalKm   float64 `json:"total_km"`
	Earnings  float64 `json:"earnings"`
}
