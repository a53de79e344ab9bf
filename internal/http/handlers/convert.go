package handlers

import (
	"strings"

	"service-delivery-tracking/internal/domain"
)

func (r draftRequest) toDomain() domain.DraftInput {
	var in domain.DraftInput
	in.ItemName = r.ItemName
	if r.PaymentMethod != nil {
		m := domain.PaymentMethod(strings.ToLower(strings.TrimSpace(*r.PaymentMethod)))
		in.PaymentMethod = &m
	}
	in.Pickup = placeToDomain(r.Pickup)
	in.Dropoff = placeToDomain(r.Dropoff)
	return in
}

func placeToDomain(p *placeDTO) *domain.Place {
	if p == nil {
		return nil
	}
	return &domain.Place{Address: p.Address, Point: domain.Point{Lat: p.Lat, Lon: p.Lon}}
}

func placeFromDomain(p *domain.Place) *placeDTO {
	if p == nil {
		return nil
	}
	return &placeDTO{Address: p.Address, Lat: p.Point.Lat, Lon: p.Point.Lon}
}

func deliveryToResponse(d domain.Delivery) deliveryDTO {
	out := deliveryDTO{
		ID:             d.ID.String(),
		TrackingNumber: d.TrackingNumber,
		Status:         string(d.Status),
		CustomerID:     d.CustomerRef,
		CourierID:      d.CourierRef,
		ItemName:       d.ItemName,
		PaymentMethod:  string(d.PaymentMethod),
		Paid:           d.Paid,
		Pickup:         placeFromDomain(d.Pickup),
		Dropoff:        placeFromDomain(d.Dropoff),
		PickedUpAt:     d.PickedUpAt,
		DeliveredAt:    d.DeliveredAt,
		CanceledAt:     d.CanceledAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.Pickup != nil && d.Dropoff != nil {
		out.Quote = &quoteDTO{
			DistanceKm:  d.Quote.DistanceKm,
			DurationMin: d.Quote.DurationMin,
			Price:       d.Quote.Price,
		}
	}
	if d.CourierPosition != nil {
		out.CourierPosition = &pointDTO{Lat: d.CourierPosition.Lat, Lon: d.CourierPosition.Lon}
	}
	return out
}

func deliveriesToResponse(ds []domain.Delivery) []deliveryDTO {
	out := make([]deliveryDTO, 0, len(ds))
	for _, d := range ds {
		out = append(out, deliveryToResponse(d))
	}
	return out
}

func earningsToResponse(e domain.Earnings) earningsDTO {
	return earningsDTO{
		CourierID: e.CourierRef,
		Completed: e.Completed,
		TotalKm:   e.TotalKm,
		Earnings:  e.Earnings,
	}
}
