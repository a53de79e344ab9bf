package repository

import (
	"time"

	"github.com/jackc/pgx/v5"

	"service-delivery-tracking/internal/domain"
)

const deliveryColumns = `
    id, customer_ref, courier_ref, status, item_name, payment_method, paid,
    pickup_address, pickup_lat, pickup_lon,
    dropoff_address, dropoff_lat, dropoff_lon,
    distance_km, duration_min, price,
    courier_lat, courier_lon, position_seq, position_at,
    pickedup_at, delivered_at, canceled_at,
    tracking_number, created_at, updated_at`

// placeCols is the nullable column triple of a Place.
type placeCols struct {
	address  *string
	lat, lon *float64
}

func (p placeCols) place() *domain.Place {
	if p.address == nil || p.lat == nil || p.lon == nil {
		return nil
	}
	return &domain.Place{Address: *p.address, Point: domain.Point{Lat: *p.lat, Lon: *p.lon}}
}

func splitPlace(p *domain.Place) placeCols {
	if p == nil {
		return placeCols{}
	}
	return placeCols{address: &p.Address, lat: &p.Point.Lat, lon: &p.Point.Lon}
}

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var (
		d                domain.Delivery
		courier          *string
		status, method   string
		pickup, dropoff  placeCols
		courierLat, cLon *float64
		seq              int64
	)
	err := row.Scan(
		&d.ID, &d.CustomerRef, &courier, &status, &d.ItemName, &method, &d.Paid,
		&pickup.address, &pickup.lat, &pickup.lon,
		&dropoff.address, &dropoff.lat, &dropoff.lon,
		&d.Quote.DistanceKm, &d.Quote.DurationMin, &d.Quote.Price,
		&courierLat, &cLon, &seq, &d.PositionAt,
		&d.PickedUpAt, &d.DeliveredAt, &d.CanceledAt,
		&d.TrackingNumber, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if courier != nil {
		d.CourierRef = *courier
	}
	d.Status = domain.Status(status)
	d.PaymentMethod = domain.PaymentMethod(method)
	d.Pickup = pickup.place()
	d.Dropoff = dropoff.place()
	if courierLat != nil && cLon != nil {
		d.CourierPosition = &domain.Point{Lat: *courierLat, Lon: *cLon}
	}
	d.PositionSeq = uint64(seq)
	d.PositionAt = utcPtr(d.PositionAt)
	d.PickedUpAt = utcPtr(d.PickedUpAt)
	d.DeliveredAt = utcPtr(d.DeliveredAt)
	d.CanceledAt = utcPtr(d.CanceledAt)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return &d, nil
}

func scanDeliveries(rows pgx.Rows) ([]domain.Delivery, error) {
	defer rows.Close()
	var out []domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// deliveryArgs returns the values for every column after id, in deliveryColumns order.
func deliveryArgs(d *domain.Delivery) []any {
	pickup, dropoff := splitPlace(d.Pickup), splitPlace(d.Dropoff)
	var courierLat, courierLon *float64
	if d.CourierPosition != nil {
		courierLat, courierLon = &d.CourierPosition.Lat, &d.CourierPosition.Lon
	}
	return []any{
		d.CustomerRef, nullString(d.CourierRef), string(d.Status), d.ItemName, string(d.PaymentMethod), d.Paid,
		pickup.address, pickup.lat, pickup.lon,
		dropoff.address, dropoff.lat, dropoff.lon,
		d.Quote.DistanceKm, d.Quote.DurationMin, d.Quote.Price,
		courierLat, courierLon, int64(d.PositionSeq), d.PositionAt,
		d.PickedUpAt, d.DeliveredAt, d.CanceledAt,
		d.TrackingNumber, d.CreatedAt, d.UpdatedAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
