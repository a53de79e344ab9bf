package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"service-delivery-tracking/internal/domain"
	"service-delivery-tracking/internal/ports/deliverytx"
)

const trackingNumberConstraint = "deliveries_tracking_number_key"

// DeliveryRepo represents delivery repository.
type DeliveryRepo struct {
	db *pgxpool.Pool
}

// NewDeliveryRepo creates a new DeliveryRepo.
func NewDeliveryRepo(db *pgxpool.Pool) *DeliveryRepo {
	return &DeliveryRepo{db: db}
}

// Create inserts a new delivery. The tracking number is generated here and
// regenerated on collision; it never changes after the first save.
func (r *DeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	args := func() []any { return append([]any{d.ID}, deliveryArgs(d)...) }
	for attempt := 1; ; attempt++ {
		tn, err := NewTrackingNumber()
		if err != nil {
			return err
		}
		d.TrackingNumber = tn

		_, err = r.db.Exec(ctx, `
            INSERT INTO deliveries (`+deliveryColumns+`)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
                    $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
        `, args()...)
		if err == nil {
			return nil
		}
		if isDuplicateOn(err, trackingNumberConstraint) && attempt < maxTrackingAttempts {
			continue
		}
		d.TrackingNumber = ""
		return fmt.Errorf("insert delivery %s: %w", d.ID, err)
	}
}

// Get returns the delivery by id, or nil when it does not exist.
func (r *DeliveryRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Delivery, error) {
	row := r.db.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id)
	d, err := scanDelivery(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get delivery %s: %w", id, err)
	}
	return d, nil
}

// ListByStatus returns deliveries in the given status, oldest first.
func (r *DeliveryRepo) ListByStatus(ctx context.Context, status domain.Status, limit, offset int) ([]domain.Delivery, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+deliveryColumns+`
        FROM deliveries
        WHERE status = $1
        ORDER BY created_at ASC, id ASC
        LIMIT $2 OFFSET $3
    `, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list deliveries by status %q: %w", status, err)
	}
	out, err := scanDeliveries(rows)
	if err != nil {
		return nil, fmt.Errorf("scan deliveries: %w", err)
	}
	return out, nil
}

// ListCompletedByCourier returns the courier's delivered shipments.
func (r *DeliveryRepo) ListCompletedByCourier(ctx context.Context, courierRef string) ([]domain.Delivery, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+deliveryColumns+`
        FROM deliveries
        WHERE courier_ref = $1 AND status = $2
        ORDER BY delivered_at ASC
    `, courierRef, string(domain.StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("list completed deliveries of %q: %w", courierRef, err)
	}
	out, err := scanDeliveries(rows)
	if err != nil {
		return nil, fmt.Errorf("scan deliveries: %w", err)
	}
	return out, nil
}

// WithTx opens a transaction and executes fn within it.
func (r *DeliveryRepo) WithTx(ctx context.Context, fn func(tx deliverytx.Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&TxRepo{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// TxRepo represents transaction repository.
type TxRepo struct {
	tx pgx.Tx
}

// GetForUpdate loads the delivery and locks its row until the transaction ends.
func (r *TxRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Delivery, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1 FOR UPDATE`, id)
	d, err := scanDelivery(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get delivery %s for update: %w", id, err)
	}
	return d, nil
}

// Update writes every mutable column of d. The tracking number is immutable.
func (r *TxRepo) Update(ctx context.Context, d *domain.Delivery) error {
	pickup, dropoff := splitPlace(d.Pickup), splitPlace(d.Dropoff)
	var courierLat, courierLon *float64
	if d.CourierPosition != nil {
		courierLat, courierLon = &d.CourierPosition.Lat, &d.CourierPosition.Lon
	}
	ct, err := r.tx.Exec(ctx, `
        UPDATE deliveries SET
            courier_ref = $2, status = $3, item_name = $4, payment_method = $5, paid = $6,
            pickup_address = $7, pickup_lat = $8, pickup_lon = $9,
            dropoff_address = $10, dropoff_lat = $11, dropoff_lon = $12,
            distance_km = $13, duration_min = $14, price = $15,
            courier_lat = $16, courier_lon = $17, position_seq = $18, position_at = $19,
            pickedup_at = $20, delivered_at = $21, canceled_at = $22,
            updated_at = $23
        WHERE id = $1
    `,
		d.ID, nullString(d.CourierRef), string(d.Status), d.ItemName, string(d.PaymentMethod), d.Paid,
		pickup.address, pickup.lat, pickup.lon,
		dropoff.address, dropoff.lat, dropoff.lon,
		d.Quote.DistanceKm, d.Quote.DurationMin, d.Quote.Price,
		courierLat, courierLon, int64(d.PositionSeq), d.PositionAt,
		d.PickedUpAt, d.DeliveredAt, d.CanceledAt,
		d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update delivery %s: %w", d.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("delivery %s not found", d.ID)
	}
	return nil
}

// HasActiveForCustomer reports whether the customer has another dispatched,
// unfinished delivery. A transaction-scoped advisory lock on the customer keeps
// two dispatches of different drafts from both passing the check.
func (r *TxRepo) HasActiveForCustomer(ctx context.Context, customerRef string, exclude uuid.UUID) (bool, error) {
	if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, customerRef); err != nil {
		return false, fmt.Errorf("lock customer %q: %w", customerRef, err)
	}
	var exists bool
	err := r.tx.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM deliveries
            WHERE customer_ref = $1 AND id <> $2 AND status = ANY($3)
        )
    `, customerRef, exclude, activeStatuses()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active deliveries of %q: %w", customerRef, err)
	}
	return exists, nil
}

// InsertTransaction stores the payment record once per reference and returns
// the delivery that owns the reference.
func (r *TxRepo) InsertTransaction(ctx context.Context, t *domain.Transaction) (uuid.UUID, error) {
	var owner uuid.UUID
	err := r.tx.QueryRow(ctx, `
        WITH ins AS (
            INSERT INTO delivery_transactions (delivery_id, reference, amount, verified, created_at)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (reference) DO NOTHING
            RETURNING delivery_id
        )
        SELECT delivery_id FROM ins
        UNION ALL
        SELECT delivery_id FROM delivery_transactions WHERE reference = $2
        LIMIT 1
    `, t.DeliveryID, t.Reference, t.Amount, t.Verified, t.CreatedAt).Scan(&owner)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert transaction %q: %w", t.Reference, err)
	}
	return owner, nil
}

func activeStatuses() []string {
	return []string{
		string(domain.StatusProcessing),
		string(domain.StatusPickupInProgress),
		string(domain.StatusDeliveryInProgress),
	}
}
