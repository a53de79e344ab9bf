package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"service-delivery-tracking/internal/domain"
	"service-delivery-tracking/internal/ports/deliverytx"
)

// MemoryRepo is an in-process delivery store with the same contract as DeliveryRepo.
// Transactions are serialized; writes are staged and applied on commit.
type MemoryRepo struct {
	txMu sync.Mutex

	mu           sync.RWMutex
	deliveries   map[uuid.UUID]domain.Delivery
	tracking     map[string]uuid.UUID
	transactions map[string]domain.Transaction
	newTracking  func() (string, error)
}

// NewMemoryRepo creates an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		deliveries:   make(map[uuid.UUID]domain.Delivery),
		tracking:     make(map[string]uuid.UUID),
		transactions: make(map[string]domain.Transaction),
		newTracking:  NewTrackingNumber,
	}
}

// Create inserts a new delivery with a unique tracking number.
func (r *MemoryRepo) Create(_ context.Context, d *domain.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.deliveries[d.ID]; ok {
		return fmt.Errorf("insert delivery %s: duplicate id", d.ID)
	}
	for attempt := 1; ; attempt++ {
		tn, err := r.newTracking()
		if err != nil {
			return err
		}
		if _, taken := r.tracking[tn]; !taken {
			d.TrackingNumber = tn
			break
		}
		if attempt >= maxTrackingAttempts {
			return fmt.Errorf("insert delivery %s: tracking number collision", d.ID)
		}
	}
	r.deliveries[d.ID] = d.Clone()
	r.tracking[d.TrackingNumber] = d.ID
	return nil
}

// Get returns the delivery by id, or nil when it does not exist.
func (r *MemoryRepo) Get(_ context.Context, id uuid.UUID) (*domain.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.deliveries[id]
	if !ok {
		return nil, nil
	}
	out := d.Clone()
	return &out, nil
}

// ListByStatus returns deliveries in the given status, oldest first.
func (r *MemoryRepo) ListByStatus(_ context.Context, status domain.Status, limit, offset int) ([]domain.Delivery, error) {
	out := r.filter(func(d *domain.Delivery) bool { return d.Status == status })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// ListCompletedByCourier returns the courier's delivered shipments.
func (r *MemoryRepo) ListCompletedByCourier(_ context.Context, courierRef string) ([]domain.Delivery, error) {
	return r.filter(func(d *domain.Delivery) bool {
		return d.CourierRef == courierRef && d.Status == domain.StatusCompleted
	}), nil
}

func (r *MemoryRepo) filter(keep func(d *domain.Delivery) bool) []domain.Delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Delivery
	for _, d := range r.deliveries {
		if keep(&d) {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// WithTx runs fn holding the store's transaction lock. Nothing fn writes is
// visible until it returns nil.
func (r *MemoryRepo) WithTx(ctx context.Context, fn func(tx deliverytx.Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	tx := &memoryTx{
		repo:         r,
		deliveries:   make(map[uuid.UUID]domain.Delivery),
		transactions: make(map[string]domain.Transaction),
	}
	if err := fn(tx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, d := range tx.deliveries {
		r.deliveries[id] = d
	}
	for ref, t := range tx.transactions {
		r.transactions[ref] = t
	}
	return nil
}

// Transactions returns the recorded payment transactions of a delivery.
func (r *MemoryRepo) Transactions(deliveryID uuid.UUID) []domain.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Transaction
	for _, t := range r.transactions {
		if t.DeliveryID == deliveryID {
			out = append(out, t)
		}
	}
	return out
}

type memoryTx struct {
	repo         *MemoryRepo
	deliveries   map[uuid.UUID]domain.Delivery
	transactions map[string]domain.Transaction
}

func (t *memoryTx) lookup(id uuid.UUID) (domain.Delivery, bool) {
	if d, ok := t.deliveries[id]; ok {
		return d, true
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	d, ok := t.repo.deliveries[id]
	return d, ok
}

func (t *memoryTx) GetForUpdate(_ context.Context, id uuid.UUID) (*domain.Delivery, error) {
	d, ok := t.lookup(id)
	if !ok {
		return nil, nil
	}
	out := d.Clone()
	return &out, nil
}

func (t *memoryTx) Update(_ context.Context, d *domain.Delivery) error {
	cur, ok := t.lookup(d.ID)
	if !ok {
		return fmt.Errorf("delivery %s not found", d.ID)
	}
	next := d.Clone()
	next.TrackingNumber = cur.TrackingNumber
	next.CreatedAt = cur.CreatedAt
	t.deliveries[d.ID] = next
	return nil
}

// HasActiveForCustomer needs no extra lock: WithTx already serializes every
// transaction of the store.
func (t *memoryTx) HasActiveForCustomer(_ context.Context, customerRef string, exclude uuid.UUID) (bool, error) {
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	for id, d := range t.repo.deliveries {
		if staged, ok := t.deliveries[id]; ok {
			d = staged
		}
		if id != exclude && d.CustomerRef == customerRef && d.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) InsertTransaction(_ context.Context, tr *domain.Transaction) (uuid.UUID, error) {
	if cur, ok := t.transactions[tr.Reference]; ok {
		return cur.DeliveryID, nil
	}
	t.repo.mu.RLock()
	cur, exists := t.repo.transactions[tr.Reference]
	t.repo.mu.RUnlock()
	if exists {
		return cur.DeliveryID, nil
	}
	t.transactions[tr.Reference] = *tr
	return tr.DeliveryID, nil
}
