package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcdev12/tableside/go/internal/models"
)

// MemoryRepository is an in-process order store with the same semantics as
// Repository. Ids start at 1.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[int64]*models.Order
	nextID int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders: make(map[int64]*models.Order),
		nextID: 1,
	}
}

func (r *MemoryRepository) CreateOrder(_ context.Context, req CreateOrderRequest) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order := &models.Order{
		ID:          r.nextID,
		TableNumber: req.TableNumber,
		WaiterName:  req.WaiterName,
		Items:       req.Items,
		Status:      models.OrderStatusNew,
		CreatedAt:   req.CreatedAt.UTC(),
	}
	r.orders[order.ID] = order
	r.nextID++

	return order.Clone(), nil
}

func (r *MemoryRepository) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return order.Clone(), nil
}

func (r *MemoryRepository) ListOrdersByStatus(_ context.Context, statuses ...models.OrderStatus) ([]*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[models.OrderStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	return r.collect(func(o *models.Order) bool { return want[o.Status] }), nil
}

func (r *MemoryRepository) ListOrdersForSnapshot(_ context.Context, completedSince *time.Time) ([]*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(o *models.Order) bool {
		if o.Status != models.OrderStatusCompleted || completedSince == nil || o.CompletedAt == nil {
			return true
		}
		return !o.CompletedAt.Before(*completedSince)
	}), nil
}

func (r *MemoryRepository) UpdateOrderStatus(_ context.Context, upd StatusUpdate) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[upd.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if order.Status != upd.ExpectedStatus || !sameTime(order.PendingStartTime, upd.ExpectedPendingStartTime) {
		return nil, ErrStaleOrder
	}

	updated := order.Clone()
	updated.Status = upd.Status
	if upd.PendingStartTime != nil {
		t := upd.PendingStartTime.UTC()
		updated.PendingStartTime = &t
	}
	if upd.Countdown != nil {
		s := *upd.Countdown
		updated.Countdown = &s
	}
	if upd.CompletedAt != nil {
		t := upd.CompletedAt.UTC()
		updated.CompletedAt = &t
	}
	r.orders[upd.ID] = updated

	return updated.Clone(), nil
}

// collect returns clones of matching orders sorted by id. Caller holds the lock.
func (r *MemoryRepository) collect(match func(*models.Order) bool) []*models.Order {
	out := make([]*models.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if match(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
