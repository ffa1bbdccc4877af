package waiters

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcdev12/tableside/go/internal/models"
)

// MemoryRepository is an in-process roster with the same semantics as Repository
type MemoryRepository struct {
	mu      sync.RWMutex
	waiters map[int64]*models.Waiter
	nextID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		waiters: make(map[int64]*models.Waiter),
		nextID:  1,
	}
}

func (r *MemoryRepository) CreateWaiter(_ context.Context, name, passkeyHash string, createdAt time.Time) (*models.Waiter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := &models.Waiter{
		ID:          r.nextID,
		WaiterName:  name,
		PasskeyHash: passkeyHash,
		CreatedAt:   createdAt.UTC(),
	}
	r.waiters[w.ID] = w
	r.nextID++

	cp := *w
	return &cp, nil
}

func (r *MemoryRepository) ListWaiters(_ context.Context) ([]*models.Waiter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Waiter, 0, len(r.waiters))
	for _, w := range r.waiters {
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) DeleteWaiter(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.waiters[id]; !ok {
		return ErrNotFound
	}
	delete(r.waiters, id)
	return nil
}

func (r *MemoryRepository) FirstWaiter(ctx context.Context) (*models.Waiter, error) {
	all, _ := r.ListWaiters(ctx)
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	return all[0], nil
}
