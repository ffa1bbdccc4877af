package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableside/go/internal/countdown"
	"github.com/mcdev12/tableside/go/internal/events"
	"github.com/mcdev12/tableside/go/internal/models"
)

// OrderRepository defines what the lifecycle engine needs from the order store
type OrderRepository interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrdersByStatus(ctx context.Context, statuses ...models.OrderStatus) ([]*models.Order, error)
	ListOrdersForSnapshot(ctx context.Context, completedSince *time.Time) ([]*models.Order, error)
	UpdateOrderStatus(ctx context.Context, upd StatusUpdate) (*models.Order, error)
}

// Broadcaster delivers an event to every connected observer
type Broadcaster interface {
	Broadcast(ctx context.Context, env *events.Envelope) error
}

// Config tunes the lifecycle engine
type Config struct {
	// CompletedRetention drops completed orders older than this from
	// snapshots. Zero keeps every completed order.
	CompletedRetention time.Duration
	// MaxUpdateAttempts bounds retries when a conditional update loses a race.
	MaxUpdateAttempts int
	// BroadcastTimeout bounds how long one event may wait to be queued.
	// It runs independently of the caller's context.
	BroadcastTimeout time.Duration
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		CompletedRetention: 0,
		MaxUpdateAttempts:  3,
		BroadcastTimeout:   5 * time.Second,
	}
}

// App is the order lifecycle engine. All operations run one at a time so
// broadcasts leave in the same order their mutations were committed.
type App struct {
	repo        OrderRepository
	broadcaster Broadcaster
	clock       clockwork.Clock
	config      Config

	mu sync.Mutex
}

// NewApp creates a new lifecycle engine. A nil clock means wall-clock time.
func NewApp(repo OrderRepository, broadcaster Broadcaster, clock clockwork.Clock, config Config) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.MaxUpdateAttempts <= 0 {
		config.MaxUpdateAttempts = DefaultConfig().MaxUpdateAttempts
	}
	if config.BroadcastTimeout <= 0 {
		config.BroadcastTimeout = DefaultConfig().BroadcastTimeout
	}
	return &App{
		repo:        repo,
		broadcaster: broadcaster,
		clock:       clock,
		config:      config,
	}
}

// Submit creates a new order and announces it to every observer
func (a *App) Submit(ctx context.Context, req SubmitOrderRequest) (*models.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	items, err := req.EncodedItems()
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	order, err := a.repo.CreateOrder(ctx, CreateOrderRequest{
		TableNumber: req.TableNumber,
		WaiterName:  req.WaiterName,
		Items:       items,
		CreatedAt:   a.now(),
	})
	if err != nil {
		return nil, a.storeError("submit order", 0, err)
	}

	log.Info().
		Int64("order_id", order.ID).
		Str("table_number", order.TableNumber).
		Str("waiter_name", order.WaiterName).
		Msg("order created")

	a.emit(ctx, events.TypeOrderCreated, order)
	return order, nil
}

// SetStatus applies a non-terminal transition. Moving into pending stamps
// PendingStartTime with the current time, replacing any earlier stamp.
// A completed status is handed to Complete.
func (a *App) SetStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidationFailed, status)
	}
	if status == models.OrderStatusCompleted {
		return a.Complete(ctx, id)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	updated, err := a.updateWithRetry(ctx, id, func(current *models.Order) (StatusUpdate, error) {
		if err := validateTransition(current.Status, status); err != nil {
			return StatusUpdate{}, err
		}
		upd := guardFor(current, status)
		if status == models.OrderStatusPending {
			now := a.now()
			upd.PendingStartTime = &now
		}
		return upd, nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("order_id", id).
		Str("status", string(updated.Status)).
		Msg("order status updated")

	payload := events.OrderStatusChangedPayload{
		OrderID: updated.ID,
		Status:  updated.Status,
	}
	if status == models.OrderStatusPending {
		payload.PendingStartTime = updated.PendingStartTime
	}
	a.emit(ctx, events.TypeOrderStatusChanged, payload)
	return updated, nil
}

// Complete is the terminal transition. When the order went through pending
// its countdown is computed from PendingStartTime and written together with
// the status; otherwise only the status changes.
func (a *App) Complete(ctx context.Context, id int64) (*models.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	updated, err := a.updateWithRetry(ctx, id, func(current *models.Order) (StatusUpdate, error) {
		if err := validateTransition(current.Status, models.OrderStatusCompleted); err != nil {
			return StatusUpdate{}, err
		}
		now := a.now()
		upd := guardFor(current, models.OrderStatusCompleted)
		upd.CompletedAt = &now
		if current.PendingStartTime != nil {
			cd := countdown.Elapsed(*current.PendingStartTime, now)
			upd.Countdown = &cd
		}
		return upd, nil
	})
	if err != nil {
		return nil, err
	}

	logEvent := log.Info().Int64("order_id", id)
	if updated.Countdown != nil {
		logEvent = logEvent.Str("countdown", *updated.Countdown)
	}
	logEvent.Msg("order completed")

	a.emit(ctx, events.TypeOrderStatusChanged, events.OrderStatusChangedPayload{
		OrderID:   updated.ID,
		Status:    updated.Status,
		Countdown: updated.Countdown,
	})
	return updated, nil
}

// ListPending returns every order currently in pending
func (a *App) ListPending(ctx context.Context) ([]*models.Order, error) {
	orders, err := a.repo.ListOrdersByStatus(ctx, models.OrderStatusPending)
	if err != nil {
		return nil, a.storeError("list pending orders", 0, err)
	}
	return orders, nil
}

// CurrentOrders returns the orders a new observer should see, honouring the
// completed-order retention window.
func (a *App) CurrentOrders(ctx context.Context) ([]*models.Order, error) {
	var since *time.Time
	if a.config.CompletedRetention > 0 {
		t := a.now().Add(-a.config.CompletedRetention)
		since = &t
	}

	orders, err := a.repo.ListOrdersForSnapshot(ctx, since)
	if err != nil {
		return nil, a.storeError("load snapshot", 0, err)
	}
	return orders, nil
}

// Snapshot builds the ordersSnapshot event and hands it to deliver while no
// mutation can run, so nothing committed afterwards is queued before it.
func (a *App) Snapshot(ctx context.Context, deliver func(*events.Envelope) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	orders, err := a.CurrentOrders(ctx)
	if err != nil {
		return err
	}

	env, err := events.NewEnvelope(events.TypeOrdersSnapshot, a.now(), events.OrdersSnapshotPayload{
		Orders:      orders,
		GeneratedAt: a.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to build snapshot: %w", err)
	}
	return deliver(env)
}

// updateWithRetry reads the order, lets build derive a guarded update from
// it and applies it. A lost race re-reads and rebuilds so derived values
// (the countdown) always come from the row actually being replaced.
func (a *App) updateWithRetry(ctx context.Context, id int64, build func(current *models.Order) (StatusUpdate, error)) (*models.Order, error) {
	var lastErr error
	for attempt := 1; attempt <= a.config.MaxUpdateAttempts; attempt++ {
		current, err := a.repo.GetOrder(ctx, id)
		if err != nil {
			return nil, a.storeError("get order", id, err)
		}

		upd, err := build(current)
		if err != nil {
			return nil, err
		}

		updated, err := a.repo.UpdateOrderStatus(ctx, upd)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrStaleOrder) {
			return nil, a.storeError("update order", id, err)
		}

		lastErr = err
		log.Warn().
			Int64("order_id", id).
			Int("attempt", attempt).
			Msg("order changed concurrently, retrying")
	}
	return nil, fmt.Errorf("%w: order %d: %w", ErrStoreUnavailable, id, lastErr)
}

// emit broadcasts one event. The mutation is already committed, so the
// caller going away must not cancel delivery; only BroadcastTimeout does.
// A failed broadcast is logged rather than returned.
func (a *App) emit(ctx context.Context, eventType events.Type, payload any) {
	if a.broadcaster == nil {
		return
	}
	env, err := events.NewEnvelope(eventType, a.now(), payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.BroadcastTimeout)
	defer cancel()
	if err := a.broadcaster.Broadcast(ctx, env); err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to broadcast event")
	}
}

// storeError passes through known kinds and folds everything else into
// ErrStoreUnavailable.
func (a *App) storeError(op string, id int64, err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s %d: %w", op, id, err)
	}
	log.Error().Err(err).Int64("order_id", id).Str("op", op).Msg("order store failure")
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// now is truncated to the store's timestamp precision so values read back
// compare equal to the ones written.
func (a *App) now() time.Time {
	return a.clock.Now().UTC().Truncate(time.Microsecond)
}
