package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/tableside/go/internal/countdown"
	"github.com/mcdev12/tableside/go/internal/events"
	"github.com/mcdev12/tableside/go/internal/models"
)

var t0 = time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []*events.Envelope
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, env *events.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, env)
	return nil
}

func (b *recordingBroadcaster) all() []*events.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*events.Envelope(nil), b.events...)
}

func (b *recordingBroadcaster) last(t *testing.T) *events.Envelope {
	t.Helper()
	all := b.all()
	require.NotEmpty(t, all)
	return all[len(all)-1]
}

func statusChanged(t *testing.T, env *events.Envelope) events.OrderStatusChangedPayload {
	t.Helper()
	require.Equal(t, events.TypeOrderStatusChanged, env.Type)
	var payload events.OrderStatusChangedPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	return payload
}

func newTestApp(t *testing.T) (*App, *MemoryRepository, *recordingBroadcaster, *clockwork.FakeClock) {
	t.Helper()
	repo := NewMemoryRepository()
	bc := &recordingBroadcaster{}
	clock := clockwork.NewFakeClockAt(t0)
	return NewApp(repo, bc, clock, DefaultConfig()), repo, bc, clock
}

func submit(t *testing.T, app *App, table string) *models.Order {
	t.Helper()
	order, err := app.Submit(context.Background(), SubmitOrderRequest{
		TableNumber: table,
		WaiterName:  "Ana",
		Items:       json.RawMessage(`["soup","bread"]`),
	})
	require.NoError(t, err)
	return order
}

func TestSubmit_CreatesNewOrderAndBroadcastsOnce(t *testing.T) {
	app, repo, bc, _ := newTestApp(t)

	order := submit(t, app, "5")

	assert.Equal(t, int64(1), order.ID)
	assert.Equal(t, models.OrderStatusNew, order.Status)
	assert.Nil(t, order.PendingStartTime)
	assert.Nil(t, order.Countdown)
	assert.Equal(t, `["soup","bread"]`, order.Items)
	assert.True(t, order.CreatedAt.Equal(t0))

	all := bc.all()
	require.Len(t, all, 1)
	assert.Equal(t, events.TypeOrderCreated, all[0].Type)

	var created models.Order
	require.NoError(t, json.Unmarshal(all[0].Data, &created))
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, models.OrderStatusNew, created.Status)
	assert.Equal(t, "5", created.TableNumber)

	stored, err := repo.GetOrder(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusNew, stored.Status)
}

func TestSubmit_AcceptsPreEncodedItems(t *testing.T) {
	app, _, _, _ := newTestApp(t)

	order, err := app.Submit(context.Background(), SubmitOrderRequest{
		TableNumber: "2",
		WaiterName:  "Luis",
		OrderItems:  "2x coffee; 1x cake",
	})
	require.NoError(t, err)
	assert.Equal(t, "2x coffee; 1x cake", order.Items)
}

func TestSubmit_ValidationFailsWithoutBroadcast(t *testing.T) {
	app, _, bc, _ := newTestApp(t)

	_, err := app.Submit(context.Background(), SubmitOrderRequest{WaiterName: "Ana"})
	require.ErrorIs(t, err, ErrValidationFailed)

	_, err = app.Submit(context.Background(), SubmitOrderRequest{TableNumber: "1", WaiterName: "Ana", Items: json.RawMessage(`42`)})
	require.ErrorIs(t, err, ErrValidationFailed)

	assert.Empty(t, bc.all())
}

func TestSetStatus_PendingStampsStartTime(t *testing.T) {
	app, repo, bc, _ := newTestApp(t)
	order := submit(t, app, "5")

	updated, err := app.SetStatus(context.Background(), order.ID, models.OrderStatusPending)
	require.NoError(t, err)

	require.NotNil(t, updated.PendingStartTime)
	assert.True(t, updated.PendingStartTime.Equal(t0))

	stored, err := repo.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	require.NotNil(t, stored.PendingStartTime)
	assert.True(t, stored.PendingStartTime.Equal(t0))

	payload := statusChanged(t, bc.last(t))
	assert.Equal(t, order.ID, payload.OrderID)
	assert.Equal(t, models.OrderStatusPending, payload.Status)
	require.NotNil(t, payload.PendingStartTime)
	assert.True(t, payload.PendingStartTime.Equal(t0))
	assert.Nil(t, payload.Countdown)
}

func TestSetStatus_RePendingOverwritesStartTime(t *testing.T) {
	app, _, _, clock := newTestApp(t)
	order := submit(t, app, "5")

	_, err := app.SetStatus(context.Background(), order.ID, models.OrderStatusPending)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	updated, err := app.SetStatus(context.Background(), order.ID, models.OrderStatusPending)
	require.NoError(t, err)
	assert.True(t, updated.PendingStartTime.Equal(t0.Add(10*time.Minute)))

	clock.Advance(30 * time.Second)
	completed, err := app.Complete(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, completed.Countdown)
	assert.Equal(t, "00:00:30", *completed.Countdown)
}

func TestSetStatus_Errors(t *testing.T) {
	app, _, bc, _ := newTestApp(t)
	order := submit(t, app, "5")
	before := len(bc.all())

	_, err := app.SetStatus(context.Background(), order.ID, models.OrderStatus("cooking"))
	require.ErrorIs(t, err, ErrValidationFailed)

	_, err = app.SetStatus(context.Background(), 999, models.OrderStatusPending)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = app.SetStatus(context.Background(), order.ID, models.OrderStatusNew)
	require.ErrorIs(t, err, ErrInvalidTransition)

	assert.Len(t, bc.all(), before)
}

func TestSetStatus_CompletedRoutesToComplete(t *testing.T) {
	app, _, bc, clock := newTestApp(t)
	order := submit(t, app, "5")
	_, err := app.SetStatus(context.Background(), order.ID, models.OrderStatusPending)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	updated, err := app.SetStatus(context.Background(), order.ID, models.OrderStatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, updated.Countdown)
	assert.Equal(t, "00:02:00", *updated.Countdown)

	payload := statusChanged(t, bc.last(t))
	assert.Equal(t, models.OrderStatusCompleted, payload.Status)
}

func TestComplete_ScenarioTable5(t *testing.T) {
	app, repo, bc, clock := newTestApp(t)

	order := submit(t, app, "5")
	require.Equal(t, int64(1), order.ID)

	_, err := app.SetStatus(context.Background(), 1, models.OrderStatusPending)
	require.NoError(t, err)

	clock.Advance(65 * time.Second)
	completed, err := app.Complete(context.Background(), 1)
	require.NoError(t, err)

	all := bc.all()
	require.Len(t, all, 3)
	assert.Equal(t, events.TypeOrderCreated, all[0].Type)

	pending := statusChanged(t, all[1])
	assert.Equal(t, models.OrderStatusPending, pending.Status)
	assert.True(t, pending.PendingStartTime.Equal(t0))

	done := statusChanged(t, all[2])
	assert.Equal(t, int64(1), done.OrderID)
	assert.Equal(t, models.OrderStatusCompleted, done.Status)
	require.NotNil(t, done.Countdown)
	assert.Equal(t, "00:01:05", *done.Countdown)
	assert.Nil(t, done.PendingStartTime)

	stored, err := repo.GetOrder(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, stored.Status)
	require.NotNil(t, stored.Countdown)
	assert.Equal(t, countdown.Elapsed(*stored.PendingStartTime, t0.Add(65*time.Second)), *stored.Countdown)
	assert.Equal(t, *completed.Countdown, *stored.Countdown)
}

func TestComplete_WithoutPendingLeavesCountdownUnset(t *testing.T) {
	app, repo, bc, clock := newTestApp(t)
	order := submit(t, app, "3")

	clock.Advance(time.Hour)
	completed, err := app.Complete(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, completed.Status)
	assert.Nil(t, completed.Countdown)

	stored, err := repo.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Countdown)

	payload := statusChanged(t, bc.last(t))
	assert.Nil(t, payload.Countdown)
}

func TestComplete_NotFoundProducesNoBroadcast(t *testing.T) {
	app, _, bc, _ := newTestApp(t)

	_, err := app.Complete(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, bc.all())
}

func TestComplete_TerminalStateIsEnforced(t *testing.T) {
	app, repo, bc, clock := newTestApp(t)
	order := submit(t, app, "5")
	_, err := app.SetStatus(context.Background(), order.ID, models.OrderStatusPending)
	require.NoError(t, err)
	clock.Advance(5 * time.Second)
	_, err = app.Complete(context.Background(), order.ID)
	require.NoError(t, err)
	before := len(bc.all())

	clock.Advance(time.Minute)
	_, err = app.Complete(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = app.SetStatus(context.Background(), order.ID, models.OrderStatusPending)
	require.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := repo.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, stored.Status)
	assert.Equal(t, "00:00:05", *stored.Countdown)
	assert.Len(t, bc.all(), before)
}

// racingRepository rewrites the pending timestamp the first time an update
// is attempted, simulating another process winning the race.
type racingRepository struct {
	*MemoryRepository
	once    sync.Once
	restamp time.Time
	calls   int
}

func (r *racingRepository) UpdateOrderStatus(ctx context.Context, upd StatusUpdate) (*models.Order, error) {
	r.calls++
	r.once.Do(func() {
		current, _ := r.MemoryRepository.GetOrder(ctx, upd.ID)
		_, _ = r.MemoryRepository.UpdateOrderStatus(ctx, StatusUpdate{
			ID:                       upd.ID,
			ExpectedStatus:           current.Status,
			ExpectedPendingStartTime: current.PendingStartTime,
			Status:                   models.OrderStatusPending,
			PendingStartTime:         &r.restamp,
		})
	})
	return r.MemoryRepository.UpdateOrderStatus(ctx, upd)
}

func TestComplete_RecomputesCountdownAfterLostRace(t *testing.T) {
	mem := NewMemoryRepository()
	clock := clockwork.NewFakeClockAt(t0)
	bc := &recordingBroadcaster{}

	seed := NewApp(mem, nil, clock, DefaultConfig())
	order := submit(t, seed, "9")
	_, err := seed.SetStatus(context.Background(), order.ID, models.OrderStatusPending)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	repo := &racingRepository{MemoryRepository: mem, restamp: t0.Add(9 * time.Minute)}
	app := NewApp(repo, bc, clock, DefaultConfig())

	completed, err := app.Complete(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
	require.NotNil(t, completed.Countdown)
	assert.Equal(t, "00:01:00", *completed.Countdown)
	assert.Len(t, bc.all(), 1)
}

type failingRepository struct {
	*MemoryRepository
	err error
}

func (r *failingRepository) UpdateOrderStatus(context.Context, StatusUpdate) (*models.Order, error) {
	return nil, r.err
}

func (r *failingRepository) CreateOrder(context.Context, CreateOrderRequest) (*models.Order, error) {
	return nil, r.err
}

func TestStoreFailuresSurfaceAsUnavailable(t *testing.T) {
	mem := NewMemoryRepository()
	clock := clockwork.NewFakeClockAt(t0)
	order := submit(t, NewApp(mem, nil, clock, DefaultConfig()), "1")

	bc := &recordingBroadcaster{}
	dbErr := errors.New("connection refused")
	app := NewApp(&failingRepository{MemoryRepository: mem, err: dbErr}, bc, clock, DefaultConfig())

	_, err := app.Submit(context.Background(), SubmitOrderRequest{TableNumber: "1", WaiterName: "Ana"})
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, err, dbErr)

	_, err = app.Complete(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, "store_unavailable", ErrorCode(err))

	assert.Empty(t, bc.all())
}

func TestListPending(t *testing.T) {
	app, _, _, _ := newTestApp(t)
	a := submit(t, app, "1")
	b := submit(t, app, "2")
	submit(t, app, "3")

	_, err := app.SetStatus(context.Background(), a.ID, models.OrderStatusPending)
	require.NoError(t, err)
	_, err = app.SetStatus(context.Background(), b.ID, models.OrderStatusPending)
	require.NoError(t, err)
	_, err = app.Complete(context.Background(), b.ID)
	require.NoError(t, err)

	pending, err := app.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)
}

func TestSnapshot_ReflectsCurrentState(t *testing.T) {
	app, _, _, _ := newTestApp(t)
	for _, table := range []string{"1", "2", "3"} {
		submit(t, app, table)
	}
	_, err := app.SetStatus(context.Background(), 2, models.OrderStatusPending)
	require.NoError(t, err)
	_, err = app.Complete(context.Background(), 3)
	require.NoError(t, err)

	var got *events.Envelope
	require.NoError(t, app.Snapshot(context.Background(), func(env *events.Envelope) error {
		got = env
		return nil
	}))

	require.NotNil(t, got)
	assert.Equal(t, events.TypeOrdersSnapshot, got.Type)

	var payload events.OrdersSnapshotPayload
	require.NoError(t, json.Unmarshal(got.Data, &payload))
	require.Len(t, payload.Orders, 3)
	assert.Equal(t, models.OrderStatusNew, payload.Orders[0].Status)
	assert.Equal(t, models.OrderStatusPending, payload.Orders[1].Status)
	assert.Equal(t, models.OrderStatusCompleted, payload.Orders[2].Status)
}

func TestSnapshot_CompletedRetention(t *testing.T) {
	repo := NewMemoryRepository()
	clock := clockwork.NewFakeClockAt(t0)
	app := NewApp(repo, nil, clock, Config{CompletedRetention: time.Hour})

	old := submit(t, app, "1")
	_, err := app.Complete(context.Background(), old.ID)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	recent := submit(t, app, "2")
	_, err = app.Complete(context.Background(), recent.ID)
	require.NoError(t, err)
	open := submit(t, app, "3")

	orders, err := app.CurrentOrders(context.Background())
	require.NoError(t, err)

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []int64{recent.ID, open.ID}, ids)
}

func TestBroadcastOrderFollowsCommitOrder(t *testing.T) {
	app, _, bc, _ := newTestApp(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = app.Submit(context.Background(), SubmitOrderRequest{TableNumber: "t", WaiterName: "w"})
		}()
	}
	wg.Wait()

	all := bc.all()
	require.Len(t, all, 20)
	for i, env := range all {
		var o models.Order
		require.NoError(t, json.Unmarshal(env.Data, &o))
		assert.Equal(t, int64(i+1), o.ID)
	}
}

type contextCheckingBroadcaster struct {
	recordingBroadcaster
	ctxErrs []error
}

func (b *contextCheckingBroadcaster) Broadcast(ctx context.Context, env *events.Envelope) error {
	b.mu.Lock()
	b.ctxErrs = append(b.ctxErrs, ctx.Err())
	b.mu.Unlock()
	return b.recordingBroadcaster.Broadcast(ctx, env)
}

func TestCommittedChangesBroadcastAfterCallerCancels(t *testing.T) {
	bc := &contextCheckingBroadcaster{}
	app := NewApp(NewMemoryRepository(), bc, clockwork.NewFakeClockAt(t0), DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	order, err := app.Submit(ctx, SubmitOrderRequest{TableNumber: "3", WaiterName: "Ana"})
	require.NoError(t, err)
	_, err = app.SetStatus(ctx, order.ID, models.OrderStatusPending)
	require.NoError(t, err)
	_, err = app.Complete(ctx, order.ID)
	require.NoError(t, err)

	require.Len(t, bc.all(), 3)
	for _, ctxErr := range bc.ctxErrs {
		assert.NoError(t, ctxErr)
	}
}
