package waiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcdev12/tableside/go/internal/models"
)

// WaiterRepository defines what the directory needs from storage
type WaiterRepository interface {
	CreateWaiter(ctx context.Context, name, passkeyHash string, createdAt time.Time) (*models.Waiter, error)
	ListWaiters(ctx context.Context) ([]*models.Waiter, error)
	DeleteWaiter(ctx context.Context, id int64) error
	FirstWaiter(ctx context.Context) (*models.Waiter, error)
}

// App is the waiter directory: roster management and passkey checks
type App struct {
	repo  WaiterRepository
	clock clockwork.Clock
	cost  int
}

// NewApp creates a new directory. cost is the bcrypt work factor; values
// outside bcrypt's range fall back to bcrypt.DefaultCost.
func NewApp(repo WaiterRepository, clock clockwork.Clock, cost int) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &App{
		repo:  repo,
		clock: clock,
		cost:  cost,
	}
}

// CreateWaiter adds a waiter, storing only the bcrypt hash of the passkey
func (a *App) CreateWaiter(ctx context.Context, name, passkey string) (*models.Waiter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: waiter name is required", ErrValidationFailed)
	}
	if passkey == "" {
		return nil, fmt.Errorf("%w: passkey is required", ErrValidationFailed)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(passkey), a.cost)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to hash passkey", ErrValidationFailed)
	}

	waiter, err := a.repo.CreateWaiter(ctx, name, string(hash), a.clock.Now().UTC().Truncate(time.Microsecond))
	if err != nil {
		return nil, storeError("create waiter", err)
	}

	log.Info().Int64("waiter_id", waiter.ID).Str("waiter_name", waiter.WaiterName).Msg("waiter created")
	return waiter, nil
}

func (a *App) ListWaiters(ctx context.Context) ([]*models.Waiter, error) {
	waiters, err := a.repo.ListWaiters(ctx)
	if err != nil {
		return nil, storeError("list waiters", err)
	}
	return waiters, nil
}

func (a *App) DeleteWaiter(ctx context.Context, id int64) error {
	if err := a.repo.DeleteWaiter(ctx, id); err != nil {
		return storeError("delete waiter", err)
	}
	log.Info().Int64("waiter_id", id).Msg("waiter deleted")
	return nil
}

// VerifyPasskey returns the waiter whose passkey matches. The roster is
// small, so every stored hash is compared.
func (a *App) VerifyPasskey(ctx context.Context, passkey string) (*models.Waiter, error) {
	if passkey == "" {
		return nil, ErrInvalidPasskey
	}

	waiters, err := a.repo.ListWaiters(ctx)
	if err != nil {
		return nil, storeError("verify passkey", err)
	}
	for _, w := range waiters {
		if bcrypt.CompareHashAndPassword([]byte(w.PasskeyHash), []byte(passkey)) == nil {
			log.Debug().Int64("waiter_id", w.ID).Msg("passkey verified")
			return w, nil
		}
	}

	log.Warn().Msg("passkey verification failed")
	return nil, ErrInvalidPasskey
}

// WaiterInfo returns the name of the first registered waiter
func (a *App) WaiterInfo(ctx context.Context) (string, error) {
	w, err := a.repo.FirstWaiter(ctx)
	if err != nil {
		return "", storeError("get waiter info", err)
	}
	return w.WaiterName, nil
}

func storeError(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Error().Err(err).Str("op", op).Msg("waiter store failure")
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
