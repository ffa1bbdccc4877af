package waiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/tableside/go/internal/models"
)

const waiterColumns = `id, waiter_name, passkey_hash, created_at`

// Repository is the Postgres-backed waiter roster
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

// EnsureSchema creates the waiters table if it does not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create waiters schema: %w", err)
	}
	return nil
}

func (r *Repository) CreateWaiter(ctx context.Context, name, passkeyHash string, createdAt time.Time) (*models.Waiter, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO waiters (waiter_name, passkey_hash, created_at)
		VALUES ($1, $2, $3)
		RETURNING `+waiterColumns,
		name, passkeyHash, createdAt,
	)

	waiter, err := scanWaiter(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert waiter: %w", err)
	}
	return waiter, nil
}

func (r *Repository) ListWaiters(ctx context.Context) ([]*models.Waiter, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+waiterColumns+` FROM waiters ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list waiters: %w", err)
	}
	defer rows.Close()

	waiters := make([]*models.Waiter, 0)
	for rows.Next() {
		waiter, err := scanWaiter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan waiter: %w", err)
		}
		waiters = append(waiters, waiter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate waiters: %w", err)
	}
	return waiters, nil
}

func (r *Repository) DeleteWaiter(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM waiters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete waiter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FirstWaiter returns the waiter with the lowest id
func (r *Repository) FirstWaiter(ctx context.Context) (*models.Waiter, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+waiterColumns+` FROM waiters ORDER BY id LIMIT 1`)

	waiter, err := scanWaiter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get first waiter: %w", err)
	}
	return waiter, nil
}

func scanWaiter(row pgx.Row) (*models.Waiter, error) {
	var w models.Waiter
	if err := row.Scan(&w.ID, &w.WaiterName, &w.PasskeyHash, &w.CreatedAt); err != nil {
		return nil, err
	}
	w.CreatedAt = w.CreatedAt.UTC()
	return &w, nil
}
