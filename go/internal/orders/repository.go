package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mcdev12/tableside/go/internal/models"
	"github.com/mcdev12/tableside/go/internal/sqlutil"
)

const orderColumns = `id, table_number, waiter_name, order_items, status, created_at, pending_start_time, countdown, completed_at`

// Repository is the Postgres-backed order store
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// EnsureSchema creates the orders table if it does not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, Schema); err != nil {
			return fmt.Errorf("failed to create orders schema: %w", err)
		}
		return nil
	})
}

func (r *Repository) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO orders (table_number, waiter_name, order_items, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+orderColumns,
		req.TableNumber, req.WaiterName, req.Items, models.OrderStatusNew, req.CreatedAt,
	)

	order, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}
	return order, nil
}

func (r *Repository) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

func (r *Repository) ListOrdersByStatus(ctx context.Context, statuses ...models.OrderStatus) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = ANY($1) ORDER BY id`,
		pq.Array(statusStrings(statuses)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return collectOrders(rows)
}

func (r *Repository) ListOrdersForSnapshot(ctx context.Context, completedSince *time.Time) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status <> 'completed'
		   OR $1::timestamptz IS NULL
		   OR completed_at IS NULL
		   OR completed_at >= $1
		ORDER BY id`,
		sqlutil.ToSqlTime(completedSince),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot orders: %w", err)
	}
	return collectOrders(rows)
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, upd StatusUpdate) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE orders SET
			status             = $2,
			pending_start_time = COALESCE($3::timestamptz, pending_start_time),
			countdown          = COALESCE($4::text, countdown),
			completed_at       = COALESCE($5::timestamptz, completed_at)
		WHERE id = $1
		  AND status = $6
		  AND pending_start_time IS NOT DISTINCT FROM $7::timestamptz
		RETURNING `+orderColumns,
		upd.ID,
		upd.Status,
		sqlutil.ToSqlTime(upd.PendingStartTime),
		sqlutil.ToSqlString(upd.Countdown),
		sqlutil.ToSqlTime(upd.CompletedAt),
		upd.ExpectedStatus,
		sqlutil.ToSqlTime(upd.ExpectedPendingStartTime),
	)

	order, err := scanOrder(row)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	// Nothing matched: tell a missing id apart from a failed guard.
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, upd.ID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check order existence: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrStaleOrder
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		order            models.Order
		status           string
		pendingStartTime sql.NullTime
		countdown        sql.NullString
		completedAt      sql.NullTime
	)
	if err := row.Scan(
		&order.ID,
		&order.TableNumber,
		&order.WaiterName,
		&order.Items,
		&status,
		&order.CreatedAt,
		&pendingStartTime,
		&countdown,
		&completedAt,
	); err != nil {
		return nil, err
	}

	order.Status = models.OrderStatus(status)
	order.CreatedAt = order.CreatedAt.UTC()
	order.PendingStartTime = sqlutil.FromSqlTime(pendingStartTime)
	order.Countdown = sqlutil.FromSqlStringPtr(countdown)
	order.CompletedAt = sqlutil.FromSqlTime(completedAt)
	return &order, nil
}

func collectOrders(rows *sql.Rows) ([]*models.Order, error) {
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

func statusStrings(statuses []models.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
