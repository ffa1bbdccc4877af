package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableside/go/internal/dbconfig"
	"github.com/mcdev12/tableside/go/internal/orders"
	"github.com/mcdev12/tableside/go/internal/waiters"
)

// Stores holds the order and waiter repositories for the selected driver
type Stores struct {
	Orders  orders.OrderRepository
	Waiters waiters.WaiterRepository

	close func()
}

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

func setupStores(ctx context.Context, config *Config) (*Stores, error) {
	if config.Store.Driver == StoreDriverMemory {
		log.Warn().Msg("using in-memory stores, state is lost on restart")
		return &Stores{
			Orders:  orders.NewMemoryRepository(),
			Waiters: waiters.NewMemoryRepository(),
		}, nil
	}

	dbCfg := dbconfig.NewConfigFromEnv()

	database, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	dbCfg.ApplyPool(database)
	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	poolCfg, err := dbCfg.PoolConfig()
	if err != nil {
		database.Close()
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create waiter pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		database.Close()
		return nil, fmt.Errorf("failed to ping waiter pool: %w", err)
	}

	orderRepo := orders.NewRepository(database)
	waiterRepo := waiters.NewRepository(pool)

	closeAll := func() {
		pool.Close()
		database.Close()
	}
	if err := orderRepo.EnsureSchema(ctx); err != nil {
		closeAll()
		return nil, err
	}
	if err := waiterRepo.EnsureSchema(ctx); err != nil {
		closeAll()
		return nil, err
	}

	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("connected to database")

	return &Stores{
		Orders:  orderRepo,
		Waiters: waiterRepo,
		close:   closeAll,
	}, nil
}
