package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcdev12/tableside/go/internal/dbconfig"
	"github.com/mcdev12/tableside/go/internal/waiters"
)

// SeedWaiter is one roster entry in the seed file
type SeedWaiter struct {
	WaiterName string `json:"waiterName"`
	Passkey    string `json:"passkey"`
}

func main() {
	path := "go/internal/assets/waiters.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the roster file
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var roster []SeedWaiter
	if err := json.Unmarshal(data, &roster); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	poolCfg, err := cfg.PoolConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pool config: %v\n", err)
		os.Exit(1)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := waiters.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ensure schema: %v\n", err)
		os.Exit(1)
	}

	cost := bcrypt.DefaultCost
	if v, err := strconv.Atoi(os.Getenv("PASSKEY_COST")); err == nil {
		cost = v
	}
	app := waiters.NewApp(repo, nil, cost)

	existing, err := app.ListWaiters(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list waiters: %v\n", err)
		os.Exit(1)
	}
	known := make(map[string]bool, len(existing))
	for _, w := range existing {
		known[w.WaiterName] = true
	}

	// 3) Insert names not already on the roster
	var (
		total    = len(roster)
		inserted int
		skipped  int
		errs     int
	)

	for _, w := range roster {
		if known[w.WaiterName] {
			skipped++
			continue
		}
		if _, err := app.CreateWaiter(ctx, w.WaiterName, w.Passkey); err != nil {
			fmt.Fprintf(os.Stderr, "error inserting waiter %s: %v\n", w.WaiterName, err)
			errs++
			continue
		}
		known[w.WaiterName] = true
		inserted++
	}

	// 4) Print summary
	fmt.Printf(
		"Waiters seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}
