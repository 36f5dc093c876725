// The simulator seeds a demo fleet of producers and consumers, runs a batch
// of random energy transfers through the transfer engine, and logs the
// resulting summary statistics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gridmesh/microgrid/internal/infra/logging"
	"github.com/gridmesh/microgrid/internal/infra/pgutils"
	"github.com/gridmesh/microgrid/internal/repos/accounts"
	accountsmem "github.com/gridmesh/microgrid/internal/repos/accounts/memory"
	accountspg "github.com/gridmesh/microgrid/internal/repos/accounts/postgres"
	"github.com/gridmesh/microgrid/internal/repos/transactions"
	transactionsmem "github.com/gridmesh/microgrid/internal/repos/transactions/memory"
	transactionspg "github.com/gridmesh/microgrid/internal/repos/transactions/postgres"
	"github.com/gridmesh/microgrid/internal/services/simulation"
	"github.com/gridmesh/microgrid/internal/services/transfer"
	"github.com/gridmesh/microgrid/pkg/envconf"
	"github.com/gridmesh/microgrid/pkg/shutdownqueue"
)

type simulatorConfig struct {
	LogLevel       slog.Level `env:"APP_LOG_LEVEL"`
	StorageBackend string     `env:"STORAGE_BACKEND"`
	PGDSN          string     `env:"PG_DSN,optional"`
	Transfers      int        `env:"SIM_TRANSFERS"`
	Reset          bool       `env:"SIM_RESET,optional"`
}

// demoFleet mirrors a small neighborhood: households, commercial and
// industrial consumers, and green producers.
var demoFleet = []struct {
	name    string
	energy  float64
	credits float64
}{
	{"HouseA", 150, 100},
	{"HouseB", 120, 100},
	{"HouseC", 180, 100},
	{"HouseD", 200, 150},
	{"HouseE", 160, 120},
	{"Shop1", 300, 250},
	{"Shop2", 280, 200},
	{"Office1", 400, 300},
	{"Factory1", 800, 600},
	{"Factory2", 1000, 800},
	{"SolarFarm1", 1500, 1000},
	{"WindMill1", 1200, 900},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running simulator: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(simulatorConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		serr := shutdownqueue.Shutdown(context.Background())
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	accts, txlog, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}

	engine, err := transfer.New(ctx, accts, txlog)
	if err != nil {
		return fmt.Errorf("init transfer engine: %w", err)
	}

	sim := simulation.New(accts, txlog, engine)

	if cfg.Reset {
		err = sim.ClearAllUsers(ctx)
		if err != nil {
			return fmt.Errorf("reset users: %w", err)
		}
	}

	users, err := sim.GetAllUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	// Seed the fleet when only the grid account exists.
	if len(users) <= 1 {
		for _, u := range demoFleet {
			_, err = sim.CreateUser(ctx, u.name, u.energy, u.credits)
			if err != nil {
				return fmt.Errorf("seed user %s: %w", u.name, err)
			}
		}

		slog.Info("seeded demo fleet", "users", len(demoFleet))
	}

	committed, err := sim.SimulateRandomTransfers(ctx, cfg.Transfers)
	if err != nil {
		return fmt.Errorf("simulate transfers: %w", err)
	}

	slog.Info("simulation finished",
		"requested", cfg.Transfers,
		"committed", len(committed),
	)

	stats, err := sim.GetSummaryStatistics(ctx)
	if err != nil {
		return fmt.Errorf("summary statistics: %w", err)
	}

	attrs := []any{
		"total_energy", stats.TotalEnergy,
		"total_credits", stats.TotalCredits,
		"user_count", stats.UserCount,
	}
	if stats.MostActiveUser != nil {
		attrs = append(attrs,
			"most_active_user", stats.MostActiveUser.UserID,
			"most_active_count", stats.MostActiveUser.TransactionCount,
		)
	}

	slog.Info("system summary", attrs...)

	return nil
}

func openStores(ctx context.Context, cfg *simulatorConfig) (accounts.Accounts, transactions.TransactionLog, error) {
	switch cfg.StorageBackend {
	case "memory":
		return accountsmem.New(), transactionsmem.New(), nil

	case "postgres":
		if cfg.PGDSN == "" {
			return nil, nil, errors.New("PG_DSN is required for the postgres backend")
		}

		db, err := pgutils.OpenDB(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}

		shutdownqueue.Add(func(context.Context) error {
			return db.Close()
		})

		return accountspg.New(db), transactionspg.New(db), nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
