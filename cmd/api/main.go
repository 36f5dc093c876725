package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/gridmesh/microgrid/internal/api"
	"github.com/gridmesh/microgrid/internal/events"
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

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Storage ---
	accts, txlog, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}

	// --- Engine + facade ---
	engineOpts := []transfer.Option{}

	if cfg.GridEndowment > 0 {
		engineOpts = append(engineOpts, transfer.WithGridEndowment(cfg.GridEndowment))
	}

	if cfg.NATSURL != "" {
		nc, nerr := nats.Connect(cfg.NATSURL)
		if nerr != nil {
			return fmt.Errorf("connect nats: %w", nerr)
		}

		shutdownqueue.Add(func(context.Context) error {
			nc.Close()
			return nil
		})

		engineOpts = append(engineOpts, transfer.WithPublisher(events.NewNATS(nc)))
	}

	engine, err := transfer.New(ctx, accts, txlog, engineOpts...)
	if err != nil {
		return fmt.Errorf("init transfer engine: %w", err)
	}

	sim := simulation.New(accts, txlog, engine)

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, sim)

	// Register HTTP server graceful shutdown
	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "backend", cfg.StorageBackend, "port", cfg.Port)

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

func openStores(ctx context.Context, cfg *apiConfig) (accounts.Accounts, transactions.TransactionLog, error) {
	switch cfg.StorageBackend {
	case backendMemory:
		return accountsmem.New(), transactionsmem.New(), nil

	case backendPostgres:
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
