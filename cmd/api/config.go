package main

import (
	"log/slog"
	"time"
)

const (
	backendMemory   = "memory"
	backendPostgres = "postgres"
)

type apiConfig struct {
	Port            uint16        `env:"APP_PORT"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT"`

	// StorageBackend selects "memory" or "postgres".
	StorageBackend string `env:"STORAGE_BACKEND"`
	PGDSN          string `env:"PG_DSN,optional"`

	// NATSURL, when set, enables publishing committed transfers.
	NATSURL string `env:"NATS_URL,optional"`

	// GridEndowment overrides the grid account's initial energy pool.
	GridEndowment float64 `env:"GRID_ENDOWMENT,optional"`
}
