// Package factory wires the application components from configuration. Both
// binaries go through it so they agree on construction order and defaults.
package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/obstaclehub/records-api/internal/auth"
	"github.com/obstaclehub/records-api/internal/dependencies/clock"
	"github.com/obstaclehub/records-api/internal/dependencies/random"
	"github.com/obstaclehub/records-api/internal/ranking"
	"github.com/obstaclehub/records-api/internal/storage"
	"github.com/obstaclehub/records-api/internal/storage/memory"
	"github.com/obstaclehub/records-api/internal/storage/postgres"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
)

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the record store backend ("memory" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// DatabaseURL is the Postgres connection string (required for "postgres")
	DatabaseURL string
	// RedisURL is the Redis connection string (required)
	RedisURL string
	// AuthConfig holds configuration for the auth coordinator (optional)
	AuthConfig auth.Config
	// TokenTTL overrides the issued-token lifetime (optional)
	TokenTTL time.Duration
}

// App contains all wired application components
type App struct {
	Redis *redis.Client
	Store storage.RecordStore

	Clock  clock.Clock
	Random random.Random

	Coordinator *auth.Coordinator
	Tokens      *auth.TokenCache
	Engine      *ranking.Engine

	pg *postgres.Store
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("RedisURL is required")
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	var store storage.RecordStore
	var pg *postgres.Store
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DatabaseURL required when StorageType is postgres")
		}
		pg, err = postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store = pg
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'postgres'")
	}

	clk := clock.New()
	rnd := random.New()

	return &App{
		Redis:       rdb,
		Store:       store,
		Clock:       clk,
		Random:      rnd,
		Coordinator: auth.New(cfg.AuthConfig, clk, rnd, logger),
		Tokens:      auth.NewTokenCache(rdb, cfg.TokenTTL),
		Engine:      ranking.New(rdb, store, logger),
		pg:          pg,
	}, nil
}

// Close releases the application's external connections
func (a *App) Close() error {
	a.Coordinator.Close()
	if a.pg != nil {
		a.pg.Close()
	}
	return a.Redis.Close()
}
