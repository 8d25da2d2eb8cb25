package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/johnahull/AthleteMetrics-sub002/internal/config"
	"github.com/johnahull/AthleteMetrics-sub002/internal/review"
	"github.com/johnahull/AthleteMetrics-sub002/internal/store"
)

// Backends holds the opened storage for a Service.
type Backends struct {
	Repo    Repository
	Reviews review.Store
	pool    *pgxpool.Pool
}

// Close releases the connection pool, if any.
func (b *Backends) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// OpenBackends opens the repository and review store selected by cfg. With
// the postgres backend it connects, pings and applies the schema when
// AutoMigrate is set.
func OpenBackends(ctx context.Context, cfg *config.Config) (*Backends, error) {
	if cfg.Database.Backend == config.BackendMemory {
		slog.Warn("using in-memory storage, data is lost on exit")
		return &Backends{Repo: store.NewMemory(), Reviews: review.NewMemoryStore()}, nil
	}

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		slog.Debug("schema applied")
	}

	b := &Backends{Repo: store.NewPostgres(pool), pool: pool}
	if cfg.Review.Store == config.BackendMemory {
		b.Reviews = review.NewMemoryStore()
	} else {
		b.Reviews = store.NewReviewStore(pool)
	}
	return b, nil
}

// ServiceConfig builds the service settings from application config.
func ServiceConfig(cfg *config.Config) Config {
	return Config{
		MaxRows:       cfg.Import.MaxRows,
		MaxFileSize:   cfg.Import.MaxFileSize,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWaitTime:   cfg.Import.MaxWaitTime,
		Timeout:       cfg.Import.Timeout,
	}
}
