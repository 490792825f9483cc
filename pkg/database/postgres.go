package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/config"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/retry"
)

// DB wraps the pgxpool pool backing the engine's metadata database.
type DB struct {
	*pgxpool.Pool
}

// NewConnection creates the metadata database pool and verifies it with a
// ping. Startup retries transient connection failures.
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConnections
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 25
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := retry.DoWithResult(ctx, nil, func() (*pgxpool.Pool, error) {
		return pgxpool.NewWithConfig(ctx, poolConfig)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := retry.Do(ctx, nil, func() error { return pool.Ping(ctx) }); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
