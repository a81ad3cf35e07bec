package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/uniplus/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreNotMigrated is returned when the kv_store table is missing
var ErrStoreNotMigrated = errors.New("kv_store table missing: run migrations first")

const (
	applicationName   = "uniplus-portal"
	healthCheckPeriod = 30 * time.Second
	// The store holds a few small documents under fixed keys, so a
	// handful of connections covers every caller.
	maxStoreConns = 8
)

// DB is the pgx pool behind the postgres storage driver
type DB struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewConnection opens the pool, pings it and checks that the kv_store
// migration has been applied.
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns, poolConfig.MinConns = poolSize(cfg.MaxConns, cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = healthCheckPeriod
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	db := &DB{Pool: pool, logger: logger}
	if err := db.HealthCheck(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("kv store connected",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Name),
		slog.Int("max_conns", int(poolConfig.MaxConns)),
	)
	return db, nil
}

// poolSize clamps the configured sizes to what the kv store can use
func poolSize(maxConns, minConns int32) (int32, int32) {
	if maxConns <= 0 || maxConns > maxStoreConns {
		maxConns = maxStoreConns
	}
	if minConns < 0 {
		minConns = 0
	}
	if minConns > maxConns {
		minConns = maxConns
	}
	return maxConns, minConns
}

func (db *DB) Close() {
	db.logger.Info("closing kv store pool")
	db.Pool.Close()
}

// HealthCheck pings the pool and confirms the kv_store table is present
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var present bool
	err := db.Pool.QueryRow(ctx, `SELECT to_regclass('kv_store') IS NOT NULL`).Scan(&present)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if !present {
		return ErrStoreNotMigrated
	}
	return nil
}
