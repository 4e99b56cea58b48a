// Package storage provides database connections and repository
// implementations: postgres for vault deployment records, clickhouse for the
// append-only operation history and redis for the portfolio summary cache.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vault-router/internal/config"
	"github.com/vault-router/internal/logging"
)

const (
	pgConnectTimeout  = 10 * time.Second
	pgConnLifetime    = time.Hour
	pgConnIdleTime    = 30 * time.Minute
	pgHealthCheckTick = time.Minute
)

// PostgresDB owns the pgx connection pool backing the deployment record
// repository.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB opens a pooled connection and verifies it with a ping.
// Deployment records are small and written once per vault, so the pool is
// tuned for a low steady-state connection count.
func NewPostgresDB(cfg *config.PostgresConfig) (*PostgresDB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable application_name=vault-router",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres configuration: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections) // #nosec G115 - MaxConnections is validated in config
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = pgConnLifetime
	poolConfig.MaxConnIdleTime = pgConnIdleTime
	poolConfig.HealthCheckPeriod = pgHealthCheckTick

	ctx, cancel := context.WithTimeout(context.Background(), pgConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}

	logging.GetGlobalLogger().WithFields(map[string]interface{}{
		"host":      cfg.Host,
		"database":  cfg.Database,
		"max_conns": cfg.MaxConnections,
	}).Info("Connected to Postgres")

	return &PostgresDB{pool: pool}, nil
}

// Pool returns the underlying connection pool for repository use.
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks if the database is reachable.
func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}
