// Package postgres implements the domain store interfaces using PostgreSQL
// via pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ClientConfig holds connection parameters for the PostgreSQL client.
type ClientConfig struct {
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN builds a PostgreSQL connection string from the config. An explicit
// DSN wins over the individual fields.
func DSN(cfg ClientConfig) string {
	if strings.TrimSpace(cfg.DSN) != "" {
		return cfg.DSN
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database, sslMode,
	)
}

// Client wraps a pgxpool.Pool and manages schema migrations.
type Client struct {
	pool *pgxpool.Pool
}

// New creates a Client with a connection pool configured from cfg and
// verifies connectivity.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Client{pool: pool}, nil
}

// Pool returns the underlying connection pool.
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// Close shuts down the connection pool.
func (c *Client) Close() {
	c.pool.Close()
}

// migration is one schema step. Steps are applied in slice order and
// recorded in schema_migrations, so new steps append and old ones never
// change.
type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "0001_route_log",
		sql: `
			CREATE TABLE IF NOT EXISTS route_log (
				id             BIGSERIAL PRIMARY KEY,
				ts             TIMESTAMPTZ NOT NULL,
				route_id       TEXT NOT NULL,
				profit_percent DOUBLE PRECISION NOT NULL,
				notional       DOUBLE PRECISION NOT NULL,
				min_liquidity  DOUBLE PRECISION NOT NULL,
				executed       BOOLEAN NOT NULL DEFAULT FALSE
			);
			CREATE INDEX IF NOT EXISTS route_log_ts_idx ON route_log (ts);
			CREATE INDEX IF NOT EXISTS route_log_route_id_idx ON route_log (route_id);`,
	},
	{
		name: "0002_trades",
		sql: `
			CREATE TABLE IF NOT EXISTS trades (
				id             UUID PRIMARY KEY,
				route_id       TEXT NOT NULL,
				state          TEXT NOT NULL,
				notional       DOUBLE PRECISION NOT NULL,
				final_amount   DOUBLE PRECISION NOT NULL,
				profit_percent DOUBLE PRECISION NOT NULL,
				profit_abs     DOUBLE PRECISION NOT NULL,
				legs           JSONB NOT NULL DEFAULT '[]',
				error          TEXT,
				started_at     TIMESTAMPTZ NOT NULL,
				completed_at   TIMESTAMPTZ NOT NULL
			);
			CREATE INDEX IF NOT EXISTS trades_completed_at_idx ON trades (completed_at);`,
	},
}

// RunMigrations applies the pending schema steps in order, tracking applied
// names in a schema_migrations table.
func (c *Client) RunMigrations(ctx context.Context) error {
	const createTracker = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`
	if _, err := c.pool.Exec(ctx, createTracker); err != nil {
		return fmt.Errorf("postgres: create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err := c.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)",
			m.name,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("postgres: check migration %s: %w", m.name, err)
		}
		if exists {
			continue
		}

		tx, err := c.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("postgres: begin tx for %s: %w", m.name, err)
		}
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("postgres: exec migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (filename) VALUES ($1)", m.name,
		); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("postgres: record migration %s: %w", m.name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("postgres: commit migration %s: %w", m.name, err)
		}
	}
	return nil
}
