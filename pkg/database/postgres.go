// Package database opens the PostgreSQL pool behind the insights store.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// PoolConfig sizes the pool. Zero fields keep the pgxpool defaults.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// PoolOption configures the connection pool.
type PoolOption func(*options)

type options struct {
	pool         PoolConfig
	afterConnect []func(context.Context, *pgx.Conn) error
}

// WithPoolConfig applies pool sizing and timeouts.
func WithPoolConfig(pc PoolConfig) PoolOption {
	return func(o *options) {
		o.pool = pc
	}
}

// WithAfterConnect adds a callback run on each new connection once the vector types are registered.
func WithAfterConnect(fn func(context.Context, *pgx.Conn) error) PoolOption {
	return func(o *options) {
		o.afterConnect = append(o.afterConnect, fn)
	}
}

// ParseConfig builds the pool configuration for databaseURL without connecting.
// Every connection gets the pgvector types registered once the extension exists, so vector
// columns scan into pgvector.Vector.
func ParseConfig(databaseURL string, opts ...PoolOption) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.pool.MaxConns > 0 {
		config.MaxConns = o.pool.MaxConns
	}

	if o.pool.MinConns > 0 {
		config.MinConns = min(o.pool.MinConns, config.MaxConns)
	}

	if o.pool.MaxConnLifetime > 0 {
		config.MaxConnLifetime = o.pool.MaxConnLifetime
	}

	if o.pool.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = o.pool.MaxConnIdleTime
	}

	if o.pool.ConnectTimeout > 0 {
		config.ConnConfig.ConnectTimeout = o.pool.ConnectTimeout
	}

	hooks := o.afterConnect
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if err := registerVectorTypes(ctx, conn); err != nil {
			return err
		}

		for _, fn := range hooks {
			if err := fn(ctx, conn); err != nil {
				return err
			}
		}

		return nil
	}

	return config, nil
}

// NewPostgresPool creates a PostgreSQL connection pool and checks it with a ping.
func NewPostgresPool(ctx context.Context, databaseURL string, opts ...PoolOption) (*pgxpool.Pool, error) {
	config, err := ParseConfig(databaseURL, opts...)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Connected to PostgreSQL",
		"max_conns", config.MaxConns,
		"min_conns", config.MinConns,
	)

	return pool, nil
}

// registerVectorTypes is a no-op until the vector extension is installed, so the pool that
// runs the first migration can still connect.
func registerVectorTypes(ctx context.Context, conn *pgx.Conn) error {
	var installed bool
	if err := conn.QueryRow(ctx, "SELECT to_regtype('vector') IS NOT NULL").Scan(&installed); err != nil {
		return fmt.Errorf("check vector extension: %w", err)
	}

	if !installed {
		slog.DebugContext(ctx, "vector extension not installed yet, skipping type registration")

		return nil
	}

	if err := pgxvec.RegisterTypes(ctx, conn); err != nil {
		return fmt.Errorf("register pgvector types: %w", err)
	}

	return nil
}
