// Package postgres stores ledger entries in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationName is reported to the server in pg_stat_activity.
const ApplicationName = "ft-ledger"

// Pool wraps pgxpool.Pool so the store and migrations share one connection pool.
type Pool struct {
	*pgxpool.Pool
}

// PoolOption tunes the pgxpool config before connecting.
type PoolOption func(*pgxpool.Config)

// WithMaxConns caps the pool size. Non-positive values keep the pgx default.
func WithMaxConns(n int32) PoolOption {
	return func(c *pgxpool.Config) {
		if n > 0 {
			c.MaxConns = n
		}
	}
}

// NewPool connects to dsn and pings the server.
func NewPool(ctx context.Context, dsn string, opts ...PoolOption) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if _, ok := config.ConnConfig.RuntimeParams["application_name"]; !ok {
		config.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
	for _, opt := range opts {
		opt(config)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

const (
	pgErrNotNullViolation = "23502" // not_null_violation
	pgErrCheckViolation   = "23514" // check_violation
)

// isConstraintError checks if err is a NOT NULL or CHECK violation.
func isConstraintError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrNotNullViolation || pgErr.Code == pgErrCheckViolation
	}
	return false
}

func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
