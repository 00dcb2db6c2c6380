// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

// Package store provides the PostgreSQL connection pool and schema
// migrations backing the identity repositories.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Pool connection defaults. Overridable through PoolConfig.
const (
	DefaultMaxConns       = 10
	DefaultConnectTimeout = 30 * time.Second
	connectBaseBackoff    = 500 * time.Millisecond
	connectMaxRetries     = 6
)

// PoolConfig configures the database connection pool.
type PoolConfig struct {
	// URL is the PostgreSQL connection string.
	URL string

	// MaxConns caps the pool size. Zero means DefaultMaxConns.
	MaxConns int32

	// ConnectTimeout bounds the whole connect-and-ping sequence,
	// including retries. Zero means DefaultConnectTimeout.
	ConnectTimeout time.Duration

	Logger *slog.Logger
}

// NewPool opens a pgx connection pool and verifies connectivity with a
// ping. The ping is retried with exponential backoff so the service
// survives starting before its database does.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, oops.Code("DB_CONFIG_INVALID").Errorf("database URL is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").
			With("operation", "parse database URL").
			Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = DefaultMaxConns
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "create connection pool").
			Wrap(err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backoff := retry.WithMaxRetries(connectMaxRetries, retry.NewExponential(connectBaseBackoff))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("database not ready, retrying", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}

	return pool, nil
}
