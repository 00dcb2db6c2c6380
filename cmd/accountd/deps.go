// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/accountd/accountd/internal/httpapi"
	"github.com/accountd/accountd/internal/observability"
	"github.com/accountd/accountd/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// PoolFactory creates the database connection pool.
	// Default: store.NewPool
	PoolFactory func(ctx context.Context, cfg store.PoolConfig) (*pgxpool.Pool, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// APIServerFactory creates the HTTP API server.
	// Default: httpapi.NewServer
	APIServerFactory func(svc httpapi.IdentityService, google *httpapi.GoogleAuth, cfg httpapi.Config, logger *slog.Logger) (APIServer, error)

	// GoogleAuthFactory builds the Google OAuth client when enabled.
	// Default: httpapi.NewGoogleAuth
	GoogleAuthFactory func(ctx context.Context, cfg httpapi.GoogleConfig) (*httpapi.GoogleAuth, error)
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Registry() *prometheus.Registry
}

// APIServer interface wraps the methods used from httpapi.Server.
type APIServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}
