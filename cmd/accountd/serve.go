// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/accountd/accountd/internal/config"
	"github.com/accountd/accountd/internal/httpapi"
	"github.com/accountd/accountd/internal/identity"
	"github.com/accountd/accountd/internal/identity/postgres"
	"github.com/accountd/accountd/internal/logging"
	"github.com/accountd/accountd/internal/observability"
	"github.com/accountd/accountd/internal/store"
)

// serviceName stamps every log line via the logging handler.
const serviceName = "accountd"

// readinessPingTimeout bounds the database ping behind the readiness probe.
const readinessPingTimeout = 2 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the identity API server",
		Long: `Start the HTTP API server: registration, login, sessions,
email verification, and the Google OAuth callback. Settings come from
the config file; the flags below override it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	// Flag names mirror config keys so overrides fold into the same tree.
	defaults := config.Default()
	cmd.Flags().String("server.addr", defaults.Server.Addr, "HTTP API listen address")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().String("log.format", defaults.Log.Format, "log format (json or text)")
	cmd.Flags().String("log.level", defaults.Log.Level, "log level (debug, info, warn, error)")
	cmd.Flags().String("observability.metrics_addr", defaults.Observability.MetricsAddr,
		"metrics/health HTTP address (empty = disabled)")

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.PoolFactory == nil {
		deps.PoolFactory = store.NewPool
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.APIServerFactory == nil {
		deps.APIServerFactory = func(svc httpapi.IdentityService, google *httpapi.GoogleAuth, cfg httpapi.Config, logger *slog.Logger) (APIServer, error) {
			return httpapi.NewServer(svc, google, cfg, logger)
		}
	}
	if deps.GoogleAuthFactory == nil {
		deps.GoogleAuthFactory = httpapi.NewGoogleAuth
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level)
	logger := slog.Default()

	logger.Info("starting accountd",
		"addr", cfg.Server.Addr,
		"metrics_addr", cfg.Observability.MetricsAddr,
	)

	pool, err := deps.PoolFactory(ctx, store.PoolConfig{
		URL:            cfg.Database.URL,
		MaxConns:       cfg.Database.MaxConns,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		Logger:         logger,
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	logger.Info("connected to database")

	accounts := postgres.NewAccountRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	transactor := postgres.NewTransactor(pool)

	sessions, err := identity.NewSessionManager(sessionRepo, cfg.Session.TTL, cfg.Session.MaxActive)
	if err != nil {
		return err
	}

	signer, err := identity.NewTokenSigner([]byte(cfg.Verification.Secret), cfg.Verification.TTL, cfg.Verification.Issuer)
	if err != nil {
		return err
	}

	domains, err := identity.NewDomainFilter(cfg.Registration.AllowedDomains, cfg.Registration.DeniedDomains)
	if err != nil {
		return err
	}

	var mailer identity.VerificationMailer
	if cfg.SMTP.Host != "" {
		mailer, err = identity.NewSMTPMailer(identity.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
		})
		if err != nil {
			return err
		}
	} else {
		logger.Warn("smtp is not configured, verification links are logged instead of mailed")
		mailer = &identity.LogMailer{Logger: logger}
	}

	// The observability server carries the metrics registry; identity
	// counters land there so one scrape covers everything.
	obsServer := deps.ObservabilityServerFactory(cfg.Observability.MetricsAddr, func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), readinessPingTimeout)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	})
	metrics := identity.NewMetrics(obsServer.Registry())

	policy := identity.DefaultPasswordPolicy()
	policy.MinLength = cfg.Registration.Password.MinLength
	policy.RequireUpper = cfg.Registration.Password.RequireUpper
	policy.RequireLower = cfg.Registration.Password.RequireLower
	policy.RequireDigit = cfg.Registration.Password.RequireDigit
	policy.RequireSymbol = cfg.Registration.Password.RequireSymbol

	svc, err := identity.NewService(
		accounts,
		sessions,
		transactor,
		identity.NewBcryptHasher(cfg.Registration.BcryptCost),
		signer,
		mailer,
		identity.ServiceOptions{
			Policy:               policy,
			Domains:              domains,
			RequireVerifiedLogin: cfg.Registration.RequireVerifiedLogin,
			VerificationBaseURL:  cfg.Server.BaseURL,
			Logger:               logger,
			Metrics:              metrics,
		},
	)
	if err != nil {
		return err
	}

	var google *httpapi.GoogleAuth
	if cfg.Google.Enabled {
		redirectURL := cfg.Google.RedirectURL
		if redirectURL == "" {
			redirectURL = cfg.Server.BaseURL + "/api/auth/google/callback"
		}
		google, err = deps.GoogleAuthFactory(ctx, httpapi.GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  redirectURL,
		})
		if err != nil {
			return oops.Code("OAUTH_SETUP_FAILED").Wrap(err)
		}
		logger.Info("google sign-in enabled")
	}

	apiServer, err := deps.APIServerFactory(svc, google, httpapi.Config{
		Addr:            cfg.Server.Addr,
		CookieSecure:    cfg.Server.CookieSecure,
		CookieTTL:       cfg.Server.CookieTTL,
		SuccessRedirect: cfg.Server.SuccessRedirect,
		ErrorRedirect:   cfg.Server.ErrorRedirect,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
	}, logger)
	if err != nil {
		return err
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var startedObs ObservabilityServer
	if cfg.Observability.MetricsAddr != "" {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		startedObs = obsServer
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	apiErrChan, err := apiServer.Start()
	if err != nil {
		stopStartedServers(startedObs, nil, cfg.Server.ShutdownTimeout)
		return oops.Code("API_START_FAILED").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("accountd started")
	logger.Info("accountd ready", "addr", apiServer.Addr())

	// Wait for shutdown signal or server failure
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	stopStartedServers(startedObs, apiServer, cfg.Server.ShutdownTimeout)
	logger.Info("shutdown complete")
	return nil
}

// stopStartedServers stops whichever servers came up, tolerating nil.
func stopStartedServers(obs ObservabilityServer, api APIServer, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if api != nil {
		if err := api.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping api server", "error", err)
		}
	}
	if obs != nil {
		if err := obs.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}
}

// monitorServerErrors watches a server's error channel and cancels the
// context on error so a failed server brings the process down cleanly.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
