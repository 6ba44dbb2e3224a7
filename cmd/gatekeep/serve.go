// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/auth"
	authpostgres "github.com/gatekeep/gatekeep/internal/auth/postgres"
	authredis "github.com/gatekeep/gatekeep/internal/auth/redis"
	"github.com/gatekeep/gatekeep/internal/config"
	"github.com/gatekeep/gatekeep/internal/httpapi"
	"github.com/gatekeep/gatekeep/internal/logging"
	"github.com/gatekeep/gatekeep/internal/observability"
	"github.com/gatekeep/gatekeep/internal/store"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication HTTP server",
		Long: `Start the HTTP server exposing registration, login, logout, and the
protected resource, together with the metrics/health endpoints and the
expired-session sweeper.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	// Flag names mirror config keys so posflag overlays them directly.
	cmd.Flags().String("listen_addr", "", "HTTP listen address")
	cmd.Flags().String("metrics_addr", "", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("database_url", "", "PostgreSQL connection URL")
	cmd.Flags().String("log_format", "", "log format (json or text)")
	cmd.Flags().String("session.store", "", "session store backend (postgres or redis)")
	cmd.Flags().Duration("session.ttl", 0, "session time-to-live")
	cmd.Flags().Duration("session.sweep_interval", 0, "expired-session sweep interval")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logging.SetDefault("gatekeep", version, cfg.LogFormat)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting gatekeep",
		"listen_addr", cfg.ListenAddr,
		"session_store", cfg.Session.Store,
		"session_ttl", cfg.Session.TTL,
	)

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	credRepo := authpostgres.NewCredentialRepository(pool)

	var sessionRepo auth.SessionRepository
	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		defer client.Close() //nolint:errcheck // shutdown path
		if err := client.Ping(ctx).Err(); err != nil {
			return oops.Code("REDIS_CONNECT_FAILED").
				With("addr", cfg.Redis.Addr).
				Wrap(err)
		}
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
		sessionRepo = authredis.NewSessionRepository(client)
	default:
		sessionRepo = authpostgres.NewSessionRepository(pool)
	}

	hasher := auth.NewArgon2idHasherWithParams(auth.Params{
		Time:    cfg.Argon2.Time,
		Memory:  cfg.Argon2.Memory,
		Threads: cfg.Argon2.Threads,
	})

	engine, err := auth.NewEngineWithLogger(credRepo, hasher, logger)
	if err != nil {
		return err
	}

	sessions, err := auth.NewSessionManagerWithLogger(sessionRepo, cfg.Session.TTL, logger)
	if err != nil {
		return err
	}

	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer := observability.NewServer(cfg.MetricsAddr, func() bool {
			pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return pool.Ping(pingCtx) == nil
		})
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if stopErr := obsServer.Stop(stopCtx); stopErr != nil {
				logger.Error("observability server shutdown failed", "error", stopErr)
			}
		}()
		metrics = obsServer.Metrics()

		go func() {
			for obsErr := range obsErrCh {
				logger.Error("observability server failed", "error", obsErr)
			}
		}()
	}

	sweeper, err := auth.NewSweeper(sessions, cfg.Session.SweepInterval, logger, func(removed int64) {
		if metrics != nil && removed > 0 {
			metrics.SessionsSweptTotal.Add(float64(removed))
		}
	})
	if err != nil {
		return err
	}
	go sweeper.Run(ctx)

	httpServer, err := httpapi.NewServer(httpapi.Config{
		Addr:          cfg.ListenAddr,
		CookieName:    cfg.Cookie.Name,
		CookieSecure:  cfg.Cookie.Secure,
		SessionSecret: []byte(cfg.Session.Secret),
	}, engine, sessions, metrics, logger)
	if err != nil {
		return err
	}

	httpErrCh, err := httpServer.Start()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr, ok := <-httpErrCh:
		if ok && serveErr != nil {
			return oops.Code("HTTP_SERVER_FAILED").Wrap(serveErr)
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Stop(stopCtx)
}
