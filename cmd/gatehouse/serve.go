// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth"
	authpg "github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/auth/memstore"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/httpapi"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logging.SetDefault("gatehouse", version, cfg.LogFormat)
	logger := slog.Default()

	var users auth.UserStore
	var tokens auth.TokenStore
	if cfg.Dev {
		logger.Warn("running with the in-memory store; data is not persisted")
		users = memstore.NewUserStore()
		tokens = memstore.NewTokenStore()
	} else {
		pool, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			errutil.LogError(logger, "database connection failed", err)
			return err
		}
		defer pool.Close()
		users = authpg.NewUserRepository(pool)
		tokens = authpg.NewTokenRepository(pool)
	}

	registry := auth.NewRegistry(map[string]auth.PrincipalConfig{
		auth.DefaultPrincipal: {
			AllowEternalTokens: cfg.Auth.AllowEternalTokens,
			Tokens:             tokens,
		},
	})

	manager, err := auth.NewManager(tokens, registry, cfg.Auth.TokenIDBytes, logger)
	if err != nil {
		return err
	}

	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	service, err := auth.NewService(users, tokens, manager, registry, hasher, cfg.Settings(), logger)
	if err != nil {
		return err
	}

	handler, err := httpapi.NewHandler(service, manager, cfg.Lookup(), logger)
	if err != nil {
		return err
	}

	obs := observability.NewServer(cfg.MetricsAddr, nil)
	obsErrs, err := obs.Start()
	if err != nil {
		errutil.LogError(logger, "observability server start failed", err)
		return err
	}

	apiSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	apiErrs := make(chan error, 1)
	go func() {
		logger.Info("auth API listening", "addr", cfg.ListenAddr, "tls", cfg.TLSCert != "")
		var serveErr error
		if cfg.TLSCert != "" {
			serveErr = apiSrv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			serveErr = apiSrv.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			apiErrs <- serveErr
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-apiErrs:
		errutil.LogError(logger, "auth API server failed", err)
	case err := <-obsErrs:
		if err != nil {
			errutil.LogError(logger, "observability server failed", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		errutil.LogError(logger, "auth API shutdown failed", err)
	}
	if err := obs.Stop(shutdownCtx); err != nil {
		errutil.LogError(logger, "observability shutdown failed", err)
	}
	return nil
}
