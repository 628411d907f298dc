// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

// Command server runs the Parley relay: admission-gated WebSocket transport,
// conversation and notification relay, and the HTTP management surface,
// all under a suture supervision tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parleyhq/parley/internal/ai"
	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/presence"
	"github.com/parleyhq/parley/internal/relay"
	"github.com/parleyhq/parley/internal/store"
	"github.com/parleyhq/parley/internal/supervisor"
	"github.com/parleyhq/parley/internal/supervisor/services"
	ws "github.com/parleyhq/parley/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Bool("store_in_memory", cfg.Store.InMemory).
		Bool("assistant_enabled", cfg.AI.APIKey != "").
		Msg("Starting Parley")

	// Persistence
	st, err := store.Open(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	// Presence registry and hub
	registry := presence.NewRegistry()
	hub := ws.NewHub(registry)

	// Assistant responder, wrapped in a circuit breaker. Without an API key
	// the relay runs chat without assistant replies.
	var responder ai.Responder
	if cfg.AI.APIKey != "" {
		responder = ai.NewBreakerResponder(ai.NewClient(cfg.AI), cfg.AI)
	} else {
		logging.Warn().Msg("No assistant API key configured; assistant replies disabled")
	}

	// Relay components
	dispatcher := relay.NewDispatcher(hub, st, st, responder)
	notifier := relay.NewNotifier(hub, st, registry)

	// Authentication
	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	creds, err := auth.NewCredentialStore(cfg.Security.AdminUsername, cfg.Security.AdminPassword)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize credential store")
	}

	// HTTP surface
	handler := api.NewHandler(cfg, hub, dispatcher, notifier, jwtManager, creds)
	mw := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization"},
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		RateLimitDisabled:  cfg.Security.RateLimitDisabled,
	})
	router := api.NewRouter(handler, mw)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Supervision tree; zerolog bridges into suture through the slog adapter
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if !cfg.Store.InMemory {
		tree.AddDataService(services.NewStoreGCService(st, cfg.Store.GCInterval))
	}
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Parley stopped gracefully")
}
