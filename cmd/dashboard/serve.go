package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/injops/dashboard/internal/api"
	"github.com/injops/dashboard/internal/market"
	"github.com/injops/dashboard/internal/metrics"
	"github.com/injops/dashboard/internal/pages"
	"github.com/injops/dashboard/internal/store"
	"github.com/injops/dashboard/internal/ws"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard over HTTP",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Infow("Starting dashboard server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"network", cfg.Chain.Network,
		"trades_backend", cfg.Trades.Backend,
	)

	metricsObj, metricsHandler, err := metrics.Setup("injective-dashboard")
	if err != nil {
		return fmt.Errorf("failed to setup metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, metricsObj)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.holder.Schedule(cfg.Chain.ReferenceRefresh); err != nil {
		return err
	}
	a.holder.OnLoad(func(ref *market.Reference) {
		c := ref.Counts()
		logger.Infow("Reference data reloaded", "tokens", c.Tokens, "spot_markets", c.Spot, "derivative_markets", c.Derivatives)
	})

	cache, err := store.NewCache(cfg.Cache.RedisAddr, logger, metricsObj)
	if err != nil {
		return fmt.Errorf("failed to setup cache: %w", err)
	}
	defer cache.Close()

	registry := a.dashboard(&pages.Runtime{
		Cache:        cache,
		CacheTTL:     cfg.Cache.PageCacheTTL,
		BuildTimeout: cfg.RequestTimeout,
		Metrics:      metricsObj,
		Logger:       logger,
	})

	hub := ws.NewHub(cache, cfg.Security.CORSAllowedOrigins, logger, metricsObj)
	sse := ws.NewSSEHandler(cache, logger)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	handler, err := api.NewHandler(api.HandlerDeps{
		Pages:     registry,
		Reference: a.holder,
		Cache:     cache,
		WebSocket: hub.HandleWebSocket,
		SSE:       sse.HandleSSE,
		Metrics:   metricsHandler,
		Logger:    logger,
		Network:   cfg.Chain.Network,
	})
	if err != nil {
		return fmt.Errorf("failed to build handler: %w", err)
	}

	router := handler.Routes(api.NewMiddleware(logger, metricsObj), api.RouteOptions{
		CORSOrigins:    cfg.Security.CORSAllowedOrigins,
		RateLimitRPM:   cfg.Security.RateLimitRPM,
		RequestTimeout: cfg.RequestTimeout,
	})
	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// WriteTimeout stays zero so WebSocket and SSE streams are not cut; the
	// page routes carry their own timeout.
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Infow("Shutdown signal received")
	}

	hubCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("Graceful shutdown failed", "error", err)
		server.Close()
	}
	logger.Infow("Server stopped")
	return nil
}
