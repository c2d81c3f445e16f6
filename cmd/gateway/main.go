package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mce-digital/salesbridge/internal/app"
	"github.com/mce-digital/salesbridge/internal/erp"
	"github.com/mce-digital/salesbridge/internal/gateway"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	client := erp.NewClient(erp.Config{
		BaseURL:  cfg.OdooURL,
		Database: cfg.OdooDB,
		Username: cfg.OdooUsername,
		Password: cfg.OdooPassword,
		Timeout:  cfg.OdooTimeout,
	})
	// Connectivity is a precondition, not a runtime concern: a gateway that
	// cannot reach the object layer has nothing to serve.
	if err := client.Authenticate(ctx); err != nil {
		logger.Error("authenticate against erp", slog.Any("error", err))
		os.Exit(1)
	}

	handler := gateway.NewHandler(logger, client)

	router := app.NewRouter(app.MiddlewareConfig{Logger: logger, Config: cfg})
	router.Route("/api", handler.MountRoutes)

	server := &http.Server{
		Addr:         cfg.GatewayAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting gateway", slog.String("addr", cfg.GatewayAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
