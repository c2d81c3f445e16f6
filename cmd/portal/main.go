package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mce-digital/salesbridge/internal/app"
	"github.com/mce-digital/salesbridge/internal/erp"
	"github.com/mce-digital/salesbridge/internal/invoicerequest"
	"github.com/mce-digital/salesbridge/internal/platform/cache"
	"github.com/mce-digital/salesbridge/internal/platform/db"
	"github.com/mce-digital/salesbridge/internal/portal"
	"github.com/mce-digital/salesbridge/internal/view"
	"github.com/mce-digital/salesbridge/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// The eligible-order cache degrades to direct lookups, so an unreachable
	// redis only costs latency here. The jobs queue does need it.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	client := erp.NewClient(erp.Config{
		BaseURL:  cfg.OdooURL,
		Database: cfg.OdooDB,
		Username: cfg.OdooUsername,
		Password: cfg.OdooPassword,
		Timeout:  cfg.OdooTimeout,
	})
	if err := client.Authenticate(ctx); err != nil {
		logger.Error("authenticate against erp", slog.Any("error", err))
		os.Exit(1)
	}

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	requestRepo := invoicerequest.NewRepository(dbpool)
	requestService := invoicerequest.NewService(requestRepo, client)

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	eligibleCache := portal.NewCache(redisClient, cfg.EligibleTTL)
	handler := portal.NewHandler(logger, requestService, client, templates, eligibleCache, jobsClient)

	router := app.NewRouter(app.MiddlewareConfig{Logger: logger, Config: cfg})
	handler.MountRoutes(router)
	router.Route("/jobs", jobHandler.MountRoutes)

	server := &http.Server{
		Addr:         cfg.PortalAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting portal", slog.String("addr", cfg.PortalAddr))
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
