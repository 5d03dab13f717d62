package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/weather-to-mastodon/internal/api/http"
	"github.com/i474232898/weather-to-mastodon/internal/config"
	"github.com/i474232898/weather-to-mastodon/internal/observability"
	"github.com/i474232898/weather-to-mastodon/internal/scheduler"
	"github.com/i474232898/weather-to-mastodon/internal/store"
	"github.com/i474232898/weather-to-mastodon/internal/weather"
	"github.com/i474232898/weather-to-mastodon/internal/weather/providers"
)

func main() {
	envErr := godotenv.Load()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)
	if envErr != nil {
		log.Info("no .env file loaded", "error", envErr)
	}

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, log *slog.Logger) error {
	metrics := observability.NewMetrics()

	// Durable key-value store for the operational logs.
	db, err := store.OpenSQLite(cfg.LogDBPath)
	if err != nil {
		return fmt.Errorf("open log database %s: %w", cfg.LogDBPath, err)
	}
	defer db.Close()

	kv := store.NewSQLiteStore(db, nil)
	if err := kv.Migrate(context.Background()); err != nil {
		return err
	}

	// Expiring in-memory store for fallback log entries and notices.
	transient := store.NewTransientStore(nil)
	fallbackTTL := store.WithFallbackTTL(cfg.LogFallbackTTL)
	logs := weather.Logs{
		Debug:   store.NewBoundedLog[weather.DebugEntry](store.DebugLogKey, kv, transient, fallbackTTL, store.WithMetrics(metrics, "debug")),
		Uploads: store.NewBoundedLog[weather.UploadEntry](store.UploadLogKey, kv, transient, fallbackTTL, store.WithMetrics(metrics, "uploads")),
		Posts:   store.NewBoundedLog[weather.PostEntry](store.PostLogKey, kv, transient, fallbackTTL, store.WithMetrics(metrics, "posts")),
	}

	// Shared HTTP client for outbound calls.
	httpClient := providers.NewHTTPClient(cfg.HTTPTimeout)

	// Core service orchestrating the pipeline.
	service := weather.NewService(weather.Deps{
		Settings:  cfg,
		Fetcher:   providers.NewSnapshotProvider(httpClient, cfg.FetchUserAgent),
		Publisher: providers.NewMastodonProvider(httpClient, cfg.PublishUserAgent),
		Logs:      logs,
		Notices:   store.NewNoticeBoard(transient, cfg.NoticeTTL),
		Metrics:   metrics,
		Logger:    log,
	})

	// Scheduler that periodically posts the current conditions.
	sched := scheduler.New(string(cfg.PostInterval), cfg.PostInterval.Duration(), service, log)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	// Cancelled on SIGINT or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Drop expired transient entries in the background.
	go transient.PurgeEvery(ctx, time.Minute)

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-to-mastodon",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2*cfg.HTTPTimeout + 10*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-to-mastodon",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, service, sched, cfg.AdminToken)

	go func() {
		log.Info("admin API listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
	return nil
}
