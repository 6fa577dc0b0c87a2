// Package main is the entrypoint for the SMS TODO webhook server.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/smstodo/smstodo/internal/app"
	"github.com/smstodo/smstodo/internal/cache"
	"github.com/smstodo/smstodo/internal/config"
	"github.com/smstodo/smstodo/internal/handler"
	"github.com/smstodo/smstodo/internal/metrics"
	"github.com/smstodo/smstodo/internal/phone"
	"github.com/smstodo/smstodo/internal/repository"
	"github.com/smstodo/smstodo/internal/server"
	"github.com/smstodo/smstodo/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg, os.Stdout)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database",
			slog.String("error", app.SanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", cfg.RedactedDatabaseURL()),
		)
		os.Exit(1)
	}
	logger.Info("connected to database", "database_url", cfg.RedactedDatabaseURL())

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		repo.Close()
		logger.Error("failed to connect to Redis",
			slog.String("error", app.SanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", cfg.RedactedRedisURL()),
		)
		os.Exit(1)
	}
	logger.Info("connected to Redis", "redis_url", cfg.RedactedRedisURL())

	recorder := metrics.NewInMemory()
	phones := phone.NewNormalizer(cfg.DefaultRegion)
	sender := app.NewSender(cfg, logger)

	svc := service.NewTodoService(repo, sender, phones, logger, recorder, service.Options{
		NotifyConcurrency: cfg.NotifyConcurrency,
	})

	inbound := handler.NewInboundHandler(svc, phones, cacheClient, cacheClient, handler.InboundConfig{
		DedupeTTL:          cfg.DedupeTTL,
		RateLimitEnabled:   cfg.RateLimitSenderEnabled,
		RateLimitPerMinute: cfg.RateLimitSenderPerMinute,
		RateLimitBurst:     cfg.RateLimitSenderBurst,
	}, logger, recorder)

	router := app.NewRouter(cfg, app.Handlers{
		Health:  handler.NewHealthHandler(repo, cacheClient),
		Metrics: handler.NewMetricsHandler(recorder),
		Inbound: inbound,
	}, logger)

	srv := server.New(router, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// LIFO: redis closes before postgres.
	srv.OnShutdown("postgres", func(ctx context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(ctx context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"dry_run", cfg.SMSDryRun,
		"region", cfg.DefaultRegion,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
