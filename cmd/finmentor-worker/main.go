package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finmentor/internal/config"
	"finmentor/internal/market"
)

// The worker keeps the shared Redis cache warm for the most used symbols so
// that API requests rarely wait on the provider.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config.LoadDotEnv()
	cfg := config.LoadWorkerFromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if cfg.Market.RedisAddr == "" {
		logger.Error("REDIS_ADDR is required: the worker warms the cache shared with the API")
		os.Exit(1)
	}
	rdb, err := market.DialRedis(ctx, cfg.Market.RedisAddr, cfg.Market.RedisPassword, cfg.Market.RedisDB)
	if err != nil {
		logger.Error("redis connect failed", "addr", cfg.Market.RedisAddr, "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	gateway := market.NewGateway(
		market.NewYahoo(cfg.Market.BaseURL, cfg.Market.Timeout),
		market.NewRedisCache(rdb),
		cfg.Market.CacheTTL,
		logger,
	)

	warm := func() int {
		start := time.Now()
		failed := gateway.Warm(ctx, cfg.Symbols, cfg.Periods)
		logger.Info("cache warm complete",
			"symbols", len(cfg.Symbols),
			"failed", failed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return failed
	}

	if cfg.RunOnce {
		if failed := warm(); failed > 0 {
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.Every)
	defer ticker.Stop()

	logger.Info("worker started", "every", cfg.Every.String(), "symbols", cfg.Symbols, "periods", cfg.Periods)
	warm()
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			warm()
		}
	}
}
