package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finmentor/internal/api"
	"finmentor/internal/auth"
	"finmentor/internal/config"
	"finmentor/internal/db"
	"finmentor/internal/game"
	"finmentor/internal/market"
	"finmentor/internal/mentor"
	"finmentor/internal/notify"
	"finmentor/internal/progress"
	"finmentor/internal/watchlist"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config.LoadDotEnv()
	cfg := config.LoadAPIFromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	memCache := market.NewMemoryCache()
	cache := market.Cache(memCache)
	if cfg.Market.RedisAddr != "" {
		rdb, err := market.DialRedis(ctx, cfg.Market.RedisAddr, cfg.Market.RedisPassword, cfg.Market.RedisDB)
		if err != nil {
			logger.Error("redis connect failed", "addr", cfg.Market.RedisAddr, "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		cache = market.NewRedisCache(rdb)
	} else {
		go memCache.RunPurger(ctx, 5*time.Minute)
	}
	gateway := market.NewGateway(market.NewYahoo(cfg.Market.BaseURL, cfg.Market.Timeout), cache, cfg.Market.CacheTTL, logger)

	notifiers := []progress.Notifier{notify.Log(logger)}
	var discord *notify.Discord
	if cfg.DiscordWebhook != "" {
		d, err := notify.NewDiscord(cfg.DiscordWebhook, logger)
		if err != nil {
			logger.Error("discord webhook invalid", "err", err)
			os.Exit(1)
		}
		discord = d
		notifiers = append(notifiers, d)
	}
	notifier := notify.Multi(notifiers...)

	deps := api.Deps{
		Sessions: auth.NewManager(cfg.SessionTTL),
		Market:   gateway,
	}

	if cfg.PersistenceEnabled() {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Error("db migrate failed", "err", err)
			os.Exit(1)
		}
		deps.Users = auth.NewService(auth.NewPostgresUsers(pool), cfg.BcryptCost, notifier, logger)
		deps.Ledger = progress.NewLedger(progress.NewPostgresStore(pool), notifier, logger)
		deps.Game = game.NewService(gateway, deps.Ledger, logger)
	} else {
		logger.Warn("DATABASE_URL not set, accounts and progress are disabled")
	}

	var advisor watchlist.Advisor
	if cfg.MentorEnabled() {
		llm, err := mentor.NewGemini(ctx, cfg.MentorAPIKey, cfg.MentorModel)
		if err != nil {
			logger.Error("mentor client init failed", "err", err)
			os.Exit(1)
		}
		deps.Mentor = mentor.NewService(llm, mentor.Options{
			Timeout:  cfg.MentorTimeout,
			Cache:    cache,
			CacheTTL: cfg.Market.CacheTTL,
		}, logger)
		advisor = deps.Mentor
	} else {
		logger.Warn("GEMINI_API_KEY not set, the mentor is disabled")
	}
	deps.Watchlist = watchlist.NewService(gateway, advisor, logger)

	go deps.Sessions.RunSweeper(ctx, 5*time.Minute)

	server := api.New(cfg, logger, deps)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("finmentor api listening",
		"addr", cfg.Addr,
		"persistence", cfg.PersistenceEnabled(),
		"mentor", cfg.MentorEnabled(),
		"redis", cfg.Market.RedisAddr != "",
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
	if discord != nil {
		discord.Wait()
	}
}
