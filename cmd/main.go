package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KotFed0t/blu_rebalancer/config"
	"github.com/KotFed0t/blu_rebalancer/data"
	"github.com/KotFed0t/blu_rebalancer/data/cache"
	"github.com/KotFed0t/blu_rebalancer/data/repository/postgres"
	"github.com/KotFed0t/blu_rebalancer/data/session"
	"github.com/KotFed0t/blu_rebalancer/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/KotFed0t/blu_rebalancer/internal/externalApi/priceApi"
	"github.com/KotFed0t/blu_rebalancer/internal/reportGenerator/xlsxGenerator"
	"github.com/KotFed0t/blu_rebalancer/internal/scheduler"
	"github.com/KotFed0t/blu_rebalancer/internal/service/rebalanceService"
	"github.com/KotFed0t/blu_rebalancer/internal/tgbot"
	"github.com/KotFed0t/blu_rebalancer/internal/transport/rest"
	"github.com/KotFed0t/blu_rebalancer/internal/transport/telegram"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg.Cache.PricesExpiration)
	redisSession := session.NewRedisSession(redisClient, cfg.SessionExpiration)

	priceApiClient := priceApi.New(cfg)

	googleCloudStorage := googleDriveApi.New(ctx, cfg, clock)

	rebalanceSrv := rebalanceService.New(rebalanceService.NewConfig(cfg), rebalanceService.Deps{
		Store:    pgRepo,
		Users:    pgRepo,
		Ledger:   pgRepo,
		Actions:  pgRepo,
		History:  pgRepo,
		Oracle:   rebalanceService.NewCachedOracle(redisCache, priceApiClient),
		PriceApi: priceApiClient,
		Cache:    redisCache,
		Reports:  xlsxGenerator.New(),
		Cloud:    googleCloudStorage,
		Clock:    clock,
	})

	sched := scheduler.New(clock)
	sched.NewIntervalJob("fill price cache", rebalanceSrv.FillPriceCache, cfg.Jobs.FillPriceCacheInterval, true)
	sched.NewIntervalJob("cleanup reports", rebalanceSrv.CleanupReports, cfg.Jobs.CleanupReportsInterval, false)
	sched.Start()
	defer sched.Stop()

	httpServer := rest.New(cfg, rebalanceSrv, clock)
	go func() {
		if err := httpServer.Start(); err != nil {
			slog.Error("http server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	tgController := telegram.NewController(rebalanceSrv, redisSession)

	tgBot := tgbot.New(cfg, tgController)
	tgBot.Start()
	defer tgBot.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	select {
	case <-interrupt:
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", slog.String("err", err.Error()))
	}
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
