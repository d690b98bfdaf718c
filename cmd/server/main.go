// Package main provides the API server entry point for the portfolio engine.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/portfolio-engine/internal/adapter"
	"github.com/portfolio-engine/internal/api"
	"github.com/portfolio-engine/internal/config"
	"github.com/portfolio-engine/internal/logging"
	"github.com/portfolio-engine/internal/metrics"
	"github.com/portfolio-engine/internal/service"
	"github.com/portfolio-engine/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Cache store
	var store storage.Store
	switch cfg.Cache.Backend {
	case "redis":
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redis.Close()
		store = redis
	default:
		memory := storage.NewMemoryCache()
		go purgeExpired(ctx, memory, cfg.Cache.PortfolioTTL)
		store = memory
	}
	logger.WithField("backend", cfg.Cache.Backend).Info("Cache store initialized")

	portfolioCache := storage.NewCacheService(store, "portfolio", cfg.Cache.PortfolioTTL, m)
	opportunityCache := storage.NewCacheService(store, "opportunities", cfg.Cache.CatalogTTL, m)

	// Optional price history store
	var history adapter.HistoryStore
	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err := storage.NewClickHouseDB(ctx, &cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to ClickHouse")
		}
		defer clickhouse.Close()
		history = storage.NewPriceHistoryRepository(clickhouse)
		logger.Info("Price history store enabled")
	}

	// Catalog
	var catalog service.CatalogProvider = service.NewStaticCatalog()
	var refresher *service.CatalogRefresher
	if cfg.Catalog.Source == "postgres" {
		postgres, err := storage.NewPostgresDB(ctx, &cfg.Database.Postgres)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Postgres")
		}
		defer postgres.Close()

		refresher = service.NewCatalogRefresher(storage.NewCatalogRepository(postgres), catalog, opportunityCache, m)
		if err := refresher.Start(ctx, cfg.Catalog.RefreshSchedule); err != nil {
			logger.WithError(err).Fatal("Failed to start catalog refresher")
		}
		defer refresher.Stop()
		catalog = refresher
	}
	logger.WithField("source", cfg.Catalog.Source).Info("Opportunity catalog initialized")

	// Sources
	market := adapter.NewHTTPMarketClient(cfg.Sources, history, m)

	var balances adapter.BalanceSource
	evm, err := adapter.NewEVMBalanceSource(cfg.Chains, m)
	if err != nil {
		logger.WithError(err).Warn("On-chain balance source unavailable, serving empty holdings")
		balances = adapter.NewStaticBalanceSource()
	} else {
		defer evm.Close()
		balances = evm
	}

	// Services
	enricher := service.NewAssetEnricher(market, service.EnricherConfig{
		Workers:     cfg.Enrich.Workers,
		Timeout:     cfg.Enrich.Timeout,
		HistoryDays: cfg.Sources.HistoryDays,
	}, m)
	portfolioService := service.NewPortfolioService(
		balances,
		enricher,
		service.NewInsightEngine(service.NewCatalogInsightSource(catalog)),
		service.NewOpportunityAggregator(catalog, opportunityCache),
		portfolioCache,
	)
	logger.Info("Services initialized")

	server := api.NewServer(&api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}, portfolioService, m)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
		os.Exit(1)
	}

	logger.Info("Server exited")
}

// purgeExpired drops expired in-memory cache entries until ctx is done
func purgeExpired(ctx context.Context, cache *storage.MemoryCache, every time.Duration) {
	if every < time.Second {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := cache.Purge(); n > 0 {
				logging.WithField("purged", n).Debug("Expired cache entries purged")
			}
		}
	}
}
