package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"feedsync/internal/cache"
	"feedsync/internal/config"
	"feedsync/internal/database"
	"feedsync/internal/events"
	"feedsync/internal/fetch"
	"feedsync/internal/logger"
	"feedsync/internal/pricing"
	"feedsync/internal/ratelimit"
	"feedsync/internal/repository"
	"feedsync/internal/retry"
	"feedsync/internal/scheduler"
	"feedsync/internal/shopify"
	"feedsync/internal/supplier"
	syncengine "feedsync/internal/sync"
	"feedsync/internal/validation"
	"feedsync/internal/worker"
	"feedsync/internal/worker/processors"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if err := cfg.RequireSupplier(); err != nil {
		log.Fatal(err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db.DB); err != nil {
		logger.Fatal("Failed to migrate database: %v", err)
	}

	// Repositories
	productRepo := repository.NewProductRepository(db.DB, logger)
	jobRepo := repository.NewFetchJobRepository(db.DB)
	ruleRepo := repository.NewPriceRuleRepository(db.DB)
	syncRepo := repository.NewSyncRepository(db.DB)
	cacheRepo := repository.NewCacheRepository(db.DB)

	// Messaging
	publisher := events.NewPublisher(cfg.KafkaBrokers, logger)
	defer publisher.Close()

	// Services
	retrier := retry.NewExecutor(retry.DefaultPolicy(), logger)
	feed := supplier.NewClient(cfg.SupplierBaseURL, cfg.SupplierAPIKey, logger)
	controller := fetch.NewController(feed, jobRepo, productRepo, retrier, publisher, cfg.SupplierPageSize, logger)
	validator := validation.NewEngine(productRepo, validation.Settings{
		MinPrice:     cfg.MinPrice,
		MinStock:     cfg.MinStock,
		RequireImage: cfg.RequireImage,
		RequireBrand: cfg.RequireBrand,
	}, logger)
	limiter := ratelimit.NewCostLimiter(cfg.ShopifyMaxCost, cfg.ShopifyRestoreRate)
	storefront := shopify.NewClient(cfg.ShopifyShopDomain, cfg.ShopifyAccessToken, limiter, retrier, logger)
	pricer := pricing.NewEngine(ruleRepo)
	orchestrator := syncengine.NewOrchestrator(controller, validator, storefront, pricer,
		productRepo, syncRepo, publisher, cfg.ShopifyLocationID, cfg.PublishConcurrency, logger)
	cacheService := cache.NewService(feed, cacheRepo, publisher, cfg.SupplierPageSize, logger)

	// Background schedules: job resumption and cache refresh
	sched := scheduler.New(jobRepo, controller, cacheService, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Initialize worker
	processor := processors.NewCommandProcessor(controller, orchestrator, logger)
	w := worker.New(cfg, processor, logger)

	// Start worker
	logger.Info("Starting worker...")
	go w.Start()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	w.Stop()
}
