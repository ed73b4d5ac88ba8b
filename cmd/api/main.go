package main

import (
	"log"

	"feedsync/internal/api"
	"feedsync/internal/api/handlers"
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
	"feedsync/internal/shopify"
	"feedsync/internal/supplier"
	syncengine "feedsync/internal/sync"
	"feedsync/internal/validation"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
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
	queue := events.NewCommandQueue(cfg.KafkaBrokers, logger)
	defer queue.Close()

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

	// Initialize API server
	server := api.New(cfg, logger, api.Handlers{
		Jobs:       handlers.NewJobHandler(controller, jobRepo, queue, logger),
		Sync:       handlers.NewSyncHandler(orchestrator, syncRepo, queue, logger),
		Products:   handlers.NewProductHandler(db.DB, productRepo, validator, logger),
		PriceRules: handlers.NewPriceRuleHandler(ruleRepo, pricer, logger),
		Cache:      handlers.NewCacheHandler(cacheService, cacheRepo, logger),
	})

	// Start server
	logger.Info("Starting API server on port " + cfg.APIPort)
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
