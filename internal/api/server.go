package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"feedsync/internal/api/handlers"
	"feedsync/internal/api/middleware"
	"feedsync/internal/config"
	"feedsync/internal/logger"
)

// Handlers bundles the route handlers the server mounts.
type Handlers struct {
	Jobs       *handlers.JobHandler
	Sync       *handlers.SyncHandler
	Products   *handlers.ProductHandler
	PriceRules *handlers.PriceRuleHandler
	Cache      *handlers.CacheHandler
}

type Server struct {
	config *config.Config
	logger *logger.Logger
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, h Handlers) *Server {
	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Routes
	v1 := router.Group("/api/v1")
	{
		// Fetch jobs
		jobs := v1.Group("/jobs")
		{
			jobs.GET("", h.Jobs.List)
			jobs.GET("/:id", h.Jobs.Get)
			jobs.POST("", h.Jobs.Create)
			jobs.POST("/:id/cancel", h.Jobs.Cancel)
			jobs.POST("/:id/resume", h.Jobs.Resume)
		}

		// Sync runs
		sync := v1.Group("/sync")
		{
			sync.POST("", h.Sync.Run)
			sync.GET("/sessions", h.Sync.Sessions)
			sync.GET("/sessions/:id/items", h.Sync.SessionItems)
		}

		// Supplier products
		products := v1.Group("/products")
		{
			products.GET("", h.Products.List)
			products.POST("/validate", h.Products.Validate)
			products.GET("/:sku", h.Products.Get)
			products.GET("/:sku/history", h.Products.History)
			products.PUT("/:sku/validation", h.Products.Override)
		}

		// Pricing
		rules := v1.Group("/price-rules")
		{
			rules.GET("", h.PriceRules.List)
			rules.POST("", h.PriceRules.Create)
			rules.PUT("/:id", h.PriceRules.Update)
			rules.DELETE("/:id", h.PriceRules.Delete)
		}
		v1.POST("/pricing/quote", h.PriceRules.Quote)

		// Catalog cache
		cache := v1.Group("/cache")
		{
			cache.GET("/:category", h.Cache.Preview)
			cache.POST("/:category/refresh", h.Cache.Refresh)
		}
	}

	return &Server{
		config: cfg,
		logger: logger,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      cors.Default().Handler(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

// Router exposes the Gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
