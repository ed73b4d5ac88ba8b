package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"feedsync/internal/cache"
	"feedsync/internal/logger"
	"feedsync/internal/models"
	"feedsync/internal/repository"
)

type CacheHandler struct {
	service *cache.Service
	caches  *repository.CacheRepository
	logger  *logger.Logger
}

func NewCacheHandler(service *cache.Service, caches *repository.CacheRepository, logger *logger.Logger) *CacheHandler {
	return &CacheHandler{
		service: service,
		caches:  caches,
		logger:  logger,
	}
}

// Preview serves the cached catalog snapshot for a category. Reads never hit
// the supplier.
func (h *CacheHandler) Preview(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}

	meta, err := h.caches.Metadata(c.Request.Context(), category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read cache metadata"})
		return
	}
	entries, err := h.caches.Entries(c.Request.Context(), category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read cache"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": entries,
		"meta": gin.H{
			"status":        meta.Status,
			"last_fetch_at": meta.LastFetchAt,
			"entry_count":   meta.EntryCount,
			"stale":         meta.Stale(time.Now()),
		},
	})
}

// Refresh triggers a snapshot rebuild in the background.
func (h *CacheHandler) Refresh(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}

	meta, err := h.caches.Metadata(c.Request.Context(), category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read cache metadata"})
		return
	}
	if meta.Status == models.CacheFetching {
		c.JSON(http.StatusConflict, gin.H{"error": "Refresh already in progress"})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := h.service.Refresh(ctx, category); err != nil {
			h.logger.Error("Background cache refresh for %s failed: %v", category, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"category": category, "status": models.CacheFetching}})
}

func (h *CacheHandler) category(c *gin.Context) (models.Category, bool) {
	category := models.Category(c.Param("category"))
	if !category.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown category"})
		return "", false
	}
	return category, true
}
