package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"feedsync/internal/events"
	"feedsync/internal/fetch"
	"feedsync/internal/logger"
	"feedsync/internal/models"
	"feedsync/internal/repository"
	syncengine "feedsync/internal/sync"
)

type SyncHandler struct {
	orchestrator *syncengine.Orchestrator
	sessions     *repository.SyncRepository
	queue        *events.CommandQueue
	logger       *logger.Logger
}

func NewSyncHandler(orchestrator *syncengine.Orchestrator, sessions *repository.SyncRepository, queue *events.CommandQueue, logger *logger.Logger) *SyncHandler {
	return &SyncHandler{
		orchestrator: orchestrator,
		sessions:     sessions,
		queue:        queue,
		logger:       logger,
	}
}

type runSyncRequest struct {
	Mode          models.SyncMode   `json:"mode"`
	Categories    []models.Category `json:"categories"`
	DryRun        bool              `json:"dry_run"`
	ValidateFirst *bool             `json:"validate_first"`
	Async         bool              `json:"async"`
}

// Run starts a sync. Async requests are queued for the worker and answered
// with 202; synchronous requests block until the run finishes.
func (h *SyncHandler) Run(c *gin.Context) {
	var req runSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	validateFirst := true
	if req.ValidateFirst != nil {
		validateFirst = *req.ValidateFirst
	}

	if req.Async {
		data := map[string]interface{}{
			"mode":           req.Mode,
			"categories":     req.Categories,
			"dry_run":        req.DryRun,
			"validate_first": validateFirst,
		}
		if err := h.queue.EnqueueSync(c.Request.Context(), uuid.New().String(), data); err != nil {
			h.logger.Error("Failed to enqueue sync: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue sync"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"queued": true}})
		return
	}

	result, err := h.orchestrator.RunSync(c.Request.Context(), syncengine.Config{
		Mode:          req.Mode,
		Categories:    req.Categories,
		DryRun:        req.DryRun,
		ValidateFirst: validateFirst,
		TriggeredBy:   "api",
	})
	if err != nil {
		if errors.Is(err, repository.ErrJobAlreadyActive) || errors.Is(err, fetch.ErrControllerBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *SyncHandler) Sessions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	sessions, err := h.sessions.RecentSessions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sessions})
}

func (h *SyncHandler) SessionItems(c *gin.Context) {
	id := c.Param("id")

	items, err := h.sessions.SessionItems(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch session items"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}
