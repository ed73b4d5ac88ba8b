package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"feedsync/internal/events"
	"feedsync/internal/fetch"
	"feedsync/internal/logger"
	"feedsync/internal/models"
	"feedsync/internal/repository"
)

type JobHandler struct {
	controller *fetch.Controller
	jobs       *repository.FetchJobRepository
	queue      *events.CommandQueue
	logger     *logger.Logger
}

func NewJobHandler(controller *fetch.Controller, jobs *repository.FetchJobRepository, queue *events.CommandQueue, logger *logger.Logger) *JobHandler {
	return &JobHandler{
		controller: controller,
		jobs:       jobs,
		queue:      queue,
		logger:     logger,
	}
}

type createJobRequest struct {
	Categories  []models.Category `json:"categories"`
	TriggeredBy string            `json:"triggered_by"`
	MaxRetries  int               `json:"max_retries"`
}

// Create registers a fetch job and hands it to the worker. Responds 409 when
// another job is already active.
func (h *JobHandler) Create(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = "api"
	}

	job, err := h.controller.CreateJob(c.Request.Context(), req.Categories, req.TriggeredBy, req.MaxRetries)
	if err != nil {
		if errors.Is(err, repository.ErrJobAlreadyActive) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.queue.EnqueueFetch(c.Request.Context(), job.ID); err != nil {
		h.logger.Error("Failed to enqueue fetch for job %s: %v", job.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Job created but could not be queued", "data": job})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": job})
}

func (h *JobHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	jobs, err := h.jobs.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": jobs})
}

func (h *JobHandler) Get(c *gin.Context) {
	id := c.Param("id")

	job, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch job"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": job})
}

// Cancel requests cooperative cancellation; the running loop observes it at
// the next page or category boundary.
func (h *JobHandler) Cancel(c *gin.Context) {
	id := c.Param("id")

	if err := h.controller.Cancel(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"id": id, "status": models.JobCancelled}})
}

// Resume queues an immediate resume of a rate-limited job instead of waiting
// for the scheduler's next pass.
func (h *JobHandler) Resume(c *gin.Context) {
	id := c.Param("id")

	job, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch job"})
		return
	}
	if job.Status != models.JobRateLimited {
		c.JSON(http.StatusConflict, gin.H{"error": "Only rate-limited jobs can be resumed"})
		return
	}

	if err := h.queue.EnqueueResume(c.Request.Context(), id); err != nil {
		h.logger.Error("Failed to enqueue resume for job %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue resume"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": job})
}
