// Package scheduler runs the recurring background work: resuming rate-limited
// fetch jobs once their wait has passed, and refreshing stale catalog caches.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"feedsync/internal/cache"
	"feedsync/internal/fetch"
	"feedsync/internal/logger"
	"feedsync/internal/repository"
)

type Scheduler struct {
	cron       *cron.Cron
	jobs       *repository.FetchJobRepository
	controller *fetch.Controller
	cache      *cache.Service
	logger     *logger.Logger
}

func New(jobs *repository.FetchJobRepository, controller *fetch.Controller, cacheService *cache.Service, logger *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		jobs:       jobs,
		controller: controller,
		cache:      cacheService,
		logger:     logger,
	}
}

// Start registers the recurring entries and starts the cron loop in its own
// goroutine.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every 30s", s.resumeRateLimitedJobs); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@hourly", s.refreshStaleCaches); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// resumeRateLimitedJobs picks up paused jobs whose retry-after has passed.
// There is at most one, but the query is written defensively against drift.
func (s *Scheduler) resumeRateLimitedJobs() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	resumable, err := s.jobs.ResumableJobs(ctx, time.Now())
	if err != nil {
		s.logger.Error("Failed to query resumable jobs: %v", err)
		return
	}
	for i := range resumable {
		job := &resumable[i]
		s.logger.Info("Resuming rate-limited job %s (retry %d/%d)", job.ID, job.RetryCount, job.MaxRetries)
		if err := s.controller.Resume(ctx, job.ID); err != nil {
			if errors.Is(err, fetch.ErrControllerBusy) {
				return
			}
			s.logger.Error("Failed to resume job %s: %v", job.ID, err)
		}
	}
}

func (s *Scheduler) refreshStaleCaches() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	s.cache.RefreshStale(ctx)
}
