// Package fetch drives paginated catalog retrieval from the supplier, writing
// results through the product repository while surviving rate limiting and
// transient errors. Jobs are resumable: the completed-category count is the
// cursor, and pages within a category are re-fetched from page 1 on resume,
// which is safe because the upsert is diff-based and idempotent.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"feedsync/internal/logger"
	"feedsync/internal/models"
	"feedsync/internal/repository"
	"feedsync/internal/retry"
	"feedsync/internal/supplier"
)

// ErrControllerBusy is returned when ProcessJob is invoked while another job
// is being processed by this instance. Local safeguard on top of the
// single-active-job invariant in storage.
var ErrControllerBusy = errors.New("fetch controller is already processing a job")

// Notifier receives job lifecycle events. Optional.
type Notifier interface {
	NotifyJobEvent(ctx context.Context, event string, job *models.FetchJob)
}

type Controller struct {
	feed     supplier.Feed
	jobs     *repository.FetchJobRepository
	products *repository.ProductRepository
	retrier  *retry.Executor
	notifier Notifier
	logger   *logger.Logger
	pageSize int

	mu         sync.Mutex
	processing bool
}

func NewController(feed supplier.Feed, jobs *repository.FetchJobRepository, products *repository.ProductRepository, retrier *retry.Executor, notifier Notifier, pageSize int, logger *logger.Logger) *Controller {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Controller{
		feed:     feed,
		jobs:     jobs,
		products: products,
		retrier:  retrier,
		notifier: notifier,
		logger:   logger,
		pageSize: pageSize,
	}
}

// CreateJob registers a new pending job. Fails with
// repository.ErrJobAlreadyActive when another job is still active.
func (c *Controller) CreateJob(ctx context.Context, categories []models.Category, triggeredBy string, maxRetries int) (*models.FetchJob, error) {
	if len(categories) == 0 {
		categories = models.AllCategories()
	}
	for _, cat := range categories {
		if !cat.IsValid() {
			return nil, fmt.Errorf("unknown category %q", cat)
		}
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	job, err := c.jobs.Create(ctx, categories, triggeredBy, maxRetries)
	if err != nil {
		return nil, err
	}
	if c.logger != nil {
		c.logger.Info("Created fetch job %s for categories %v (triggered by %s)", job.ID, categories, triggeredBy)
	}
	return job, nil
}

// ProcessJob runs a pending job to a terminal state or a rate-limit pause.
// A rate-limit pause is not an error: the job is left in rate_limited and a
// later Resume call re-enters the same category.
func (c *Controller) ProcessJob(ctx context.Context, jobID string) error {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return ErrControllerBusy
	}
	c.processing = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.processing = false
		c.mu.Unlock()
	}()

	job, err := c.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}

	switch job.Status {
	case models.JobPending:
		now := time.Now()
		if err := c.jobs.Transition(ctx, job, models.JobRunning, map[string]interface{}{"started_at": now}); err != nil {
			return err
		}
		c.notify(ctx, "job.started", job)
	case models.JobRunning:
		// Crash recovery: re-enter where the cursor points.
	default:
		return fmt.Errorf("job %s is %s, not processable", job.ID, job.Status)
	}

	return c.run(ctx, job)
}

// Resume flips a rate-limited job back to running and re-enters the paused
// category.
func (c *Controller) Resume(ctx context.Context, jobID string) error {
	job, err := c.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.JobRateLimited {
		return fmt.Errorf("job %s is %s, not resumable", job.ID, job.Status)
	}

	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return ErrControllerBusy
	}
	c.processing = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.processing = false
		c.mu.Unlock()
	}()

	err = c.jobs.Transition(ctx, job, models.JobRunning, map[string]interface{}{
		"retry_after":         nil,
		"rate_limit_category": nil,
	})
	if err != nil {
		return err
	}
	c.notify(ctx, "job.resumed", job)
	return c.run(ctx, job)
}

// Cancel requests cooperative cancellation. In-flight page fetches complete;
// the loop observes the flag at the next boundary.
func (c *Controller) Cancel(ctx context.Context, jobID string) error {
	return c.jobs.RequestCancel(ctx, jobID)
}

func (c *Controller) run(ctx context.Context, job *models.FetchJob) error {
	for idx := job.CompletedCategories; idx < len(job.Categories); idx++ {
		category := job.Categories[idx]

		if cancelled, err := c.cancelled(ctx, job.ID); err != nil {
			return err
		} else if cancelled {
			c.logger.Info("Job %s cancelled, stopping before category %s", job.ID, category)
			return nil
		}

		job.CurrentCategory = &category
		if err := c.jobs.SaveProgress(ctx, job); err != nil {
			return err
		}

		stopped, err := c.fetchCategory(ctx, job, category)
		if err != nil {
			if wait, limited := retry.IsRateLimited(err); limited {
				return c.pauseOrFail(ctx, job, category, wait)
			}
			return c.fail(ctx, job, err)
		}
		if stopped {
			return nil
		}

		job.CompletedCategories = idx + 1
		if err := c.jobs.SaveProgress(ctx, job); err != nil {
			return err
		}
	}

	now := time.Now()
	err := c.jobs.Transition(ctx, job, models.JobCompleted, map[string]interface{}{
		"finished_at":      now,
		"current_category": nil,
	})
	if err != nil {
		return err
	}
	c.notify(ctx, "job.completed", job)
	c.logger.Info("Job %s completed: %d fetched, %d created, %d updated, %d unchanged",
		job.ID, job.ProductsFetched, job.ProductsCreated, job.ProductsUpdated, job.ProductsUnchanged)
	return nil
}

// fetchCategory loops pages until the supplier signals no more, returning
// stopped=true when the job was cancelled mid-category. Pagination state is
// not persisted: a resume re-fetches the category from page 1.
func (c *Controller) fetchCategory(ctx context.Context, job *models.FetchJob, category models.Category) (stopped bool, err error) {
	for page := 1; ; page++ {
		if cancelled, err := c.cancelled(ctx, job.ID); err != nil {
			return false, err
		} else if cancelled {
			c.logger.Info("Job %s cancelled, stopping at category %s page %d", job.ID, category, page)
			return true, nil
		}

		var result *supplier.Page
		err = c.retrier.DoWith(ctx, fmt.Sprintf("supplier fetch %s page %d", category, page), func() error {
			var fetchErr error
			result, fetchErr = c.feed.FetchPage(ctx, category, page, c.pageSize)
			return fetchErr
		}, func(err error) bool {
			// Rate limiting pauses the job instead of burning retries here.
			if _, limited := retry.IsRateLimited(err); limited {
				return false
			}
			return retry.IsRetryable(err)
		})
		if err != nil {
			return false, err
		}

		stats, err := c.products.UpsertMany(ctx, result.Products, job.ID)
		if err != nil {
			return false, err
		}

		job.ProductsFetched += len(result.Products)
		job.ProductsCreated += stats.Created
		job.ProductsUpdated += stats.Updated
		job.ProductsUnchanged += stats.Unchanged
		if err := c.jobs.SaveProgress(ctx, job); err != nil {
			return false, err
		}

		if !result.HasMore {
			return false, nil
		}
	}
}

// pauseOrFail handles a supplier 429: pause in rate_limited while retries
// remain, fail terminally once they are exhausted.
func (c *Controller) pauseOrFail(ctx context.Context, job *models.FetchJob, category models.Category, wait time.Duration) error {
	job.RetryCount++
	if job.RetryCount > job.MaxRetries {
		return c.fail(ctx, job, fmt.Errorf("rate limit retries exhausted (%d/%d)", job.RetryCount-1, job.MaxRetries))
	}

	retryAfter := time.Now().Add(wait)
	err := c.jobs.Transition(ctx, job, models.JobRateLimited, map[string]interface{}{
		"retry_count":         job.RetryCount,
		"retry_after":         retryAfter,
		"rate_limit_category": category,
	})
	if err != nil {
		return err
	}
	c.notify(ctx, "job.rate_limited", job)
	c.logger.Warn("Job %s rate limited on category %s, retry %d/%d after %s",
		job.ID, category, job.RetryCount, job.MaxRetries, wait)
	return nil
}

func (c *Controller) fail(ctx context.Context, job *models.FetchJob, cause error) error {
	now := time.Now()
	msg := cause.Error()
	transitionErr := c.jobs.Transition(ctx, job, models.JobFailed, map[string]interface{}{
		"error_message": msg,
		"finished_at":   now,
	})
	if transitionErr != nil {
		return transitionErr
	}
	c.notify(ctx, "job.failed", job)
	c.logger.Error("Job %s failed: %v", job.ID, cause)
	return cause
}

// cancelled re-reads the job row and reports whether an external cancel
// request landed.
func (c *Controller) cancelled(ctx context.Context, jobID string) (bool, error) {
	current, err := c.jobs.Get(ctx, jobID)
	if err != nil {
		return false, err
	}
	return current.Status == models.JobCancelled, nil
}

func (c *Controller) notify(ctx context.Context, event string, job *models.FetchJob) {
	if c.notifier != nil {
		c.notifier.NotifyJobEvent(ctx, event, job)
	}
}
