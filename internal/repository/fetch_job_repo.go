package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"feedsync/internal/models"
)

// ErrJobAlreadyActive is returned when a second fetch job is attempted while
// one is pending, running or rate-limited. No row is created.
var ErrJobAlreadyActive = errors.New("another fetch job is already active")

// FetchJobRepository persists fetch jobs and enforces the single-active-job
// invariant plus the status transition table at the storage boundary.
type FetchJobRepository struct {
	db *gorm.DB
}

func NewFetchJobRepository(db *gorm.DB) *FetchJobRepository {
	return &FetchJobRepository{db: db}
}

// Create inserts a new pending job, failing with ErrJobAlreadyActive when
// another job is still active. Check and insert share one transaction.
func (r *FetchJobRepository) Create(ctx context.Context, categories []models.Category, triggeredBy string, maxRetries int) (*models.FetchJob, error) {
	job := &models.FetchJob{
		Status:      models.JobPending,
		Categories:  categories,
		TriggeredBy: triggeredBy,
		MaxRetries:  maxRetries,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		err := tx.Model(&models.FetchJob{}).
			Where("status IN ?", []models.FetchJobStatus{models.JobPending, models.JobRunning, models.JobRateLimited}).
			Count(&active).Error
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrJobAlreadyActive
		}
		return tx.Create(job).Error
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Get loads one job by id.
func (r *FetchJobRepository) Get(ctx context.Context, id string) (*models.FetchJob, error) {
	var job models.FetchJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// Active returns the single active job, or nil when none is active.
func (r *FetchJobRepository) Active(ctx context.Context) (*models.FetchJob, error) {
	var job models.FetchJob
	err := r.db.WithContext(ctx).
		Where("status IN ?", []models.FetchJobStatus{models.JobPending, models.JobRunning, models.JobRateLimited}).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns recent jobs, newest first.
func (r *FetchJobRepository) List(ctx context.Context, limit int) ([]models.FetchJob, error) {
	if limit <= 0 {
		limit = 20
	}
	var jobs []models.FetchJob
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// ResumableJobs returns rate-limited jobs whose retry-after has passed.
func (r *FetchJobRepository) ResumableJobs(ctx context.Context, now time.Time) ([]models.FetchJob, error) {
	var jobs []models.FetchJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND (retry_after IS NULL OR retry_after <= ?)", models.JobRateLimited, now).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Transition moves a job to a new status, rejecting anything outside the
// transition table. Extra updates are applied in the same write.
func (r *FetchJobRepository) Transition(ctx context.Context, job *models.FetchJob, to models.FetchJobStatus, updates map[string]interface{}) error {
	if !models.CanTransition(job.Status, to) {
		return models.ErrIllegalTransition(job.Status, to)
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	if err := r.db.WithContext(ctx).Model(job).Updates(updates).Error; err != nil {
		return err
	}
	job.Status = to
	return nil
}

// SaveProgress persists counters and the resume cursor without touching
// status, so a concurrent cancel request is never overwritten.
func (r *FetchJobRepository) SaveProgress(ctx context.Context, job *models.FetchJob) error {
	return r.db.WithContext(ctx).Model(job).Updates(map[string]interface{}{
		"completed_categories": job.CompletedCategories,
		"current_category":     job.CurrentCategory,
		"products_fetched":     job.ProductsFetched,
		"products_created":     job.ProductsCreated,
		"products_updated":     job.ProductsUpdated,
		"products_unchanged":   job.ProductsUnchanged,
	}).Error
}

// RequestCancel flags an active job as cancelled. The controller observes the
// flag cooperatively between categories and page fetches.
func (r *FetchJobRepository) RequestCancel(ctx context.Context, id string) error {
	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return models.ErrIllegalTransition(job.Status, models.JobCancelled)
	}
	now := time.Now()
	return r.Transition(ctx, job, models.JobCancelled, map[string]interface{}{
		"finished_at": now,
	})
}
