package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FetchJobStatus string

const (
	JobPending     FetchJobStatus = "pending"
	JobRunning     FetchJobStatus = "running"
	JobRateLimited FetchJobStatus = "rate_limited"
	JobCompleted   FetchJobStatus = "completed"
	JobFailed      FetchJobStatus = "failed"
	JobCancelled   FetchJobStatus = "cancelled"
)

// Active reports whether the status counts against the single-active-job rule.
func (s FetchJobStatus) Active() bool {
	switch s {
	case JobPending, JobRunning, JobRateLimited:
		return true
	}
	return false
}

// Terminal reports whether a job in this status can never run again.
func (s FetchJobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// jobTransitions is the allowed transition table. Anything not listed here is
// rejected at the boundary instead of silently written.
var jobTransitions = map[FetchJobStatus][]FetchJobStatus{
	JobPending:     {JobRunning, JobCancelled, JobFailed},
	JobRunning:     {JobRateLimited, JobCompleted, JobFailed, JobCancelled},
	JobRateLimited: {JobRunning, JobFailed, JobCancelled},
}

// CanTransition reports whether from -> to is a legal job status change.
func CanTransition(from, to FetchJobStatus) bool {
	for _, next := range jobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrIllegalTransition builds the error reported for a rejected status change.
func ErrIllegalTransition(from, to FetchJobStatus) error {
	return fmt.Errorf("illegal fetch job transition %s -> %s", from, to)
}

// FetchJob is one row per ingestion run. CompletedCategories is the resume
// cursor: categories before it are already fully fetched.
type FetchJob struct {
	ID                  string         `json:"id" gorm:"type:uuid;primary_key"`
	Status              FetchJobStatus `json:"status" gorm:"index;default:pending"`
	Categories          []Category     `json:"categories" gorm:"serializer:json"`
	CompletedCategories int            `json:"completed_categories"`
	CurrentCategory     *Category      `json:"current_category"`

	ProductsFetched   int `json:"products_fetched"`
	ProductsCreated   int `json:"products_created"`
	ProductsUpdated   int `json:"products_updated"`
	ProductsUnchanged int `json:"products_unchanged"`

	RetryCount        int        `json:"retry_count"`
	MaxRetries        int        `json:"max_retries" gorm:"default:5"`
	RetryAfter        *time.Time `json:"retry_after"`
	RateLimitCategory *Category  `json:"rate_limit_category"`

	TriggeredBy  string     `json:"triggered_by"`
	ErrorMessage *string    `json:"error_message"`
	StartedAt    *time.Time `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (j *FetchJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	return nil
}
