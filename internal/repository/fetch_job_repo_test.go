package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsync/internal/models"
)

func TestCreateEnforcesSingleActiveJob(t *testing.T) {
	repo := NewFetchJobRepository(newTestDB(t))
	ctx := context.Background()

	first, err := repo.Create(ctx, models.AllCategories(), "test", 5)
	require.NoError(t, err)

	_, err = repo.Create(ctx, models.AllCategories(), "test", 5)
	assert.ErrorIs(t, err, ErrJobAlreadyActive)

	// A second job is also rejected while the first is running or rate-limited.
	require.NoError(t, repo.Transition(ctx, first, models.JobRunning, nil))
	_, err = repo.Create(ctx, models.AllCategories(), "test", 5)
	assert.ErrorIs(t, err, ErrJobAlreadyActive)

	require.NoError(t, repo.Transition(ctx, first, models.JobRateLimited, nil))
	_, err = repo.Create(ctx, models.AllCategories(), "test", 5)
	assert.ErrorIs(t, err, ErrJobAlreadyActive)

	// Terminal state frees the slot.
	require.NoError(t, repo.Transition(ctx, first, models.JobRunning, nil))
	require.NoError(t, repo.Transition(ctx, first, models.JobCompleted, nil))
	_, err = repo.Create(ctx, models.AllCategories(), "test", 5)
	assert.NoError(t, err)
}

func TestTransitionRejectsIllegalMoves(t *testing.T) {
	repo := NewFetchJobRepository(newTestDB(t))
	ctx := context.Background()

	job, err := repo.Create(ctx, models.AllCategories(), "test", 5)
	require.NoError(t, err)

	// pending -> completed skips running.
	err = repo.Transition(ctx, job, models.JobCompleted, nil)
	assert.Error(t, err)
	assert.Equal(t, models.JobPending, job.Status)

	require.NoError(t, repo.Transition(ctx, job, models.JobRunning, nil))
	require.NoError(t, repo.Transition(ctx, job, models.JobCompleted, nil))

	// Terminal states are final.
	err = repo.Transition(ctx, job, models.JobRunning, nil)
	assert.Error(t, err)
}

func TestSaveProgressDoesNotTouchStatus(t *testing.T) {
	repo := NewFetchJobRepository(newTestDB(t))
	ctx := context.Background()

	job, err := repo.Create(ctx, models.AllCategories(), "test", 5)
	require.NoError(t, err)
	require.NoError(t, repo.Transition(ctx, job, models.JobRunning, nil))

	// A cancel lands while the runner still holds a stale in-memory copy.
	require.NoError(t, repo.RequestCancel(ctx, job.ID))

	job.ProductsFetched = 42
	job.CompletedCategories = 1
	require.NoError(t, repo.SaveProgress(ctx, job))

	current, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCancelled, current.Status)
	assert.Equal(t, 42, current.ProductsFetched)
	assert.Equal(t, 1, current.CompletedCategories)
}

func TestRequestCancelOnTerminalJob(t *testing.T) {
	repo := NewFetchJobRepository(newTestDB(t))
	ctx := context.Background()

	job, err := repo.Create(ctx, models.AllCategories(), "test", 5)
	require.NoError(t, err)
	require.NoError(t, repo.Transition(ctx, job, models.JobRunning, nil))
	require.NoError(t, repo.Transition(ctx, job, models.JobCompleted, nil))

	assert.Error(t, repo.RequestCancel(ctx, job.ID))
}

func TestResumableJobs(t *testing.T) {
	repo := NewFetchJobRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now()

	job, err := repo.Create(ctx, models.AllCategories(), "test", 5)
	require.NoError(t, err)
	require.NoError(t, repo.Transition(ctx, job, models.JobRunning, nil))

	future := now.Add(time.Hour)
	require.NoError(t, repo.Transition(ctx, job, models.JobRateLimited, map[string]interface{}{
		"retry_after": future,
	}))

	// Not yet due.
	due, err := repo.ResumableJobs(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = repo.ResumableJobs(ctx, future.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, job.ID, due[0].ID)
}

func TestActiveReturnsNilWhenNone(t *testing.T) {
	repo := NewFetchJobRepository(newTestDB(t))
	ctx := context.Background()

	active, err := repo.Active(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	job, err := repo.Create(ctx, models.AllCategories(), "test", 5)
	require.NoError(t, err)

	active, err = repo.Active(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, job.ID, active.ID)
}
