package fetch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"feedsync/internal/database"
	"feedsync/internal/logger"
	"feedsync/internal/models"
	"feedsync/internal/repository"
	"feedsync/internal/retry"
	"feedsync/internal/supplier"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

// fakeFeed serves scripted pages per category and can inject failures.
type fakeFeed struct {
	mu    sync.Mutex
	pages map[models.Category][][]models.FeedProduct
	// failures maps "category:page" to a queue of errors returned before
	// success.
	failures map[string][]error
	calls    []string
	// hook, when set, runs after each served page.
	hook func(category models.Category, page int)
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		pages:    map[models.Category][][]models.FeedProduct{},
		failures: map[string][]error{},
	}
}

func (f *fakeFeed) addPage(category models.Category, products ...models.FeedProduct) {
	f.pages[category] = append(f.pages[category], products)
}

func (f *fakeFeed) failOnce(category models.Category, page int, err error) {
	key := fmt.Sprintf("%s:%d", category, page)
	f.failures[key] = append(f.failures[key], err)
}

func (f *fakeFeed) FetchPage(ctx context.Context, category models.Category, page, pageSize int) (*supplier.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := fmt.Sprintf("%s:%d", category, page)
	f.calls = append(f.calls, key)

	if queue := f.failures[key]; len(queue) > 0 {
		err := queue[0]
		f.failures[key] = queue[1:]
		return nil, err
	}

	pages := f.pages[category]
	if page > len(pages) {
		return &supplier.Page{}, nil
	}
	result := &supplier.Page{
		Products: pages[page-1],
		HasMore:  page < len(pages),
	}
	if f.hook != nil {
		f.hook(category, page)
	}
	return result, nil
}

func product(sku string, category models.Category, price int64) models.FeedProduct {
	return models.FeedProduct{
		SupplierSKU: sku,
		Category:    category,
		Title:       "205/55R16 91V",
		Price:       price,
		Stock:       4,
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) NotifyJobEvent(ctx context.Context, event string, job *models.FetchJob) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func newTestController(t *testing.T, feed supplier.Feed) (*Controller, *repository.FetchJobRepository, *repository.ProductRepository, *recordingNotifier) {
	t.Helper()
	db := newTestDB(t)
	log := logger.New("error")
	jobs := repository.NewFetchJobRepository(db)
	products := repository.NewProductRepository(db, log)
	retrier := retry.NewExecutor(retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}, log)
	notifier := &recordingNotifier{}
	return NewController(feed, jobs, products, retrier, notifier, 10, log), jobs, products, notifier
}

func TestProcessJobCompletes(t *testing.T) {
	feed := newFakeFeed()
	feed.addPage(models.CategoryTire, product("T-1", models.CategoryTire, 100), product("T-2", models.CategoryTire, 200))
	feed.addPage(models.CategoryTire, product("T-3", models.CategoryTire, 300))
	feed.addPage(models.CategoryRim, product("R-1", models.CategoryRim, 400))

	controller, jobs, _, notifier := newTestController(t, feed)
	ctx := context.Background()

	job, err := controller.CreateJob(ctx, []models.Category{models.CategoryTire, models.CategoryRim}, "test", 3)
	require.NoError(t, err)

	require.NoError(t, controller.ProcessJob(ctx, job.ID))

	final, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, final.Status)
	assert.Equal(t, 4, final.ProductsFetched)
	assert.Equal(t, 4, final.ProductsCreated)
	assert.Equal(t, 2, final.CompletedCategories)
	assert.NotNil(t, final.FinishedAt)
	assert.Contains(t, notifier.events, "job.started")
	assert.Contains(t, notifier.events, "job.completed")
}

func TestProcessJobRetriesTransientErrors(t *testing.T) {
	feed := newFakeFeed()
	feed.addPage(models.CategoryTire, product("T-1", models.CategoryTire, 100))
	feed.failOnce(models.CategoryTire, 1, &retry.RemoteError{StatusCode: 503, Body: "unavailable"})

	controller, jobs, _, _ := newTestController(t, feed)
	ctx := context.Background()

	job, err := controller.CreateJob(ctx, []models.Category{models.CategoryTire}, "test", 3)
	require.NoError(t, err)
	require.NoError(t, controller.ProcessJob(ctx, job.ID))

	final, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, final.Status)
	assert.Equal(t, 1, final.ProductsFetched)
}

func TestProcessJobPausesOnRateLimitAndResumes(t *testing.T) {
	feed := newFakeFeed()
	feed.addPage(models.CategoryTire, product("T-1", models.CategoryTire, 100))
	feed.addPage(models.CategoryRim, product("R-1", models.CategoryRim, 200))
	feed.addPage(models.CategoryBattery, product("B-1", models.CategoryBattery, 300))
	feed.failOnce(models.CategoryRim, 1, &retry.RateLimitedError{RetryAfter: 30 * time.Second})

	controller, jobs, products, notifier := newTestController(t, feed)
	ctx := context.Background()

	job, err := controller.CreateJob(ctx, models.AllCategories(), "test", 3)
	require.NoError(t, err)

	// The run stops without error, leaving the job paused on the second
	// category with the first already committed.
	require.NoError(t, controller.ProcessJob(ctx, job.ID))

	paused, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobRateLimited, paused.Status)
	assert.Equal(t, 1, paused.CompletedCategories)
	assert.Equal(t, 1, paused.RetryCount)
	require.NotNil(t, paused.RetryAfter)
	assert.True(t, paused.RetryAfter.After(time.Now()))
	require.NotNil(t, paused.RateLimitCategory)
	assert.Equal(t, models.CategoryRim, *paused.RateLimitCategory)
	assert.Contains(t, notifier.events, "job.rate_limited")

	// Resume re-enters the rim category and finishes the rest.
	require.NoError(t, controller.Resume(ctx, job.ID))

	final, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, final.Status)
	assert.Equal(t, 3, final.CompletedCategories)
	assert.Nil(t, final.RetryAfter)
	assert.Contains(t, notifier.events, "job.resumed")

	for _, sku := range []string{"T-1", "R-1", "B-1"} {
		_, err := products.BySKU(ctx, sku)
		assert.NoError(t, err, "product %s should be stored", sku)
	}
}

func TestProcessJobFailsWhenRetriesExhausted(t *testing.T) {
	feed := newFakeFeed()
	feed.addPage(models.CategoryTire, product("T-1", models.CategoryTire, 100))
	for i := 0; i < 10; i++ {
		feed.failOnce(models.CategoryTire, 1, &retry.RateLimitedError{})
	}

	controller, jobs, _, notifier := newTestController(t, feed)
	ctx := context.Background()

	job, err := controller.CreateJob(ctx, []models.Category{models.CategoryTire}, "test", 2)
	require.NoError(t, err)

	// Each run pauses once; the pause that exceeds MaxRetries fails the job.
	require.NoError(t, controller.ProcessJob(ctx, job.ID))
	require.NoError(t, controller.Resume(ctx, job.ID))
	err = controller.Resume(ctx, job.ID)
	require.Error(t, err)

	final, jerr := jobs.Get(ctx, job.ID)
	require.NoError(t, jerr)
	assert.Equal(t, models.JobFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "retries exhausted")
	assert.Contains(t, notifier.events, "job.failed")
}

func TestCancelStopsBetweenCategories(t *testing.T) {
	feed := newFakeFeed()
	feed.addPage(models.CategoryTire, product("T-1", models.CategoryTire, 100))
	feed.addPage(models.CategoryRim, product("R-1", models.CategoryRim, 200))

	controller, jobs, _, _ := newTestController(t, feed)
	ctx := context.Background()

	job, err := controller.CreateJob(ctx, []models.Category{models.CategoryTire, models.CategoryRim}, "test", 3)
	require.NoError(t, err)

	// The cancel lands while the tire page is being served; the loop observes
	// it at the next boundary and never starts the rim category.
	feed.hook = func(category models.Category, page int) {
		require.NoError(t, controller.Cancel(ctx, job.ID))
	}

	require.NoError(t, controller.ProcessJob(ctx, job.ID))

	final, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCancelled, final.Status)
	assert.Equal(t, 1, final.ProductsFetched)
	assert.Equal(t, []string{"tire:1"}, feed.calls)
}

func TestCreateJobRejectsUnknownCategory(t *testing.T) {
	controller, _, _, _ := newTestController(t, newFakeFeed())

	_, err := controller.CreateJob(context.Background(), []models.Category{"boat"}, "test", 3)
	assert.Error(t, err)
}

func TestCreateJobRejectsConcurrentJob(t *testing.T) {
	controller, _, _, _ := newTestController(t, newFakeFeed())
	ctx := context.Background()

	_, err := controller.CreateJob(ctx, nil, "test", 3)
	require.NoError(t, err)

	_, err = controller.CreateJob(ctx, nil, "test", 3)
	assert.ErrorIs(t, err, repository.ErrJobAlreadyActive)
}
