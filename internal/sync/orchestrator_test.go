package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"feedsync/internal/database"
	"feedsync/internal/fetch"
	"feedsync/internal/logger"
	"feedsync/internal/models"
	"feedsync/internal/pricing"
	"feedsync/internal/repository"
	"feedsync/internal/retry"
	"feedsync/internal/shopify"
	"feedsync/internal/supplier"
	"feedsync/internal/validation"
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

// staticFeed serves one fixed page per category.
type staticFeed struct {
	products map[models.Category][]models.FeedProduct
}

func (f *staticFeed) FetchPage(ctx context.Context, category models.Category, page, pageSize int) (*supplier.Page, error) {
	if page > 1 {
		return &supplier.Page{}, nil
	}
	return &supplier.Page{Products: f.products[category]}, nil
}

// fakeStorefront records every call and can fail creates for chosen SKUs.
type fakeStorefront struct {
	mu         stdsync.Mutex
	nextID     int
	created    map[string]*shopify.ProductRefs
	priceCalls map[string]int64
	stockCalls map[string]int
	metafields map[string]int
	failSKUs   map[string]bool
}

func newFakeStorefront() *fakeStorefront {
	return &fakeStorefront{
		created:    map[string]*shopify.ProductRefs{},
		priceCalls: map[string]int64{},
		stockCalls: map[string]int{},
		metafields: map[string]int{},
		failSKUs:   map[string]bool{},
	}
}

func (s *fakeStorefront) FindBySku(ctx context.Context, sku string) (*shopify.ProductRefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created[sku], nil
}

func (s *fakeStorefront) CreateProduct(ctx context.Context, input shopify.CreateProductInput) (*shopify.ProductRefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSKUs[input.SKU] {
		return nil, fmt.Errorf("remote API error: 422 - rejected")
	}
	s.nextID++
	refs := &shopify.ProductRefs{
		ProductID:       fmt.Sprintf("gid://shopify/Product/%d", s.nextID),
		VariantID:       fmt.Sprintf("gid://shopify/ProductVariant/%d", s.nextID),
		InventoryItemID: fmt.Sprintf("gid://shopify/InventoryItem/%d", s.nextID),
	}
	s.created[input.SKU] = refs
	s.priceCalls[refs.VariantID] = input.PriceMinor
	return refs, nil
}

func (s *fakeStorefront) UpdateVariantPrice(ctx context.Context, variantID string, priceMinor int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priceCalls[variantID] = priceMinor
	return nil
}

func (s *fakeStorefront) SetInventory(ctx context.Context, inventoryItemID, locationID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stockCalls[inventoryItemID] = quantity
	return nil
}

func (s *fakeStorefront) SetMetafields(ctx context.Context, ownerID string, entries []shopify.MetafieldInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metafields[ownerID] += len(entries)
	return nil
}

type fixture struct {
	db           *gorm.DB
	orchestrator *Orchestrator
	store        *fakeStorefront
	products     *repository.ProductRepository
	sessions     *repository.SyncRepository
}

func tireRow(i int, withImage bool) models.FeedProduct {
	var images []string
	if withImage {
		images = []string{fmt.Sprintf("https://cdn.example.com/%d.jpg", i)}
	}
	brand := "Michelin"
	return models.FeedProduct{
		SupplierSKU: fmt.Sprintf("TIRE-%03d", i),
		Category:    models.CategoryTire,
		Title:       "Michelin 205/55 R16 91V Yaz",
		Brand:       &brand,
		Price:       100000 + int64(i)*1000,
		Stock:       5,
		Images:      images,
	}
}

func newFixture(t *testing.T, feedRows []models.FeedProduct) *fixture {
	t.Helper()
	db := newTestDB(t)
	log := logger.New("error")

	products := repository.NewProductRepository(db, log)
	jobs := repository.NewFetchJobRepository(db)
	sessions := repository.NewSyncRepository(db)
	retrier := retry.NewExecutor(retry.Policy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, log)

	feed := &staticFeed{products: map[models.Category][]models.FeedProduct{models.CategoryTire: feedRows}}
	controller := fetch.NewController(feed, jobs, products, retrier, nil, 50, log)

	validator := validation.NewEngine(products, validation.Settings{
		MinPrice: 100, MinStock: 1, RequireImage: true, RequireBrand: true,
	}, log)
	store := newFakeStorefront()
	pricer := pricing.NewEngine(pricing.StaticRules{})

	orchestrator := NewOrchestrator(controller, validator, store, pricer,
		products, sessions, nil, "gid://shopify/Location/1", 3, log)

	return &fixture{db: db, orchestrator: orchestrator, store: store, products: products, sessions: sessions}
}

func TestRunSyncFullPipeline(t *testing.T) {
	// Ten tires from the feed: eight publishable, two without images.
	var rows []models.FeedProduct
	for i := 0; i < 10; i++ {
		rows = append(rows, tireRow(i, i >= 2))
	}
	f := newFixture(t, rows)

	result, err := f.orchestrator.RunSync(context.Background(), Config{
		Mode:          models.SyncModeFull,
		Categories:    []models.Category{models.CategoryTire},
		ValidateFirst: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 8, result.Created)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 10, result.Validation.Total)
	assert.Equal(t, 8, result.Validation.Valid)
	assert.Equal(t, 2, result.Validation.Invalid)
	assert.Len(t, f.store.created, 8)

	// Published rows carry the storefront references and the drift snapshot.
	published, err := f.products.ByStatus(context.Background(), models.ValidationPublished, nil)
	require.NoError(t, err)
	require.Len(t, published, 8)
	for _, p := range published {
		assert.True(t, p.Published())
		assert.False(t, p.Drifted())
	}

	// The default markup is on the created variant price.
	sku := published[0].SupplierSKU
	refs := f.store.created[sku]
	require.NotNil(t, refs)
	assert.Equal(t, published[0].CurrentPrice*120/100, f.store.priceCalls[refs.VariantID])
	assert.Equal(t, 5, f.store.stockCalls[refs.InventoryItemID])
	assert.Greater(t, f.store.metafields[refs.ProductID], 0)

	// Session audit trail.
	sessions, err := f.sessions.RecentSessions(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 8, sessions[0].Created)
	assert.NotNil(t, sessions[0].FinishedAt)

	items, err := f.sessions.SessionItems(context.Background(), sessions[0].ID)
	require.NoError(t, err)
	assert.Len(t, items, 8)
}

func TestRunSyncDryRunTouchesNothing(t *testing.T) {
	var rows []models.FeedProduct
	for i := 0; i < 10; i++ {
		rows = append(rows, tireRow(i, i >= 2))
	}
	f := newFixture(t, rows)

	result, err := f.orchestrator.RunSync(context.Background(), Config{
		Mode:          models.SyncModeFull,
		Categories:    []models.Category{models.CategoryTire},
		DryRun:        true,
		ValidateFirst: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 8, result.Skipped)
	assert.Equal(t, 2, result.Validation.Invalid)
	assert.Empty(t, f.store.created)

	// Every candidate still shows up in the audit trail.
	sessions, err := f.sessions.RecentSessions(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].DryRun)
	items, err := f.sessions.SessionItems(context.Background(), sessions[0].ID)
	require.NoError(t, err)
	assert.Len(t, items, 8)
}

func TestRunSyncValidationOnlyStopsBeforePublish(t *testing.T) {
	f := newFixture(t, []models.FeedProduct{tireRow(1, true)})

	// Seed via a full dry run so rows exist.
	_, err := f.orchestrator.RunSync(context.Background(), Config{
		Mode: models.SyncModeFull, DryRun: true, ValidateFirst: true,
		Categories: []models.Category{models.CategoryTire},
	})
	require.NoError(t, err)

	result, err := f.orchestrator.RunSync(context.Background(), Config{
		Mode:       models.SyncModeValidationOnly,
		Categories: []models.Category{models.CategoryTire},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Validation.Valid)
	assert.Equal(t, 0, result.Created)
	assert.Empty(t, f.store.created)
}

func TestRunSyncUpdatesOnlyDriftedFields(t *testing.T) {
	f := newFixture(t, []models.FeedProduct{tireRow(1, true)})
	ctx := context.Background()

	_, err := f.orchestrator.RunSync(ctx, Config{
		Mode: models.SyncModeFull, ValidateFirst: true,
		Categories: []models.Category{models.CategoryTire},
	})
	require.NoError(t, err)

	sku := "TIRE-001"
	refs := f.store.created[sku]
	require.NotNil(t, refs)
	baselineStock := f.store.stockCalls[refs.InventoryItemID]

	// Supplier repriced; stock unchanged.
	row := tireRow(1, true)
	row.Price = 200000
	_, err = f.products.UpsertMany(ctx, []models.FeedProduct{row}, "job-2")
	require.NoError(t, err)

	result, err := f.orchestrator.RunSync(ctx, Config{
		Mode: models.SyncModeIncremental, ValidateFirst: true,
		Categories: []models.Category{models.CategoryTire},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, int64(240000), f.store.priceCalls[refs.VariantID])
	// Stock did not drift, so inventory was not rewritten.
	assert.Equal(t, baselineStock, f.store.stockCalls[refs.InventoryItemID])

	updated, err := f.products.BySKU(ctx, sku)
	require.NoError(t, err)
	assert.Equal(t, models.ValidationPublished, updated.ValidationStatus)
	assert.False(t, updated.Drifted())
}

func TestRunSyncDeactivatesDeadProducts(t *testing.T) {
	f := newFixture(t, []models.FeedProduct{tireRow(1, true)})
	ctx := context.Background()

	_, err := f.orchestrator.RunSync(ctx, Config{
		Mode: models.SyncModeFull, ValidateFirst: true,
		Categories: []models.Category{models.CategoryTire},
	})
	require.NoError(t, err)

	sku := "TIRE-001"
	refs := f.store.created[sku]
	require.NotNil(t, refs)

	// Stock drops to zero: the product fails validation but is live.
	row := tireRow(1, true)
	row.Stock = 0
	_, err = f.products.UpsertMany(ctx, []models.FeedProduct{row}, "job-2")
	require.NoError(t, err)

	result, err := f.orchestrator.RunSync(ctx, Config{
		Mode: models.SyncModeIncremental, ValidateFirst: true,
		Categories: []models.Category{models.CategoryTire},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deactivated)
	assert.Equal(t, 0, f.store.stockCalls[refs.InventoryItemID])

	gone, err := f.products.BySKU(ctx, sku)
	require.NoError(t, err)
	assert.Equal(t, models.ValidationInactive, gone.ValidationStatus)
	assert.Equal(t, 0, *gone.LastSyncedStock)

	// A second pass finds nothing left to deactivate.
	again, err := f.orchestrator.RunSync(ctx, Config{
		Mode: models.SyncModeIncremental, ValidateFirst: true,
		Categories: []models.Category{models.CategoryTire},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Deactivated)
}

func TestRunSyncIsolatesPerProductFailures(t *testing.T) {
	f := newFixture(t, []models.FeedProduct{tireRow(1, true), tireRow(2, true), tireRow(3, true)})
	f.store.failSKUs[generatedSKUFor(t, f, "TIRE-002")] = true
	ctx := context.Background()

	result, err := f.orchestrator.RunSync(ctx, Config{
		Mode: models.SyncModeFull, ValidateFirst: true,
		Categories: []models.Category{models.CategoryTire},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Failed)
	assert.NotEmpty(t, result.Errors)
}

// generatedSKUFor computes the storefront SKU the orchestrator will publish
// under for one supplier row.
func generatedSKUFor(t *testing.T, f *fixture, supplierSKU string) string {
	t.Helper()
	row := tireRow(0, true)
	row.SupplierSKU = supplierSKU
	p := &models.SupplierProduct{
		SupplierSKU: row.SupplierSKU,
		Category:    row.Category,
		Title:       row.Title,
		Brand:       row.Brand,
	}
	return validation.GenerateSKU(p)
}
