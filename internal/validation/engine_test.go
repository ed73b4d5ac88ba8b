package validation

import (
	"context"
	"fmt"
	"testing"

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

func defaultSettings() Settings {
	return Settings{MinPrice: 100, MinStock: 1, RequireImage: true, RequireBrand: true}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func int64Ptr(i int64) *int64 { return &i }

func goodProduct() *models.SupplierProduct {
	return &models.SupplierProduct{
		SupplierSKU:  "SUP-12345678",
		Category:     models.CategoryTire,
		Title:        "Michelin 205/55 R16 91V Yaz",
		Brand:        strPtr("Michelin"),
		CurrentPrice: 250000,
		CurrentStock: 8,
		Images:       []string{"https://cdn.example.com/a.jpg"},
	}
}

func TestValidateProductPasses(t *testing.T) {
	engine := NewEngine(nil, defaultSettings(), logger.New("error"))

	res := engine.ValidateProduct(goodProduct())

	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "MIC-TR-205-55R16-345678", res.GeneratedSKU)
}

func TestValidateProductFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *models.SupplierProduct)
		missing string
	}{
		{"zero price", func(p *models.SupplierProduct) { p.CurrentPrice = 0 }, "price"},
		{"zero stock", func(p *models.SupplierProduct) { p.CurrentStock = 0 }, "stock"},
		{"no image", func(p *models.SupplierProduct) { p.Images = nil }, "image"},
		{"placeholder image", func(p *models.SupplierProduct) { p.Images = []string{"https://cdn.example.com/no-image.png"} }, "image"},
		{"no brand", func(p *models.SupplierProduct) { p.Brand = nil }, "brand"},
	}
	engine := NewEngine(nil, defaultSettings(), logger.New("error"))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := goodProduct()
			tt.mutate(p)
			res := engine.ValidateProduct(p)
			assert.False(t, res.IsValid)
			assert.Contains(t, res.MissingFields, tt.missing)
		})
	}
}

func TestValidateProductBelowMinimumPrice(t *testing.T) {
	engine := NewEngine(nil, Settings{MinPrice: 10000}, logger.New("error"))
	p := goodProduct()
	p.CurrentPrice = 9999

	res := engine.ValidateProduct(p)

	assert.False(t, res.IsValid)
	// Price is present, just too low, so it is not a missing field.
	assert.NotContains(t, res.MissingFields, "price")
}

func TestNextStatusTransitions(t *testing.T) {
	unpublished := goodProduct()

	published := goodProduct()
	published.ShopifyProductID = strPtr("gid://shopify/Product/1")
	published.LastSyncedPrice = int64Ptr(250000)
	published.LastSyncedStock = intPtr(8)

	drifted := goodProduct()
	drifted.ShopifyProductID = strPtr("gid://shopify/Product/1")
	drifted.LastSyncedPrice = int64Ptr(240000)
	drifted.LastSyncedStock = intPtr(8)

	assert.Equal(t, models.ValidationValid, NextStatus(unpublished, true))
	assert.Equal(t, models.ValidationInvalid, NextStatus(unpublished, false))
	assert.Equal(t, models.ValidationPublished, NextStatus(published, true))
	assert.Equal(t, models.ValidationNeedsUpdate, NextStatus(drifted, true))
	assert.Equal(t, models.ValidationInactive, NextStatus(published, false))
}

func TestGenerateSKUFallbacks(t *testing.T) {
	p := &models.SupplierProduct{
		SupplierSKU: "XY1",
		Category:    models.CategoryBattery,
		Title:       "Akü şarj cihazı",
	}
	assert.Equal(t, "UNK-BT-UNK-XY1", GenerateSKU(p))

	p.Title = "Varta 12V 60Ah"
	p.Brand = strPtr("Varta")
	assert.Equal(t, "VAR-BT-60AH-XY1", GenerateSKU(p))
}

func TestGenerateSKURim(t *testing.T) {
	p := &models.SupplierProduct{
		SupplierSKU: "RIM-0099",
		Category:    models.CategoryRim,
		Title:       "OZ 7.5x17 Jant 5x112",
		Brand:       strPtr("OZ Racing"),
	}
	assert.Equal(t, "OZR-RM-7.5X17-M-0099", GenerateSKU(p))
}

func TestValidateAllPersistsStatuses(t *testing.T) {
	db := newTestDB(t)
	log := logger.New("error")
	products := repository.NewProductRepository(db, log)
	engine := NewEngine(products, defaultSettings(), log)

	good := goodProduct()
	require.NoError(t, db.Create(good).Error)

	bad := goodProduct()
	bad.SupplierSKU = "SUP-BAD"
	bad.Images = nil
	require.NoError(t, db.Create(bad).Error)

	inactive := goodProduct()
	inactive.SupplierSKU = "SUP-GONE"
	inactive.CurrentStock = 0
	inactive.ShopifyProductID = strPtr("gid://shopify/Product/9")
	require.NoError(t, db.Create(inactive).Error)

	summary, err := engine.ValidateAll(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Valid)
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, 1, summary.Inactive)

	stored, err := products.BySKU(context.Background(), good.SupplierSKU)
	require.NoError(t, err)
	assert.Equal(t, models.ValidationValid, stored.ValidationStatus)
	require.NotNil(t, stored.GeneratedSKU)
	assert.NotEmpty(t, *stored.GeneratedSKU)
}

func TestValidateAllIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	log := logger.New("error")
	products := repository.NewProductRepository(db, log)
	engine := NewEngine(products, defaultSettings(), log)

	require.NoError(t, db.Create(goodProduct()).Error)

	first, err := engine.ValidateAll(context.Background(), nil)
	require.NoError(t, err)
	second, err := engine.ValidateAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
