package supplier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsync/internal/models"
)

func TestNormalizeCanonicalFields(t *testing.T) {
	raw := map[string]interface{}{
		"sku":    "ABC-123",
		"title":  " Michelin 205/55R16 ",
		"brand":  "Michelin",
		"price":  1234.56,
		"stock":  float64(7),
		"images": []interface{}{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"},
	}

	product, err := Normalize(models.CategoryTire, raw)
	require.NoError(t, err)

	assert.Equal(t, "ABC-123", product.SupplierSKU)
	assert.Equal(t, "Michelin 205/55R16", product.Title)
	require.NotNil(t, product.Brand)
	assert.Equal(t, "Michelin", *product.Brand)
	// Major units in, minor units stored.
	assert.Equal(t, int64(123456), product.Price)
	assert.Equal(t, 7, product.Stock)
	assert.Len(t, product.Images, 2)
	assert.Equal(t, raw, product.Raw)
}

func TestNormalizeTurkishAliases(t *testing.T) {
	raw := map[string]interface{}{
		"stok_kodu": "TRK-9",
		"urun_adi":  "Lassa 195/65R15",
		"marka":     "Lassa",
		"fiyat":     "899,90",
		"stok":      "12",
		"resim":     "https://cdn.example.com/t.jpg",
	}

	product, err := Normalize(models.CategoryTire, raw)
	require.NoError(t, err)

	assert.Equal(t, "TRK-9", product.SupplierSKU)
	assert.Equal(t, "Lassa 195/65R15", product.Title)
	// Comma decimal separator.
	assert.Equal(t, int64(89990), product.Price)
	assert.Equal(t, 12, product.Stock)
	assert.Equal(t, []string{"https://cdn.example.com/t.jpg"}, product.Images)
}

func TestNormalizeAliasPrecedence(t *testing.T) {
	// Both price keys present: the earlier alias wins.
	raw := map[string]interface{}{
		"sku":        "P-1",
		"title":      "Akü",
		"price":      100.0,
		"list_price": 200.0,
	}

	product, err := Normalize(models.CategoryBattery, raw)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), product.Price)
}

func TestNormalizeNumericSKU(t *testing.T) {
	raw := map[string]interface{}{
		"id":    float64(998877),
		"title": "Jant 7x16",
	}

	product, err := Normalize(models.CategoryRim, raw)
	require.NoError(t, err)
	assert.Equal(t, "998877", product.SupplierSKU)
}

func TestNormalizeRejectsIncompleteRows(t *testing.T) {
	_, err := Normalize(models.CategoryTire, map[string]interface{}{"title": "no sku here"})
	assert.Error(t, err)

	_, err = Normalize(models.CategoryTire, map[string]interface{}{"sku": "X-1"})
	assert.Error(t, err)
}

func TestNormalizeRoundsFractionalCents(t *testing.T) {
	raw := map[string]interface{}{
		"sku":   "R-1",
		"title": "Lastik",
		"price": 99.999,
	}

	product, err := Normalize(models.CategoryTire, raw)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), product.Price)
}
