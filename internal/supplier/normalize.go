package supplier

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"feedsync/internal/models"
)

// Supplier payloads vary widely in field naming, so every logical field is
// resolved through an ordered candidate list. All alias knowledge lives here;
// nothing outside this file inspects raw payload keys.
var (
	skuAliases   = []string{"supplier_sku", "supplierSku", "sku", "product_code", "productCode", "stok_kodu", "stokKodu", "code", "id"}
	titleAliases = []string{"title", "name", "product_name", "productName", "urun_adi", "urunAdi"}
	brandAliases = []string{"brand", "manufacturer", "vendor", "marka"}
	priceAliases = []string{"price", "sale_price", "salePrice", "unit_price", "unitPrice", "list_price", "listPrice", "fiyat", "amount"}
	stockAliases = []string{"stock", "quantity", "qty", "available", "stok", "inventory"}
	imageAliases = []string{"images", "image_urls", "imageUrls", "pictures", "photos", "resimler"}
	singleImageAliases = []string{"image", "image_url", "imageUrl", "resim"}
	segmentAliases     = []string{"segment", "tier", "class"}
)

// Normalize maps one raw supplier row to the canonical feed shape. A row
// without a resolvable SKU or title is rejected.
func Normalize(category models.Category, raw map[string]interface{}) (models.FeedProduct, error) {
	sku, ok := firstString(raw, skuAliases)
	if !ok || sku == "" {
		return models.FeedProduct{}, fmt.Errorf("no supplier SKU in payload")
	}
	title, ok := firstString(raw, titleAliases)
	if !ok || title == "" {
		return models.FeedProduct{}, fmt.Errorf("no title in payload for SKU %s", sku)
	}

	product := models.FeedProduct{
		SupplierSKU: sku,
		Category:    category,
		Title:       strings.TrimSpace(title),
		Raw:         raw,
	}

	if brand, ok := firstString(raw, brandAliases); ok && brand != "" {
		trimmed := strings.TrimSpace(brand)
		product.Brand = &trimmed
	}
	if segment, ok := firstString(raw, segmentAliases); ok && segment != "" {
		trimmed := strings.TrimSpace(segment)
		product.Segment = &trimmed
	}
	if price, ok := firstNumber(raw, priceAliases); ok {
		// Supplier prices arrive in major units; store minor units.
		product.Price = int64(math.Round(price * 100))
	}
	if stock, ok := firstNumber(raw, stockAliases); ok {
		product.Stock = int(stock)
	}
	product.Images = extractImages(raw)

	return product, nil
}

// firstString tries each candidate key in order and returns the first
// non-empty string value.
func firstString(raw map[string]interface{}, candidates []string) (string, bool) {
	for _, key := range candidates {
		value, exists := raw[key]
		if !exists || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case int:
			return strconv.Itoa(v), true
		case int64:
			return strconv.FormatInt(v, 10), true
		}
	}
	return "", false
}

// firstNumber tries each candidate key in order, accepting JSON numbers and
// numeric strings (with either decimal separator).
func firstNumber(raw map[string]interface{}, candidates []string) (float64, bool) {
	for _, key := range candidates {
		value, exists := raw[key]
		if !exists || value == nil {
			continue
		}
		switch v := value.(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case string:
			cleaned := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

func extractImages(raw map[string]interface{}) []string {
	for _, key := range imageAliases {
		value, exists := raw[key]
		if !exists || value == nil {
			continue
		}
		switch v := value.(type) {
		case []interface{}:
			var images []string
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					images = append(images, s)
				}
			}
			if len(images) > 0 {
				return images
			}
		case []string:
			if len(v) > 0 {
				return v
			}
		case string:
			if v != "" {
				return []string{v}
			}
		}
	}
	if single, ok := firstString(raw, singleImageAliases); ok && single != "" {
		return []string{single}
	}
	return nil
}
