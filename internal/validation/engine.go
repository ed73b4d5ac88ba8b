// Package validation classifies stored supplier products into
// publish-readiness states. Classification is derived wholesale from current
// data plus the last-synced snapshot, so it is idempotent and
// order-independent across products.
package validation

import (
	"context"
	"fmt"
	"strings"

	"feedsync/internal/logger"
	"feedsync/internal/models"
	"feedsync/internal/repository"
)

// Settings are the configurable quality thresholds.
type Settings struct {
	MinPrice     int64 // minor units
	MinStock     int
	RequireImage bool
	RequireBrand bool
}

// Result is the outcome of validating one product.
type Result struct {
	IsValid       bool     `json:"is_valid"`
	MissingFields []string `json:"missing_fields"`
	Errors        []string `json:"errors"`
	GeneratedSKU  string   `json:"generated_sku"`
}

// Summary aggregates one ValidateAll run.
type Summary struct {
	Total       int `json:"total"`
	Valid       int `json:"valid"`
	NeedsUpdate int `json:"needs_update"`
	Published   int `json:"published"`
	Invalid     int `json:"invalid"`
	Inactive    int `json:"inactive"`
}

type Engine struct {
	products *repository.ProductRepository
	settings Settings
	logger   *logger.Logger
}

func NewEngine(products *repository.ProductRepository, settings Settings, logger *logger.Logger) *Engine {
	return &Engine{products: products, settings: settings, logger: logger}
}

var placeholderMarkers = []string{"placeholder", "no-image", "noimage", "no_image", "default.jpg"}

// ValidateProduct runs the quality checks in order: price, stock, image,
// brand. It has no side effects.
func (e *Engine) ValidateProduct(p *models.SupplierProduct) Result {
	res := Result{IsValid: true}

	if p.CurrentPrice <= 0 {
		res.IsValid = false
		res.MissingFields = append(res.MissingFields, "price")
		res.Errors = append(res.Errors, "price is missing")
	} else if p.CurrentPrice < e.settings.MinPrice {
		res.IsValid = false
		res.Errors = append(res.Errors, fmt.Sprintf("price %d below minimum %d", p.CurrentPrice, e.settings.MinPrice))
	}

	if p.CurrentStock < e.settings.MinStock {
		res.IsValid = false
		if p.CurrentStock <= 0 {
			res.MissingFields = append(res.MissingFields, "stock")
		}
		res.Errors = append(res.Errors, fmt.Sprintf("stock %d below minimum %d", p.CurrentStock, e.settings.MinStock))
	}

	if e.settings.RequireImage && !hasUsableImage(p.Images) {
		res.IsValid = false
		res.MissingFields = append(res.MissingFields, "image")
		res.Errors = append(res.Errors, "no non-placeholder image")
	}

	if e.settings.RequireBrand && (p.Brand == nil || strings.TrimSpace(*p.Brand) == "") {
		res.IsValid = false
		res.MissingFields = append(res.MissingFields, "brand")
		res.Errors = append(res.Errors, "brand is missing")
	}

	res.GeneratedSKU = GenerateSKU(p)
	return res
}

func hasUsableImage(images []string) bool {
	for _, img := range images {
		if img == "" {
			continue
		}
		lower := strings.ToLower(img)
		placeholder := false
		for _, marker := range placeholderMarkers {
			if strings.Contains(lower, marker) {
				placeholder = true
				break
			}
		}
		if !placeholder {
			return true
		}
	}
	return false
}

// NextStatus combines validity with prior publish state to derive the next
// validation status.
func NextStatus(p *models.SupplierProduct, valid bool) models.ValidationStatus {
	published := p.Published()
	switch {
	case valid && !published:
		return models.ValidationValid
	case valid && published && p.Drifted():
		return models.ValidationNeedsUpdate
	case valid && published:
		return models.ValidationPublished
	case !valid && published:
		// Was live, now fails checks; downstream must zero its inventory.
		return models.ValidationInactive
	default:
		return models.ValidationInvalid
	}
}

// ValidateAll recomputes the validation status of every stored product
// (optionally scoped to one category) and persists the result.
func (e *Engine) ValidateAll(ctx context.Context, category *models.Category) (Summary, error) {
	var products []models.SupplierProduct
	var err error
	if category != nil {
		products, err = e.products.ByCategory(ctx, *category)
	} else {
		for _, c := range models.AllCategories() {
			var batch []models.SupplierProduct
			batch, err = e.products.ByCategory(ctx, c)
			if err != nil {
				break
			}
			products = append(products, batch...)
		}
	}
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for i := range products {
		p := &products[i]
		res := e.ValidateProduct(p)
		next := NextStatus(p, res.IsValid)

		if err := e.products.SetValidation(ctx, p.SupplierSKU, next, &res.GeneratedSKU); err != nil {
			return summary, fmt.Errorf("failed to persist validation for %s: %w", p.SupplierSKU, err)
		}

		summary.Total++
		switch next {
		case models.ValidationValid:
			summary.Valid++
		case models.ValidationNeedsUpdate:
			summary.NeedsUpdate++
		case models.ValidationPublished:
			summary.Published++
		case models.ValidationInvalid:
			summary.Invalid++
		case models.ValidationInactive:
			summary.Inactive++
		}
	}

	if e.logger != nil {
		e.logger.Info("Validation pass: %d products, %d valid, %d needs_update, %d invalid, %d inactive",
			summary.Total, summary.Valid, summary.NeedsUpdate, summary.Invalid, summary.Inactive)
	}
	return summary, nil
}
