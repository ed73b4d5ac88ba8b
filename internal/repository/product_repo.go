package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"feedsync/internal/logger"
	"feedsync/internal/models"
)

// UpsertStats summarizes one batch upsert.
type UpsertStats struct {
	Created   int
	Updated   int
	Unchanged int
	Failed    int
}

// ProductRepository owns persisted supplier products and their change history.
// Upserts are diff-based: a history row is only written when price or stock
// actually moved, so re-ingesting identical data is a no-op.
type ProductRepository struct {
	db     *gorm.DB
	logger *logger.Logger
}

func NewProductRepository(db *gorm.DB, logger *logger.Logger) *ProductRepository {
	return &ProductRepository{db: db, logger: logger}
}

// UpsertMany writes one page of normalized feed rows. Each product is handled
// in its own transaction so concurrent upserts of the same SKU cannot
// interleave partial writes; individual failures are counted, not fatal.
func (r *ProductRepository) UpsertMany(ctx context.Context, products []models.FeedProduct, jobID string) (UpsertStats, error) {
	var stats UpsertStats
	for i := range products {
		outcome, err := r.upsertOne(ctx, &products[i], jobID)
		if err != nil {
			stats.Failed++
			if r.logger != nil {
				r.logger.Error("Failed to upsert product %s: %v", products[i].SupplierSKU, err)
			}
			continue
		}
		switch outcome {
		case models.ChangeNew:
			stats.Created++
		case models.ChangePrice, models.ChangeStock, models.ChangeBoth:
			stats.Updated++
		default:
			stats.Unchanged++
		}
	}
	return stats, nil
}

// upsertOne returns the change type written, or "" for an idempotent no-op.
func (r *ProductRepository) upsertOne(ctx context.Context, in *models.FeedProduct, jobID string) (models.ChangeType, error) {
	var outcome models.ChangeType
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var existing models.SupplierProduct
		err := tx.Where("supplier_sku = ?", in.SupplierSKU).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			product := models.SupplierProduct{
				SupplierSKU:      in.SupplierSKU,
				Category:         in.Category,
				Title:            in.Title,
				Brand:            in.Brand,
				Segment:          in.Segment,
				CurrentPrice:     in.Price,
				CurrentStock:     in.Stock,
				Images:           in.Images,
				RawVendorPayload: in.Raw,
				ValidationStatus: models.ValidationRaw,
				IsActive:         true,
				FirstSeenAt:      now,
				LastSeenAt:       now,
			}
			if err := tx.Create(&product).Error; err != nil {
				return err
			}
			outcome = models.ChangeNew
			return tx.Create(&models.ChangeHistoryEntry{
				SupplierSKU: in.SupplierSKU,
				ChangeType:  models.ChangeNew,
				NewPrice:    &in.Price,
				NewStock:    &in.Stock,
				FetchJobID:  &jobID,
			}).Error
		}
		if err != nil {
			return err
		}

		priceChanged := existing.CurrentPrice != in.Price
		stockChanged := existing.CurrentStock != in.Stock
		if !priceChanged && !stockChanged {
			// No material change; only refresh liveness.
			return tx.Model(&existing).Updates(map[string]interface{}{
				"last_seen_at": now,
				"is_active":    true,
			}).Error
		}

		change := models.ChangeBoth
		if priceChanged && !stockChanged {
			change = models.ChangePrice
		} else if stockChanged && !priceChanged {
			change = models.ChangeStock
		}

		entry := models.ChangeHistoryEntry{
			SupplierSKU: in.SupplierSKU,
			ChangeType:  change,
			OldPrice:    &existing.CurrentPrice,
			NewPrice:    &in.Price,
			OldStock:    &existing.CurrentStock,
			NewStock:    &in.Stock,
			FetchJobID:  &jobID,
		}

		// Data changed, so the product must be re-validated before it can be
		// published again.
		updates := map[string]interface{}{
			"title":              in.Title,
			"brand":              in.Brand,
			"segment":            in.Segment,
			"current_price":      in.Price,
			"current_stock":      in.Stock,
			"images":             in.Images,
			"raw_vendor_payload": in.Raw,
			"validation_status":  models.ValidationRaw,
			"is_active":          true,
			"last_seen_at":       now,
		}
		if err := tx.Model(&existing).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		outcome = change
		return nil
	})
	return outcome, err
}

// ByStatus returns products in the given validation status, optionally scoped
// to one category.
func (r *ProductRepository) ByStatus(ctx context.Context, status models.ValidationStatus, category *models.Category) ([]models.SupplierProduct, error) {
	query := r.db.WithContext(ctx).Where("validation_status = ?", status)
	if category != nil {
		query = query.Where("category = ?", *category)
	}
	var products []models.SupplierProduct
	if err := query.Order("supplier_sku").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// ByCategory returns every product in a category.
func (r *ProductRepository) ByCategory(ctx context.Context, category models.Category) ([]models.SupplierProduct, error) {
	var products []models.SupplierProduct
	err := r.db.WithContext(ctx).Where("category = ?", category).Order("supplier_sku").Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// BySKU looks one product up by its supplier SKU.
func (r *ProductRepository) BySKU(ctx context.Context, supplierSKU string) (*models.SupplierProduct, error) {
	var product models.SupplierProduct
	err := r.db.WithContext(ctx).Where("supplier_sku = ?", supplierSKU).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// History returns the change ledger for one SKU in append order.
func (r *ProductRepository) History(ctx context.Context, supplierSKU string) ([]models.ChangeHistoryEntry, error) {
	var entries []models.ChangeHistoryEntry
	err := r.db.WithContext(ctx).
		Where("supplier_sku = ?", supplierSKU).
		Order("recorded_at, id").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SetValidation updates validation status and generated SKU for one product.
// Only the validation engine and the manual override endpoint call this.
func (r *ProductRepository) SetValidation(ctx context.Context, supplierSKU string, status models.ValidationStatus, generatedSKU *string) error {
	updates := map[string]interface{}{"validation_status": status}
	if generatedSKU != nil {
		updates["generated_sku"] = *generatedSKU
	}
	return r.db.WithContext(ctx).
		Model(&models.SupplierProduct{}).
		Where("supplier_sku = ?", supplierSKU).
		Updates(updates).Error
}

// MarkPublished stores the storefront ids and the synced price/stock snapshot
// after a successful create or update.
func (r *ProductRepository) MarkPublished(ctx context.Context, supplierSKU string, productID, variantID, inventoryItemID *string, syncedPrice int64, syncedStock int) error {
	updates := map[string]interface{}{
		"validation_status": models.ValidationPublished,
		"last_synced_price": syncedPrice,
		"last_synced_stock": syncedStock,
	}
	if productID != nil {
		updates["shopify_product_id"] = *productID
	}
	if variantID != nil {
		updates["shopify_variant_id"] = *variantID
	}
	if inventoryItemID != nil {
		updates["inventory_item_id"] = *inventoryItemID
	}
	return r.db.WithContext(ctx).
		Model(&models.SupplierProduct{}).
		Where("supplier_sku = ?", supplierSKU).
		Updates(updates).Error
}

// MarkDeactivated records that the storefront inventory was zeroed for a
// product that no longer passes validation.
func (r *ProductRepository) MarkDeactivated(ctx context.Context, supplierSKU string) error {
	zero := 0
	return r.db.WithContext(ctx).
		Model(&models.SupplierProduct{}).
		Where("supplier_sku = ?", supplierSKU).
		Updates(map[string]interface{}{
			"validation_status": models.ValidationInactive,
			"last_synced_stock": zero,
		}).Error
}
