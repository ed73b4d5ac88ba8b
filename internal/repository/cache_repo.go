package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"feedsync/internal/models"
)

// CacheRepository persists the time-boxed supplier catalog snapshot used by
// preview paths. Independent of SupplierProduct rows.
type CacheRepository struct {
	db *gorm.DB
}

func NewCacheRepository(db *gorm.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Metadata returns the freshness record for a category, creating an idle one
// on first use.
func (r *CacheRepository) Metadata(ctx context.Context, category models.Category) (*models.CacheMetadata, error) {
	var meta models.CacheMetadata
	err := r.db.WithContext(ctx).Where("category = ?", category).First(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		meta = models.CacheMetadata{Category: category, Status: models.CacheIdle}
		if err := r.db.WithContext(ctx).Create(&meta).Error; err != nil {
			return nil, err
		}
		return &meta, nil
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// SetStatus moves the category snapshot through its refresh lifecycle.
func (r *CacheRepository) SetStatus(ctx context.Context, category models.Category, status models.CacheStatus, errorMessage *string) error {
	meta, err := r.Metadata(ctx, category)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"status":        status,
		"error_message": errorMessage,
	}
	return r.db.WithContext(ctx).Model(meta).Updates(updates).Error
}

// Replace swaps the whole snapshot for one category and stamps the metadata.
func (r *CacheRepository) Replace(ctx context.Context, category models.Category, entries []models.CacheEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.CacheEntry{}, "category = ?", category).Error; err != nil {
			return err
		}
		for i := range entries {
			entries[i].Category = category
			if err := tx.Create(&entries[i]).Error; err != nil {
				return err
			}
		}

		now := time.Now()
		var meta models.CacheMetadata
		err := tx.Where("category = ?", category).First(&meta).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			meta = models.CacheMetadata{Category: category}
			if err := tx.Create(&meta).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		return tx.Model(&meta).Updates(map[string]interface{}{
			"status":        models.CacheIdle,
			"last_fetch_at": now,
			"entry_count":   len(entries),
			"error_message": nil,
		}).Error
	})
}

// Entries returns the cached snapshot for a category.
func (r *CacheRepository) Entries(ctx context.Context, category models.Category) ([]models.CacheEntry, error) {
	var entries []models.CacheEntry
	err := r.db.WithContext(ctx).Where("category = ?", category).Order("supplier_sku").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
