package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CacheStatus string

const (
	CacheIdle        CacheStatus = "idle"
	CacheFetching    CacheStatus = "fetching"
	CacheError       CacheStatus = "error"
	CacheRateLimited CacheStatus = "rate_limited"
)

// CacheEntry is a denormalized snapshot of one supplier catalog row, kept per
// category for preview paths so they do not hit the supplier on every read.
// Independent of SupplierProduct.
type CacheEntry struct {
	ID          string                 `json:"id" gorm:"type:uuid;primary_key"`
	Category    Category               `json:"category" gorm:"index;not null"`
	SupplierSKU string                 `json:"supplier_sku" gorm:"index"`
	Title       string                 `json:"title"`
	Brand       *string                `json:"brand"`
	Price       int64                  `json:"price"`
	Stock       int                    `json:"stock"`
	Payload     map[string]interface{} `json:"payload" gorm:"serializer:json"`
	CreatedAt   time.Time              `json:"created_at"`
}

func (e *CacheEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// CacheMetadata tracks snapshot freshness and refresh state per category.
type CacheMetadata struct {
	ID                   string      `json:"id" gorm:"type:uuid;primary_key"`
	Category             Category    `json:"category" gorm:"uniqueIndex;not null"`
	Status               CacheStatus `json:"status" gorm:"default:idle"`
	LastFetchAt          *time.Time  `json:"last_fetch_at"`
	RefreshIntervalHours int         `json:"refresh_interval_hours" gorm:"default:24"`
	EntryCount           int         `json:"entry_count"`
	ErrorMessage         *string     `json:"error_message"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

func (m *CacheMetadata) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// Stale reports whether the snapshot is older than its refresh interval.
func (m *CacheMetadata) Stale(now time.Time) bool {
	if m.LastFetchAt == nil {
		return true
	}
	return now.Sub(*m.LastFetchAt) >= time.Duration(m.RefreshIntervalHours)*time.Hour
}
