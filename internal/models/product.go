package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ValidationStatus string

const (
	ValidationRaw         ValidationStatus = "raw"
	ValidationValid       ValidationStatus = "valid"
	ValidationInvalid     ValidationStatus = "invalid"
	ValidationPublished   ValidationStatus = "published"
	ValidationNeedsUpdate ValidationStatus = "needs_update"
	ValidationInactive    ValidationStatus = "inactive"
)

// SupplierProduct is one row per supplier SKU. Prices are integer minor units.
// SupplierSKU is immutable once created; ValidationStatus only changes through
// the validation engine or an explicit manual override.
type SupplierProduct struct {
	ID               string                 `json:"id" gorm:"type:uuid;primary_key"`
	SupplierSKU      string                 `json:"supplier_sku" gorm:"uniqueIndex;not null"`
	Category         Category               `json:"category" gorm:"index;not null"`
	Title            string                 `json:"title" gorm:"not null"`
	Brand            *string                `json:"brand"`
	Segment          *string                `json:"segment"`
	CurrentPrice     int64                  `json:"current_price"`
	CurrentStock     int                    `json:"current_stock"`
	Images           []string               `json:"images" gorm:"serializer:json"`
	RawVendorPayload map[string]interface{} `json:"raw_vendor_payload" gorm:"serializer:json"`
	ValidationStatus ValidationStatus       `json:"validation_status" gorm:"index;default:raw"`
	GeneratedSKU     *string                `json:"generated_sku"`

	// Storefront references, set once the product has been published.
	ShopifyProductID *string `json:"shopify_product_id" gorm:"index"`
	ShopifyVariantID *string `json:"shopify_variant_id"`
	InventoryItemID  *string `json:"inventory_item_id"`

	// Snapshot of the last values pushed to the storefront, used to detect drift.
	LastSyncedPrice *int64 `json:"last_synced_price"`
	LastSyncedStock *int   `json:"last_synced_stock"`

	IsActive    bool      `json:"is_active" gorm:"default:true"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *SupplierProduct) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// Published reports whether the product has ever been created on the storefront.
func (p *SupplierProduct) Published() bool {
	return p.ShopifyProductID != nil && *p.ShopifyProductID != ""
}

// Drifted reports whether price or stock moved since the last storefront sync.
func (p *SupplierProduct) Drifted() bool {
	if p.LastSyncedPrice != nil && *p.LastSyncedPrice != p.CurrentPrice {
		return true
	}
	if p.LastSyncedStock != nil && *p.LastSyncedStock != p.CurrentStock {
		return true
	}
	return false
}

type ChangeType string

const (
	ChangeNew   ChangeType = "new"
	ChangePrice ChangeType = "price"
	ChangeStock ChangeType = "stock"
	ChangeBoth  ChangeType = "both"
)

// ChangeHistoryEntry is an append-only ledger row written by the product
// repository whenever a material price/stock delta is detected. Never updated
// or deleted.
type ChangeHistoryEntry struct {
	ID          string     `json:"id" gorm:"type:uuid;primary_key"`
	SupplierSKU string     `json:"supplier_sku" gorm:"index;not null"`
	ChangeType  ChangeType `json:"change_type" gorm:"not null"`
	OldPrice    *int64     `json:"old_price"`
	NewPrice    *int64     `json:"new_price"`
	OldStock    *int       `json:"old_stock"`
	NewStock    *int       `json:"new_stock"`
	FetchJobID  *string    `json:"fetch_job_id" gorm:"index"`
	RecordedAt  time.Time  `json:"recorded_at"`
}

func (e *ChangeHistoryEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	return nil
}
