package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MatchField string

const (
	MatchBrand   MatchField = "brand"
	MatchSegment MatchField = "segment"
	MatchAll     MatchField = "all"
)

// PriceRule maps a supplier price to a sell price for one category. Rules are
// evaluated in ascending priority; the first match wins. Ties on priority are
// broken by rule id ascending so evaluation order never depends on storage
// order.
type PriceRule struct {
	ID               string     `json:"id" gorm:"type:uuid;primary_key"`
	Category         Category   `json:"category" gorm:"index;not null"`
	MatchField       MatchField `json:"match_field" gorm:"not null"`
	MatchValue       string     `json:"match_value"`
	PercentageMarkup float64    `json:"percentage_markup"`
	FixedMarkup      int64      `json:"fixed_markup"`
	Priority         int        `json:"priority" gorm:"index"`
	IsActive         bool       `json:"is_active" gorm:"default:true"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (r *PriceRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}
