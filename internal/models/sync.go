package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SyncMode string

const (
	SyncModeFull           SyncMode = "full"
	SyncModeIncremental    SyncMode = "incremental"
	SyncModeValidationOnly SyncMode = "validation-only"
)

// SyncSession carries the aggregate stats for one orchestrator run.
type SyncSession struct {
	ID         string     `json:"id" gorm:"type:uuid;primary_key"`
	Mode       SyncMode   `json:"mode"`
	Categories []Category `json:"categories" gorm:"serializer:json"`
	DryRun     bool       `json:"dry_run"`

	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Deactivated int `json:"deactivated"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (s *SyncSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

type SyncAction string

const (
	SyncActionCreate     SyncAction = "create"
	SyncActionUpdate     SyncAction = "update"
	SyncActionDeactivate SyncAction = "deactivate"
)

// SyncItem records one per-product outcome within a session. Read-mostly audit
// trail.
type SyncItem struct {
	ID          string                 `json:"id" gorm:"type:uuid;primary_key"`
	SessionID   string                 `json:"session_id" gorm:"index;not null"`
	SupplierSKU string                 `json:"supplier_sku" gorm:"index"`
	Action      SyncAction             `json:"action"`
	Success     bool                   `json:"success"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details" gorm:"serializer:json"`
	CreatedAt   time.Time              `json:"created_at"`
}

func (i *SyncItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}
