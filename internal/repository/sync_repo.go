package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"feedsync/internal/models"
)

// SyncRepository persists the per-run audit trail: one session per
// orchestrator run, one item per per-product outcome.
type SyncRepository struct {
	db *gorm.DB
}

func NewSyncRepository(db *gorm.DB) *SyncRepository {
	return &SyncRepository{db: db}
}

func (r *SyncRepository) CreateSession(ctx context.Context, session *models.SyncSession) error {
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SyncRepository) FinishSession(ctx context.Context, session *models.SyncSession) error {
	now := time.Now()
	session.FinishedAt = &now
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *SyncRepository) AddItem(ctx context.Context, item *models.SyncItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *SyncRepository) SessionItems(ctx context.Context, sessionID string) ([]models.SyncItem, error) {
	var items []models.SyncItem
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at, id").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *SyncRepository) RecentSessions(ctx context.Context, limit int) ([]models.SyncSession, error) {
	if limit <= 0 {
		limit = 20
	}
	var sessions []models.SyncSession
	err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
