package repository

import (
	"context"

	"gorm.io/gorm"

	"feedsync/internal/models"
)

// PriceRuleRepository persists pricing rules. It implements
// pricing.RuleSource.
type PriceRuleRepository struct {
	db *gorm.DB
}

func NewPriceRuleRepository(db *gorm.DB) *PriceRuleRepository {
	return &PriceRuleRepository{db: db}
}

// ActiveRules returns the active rules for a category, priority ascending with
// id as the tie-break.
func (r *PriceRuleRepository) ActiveRules(ctx context.Context, category models.Category) ([]models.PriceRule, error) {
	var rules []models.PriceRule
	err := r.db.WithContext(ctx).
		Where("category = ? AND is_active = ?", category, true).
		Order("priority, id").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *PriceRuleRepository) List(ctx context.Context) ([]models.PriceRule, error) {
	var rules []models.PriceRule
	err := r.db.WithContext(ctx).Order("category, priority, id").Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *PriceRuleRepository) Create(ctx context.Context, rule *models.PriceRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *PriceRuleRepository) Update(ctx context.Context, rule *models.PriceRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

func (r *PriceRuleRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.PriceRule{}, "id = ?", id).Error
}
