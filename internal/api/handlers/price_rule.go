package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"feedsync/internal/logger"
	"feedsync/internal/models"
	"feedsync/internal/pricing"
	"feedsync/internal/repository"
)

type PriceRuleHandler struct {
	rules  *repository.PriceRuleRepository
	pricer *pricing.Engine
	logger *logger.Logger
}

func NewPriceRuleHandler(rules *repository.PriceRuleRepository, pricer *pricing.Engine, logger *logger.Logger) *PriceRuleHandler {
	return &PriceRuleHandler{
		rules:  rules,
		pricer: pricer,
		logger: logger,
	}
}

func (h *PriceRuleHandler) List(c *gin.Context) {
	rules, err := h.rules.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch price rules"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rules})
}

func (h *PriceRuleHandler) Create(c *gin.Context) {
	var rule models.PriceRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateRule(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.rules.Create(c.Request.Context(), &rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create price rule"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": rule})
}

func (h *PriceRuleHandler) Update(c *gin.Context) {
	id := c.Param("id")

	existing, err := h.findRule(c, id)
	if err != nil {
		return
	}

	if err := c.ShouldBindJSON(existing); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	existing.ID = id
	if err := validateRule(existing); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.rules.Update(c.Request.Context(), existing); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update price rule"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": existing})
}

func (h *PriceRuleHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := h.rules.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete price rule"})
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

type quoteRequest struct {
	Category models.Category `json:"category" binding:"required"`
	Price    int64           `json:"price" binding:"required"`
	Brand    *string         `json:"brand"`
	Segment  *string         `json:"segment"`
}

// Quote previews the sell price for a hypothetical supplier price without
// touching any product.
func (h *PriceRuleHandler) Quote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Category.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown category"})
		return
	}

	quote, err := h.pricer.Apply(c.Request.Context(), req.Price, req.Category, req.Brand, req.Segment)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": quote})
}

func (h *PriceRuleHandler) findRule(c *gin.Context, id string) (*models.PriceRule, error) {
	rules, err := h.rules.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch price rules"})
		return nil, err
	}
	for i := range rules {
		if rules[i].ID == id {
			return &rules[i], nil
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Price rule not found"})
	return nil, gorm.ErrRecordNotFound
}

func validateRule(rule *models.PriceRule) error {
	if !rule.Category.IsValid() {
		return errors.New("unknown category")
	}
	switch rule.MatchField {
	case models.MatchBrand, models.MatchSegment, models.MatchAll:
	default:
		return errors.New("match_field must be brand, segment or all")
	}
	if rule.PercentageMarkup < 0 || rule.FixedMarkup < 0 {
		return errors.New("markups must not be negative")
	}
	return nil
}
