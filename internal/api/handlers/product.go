package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"feedsync/internal/logger"
	"feedsync/internal/models"
	"feedsync/internal/repository"
	"feedsync/internal/validation"
)

type ProductHandler struct {
	db        *gorm.DB
	products  *repository.ProductRepository
	validator *validation.Engine
	logger    *logger.Logger
}

func NewProductHandler(db *gorm.DB, products *repository.ProductRepository, validator *validation.Engine, logger *logger.Logger) *ProductHandler {
	return &ProductHandler{
		db:        db,
		products:  products,
		validator: validator,
		logger:    logger,
	}
}

func (h *ProductHandler) List(c *gin.Context) {
	var products []models.SupplierProduct

	// Pagination
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 20
	}
	offset := (page - 1) * limit

	// Filters
	category := c.Query("category")
	status := c.Query("status")
	search := c.Query("search")

	query := h.db.Model(&models.SupplierProduct{})

	if category != "" {
		query = query.Where("category = ?", category)
	}
	if status != "" {
		query = query.Where("validation_status = ?", status)
	}
	if search != "" {
		query = query.Where("title LIKE ? OR supplier_sku LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	query.Count(&total)

	if err := query.Order("supplier_sku").Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": products,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

func (h *ProductHandler) Get(c *gin.Context) {
	sku := c.Param("sku")

	product, err := h.products.BySKU(c.Request.Context(), sku)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": product})
}

// History returns the append-only change ledger for one SKU.
func (h *ProductHandler) History(c *gin.Context) {
	sku := c.Param("sku")

	entries, err := h.products.History(c.Request.Context(), sku)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// Validate recomputes validation statuses, optionally scoped by the category
// query parameter.
func (h *ProductHandler) Validate(c *gin.Context) {
	var category *models.Category
	if name := c.Query("category"); name != "" {
		cat := models.Category(name)
		if !cat.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown category"})
			return
		}
		category = &cat
	}

	summary, err := h.validator.ValidateAll(c.Request.Context(), category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

type overrideRequest struct {
	Status models.ValidationStatus `json:"status" binding:"required"`
}

// Override manually forces a validation status. The next validation pass may
// recompute it, so this is a temporary escape hatch, not a pin.
func (h *ProductHandler) Override(c *gin.Context) {
	sku := c.Param("sku")

	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Status {
	case models.ValidationRaw, models.ValidationValid, models.ValidationInvalid,
		models.ValidationPublished, models.ValidationNeedsUpdate, models.ValidationInactive:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown validation status"})
		return
	}

	if _, err := h.products.BySKU(c.Request.Context(), sku); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	if err := h.products.SetValidation(c.Request.Context(), sku, req.Status, nil); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update validation status"})
		return
	}

	h.logger.Info("Validation status of %s manually set to %s", sku, req.Status)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"supplier_sku": sku, "validation_status": req.Status}})
}
