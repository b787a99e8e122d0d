package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/middleware"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/models"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/protocol"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateCostCenterRequest represents the request payload for creating a cost center
type CreateCostCenterRequest struct {
	Code        string `json:"code" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

// UpdateCostCenterRequest represents the request payload for updating a cost center
type UpdateCostCenterRequest struct {
	Code        *string `json:"code"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
}

var errDuplicateCode = errors.New("duplicate cost center code")

// GetCostCenters handles GET /api/cost-centers
// Query params: page (default 1), limit (default 20, max 100), sort (asc|desc on code), active (true|false).
func (h *Handler) GetCostCenters(c *gin.Context) {
	tenantID := c.GetString(middleware.TenantIDKey)

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	sortParam := strings.ToLower(c.DefaultQuery("sort", "asc"))
	order := "code asc"
	if sortParam == "desc" {
		order = "code desc"
	}

	query := h.db.Model(&models.CostCenter{}).Where("tenant_id = ?", tenantID)
	if active := c.Query("active"); active != "" {
		query = query.Where("active = ?", active == "true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count cost centers"})
		return
	}

	var items []models.CostCenter
	result := query.Session(&gorm.Session{}).Order(order).Limit(limit).Offset((page - 1) * limit).Find(&items)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cost centers"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"costCenters": items,
		"count":       len(items),
		"total":       total,
		"page":        page,
		"limit":       limit,
		"sort":        sortParam,
	})
}

// GetCostCenterByID handles GET /api/cost-centers/:id
func (h *Handler) GetCostCenterByID(c *gin.Context) {
	cc, ok := h.findCostCenter(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cc)
}

// CreateCostCenter handles POST /api/cost-centers
func (h *Handler) CreateCostCenter(c *gin.Context) {
	tenantID := c.GetString(middleware.TenantIDKey)

	var req CreateCostCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cc := models.CostCenter{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Code:        strings.TrimSpace(req.Code),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Active:      req.Active == nil || *req.Active,
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := ensureUniqueCode(tx, tenantID, cc.Code, ""); err != nil {
			return err
		}
		return tx.Create(&cc).Error
	})
	if err != nil {
		h.writeCostCenterError(c, "create", err)
		return
	}

	h.notify(tenantID, ResourceCostCenters, protocol.ActionCreated, cc)
	c.JSON(http.StatusCreated, cc)
}

// UpdateCostCenter handles PUT /api/cost-centers/:id
func (h *Handler) UpdateCostCenter(c *gin.Context) {
	tenantID := c.GetString(middleware.TenantIDKey)

	var req UpdateCostCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var cc models.CostCenter
	found := true
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND tenant_id = ?", c.Param("id"), tenantID).First(&cc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				found = false
			}
			return err
		}

		if req.Code != nil {
			code := strings.TrimSpace(*req.Code)
			if code != cc.Code {
				if err := ensureUniqueCode(tx, tenantID, code, cc.ID); err != nil {
					return err
				}
			}
			cc.Code = code
		}
		if req.Name != nil {
			cc.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			cc.Description = *req.Description
		}
		if req.Active != nil {
			cc.Active = *req.Active
		}
		if cc.Code == "" || cc.Name == "" {
			return errEmptyField
		}
		return tx.Save(&cc).Error
	})
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cost center not found"})
		return
	}
	if err != nil {
		h.writeCostCenterError(c, "update", err)
		return
	}

	h.notify(tenantID, ResourceCostCenters, protocol.ActionUpdated, cc)
	c.JSON(http.StatusOK, cc)
}

// DeleteCostCenter handles DELETE /api/cost-centers/:id
func (h *Handler) DeleteCostCenter(c *gin.Context) {
	tenantID := c.GetString(middleware.TenantIDKey)

	cc, ok := h.findCostCenter(c)
	if !ok {
		return
	}
	if err := h.db.Delete(&cc).Error; err != nil {
		h.writeCostCenterError(c, "delete", err)
		return
	}

	h.notify(tenantID, ResourceCostCenters, protocol.ActionDeleted, gin.H{"id": cc.ID})
	c.JSON(http.StatusOK, gin.H{
		"message": "Cost center deleted successfully",
		"id":      cc.ID,
	})
}

var errEmptyField = errors.New("code and name must not be empty")

func (h *Handler) findCostCenter(c *gin.Context) (models.CostCenter, bool) {
	var cc models.CostCenter
	err := h.db.Where("id = ? AND tenant_id = ?", c.Param("id"), c.GetString(middleware.TenantIDKey)).First(&cc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cost center not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cost center"})
		}
		return models.CostCenter{}, false
	}
	return cc, true
}

func ensureUniqueCode(tx *gorm.DB, tenantID, code, exceptID string) error {
	q := tx.Model(&models.CostCenter{}).Where("tenant_id = ? AND code = ?", tenantID, code)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return errDuplicateCode
	}
	return nil
}

func (h *Handler) writeCostCenterError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, errDuplicateCode):
		c.JSON(http.StatusConflict, gin.H{"error": "A cost center with this code already exists"})
	case errors.Is(err, errEmptyField):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("cost center write failed", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + op + " cost center"})
	}
}
