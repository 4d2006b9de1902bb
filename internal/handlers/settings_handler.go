package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pricing-service/internal/services"
)

// SettingsHandler handles HTTP requests for per-seller safety settings
type SettingsHandler struct {
	service *services.SettingsService
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(service *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

func sellerIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("sellerId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid seller id"})
		return uuid.Nil, false
	}
	return id, true
}

// GetSettings returns the seller's effective safety settings
// @Summary Get price safety settings
// @Tags Price Settings
// @Produce json
// @Param sellerId path string true "Seller ID"
// @Success 200 {object} models.PriceSafetySettings
// @Router /api/v1/price-settings/{sellerId} [get]
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return
	}

	settings, err := h.service.Resolve(c.Request.Context(), tenantID, sellerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An internal error occurred"})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateSettings replaces the seller's safety settings
// @Summary Update price safety settings
// @Tags Price Settings
// @Accept json
// @Produce json
// @Param sellerId path string true "Seller ID"
// @Param request body services.UpdateSettingsInput true "Settings"
// @Success 200 {object} models.PriceSafetySettings
// @Router /api/v1/price-settings/{sellerId} [put]
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return
	}

	var input services.UpdateSettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.service.Update(c.Request.Context(), tenantID, sellerID, input)
	if err != nil {
		if errors.Is(err, services.ErrInvalidThresholds) || errors.Is(err, services.ErrInvalidMode) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An internal error occurred"})
		return
	}

	c.JSON(http.StatusOK, settings)
}
