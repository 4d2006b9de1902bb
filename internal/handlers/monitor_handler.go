package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pricing-service/internal/repository"
	"pricing-service/internal/services"
)

// MonitorHandler handles HTTP requests for suspicious price change review
type MonitorHandler struct {
	service *services.MonitorService
}

// NewMonitorHandler creates a new MonitorHandler
func NewMonitorHandler(service *services.MonitorService) *MonitorHandler {
	return &MonitorHandler{service: service}
}

// RecordExternalChange records an externally observed price movement
// @Summary Record external price change
// @Tags Price Monitor
// @Accept json
// @Produce json
// @Param request body services.ExternalChangeInput true "Observed change"
// @Success 201 {object} models.SuspiciousPriceChange
// @Success 204 "Change within the safe band"
// @Router /api/v1/price-monitor/changes [post]
func (h *MonitorHandler) RecordExternalChange(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return
	}

	var input services.ExternalChangeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	change, err := h.service.RecordExternalChange(c.Request.Context(), tenantID, input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An internal error occurred"})
		return
	}
	if change == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusCreated, change)
}

// ListSuspicious lists recorded anomalies
// @Summary List suspicious price changes
// @Tags Price Monitor
// @Produce json
// @Param sellerId query string false "Seller filter"
// @Param only_unread query bool false "Only unreviewed records"
// @Param limit query int false "Limit" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/price-monitor/suspicious [get]
func (h *MonitorHandler) ListSuspicious(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	filter := repository.SuspiciousFilter{OnlyUnread: c.Query("only_unread") == "true"}
	if sellerIDStr := c.Query("sellerId"); sellerIDStr != "" {
		sellerID, err := uuid.Parse(sellerIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sellerId"})
			return
		}
		filter.SellerID = &sellerID
	}

	limit, offset := pagination(c)

	changes, total, err := h.service.ListSuspicious(c.Request.Context(), tenantID, filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An internal error occurred"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   changes,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// MarkReviewed closes out a suspicious price change
// @Summary Mark suspicious change reviewed
// @Tags Price Monitor
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/price-monitor/suspicious/{id}/review [post]
func (h *MonitorHandler) MarkReviewed(c *gin.Context) {
	tenantID, userID, ok := requestIdentity(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	if err := h.service.MarkReviewed(c.Request.Context(), tenantID, id, userID); err != nil {
		if errors.Is(err, services.ErrSuspiciousNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An internal error occurred"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reviewed": true})
}
