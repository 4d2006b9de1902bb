package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"pricing-service/internal/models"
	"pricing-service/internal/pricing"
	"pricing-service/internal/repository"
	"pricing-service/internal/services"
)

// BatchServiceInterface is what the HTTP layer needs from the batch service
type BatchServiceInterface interface {
	BuildBatch(ctx context.Context, tenantID string, actorID uuid.UUID, input services.BuildBatchInput) (*models.PriceChangeBatch, error)
	PreviewChanges(ctx context.Context, tenantID string, input services.BuildBatchInput) ([]models.PriceChangeItem, error)
	ConfirmBatch(ctx context.Context, tenantID string, batchID, confirmedBy uuid.UUID, comment string) (*models.PriceChangeBatch, error)
	ConfirmBatchItems(ctx context.Context, tenantID string, batchID, confirmedBy uuid.UUID, itemIDs []uuid.UUID, comment string) (*models.PriceChangeBatch, error)
	ApplyBatch(ctx context.Context, tenantID string, batchID uuid.UUID) (*services.BatchApplyResult, error)
	RevertBatch(ctx context.Context, tenantID string, batchID, revertedBy uuid.UUID) (*models.PriceChangeBatch, error)
	CancelBatch(ctx context.Context, tenantID string, batchID, cancelledBy uuid.UUID) (*models.PriceChangeBatch, error)
	DeleteBatch(ctx context.Context, tenantID string, batchID uuid.UUID) error
	GetBatch(ctx context.Context, tenantID string, batchID uuid.UUID, withItems bool) (*models.PriceChangeBatch, error)
	GetBatchSummary(ctx context.Context, tenantID string, batchID uuid.UUID) (*services.BatchSummary, error)
	ListBatches(ctx context.Context, tenantID string, filter repository.BatchFilter, limit, offset int) ([]models.PriceChangeBatch, int64, error)
	ListItems(ctx context.Context, tenantID string, batchID uuid.UUID, filter repository.ItemFilter, limit, offset int) ([]models.PriceChangeItem, int64, error)
	ListApplyLogs(ctx context.Context, tenantID string, batchID uuid.UUID) ([]models.PriceApplyLog, error)
	ListPriceHistory(ctx context.Context, tenantID string, filter repository.HistoryFilter, limit, offset int) ([]models.PriceHistory, int64, error)
}

// BatchHandler handles HTTP requests for price change batches
type BatchHandler struct {
	service BatchServiceInterface
}

// NewBatchHandler creates a new BatchHandler
func NewBatchHandler(service BatchServiceInterface) *BatchHandler {
	return &BatchHandler{service: service}
}

// respondError maps service errors onto HTTP statuses: policy and validation
// failures are 400, state conflicts 409, missing resources 404, anything
// unexpected an opaque 500.
func respondError(c *gin.Context, err error) {
	var tooLarge *services.BatchTooLargeError
	var formulaErr *pricing.FormulaError

	switch {
	case errors.Is(err, services.ErrBatchNotFound), errors.Is(err, services.ErrSellerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requested": tooLarge.Requested,
			"max":       tooLarge.Max,
		})
	case errors.As(err, &formulaErr),
		errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrUnknownChangeType),
		errors.Is(err, services.ErrNoProductsSelected),
		errors.Is(err, services.ErrConfirmationRequired),
		errors.Is(err, services.ErrBulkDangerousNotAllowed),
		errors.Is(err, services.ErrAPIKeyNotConfigured),
		errors.Is(err, services.ErrNothingToRevert):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An internal error occurred"})
	}
}

func requestIdentity(c *gin.Context) (string, uuid.UUID, bool) {
	tenantID := c.GetString("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return "", uuid.Nil, false
	}

	userID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return "", uuid.Nil, false
	}
	return tenantID, userID, true
}

func batchIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch id"})
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 500 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// CreateBatch builds a new price change batch
// @Summary Create price change batch
// @Tags Price Batches
// @Accept json
// @Produce json
// @Param request body services.BuildBatchInput true "Batch definition"
// @Success 201 {object} models.PriceChangeBatch
// @Router /api/v1/price-batches [post]
func (h *BatchHandler) CreateBatch(c *gin.Context) {
	tenantID, userID, ok := requestIdentity(c)
	if !ok {
		return
	}

	var input services.BuildBatchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch, err := h.service.BuildBatch(c.Request.Context(), tenantID, userID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, batch)
}

// PreviewChanges computes the classified changes without creating a batch
// @Summary Preview price changes
// @Tags Price Batches
// @Accept json
// @Produce json
// @Param request body services.BuildBatchInput true "Batch definition"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/price-batches/preview [post]
func (h *BatchHandler) PreviewChanges(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return
	}

	var input services.BuildBatchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, err := h.service.PreviewChanges(c.Request.Context(), tenantID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": len(items),
	})
}

// ListBatches lists price change batches
// @Summary List price change batches
// @Tags Price Batches
// @Produce json
// @Param sellerId query string false "Seller filter"
// @Param status query string false "Status filter (draft, confirmed, applying, completed, failed, cancelled)"
// @Param limit query int false "Limit" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/price-batches [get]
func (h *BatchHandler) ListBatches(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	filter := repository.BatchFilter{Status: c.Query("status")}
	if sellerIDStr := c.Query("sellerId"); sellerIDStr != "" {
		sellerID, err := uuid.Parse(sellerIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sellerId"})
			return
		}
		filter.SellerID = &sellerID
	}
	if revertedStr := c.Query("reverted"); revertedStr != "" {
		reverted := revertedStr == "true"
		filter.Reverted = &reverted
	}

	limit, offset := pagination(c)

	batches, total, err := h.service.ListBatches(c.Request.Context(), tenantID, filter, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   batches,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetBatch retrieves a batch by ID
// @Summary Get price change batch
// @Tags Price Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Param include_items query bool false "Include items"
// @Success 200 {object} models.PriceChangeBatch
// @Router /api/v1/price-batches/{id} [get]
func (h *BatchHandler) GetBatch(c *gin.Context) {
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	withItems := c.Query("include_items") == "true"
	batch, err := h.service.GetBatch(c.Request.Context(), c.GetString("tenant_id"), id, withItems)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

// GetBatchSummary retrieves the review summary for a batch
// @Summary Get batch summary
// @Tags Price Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} services.BatchSummary
// @Router /api/v1/price-batches/{id}/summary [get]
func (h *BatchHandler) GetBatchSummary(c *gin.Context) {
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	summary, err := h.service.GetBatchSummary(c.Request.Context(), c.GetString("tenant_id"), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ListItems lists a batch's items with safety/status filters
// @Summary List batch items
// @Tags Price Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Param safety query string false "Safety filter (safe, warning, dangerous)"
// @Param status query string false "Status filter (pending, applied, failed, skipped)"
// @Param limit query int false "Limit" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/price-batches/{id}/items [get]
func (h *BatchHandler) ListItems(c *gin.Context) {
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	filter := repository.ItemFilter{
		SafetyLevel: c.Query("safety"),
		Status:      c.Query("status"),
	}
	limit, offset := pagination(c)

	items, total, err := h.service.ListItems(c.Request.Context(), c.GetString("tenant_id"), id, filter, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// ConfirmBatch confirms a draft batch in bulk
// @Summary Confirm batch
// @Tags Price Batches
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param request body map[string]string false "Comment"
// @Success 200 {object} models.PriceChangeBatch
// @Router /api/v1/price-batches/{id}/confirm [post]
func (h *BatchHandler) ConfirmBatch(c *gin.Context) {
	tenantID, userID, ok := requestIdentity(c)
	if !ok {
		return
	}
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	var body struct {
		Comment string `json:"comment"`
	}
	_ = c.ShouldBindJSON(&body)

	batch, err := h.service.ConfirmBatch(c.Request.Context(), tenantID, id, userID, body.Comment)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

// ConfirmBatchItems confirms a chosen subset of a batch's items
// @Summary Confirm selected batch items
// @Tags Price Batches
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param request body map[string]interface{} true "Item IDs and comment"
// @Success 200 {object} models.PriceChangeBatch
// @Router /api/v1/price-batches/{id}/confirm-items [post]
func (h *BatchHandler) ConfirmBatchItems(c *gin.Context) {
	tenantID, userID, ok := requestIdentity(c)
	if !ok {
		return
	}
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	var body struct {
		ItemIDs []uuid.UUID `json:"itemIds" binding:"required"`
		Comment string      `json:"comment"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch, err := h.service.ConfirmBatchItems(c.Request.Context(), tenantID, id, userID, body.ItemIDs, body.Comment)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

// ApplyBatch pushes a confirmed batch to the marketplace
// @Summary Apply batch
// @Tags Price Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} services.BatchApplyResult
// @Router /api/v1/price-batches/{id}/apply [post]
func (h *BatchHandler) ApplyBatch(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return
	}
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	result, err := h.service.ApplyBatch(c.Request.Context(), tenantID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RevertBatch creates a reversal batch from a completed batch
// @Summary Revert batch
// @Tags Price Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 201 {object} models.PriceChangeBatch
// @Router /api/v1/price-batches/{id}/revert [post]
func (h *BatchHandler) RevertBatch(c *gin.Context) {
	tenantID, userID, ok := requestIdentity(c)
	if !ok {
		return
	}
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	revert, err := h.service.RevertBatch(c.Request.Context(), tenantID, id, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, revert)
}

// CancelBatch abandons a batch that has not started applying
// @Summary Cancel batch
// @Tags Price Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} models.PriceChangeBatch
// @Router /api/v1/price-batches/{id}/cancel [post]
func (h *BatchHandler) CancelBatch(c *gin.Context) {
	tenantID, userID, ok := requestIdentity(c)
	if !ok {
		return
	}
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	batch, err := h.service.CancelBatch(c.Request.Context(), tenantID, id, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

// DeleteBatch removes a draft batch
// @Summary Delete draft batch
// @Tags Price Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 204
// @Router /api/v1/price-batches/{id} [delete]
func (h *BatchHandler) DeleteBatch(c *gin.Context) {
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	if err := h.service.DeleteBatch(c.Request.Context(), c.GetString("tenant_id"), id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListApplyLogs retrieves the per-chunk submission audit for a batch
// @Summary List batch apply logs
// @Tags Price Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/price-batches/{id}/apply-logs [get]
func (h *BatchHandler) ListApplyLogs(c *gin.Context) {
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	logs, err := h.service.ListApplyLogs(c.Request.Context(), c.GetString("tenant_id"), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// ListPriceHistory retrieves applied price changes, newest first
// @Summary List price history
// @Tags Price History
// @Produce json
// @Param sellerId query string false "Seller ID"
// @Param productId query string false "Product ID"
// @Param batchId query string false "Batch ID"
// @Param limit query int false "Limit" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/price-history [get]
func (h *BatchHandler) ListPriceHistory(c *gin.Context) {
	filter := repository.HistoryFilter{}
	if v := c.Query("sellerId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sellerId"})
			return
		}
		filter.SellerID = &id
	}
	if v := c.Query("productId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid productId"})
			return
		}
		filter.ProductID = &id
	}
	if v := c.Query("batchId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batchId"})
			return
		}
		filter.BatchID = &id
	}
	limit, offset := pagination(c)

	entries, total, err := h.service.ListPriceHistory(c.Request.Context(), c.GetString("tenant_id"), filter, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   entries,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// ExportBatch downloads a batch's items as an Excel workbook
// @Summary Export batch items
// @Tags Price Batches
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Batch ID"
// @Success 200
// @Router /api/v1/price-batches/{id}/export [get]
func (h *BatchHandler) ExportBatch(c *gin.Context) {
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	batch, err := h.service.GetBatch(c.Request.Context(), c.GetString("tenant_id"), id, true)
	if err != nil {
		respondError(c, err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Price Changes"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	headers := []string{"nmID", "Vendor Code", "Title", "Old Price", "New Price", "Change", "Change %", "Safety", "Status", "Error"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 16)
	}

	for i := range batch.Items {
		item := &batch.Items[i]
		row := i + 2
		values := []interface{}{
			item.NmID,
			item.VendorCode,
			item.ProductTitle,
			item.OldPrice,
			item.NewPrice,
			item.PriceChangeAmount,
			item.PriceChangePercent,
			item.SafetyLevel,
			item.Status,
			item.ErrorMessage,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=price_batch_%s.xlsx", batch.ID))

	f.Write(c.Writer)
}
