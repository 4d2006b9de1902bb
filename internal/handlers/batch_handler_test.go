package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pricing-service/internal/models"
	"pricing-service/internal/repository"
	"pricing-service/internal/services"
)

// MockBatchService is a mock implementation of BatchServiceInterface
type MockBatchService struct {
	mock.Mock
}

var _ BatchServiceInterface = (*MockBatchService)(nil)

func (m *MockBatchService) BuildBatch(ctx context.Context, tenantID string, actorID uuid.UUID, input services.BuildBatchInput) (*models.PriceChangeBatch, error) {
	args := m.Called(ctx, tenantID, actorID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PriceChangeBatch), args.Error(1)
}

func (m *MockBatchService) PreviewChanges(ctx context.Context, tenantID string, input services.BuildBatchInput) ([]models.PriceChangeItem, error) {
	args := m.Called(ctx, tenantID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PriceChangeItem), args.Error(1)
}

func (m *MockBatchService) ConfirmBatch(ctx context.Context, tenantID string, batchID, confirmedBy uuid.UUID, comment string) (*models.PriceChangeBatch, error) {
	args := m.Called(ctx, tenantID, batchID, confirmedBy, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PriceChangeBatch), args.Error(1)
}

func (m *MockBatchService) ConfirmBatchItems(ctx context.Context, tenantID string, batchID, confirmedBy uuid.UUID, itemIDs []uuid.UUID, comment string) (*models.PriceChangeBatch, error) {
	args := m.Called(ctx, tenantID, batchID, confirmedBy, itemIDs, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PriceChangeBatch), args.Error(1)
}

func (m *MockBatchService) ApplyBatch(ctx context.Context, tenantID string, batchID uuid.UUID) (*services.BatchApplyResult, error) {
	args := m.Called(ctx, tenantID, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.BatchApplyResult), args.Error(1)
}

func (m *MockBatchService) RevertBatch(ctx context.Context, tenantID string, batchID, revertedBy uuid.UUID) (*models.PriceChangeBatch, error) {
	args := m.Called(ctx, tenantID, batchID, revertedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PriceChangeBatch), args.Error(1)
}

func (m *MockBatchService) CancelBatch(ctx context.Context, tenantID string, batchID, cancelledBy uuid.UUID) (*models.PriceChangeBatch, error) {
	args := m.Called(ctx, tenantID, batchID, cancelledBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PriceChangeBatch), args.Error(1)
}

func (m *MockBatchService) DeleteBatch(ctx context.Context, tenantID string, batchID uuid.UUID) error {
	args := m.Called(ctx, tenantID, batchID)
	return args.Error(0)
}

func (m *MockBatchService) GetBatch(ctx context.Context, tenantID string, batchID uuid.UUID, withItems bool) (*models.PriceChangeBatch, error) {
	args := m.Called(ctx, tenantID, batchID, withItems)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PriceChangeBatch), args.Error(1)
}

func (m *MockBatchService) GetBatchSummary(ctx context.Context, tenantID string, batchID uuid.UUID) (*services.BatchSummary, error) {
	args := m.Called(ctx, tenantID, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.BatchSummary), args.Error(1)
}

func (m *MockBatchService) ListBatches(ctx context.Context, tenantID string, filter repository.BatchFilter, limit, offset int) ([]models.PriceChangeBatch, int64, error) {
	args := m.Called(ctx, tenantID, filter, limit, offset)
	return args.Get(0).([]models.PriceChangeBatch), args.Get(1).(int64), args.Error(2)
}

func (m *MockBatchService) ListItems(ctx context.Context, tenantID string, batchID uuid.UUID, filter repository.ItemFilter, limit, offset int) ([]models.PriceChangeItem, int64, error) {
	args := m.Called(ctx, tenantID, batchID, filter, limit, offset)
	return args.Get(0).([]models.PriceChangeItem), args.Get(1).(int64), args.Error(2)
}

func (m *MockBatchService) ListApplyLogs(ctx context.Context, tenantID string, batchID uuid.UUID) ([]models.PriceApplyLog, error) {
	args := m.Called(ctx, tenantID, batchID)
	return args.Get(0).([]models.PriceApplyLog), args.Error(1)
}

func (m *MockBatchService) ListPriceHistory(ctx context.Context, tenantID string, filter repository.HistoryFilter, limit, offset int) ([]models.PriceHistory, int64, error) {
	args := m.Called(ctx, tenantID, filter, limit, offset)
	return args.Get(0).([]models.PriceHistory), args.Get(1).(int64), args.Error(2)
}

func setupRouter(service BatchServiceInterface, tenantID string, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if tenantID != "" {
			c.Set("tenant_id", tenantID)
		}
		if userID != uuid.Nil {
			c.Set("user_id", userID.String())
		}
		c.Next()
	})

	h := NewBatchHandler(service)
	api := router.Group("/api/v1")
	api.POST("/price-batches", h.CreateBatch)
	api.GET("/price-batches/:id", h.GetBatch)
	api.GET("/price-batches/:id/summary", h.GetBatchSummary)
	api.POST("/price-batches/:id/confirm", h.ConfirmBatch)
	api.POST("/price-batches/:id/apply", h.ApplyBatch)
	api.DELETE("/price-batches/:id", h.DeleteBatch)
	api.GET("/price-history", h.ListPriceHistory)
	return router
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateBatchCreated(t *testing.T) {
	service := new(MockBatchService)
	tenantID := "tenant-1"
	userID := uuid.New()
	sellerID := uuid.New()

	batch := &models.PriceChangeBatch{ID: uuid.New(), TenantID: tenantID, Status: models.BatchStatusDraft}
	service.On("BuildBatch", mock.Anything, tenantID, userID, mock.Anything).Return(batch, nil)

	router := setupRouter(service, tenantID, userID)
	w := performJSON(t, router, http.MethodPost, "/api/v1/price-batches", gin.H{
		"sellerId":    sellerID,
		"changeType":  "percent",
		"changeValue": 5,
		"nmIds":       []int64{101, 102},
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	var got models.PriceChangeBatch
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, batch.ID, got.ID)
	service.AssertExpectations(t)
}

func TestCreateBatchTooLarge(t *testing.T) {
	service := new(MockBatchService)
	userID := uuid.New()
	service.On("BuildBatch", mock.Anything, "tenant-1", userID, mock.Anything).
		Return(nil, &services.BatchTooLargeError{Requested: 250, Max: 100})

	router := setupRouter(service, "tenant-1", userID)
	w := performJSON(t, router, http.MethodPost, "/api/v1/price-batches", gin.H{
		"sellerId":   uuid.New(),
		"changeType": "percent",
		"nmIds":      []int64{101},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(250), body["requested"])
	assert.Equal(t, float64(100), body["max"])
}

func TestCreateBatchRequiresTenant(t *testing.T) {
	service := new(MockBatchService)
	router := setupRouter(service, "", uuid.New())

	w := performJSON(t, router, http.MethodPost, "/api/v1/price-batches", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "BuildBatch")
}

func TestConfirmBatchCommentRequired(t *testing.T) {
	service := new(MockBatchService)
	userID := uuid.New()
	batchID := uuid.New()
	service.On("ConfirmBatch", mock.Anything, "tenant-1", batchID, userID, "").
		Return(nil, services.ErrConfirmationRequired)

	router := setupRouter(service, "tenant-1", userID)
	w := performJSON(t, router, http.MethodPost, "/api/v1/price-batches/"+batchID.String()+"/confirm", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfirmBatchStateConflict(t *testing.T) {
	service := new(MockBatchService)
	userID := uuid.New()
	batchID := uuid.New()
	service.On("ConfirmBatch", mock.Anything, "tenant-1", batchID, userID, "done").
		Return(nil, services.ErrInvalidState)

	router := setupRouter(service, "tenant-1", userID)
	w := performJSON(t, router, http.MethodPost, "/api/v1/price-batches/"+batchID.String()+"/confirm",
		gin.H{"comment": "done"})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetBatchNotFound(t *testing.T) {
	service := new(MockBatchService)
	batchID := uuid.New()
	service.On("GetBatch", mock.Anything, "tenant-1", batchID, false).
		Return(nil, services.ErrBatchNotFound)

	router := setupRouter(service, "tenant-1", uuid.New())
	w := performJSON(t, router, http.MethodGet, "/api/v1/price-batches/"+batchID.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetBatchInvalidID(t *testing.T) {
	service := new(MockBatchService)
	router := setupRouter(service, "tenant-1", uuid.New())

	w := performJSON(t, router, http.MethodGet, "/api/v1/price-batches/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "GetBatch")
}

func TestGetBatchSummaryOK(t *testing.T) {
	service := new(MockBatchService)
	batchID := uuid.New()
	service.On("GetBatchSummary", mock.Anything, "tenant-1", batchID).
		Return(&services.BatchSummary{BatchID: batchID, Status: models.BatchStatusDraft, DangerousCount: 2, RequiresComment: true}, nil)

	router := setupRouter(service, "tenant-1", uuid.New())
	w := performJSON(t, router, http.MethodGet, "/api/v1/price-batches/"+batchID.String()+"/summary", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var got services.BatchSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.RequiresComment)
	assert.Equal(t, 2, got.DangerousCount)
}

func TestApplyBatchOK(t *testing.T) {
	service := new(MockBatchService)
	batchID := uuid.New()
	service.On("ApplyBatch", mock.Anything, "tenant-1", batchID).
		Return(&services.BatchApplyResult{BatchID: batchID, Status: models.BatchStatusCompleted, Applied: 3, Chunks: 2}, nil)

	router := setupRouter(service, "tenant-1", uuid.New())
	w := performJSON(t, router, http.MethodPost, "/api/v1/price-batches/"+batchID.String()+"/apply", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var got services.BatchApplyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Applied)
	assert.Equal(t, models.BatchStatusCompleted, got.Status)
}

func TestApplyBatchAPIKeyMissing(t *testing.T) {
	service := new(MockBatchService)
	batchID := uuid.New()
	service.On("ApplyBatch", mock.Anything, "tenant-1", batchID).
		Return(nil, services.ErrAPIKeyNotConfigured)

	router := setupRouter(service, "tenant-1", uuid.New())
	w := performJSON(t, router, http.MethodPost, "/api/v1/price-batches/"+batchID.String()+"/apply", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteBatchNoContent(t *testing.T) {
	service := new(MockBatchService)
	batchID := uuid.New()
	service.On("DeleteBatch", mock.Anything, "tenant-1", batchID).Return(nil)

	router := setupRouter(service, "tenant-1", uuid.New())
	w := performJSON(t, router, http.MethodDelete, "/api/v1/price-batches/"+batchID.String(), nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestListPriceHistoryOK(t *testing.T) {
	service := new(MockBatchService)
	batchID := uuid.New()
	entries := []models.PriceHistory{
		{ID: uuid.New(), TenantID: "tenant-1", BatchID: &batchID, OldPrice: 100, NewPrice: 103},
	}
	service.On("ListPriceHistory", mock.Anything, "tenant-1",
		repository.HistoryFilter{BatchID: &batchID}, 20, 0).
		Return(entries, int64(1), nil)

	router := setupRouter(service, "tenant-1", uuid.New())
	w := performJSON(t, router, http.MethodGet, "/api/v1/price-history?batchId="+batchID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["total"])
	service.AssertExpectations(t)
}

func TestListPriceHistoryInvalidFilter(t *testing.T) {
	service := new(MockBatchService)
	router := setupRouter(service, "tenant-1", uuid.New())
	w := performJSON(t, router, http.MethodGet, "/api/v1/price-history?sellerId=not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "ListPriceHistory")
}
