package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pricing-service/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrStateConflict = errors.New("state conflict - record was modified by another request")
)

// BatchFilter narrows ListBatches results.
type BatchFilter struct {
	SellerID *uuid.UUID
	Status   string
	Reverted *bool
}

// ItemFilter narrows ListItems results.
type ItemFilter struct {
	SafetyLevel string
	Status      string
}

// HistoryFilter narrows ListPriceHistory results.
type HistoryFilter struct {
	SellerID  *uuid.UUID
	ProductID *uuid.UUID
	BatchID   *uuid.UUID
}

// BatchRepositoryInterface defines database operations for price change
// batches. The interface exists so services can be tested against mocks and
// so WithTransaction can hand back a transactional variant of the same API.
type BatchRepositoryInterface interface {
	CreateBatch(ctx context.Context, batch *models.PriceChangeBatch) error
	GetBatchByID(ctx context.Context, tenantID string, id uuid.UUID, withItems bool) (*models.PriceChangeBatch, error)
	ListBatches(ctx context.Context, tenantID string, filter BatchFilter, limit, offset int) ([]models.PriceChangeBatch, int64, error)
	DeleteBatch(ctx context.Context, tenantID string, id uuid.UUID) error

	// Guarded transitions. Each issues a conditional UPDATE and returns
	// ErrStateConflict when the batch was not in the expected state.
	ConfirmBatch(ctx context.Context, id uuid.UUID, confirmedBy uuid.UUID, comment string) error
	ClaimApplying(ctx context.Context, id uuid.UUID) error
	FinishBatch(ctx context.Context, batch *models.PriceChangeBatch, status string, applyErrors []byte) error
	CancelBatch(ctx context.Context, id uuid.UUID, cancelledBy uuid.UUID) error
	MarkReverted(ctx context.Context, id uuid.UUID, revertedBy uuid.UUID, revertBatchID uuid.UUID) error

	ListItems(ctx context.Context, batchID uuid.UUID, filter ItemFilter, limit, offset int) ([]models.PriceChangeItem, int64, error)
	ListPendingItems(ctx context.Context, batchID uuid.UUID) ([]models.PriceChangeItem, error)
	MarkItemsSkipped(ctx context.Context, batchID uuid.UUID, itemIDs []uuid.UUID, reason string) error
	MarkItemsApplied(ctx context.Context, batchID uuid.UUID, itemIDs []uuid.UUID, appliedAt time.Time) error
	MarkItemFailed(ctx context.Context, batchID uuid.UUID, itemID uuid.UUID, errorMessage string) error
	MarkItemsFailed(ctx context.Context, batchID uuid.UUID, itemIDs []uuid.UUID, errorMessage string) error
	UpdateBatchCounters(ctx context.Context, batch *models.PriceChangeBatch) error

	CreateApplyLog(ctx context.Context, log *models.PriceApplyLog) error
	ListApplyLogs(ctx context.Context, batchID uuid.UUID) ([]models.PriceApplyLog, error)
	CreatePriceHistory(ctx context.Context, entries []models.PriceHistory) error
	ListPriceHistory(ctx context.Context, tenantID string, filter HistoryFilter, limit, offset int) ([]models.PriceHistory, int64, error)

	WithTransaction(ctx context.Context, fn func(txRepo BatchRepositoryInterface) error) error
}

// BatchRepository is the GORM implementation of BatchRepositoryInterface.
type BatchRepository struct {
	db *gorm.DB
}

// NewBatchRepository creates a new BatchRepository
func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// WithTransaction runs fn inside a database transaction, handing it a
// repository bound to the transaction.
func (r *BatchRepository) WithTransaction(ctx context.Context, fn func(txRepo BatchRepositoryInterface) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&BatchRepository{db: tx})
	})
}

// CreateBatch inserts a batch together with its items in one statement chain.
func (r *BatchRepository) CreateBatch(ctx context.Context, batch *models.PriceChangeBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

// GetBatchByID retrieves a batch scoped to a tenant
func (r *BatchRepository) GetBatchByID(ctx context.Context, tenantID string, id uuid.UUID, withItems bool) (*models.PriceChangeBatch, error) {
	var batch models.PriceChangeBatch
	query := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id)
	if withItems {
		query = query.Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("nm_id ASC")
		})
	}
	if err := query.First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// ListBatches retrieves batches for a tenant with optional filters
func (r *BatchRepository) ListBatches(ctx context.Context, tenantID string, filter BatchFilter, limit, offset int) ([]models.PriceChangeBatch, int64, error) {
	var batches []models.PriceChangeBatch
	var total int64

	query := r.db.WithContext(ctx).Model(&models.PriceChangeBatch{}).
		Where("tenant_id = ?", tenantID)

	if filter.SellerID != nil {
		query = query.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.Status != "" && filter.Status != "all" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Reverted != nil {
		query = query.Where("reverted = ?", *filter.Reverted)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&batches).Error

	return batches, total, err
}

// DeleteBatch removes a draft batch; items go with it via the FK cascade.
func (r *BatchRepository) DeleteBatch(ctx context.Context, tenantID string, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, models.BatchStatusDraft).
		Delete(&models.PriceChangeBatch{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateConflict
	}
	return nil
}

// ConfirmBatch moves a draft batch to confirmed
func (r *BatchRepository) ConfirmBatch(ctx context.Context, id uuid.UUID, confirmedBy uuid.UUID, comment string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.PriceChangeBatch{}).
		Where("id = ? AND status = ?", id, models.BatchStatusDraft).
		Updates(map[string]interface{}{
			"status":               models.BatchStatusConfirmed,
			"confirmed_at":         now,
			"confirmed_by":         confirmedBy,
			"confirmation_comment": comment,
			"updated_at":           now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateConflict
	}
	return nil
}

// ClaimApplying moves a batch into applying. Claiming an already-applying
// batch succeeds so an interrupted apply can be resumed.
func (r *BatchRepository) ClaimApplying(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.PriceChangeBatch{}).
		Where("id = ? AND status IN ?", id, []string{models.BatchStatusConfirmed, models.BatchStatusApplying}).
		Updates(map[string]interface{}{
			"status":     models.BatchStatusApplying,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateConflict
	}
	return nil
}

// FinishBatch records the terminal outcome of an apply run
func (r *BatchRepository) FinishBatch(ctx context.Context, batch *models.PriceChangeBatch, status string, applyErrors []byte) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":        status,
		"applied_at":    now,
		"applied_count": batch.AppliedCount,
		"failed_count":  batch.FailedCount,
		"skipped_count": batch.SkippedCount,
		"updated_at":    now,
	}
	if applyErrors != nil {
		updates["apply_errors"] = applyErrors
	}

	result := r.db.WithContext(ctx).Model(&models.PriceChangeBatch{}).
		Where("id = ? AND status = ?", batch.ID, models.BatchStatusApplying).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateConflict
	}
	batch.Status = status
	batch.AppliedAt = &now
	return nil
}

// CancelBatch cancels a batch that has not started applying
func (r *BatchRepository) CancelBatch(ctx context.Context, id uuid.UUID, cancelledBy uuid.UUID) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.PriceChangeBatch{}).
		Where("id = ? AND status IN ?", id, []string{models.BatchStatusDraft, models.BatchStatusConfirmed}).
		Updates(map[string]interface{}{
			"status":       models.BatchStatusCancelled,
			"cancelled_at": now,
			"cancelled_by": cancelledBy,
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateConflict
	}
	return nil
}

// MarkReverted flags a completed batch as reverted and links the reversal batch
func (r *BatchRepository) MarkReverted(ctx context.Context, id uuid.UUID, revertedBy uuid.UUID, revertBatchID uuid.UUID) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.PriceChangeBatch{}).
		Where("id = ? AND status = ? AND reverted = false", id, models.BatchStatusCompleted).
		Updates(map[string]interface{}{
			"reverted":        true,
			"reverted_at":     now,
			"reverted_by":     revertedBy,
			"revert_batch_id": revertBatchID,
			"updated_at":      now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateConflict
	}
	return nil
}

// ListItems retrieves items of a batch with optional filters
func (r *BatchRepository) ListItems(ctx context.Context, batchID uuid.UUID, filter ItemFilter, limit, offset int) ([]models.PriceChangeItem, int64, error) {
	var items []models.PriceChangeItem
	var total int64

	query := r.db.WithContext(ctx).Model(&models.PriceChangeItem{}).
		Where("batch_id = ?", batchID)

	if filter.SafetyLevel != "" && filter.SafetyLevel != "all" {
		query = query.Where("safety_level = ?", filter.SafetyLevel)
	}
	if filter.Status != "" && filter.Status != "all" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("nm_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error

	return items, total, err
}

// ListPendingItems returns the items still awaiting apply, in the stable
// nm_id order chunks are cut from.
func (r *BatchRepository) ListPendingItems(ctx context.Context, batchID uuid.UUID) ([]models.PriceChangeItem, error) {
	var items []models.PriceChangeItem
	err := r.db.WithContext(ctx).
		Where("batch_id = ? AND status = ?", batchID, models.ItemStatusPending).
		Order("nm_id ASC").
		Find(&items).Error
	return items, err
}

// MarkItemsSkipped marks pending items skipped with a shared reason
func (r *BatchRepository) MarkItemsSkipped(ctx context.Context, batchID uuid.UUID, itemIDs []uuid.UUID, reason string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.PriceChangeItem{}).
		Where("batch_id = ? AND id IN ? AND status = ?", batchID, itemIDs, models.ItemStatusPending).
		Updates(map[string]interface{}{
			"status":        models.ItemStatusSkipped,
			"error_message": reason,
			"updated_at":    time.Now(),
		}).Error
}

// MarkItemsApplied marks pending items applied
func (r *BatchRepository) MarkItemsApplied(ctx context.Context, batchID uuid.UUID, itemIDs []uuid.UUID, appliedAt time.Time) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.PriceChangeItem{}).
		Where("batch_id = ? AND id IN ? AND status = ?", batchID, itemIDs, models.ItemStatusPending).
		Updates(map[string]interface{}{
			"status":     models.ItemStatusApplied,
			"applied_at": appliedAt,
			"updated_at": time.Now(),
		}).Error
}

// MarkItemFailed records a per-item failure
func (r *BatchRepository) MarkItemFailed(ctx context.Context, batchID uuid.UUID, itemID uuid.UUID, errorMessage string) error {
	return r.db.WithContext(ctx).Model(&models.PriceChangeItem{}).
		Where("batch_id = ? AND id = ? AND status = ?", batchID, itemID, models.ItemStatusPending).
		Updates(map[string]interface{}{
			"status":        models.ItemStatusFailed,
			"error_message": errorMessage,
			"updated_at":    time.Now(),
		}).Error
}

// MarkItemsFailed marks a whole chunk's pending items failed with one reason
func (r *BatchRepository) MarkItemsFailed(ctx context.Context, batchID uuid.UUID, itemIDs []uuid.UUID, errorMessage string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.PriceChangeItem{}).
		Where("batch_id = ? AND id IN ? AND status = ?", batchID, itemIDs, models.ItemStatusPending).
		Updates(map[string]interface{}{
			"status":        models.ItemStatusFailed,
			"error_message": errorMessage,
			"updated_at":    time.Now(),
		}).Error
}

// UpdateBatchCounters persists the per-level and per-status aggregates
func (r *BatchRepository) UpdateBatchCounters(ctx context.Context, batch *models.PriceChangeBatch) error {
	return r.db.WithContext(ctx).Model(&models.PriceChangeBatch{}).
		Where("id = ?", batch.ID).
		Updates(map[string]interface{}{
			"total_items":           batch.TotalItems,
			"safe_count":            batch.SafeCount,
			"warning_count":         batch.WarningCount,
			"dangerous_count":       batch.DangerousCount,
			"applied_count":         batch.AppliedCount,
			"failed_count":          batch.FailedCount,
			"skipped_count":         batch.SkippedCount,
			"has_safe_changes":      batch.HasSafeChanges,
			"has_warning_changes":   batch.HasWarningChanges,
			"has_dangerous_changes": batch.HasDangerousChanges,
			"updated_at":            time.Now(),
		}).Error
}

// CreateApplyLog records one chunk submission
func (r *BatchRepository) CreateApplyLog(ctx context.Context, log *models.PriceApplyLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// ListApplyLogs retrieves the chunk log for a batch in submission order
func (r *BatchRepository) ListApplyLogs(ctx context.Context, batchID uuid.UUID) ([]models.PriceApplyLog, error) {
	var logs []models.PriceApplyLog
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("chunk_index ASC, created_at ASC").
		Find(&logs).Error
	return logs, err
}

// CreatePriceHistory inserts history rows for applied changes
func (r *BatchRepository) CreatePriceHistory(ctx context.Context, entries []models.PriceHistory) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

// ListPriceHistory retrieves applied price changes, newest first
func (r *BatchRepository) ListPriceHistory(ctx context.Context, tenantID string, filter HistoryFilter, limit, offset int) ([]models.PriceHistory, int64, error) {
	var entries []models.PriceHistory
	var total int64

	query := r.db.WithContext(ctx).Model(&models.PriceHistory{}).
		Where("tenant_id = ?", tenantID)

	if filter.SellerID != nil {
		query = query.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.BatchID != nil {
		query = query.Where("batch_id = ?", *filter.BatchID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error

	return entries, total, err
}
