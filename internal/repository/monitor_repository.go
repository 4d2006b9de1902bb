package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pricing-service/internal/models"
)

// SuspiciousFilter narrows ListSuspicious results.
type SuspiciousFilter struct {
	SellerID   *uuid.UUID
	OnlyUnread bool
}

// MonitorRepositoryInterface defines storage for externally detected price
// anomalies and their review lifecycle.
type MonitorRepositoryInterface interface {
	CreateSuspicious(ctx context.Context, change *models.SuspiciousPriceChange) error
	ListSuspicious(ctx context.Context, tenantID string, filter SuspiciousFilter, limit, offset int) ([]models.SuspiciousPriceChange, int64, error)
	MarkReviewed(ctx context.Context, tenantID string, id uuid.UUID, reviewedBy uuid.UUID) error
}

// MonitorRepository is the GORM implementation of MonitorRepositoryInterface.
type MonitorRepository struct {
	db *gorm.DB
}

// NewMonitorRepository creates a new MonitorRepository
func NewMonitorRepository(db *gorm.DB) *MonitorRepository {
	return &MonitorRepository{db: db}
}

// CreateSuspicious records one detected anomaly
func (r *MonitorRepository) CreateSuspicious(ctx context.Context, change *models.SuspiciousPriceChange) error {
	return r.db.WithContext(ctx).Create(change).Error
}

// ListSuspicious retrieves anomalies for a tenant, newest first
func (r *MonitorRepository) ListSuspicious(ctx context.Context, tenantID string, filter SuspiciousFilter, limit, offset int) ([]models.SuspiciousPriceChange, int64, error) {
	var changes []models.SuspiciousPriceChange
	var total int64

	query := r.db.WithContext(ctx).Model(&models.SuspiciousPriceChange{}).
		Where("tenant_id = ?", tenantID)

	if filter.SellerID != nil {
		query = query.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.OnlyUnread {
		query = query.Where("is_reviewed = false")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&changes).Error

	return changes, total, err
}

// MarkReviewed closes out an anomaly
func (r *MonitorRepository) MarkReviewed(ctx context.Context, tenantID string, id uuid.UUID, reviewedBy uuid.UUID) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.SuspiciousPriceChange{}).
		Where("tenant_id = ? AND id = ? AND is_reviewed = false", tenantID, id).
		Updates(map[string]interface{}{
			"is_reviewed": true,
			"reviewed_at": now,
			"reviewed_by": reviewedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
