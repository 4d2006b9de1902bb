package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pricing-service/internal/models"
)

// SettingsRepositoryInterface defines database operations for per-seller
// safety settings.
type SettingsRepositoryInterface interface {
	GetSettings(ctx context.Context, tenantID string, sellerID uuid.UUID) (*models.PriceSafetySettings, error)
	UpsertSettings(ctx context.Context, settings *models.PriceSafetySettings) error
}

// SettingsRepository is the GORM implementation of SettingsRepositoryInterface.
type SettingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSettings retrieves a seller's settings row. ErrNotFound means the seller
// has never saved settings; callers fall back to defaults.
func (r *SettingsRepository) GetSettings(ctx context.Context, tenantID string, sellerID uuid.UUID) (*models.PriceSafetySettings, error) {
	var settings models.PriceSafetySettings
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND seller_id = ?", tenantID, sellerID).
		First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &settings, nil
}

// UpsertSettings creates the settings row on first save, updates it afterwards
func (r *SettingsRepository) UpsertSettings(ctx context.Context, settings *models.PriceSafetySettings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "seller_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"is_enabled",
				"safe_threshold_percent",
				"warning_threshold_percent",
				"mode",
				"require_comment_for_dangerous",
				"allow_bulk_dangerous",
				"max_products_per_batch",
				"allow_unlimited_batch",
				"notify_on_dangerous",
				"notify_email",
				"updated_at",
			}),
		}).
		Create(settings).Error
}
