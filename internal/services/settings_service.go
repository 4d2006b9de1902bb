package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pricing-service/internal/models"
	"pricing-service/internal/repository"
)

var (
	ErrInvalidThresholds = errors.New("thresholds must satisfy 0 <= safe < warning")
	ErrInvalidMode       = errors.New("mode must be one of manual, auto_safe, auto_all")
)

// SettingsService resolves and updates per-seller safety settings.
type SettingsService struct {
	repo   repository.SettingsRepositoryInterface
	logger *logrus.Entry
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(repo repository.SettingsRepositoryInterface, logger *logrus.Logger) *SettingsService {
	return &SettingsService{
		repo:   repo,
		logger: logger.WithField("component", "settings-service"),
	}
}

// UpdateSettingsInput carries a full settings update. All fields are written;
// partial updates are resolved by the handler merging into the current state.
type UpdateSettingsInput struct {
	IsEnabled                  bool    `json:"isEnabled"`
	SafeThresholdPercent       float64 `json:"safeThresholdPercent"`
	WarningThresholdPercent    float64 `json:"warningThresholdPercent"`
	Mode                       string  `json:"mode"`
	RequireCommentForDangerous bool    `json:"requireCommentForDangerous"`
	AllowBulkDangerous         bool    `json:"allowBulkDangerous"`
	MaxProductsPerBatch        int     `json:"maxProductsPerBatch"`
	AllowUnlimitedBatch        bool    `json:"allowUnlimitedBatch"`
	NotifyOnDangerous          bool    `json:"notifyOnDangerous"`
	NotifyEmail                string  `json:"notifyEmail"`
}

// Resolve returns the seller's effective settings. A seller without a
// persisted row gets the documented defaults; the defaults are not saved.
func (s *SettingsService) Resolve(ctx context.Context, tenantID string, sellerID uuid.UUID) (*models.PriceSafetySettings, error) {
	settings, err := s.repo.GetSettings(ctx, tenantID, sellerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.DefaultSafetySettings(tenantID, sellerID), nil
		}
		return nil, err
	}
	return settings, nil
}

// Update validates and persists the seller's settings, creating the row on
// first save.
func (s *SettingsService) Update(ctx context.Context, tenantID string, sellerID uuid.UUID, input UpdateSettingsInput) (*models.PriceSafetySettings, error) {
	if input.SafeThresholdPercent < 0 || input.SafeThresholdPercent >= input.WarningThresholdPercent {
		return nil, ErrInvalidThresholds
	}
	switch input.Mode {
	case models.ModeManual, models.ModeAutoSafe, models.ModeAutoAll:
	default:
		return nil, ErrInvalidMode
	}

	maxPerBatch := input.MaxProductsPerBatch
	if maxPerBatch <= 0 {
		maxPerBatch = models.DefaultMaxProductsPerBatch
	}

	settings := &models.PriceSafetySettings{
		TenantID:                   tenantID,
		SellerID:                   sellerID,
		IsEnabled:                  input.IsEnabled,
		SafeThresholdPercent:       input.SafeThresholdPercent,
		WarningThresholdPercent:    input.WarningThresholdPercent,
		Mode:                       input.Mode,
		RequireCommentForDangerous: input.RequireCommentForDangerous,
		AllowBulkDangerous:         input.AllowBulkDangerous,
		MaxProductsPerBatch:        maxPerBatch,
		AllowUnlimitedBatch:        input.AllowUnlimitedBatch,
		NotifyOnDangerous:          input.NotifyOnDangerous,
		NotifyEmail:                input.NotifyEmail,
	}

	if err := s.repo.UpsertSettings(ctx, settings); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"tenantID": tenantID,
		"sellerID": sellerID,
		"mode":     settings.Mode,
	}).Info("Price safety settings updated")

	return settings, nil
}
