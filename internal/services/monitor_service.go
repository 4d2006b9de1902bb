package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"pricing-service/internal/models"
	"pricing-service/internal/pricing"
	"pricing-service/internal/repository"
)

var ErrSuspiciousNotFound = errors.New("suspicious price change not found")

// MonitorService records price movements detected outside the batch engine
// (external sync, marketplace-side edits) and flags those whose magnitude
// exceeds the seller's warning threshold for manual review.
type MonitorService struct {
	repo     repository.MonitorRepositoryInterface
	settings *SettingsService
	logger   *logrus.Entry
}

// NewMonitorService creates a new MonitorService
func NewMonitorService(repo repository.MonitorRepositoryInterface, settings *SettingsService, logger *logrus.Logger) *MonitorService {
	return &MonitorService{
		repo:     repo,
		settings: settings,
		logger:   logger.WithField("component", "monitor-service"),
	}
}

// ExternalChangeInput describes one observed price movement.
type ExternalChangeInput struct {
	SellerID  uuid.UUID      `json:"sellerId" binding:"required"`
	ProductID uuid.UUID      `json:"productId" binding:"required"`
	NmID      int64          `json:"nmId" binding:"required"`
	OldPrice  float64        `json:"oldPrice"`
	NewPrice  float64        `json:"newPrice"`
	Source    string         `json:"source"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
}

// RecordExternalChange classifies an observed movement against the seller's
// thresholds and records it when it is not safe. Returns the created record,
// or nil when the change was within the safe band.
func (s *MonitorService) RecordExternalChange(ctx context.Context, tenantID string, input ExternalChangeInput) (*models.SuspiciousPriceChange, error) {
	settings, err := s.settings.Resolve(ctx, tenantID, input.SellerID)
	if err != nil {
		return nil, err
	}

	level := pricing.Classify(input.OldPrice, input.NewPrice,
		settings.SafeThresholdPercent, settings.WarningThresholdPercent)
	if level == pricing.SafetySafe {
		return nil, nil
	}

	source := input.Source
	if source == "" {
		source = "external_sync"
	}

	percent := pricing.ChangePercent(input.OldPrice, input.NewPrice)
	change := &models.SuspiciousPriceChange{
		TenantID:      tenantID,
		SellerID:      input.SellerID,
		ProductID:     input.ProductID,
		NmID:          input.NmID,
		OldPrice:      input.OldPrice,
		NewPrice:      input.NewPrice,
		ChangePercent: percent,
		Reason:        fmt.Sprintf("change of %.1f%% classified %s, no originating batch", percent, level),
		Source:        source,
		Metadata:      input.Metadata,
	}

	if err := s.repo.CreateSuspicious(ctx, change); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"nmID":     input.NmID,
		"sellerID": input.SellerID,
		"percent":  change.ChangePercent,
		"level":    level,
	}).Warn("Suspicious external price change recorded")

	return change, nil
}

// ListSuspicious retrieves recorded anomalies for review
func (s *MonitorService) ListSuspicious(ctx context.Context, tenantID string, filter repository.SuspiciousFilter, limit, offset int) ([]models.SuspiciousPriceChange, int64, error) {
	return s.repo.ListSuspicious(ctx, tenantID, filter, limit, offset)
}

// MarkReviewed closes out an anomaly
func (s *MonitorService) MarkReviewed(ctx context.Context, tenantID string, id, reviewedBy uuid.UUID) error {
	if err := s.repo.MarkReviewed(ctx, tenantID, id, reviewedBy); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSuspiciousNotFound
		}
		return err
	}
	return nil
}
