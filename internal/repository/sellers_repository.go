package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pricing-service/internal/models"
)

// SellersRepositoryInterface defines seller account lookups.
type SellersRepositoryInterface interface {
	GetSellerByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.Seller, error)
	ListSellers(ctx context.Context, tenantID string) ([]models.Seller, error)
}

// SellersRepository is the GORM implementation of SellersRepositoryInterface.
type SellersRepository struct {
	db *gorm.DB
}

// NewSellersRepository creates a new SellersRepository
func NewSellersRepository(db *gorm.DB) *SellersRepository {
	return &SellersRepository{db: db}
}

// GetSellerByID retrieves a seller scoped to a tenant
func (r *SellersRepository) GetSellerByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.Seller, error) {
	var seller models.Seller
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&seller).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &seller, nil
}

// ListSellers retrieves active sellers for a tenant
func (r *SellersRepository) ListSellers(ctx context.Context, tenantID string) ([]models.Seller, error) {
	var sellers []models.Seller
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = true", tenantID).
		Order("company_name ASC").
		Find(&sellers).Error
	return sellers, err
}
