package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"pricing-service/internal/models"
)

// Cache TTL constants
const (
	ProductCacheTTL = 5 * time.Minute
)

// ProductFilter narrows ListProducts results.
type ProductFilter struct {
	Search     string
	Brand      string
	Category   string
	ActiveOnly bool
}

// ProductsRepositoryInterface defines catalog read and price write operations.
type ProductsRepositoryInterface interface {
	GetProductsByNmIDs(ctx context.Context, tenantID string, sellerID uuid.UUID, nmIDs []int64) ([]models.Product, error)
	ListProducts(ctx context.Context, tenantID string, sellerID uuid.UUID, filter ProductFilter, limit, offset int) ([]models.Product, int64, error)
	GetProductByNmID(ctx context.Context, tenantID string, sellerID uuid.UUID, nmID int64) (*models.Product, error)
	UpdateProductPrice(ctx context.Context, tenantID string, productID uuid.UUID, price float64, discount int, discountPrice float64) error
}

// ProductsRepository reads the catalog with a Redis read-through cache in
// front of single-product lookups. Price writes invalidate the cached entry.
type ProductsRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewProductsRepository creates a new ProductsRepository. The Redis client is
// optional; a nil client disables caching.
func NewProductsRepository(db *gorm.DB, redis *redis.Client) *ProductsRepository {
	return &ProductsRepository{db: db, redis: redis}
}

func productCacheKey(tenantID string, nmID int64) string {
	return fmt.Sprintf("pricing:product:%s:%d", tenantID, nmID)
}

// GetProductsByNmIDs fetches the requested products in a single query,
// ordered by nm_id. Missing nm_ids are simply absent from the result.
func (r *ProductsRepository) GetProductsByNmIDs(ctx context.Context, tenantID string, sellerID uuid.UUID, nmIDs []int64) ([]models.Product, error) {
	if len(nmIDs) == 0 {
		return []models.Product{}, nil
	}

	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND seller_id = ? AND nm_id IN ?", tenantID, sellerID, nmIDs).
		Order("nm_id ASC").
		Find(&products).Error
	return products, err
}

// GetProductByNmID retrieves a single product with caching
func (r *ProductsRepository) GetProductByNmID(ctx context.Context, tenantID string, sellerID uuid.UUID, nmID int64) (*models.Product, error) {
	cacheKey := productCacheKey(tenantID, nmID)

	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var product models.Product
			if err := json.Unmarshal([]byte(val), &product); err == nil && product.SellerID == sellerID {
				return &product, nil
			}
		}
	}

	var product models.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND seller_id = ? AND nm_id = ?", tenantID, sellerID, nmID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(product); err == nil {
			r.redis.Set(ctx, cacheKey, data, ProductCacheTTL)
		}
	}

	return &product, nil
}

// ListProducts retrieves catalog products with search and facet filters
func (r *ProductsRepository) ListProducts(ctx context.Context, tenantID string, sellerID uuid.UUID, filter ProductFilter, limit, offset int) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("tenant_id = ? AND seller_id = ?", tenantID, sellerID)

	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("title ILIKE ? OR vendor_code ILIKE ?", like, like)
	}
	if filter.Brand != "" {
		query = query.Where("brand = ?", filter.Brand)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = true")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("nm_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&products).Error

	return products, total, err
}

// UpdateProductPrice writes the applied price back to the catalog row and
// drops the cached entry.
func (r *ProductsRepository) UpdateProductPrice(ctx context.Context, tenantID string, productID uuid.UUID, price float64, discount int, discountPrice float64) error {
	var product models.Product
	err := r.db.WithContext(ctx).
		Select("nm_id").
		Where("tenant_id = ? AND id = ?", tenantID, productID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	result := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("tenant_id = ? AND id = ?", tenantID, productID).
		Updates(map[string]interface{}{
			"price":          price,
			"discount":       discount,
			"discount_price": discountPrice,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}

	if r.redis != nil {
		r.redis.Del(ctx, productCacheKey(tenantID, product.NmID))
	}
	return nil
}
