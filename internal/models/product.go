package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the slice of the catalog this engine touches: the marketplace
// card identity plus the current price/discount snapshot. Prices are whole
// rubles (the marketplace rejects fractional prices); DiscountPrice is the
// price after the marketplace's own discount is applied.
type Product struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID string    `gorm:"type:varchar(255);not null;index" json:"tenantId"`
	SellerID uuid.UUID `gorm:"type:uuid;not null;index" json:"sellerId"`

	// Marketplace card identity
	NmID       int64  `gorm:"not null;index" json:"nmId"`
	VendorCode string `gorm:"type:varchar(100)" json:"vendorCode"`
	Title      string `gorm:"type:varchar(500)" json:"title"`
	Brand      string `gorm:"type:varchar(200);index" json:"brand,omitempty"`
	Category   string `gorm:"type:varchar(200);index" json:"category,omitempty"`

	Price         float64 `gorm:"not null;default:0" json:"price"`
	Discount      int     `gorm:"not null;default:0" json:"discount"`
	DiscountPrice float64 `gorm:"not null;default:0" json:"discountPrice"`

	IsActive  bool      `gorm:"not null;default:true;index" json:"isActive"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for Product
func (Product) TableName() string {
	return "products"
}
