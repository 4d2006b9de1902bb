package models

import (
	"time"

	"github.com/google/uuid"
)

// Seller represents a marketplace seller account whose catalog this service
// manages. The Wildberries API key stored here is what the batch applier uses
// to push price updates.
type Seller struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID    string    `gorm:"type:varchar(255);not null;index" json:"tenantId"`
	CompanyName string    `gorm:"type:varchar(200);not null" json:"companyName"`
	WBApiKey    string    `gorm:"type:varchar(500)" json:"-"`
	WBSellerID  string    `gorm:"type:varchar(100)" json:"wbSellerId,omitempty"`
	IsActive    bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for Seller
func (Seller) TableName() string {
	return "sellers"
}

// HasValidAPIKey reports whether the seller has a usable marketplace API key
func (s *Seller) HasValidAPIKey() bool {
	return s.WBApiKey != ""
}
