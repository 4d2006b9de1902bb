package models

import (
	"time"

	"github.com/google/uuid"
)

// Safety mode constants control which risk tiers require human confirmation
// before a batch can be applied.
const (
	ModeManual   = "manual"    // every batch needs explicit confirmation
	ModeAutoSafe = "auto_safe" // batches containing only safe items auto-confirm
	ModeAutoAll  = "auto_all"  // every batch auto-confirms regardless of tier
)

// Default thresholds used when a seller has no settings row yet.
const (
	DefaultSafeThresholdPercent    = 5.0
	DefaultWarningThresholdPercent = 20.0
	DefaultMaxProductsPerBatch     = 100
)

// PriceSafetySettings holds the per-seller configuration for the safe price
// change engine. One row per seller, created lazily on first update; the
// resolver returns in-memory defaults when no row exists.
type PriceSafetySettings struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID string    `gorm:"type:varchar(255);not null;index" json:"tenantId"`
	SellerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"sellerId"`

	IsEnabled               bool    `gorm:"not null;default:true" json:"isEnabled"`
	SafeThresholdPercent    float64 `gorm:"not null;default:5" json:"safeThresholdPercent"`
	WarningThresholdPercent float64 `gorm:"not null;default:20" json:"warningThresholdPercent"`
	Mode                    string  `gorm:"type:varchar(20);not null;default:'manual'" json:"mode"`

	RequireCommentForDangerous bool `gorm:"not null;default:true" json:"requireCommentForDangerous"`
	AllowBulkDangerous         bool `gorm:"not null;default:false" json:"allowBulkDangerous"`
	MaxProductsPerBatch        int  `gorm:"not null;default:100" json:"maxProductsPerBatch"`
	AllowUnlimitedBatch        bool `gorm:"not null;default:false" json:"allowUnlimitedBatch"`

	NotifyOnDangerous bool   `gorm:"not null;default:true" json:"notifyOnDangerous"`
	NotifyEmail       string `gorm:"type:varchar(200)" json:"notifyEmail,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for PriceSafetySettings
func (PriceSafetySettings) TableName() string {
	return "price_safety_settings"
}

// DefaultSafetySettings returns the documented defaults for a seller without a
// persisted settings row. The returned value is not saved.
func DefaultSafetySettings(tenantID string, sellerID uuid.UUID) *PriceSafetySettings {
	return &PriceSafetySettings{
		TenantID:                   tenantID,
		SellerID:                   sellerID,
		IsEnabled:                  true,
		SafeThresholdPercent:       DefaultSafeThresholdPercent,
		WarningThresholdPercent:    DefaultWarningThresholdPercent,
		Mode:                       ModeManual,
		RequireCommentForDangerous: true,
		AllowBulkDangerous:         false,
		MaxProductsPerBatch:        DefaultMaxProductsPerBatch,
		NotifyOnDangerous:          true,
	}
}
