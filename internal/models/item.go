package models

import (
	"time"

	"github.com/google/uuid"

	"pricing-service/internal/pricing"
)

// Safety tier constants. The tier is computed once at batch-build time from
// the seller's thresholds and never re-evaluated afterwards.
const (
	SafetySafe      = pricing.SafetySafe
	SafetyWarning   = pricing.SafetyWarning
	SafetyDangerous = pricing.SafetyDangerous
)

// Item status constants. Transitions are forward-only: pending items end as
// applied, failed or skipped and never move again within the same batch.
const (
	ItemStatusPending = "pending"
	ItemStatusApplied = "applied"
	ItemStatusFailed  = "failed"
	ItemStatusSkipped = "skipped"
)

// PriceChangeItem is one product's proposed change within a batch. Old values
// are a snapshot taken at build time; reversal uses these stored values, not a
// recomputation.
type PriceChangeItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	BatchID   uuid.UUID `gorm:"type:uuid;not null;index:idx_price_item_batch_status;index:idx_price_item_batch_safety" json:"batchId"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"productId"`

	// Product identity snapshot
	NmID         int64  `gorm:"not null;index" json:"nmId"`
	VendorCode   string `gorm:"type:varchar(100)" json:"vendorCode,omitempty"`
	ProductTitle string `gorm:"type:varchar(500)" json:"productTitle,omitempty"`

	// Current values at build time
	OldPrice         float64 `gorm:"not null;default:0" json:"oldPrice"`
	OldDiscount      int     `gorm:"not null;default:0" json:"oldDiscount"`
	OldDiscountPrice float64 `gorm:"not null;default:0" json:"oldDiscountPrice"`

	// Proposed values
	NewPrice         float64 `gorm:"not null;default:0" json:"newPrice"`
	NewDiscount      int     `gorm:"not null;default:0" json:"newDiscount"`
	NewDiscountPrice float64 `gorm:"not null;default:0" json:"newDiscountPrice"`

	PriceChangeAmount  float64 `gorm:"not null;default:0" json:"priceChangeAmount"`
	PriceChangePercent float64 `gorm:"not null;default:0" json:"priceChangePercent"`

	SafetyLevel string `gorm:"type:varchar(20);not null;default:'safe';index:idx_price_item_batch_safety" json:"safetyLevel"`

	Status       string `gorm:"type:varchar(20);not null;default:'pending';index:idx_price_item_batch_status" json:"status"`
	ErrorMessage string `gorm:"type:text" json:"errorMessage,omitempty"`

	AppliedAt *time.Time `json:"appliedAt,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for PriceChangeItem
func (PriceChangeItem) TableName() string {
	return "price_change_items"
}

// IsTerminal returns true if the item has reached a final state
func (i *PriceChangeItem) IsTerminal() bool {
	return i.Status == ItemStatusApplied ||
		i.Status == ItemStatusFailed ||
		i.Status == ItemStatusSkipped
}
