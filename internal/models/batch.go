package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Batch status constants. A batch moves strictly forward:
// draft -> confirmed -> applying -> completed | failed. Cancelled is reachable
// from draft/confirmed only. Reverted is an orthogonal flag on terminal
// batches, not a status.
const (
	BatchStatusDraft     = "draft"
	BatchStatusConfirmed = "confirmed"
	BatchStatusApplying  = "applying"
	BatchStatusCompleted = "completed"
	BatchStatusFailed    = "failed"
	BatchStatusCancelled = "cancelled"
)

// Change type constants
const (
	ChangeTypePercent     = "percent"
	ChangeTypeFixedDelta  = "fixed_delta"
	ChangeTypeFormula     = "formula"
	ChangeTypeTargetPrice = "target_price"
	ChangeTypeRevert      = "revert"
)

// PriceChangeBatch is one atomic unit of proposed price changes across
// multiple products. Aggregate counts are derived from items and cached here;
// they are recomputed whenever item states change.
type PriceChangeBatch struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID string    `gorm:"type:varchar(255);not null;index" json:"tenantId"`
	SellerID uuid.UUID `gorm:"type:uuid;not null;index:idx_price_batch_seller_status" json:"sellerId"`

	Name        string `gorm:"type:varchar(200)" json:"name,omitempty"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	ChangeType    string   `gorm:"type:varchar(50);not null" json:"changeType"`
	ChangeValue   *float64 `json:"changeValue,omitempty"`
	ChangeFormula string   `gorm:"type:varchar(500)" json:"changeFormula,omitempty"`

	Status string `gorm:"type:varchar(30);not null;default:'draft';index:idx_price_batch_seller_status" json:"status"`

	// Cached aggregates, derived from items
	TotalItems     int `gorm:"not null;default:0" json:"totalItems"`
	SafeCount      int `gorm:"not null;default:0" json:"safeCount"`
	WarningCount   int `gorm:"not null;default:0" json:"warningCount"`
	DangerousCount int `gorm:"not null;default:0" json:"dangerousCount"`
	AppliedCount   int `gorm:"not null;default:0" json:"appliedCount"`
	FailedCount    int `gorm:"not null;default:0" json:"failedCount"`
	SkippedCount   int `gorm:"not null;default:0" json:"skippedCount"`

	HasSafeChanges      bool `gorm:"not null;default:false" json:"hasSafeChanges"`
	HasWarningChanges   bool `gorm:"not null;default:false" json:"hasWarningChanges"`
	HasDangerousChanges bool `gorm:"not null;default:false" json:"hasDangerousChanges"`

	// Confirmation metadata
	ConfirmedAt         *time.Time `json:"confirmedAt,omitempty"`
	ConfirmedBy         *uuid.UUID `gorm:"type:uuid" json:"confirmedBy,omitempty"`
	ConfirmationComment string     `gorm:"type:text" json:"confirmationComment,omitempty"`

	// Cancellation metadata
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	CancelledBy *uuid.UUID `gorm:"type:uuid" json:"cancelledBy,omitempty"`

	// Application metadata
	AppliedAt   *time.Time     `json:"appliedAt,omitempty"`
	ApplyErrors datatypes.JSON `gorm:"type:jsonb" json:"applyErrors,omitempty"`

	// Reversal linkage. RevertBatchID points from a completed batch to the
	// batch that reverses it; RevertsBatchID is the back-reference on the
	// reversal batch itself.
	Reverted       bool       `gorm:"not null;default:false" json:"reverted"`
	RevertedAt     *time.Time `json:"revertedAt,omitempty"`
	RevertedBy     *uuid.UUID `gorm:"type:uuid" json:"revertedBy,omitempty"`
	RevertBatchID  *uuid.UUID `gorm:"type:uuid" json:"revertBatchId,omitempty"`
	RevertsBatchID *uuid.UUID `gorm:"type:uuid" json:"revertsBatchId,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	// Relations
	Items []PriceChangeItem `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// TableName returns the table name for PriceChangeBatch
func (PriceChangeBatch) TableName() string {
	return "price_change_batches"
}

// IsTerminal returns true if the batch status is a terminal state
func (b *PriceChangeBatch) IsTerminal() bool {
	return b.Status == BatchStatusCompleted ||
		b.Status == BatchStatusFailed ||
		b.Status == BatchStatusCancelled
}

// CanConfirm reports whether the batch is still waiting for confirmation
func (b *PriceChangeBatch) CanConfirm() bool {
	return b.Status == BatchStatusDraft
}

// CanApply reports whether apply may be invoked. Applying is included so a
// restarted apply can resume its own batch.
func (b *PriceChangeBatch) CanApply() bool {
	return b.Status == BatchStatusConfirmed || b.Status == BatchStatusApplying
}

// CanRevert reports whether the batch is eligible for reversal
func (b *PriceChangeBatch) CanRevert() bool {
	return b.Status == BatchStatusCompleted && !b.Reverted
}

// CanCancel reports whether the batch may still be abandoned
func (b *PriceChangeBatch) CanCancel() bool {
	return b.Status == BatchStatusDraft || b.Status == BatchStatusConfirmed
}

// RecomputeAggregates refreshes the cached counters from the given items
func (b *PriceChangeBatch) RecomputeAggregates(items []PriceChangeItem) {
	b.TotalItems = len(items)
	b.SafeCount = 0
	b.WarningCount = 0
	b.DangerousCount = 0
	b.AppliedCount = 0
	b.FailedCount = 0
	b.SkippedCount = 0

	for i := range items {
		switch items[i].SafetyLevel {
		case SafetySafe:
			b.SafeCount++
		case SafetyWarning:
			b.WarningCount++
		case SafetyDangerous:
			b.DangerousCount++
		}
		switch items[i].Status {
		case ItemStatusApplied:
			b.AppliedCount++
		case ItemStatusFailed:
			b.FailedCount++
		case ItemStatusSkipped:
			b.SkippedCount++
		}
	}

	b.HasSafeChanges = b.SafeCount > 0
	b.HasWarningChanges = b.WarningCount > 0
	b.HasDangerousChanges = b.DangerousCount > 0
}
