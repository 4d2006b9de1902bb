package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// PriceApplyLog records one chunk submission to the marketplace pricing API,
// successful or not. Chunk boundaries are deterministic for a given batch, so
// these rows reconstruct exactly what was sent and when.
type PriceApplyLog struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID string    `gorm:"type:varchar(255);not null;index" json:"tenantId"`
	BatchID  uuid.UUID `gorm:"type:uuid;not null;index" json:"batchId"`

	ChunkIndex int           `gorm:"not null" json:"chunkIndex"`
	NmIDs      pq.Int64Array `gorm:"type:bigint[]" json:"nmIds"`
	ItemCount  int           `gorm:"not null" json:"itemCount"`

	Success      bool   `gorm:"not null;default:false" json:"success"`
	ErrorMessage string `gorm:"type:text" json:"errorMessage,omitempty"`
	DurationMs   int64  `gorm:"not null;default:0" json:"durationMs"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for PriceApplyLog
func (PriceApplyLog) TableName() string {
	return "price_apply_logs"
}

// PriceHistory is one applied price change on a product, written only after a
// confirmed marketplace success for that item.
type PriceHistory struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID  string    `gorm:"type:varchar(255);not null;index" json:"tenantId"`
	SellerID  uuid.UUID `gorm:"type:uuid;not null;index" json:"sellerId"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"productId"`
	BatchID   *uuid.UUID `gorm:"type:uuid;index" json:"batchId,omitempty"`

	OldPrice      float64 `gorm:"not null;default:0" json:"oldPrice"`
	NewPrice      float64 `gorm:"not null;default:0" json:"newPrice"`
	ChangePercent float64 `gorm:"not null;default:0" json:"changePercent"`
	Source        string  `gorm:"type:varchar(30);not null;default:'batch'" json:"source"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

// TableName returns the table name for PriceHistory
func (PriceHistory) TableName() string {
	return "price_history"
}

// SuspiciousPriceChange flags a price movement detected outside this engine
// (e.g. by the external sync) whose magnitude exceeds the seller's warning
// threshold. It has its own review lifecycle and is not part of the batch
// state machine.
type SuspiciousPriceChange struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID  string    `gorm:"type:varchar(255);not null;index" json:"tenantId"`
	SellerID  uuid.UUID `gorm:"type:uuid;not null;index" json:"sellerId"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"productId"`
	NmID      int64     `gorm:"not null;index" json:"nmId"`

	OldPrice      float64 `gorm:"not null;default:0" json:"oldPrice"`
	NewPrice      float64 `gorm:"not null;default:0" json:"newPrice"`
	ChangePercent float64 `gorm:"not null;default:0" json:"changePercent"`

	Reason   string         `gorm:"type:varchar(500)" json:"reason,omitempty"`
	Source   string         `gorm:"type:varchar(50);not null;default:'external_sync'" json:"source"`
	Metadata datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`

	IsReviewed bool       `gorm:"not null;default:false;index" json:"isReviewed"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
	ReviewedBy *uuid.UUID `gorm:"type:uuid" json:"reviewedBy,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

// TableName returns the table name for SuspiciousPriceChange
func (SuspiciousPriceChange) TableName() string {
	return "suspicious_price_changes"
}
