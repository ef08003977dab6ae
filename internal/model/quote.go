package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	QuoteStatusDraft = "DRAFT"
	QuoteStatusSent  = "SENT"
)

// Quote is a customer-facing price quotation. Subtotal, Tax and Total are
// always derived from Items and never written directly by callers.
type Quote struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	ShareToken    string    `gorm:"size:64;uniqueIndex;not null"`
	CustomerName  *string
	CustomerEmail *string
	Notes         *string
	Currency      string          `gorm:"size:3;not null;default:'EUR'"`
	Status        string          `gorm:"size:10;not null;default:'DRAFT'"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Tax           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	SentAt        *time.Time
	SentTo        *string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Items []QuoteItem `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE"`
}

func (q *Quote) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// QuoteItem is a priced line. StockCode, Name and Price are snapshots taken
// when the line was first added.
type QuoteItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	QuoteID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID *uuid.UUID      `gorm:"type:uuid;index"`
	StockCode string          `gorm:"not null"`
	Name      string          `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Qty       int             `gorm:"not null"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Position  int             `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (i *QuoteItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
