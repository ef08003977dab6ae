package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Product is the local projection of an upstream catalog item.
// StockCode is the natural key; every sync upserts by it.
type Product struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	StockCode    string           `gorm:"uniqueIndex;not null" json:"stock_code"`
	ExternalID   string           `gorm:"index" json:"external_id,omitempty"`
	Name         string           `gorm:"index;not null" json:"name"`
	Description  string           `json:"description"`
	SKU          string           `gorm:"index" json:"sku"`
	Barcode      string           `gorm:"index" json:"barcode,omitempty"`
	Price        decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"price"`
	Origin       *string          `json:"origin,omitempty"`
	Length       *decimal.Decimal `gorm:"type:decimal(10,3)" json:"length,omitempty"`
	Width        *decimal.Decimal `gorm:"type:decimal(10,3)" json:"width,omitempty"`
	Size         string           `json:"size"`
	StockLevel   int              `gorm:"not null;default:0" json:"stock_level"`
	LastModified *time.Time       `json:"last_modified,omitempty"`

	// RawExtraFields keeps the upstream extra-field collection as received.
	RawExtraFields datatypes.JSON `json:"-"`
	LastSyncedAt   *time.Time     `json:"last_synced_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// SameAttributes reports whether o carries the same synced attribute set as p.
// Timestamps and the raw payload are ignored.
func (p *Product) SameAttributes(o *Product) bool {
	return p.StockCode == o.StockCode &&
		p.ExternalID == o.ExternalID &&
		p.Name == o.Name &&
		p.Description == o.Description &&
		p.SKU == o.SKU &&
		p.Barcode == o.Barcode &&
		p.Price.Equal(o.Price) &&
		equalStringPtr(p.Origin, o.Origin) &&
		equalDecimalPtr(p.Length, o.Length) &&
		equalDecimalPtr(p.Width, o.Width) &&
		p.Size == o.Size &&
		p.StockLevel == o.StockLevel &&
		equalTimePtr(p.LastModified, o.LastModified)
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalDecimalPtr(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
