package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type ProductFilter struct {
	Q     string `form:"q"`
	Page  int    `form:"page,default=1"   validate:"min=1"`
	Limit int    `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductResponse struct {
	ID           string           `json:"id"`
	StockCode    string           `json:"stock_code"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	SKU          string           `json:"sku"`
	Barcode      string           `json:"barcode,omitempty"`
	Price        decimal.Decimal  `json:"price"`
	Origin       *string          `json:"origin"`
	Length       *decimal.Decimal `json:"length"`
	Width        *decimal.Decimal `json:"width"`
	Size         string           `json:"size"`
	StockLevel   int              `json:"stock_level"`
	LastModified *time.Time       `json:"last_modified"`
	LastSyncedAt *time.Time       `json:"last_synced_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type ProductListResponse struct {
	Data       []ProductResponse `json:"data"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}
