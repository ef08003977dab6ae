package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OptionalString distinguishes an omitted JSON member from an explicit null.
// Set is true whenever the member was present; Value is nil for null.
type OptionalString struct {
	Set   bool
	Value *string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateQuoteRequest struct {
	CustomerName  *string `json:"customer_name"  validate:"omitempty,max=200"`
	CustomerEmail *string `json:"customer_email" validate:"omitempty,email"`
	Notes         *string `json:"notes"`
	Currency      *string `json:"currency"       validate:"omitempty,len=3"`
}

// UpdateQuoteRequest is a partial header update: omitted members are left
// untouched, explicit nulls clear the stored value.
type UpdateQuoteRequest struct {
	CustomerName  OptionalString `json:"customer_name"`
	CustomerEmail OptionalString `json:"customer_email"`
	Notes         OptionalString `json:"notes"`
	Status        OptionalString `json:"status"`
}

type AddItemRequest struct {
	StockCode string `json:"stock_code" validate:"required,max=120"`
	Qty       int    `json:"qty"        validate:"max=1000000"`
}

type UpdateItemRequest struct {
	Qty *int `json:"qty" validate:"required,max=1000000"`
}

type SendQuoteRequest struct {
	To *string `json:"to" validate:"omitempty,email"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type QuoteItemResponse struct {
	ID        string          `json:"id"`
	StockCode string          `json:"stock_code"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Position  int             `json:"position"`
}

type QuoteResponse struct {
	ID            string              `json:"id"`
	ShareToken    string              `json:"share_token,omitempty"`
	CustomerName  *string             `json:"customer_name"`
	CustomerEmail *string             `json:"customer_email"`
	Notes         *string             `json:"notes"`
	Currency      string              `json:"currency"`
	Status        string              `json:"status"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Tax           decimal.Decimal     `json:"tax"`
	Total         decimal.Decimal     `json:"total"`
	SentAt        *time.Time          `json:"sent_at"`
	SentTo        *string             `json:"sent_to"`
	Items         []QuoteItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type SendQuoteResponse struct {
	Status string    `json:"status"`
	SentTo string    `json:"sent_to"`
	SentAt time.Time `json:"sent_at"`
}
