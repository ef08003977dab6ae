package repository

import (
	"context"

	"catalogsync/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuoteRepository persists quotes and their lines. Methods taking a tx use it
// when non-nil and fall back to the repository's own connection otherwise.
type QuoteRepository interface {
	Create(ctx context.Context, tx *gorm.DB, q *model.Quote) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Quote, error)
	// FindForUpdate loads the quote with its lines and row-locks it for the
	// rest of the transaction.
	FindForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Quote, error)
	// Save writes header and derived money fields; lines are written separately.
	Save(ctx context.Context, tx *gorm.DB, q *model.Quote) error

	CreateItem(ctx context.Context, tx *gorm.DB, item *model.QuoteItem) error
	UpdateItem(ctx context.Context, tx *gorm.DB, item *model.QuoteItem) error
	DeleteItem(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error

	DB() *gorm.DB
}

type quoteRepo struct{ db *gorm.DB }

func NewQuoteRepository(db *gorm.DB) QuoteRepository { return &quoteRepo{db: db} }

func (r *quoteRepo) DB() *gorm.DB { return r.db }

func (r *quoteRepo) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC").Order("created_at ASC")
}

func (r *quoteRepo) Create(ctx context.Context, tx *gorm.DB, q *model.Quote) error {
	return r.conn(ctx, tx).Omit("Items").Create(q).Error
}

func (r *quoteRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Quote, error) {
	var q model.Quote
	err := r.db.WithContext(ctx).Preload("Items", orderedItems).First(&q, "id = ?", id).Error
	return &q, err
}

func (r *quoteRepo) FindForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Quote, error) {
	var q model.Quote
	// sqlite ignores the locking clause; postgres takes a row lock.
	err := r.conn(ctx, tx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&q, "id = ?", id).Error
	if err != nil {
		return &q, err
	}
	err = orderedItems(r.conn(ctx, tx)).Where("quote_id = ?", id).Find(&q.Items).Error
	return &q, err
}

func (r *quoteRepo) Save(ctx context.Context, tx *gorm.DB, q *model.Quote) error {
	return r.conn(ctx, tx).Model(q).
		Select("customer_name", "customer_email", "notes", "currency", "status",
			"subtotal", "tax", "total", "sent_at", "sent_to", "updated_at").
		Updates(q).Error
}

func (r *quoteRepo) CreateItem(ctx context.Context, tx *gorm.DB, item *model.QuoteItem) error {
	return r.conn(ctx, tx).Create(item).Error
}

func (r *quoteRepo) UpdateItem(ctx context.Context, tx *gorm.DB, item *model.QuoteItem) error {
	return r.conn(ctx, tx).Model(item).
		Select("qty", "subtotal", "updated_at").
		Updates(item).Error
}

func (r *quoteRepo) DeleteItem(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error {
	return r.conn(ctx, tx).Delete(&model.QuoteItem{}, "id = ?", itemID).Error
}
