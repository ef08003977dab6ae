package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"catalogsync/internal/dto"
	"catalogsync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertOutcome tells the caller what an Upsert actually did.
type UpsertOutcome int

const (
	UpsertCreated UpsertOutcome = iota + 1
	UpsertUpdated
	UpsertUnchanged
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertCreated:
		return "created"
	case UpsertUpdated:
		return "updated"
	case UpsertUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// syncedColumns is the attribute set written on both insert and conflict.
var syncedColumns = []string{
	"external_id", "name", "description", "sku", "barcode", "price",
	"origin", "length", "width", "size", "stock_level", "last_modified",
	"raw_extra_fields", "last_synced_at", "updated_at",
}

// ProductRepository defines the data access contract for synced products.
type ProductRepository interface {
	// Upsert inserts or updates by StockCode. Rows whose synced attributes
	// are unchanged only get last_synced_at bumped.
	Upsert(ctx context.Context, p *model.Product) (UpsertOutcome, error)
	FindByStockCode(ctx context.Context, code string) (*model.Product, error)
	List(ctx context.Context, filter dto.ProductFilter) ([]model.Product, int64, error)
	// ListAll returns the whole catalog ordered by stock code (XLSX export).
	ListAll(ctx context.Context) ([]model.Product, error)
	DB() *gorm.DB
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) DB() *gorm.DB { return r.db }

func (r *productRepo) Upsert(ctx context.Context, p *model.Product) (UpsertOutcome, error) {
	now := time.Now().UTC()
	db := r.db.WithContext(ctx)

	var existing model.Product
	err := db.Where("stock_code = ?", p.StockCode).First(&existing).Error
	switch {
	case err == nil:
		if existing.SameAttributes(p) {
			if err := db.Model(&model.Product{}).Where("id = ?", existing.ID).
				UpdateColumn("last_synced_at", now).Error; err != nil {
				return 0, err
			}
			*p = existing
			p.LastSyncedAt = &now
			return UpsertUnchanged, nil
		}
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		p.LastSyncedAt = &now
		p.UpdatedAt = now
		if err := db.Model(p).Select(syncedColumns).Updates(p).Error; err != nil {
			return 0, err
		}
		return UpsertUpdated, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return 0, err
	}

	// a concurrent insert of the same code turns into an update
	p.LastSyncedAt = &now
	p.UpdatedAt = now
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stock_code"}},
		DoUpdates: clause.AssignmentColumns(syncedColumns),
	}).Create(p).Error
	if err != nil {
		return 0, err
	}
	return UpsertCreated, nil
}

func (r *productRepo) FindByStockCode(ctx context.Context, code string) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("stock_code = ?", code).First(&p).Error
	return &p, err
}

// likeEscaper makes user input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func (r *productRepo) List(ctx context.Context, filter dto.ProductFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Product{})
	if term := strings.TrimSpace(filter.Q); term != "" {
		// LOWER/LIKE instead of ILIKE so the same query runs on sqlite.
		like := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
		q = q.Where(`LOWER(stock_code) LIKE ? ESCAPE '\' OR LOWER(sku) LIKE ? ESCAPE '\' OR `+
			`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'`,
			like, like, like, like)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Order("name ASC").Order("stock_code ASC").Limit(filter.Limit).Offset(offset).Find(&products).Error
	return products, total, err
}

func (r *productRepo) ListAll(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Order("stock_code ASC").Find(&products).Error
	return products, err
}
