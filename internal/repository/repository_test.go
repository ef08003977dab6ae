package repository_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"catalogsync/internal/dto"
	"catalogsync/internal/infra"
	"catalogsync/internal/model"
	"catalogsync/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := infra.NewDatabase("sqlite:file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, infra.Migrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func product(code, name, price string) *model.Product {
	length := decimal.RequireFromString("2.4")
	origin := "Italy"
	modified := time.Date(2024, 3, 1, 9, 15, 30, 123456000, time.UTC)
	return &model.Product{
		StockCode:    code,
		ExternalID:   "ext-" + code,
		Name:         name,
		SKU:          code,
		Price:        decimal.RequireFromString(price),
		Origin:       &origin,
		Length:       &length,
		Size:         "2.4",
		StockLevel:   3,
		LastModified: &modified,
	}
}

// ── Tests: ProductRepository ─────────────────────────────────────────────────

func TestProductUpsert_Idempotent(t *testing.T) {
	db := openDB(t)
	repo := repository.NewProductRepository(db)
	ctx := context.Background()

	outcome, err := repo.Upsert(ctx, product("X", "Widget", "10.50"))
	require.NoError(t, err)
	assert.Equal(t, repository.UpsertCreated, outcome)

	outcome, err = repo.Upsert(ctx, product("X", "Widget", "10.50"))
	require.NoError(t, err)
	assert.Equal(t, repository.UpsertUnchanged, outcome)

	changed := product("X", "Widget", "11.00")
	outcome, err = repo.Upsert(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, repository.UpsertUpdated, outcome)

	var count int64
	require.NoError(t, db.Model(&model.Product{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	got, err := repo.FindByStockCode(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, "11.00", got.Price.StringFixed(2))
	assert.Equal(t, changed.ID, got.ID)
	assert.NotNil(t, got.LastSyncedAt)
}

func TestProductFindByStockCode_NotFound(t *testing.T) {
	repo := repository.NewProductRepository(openDB(t))
	_, err := repo.FindByStockCode(context.Background(), "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestProductList_Search(t *testing.T) {
	repo := repository.NewProductRepository(openDB(t))
	ctx := context.Background()
	for _, p := range []*model.Product{
		product("A-1", "Oak table", "100"),
		product("B-2", "Pine shelf", "40"),
		product("C-3", "Oak chair", "60"),
	} {
		_, err := repo.Upsert(ctx, p)
		require.NoError(t, err)
	}

	got, total, err := repo.List(ctx, dto.ProductFilter{Q: "OAK", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, got, 2)
	assert.Equal(t, "Oak chair", got[0].Name)
	assert.Equal(t, "Oak table", got[1].Name)

	got, total, err = repo.List(ctx, dto.ProductFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, got, 1)
	assert.Equal(t, "Pine shelf", got[0].Name)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "A-1", all[0].StockCode)
}

func TestProductList_SearchIsLiteral(t *testing.T) {
	repo := repository.NewProductRepository(openDB(t))
	ctx := context.Background()
	for _, p := range []*model.Product{
		product("A_1", "Runner", "10"),
		product("AB1", "Rug", "20"),
		product("C-3", "50% off lamp", "30"),
		product("D-4", "500 lumen lamp", "30"),
	} {
		_, err := repo.Upsert(ctx, p)
		require.NoError(t, err)
	}

	got, total, err := repo.List(ctx, dto.ProductFilter{Q: "a_1", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assert.Equal(t, "A_1", got[0].StockCode)

	got, total, err = repo.List(ctx, dto.ProductFilter{Q: "50%", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assert.Equal(t, "C-3", got[0].StockCode)

	_, total, err = repo.List(ctx, dto.ProductFilter{Q: "%", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

// ── Tests: QuoteRepository ───────────────────────────────────────────────────

func TestQuoteRepository_RoundTrip(t *testing.T) {
	db := openDB(t)
	repo := repository.NewQuoteRepository(db)
	ctx := context.Background()

	q := &model.Quote{ShareToken: "tok", Currency: "EUR", Status: model.QuoteStatusDraft}
	require.NoError(t, repo.Create(ctx, nil, q))

	err := db.Transaction(func(tx *gorm.DB) error {
		locked, err := repo.FindForUpdate(ctx, tx, q.ID)
		if err != nil {
			return err
		}
		second := &model.QuoteItem{QuoteID: q.ID, StockCode: "B", Name: "b", Price: decimal.RequireFromString("2.00"), Qty: 1, Subtotal: decimal.RequireFromString("2.00"), Position: 1}
		first := &model.QuoteItem{QuoteID: q.ID, StockCode: "A", Name: "a", Price: decimal.RequireFromString("1.25"), Qty: 2, Subtotal: decimal.RequireFromString("2.50"), Position: 0}
		if err := repo.CreateItem(ctx, tx, second); err != nil {
			return err
		}
		if err := repo.CreateItem(ctx, tx, first); err != nil {
			return err
		}
		locked.Subtotal = decimal.RequireFromString("4.50")
		locked.Total = decimal.RequireFromString("4.50")
		return repo.Save(ctx, tx, locked)
	})
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "A", got.Items[0].StockCode)
	assert.Equal(t, "4.50", got.Total.StringFixed(2))

	item := got.Items[0]
	item.Qty = 4
	item.Subtotal = decimal.RequireFromString("5.00")
	require.NoError(t, repo.UpdateItem(ctx, nil, &item))
	require.NoError(t, repo.DeleteItem(ctx, nil, got.Items[1].ID))

	got, err = repo.FindByID(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 4, got.Items[0].Qty)
	assert.Equal(t, "tok", got.ShareToken)
}
