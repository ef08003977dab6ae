package service_test

import (
	"bytes"
	"context"
	"testing"

	"catalogsync/internal/dto"
	"catalogsync/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestProductList_PaginatesAndClampsLimit(t *testing.T) {
	repo := newStubProductRepo()
	for _, code := range []string{"A", "B", "C"} {
		repo.put(code, "Item "+code, "1.00")
	}
	svc := service.NewProductService(repo, nil)

	res, err := svc.List(context.Background(), dto.ProductFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.Equal(t, 2, res.TotalPages)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "C", res.Data[0].StockCode)

	res, err = svc.List(context.Background(), dto.ProductFilter{Page: 0, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 100, res.Limit)
	assert.Len(t, res.Data, 3)
}

func TestProductGetByStockCode(t *testing.T) {
	repo := newStubProductRepo()
	repo.put("X", "Widget", "10.00")
	svc := service.NewProductService(repo, nil)

	p, err := svc.GetByStockCode(context.Background(), " X ")
	require.NoError(t, err)
	assert.Equal(t, "Widget", p.Name)

	_, err = svc.GetByStockCode(context.Background(), "nope")
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = svc.GetByStockCode(context.Background(), "  ")
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestProductExport_WritesWorkbook(t *testing.T) {
	repo := newStubProductRepo()
	repo.put("B", "Bolt", "0.10")
	repo.put("A", "Anchor", "19.90")
	svc := service.NewProductService(repo, nil)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(context.Background(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Products")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "A", rows[1][0])
	assert.Equal(t, "B", rows[2][0])
}
