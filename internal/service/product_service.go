package service

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"catalogsync/internal/dto"
	"catalogsync/internal/infra"
	"catalogsync/internal/model"
	"catalogsync/internal/repository"

	"github.com/redis/go-redis/v9"
)

const productCacheTTL = 5 * time.Minute

func productCacheKey(code string) string { return "catalogsync:product:" + code }

// ProductService exposes the synced catalog read-only.
type ProductService interface {
	List(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error)
	GetByStockCode(ctx context.Context, code string) (*dto.ProductResponse, error)
	// Export writes the whole catalog as an XLSX workbook.
	Export(ctx context.Context, w io.Writer) error
}

type productService struct {
	repo repository.ProductRepository
	rdb  *redis.Client
}

func NewProductService(repo repository.ProductRepository, rdb *redis.Client) ProductService {
	return &productService{repo: repo, rdb: rdb}
}

func (s *productService) List(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := &dto.ProductListResponse{
		Data:       make([]dto.ProductResponse, 0, len(products)),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int((total + int64(filter.Limit) - 1) / int64(filter.Limit)),
	}
	for i := range products {
		out.Data = append(out.Data, productToResponse(&products[i]))
	}
	return out, nil
}

// GetByStockCode reads through a short-lived Redis cache. Cache errors are
// ignored; the database stays authoritative.
func (s *productService) GetByStockCode(ctx context.Context, code string) (*dto.ProductResponse, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, invalid("stock code is required")
	}
	key := productCacheKey(code)

	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
			var resp dto.ProductResponse
			if json.Unmarshal(cached, &resp) == nil {
				return &resp, nil
			}
		}
	}

	p, err := s.repo.FindByStockCode(ctx, code)
	if err != nil {
		return nil, notFound(err, "product "+code)
	}
	resp := productToResponse(p)

	if s.rdb != nil {
		if b, err := json.Marshal(resp); err == nil {
			_ = s.rdb.Set(ctx, key, b, productCacheTTL).Err()
		}
	}
	return &resp, nil
}

func (s *productService) Export(ctx context.Context, w io.Writer) error {
	products, err := s.repo.ListAll(ctx)
	if err != nil {
		return err
	}
	return infra.WriteProductsXLSX(w, products)
}

func productToResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:           p.ID.String(),
		StockCode:    p.StockCode,
		Name:         p.Name,
		Description:  p.Description,
		SKU:          p.SKU,
		Barcode:      p.Barcode,
		Price:        p.Price,
		Origin:       p.Origin,
		Length:       p.Length,
		Width:        p.Width,
		Size:         p.Size,
		StockLevel:   p.StockLevel,
		LastModified: p.LastModified,
		LastSyncedAt: p.LastSyncedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
