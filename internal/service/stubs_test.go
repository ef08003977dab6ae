package service_test

import (
	"context"
	"sort"
	"strings"
	"sync"

	"catalogsync/internal/dto"
	"catalogsync/internal/infra"
	"catalogsync/internal/model"
	"catalogsync/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

// stubProductRepo is an in-memory ProductRepository keyed by stock code.
type stubProductRepo struct {
	mu       sync.Mutex
	products map[string]*model.Product
	upserts  int
}

func newStubProductRepo() *stubProductRepo {
	return &stubProductRepo{products: make(map[string]*model.Product)}
}

func (r *stubProductRepo) put(code, name, price string) *model.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &model.Product{ID: uuid.New(), StockCode: code, Name: name, SKU: code, Price: decimal.RequireFromString(price)}
	r.products[code] = p
	return p
}

func (r *stubProductRepo) Upsert(_ context.Context, p *model.Product) (repository.UpsertOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	existing, ok := r.products[p.StockCode]
	if ok && existing.SameAttributes(p) {
		existing.LastSyncedAt = p.LastSyncedAt
		return repository.UpsertUnchanged, nil
	}
	cp := *p
	if ok {
		cp.ID = existing.ID
		r.products[p.StockCode] = &cp
		return repository.UpsertUpdated, nil
	}
	cp.ID = uuid.New()
	r.products[p.StockCode] = &cp
	return repository.UpsertCreated, nil
}

func (r *stubProductRepo) FindByStockCode(_ context.Context, code string) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *stubProductRepo) List(_ context.Context, filter dto.ProductFilter) ([]model.Product, int64, error) {
	all, _ := r.ListAll(context.Background())
	var matched []model.Product
	term := strings.ToLower(filter.Q)
	for _, p := range all {
		if term == "" || strings.Contains(strings.ToLower(p.Name), term) || strings.Contains(strings.ToLower(p.StockCode), term) {
			matched = append(matched, p)
		}
	}
	start := (filter.Page - 1) * filter.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], int64(len(matched)), nil
}

func (r *stubProductRepo) ListAll(_ context.Context) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockCode < out[j].StockCode })
	return out, nil
}

func (r *stubProductRepo) DB() *gorm.DB { return nil }

var _ repository.ProductRepository = (*stubProductRepo)(nil)

// stubQuoteRepo keeps headers and lines apart, the way the tables do, and
// hands out copies so the service never shares memory with the store.
type stubQuoteRepo struct {
	mu     sync.Mutex
	quotes map[uuid.UUID]*model.Quote
	items  map[uuid.UUID]*model.QuoteItem
	saves  int
}

func newStubQuoteRepo() *stubQuoteRepo {
	return &stubQuoteRepo{
		quotes: make(map[uuid.UUID]*model.Quote),
		items:  make(map[uuid.UUID]*model.QuoteItem),
	}
}

func (r *stubQuoteRepo) Create(_ context.Context, _ *gorm.DB, q *model.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	cp := *q
	cp.Items = nil
	r.quotes[q.ID] = &cp
	return nil
}

func (r *stubQuoteRepo) load(id uuid.UUID) (*model.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.quotes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	q := *stored
	q.Items = nil
	for _, it := range r.items {
		if it.QuoteID == id {
			q.Items = append(q.Items, *it)
		}
	}
	sort.Slice(q.Items, func(i, j int) bool { return q.Items[i].Position < q.Items[j].Position })
	return &q, nil
}

func (r *stubQuoteRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Quote, error) {
	return r.load(id)
}

func (r *stubQuoteRepo) FindForUpdate(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.Quote, error) {
	return r.load(id)
}

func (r *stubQuoteRepo) Save(_ context.Context, _ *gorm.DB, q *model.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.quotes[q.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.saves++
	cp := *q
	cp.Items = nil
	cp.ShareToken = stored.ShareToken
	r.quotes[q.ID] = &cp
	return nil
}

func (r *stubQuoteRepo) CreateItem(_ context.Context, _ *gorm.DB, item *model.QuoteItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	cp := *item
	r.items[item.ID] = &cp
	return nil
}

func (r *stubQuoteRepo) UpdateItem(_ context.Context, _ *gorm.DB, item *model.QuoteItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[item.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Qty = item.Qty
	stored.Subtotal = item.Subtotal
	return nil
}

func (r *stubQuoteRepo) DeleteItem(_ context.Context, _ *gorm.DB, itemID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, itemID)
	return nil
}

func (r *stubQuoteRepo) DB() *gorm.DB { return nil }

var _ repository.QuoteRepository = (*stubQuoteRepo)(nil)

// stubMailer records every message; err makes Send fail.
type stubMailer struct {
	mu   sync.Mutex
	sent []infra.Message
	err  error
}

func (m *stubMailer) Send(_ context.Context, msg infra.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}
