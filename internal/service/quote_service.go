package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"catalogsync/internal/dto"
	"catalogsync/internal/infra"
	"catalogsync/internal/model"
	"catalogsync/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaxItemQty caps a single line's quantity.
const MaxItemQty = 1_000_000

// maxAmount is the largest value the NUMERIC(12,2) money columns hold.
var maxAmount = decimal.RequireFromString("9999999999.99")

// Mailer delivers one message. *infra.Mailer implements it.
type Mailer interface {
	Send(ctx context.Context, msg infra.Message) error
}

// QuoteConfig holds the settings every quote shares.
type QuoteConfig struct {
	TaxRate       decimal.Decimal
	Currency      string
	PublicBaseURL string
	Title         string
}

// QuoteService manages the quote aggregate. Every mutation recalculates the
// totals in the same transaction that changed the lines.
type QuoteService interface {
	Create(ctx context.Context, req dto.CreateQuoteRequest) (*dto.QuoteResponse, error)
	// Get returns the quote. A non-nil token must match the share token.
	Get(ctx context.Context, id uuid.UUID, token *string) (*dto.QuoteResponse, error)
	UpdateHeader(ctx context.Context, id uuid.UUID, req dto.UpdateQuoteRequest) (*dto.QuoteResponse, error)
	AddItem(ctx context.Context, id uuid.UUID, req dto.AddItemRequest) (*dto.QuoteResponse, error)
	UpdateItem(ctx context.Context, id, itemID uuid.UUID, qty int) (*dto.QuoteResponse, error)
	DeleteItem(ctx context.Context, id, itemID uuid.UUID) (*dto.QuoteResponse, error)
	Send(ctx context.Context, id uuid.UUID, req dto.SendQuoteRequest) (*dto.SendQuoteResponse, error)
	// PDF renders the quote and returns the document and its file name.
	PDF(ctx context.Context, id uuid.UUID, token *string) ([]byte, string, error)
}

type quoteService struct {
	repo     repository.QuoteRepository
	products repository.ProductRepository
	mailer   Mailer // nil when no mail transport is configured
	cfg      QuoteConfig
	locks    *keyedMutex
	now      func() time.Time
}

func NewQuoteService(repo repository.QuoteRepository, products repository.ProductRepository, mailer Mailer, cfg QuoteConfig) QuoteService {
	if cfg.Currency == "" {
		cfg.Currency = "EUR"
	}
	return &quoteService{
		repo:     repo,
		products: products,
		mailer:   mailer,
		cfg:      cfg,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// Recalculate derives line subtotals and the quote's money fields from its
// lines. Amounts are rounded half away from zero to two places.
func Recalculate(q *model.Quote, taxRate decimal.Decimal) {
	subtotal := decimal.Zero
	for i := range q.Items {
		it := &q.Items[i]
		it.Subtotal = it.Price.Mul(decimal.NewFromInt(int64(it.Qty))).Round(2)
		subtotal = subtotal.Add(it.Subtotal)
	}
	q.Subtotal = subtotal.Round(2)
	q.Tax = taxRate.Mul(q.Subtotal).Round(2)
	q.Total = q.Subtotal.Add(q.Tax).Round(2)
}

func lineSubtotal(price decimal.Decimal, qty int) (decimal.Decimal, error) {
	sub := price.Mul(decimal.NewFromInt(int64(qty))).Round(2)
	if sub.GreaterThan(maxAmount) {
		return decimal.Zero, invalid("line subtotal exceeds " + maxAmount.StringFixed(2))
	}
	return sub, nil
}

func newShareToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("quote: share token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (s *quoteService) Create(ctx context.Context, req dto.CreateQuoteRequest) (*dto.QuoteResponse, error) {
	token, err := newShareToken()
	if err != nil {
		return nil, err
	}
	currency := s.cfg.Currency
	if c := trimmedOrNil(req.Currency); c != nil {
		currency = strings.ToUpper(*c)
	}
	q := &model.Quote{
		ShareToken:    token,
		CustomerName:  trimmedOrNil(req.CustomerName),
		CustomerEmail: trimmedOrNil(req.CustomerEmail),
		Notes:         trimmedOrNil(req.Notes),
		Currency:      currency,
		Status:        model.QuoteStatusDraft,
	}
	Recalculate(q, s.cfg.TaxRate)
	if err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.Create(ctx, tx, q)
	}); err != nil {
		return nil, fmt.Errorf("quote: create: %w", err)
	}
	log.Info().Str("quote_id", q.ID.String()).Msg("quote created")
	resp := quoteToResponse(q)
	return &resp, nil
}

// load fetches a quote and checks the optional share token in constant time.
func (s *quoteService) load(ctx context.Context, id uuid.UUID, token *string) (*model.Quote, error) {
	q, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "quote")
	}
	if token != nil && subtle.ConstantTimeCompare([]byte(*token), []byte(q.ShareToken)) != 1 {
		return nil, fmt.Errorf("quote: token mismatch: %w", ErrForbidden)
	}
	return q, nil
}

func (s *quoteService) Get(ctx context.Context, id uuid.UUID, token *string) (*dto.QuoteResponse, error) {
	q, err := s.load(ctx, id, token)
	if err != nil {
		return nil, err
	}
	resp := quoteToResponse(q)
	return &resp, nil
}

// mutate serializes changes to one quote: the in-process lock orders local
// callers and the row lock covers other processes sharing the database.
func (s *quoteService) mutate(ctx context.Context, id uuid.UUID, fn func(tx *gorm.DB, q *model.Quote) error) (*model.Quote, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var out *model.Quote
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		q, err := s.repo.FindForUpdate(ctx, tx, id)
		if err != nil {
			return notFound(err, "quote")
		}
		if err := fn(tx, q); err != nil {
			return err
		}
		stored := make([]decimal.Decimal, len(q.Items))
		for i := range q.Items {
			stored[i] = q.Items[i].Subtotal
		}
		Recalculate(q, s.cfg.TaxRate)
		if q.Total.GreaterThan(maxAmount) {
			return invalid("quote total exceeds " + maxAmount.StringFixed(2))
		}
		// lines left untouched by fn may still carry a stale subtotal
		for i := range q.Items {
			if stored[i].Equal(q.Items[i].Subtotal) {
				continue
			}
			if err := s.repo.UpdateItem(ctx, tx, &q.Items[i]); err != nil {
				return fmt.Errorf("quote: save item: %w", err)
			}
		}
		if err := s.repo.Save(ctx, tx, q); err != nil {
			return fmt.Errorf("quote: save: %w", err)
		}
		out = q
		return nil
	})
	return out, err
}

func (s *quoteService) respond(q *model.Quote, err error) (*dto.QuoteResponse, error) {
	if err != nil {
		return nil, err
	}
	resp := quoteToResponse(q)
	return &resp, nil
}

func (s *quoteService) UpdateHeader(ctx context.Context, id uuid.UUID, req dto.UpdateQuoteRequest) (*dto.QuoteResponse, error) {
	return s.respond(s.mutate(ctx, id, func(_ *gorm.DB, q *model.Quote) error {
		if req.Status.Set {
			if req.Status.Value == nil {
				return invalid("status cannot be null")
			}
			status := strings.ToUpper(strings.TrimSpace(*req.Status.Value))
			if status != q.Status {
				// SENT is only reachable through send, and a sent quote stays sent.
				return invalid(fmt.Sprintf("status cannot change from %s to %s", q.Status, status))
			}
		}
		if req.CustomerName.Set {
			q.CustomerName = trimmedOrNil(req.CustomerName.Value)
		}
		if req.CustomerEmail.Set {
			q.CustomerEmail = trimmedOrNil(req.CustomerEmail.Value)
		}
		if req.Notes.Set {
			q.Notes = trimmedOrNil(req.Notes.Value)
		}
		return nil
	}))
}

func (s *quoteService) AddItem(ctx context.Context, id uuid.UUID, req dto.AddItemRequest) (*dto.QuoteResponse, error) {
	code := strings.TrimSpace(req.StockCode)
	if code == "" {
		return nil, invalid("stock_code is required")
	}
	qty := req.Qty
	if qty < 1 {
		qty = 1
	}
	if qty > MaxItemQty {
		return nil, invalid(fmt.Sprintf("qty must not exceed %d", MaxItemQty))
	}
	// looked up before the transaction opens; the snapshot only matters for
	// a new line
	product, err := s.products.FindByStockCode(ctx, code)
	if err != nil {
		return nil, notFound(err, "product "+code)
	}

	return s.respond(s.mutate(ctx, id, func(tx *gorm.DB, q *model.Quote) error {
		for i := range q.Items {
			it := &q.Items[i]
			if it.StockCode != product.StockCode {
				continue
			}
			if it.Qty > MaxItemQty-qty {
				return invalid(fmt.Sprintf("qty of %s would exceed %d", it.StockCode, MaxItemQty))
			}
			sub, err := lineSubtotal(it.Price, it.Qty+qty)
			if err != nil {
				return err
			}
			it.Qty += qty
			it.Subtotal = sub
			return s.repo.UpdateItem(ctx, tx, it)
		}

		position := 0
		for _, it := range q.Items {
			if it.Position >= position {
				position = it.Position + 1
			}
		}
		sub, err := lineSubtotal(product.Price, qty)
		if err != nil {
			return err
		}
		pid := product.ID
		item := model.QuoteItem{
			QuoteID:   q.ID,
			ProductID: &pid,
			StockCode: product.StockCode,
			Name:      product.Name,
			Price:     product.Price,
			Qty:       qty,
			Subtotal:  sub,
			Position:  position,
		}
		if err := s.repo.CreateItem(ctx, tx, &item); err != nil {
			return err
		}
		q.Items = append(q.Items, item)
		return nil
	}))
}

func (s *quoteService) UpdateItem(ctx context.Context, id, itemID uuid.UUID, qty int) (*dto.QuoteResponse, error) {
	if qty < 0 {
		return nil, invalid("qty must not be negative")
	}
	if qty > MaxItemQty {
		return nil, invalid(fmt.Sprintf("qty must not exceed %d", MaxItemQty))
	}
	return s.respond(s.mutate(ctx, id, func(tx *gorm.DB, q *model.Quote) error {
		idx := itemIndex(q, itemID)
		if idx < 0 {
			return fmt.Errorf("quote item: %w", ErrNotFound)
		}
		if qty == 0 {
			if err := s.repo.DeleteItem(ctx, tx, itemID); err != nil {
				return err
			}
			q.Items = append(q.Items[:idx], q.Items[idx+1:]...)
			return nil
		}
		it := &q.Items[idx]
		sub, err := lineSubtotal(it.Price, qty)
		if err != nil {
			return err
		}
		it.Qty = qty
		it.Subtotal = sub
		return s.repo.UpdateItem(ctx, tx, it)
	}))
}

func (s *quoteService) DeleteItem(ctx context.Context, id, itemID uuid.UUID) (*dto.QuoteResponse, error) {
	return s.respond(s.mutate(ctx, id, func(tx *gorm.DB, q *model.Quote) error {
		idx := itemIndex(q, itemID)
		if idx < 0 {
			return nil
		}
		if err := s.repo.DeleteItem(ctx, tx, itemID); err != nil {
			return err
		}
		q.Items = append(q.Items[:idx], q.Items[idx+1:]...)
		return nil
	}))
}

func itemIndex(q *model.Quote, itemID uuid.UUID) int {
	for i := range q.Items {
		if q.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// ShareLink is the customer-facing URL of a quote.
func (s *quoteService) ShareLink(q *model.Quote) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/quotes/" + q.ID.String() +
		"?token=" + url.QueryEscape(q.ShareToken)
}

func (s *quoteService) pdfOptions(q *model.Quote) infra.QuotePDFOptions {
	return infra.QuotePDFOptions{
		Title:     s.cfg.Title,
		TaxRate:   s.cfg.TaxRate,
		ShareLink: s.ShareLink(q),
		Now:       s.now(),
	}
}

func (s *quoteService) PDF(ctx context.Context, id uuid.UUID, token *string) ([]byte, string, error) {
	q, err := s.load(ctx, id, token)
	if err != nil {
		return nil, "", err
	}
	data, err := infra.QuotePDF(q, s.pdfOptions(q))
	if err != nil {
		return nil, "", err
	}
	return data, infra.QuotePDFFilename(q), nil
}

// Send mails the quote summary with the PDF attached and marks the quote
// SENT once the relay has accepted the message. Totals are not touched.
func (s *quoteService) Send(ctx context.Context, id uuid.UUID, req dto.SendQuoteRequest) (*dto.SendQuoteResponse, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	q, err := s.load(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	to := trimmedOrNil(req.To)
	if to == nil {
		to = trimmedOrNil(q.CustomerEmail)
	}
	if to == nil {
		return nil, invalid("no recipient: set customer_email or pass to")
	}
	if s.mailer == nil {
		return nil, fmt.Errorf("quote: mail transport not configured: %w", ErrUnavailable)
	}

	doc, err := infra.QuotePDF(q, s.pdfOptions(q))
	if err != nil {
		return nil, err
	}
	msg := infra.Message{
		To:      *to,
		Subject: "Your quote " + q.ID.String()[:8],
		Text:    s.summary(q),
		Attachments: []infra.Attachment{{
			Filename:    infra.QuotePDFFilename(q),
			ContentType: "application/pdf",
			Data:        doc,
		}},
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.Error().Err(err).Str("quote_id", id.String()).Msg("quote: mail delivery failed")
		return nil, fmt.Errorf("quote: deliver: %v: %w", err, ErrUnavailable)
	}

	sentAt := s.now().UTC()
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		locked, err := s.repo.FindForUpdate(ctx, tx, id)
		if err != nil {
			return notFound(err, "quote")
		}
		locked.Status = model.QuoteStatusSent
		locked.SentAt = &sentAt
		locked.SentTo = to
		return s.repo.Save(ctx, tx, locked)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("quote_id", id.String()).Str("to", *to).Msg("quote sent")
	return &dto.SendQuoteResponse{Status: model.QuoteStatusSent, SentTo: *to, SentAt: sentAt}, nil
}

func (s *quoteService) summary(q *model.Quote) string {
	money := func(d decimal.Decimal) string { return d.StringFixed(2) + " " + q.Currency }

	var b strings.Builder
	if q.CustomerName != nil {
		fmt.Fprintf(&b, "Hello %s,\n\n", *q.CustomerName)
	} else {
		b.WriteString("Hello,\n\n")
	}
	b.WriteString("please find your quote below.\n\n")
	for _, it := range q.Items {
		fmt.Fprintf(&b, "%d x %s (%s) @ %s = %s\n", it.Qty, it.Name, it.StockCode, money(it.Price), money(it.Subtotal))
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\n", money(q.Subtotal))
	if !s.cfg.TaxRate.IsZero() {
		fmt.Fprintf(&b, "Tax (%s%%): %s\n", s.cfg.TaxRate.Mul(decimal.NewFromInt(100)).String(), money(q.Tax))
	}
	fmt.Fprintf(&b, "Total: %s\n", money(q.Total))
	if q.Notes != nil {
		fmt.Fprintf(&b, "\n%s\n", *q.Notes)
	}
	fmt.Fprintf(&b, "\nView online: %s\n", s.ShareLink(q))
	return b.String()
}

func quoteToResponse(q *model.Quote) dto.QuoteResponse {
	items := make([]dto.QuoteItemResponse, 0, len(q.Items))
	for _, it := range q.Items {
		items = append(items, dto.QuoteItemResponse{
			ID:        it.ID.String(),
			StockCode: it.StockCode,
			Name:      it.Name,
			Price:     it.Price,
			Qty:       it.Qty,
			Subtotal:  it.Subtotal,
			Position:  it.Position,
		})
	}
	return dto.QuoteResponse{
		ID:            q.ID.String(),
		ShareToken:    q.ShareToken,
		CustomerName:  q.CustomerName,
		CustomerEmail: q.CustomerEmail,
		Notes:         q.Notes,
		Currency:      q.Currency,
		Status:        q.Status,
		Subtotal:      q.Subtotal,
		Tax:           q.Tax,
		Total:         q.Total,
		SentAt:        q.SentAt,
		SentTo:        q.SentTo,
		Items:         items,
		CreatedAt:     q.CreatedAt,
		UpdatedAt:     q.UpdatedAt,
	}
}
