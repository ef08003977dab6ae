package infra

// pdf.go renders a quote as an A4 document with go-pdf/fpdf:
//   - header with quote reference, date and customer
//   - line table (code, name, qty, unit price, subtotal)
//   - subtotal, tax (only when a rate applies) and bold total
//   - share link footer

import (
	"bytes"
	"fmt"
	"time"

	"catalogsync/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// QuotePDFOptions carries what the document needs beyond the quote itself.
type QuotePDFOptions struct {
	Title     string // document heading, e.g. the company name
	TaxRate   decimal.Decimal
	ShareLink string
	Now       time.Time
}

// QuotePDF renders q and returns the PDF bytes.
func QuotePDF(q *model.Quote, opts QuotePDFOptions) ([]byte, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Title == "" {
		opts.Title = "Quotation"
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(opts.Title)+" - Quote "+shortID(q), false)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, tr(opts.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Quote "+shortID(q)+"   "+opts.Now.Format("2006-01-02"), "", 1, "L", false, 0, "")
	if q.CustomerName != nil && *q.CustomerName != "" {
		pdf.CellFormat(contentW, 5, tr("Customer: "+*q.CustomerName), "", 1, "L", false, 0, "")
	}
	if q.CustomerEmail != nil && *q.CustomerEmail != "" {
		pdf.CellFormat(contentW, 5, tr(*q.CustomerEmail), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// ── Lines ────────────────────────────────────────────────────────────────
	colCode := contentW * 0.18
	colName := contentW * 0.42
	colQty := contentW * 0.10
	colPrice := contentW * 0.15
	colSub := contentW * 0.15

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(colCode, 6, "Code", "B", 0, "L", false, 0, "")
	pdf.CellFormat(colName, 6, "Product", "B", 0, "L", false, 0, "")
	pdf.CellFormat(colQty, 6, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(colPrice, 6, "Unit", "B", 0, "R", false, 0, "")
	pdf.CellFormat(colSub, 6, "Subtotal", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, item := range q.Items {
		name := item.Name
		if r := []rune(name); len(r) > 48 {
			name = string(r[:47]) + "..."
		}
		pdf.CellFormat(colCode, 6, tr(item.StockCode), "", 0, "L", false, 0, "")
		pdf.CellFormat(colName, 6, tr(name), "", 0, "L", false, 0, "")
		pdf.CellFormat(colQty, 6, fmt.Sprintf("%d", item.Qty), "", 0, "R", false, 0, "")
		pdf.CellFormat(colPrice, 6, item.Price.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(colSub, 6, item.Subtotal.StringFixed(2), "", 1, "R", false, 0, "")
	}
	if len(q.Items) == 0 {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(contentW, 6, "No items", "", 1, "L", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	pdf.Ln(2)

	// ── Totals ───────────────────────────────────────────────────────────────
	labelW := contentW - colSub
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(labelW, 6, "Subtotal", "", 0, "R", false, 0, "")
	pdf.CellFormat(colSub, 6, q.Subtotal.StringFixed(2), "", 1, "R", false, 0, "")
	if !opts.TaxRate.IsZero() {
		pct := opts.TaxRate.Mul(decimal.NewFromInt(100))
		pdf.CellFormat(labelW, 6, "Tax ("+pct.String()+"%)", "", 0, "R", false, 0, "")
		pdf.CellFormat(colSub, 6, q.Tax.StringFixed(2), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(labelW, 7, "Total "+q.Currency, "", 0, "R", false, 0, "")
	pdf.CellFormat(colSub, 7, q.Total.StringFixed(2), "", 1, "R", false, 0, "")

	if q.Notes != nil && *q.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(contentW, 5, tr(*q.Notes), "", "L", false)
	}

	// ── Footer ───────────────────────────────────────────────────────────────
	if opts.ShareLink != "" {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(contentW, 5, "View online:", "", 1, "L", false, 0, "")
		pdf.SetTextColor(30, 60, 160)
		pdf.CellFormat(contentW, 5, opts.ShareLink, "", 1, "L", false, 0, opts.ShareLink)
		pdf.SetTextColor(0, 0, 0)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render quote: %w", err)
	}
	return buf.Bytes(), nil
}

// QuotePDFFilename is the attachment/download name for q.
func QuotePDFFilename(q *model.Quote) string {
	return "quote-" + shortID(q) + ".pdf"
}

func shortID(q *model.Quote) string {
	s := q.ID.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
