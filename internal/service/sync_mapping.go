package service

import (
	"strings"
	"time"

	"catalogsync/internal/extract"
	"catalogsync/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Upstream member spellings, tried in order.
var (
	idKeys           = []string{"id"}
	stockCodeKeys    = []string{"stockCode", "code", "productCode"}
	barcodeKeys      = []string{"barcode", "ean"}
	nameKeys         = []string{"name", "title"}
	descriptionKeys  = []string{"description", "notes"}
	priceListKeys    = []string{"salePrices", "prices", "priceList"}
	priceScalarKeys  = []string{"salePrice", "price"}
	priceEntryKeys   = []string{"price", "value", "amount", "salePrice"}
	stockKeys        = []string{"stockLevel", "stock", "quantityOnHand", "available"}
	lastModifiedKeys = []string{"lastModified", "modifiedAt", "updatedAt", "lastModifiedDate"}
)

// identifier picks the key used to fetch details: primary id, then a stock
// code alias, then a barcode alias.
func identifier(brief extract.Record) (string, bool) {
	for _, keys := range [][]string{idKeys, stockCodeKeys, barcodeKeys} {
		if v, ok := brief.String(keys...); ok {
			return v, true
		}
	}
	return "", false
}

// lookup tries the detail record first and falls back to the brief one.
type lookup []extract.Record

func (l lookup) String(keys ...string) (string, bool) {
	for _, r := range l {
		if v, ok := r.String(keys...); ok {
			return v, true
		}
	}
	return "", false
}

func (l lookup) Decimal(keys ...string) (decimal.Decimal, bool) {
	for _, r := range l {
		if v, ok := r.Decimal(keys...); ok {
			return v, true
		}
	}
	return decimal.Zero, false
}

// salePrice reads the first entry of the sale-price list, or a scalar price.
// Numbers are parsed from their JSON literal, never through float64.
func salePrice(r extract.Record) (decimal.Decimal, bool) {
	if _, entries := r.Array(priceListKeys...); len(entries) > 0 {
		first := entries[0]
		if entry, err := extract.ParseRecord(first); err == nil {
			if d, ok := entry.Decimal(priceEntryKeys...); ok {
				return d, true
			}
		} else if d, ok := (extract.Record{"v": first}).Decimal("v"); ok {
			return d, true
		}
	}
	return r.Decimal(priceScalarKeys...)
}

// stockLevel truncates to an integer; missing, invalid or negative is 0.
func stockLevel(l lookup) int {
	d, ok := l.Decimal(stockKeys...)
	if !ok || d.IsNegative() {
		return 0
	}
	return int(d.IntPart())
}

func lastModified(l lookup) *time.Time {
	raw, ok := l.String(lastModifiedKeys...)
	if !ok {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			// storage keeps microseconds
			t = t.UTC().Truncate(time.Microsecond)
			return &t
		}
	}
	return nil
}

// buildProduct maps one upstream item onto the local product shape. Values
// are rounded to the column scale so a re-sync compares equal to what was
// stored.
func buildProduct(id string, brief, detail extract.Record) *model.Product {
	l := lookup{detail, brief}

	p := &model.Product{}
	p.ExternalID, _ = l.String(idKeys...)
	if code, ok := l.String(stockCodeKeys...); ok {
		p.StockCode = code
	} else {
		p.StockCode = id
	}
	p.Barcode, _ = l.String(barcodeKeys...)
	if p.Barcode != "" {
		p.SKU = p.Barcode
	} else {
		p.SKU = id
	}
	if name, ok := l.String(nameKeys...); ok {
		p.Name = name
	} else {
		p.Name = p.StockCode
	}
	if desc, ok := l.String(descriptionKeys...); ok {
		p.Description = extract.StripHTML(desc)
	}

	price, ok := salePrice(detail)
	if !ok {
		price, _ = salePrice(brief)
	}
	p.Price = price.Round(2)
	p.StockLevel = stockLevel(l)
	p.LastModified = lastModified(l)

	attrs := extract.Extract(detail)
	if attrs == (extract.Attributes{}) {
		attrs = extract.Extract(brief)
	}
	if attrs.Origin != nil {
		origin := strings.TrimSpace(*attrs.Origin)
		p.Origin = &origin
	}
	if attrs.Length != nil {
		v := attrs.Length.Round(3)
		p.Length = &v
	}
	if attrs.Width != nil {
		v := attrs.Width.Round(3)
		p.Width = &v
	}
	p.Size = attrs.Size

	if _, raw := extract.ExtraFields(detail); raw != nil {
		p.RawExtraFields = datatypes.JSON(raw)
	}
	return p
}
