// Package extract normalizes loosely shaped upstream product records into
// typed attributes. Everything here is pure and safe for concurrent use.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// CollectionKeys are the member names an extra-field array may live under,
// tried in order.
var CollectionKeys = []string{
	"extraFields", "extra_fields", "ExtraFields", "customFields",
	"custom_fields", "additionalFields", "attributes", "fields",
}

var (
	OriginAliases = []string{"origin", "countryoforigin", "madein", "herkunft", "provenance", "country"}
	LengthAliases = []string{"length", "len", "laenge", "länge", "long"}
	WidthAliases  = []string{"width", "breite", "wide"}
	SizeAliases   = []string{"size", "dimensions", "dimension", "groesse", "größe", "format", "measurements"}
)

var measureRe = regexp.MustCompile(`[-+]?(?:\d+(?:\.\d+)?|\.\d+)`)

// Attributes are the product properties derived from the extra fields.
type Attributes struct {
	Origin *string
	Length *decimal.Decimal
	Width  *decimal.Decimal
	Size   string
}

// ExtraFields returns the decoded collection and its raw JSON. The first key
// of CollectionKeys holding a non-empty array wins.
func ExtraFields(r Record) ([]ExtraField, json.RawMessage) {
	key, items := r.Array(CollectionKeys...)
	if key == "" {
		return nil, nil
	}
	fields := make([]ExtraField, 0, len(items))
	for _, raw := range items {
		var f ExtraField
		_ = f.UnmarshalJSON(raw)
		fields = append(fields, f)
	}
	return fields, r[key]
}

// ParseMeasure reads the first signed decimal number out of s. Decimal commas
// are accepted ("2,40 m" parses as 2.4).
func ParseMeasure(s string) (decimal.Decimal, bool) {
	tokens := measureTokens(s)
	if len(tokens) == 0 {
		return decimal.Zero, false
	}
	return tokens[0], true
}

func measureTokens(s string) []decimal.Decimal {
	s = strings.ReplaceAll(s, ",", ".")
	var out []decimal.Decimal
	for _, tok := range measureRe.FindAllString(s, -1) {
		d, err := decimal.NewFromString(tok)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}

// FormatSize renders the combined "<length> x <width>" display string.
func FormatSize(length, width decimal.Decimal) string {
	return length.String() + " x " + width.String()
}

// Extract derives origin, length, width and size from a detail record.
//
// When both length and width are known the size is "<l> x <w>". Otherwise a
// size-like field is consulted: two or more numbers in it fill whichever of
// length/width is missing, and the size is re-derived; fewer numbers keep the
// raw text as the size.
func Extract(r Record) Attributes {
	fields, _ := ExtraFields(r)
	var attrs Attributes
	if len(fields) == 0 {
		return attrs
	}

	if v, ok := FindValue(fields, OriginAliases); ok {
		attrs.Origin = &v
	}
	if v, ok := FindValue(fields, LengthAliases); ok {
		if d, ok := ParseMeasure(v); ok {
			attrs.Length = &d
		}
	}
	if v, ok := FindValue(fields, WidthAliases); ok {
		if d, ok := ParseMeasure(v); ok {
			attrs.Width = &d
		}
	}

	if attrs.Length != nil && attrs.Width != nil {
		attrs.Size = FormatSize(*attrs.Length, *attrs.Width)
		return attrs
	}

	raw, ok := FindValue(fields, SizeAliases)
	if !ok {
		return attrs
	}
	tokens := measureTokens(raw)
	if len(tokens) < 2 {
		attrs.Size = raw
		return attrs
	}
	if attrs.Length == nil {
		attrs.Length = &tokens[0]
	}
	if attrs.Width == nil {
		attrs.Width = &tokens[1]
	}
	attrs.Size = FormatSize(*attrs.Length, *attrs.Width)
	return attrs
}
