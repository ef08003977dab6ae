package infra

import (
	"time"

	"github.com/shopspring/decimal"
)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// decimalCell renders an optional measure; empty cells stay empty.
func decimalCell(d *decimal.Decimal) interface{} {
	if d == nil {
		return ""
	}
	return d.String()
}

func timeCell(t *time.Time) interface{} {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
