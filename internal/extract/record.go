package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var errNotObject = errors.New("extract: payload is not a JSON object")

// Record is an upstream JSON object kept as raw members, so numbers keep their
// literal form until they are parsed into decimals.
type Record map[string]json.RawMessage

// ParseRecord decodes a JSON object. Anything else is an error.
func ParseRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errNotObject
	}
	return r, nil
}

// String returns the first key holding a non-blank string or number literal.
func (r Record) String(keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := scalarString(r[k]); ok {
			return s, true
		}
	}
	return "", false
}

// Decimal returns the first key holding a number (or numeric string),
// parsed from its literal without passing through float64.
func (r Record) Decimal(keys ...string) (decimal.Decimal, bool) {
	for _, k := range keys {
		s, ok := scalarString(r[k])
		if !ok {
			continue
		}
		d, err := decimal.NewFromString(s)
		if err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}

// Array returns the elements of the first key holding a non-empty JSON array.
func (r Record) Array(keys ...string) (string, []json.RawMessage) {
	for _, k := range keys {
		raw, ok := r[k]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
			continue
		}
		return k, items
	}
	return "", nil
}

// Object decodes the member at key as a nested Record.
func (r Record) Object(key string) (Record, bool) {
	raw, ok := r[key]
	if !ok || !isObject(raw) {
		return nil, false
	}
	var nested Record
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, false
	}
	return nested, true
}

// scalarString renders a JSON string, number or boolean as trimmed text.
// Objects, arrays, null and blank strings yield false.
func scalarString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	case '{', '[', 'n':
		return "", false
	default:
		// numbers and booleans: the literal itself
		return string(raw), true
	}
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
