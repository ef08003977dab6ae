package extract

import (
	"encoding/json"
	"strings"
	"unicode"
)

// ExtraField is one entry of an upstream "extra fields" collection. Vendors
// spell the name and value members differently, so every known spelling has
// its own slot.
type ExtraField struct {
	// name slots, in lookup order
	Name        string
	Label       string
	Caption     string
	Description string
	DisplayName string
	FieldName   string
	Key         string

	// value slots, raw
	Value        json.RawMessage
	Text         json.RawMessage
	Val          json.RawMessage
	DisplayValue json.RawMessage
	Display      json.RawMessage
	Data         json.RawMessage
}

// UnmarshalJSON fills the slots from an object. Non-object entries decode to
// an empty field instead of failing the whole collection.
func (f *ExtraField) UnmarshalJSON(data []byte) error {
	*f = ExtraField{}
	if !isObject(data) {
		return nil
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil
	}
	name := func(k string) string {
		s, _ := scalarString(r[k])
		return s
	}
	f.Name = name("name")
	f.Label = name("label")
	f.Caption = name("caption")
	f.Description = name("description")
	f.DisplayName = name("displayName")
	f.FieldName = name("fieldName")
	f.Key = name("key")
	f.Value = r["value"]
	f.Text = r["text"]
	f.Val = r["val"]
	f.DisplayValue = r["displayValue"]
	f.Display = r["display"]
	f.Data = r["data"]
	return nil
}

// Names returns the non-empty name candidates in slot order.
func (f ExtraField) Names() []string {
	var out []string
	for _, n := range []string{f.Name, f.Label, f.Caption, f.Description, f.DisplayName, f.FieldName, f.Key} {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// StringValue unwraps the value using the first non-blank of:
// value.value, value.text, value (scalar), text, val, displayValue, display, data.
func (f ExtraField) StringValue() (string, bool) {
	if nested, ok := decodeObject(f.Value); ok {
		if s, ok := nested.String("value"); ok {
			return s, true
		}
		if s, ok := nested.String("text"); ok {
			return s, true
		}
	}
	for _, raw := range []json.RawMessage{f.Value, f.Text, f.Val, f.DisplayValue, f.Display, f.Data} {
		if s, ok := scalarString(raw); ok {
			return s, true
		}
	}
	return "", false
}

func decodeObject(raw json.RawMessage) (Record, bool) {
	if !isObject(raw) {
		return nil, false
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false
	}
	return r, true
}

// normalize lower-cases and drops every rune that is not a letter or digit.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// matchStrategy decides whether a field answers to one of the aliases.
type matchStrategy struct {
	name  string
	match func(f ExtraField, aliases []string) bool
}

// strategies run in order; a later strategy is only tried when no field
// matched an earlier one.
var strategies = []matchStrategy{
	{name: "exact", match: matchExact},
	{name: "substring", match: matchSubstring},
}

func matchExact(f ExtraField, aliases []string) bool {
	for _, n := range f.Names() {
		nn := normalize(n)
		for _, a := range aliases {
			if nn == normalize(a) {
				return true
			}
		}
	}
	return false
}

func matchSubstring(f ExtraField, aliases []string) bool {
	joined := strings.ToLower(strings.Join(f.Names(), " "))
	if joined == "" {
		return false
	}
	for _, a := range aliases {
		if strings.Contains(joined, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

// Find returns the first field matching any alias and the strategy that
// matched it.
func Find(fields []ExtraField, aliases []string) (ExtraField, string, bool) {
	for _, s := range strategies {
		for _, f := range fields {
			if s.match(f, aliases) {
				return f, s.name, true
			}
		}
	}
	return ExtraField{}, "", false
}

// FindValue is Find followed by StringValue.
func FindValue(fields []ExtraField, aliases []string) (string, bool) {
	f, _, ok := Find(fields, aliases)
	if !ok {
		return "", false
	}
	return f.StringValue()
}
