package domain

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// priceTokenRegex captures the first integer or decimal number, e.g. "12.99" in "$12.99"
var priceTokenRegex = regexp.MustCompile(`\d+(?:\.\d{1,2})?`)

// priceRecordKeys are checked in order when a price arrives as a nested object
var priceRecordKeys = []string{"value", "raw", "price", "extracted"}

// PriceKind tags the shape a provider used for a price field
type PriceKind int

const (
	PriceAbsent PriceKind = iota
	PriceNumber
	PriceText
	PriceRecord
)

// PriceInput is a provider price in any of its observed shapes:
// a JSON number, a currency string ("$12.99", "1,299.00") or an object
// carrying one of value/raw/price/extracted.
type PriceInput struct {
	Kind   PriceKind
	Number float64
	Text   string
	Record map[string]PriceInput
}

// NumberPrice builds a numeric PriceInput.
func NumberPrice(v float64) PriceInput {
	return PriceInput{Kind: PriceNumber, Number: v}
}

// TextPrice builds a textual PriceInput.
func TextPrice(s string) PriceInput {
	return PriceInput{Kind: PriceText, Text: s}
}

// UnmarshalJSON accepts numbers, strings, objects and null.
func (p *PriceInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*p = PriceInput{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = TextPrice(s)
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		record := make(map[string]PriceInput, len(raw))
		for k, v := range raw {
			var nested PriceInput
			if err := nested.UnmarshalJSON(v); err != nil {
				// Unrelated keys (arrays, booleans) must not sink the whole record
				continue
			}
			record[k] = nested
		}
		*p = PriceInput{Kind: PriceRecord, Record: record}
	case 't', 'f', '[':
		// Booleans and arrays carry no price
		return nil
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*p = NumberPrice(n)
	}
	return nil
}

// MarshalJSON writes the parsed value back out, or null when absent.
func (p PriceInput) MarshalJSON() ([]byte, error) {
	if v, ok := p.Value(); ok {
		return json.Marshal(v)
	}
	return []byte("null"), nil
}

// Value normalizes the price. Strings lose thousands separators before the
// first numeric token is taken; records resolve through the first present key.
func (p PriceInput) Value() (float64, bool) {
	switch p.Kind {
	case PriceNumber:
		return p.Number, true
	case PriceText:
		return ParsePriceText(p.Text)
	case PriceRecord:
		for _, key := range priceRecordKeys {
			if nested, ok := p.Record[key]; ok {
				return nested.Value()
			}
		}
	}
	return 0, false
}

// Present reports whether the provider sent anything at all.
func (p PriceInput) Present() bool {
	return p.Kind != PriceAbsent
}

// ParsePriceText extracts the first number from a currency-formatted string.
func ParsePriceText(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	match := priceTokenRegex.FindString(s)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
