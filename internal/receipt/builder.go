package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotRecognized is returned when recognizer output holds no usable item list
var ErrNotRecognized = errors.New("no receipt recognized")

// Build turns raw recognizer output into a Receipt.
//
// Only a missing or malformed item list fails the whole receipt. Entries
// that are not objects are skipped, and every numeric field is normalized
// on its own, so one bad field leaves the rest of its item intact.
func Build(raw map[string]any) (*Receipt, error) {
	rawItems, ok := raw["items"].([]any)
	if !ok {
		return nil, ErrNotRecognized
	}

	items := make([]Item, 0, len(rawItems))
	for i, entry := range rawItems {
		fields, ok := entry.(map[string]any)
		if !ok {
			slog.Warn("Skipping non-object receipt item", "index", i, "value", entry)
			continue
		}
		items = append(items, buildItem(fields))
	}
	if len(items) == 0 {
		return nil, ErrNotRecognized
	}

	return &Receipt{
		Items:                items,
		ServiceChargePercent: topLevelPrice(raw, "service_charge_percent"),
		TotalCheckAmount:     topLevelPrice(raw, "total_check_amount"),
		TotalDiscountPercent: topLevelPrice(raw, "total_discount_percent"),
		TotalDiscountAmount:  topLevelPrice(raw, "total_discount_amount"),
	}, nil
}

// BuildJSON decodes recognizer JSON and builds a Receipt from it.
// Numbers are decoded as json.Number so their decimal text stays exact.
func BuildJSON(data []byte) (*Receipt, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRecognized, err)
	}
	return Build(raw)
}

func buildItem(fields map[string]any) Item {
	quantity := 1
	if v, ok := fields["quantity"]; ok {
		quantity = ParseQuantity(v)
	}

	return Item{
		Description:     description(fields["description"]),
		Quantity:        quantity,
		UnitPrice:       NullPrice(fields["unit_price"]),
		TotalAmount:     NullPrice(fields["total_amount"]),
		DiscountPercent: NullPrice(fields["discount_percent"]),
		DiscountAmount:  NullPrice(fields["discount_amount"]),
	}
}

func description(v any) string {
	switch d := v.(type) {
	case nil:
		return "N/A"
	case string:
		if s := strings.TrimSpace(d); s != "" {
			return s
		}
		return "N/A"
	default:
		return fmt.Sprint(d)
	}
}

func topLevelPrice(raw map[string]any, key string) decimal.NullDecimal {
	v, present := raw[key]
	price := NullPrice(v)
	if present && v != nil && !price.Valid {
		slog.Warn("Ignoring unparseable receipt field", "field", key, "value", v)
	}
	return price
}
