package receipt

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// quantityUnits are unit tokens the recognizer leaves in quantity strings
var quantityUnits = []string{"шт", "szt", "pcs", "pc", "ea"}

// spaceReplacer drops spaces used as thousands separators ("1 234,56")
var spaceReplacer = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "\t", "")

// ParsePrice converts a recognizer price into an exact decimal.
// The second return value is false when v is absent or unparseable.
func ParsePrice(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Decimal{}, false
	case decimal.Decimal:
		return n, true
	case json.Number:
		return parsePriceString(n.String())
	case string:
		return parsePriceString(n)
	case float64:
		return fromFloat(n)
	case float32:
		return fromFloat(float64(n))
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int8:
		return decimal.NewFromInt(int64(n)), true
	case int16:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint:
		return decimal.NewFromUint64(uint64(n)), true
	case uint8:
		return decimal.NewFromUint64(uint64(n)), true
	case uint16:
		return decimal.NewFromUint64(uint64(n)), true
	case uint32:
		return decimal.NewFromUint64(uint64(n)), true
	case uint64:
		return decimal.NewFromUint64(n), true
	}
	return decimal.Decimal{}, false
}

// NullPrice is ParsePrice wrapped as an optional value
func NullPrice(v any) decimal.NullDecimal {
	d, ok := ParsePrice(v)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromFloat(f), true
}

func parsePriceString(s string) (decimal.Decimal, bool) {
	s = spaceReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Decimal{}, false
	}
	switch {
	case strings.Contains(s, ".") && strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseQuantity converts a recognizer quantity into a positive unit count.
// Fractional amounts (goods sold by weight) collapse to 1; the measured
// amount is carried by the item's total instead. Failures default to 1.
func ParseQuantity(v any) int {
	switch n := v.(type) {
	case string:
		return quantityFromString(n)
	case json.Number:
		return quantityFromString(n.String())
	case int:
		return wholeQuantity(float64(n))
	case int8:
		return wholeQuantity(float64(n))
	case int16:
		return wholeQuantity(float64(n))
	case int32:
		return wholeQuantity(float64(n))
	case int64:
		return wholeQuantity(float64(n))
	case uint:
		return wholeQuantity(float64(n))
	case uint8:
		return wholeQuantity(float64(n))
	case uint16:
		return wholeQuantity(float64(n))
	case uint32:
		return wholeQuantity(float64(n))
	case uint64:
		return wholeQuantity(float64(n))
	case float64:
		return wholeQuantity(n)
	case float32:
		return wholeQuantity(float64(n))
	case decimal.Decimal:
		f, _ := n.Float64()
		return wholeQuantity(f)
	}
	return 1
}

func wholeQuantity(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 1 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 1
	}
	return int(f)
}

func quantityFromString(s string) int {
	s = strings.ToLower(s)
	for _, unit := range quantityUnits {
		s = strings.ReplaceAll(s, unit, "")
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 1
	}

	var b strings.Builder
	for _, r := range fields[0] {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == ',':
			b.WriteRune('.')
		}
	}

	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 1
	}
	return wholeQuantity(f)
}
