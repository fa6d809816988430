package receipt

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultWeightTolerance is the largest gap between unit price and line total
// still read as one discrete unit. Anything wider marks a by-weight line.
var DefaultWeightTolerance = decimal.New(1, -2)

// Classifier decides how an item is priced
type Classifier struct {
	Tolerance decimal.Decimal
}

// NewClassifier creates a Classifier using DefaultWeightTolerance
func NewClassifier() Classifier {
	return Classifier{Tolerance: DefaultWeightTolerance}
}

// IsWeightItem reports whether the item is sold by weight. The recognizer
// gives no explicit flag, so the only signal is a single-unit line whose
// printed total differs from its unit price.
func (c Classifier) IsWeightItem(item Item) bool {
	if item.Quantity != 1 || !item.UnitPrice.Valid || !item.TotalAmount.Valid {
		return false
	}
	return item.TotalAmount.Decimal.Sub(item.UnitPrice.Decimal).Abs().GreaterThan(c.Tolerance)
}

// Label renders the item the way a picker shows it
func (c Classifier) Label(item Item) string {
	switch {
	case c.IsWeightItem(item):
		return fmt.Sprintf("%s: %s", item.Description, money(item.TotalAmount.Decimal))
	case item.UnitPrice.Valid:
		line := item.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity)))
		return fmt.Sprintf("%s: %s × %d = %s", item.Description, money(item.UnitPrice.Decimal), item.Quantity, money(line))
	case item.TotalAmount.Valid:
		return fmt.Sprintf("%s: %s", item.Description, money(item.TotalAmount.Decimal))
	}
	return item.Description
}

func money(d decimal.Decimal) string {
	return d.StringFixedBank(2)
}
