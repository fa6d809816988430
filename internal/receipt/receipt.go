package receipt

import "github.com/shopspring/decimal"

// Item is one printed line of a recognized receipt
type Item struct {
	Description     string              `json:"description"`
	Quantity        int                 `json:"quantity"` // discrete count, always >= 1
	UnitPrice       decimal.NullDecimal `json:"unit_price"`
	TotalAmount     decimal.NullDecimal `json:"total_amount"` // printed line total
	DiscountPercent decimal.NullDecimal `json:"discount_percent"`
	DiscountAmount  decimal.NullDecimal `json:"discount_amount"`
}

// Priced reports whether the item carries any price at all.
// Unpriced items are excluded from every total.
func (i Item) Priced() bool {
	return i.UnitPrice.Valid || i.TotalAmount.Valid
}

// Receipt is the canonical form of recognizer output.
// Item order is stable: an item's index is its identity.
type Receipt struct {
	Items                []Item              `json:"items"`
	ServiceChargePercent decimal.NullDecimal `json:"service_charge_percent"`
	TotalCheckAmount     decimal.NullDecimal `json:"total_check_amount"`
	TotalDiscountPercent decimal.NullDecimal `json:"total_discount_percent"`
	TotalDiscountAmount  decimal.NullDecimal `json:"total_discount_amount"`
}

// Item returns the item at index, or false when the index is out of range
func (r *Receipt) Item(index int) (Item, bool) {
	if r == nil || index < 0 || index >= len(r.Items) {
		return Item{}, false
	}
	return r.Items[index], true
}

// ItemsCost is the sum of every printed line total, independent of any selection
func (r *Receipt) ItemsCost() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range r.Items {
		if item.TotalAmount.Valid {
			sum = sum.Add(item.TotalAmount.Decimal)
		}
	}
	return sum
}

// Selection maps an item index to the number of units a participant took
type Selection map[int]int

// Empty reports whether nothing is selected
func (s Selection) Empty() bool {
	for _, count := range s {
		if count > 0 {
			return false
		}
	}
	return true
}

// Snapshot returns a copy holding only positive counts
func (s Selection) Snapshot() Selection {
	out := make(Selection, len(s))
	for index, count := range s {
		if count > 0 {
			out[index] = count
		}
	}
	return out
}
