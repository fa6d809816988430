package receipt

import "github.com/shopspring/decimal"

var reconcileTolerance = decimal.New(1, -2)

// Reconciliation cross-checks recognized items against the printed total.
// It is informational only and never changes a participant's share.
type Reconciliation struct {
	ItemsCost       decimal.Decimal     `json:"items_cost"`
	Discount        decimal.Decimal     `json:"discount"`
	DiscountPercent decimal.Decimal     `json:"discount_percent"`
	ServiceCharge   decimal.Decimal     `json:"service_charge"`
	CalculatedTotal decimal.Decimal     `json:"calculated_total"`
	CheckAmount     decimal.NullDecimal `json:"check_amount"`
	Matches         bool                `json:"matches"`
}

// Reconcile recomputes the whole receipt the way the till printed it:
// items cost less the receipt discount, plus service charge on the rest.
func Reconcile(r *Receipt) Reconciliation {
	rec := Reconciliation{ItemsCost: r.ItemsCost(), CheckAmount: r.TotalCheckAmount}

	switch {
	case r.TotalDiscountAmount.Valid:
		rec.Discount = r.TotalDiscountAmount.Decimal
	case r.TotalDiscountPercent.Valid:
		rec.Discount = quantize(rec.ItemsCost.Mul(r.TotalDiscountPercent.Decimal).Div(hundred))
	}
	if rec.ItemsCost.IsPositive() {
		rec.DiscountPercent = quantize(rec.Discount.Mul(hundred).Div(rec.ItemsCost))
	}

	total := rec.ItemsCost.Sub(rec.Discount)
	if r.ServiceChargePercent.Valid {
		rec.ServiceCharge = quantize(total.Mul(r.ServiceChargePercent.Decimal).Div(hundred))
		total = total.Add(rec.ServiceCharge)
	}
	rec.CalculatedTotal = quantize(total)

	if r.TotalCheckAmount.Valid {
		rec.Matches = rec.CalculatedTotal.Sub(r.TotalCheckAmount.Decimal).Abs().LessThan(reconcileTolerance)
	}
	return rec
}
