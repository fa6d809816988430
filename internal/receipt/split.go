package receipt

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

const (
	stepServiceCharge   = "service_charge"
	stepReceiptDiscount = "receipt_discount"
)

// quantize rounds a monetary amount to cents, half to even
func quantize(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// Line is one selected item in a participant's breakdown
type Line struct {
	Index       int             `json:"index"`
	Description string          `json:"description"`
	Count       int             `json:"count"`
	Cost        decimal.Decimal `json:"cost"`
	Discount    string          `json:"discount,omitempty"`
	Weight      bool            `json:"weight,omitempty"`
}

func (l Line) String() string {
	var s string
	if l.Weight {
		s = fmt.Sprintf("%s (by weight) = %s", l.Description, money(l.Cost))
	} else {
		s = fmt.Sprintf("%s × %d = %s", l.Description, l.Count, money(l.Cost))
	}
	if l.Discount != "" {
		s += " (" + l.Discount + ")"
	}
	return s
}

// Adjustment is a receipt-level change applied to a running total
type Adjustment struct {
	Step    string              `json:"step"`
	Percent decimal.NullDecimal `json:"percent"`
	Amount  decimal.Decimal     `json:"amount"` // signed
}

func (a Adjustment) String() string {
	label := "Discount"
	if a.Step == stepServiceCharge {
		label = "Service charge"
	}
	if a.Percent.Valid {
		label = fmt.Sprintf("%s %s%%", label, a.Percent.Decimal.String())
	}
	sign := "+"
	if a.Amount.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("%s: %s%s", label, sign, money(a.Amount.Abs()))
}

// Step is one named stage of the receipt-level adjustment pipeline.
// Apply returns false when the receipt carries nothing for this stage.
type Step struct {
	Name  string
	Apply func(r *Receipt, running decimal.Decimal) (Adjustment, bool)
}

// ServiceChargeStep adds the service charge percentage of the running total
var ServiceChargeStep = Step{Name: stepServiceCharge, Apply: applyServiceCharge}

// ReceiptDiscountStep subtracts the receipt-wide discount. A percentage
// applies to the running total; an absolute amount is shared in proportion
// to the running total's part of the whole receipt's item cost.
var ReceiptDiscountStep = Step{Name: stepReceiptDiscount, Apply: applyReceiptDiscount}

// ServiceThenDiscount charges service first and discounts the result
var ServiceThenDiscount = []Step{ServiceChargeStep, ReceiptDiscountStep}

// DiscountThenService discounts first and charges service on the result
var DiscountThenService = []Step{ReceiptDiscountStep, ServiceChargeStep}

// Pipeline resolves an adjustment order by its configuration name
func Pipeline(name string) ([]Step, error) {
	switch name {
	case "", "service-first":
		return ServiceThenDiscount, nil
	case "discount-first":
		return DiscountThenService, nil
	}
	return nil, fmt.Errorf("unknown adjustment order %q", name)
}

func applyServiceCharge(r *Receipt, running decimal.Decimal) (Adjustment, bool) {
	if !r.ServiceChargePercent.Valid {
		return Adjustment{}, false
	}
	amount := quantize(running.Mul(r.ServiceChargePercent.Decimal).Div(hundred))
	return Adjustment{Step: stepServiceCharge, Percent: r.ServiceChargePercent, Amount: amount}, true
}

func applyReceiptDiscount(r *Receipt, running decimal.Decimal) (Adjustment, bool) {
	if r.TotalDiscountPercent.Valid && r.TotalDiscountPercent.Decimal.IsPositive() {
		amount := quantize(running.Mul(r.TotalDiscountPercent.Decimal).Div(hundred))
		return Adjustment{Step: stepReceiptDiscount, Percent: r.TotalDiscountPercent, Amount: amount.Neg()}, true
	}
	if !r.TotalDiscountAmount.Valid {
		return Adjustment{}, false
	}
	full := r.ItemsCost()
	if !full.IsPositive() {
		return Adjustment{}, false
	}
	share := quantize(running.Mul(r.TotalDiscountAmount.Decimal).Div(full))
	return Adjustment{Step: stepReceiptDiscount, Amount: share.Neg()}, true
}

// Split is the computed share for one selection
type Split struct {
	Lines       []Line          `json:"lines"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Adjustments []Adjustment    `json:"adjustments"`
	Total       decimal.Decimal `json:"total"`
}

// Breakdown renders the split as display lines
func (s Split) Breakdown() []string {
	out := make([]string, 0, len(s.Lines)+len(s.Adjustments)+1)
	for _, line := range s.Lines {
		out = append(out, line.String())
	}
	for _, adj := range s.Adjustments {
		out = append(out, adj.String())
	}
	return append(out, "Total: "+money(s.Total))
}

// Calculator computes participants' shares of a receipt
type Calculator struct {
	Classifier Classifier
	Steps      []Step
}

// NewCalculator creates a Calculator with the default tolerance and
// service-then-discount ordering
func NewCalculator() *Calculator {
	return &Calculator{
		Classifier: NewClassifier(),
		Steps:      ServiceThenDiscount,
	}
}

// ItemCost returns the cost of count units of item after the item's own
// discount, with a note describing that discount. It returns false when the
// item is not included at all.
func (c *Calculator) ItemCost(item Item, count int) (decimal.Decimal, string, bool) {
	if count <= 0 || !item.Priced() {
		return decimal.Zero, "", false
	}

	units := count
	n := decimal.NewFromInt(int64(count))
	qty := decimal.NewFromInt(int64(item.Quantity))

	var cost decimal.Decimal
	switch {
	case c.Classifier.IsWeightItem(item):
		// indivisible: any positive count takes the whole line
		cost = item.TotalAmount.Decimal
		units = item.Quantity
	case item.UnitPrice.Valid:
		cost = item.UnitPrice.Decimal.Mul(n)
	case item.Quantity > 0:
		cost = item.TotalAmount.Decimal.Mul(n).Div(qty)
	default:
		// a total with no unit count cannot be divided
		return decimal.Zero, "", false
	}

	var note string
	switch {
	case item.DiscountPercent.Valid:
		cost = cost.Sub(quantize(cost.Mul(item.DiscountPercent.Decimal).Div(hundred)))
		note = fmt.Sprintf("discount %s%%", item.DiscountPercent.Decimal.String())
	case item.DiscountAmount.Valid && item.Quantity > 0:
		discount := quantize(item.DiscountAmount.Decimal.Mul(decimal.NewFromInt(int64(units))).Div(qty))
		cost = cost.Sub(discount)
		note = "discount " + money(discount)
	}
	return cost, note, true
}

// Compute returns the share of receipt owed for selection. Indices outside
// the receipt and non-positive counts are ignored. Compute is pure.
func (c *Calculator) Compute(r *Receipt, selection Selection) Split {
	indices := make([]int, 0, len(selection))
	for index, count := range selection {
		if count > 0 {
			indices = append(indices, index)
		}
	}
	sort.Ints(indices)

	split := Split{Subtotal: decimal.Zero}
	for _, index := range indices {
		item, ok := r.Item(index)
		if !ok {
			continue
		}
		count := selection[index]
		cost, note, ok := c.ItemCost(item, count)
		if !ok {
			continue
		}
		split.Lines = append(split.Lines, Line{
			Index:       index,
			Description: item.Description,
			Count:       count,
			Cost:        cost,
			Discount:    note,
			Weight:      c.Classifier.IsWeightItem(item),
		})
		split.Subtotal = split.Subtotal.Add(cost)
	}

	running := split.Subtotal
	for _, step := range c.Steps {
		adj, ok := step.Apply(r, running)
		if !ok {
			continue
		}
		running = running.Add(adj.Amount)
		split.Adjustments = append(split.Adjustments, adj)
	}
	split.Total = quantize(running)
	return split
}
