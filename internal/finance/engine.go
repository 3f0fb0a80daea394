// Package finance derives order totals, tax, expenses and net profit.
// Everything here is pure: no I/O, no clocks.
package finance

import (
	"math"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
)

// Breakdown is the derived financial view of one order.
type Breakdown struct {
	Subtotal      float64 `json:"subtotal"`
	EffectiveRate float64 `json:"effectiveRate"`
	TaxAmount     float64 `json:"taxAmount"`
	TotalDue      float64 `json:"totalDue"`
	TotalExpenses float64 `json:"totalExpenses"`
	// NetProfit is nil when the order has no expense entries: the
	// profit figure is absent rather than zero.
	NetProfit *float64 `json:"netProfit,omitempty"`
}

// Subtotal is Σ price × quantity over the line items, rounded to cents.
// The rounded value is what an order persists as its amount.
func Subtotal(items []domain.LineItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Price * float64(it.Quantity)
	}
	return RoundCents(sum)
}

// EffectiveRate picks the tax rate: the order override when present, then
// the order's own rate, then the store default.
func EffectiveRate(o domain.Order, storeRate float64) float64 {
	switch {
	case o.SalesTaxOverride != nil:
		return *o.SalesTaxOverride
	case o.TaxRate > 0:
		return o.TaxRate
	case storeRate > 0:
		return storeRate
	}
	return domain.DefaultSalesTax
}

// TaxAmount is the tax due on subtotal, zero for non-taxable orders.
func TaxAmount(o domain.Order, subtotal, storeRate float64) float64 {
	if o.IsNonTaxable {
		return 0
	}
	return RoundCents(subtotal * EffectiveRate(o, storeRate) / 100)
}

// TotalExpenses is Σ expense amounts.
func TotalExpenses(expenses []domain.Expense) float64 {
	var sum float64
	for _, e := range expenses {
		sum += e.Amount
	}
	return RoundCents(sum)
}

// Compute derives the full breakdown. Net profit is not clamped and may be
// negative.
func Compute(o domain.Order, storeRate float64) Breakdown {
	subtotal := Subtotal(o.LineItems)
	tax := TaxAmount(o, subtotal, storeRate)

	b := Breakdown{
		Subtotal:      subtotal,
		EffectiveRate: EffectiveRate(o, storeRate),
		TaxAmount:     tax,
		TotalDue:      RoundCents(subtotal + tax),
		TotalExpenses: TotalExpenses(o.Expenses),
	}
	if len(o.Expenses) > 0 {
		profit := RoundCents(subtotal - b.TotalExpenses - tax)
		b.NetProfit = &profit
	}
	return b
}

// Recalculate returns o with Amount reset to the line-item subtotal.
func Recalculate(o domain.Order) domain.Order {
	o.Amount = Subtotal(o.LineItems)
	return o
}

// RoundCents rounds half away from zero to two decimals.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
