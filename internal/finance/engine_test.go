package finance_test

import (
	"testing"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/finance"
)

func cabinetOrder() domain.Order {
	return domain.Order{
		LineItems: []domain.LineItem{{ID: "li-1", ProductName: "Shaker base cabinet", Price: 450, Quantity: 10}},
		TaxRate:   8.25,
		Status:    domain.OrderQuote,
	}
}

func TestCompute_WorkedExample(t *testing.T) {
	o := cabinetOrder()
	o.Expenses = []domain.Expense{{ID: "e1", TypeName: "Freight", Amount: 120}, {ID: "e2", TypeName: "Install", Amount: 300}}

	b := finance.Compute(o, domain.DefaultSalesTax)

	if b.Subtotal != 4500 {
		t.Errorf("subtotal: expected 4500, got %v", b.Subtotal)
	}
	if b.TaxAmount != 371.25 {
		t.Errorf("tax: expected 371.25, got %v", b.TaxAmount)
	}
	if b.TotalDue != 4871.25 {
		t.Errorf("total due: expected 4871.25, got %v", b.TotalDue)
	}
	if b.TotalExpenses != 420 {
		t.Errorf("expenses: expected 420, got %v", b.TotalExpenses)
	}
	if b.NetProfit == nil || *b.NetProfit != 3708.75 {
		t.Errorf("net profit: expected 3708.75, got %v", b.NetProfit)
	}
}

func TestCompute_NoExpensesMeansNoProfit(t *testing.T) {
	b := finance.Compute(cabinetOrder(), domain.DefaultSalesTax)
	if b.NetProfit != nil {
		t.Errorf("expected no net profit without expenses, got %v", *b.NetProfit)
	}
	if b.TotalExpenses != 0 {
		t.Errorf("expected zero expenses, got %v", b.TotalExpenses)
	}
}

func TestCompute_NetProfitIsNotClamped(t *testing.T) {
	o := cabinetOrder()
	o.Expenses = []domain.Expense{{ID: "e1", Amount: 10000}}

	b := finance.Compute(o, domain.DefaultSalesTax)

	if b.NetProfit == nil || *b.NetProfit != -5871.25 {
		t.Errorf("expected -5871.25, got %v", b.NetProfit)
	}
}

func TestCompute_NonTaxable(t *testing.T) {
	o := cabinetOrder()
	o.IsNonTaxable = true

	b := finance.Compute(o, domain.DefaultSalesTax)

	if b.TaxAmount != 0 || b.TotalDue != 4500 {
		t.Errorf("expected no tax, got tax=%v total=%v", b.TaxAmount, b.TotalDue)
	}
}

func TestEffectiveRate_Precedence(t *testing.T) {
	override := 5.0
	zero := 0.0

	tests := []struct {
		name  string
		order domain.Order
		store float64
		want  float64
	}{
		{"override wins", domain.Order{TaxRate: 8.25, SalesTaxOverride: &override}, 7, 5},
		{"zero override is still an override", domain.Order{TaxRate: 8.25, SalesTaxOverride: &zero}, 7, 0},
		{"order rate", domain.Order{TaxRate: 6.5}, 7, 6.5},
		{"store default", domain.Order{}, 7, 7},
		{"platform default", domain.Order{}, 0, domain.DefaultSalesTax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := finance.EffectiveRate(tt.order, tt.store); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRecalculate_AmountTracksLineItems(t *testing.T) {
	o := finance.Recalculate(cabinetOrder())
	if o.Amount != 4500 {
		t.Fatalf("expected 4500, got %v", o.Amount)
	}

	o.LineItems = append(o.LineItems, domain.LineItem{ID: "li-2", Price: 19.99, Quantity: 3})
	o = finance.Recalculate(o)
	if o.Amount != 4559.97 {
		t.Errorf("expected 4559.97, got %v", o.Amount)
	}

	o.LineItems = nil
	if o = finance.Recalculate(o); o.Amount != 0 {
		t.Errorf("expected 0 for empty order, got %v", o.Amount)
	}
}

func TestSubtotal_PersistedAmountIsRoundedToCents(t *testing.T) {
	items := []domain.LineItem{
		{ID: "li-1", ProductName: "Hinge", Price: 0.333, Quantity: 3},
		{ID: "li-2", ProductName: "Pull", Price: 1.1, Quantity: 3},
	}

	if got := finance.Subtotal(items); got != 4.3 {
		t.Errorf("subtotal: expected 4.3, got %v", got)
	}

	o := finance.Recalculate(domain.Order{LineItems: items})
	if o.Amount != 4.3 {
		t.Errorf("amount: expected the rounded subtotal 4.3, got %v", o.Amount)
	}
}
