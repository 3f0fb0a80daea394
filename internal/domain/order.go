package domain

import "time"

// ============================================================
// Orders (quote / order / invoice views of one entity)
// ============================================================

// OrderStatus tags which view an order currently belongs to.
type OrderStatus string

const (
	OrderQuote      OrderStatus = "Quote"
	OrderProcessing OrderStatus = "Processing"
	OrderShipped    OrderStatus = "Shipped"
	OrderInvoiced   OrderStatus = "Invoiced"
	OrderCompleted  OrderStatus = "Completed"
)

// orderTransitions is the only lifecycle an order may follow.
var orderTransitions = map[OrderStatus]OrderStatus{
	OrderQuote:      OrderProcessing,
	OrderProcessing: OrderShipped,
	OrderShipped:    OrderInvoiced,
	OrderInvoiced:   OrderCompleted,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderQuote, OrderProcessing, OrderShipped, OrderInvoiced, OrderCompleted:
		return true
	}
	return false
}

// Next returns the status that follows s, false for Completed.
func (s OrderStatus) Next() (OrderStatus, bool) {
	next, ok := orderTransitions[s]
	return next, ok
}

// CheckOrderTransition validates a status change. Re-asserting the current
// status is a no-op and allowed.
func CheckOrderTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return &ErrValidation{Field: "status", Message: "unknown order status " + string(to)}
	}
	if from == to {
		return nil
	}
	if next, ok := orderTransitions[from]; ok && next == to {
		return nil
	}
	return &ErrInvalidTransition{Resource: "order", From: string(from), To: string(to)}
}

// SalesView is one of the three listings over the orders collection.
type SalesView string

const (
	ViewQuotes   SalesView = "quotes"
	ViewOrders   SalesView = "orders"
	ViewInvoices SalesView = "invoices"
)

// ViewFor returns the listing an order with status s appears in.
func ViewFor(s OrderStatus) SalesView {
	switch s {
	case OrderQuote:
		return ViewQuotes
	case OrderInvoiced:
		return ViewInvoices
	}
	return ViewOrders
}

// LineItem is one product row of an order.
type LineItem struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"productId,omitempty"`
	ProductName string  `json:"productName"`
	SKU         string  `json:"sku"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// Expense is an opt-in cost entry used to derive net profit.
type Expense struct {
	ID       string  `json:"id"`
	TypeID   string  `json:"typeId,omitempty"`
	TypeName string  `json:"typeName"`
	Amount   float64 `json:"amount"`
	Note     string  `json:"note,omitempty"`
}

// Attachment references a document payload held in the blob store.
type Attachment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	BlobKey   string    `json:"blobKey"`
	CreatedAt time.Time `json:"createdAt"`
}

// Order is a quote, order or invoice depending on Status. Amount caches
// the pre-tax subtotal of LineItems and is never edited directly.
type Order struct {
	Meta
	CustomerID       string       `json:"customerId"`
	LineItems        []LineItem   `json:"lineItems"`
	Amount           float64      `json:"amount"`
	Status           OrderStatus  `json:"status"`
	TaxRate          float64      `json:"taxRate"`
	SalesTaxOverride *float64     `json:"salesTaxOverride,omitempty"`
	IsNonTaxable     bool         `json:"isNonTaxable"`
	Expenses         []Expense    `json:"expenses"`
	Notes            string       `json:"notes"`
	Attachments      []Attachment `json:"attachments"`
	TrackingNumber   string       `json:"trackingNumber,omitempty"`
}

func (Order) Kind() Kind { return KindOrder }
func (o Order) SortTime() time.Time { return o.CreatedAt }

// ValidateLineItems checks quantity and price bounds.
func ValidateLineItems(items []LineItem) error {
	for _, it := range items {
		if it.Quantity <= 0 {
			return &ErrValidation{Field: "lineItems.quantity", Message: "quantity must be greater than zero"}
		}
		if it.Price < 0 {
			return &ErrValidation{Field: "lineItems.price", Message: "price must not be negative"}
		}
	}
	return nil
}

// ValidateExpenses checks expense amounts.
func ValidateExpenses(expenses []Expense) error {
	for _, e := range expenses {
		if e.Amount < 0 {
			return &ErrValidation{Field: "expenses.amount", Message: "amount must not be negative"}
		}
	}
	return nil
}

// ============================================================
// Inventory
// ============================================================

// StockStatus is set by the operator, not derived from quantity.
type StockStatus string

const (
	StockIn  StockStatus = "In Stock"
	StockLow StockStatus = "Low Stock"
	StockOut StockStatus = "Out of Stock"
)

// Valid reports whether s is a known stock status.
func (s StockStatus) Valid() bool {
	switch s {
	case StockIn, StockLow, StockOut:
		return true
	}
	return false
}

// InventoryItem is a catalogue product a store sells.
type InventoryItem struct {
	Meta
	Name        string      `json:"name"`
	SKU         string      `json:"sku"`
	Description string      `json:"description"`
	Price       float64     `json:"price"`
	Quantity    int         `json:"quantity"`
	TrackStock  bool        `json:"trackStock"`
	Status      StockStatus `json:"status"`
}

func (InventoryItem) Kind() Kind { return KindInventory }
func (i InventoryItem) SortTime() time.Time { return i.CreatedAt }
