package domain

// ============================================================
// Insights (dashboard, accounting, reports)
// ============================================================

// Dashboard is the landing summary for a scope.
type Dashboard struct {
	StoreID        string  `json:"storeId"`
	Leads          int     `json:"leads"`
	NewLeads       int     `json:"newLeads"`
	Customers      int     `json:"customers"`
	OpenClaims     int     `json:"openClaims"`
	Quotes         int     `json:"quotes"`
	ActiveOrders   int     `json:"activeOrders"`
	UpcomingEvents int     `json:"upcomingEvents"`
	Revenue        float64 `json:"revenue"`
}

// AccountingStats are the ledger headline figures.
type AccountingStats struct {
	StoreID      string  `json:"storeId"`
	TotalRevenue float64 `json:"totalRevenue"`
	Receivables  float64 `json:"receivables"`
	Completed    float64 `json:"completed"`
	EstimatedTax float64 `json:"estimatedTax"`
}

// MonthlyRevenue is revenue bucketed by calendar month (YYYY-MM).
type MonthlyRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

// Bucket is one slice of a distribution.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Reports aggregates the analytics page.
type Reports struct {
	StoreID        string           `json:"storeId"`
	RevenueByMonth []MonthlyRevenue `json:"revenueByMonth"`
	LeadSources    []Bucket         `json:"leadSources"`
	ClaimStatuses  []Bucket         `json:"claimStatuses"`
}

// LedgerEntry is one order line of the accounting ledger.
type LedgerEntry struct {
	OrderID       string    `json:"orderId"`
	StoreID       string    `json:"storeId"`
	CreatedAt     string    `json:"createdAt"`
	CustomerName  string    `json:"customerName"`
	Status        string    `json:"status"`
	View          SalesView `json:"view"`
	Subtotal      float64   `json:"subtotal"`
	TaxRate       float64   `json:"taxRate"`
	TaxAmount     float64   `json:"taxAmount"`
	TotalDue      float64   `json:"totalDue"`
	TotalExpenses float64   `json:"totalExpenses"`
	NetProfit     *float64  `json:"netProfit,omitempty"`
}
