package domain

import "strings"

// ============================================================
// Typed drafts: one editing buffer per entity kind
// ============================================================

// Draft is the validated input for creating an entity of type T.
// Build stamps the tenant; ids, versions and timestamps are assigned
// by the store of record.
type Draft[T Entity] interface {
	Validate() error
	Build(storeID string) T
}

// LeadDraft creates a Lead.
type LeadDraft struct {
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Message   string     `json:"message"`
	Source    string     `json:"source"`
	Status    LeadStatus `json:"status"`
}

func (d LeadDraft) Validate() error {
	if strings.TrimSpace(d.FirstName) == "" && strings.TrimSpace(d.Email) == "" {
		return &ErrValidation{Field: "firstName", Message: "a lead needs a name or an email"}
	}
	if d.Status != "" && !d.Status.Valid() {
		return &ErrValidation{Field: "status", Message: "unknown lead status"}
	}
	return nil
}

func (d LeadDraft) Build(storeID string) Lead {
	status := d.Status
	if status == "" {
		status = LeadNew
	}
	return Lead{
		Meta:      Meta{StoreID: storeID},
		FirstName: strings.TrimSpace(d.FirstName),
		LastName:  strings.TrimSpace(d.LastName),
		Email:     strings.TrimSpace(d.Email),
		Phone:     strings.TrimSpace(d.Phone),
		Message:   d.Message,
		Source:    d.Source,
		Status:    status,
	}
}

// CustomerDraft creates a Customer.
type CustomerDraft struct {
	FirstName        string   `json:"firstName"`
	LastName         string   `json:"lastName"`
	Email            string   `json:"email"`
	Phone            string   `json:"phone"`
	ShippingAddress  *Address `json:"shippingAddress,omitempty"`
	BillingAddress   *Address `json:"billingAddress,omitempty"`
	BillingDifferent bool     `json:"billingDifferent"`
	Notes            string   `json:"notes"`
	SourceLeadID     string   `json:"sourceLeadId,omitempty"`
}

func (d CustomerDraft) Validate() error {
	if strings.TrimSpace(d.FirstName) == "" {
		return &ErrValidation{Field: "firstName", Message: "first name is required"}
	}
	if strings.TrimSpace(d.Email) == "" {
		return &ErrValidation{Field: "email", Message: "email is required"}
	}
	if d.BillingDifferent && d.BillingAddress == nil {
		return &ErrValidation{Field: "billingAddress", Message: "required when billing differs from shipping"}
	}
	return nil
}

func (d CustomerDraft) Build(storeID string) Customer {
	shipping := EmptyAddress()
	if d.ShippingAddress != nil {
		shipping = *d.ShippingAddress
	}
	c := Customer{
		Meta:             Meta{StoreID: storeID},
		FirstName:        strings.TrimSpace(d.FirstName),
		LastName:         strings.TrimSpace(d.LastName),
		Email:            strings.TrimSpace(d.Email),
		Phone:            strings.TrimSpace(d.Phone),
		ShippingAddress:  shipping,
		BillingDifferent: d.BillingDifferent,
		Notes:            d.Notes,
		SourceLeadID:     d.SourceLeadID,
	}
	if d.BillingDifferent {
		c.BillingAddress = d.BillingAddress
	}
	return c
}

// Audit notes stamped on customers created outside the customer form.
const (
	QuickCustomerNote = "Added from order flow."
	ConvertedLeadNote = "Converted from lead."
)

// ConvertedLeadDraft is the customer created by converting a lead. It
// copies whatever contact details the lead has, so every stored lead
// converts; only the back-reference is required.
type ConvertedLeadDraft struct {
	CustomerDraft
}

func (d ConvertedLeadDraft) Validate() error {
	if strings.TrimSpace(d.SourceLeadID) == "" {
		return &ErrValidation{Field: "sourceLeadId", Message: "a converted customer needs its lead"}
	}
	return nil
}

// CustomerDraftFromLead copies a lead's contact details into a customer
// draft that points back at the lead.
func CustomerDraftFromLead(l Lead) ConvertedLeadDraft {
	shipping := EmptyAddress()
	return ConvertedLeadDraft{CustomerDraft{
		FirstName:       l.FirstName,
		LastName:        l.LastName,
		Email:           l.Email,
		Phone:           l.Phone,
		ShippingAddress: &shipping,
		Notes:           ConvertedLeadNote,
		SourceLeadID:    l.ID,
	}}
}

// QuickCustomerDraft is the minimal customer form of the order flow.
type QuickCustomerDraft struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (d QuickCustomerDraft) Validate() error {
	return d.customer().Validate()
}

func (d QuickCustomerDraft) Build(storeID string) Customer {
	return d.customer().Build(storeID)
}

func (d QuickCustomerDraft) customer() CustomerDraft {
	return CustomerDraft{
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Email:     d.Email,
		Phone:     d.Phone,
		Notes:     QuickCustomerNote,
	}
}

// ClaimDraft creates a Claim.
type ClaimDraft struct {
	CustomerID string      `json:"customerId"`
	Issue      string      `json:"issue"`
	Status     ClaimStatus `json:"status"`
	Notes      string      `json:"notes"`
}

func (d ClaimDraft) Validate() error {
	if d.CustomerID == "" {
		return &ErrValidation{Field: "customerId", Message: "customer is required"}
	}
	if strings.TrimSpace(d.Issue) == "" {
		return &ErrValidation{Field: "issue", Message: "issue is required"}
	}
	if d.Status != "" && !d.Status.Valid() {
		return &ErrValidation{Field: "status", Message: "unknown claim status"}
	}
	return nil
}

func (d ClaimDraft) Build(storeID string) Claim {
	status := d.Status
	if status == "" {
		status = ClaimOpen
	}
	return Claim{
		Meta:       Meta{StoreID: storeID},
		CustomerID: d.CustomerID,
		Issue:      strings.TrimSpace(d.Issue),
		Status:     status,
		Notes:      d.Notes,
	}
}

// OrderDraft creates an Order. Amount is derived, never accepted.
type OrderDraft struct {
	CustomerID       string      `json:"customerId"`
	LineItems        []LineItem  `json:"lineItems"`
	Status           OrderStatus `json:"status"`
	TaxRate          float64     `json:"taxRate"`
	SalesTaxOverride *float64    `json:"salesTaxOverride,omitempty"`
	IsNonTaxable     bool        `json:"isNonTaxable"`
	Expenses         []Expense   `json:"expenses"`
	Notes            string      `json:"notes"`
	TrackingNumber   string      `json:"trackingNumber,omitempty"`
}

func (d OrderDraft) Validate() error {
	if d.CustomerID == "" {
		return &ErrValidation{Field: "customerId", Message: "customer is required"}
	}
	if d.Status != "" && !d.Status.Valid() {
		return &ErrValidation{Field: "status", Message: "unknown order status"}
	}
	if d.TaxRate < 0 {
		return &ErrValidation{Field: "taxRate", Message: "must not be negative"}
	}
	if d.SalesTaxOverride != nil && *d.SalesTaxOverride < 0 {
		return &ErrValidation{Field: "salesTaxOverride", Message: "must not be negative"}
	}
	if err := ValidateLineItems(d.LineItems); err != nil {
		return err
	}
	return ValidateExpenses(d.Expenses)
}

func (d OrderDraft) Build(storeID string) Order {
	status := d.Status
	if status == "" {
		status = OrderQuote
	}
	items := d.LineItems
	if items == nil {
		items = []LineItem{}
	}
	expenses := d.Expenses
	if expenses == nil {
		expenses = []Expense{}
	}
	return Order{
		Meta:             Meta{StoreID: storeID},
		CustomerID:       d.CustomerID,
		LineItems:        items,
		Status:           status,
		TaxRate:          d.TaxRate,
		SalesTaxOverride: d.SalesTaxOverride,
		IsNonTaxable:     d.IsNonTaxable,
		Expenses:         expenses,
		Notes:            d.Notes,
		Attachments:      []Attachment{},
		TrackingNumber:   d.TrackingNumber,
	}
}

// InventoryDraft creates an InventoryItem.
type InventoryDraft struct {
	Name        string      `json:"name"`
	SKU         string      `json:"sku"`
	Description string      `json:"description"`
	Price       float64     `json:"price"`
	Quantity    int         `json:"quantity"`
	TrackStock  bool        `json:"trackStock"`
	Status      StockStatus `json:"status"`
}

func (d InventoryDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return &ErrValidation{Field: "name", Message: "name is required"}
	}
	if d.Price < 0 {
		return &ErrValidation{Field: "price", Message: "must not be negative"}
	}
	if d.Quantity < 0 {
		return &ErrValidation{Field: "quantity", Message: "must not be negative"}
	}
	if d.Status != "" && !d.Status.Valid() {
		return &ErrValidation{Field: "status", Message: "unknown stock status"}
	}
	return nil
}

func (d InventoryDraft) Build(storeID string) InventoryItem {
	status := d.Status
	if status == "" {
		status = StockIn
	}
	return InventoryItem{
		Meta:        Meta{StoreID: storeID},
		Name:        strings.TrimSpace(d.Name),
		SKU:         strings.TrimSpace(d.SKU),
		Description: d.Description,
		Price:       d.Price,
		Quantity:    d.Quantity,
		TrackStock:  d.TrackStock,
		Status:      status,
	}
}

// PlannerDraft creates a PlannerEvent.
type PlannerDraft struct {
	Type         EventType   `json:"type"`
	CustomerID   string      `json:"customerId,omitempty"`
	CustomerName string      `json:"customerName,omitempty"`
	Date         string      `json:"date"`
	Time         string      `json:"time,omitempty"`
	Address      string      `json:"address"`
	AssignedTo   string      `json:"assignedTo,omitempty"`
	Notes        string      `json:"notes"`
	Status       EventStatus `json:"status"`
}

func (d PlannerDraft) Validate() error {
	if !d.Type.Valid() {
		return &ErrValidation{Field: "type", Message: "unknown event type"}
	}
	if _, err := ParseEventDate(d.Date); err != nil {
		return &ErrValidation{Field: "date", Message: "expected YYYY-MM-DD"}
	}
	if d.Status != "" && !d.Status.Valid() {
		return &ErrValidation{Field: "status", Message: "unknown event status"}
	}
	return nil
}

func (d PlannerDraft) Build(storeID string) PlannerEvent {
	status := d.Status
	if status == "" {
		status = EventScheduled
	}
	return PlannerEvent{
		Meta:         Meta{StoreID: storeID},
		Type:         d.Type,
		CustomerID:   d.CustomerID,
		CustomerName: d.CustomerName,
		Date:         d.Date,
		Time:         d.Time,
		Address:      d.Address,
		AssignedTo:   d.AssignedTo,
		Notes:        d.Notes,
		Status:       status,
	}
}

// Compile-time checks that every draft builds its kind.
var (
	_ Draft[Lead]          = LeadDraft{}
	_ Draft[Customer]      = CustomerDraft{}
	_ Draft[Customer]      = QuickCustomerDraft{}
	_ Draft[Claim]         = ClaimDraft{}
	_ Draft[Order]         = OrderDraft{}
	_ Draft[InventoryItem] = InventoryDraft{}
	_ Draft[PlannerEvent]  = PlannerDraft{}
)
