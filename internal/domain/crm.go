package domain

import "time"

// ============================================================
// Leads
// ============================================================

// LeadStatus is deliberately unconstrained: any status may follow any other.
type LeadStatus string

const (
	LeadNew       LeadStatus = "New"
	LeadContacted LeadStatus = "Contacted"
	LeadQualified LeadStatus = "Qualified"
	LeadClosed    LeadStatus = "Closed"
	LeadArchived  LeadStatus = "Archived"
)

// Valid reports whether s is a known lead status.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadNew, LeadContacted, LeadQualified, LeadClosed, LeadArchived:
		return true
	}
	return false
}

// Lead is an unqualified inbound inquiry.
type Lead struct {
	Meta
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Message   string     `json:"message"`
	Source    string     `json:"source"`
	Status    LeadStatus `json:"status"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (Lead) Kind() Kind { return KindLead }
func (l Lead) SortTime() time.Time { return l.CreatedAt }
func (l Lead) FullName() string { return joinName(l.FirstName, l.LastName) }

// SourceOrDefault is the capture channel, "Direct" when none was recorded.
func (l Lead) SourceOrDefault() string {
	if l.Source == "" {
		return "Direct"
	}
	return l.Source
}

// ============================================================
// Customers
// ============================================================

// Address is a postal address.
type Address struct {
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
}

// EmptyAddress is the blank address new customers start with.
func EmptyAddress() Address {
	return Address{Country: "US"}
}

// Customer is a buying customer of a store.
type Customer struct {
	Meta
	FirstName        string   `json:"firstName"`
	LastName         string   `json:"lastName"`
	Email            string   `json:"email"`
	Phone            string   `json:"phone,omitempty"`
	ShippingAddress  Address  `json:"shippingAddress"`
	BillingAddress   *Address `json:"billingAddress,omitempty"`
	BillingDifferent bool     `json:"billingDifferent"`
	Notes            string   `json:"notes"`

	// SourceLeadID points at the lead this customer was converted from.
	SourceLeadID string `json:"sourceLeadId,omitempty"`
}

func (Customer) Kind() Kind { return KindCustomer }
func (c Customer) SortTime() time.Time { return c.CreatedAt }
func (c Customer) FullName() string { return joinName(c.FirstName, c.LastName) }

// ============================================================
// Claims
// ============================================================

// ClaimStatus is the state of a warranty or service claim.
type ClaimStatus string

const (
	ClaimOpen       ClaimStatus = "Open"
	ClaimInProgress ClaimStatus = "In Progress"
	ClaimResolved   ClaimStatus = "Resolved"
)

// Valid reports whether s is a known claim status.
func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimOpen, ClaimInProgress, ClaimResolved:
		return true
	}
	return false
}

// Claim is a customer issue raised against a store.
type Claim struct {
	Meta
	CustomerID string      `json:"customerId"`
	Issue      string      `json:"issue"`
	Status     ClaimStatus `json:"status"`
	Notes      string      `json:"notes"`
}

func (Claim) Kind() Kind { return KindClaim }
func (c Claim) SortTime() time.Time { return c.CreatedAt }

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}
