package domain

import (
	"strings"
	"time"
)

// AllStores is the reserved actor context meaning "aggregate across tenants".
// It is never stored on a row.
const AllStores = "all"

// DefaultSalesTax is the store tax rate used when a store has none configured.
const DefaultSalesTax = 8.25

// ============================================================
// Stores (tenants)
// ============================================================

// StoreStatus is the commercial state of a tenant.
type StoreStatus string

const (
	StoreActive    StoreStatus = "active"
	StoreSuspended StoreStatus = "suspended"
	StoreTrial     StoreStatus = "trial"
)

// Store is one tenant. ID equals the domain slug, which is what a
// subdomain resolves to.
type Store struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Domain            string      `json:"domain"`
	OwnerEmail        string      `json:"ownerEmail"`
	Status            StoreStatus `json:"status"`
	SalesTax          float64     `json:"salesTax"`
	WebhookSecretHash string      `json:"-"`
	CreatedAt         time.Time   `json:"createdAt"`
}

// TaxRate returns the store default tax rate.
func (s *Store) TaxRate() float64 {
	if s == nil || s.SalesTax <= 0 {
		return DefaultSalesTax
	}
	return s.SalesTax
}

// StoreDraft is the input for creating a store.
type StoreDraft struct {
	Name          string      `json:"name"`
	Domain        string      `json:"domain"`
	OwnerEmail    string      `json:"ownerEmail"`
	Status        StoreStatus `json:"status"`
	SalesTax      float64     `json:"salesTax"`
	WebhookSecret string      `json:"webhookSecret,omitempty"`
}

// Validate checks the fields a new store needs.
func (d StoreDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return &ErrValidation{Field: "name", Message: "store name is required"}
	}
	slug := NormalizeSlug(d.Domain)
	if slug == "" {
		return &ErrValidation{Field: "domain", Message: "store domain key is required"}
	}
	if slug == AllStores || slug == "www" {
		return &ErrValidation{Field: "domain", Message: "domain key is reserved"}
	}
	switch d.Status {
	case "", StoreActive, StoreSuspended, StoreTrial:
	default:
		return &ErrValidation{Field: "status", Message: "unknown store status"}
	}
	if d.SalesTax < 0 {
		return &ErrValidation{Field: "salesTax", Message: "must not be negative"}
	}
	return nil
}

// Store builds the store row. The caller hashes the webhook secret.
func (d StoreDraft) Store() Store {
	slug := NormalizeSlug(d.Domain)
	status := d.Status
	if status == "" {
		status = StoreTrial
	}
	tax := d.SalesTax
	if tax == 0 {
		tax = DefaultSalesTax
	}
	return Store{
		ID:         slug,
		Name:       strings.TrimSpace(d.Name),
		Domain:     slug,
		OwnerEmail: strings.TrimSpace(d.OwnerEmail),
		Status:     status,
		SalesTax:   tax,
	}
}

// StoreSettings is a partial update of a store's own settings. Nil fields
// are left unchanged.
type StoreSettings struct {
	Name     *string      `json:"name,omitempty"`
	Status   *StoreStatus `json:"status,omitempty"`
	SalesTax *float64     `json:"salesTax,omitempty"`
	// WebhookSecret replaces the lead-capture secret; "" clears it.
	WebhookSecret *string `json:"webhookSecret,omitempty"`

	webhookSecretHash *string
}

// Validate checks the supplied fields.
func (s StoreSettings) Validate() error {
	if s.Name == nil && s.Status == nil && s.SalesTax == nil && s.WebhookSecret == nil {
		return &ErrValidation{Field: "settings", Message: "no fields to update"}
	}
	if s.Name != nil && strings.TrimSpace(*s.Name) == "" {
		return &ErrValidation{Field: "name", Message: "store name is required"}
	}
	if s.Status != nil {
		switch *s.Status {
		case StoreActive, StoreSuspended, StoreTrial:
		default:
			return &ErrValidation{Field: "status", Message: "unknown store status"}
		}
	}
	if s.SalesTax != nil && *s.SalesTax < 0 {
		return &ErrValidation{Field: "salesTax", Message: "must not be negative"}
	}
	return nil
}

// WithSecretHash returns s carrying the hashed webhook secret.
func (s StoreSettings) WithSecretHash(hash string) StoreSettings {
	s.webhookSecretHash = &hash
	return s
}

// SecretHash is the hashed secret to persist, if the secret changes.
func (s StoreSettings) SecretHash() (string, bool) {
	if s.webhookSecretHash == nil {
		return "", false
	}
	return *s.webhookSecretHash, true
}

// Apply writes the supplied fields onto st.
func (s StoreSettings) Apply(st *Store) {
	if s.Name != nil {
		st.Name = strings.TrimSpace(*s.Name)
	}
	if s.Status != nil {
		st.Status = *s.Status
	}
	if s.SalesTax != nil {
		st.SalesTax = *s.SalesTax
	}
	if hash, ok := s.SecretHash(); ok {
		st.WebhookSecretHash = hash
	}
}

// NormalizeSlug lower-cases a domain key and keeps only DNS label characters.
func NormalizeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}

// ============================================================
// Profiles and roles
// ============================================================

// ProfileRole is the role persisted on a profile row.
type ProfileRole string

const (
	ProfileSuperAdmin ProfileRole = "super_admin"
	ProfileStoreUser  ProfileRole = "store_user"
)

// Profile links an auth identity to a tenant and role.
type Profile struct {
	ID      string      `json:"id"`
	Email   string      `json:"email,omitempty"`
	StoreID string      `json:"storeId,omitempty"`
	Role    ProfileRole `json:"role"`
}

// Role is the capability role an actor operates with.
type Role string

const (
	RoleNone     Role = ""
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
	RoleCustomer Role = "CUSTOMER"
)

// RoleForProfile maps a persisted profile role to a capability role.
// Store users are shop owners; staff accounts share the same capabilities.
func RoleForProfile(p *Profile) Role {
	if p == nil {
		return RoleNone
	}
	switch p.Role {
	case ProfileSuperAdmin:
		return RoleAdmin
	case ProfileStoreUser:
		return RoleCustomer
	}
	return RoleNone
}

// Scope is the effective context an operation runs in.
type Scope struct {
	StoreID string `json:"storeId"`
	Role    Role   `json:"role"`
}

// IsAggregate reports whether the scope spans every tenant.
func (s Scope) IsAggregate() bool {
	return s.StoreID == AllStores
}
