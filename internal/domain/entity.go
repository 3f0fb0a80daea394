package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================
// Entity kinds
// ============================================================

// Kind identifies one tenant-scoped entity collection.
type Kind string

const (
	KindLead      Kind = "lead"
	KindCustomer  Kind = "customer"
	KindClaim     Kind = "claim"
	KindOrder     Kind = "order"
	KindInventory Kind = "inventory"
	KindPlanner   Kind = "planner"
)

// Kinds lists every entity kind in load order.
var Kinds = []Kind{KindLead, KindCustomer, KindClaim, KindOrder, KindInventory, KindPlanner}

// Table is the store-of-record table backing the kind.
func (k Kind) Table() string {
	switch k {
	case KindLead:
		return "leads"
	case KindCustomer:
		return "customers"
	case KindClaim:
		return "claims"
	case KindOrder:
		return "orders"
	case KindInventory:
		return "inventory"
	case KindPlanner:
		return "planner_events"
	}
	return string(k)
}

// Ascending reports whether list results are ordered oldest first.
// Planner events are a schedule; everything else is most-recent-first.
func (k Kind) Ascending() bool {
	return k == KindPlanner
}

// ============================================================
// Entity contract
// ============================================================

// Meta holds the columns every tenant-owned row carries.
type Meta struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"storeId"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

// EntityID returns the row id.
func (m Meta) EntityID() string { return m.ID }

// Tenant returns the owning store id.
func (m Meta) Tenant() string { return m.StoreID }

// EntityVersion returns the compare-and-swap version.
func (m Meta) EntityVersion() int { return m.Version }

// Entity is implemented by every tenant-owned row type.
type Entity interface {
	EntityID() string
	Tenant() string
	EntityVersion() int
	Kind() Kind
	// SortTime is the instant list results are ordered by.
	SortTime() time.Time
}

// ============================================================
// Partial updates
// ============================================================

// Patch is a partial, field-level update keyed by JSON field name.
type Patch map[string]any

// reserved fields can never be changed through a patch.
var reserved = map[string]bool{
	"id":        true,
	"storeId":   true,
	"version":   true,
	"createdAt": true,
}

// Validate rejects reserved or unknown fields for the kind.
func (p Patch) Validate(kind Kind) error {
	if len(p) == 0 {
		return &ErrValidation{Field: "patch", Message: "no fields to update"}
	}
	allowed := mutableFields[kind]
	for field := range p {
		if reserved[field] {
			return &ErrValidation{Field: field, Message: "field cannot be updated"}
		}
		if !allowed[field] {
			return &ErrValidation{Field: field, Message: fmt.Sprintf("unknown %s field", kind)}
		}
	}
	return p.checkValues(kind)
}

// checkValues validates the values of enumerated and bounded fields.
func (p Patch) checkValues(kind Kind) error {
	if p.Has("status") {
		var status string
		if err := p.Decode("status", &status); err != nil {
			return err
		}
		var ok bool
		switch kind {
		case KindLead:
			ok = LeadStatus(status).Valid()
		case KindClaim:
			ok = ClaimStatus(status).Valid()
		case KindOrder:
			ok = OrderStatus(status).Valid()
		case KindInventory:
			ok = StockStatus(status).Valid()
		case KindPlanner:
			ok = EventStatus(status).Valid()
		}
		if !ok {
			return &ErrValidation{Field: "status", Message: fmt.Sprintf("unknown %s status %q", kind, status)}
		}
	}

	switch kind {
	case KindOrder:
		if p.Has("lineItems") {
			var items []LineItem
			if err := p.Decode("lineItems", &items); err != nil {
				return err
			}
			if err := ValidateLineItems(items); err != nil {
				return err
			}
		}
		if p.Has("expenses") {
			var expenses []Expense
			if err := p.Decode("expenses", &expenses); err != nil {
				return err
			}
			if err := ValidateExpenses(expenses); err != nil {
				return err
			}
		}
	case KindPlanner:
		if p.Has("type") {
			var t string
			if err := p.Decode("type", &t); err != nil {
				return err
			}
			if !EventType(t).Valid() {
				return &ErrValidation{Field: "type", Message: "unknown event type"}
			}
		}
		if p.Has("date") {
			var d string
			if err := p.Decode("date", &d); err != nil {
				return err
			}
			if _, err := ParseEventDate(d); err != nil {
				return &ErrValidation{Field: "date", Message: "expected YYYY-MM-DD"}
			}
		}
	}
	return nil
}

// Has reports whether the patch touches field.
func (p Patch) Has(field string) bool {
	_, ok := p[field]
	return ok
}

// Clone returns a shallow copy.
func (p Patch) Clone() Patch {
	out := make(Patch, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Decode unmarshals one patch field into dst.
func (p Patch) Decode(field string, dst any) error {
	raw, err := json.Marshal(p[field])
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &ErrValidation{Field: field, Message: err.Error()}
	}
	return nil
}

// ApplyPatch shallow-merges patch into e, replacing top-level fields only,
// and returns the merged copy. e itself is left untouched.
func ApplyPatch[T Entity](e T, patch Patch) (T, error) {
	var zero T
	base, err := json.Marshal(e)
	if err != nil {
		return zero, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return zero, err
	}
	for k, v := range patch {
		raw, err := json.Marshal(v)
		if err != nil {
			return zero, fmt.Errorf("encode patch field %s: %w", k, err)
		}
		fields[k] = raw
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(merged, &out); err != nil {
		return zero, &ErrValidation{Field: "patch", Message: err.Error()}
	}
	return out, nil
}

// Stamp sets the columns the store of record owns on a new row: id,
// creation time and the initial version 1.
func Stamp[T Entity](e T, id string, createdAt time.Time) (T, error) {
	return ApplyPatch(e, Patch{"id": id, "createdAt": createdAt.UTC(), "version": 1})
}

// mutableFields lists the fields a caller's patch may carry per kind.
// Derived columns (order amount, lead updatedAt) are stamped by the store.
var mutableFields = map[Kind]map[string]bool{
	KindLead: set("firstName", "lastName", "email", "phone", "message", "source", "status"),
	KindCustomer: set("firstName", "lastName", "email", "phone", "shippingAddress", "billingAddress",
		"billingDifferent", "notes"),
	KindClaim: set("customerId", "issue", "status", "notes"),
	KindOrder: set("customerId", "lineItems", "status", "taxRate", "salesTaxOverride",
		"isNonTaxable", "expenses", "notes", "attachments", "trackingNumber"),
	KindInventory: set("name", "sku", "price", "quantity", "trackStock", "status", "description"),
	KindPlanner: set("type", "customerId", "customerName", "date", "time", "address", "assignedTo",
		"notes", "status"),
}

func set(fields ...string) map[string]bool {
	m := make(map[string]bool, len(fields))
	for _, f := range fields {
		m[f] = true
	}
	return m
}
