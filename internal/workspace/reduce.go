package workspace

import (
	"errors"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
)

// ErrStaleEpoch is returned for actions issued under a previous tenant
// context. The state is returned unchanged.
var ErrStaleEpoch = errors.New("workspace: action from a superseded tenant context")

// Op is the kind of write an effect asks the boundary to perform.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Effect is one remote write requested by a reducer. Effects run in order
// and each successful one is reported back as Created, Updated or Deleted.
type Effect struct {
	Op      Op
	Kind    domain.Kind
	ID      string
	Version int
	Patch   domain.Patch
	// Draft is the typed draft for OpCreate.
	Draft any
}

// Action is an input to Reduce.
type Action interface {
	ActionEpoch() uint64
	reduce(State) (State, []Effect, error)
}

// Reduce applies a to s. Failed actions return s untouched.
func Reduce(s State, a Action) (State, []Effect, error) {
	if a.ActionEpoch() != s.Epoch {
		return s, nil, ErrStaleEpoch
	}
	next, effects, err := a.reduce(s)
	if err != nil {
		return s, nil, err
	}
	return next, effects, nil
}

// ============================================================
// Outcomes: persisted writes reported back by the boundary
// ============================================================

// Loaded replaces every collection with a freshly listed snapshot.
type Loaded struct {
	Epoch     uint64
	Leads     []domain.Lead
	Customers []domain.Customer
	Claims    []domain.Claim
	Orders    []domain.Order
	Inventory []domain.InventoryItem
	Planner   []domain.PlannerEvent
}

func (a Loaded) ActionEpoch() uint64 { return a.Epoch }

func (a Loaded) reduce(s State) (State, []Effect, error) {
	s.Leads = a.Leads
	s.Customers = a.Customers
	s.Claims = a.Claims
	s.Orders = a.Orders
	s.Inventory = a.Inventory
	s.Planner = a.Planner
	s.Loaded = true
	return s, nil, nil
}

// Created merges a persisted row into its collection.
type Created[T domain.Entity] struct {
	Epoch  uint64
	Entity T
}

func (a Created[T]) ActionEpoch() uint64 { return a.Epoch }

func (a Created[T]) reduce(s State) (State, []Effect, error) {
	if a.Entity.Tenant() != s.StoreID {
		return s, nil, &domain.ErrTenantViolation{Operation: "merge " + string(a.Entity.Kind()), StoreID: a.Entity.Tenant()}
	}
	return with(s, Place(Items[T](s), a.Entity)), nil, nil
}

// Updated shallow-merges a persisted patch into the cached row.
type Updated[T domain.Entity] struct {
	Epoch   uint64
	ID      string
	Version int
	Patch   domain.Patch
}

func (a Updated[T]) ActionEpoch() uint64 { return a.Epoch }

func (a Updated[T]) reduce(s State) (State, []Effect, error) {
	items, err := Merge(Items[T](s), a.ID, a.Version, a.Patch)
	if err != nil {
		return s, nil, err
	}
	return with(s, items), nil, nil
}

// Deleted removes a row after the remote delete succeeded.
type Deleted[T domain.Entity] struct {
	Epoch uint64
	ID    string
}

func (a Deleted[T]) ActionEpoch() uint64 { return a.Epoch }

func (a Deleted[T]) reduce(s State) (State, []Effect, error) {
	items, _ := Remove(Items[T](s), a.ID)
	return with(s, items), nil, nil
}

// ============================================================
// Intents: lifecycle transitions spanning one or two rows
// ============================================================

// ConvertLeadRequested turns a lead into a customer and marks the lead
// Qualified. The lead itself is retained.
type ConvertLeadRequested struct {
	Epoch  uint64
	LeadID string
}

func (a ConvertLeadRequested) ActionEpoch() uint64 { return a.Epoch }

func (a ConvertLeadRequested) reduce(s State) (State, []Effect, error) {
	lead, ok := Find[domain.Lead](s, a.LeadID)
	if !ok {
		return s, nil, &domain.ErrNotFound{Resource: "lead", ID: a.LeadID}
	}
	draft := domain.CustomerDraftFromLead(lead)
	if err := draft.Validate(); err != nil {
		return s, nil, err
	}
	return s, []Effect{
		{Op: OpCreate, Kind: domain.KindCustomer, Draft: draft},
		{Op: OpUpdate, Kind: domain.KindLead, ID: lead.ID, Version: lead.Version,
			Patch: domain.Patch{"status": domain.LeadQualified}},
	}, nil
}

// ConvertQuoteRequested promotes a quote to a processing order in place.
type ConvertQuoteRequested struct {
	Epoch   uint64
	OrderID string
}

func (a ConvertQuoteRequested) ActionEpoch() uint64 { return a.Epoch }

func (a ConvertQuoteRequested) reduce(s State) (State, []Effect, error) {
	order, ok := Find[domain.Order](s, a.OrderID)
	if !ok {
		return s, nil, &domain.ErrNotFound{Resource: "order", ID: a.OrderID}
	}
	if order.Status != domain.OrderQuote {
		return s, nil, &domain.ErrInvalidTransition{
			Resource: "order", From: string(order.Status), To: string(domain.OrderProcessing),
		}
	}
	return s, []Effect{{
		Op: OpUpdate, Kind: domain.KindOrder, ID: order.ID, Version: order.Version,
		Patch: domain.Patch{"status": domain.OrderProcessing},
	}}, nil
}

// AdvanceOrderRequested moves an order along the status table, optionally
// recording a tracking number.
type AdvanceOrderRequested struct {
	Epoch          uint64
	OrderID        string
	To             domain.OrderStatus
	TrackingNumber string
}

func (a AdvanceOrderRequested) ActionEpoch() uint64 { return a.Epoch }

func (a AdvanceOrderRequested) reduce(s State) (State, []Effect, error) {
	order, ok := Find[domain.Order](s, a.OrderID)
	if !ok {
		return s, nil, &domain.ErrNotFound{Resource: "order", ID: a.OrderID}
	}
	if err := domain.CheckOrderTransition(order.Status, a.To); err != nil {
		return s, nil, err
	}

	patch := domain.Patch{}
	if a.To != order.Status {
		patch["status"] = a.To
	}
	if a.TrackingNumber != "" && a.TrackingNumber != order.TrackingNumber {
		patch["trackingNumber"] = a.TrackingNumber
	}
	if len(patch) == 0 {
		return s, nil, nil
	}
	return s, []Effect{{Op: OpUpdate, Kind: domain.KindOrder, ID: order.ID, Version: order.Version, Patch: patch}}, nil
}
