// Package workspace holds one actor's in-memory view of a tenant and the
// pure reducers that evolve it. Reducers never perform I/O: intents return
// effects, and the caller reports each persisted outcome back as an action.
package workspace

import (
	"fmt"
	"sort"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
)

// State is the loaded collections of a single tenant context.
type State struct {
	StoreID string
	// Epoch increases on every tenant switch. Actions carry the epoch they
	// were issued under and are discarded when it no longer matches.
	Epoch  uint64
	Loaded bool

	Leads     []domain.Lead
	Customers []domain.Customer
	Claims    []domain.Claim
	Orders    []domain.Order
	Inventory []domain.InventoryItem
	Planner   []domain.PlannerEvent
}

// Begin starts a new tenant context. Collections are emptied and every
// in-flight action from the previous context becomes stale.
func Begin(s State, storeID string) State {
	return State{StoreID: storeID, Epoch: s.Epoch + 1}
}

// Len returns the size of the kind's collection.
func (s State) Len(kind domain.Kind) int {
	switch kind {
	case domain.KindLead:
		return len(s.Leads)
	case domain.KindCustomer:
		return len(s.Customers)
	case domain.KindClaim:
		return len(s.Claims)
	case domain.KindOrder:
		return len(s.Orders)
	case domain.KindInventory:
		return len(s.Inventory)
	case domain.KindPlanner:
		return len(s.Planner)
	}
	return 0
}

// Items returns the collection holding T.
func Items[T domain.Entity](s State) []T {
	return *slot[T](&s)
}

// Find looks up an entity by id in the collection holding T.
func Find[T domain.Entity](s State, id string) (T, bool) {
	for _, e := range Items[T](s) {
		if e.EntityID() == id {
			return e, true
		}
	}
	var zero T
	return zero, false
}

func with[T domain.Entity](s State, items []T) State {
	*slot[T](&s) = items
	return s
}

func slot[T domain.Entity](s *State) *[]T {
	var zero T
	var p any
	switch any(zero).(type) {
	case domain.Lead:
		p = &s.Leads
	case domain.Customer:
		p = &s.Customers
	case domain.Claim:
		p = &s.Claims
	case domain.Order:
		p = &s.Orders
	case domain.InventoryItem:
		p = &s.Inventory
	case domain.PlannerEvent:
		p = &s.Planner
	default:
		panic(fmt.Sprintf("workspace: no collection for %T", zero))
	}
	return p.(*[]T)
}

// ============================================================
// Collection helpers. All of them return a fresh slice.
// ============================================================

// Place inserts e where a listing would show it: at the front for
// most-recent-first kinds, in schedule order for ascending kinds.
func Place[T domain.Entity](items []T, e T) []T {
	if !e.Kind().Ascending() {
		return Prepend(items, e)
	}
	at := sort.Search(len(items), func(i int) bool {
		return items[i].SortTime().After(e.SortTime())
	})
	out := make([]T, 0, len(items)+1)
	out = append(out, items[:at]...)
	out = append(out, e)
	return append(out, items[at:]...)
}

// Prepend returns e followed by items.
func Prepend[T domain.Entity](items []T, e T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, e)
	return append(out, items...)
}

// Merge shallow-merges patch into the entity with the given id and sets
// its version.
func Merge[T domain.Entity](items []T, id string, version int, patch domain.Patch) ([]T, error) {
	idx := indexOf(items, id)
	if idx < 0 {
		var zero T
		return nil, &domain.ErrNotFound{Resource: string(zero.Kind()), ID: id}
	}
	p := patch.Clone()
	p["version"] = version
	merged, err := domain.ApplyPatch(items[idx], p)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(items))
	copy(out, items)
	out[idx] = merged
	return out, nil
}

// Remove drops the entity with the given id.
func Remove[T domain.Entity](items []T, id string) ([]T, bool) {
	idx := indexOf(items, id)
	if idx < 0 {
		return items, false
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...), true
}

func indexOf[T domain.Entity](items []T, id string) int {
	for i, e := range items {
		if e.EntityID() == id {
			return i
		}
	}
	return -1
}
