// Package memstore is an in-process store of record. It backs local
// development (STORAGE_DRIVER=memory) and service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/port"
)

// Repository keeps rows of one kind in memory.
type Repository[T domain.Entity] struct {
	mu   sync.RWMutex
	rows map[string]T
	now  port.Clock
}

// New creates an empty repository.
func New[T domain.Entity](now port.Clock) *Repository[T] {
	if now == nil {
		now = time.Now
	}
	return &Repository[T]{rows: make(map[string]T), now: now}
}

// NewRepositories creates one empty repository per kind.
func NewRepositories(now port.Clock) port.Repositories {
	return port.Repositories{
		Leads:     New[domain.Lead](now),
		Customers: New[domain.Customer](now),
		Claims:    New[domain.Claim](now),
		Orders:    New[domain.Order](now),
		Inventory: New[domain.InventoryItem](now),
		Planner:   New[domain.PlannerEvent](now),
	}
}

func (r *Repository[T]) List(_ context.Context, storeID string) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, len(r.rows))
	for _, row := range r.rows {
		if storeID == domain.AllStores || row.Tenant() == storeID {
			out = append(out, row)
		}
	}
	// Map order is random; keep listings deterministic before the caller sorts.
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out, nil
}

func (r *Repository[T]) Create(_ context.Context, entity T) (T, error) {
	stamped, err := domain.Stamp(entity, uuid.NewString(), r.now())
	if err != nil {
		return stamped, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[stamped.EntityID()] = stamped
	return stamped, nil
}

func (r *Repository[T]) Update(_ context.Context, storeID, id string, version int, patch domain.Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok || row.Tenant() != storeID {
		return &domain.ErrNotFound{Resource: string(row.Kind()), ID: id}
	}
	if row.EntityVersion() != version {
		return &domain.ErrConflict{Resource: string(row.Kind()), ID: id, Version: version}
	}

	p := patch.Clone()
	p["version"] = version + 1
	merged, err := domain.ApplyPatch(row, p)
	if err != nil {
		return err
	}
	r.rows[id] = merged
	return nil
}

func (r *Repository[T]) Delete(_ context.Context, storeID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok || row.Tenant() != storeID {
		return &domain.ErrNotFound{Resource: string(row.Kind()), ID: id}
	}
	delete(r.rows, id)
	return nil
}

// Put inserts a row as-is, keeping its id and version. Used for seeding.
func (r *Repository[T]) Put(_ context.Context, row T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[row.EntityID()] = row
	return nil
}
