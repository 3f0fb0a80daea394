// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
)

// Repository is the store of record for one entity kind.
//
// Every method is keyed by tenant. List with domain.AllStores returns the
// union across tenants. Create assigns id, createdAt and version 1 and
// returns the canonical row. Update is a compare-and-swap on version: a
// stale version yields *domain.ErrConflict and the row is left as it was.
type Repository[T domain.Entity] interface {
	List(ctx context.Context, storeID string) ([]T, error)
	Create(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, storeID, id string, version int, patch domain.Patch) error
	Delete(ctx context.Context, storeID, id string) error
}

// Repositories bundles one repository per entity kind.
type Repositories struct {
	Leads     Repository[domain.Lead]
	Customers Repository[domain.Customer]
	Claims    Repository[domain.Claim]
	Orders    Repository[domain.Order]
	Inventory Repository[domain.InventoryItem]
	Planner   Repository[domain.PlannerEvent]
}

// StoreDirectory manages tenants.
type StoreDirectory interface {
	ListStores(ctx context.Context) ([]domain.Store, error)
	GetStore(ctx context.Context, id string) (*domain.Store, error)
	CreateStore(ctx context.Context, store domain.Store) (*domain.Store, error)
	UpdateStoreSettings(ctx context.Context, id string, settings domain.StoreSettings) (*domain.Store, error)
}

// ProfileStore retrieves authenticated user profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
}

// BlobStore keeps opaque attachment payloads.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time
