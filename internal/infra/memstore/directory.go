package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/port"
)

// Directory is an in-memory store directory and profile store.
type Directory struct {
	mu       sync.RWMutex
	stores   map[string]domain.Store
	profiles map[string]domain.Profile
	now      port.Clock
}

// NewDirectory creates a directory holding the given stores.
func NewDirectory(now port.Clock, stores ...domain.Store) *Directory {
	d := &Directory{
		stores:   make(map[string]domain.Store),
		profiles: make(map[string]domain.Profile),
		now:      now,
	}
	for _, s := range stores {
		d.stores[s.ID] = s
	}
	return d
}

func (d *Directory) ListStores(_ context.Context) ([]domain.Store, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.Store, 0, len(d.stores))
	for _, s := range d.stores {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (d *Directory) GetStore(_ context.Context, id string) (*domain.Store, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.stores[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "store", ID: id}
	}
	return &s, nil
}

func (d *Directory) CreateStore(_ context.Context, store domain.Store) (*domain.Store, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range d.stores {
		if s.Domain == store.Domain {
			return nil, &domain.ErrDuplicate{Key: "domain " + store.Domain}
		}
	}
	if d.now != nil {
		store.CreatedAt = d.now().UTC()
	}
	d.stores[store.ID] = store
	return &store, nil
}

func (d *Directory) UpdateStoreSettings(_ context.Context, id string, settings domain.StoreSettings) (*domain.Store, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.stores[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "store", ID: id}
	}
	settings.Apply(&s)
	d.stores[id] = s
	return &s, nil
}

// PutProfile registers a profile, replacing any with the same id.
func (d *Directory) PutProfile(_ context.Context, p domain.Profile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = p
	return nil
}

func (d *Directory) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.profiles[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	return &p, nil
}
