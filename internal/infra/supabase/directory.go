package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Store directory + profiles
// ============================================================

// storeRow maps the stores table, including the webhook secret hash that
// the domain JSON omits.
type storeRow struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Domain            string             `json:"domain"`
	OwnerEmail        string             `json:"owner_email"`
	Status            domain.StoreStatus `json:"status"`
	SalesTax          float64            `json:"sales_tax"`
	WebhookSecretHash *string            `json:"webhook_secret_hash"`
	CreatedAt         time.Time          `json:"created_at"`
}

func (r storeRow) toDomain() domain.Store {
	s := domain.Store{
		ID:         r.ID,
		Name:       r.Name,
		Domain:     r.Domain,
		OwnerEmail: r.OwnerEmail,
		Status:     r.Status,
		SalesTax:   r.SalesTax,
		CreatedAt:  r.CreatedAt,
	}
	if r.WebhookSecretHash != nil {
		s.WebhookSecretHash = *r.WebhookSecretHash
	}
	return s
}

type profileRow struct {
	ID      string             `json:"id"`
	Email   string             `json:"email"`
	StoreID *string            `json:"store_id"`
	Role    domain.ProfileRole `json:"role"`
}

// Directory reads stores and profiles.
type Directory struct {
	client *Client
}

// NewDirectory creates the directory adapter.
func NewDirectory(client *Client) *Directory {
	return &Directory{client: client}
}

func decodeStores(body []byte) ([]domain.Store, error) {
	var rows []storeRow
	if len(body) > 0 {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, resilience.Permanent(fmt.Errorf("decode stores: %w", err))
		}
	}
	out := make([]domain.Store, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (d *Directory) ListStores(ctx context.Context) ([]domain.Store, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListStores")
	defer span.End()

	var stores []domain.Store
	err := d.client.read(ctx, "list stores", func() error {
		body, err := d.client.doGet(ctx, "stores?select=*&order=created_at.asc,id.asc")
		if err != nil {
			return err
		}
		stores, err = decodeStores(body)
		return err
	})
	return stores, err
}

func (d *Directory) GetStore(ctx context.Context, id string) (*domain.Store, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetStore")
	defer span.End()
	span.SetAttributes(attribute.String("store.id", id))

	var store *domain.Store
	err := d.client.read(ctx, "get store", func() error {
		body, err := d.client.doGet(ctx, fmt.Sprintf("stores?id=%s&select=*&limit=1", eq(id)))
		if err != nil {
			return err
		}
		stores, err := decodeStores(body)
		if err != nil {
			return err
		}
		if len(stores) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "store", ID: id})
		}
		store = &stores[0]
		return nil
	})
	return store, err
}

func (d *Directory) CreateStore(ctx context.Context, store domain.Store) (*domain.Store, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateStore")
	defer span.End()
	span.SetAttributes(attribute.String("store.domain", store.Domain))

	row := map[string]any{
		"id":          store.ID,
		"name":        store.Name,
		"domain":      store.Domain,
		"owner_email": store.OwnerEmail,
		"status":      store.Status,
		"sales_tax":   store.SalesTax,
	}
	if store.WebhookSecretHash != "" {
		row["webhook_secret_hash"] = store.WebhookSecretHash
	}

	var created *domain.Store
	err := d.client.write(ctx, "insert store", func() error {
		body, err := d.client.doPost(ctx, "stores", row)
		if err != nil {
			var serr *StatusError
			if errors.As(err, &serr) && serr.Status == http.StatusConflict {
				return resilience.Permanent(&domain.ErrDuplicate{Key: "domain " + store.Domain})
			}
			return err
		}
		stores, err := decodeStores(body)
		if err != nil {
			return err
		}
		if len(stores) == 0 {
			return resilience.Permanent(fmt.Errorf("insert into stores returned no row"))
		}
		created = &stores[0]
		return nil
	})
	return created, err
}

func (d *Directory) UpdateStoreSettings(ctx context.Context, id string, settings domain.StoreSettings) (*domain.Store, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateStoreSettings")
	defer span.End()
	span.SetAttributes(attribute.String("store.id", id))

	cols := map[string]any{}
	if settings.Name != nil {
		cols["name"] = *settings.Name
	}
	if settings.Status != nil {
		cols["status"] = *settings.Status
	}
	if settings.SalesTax != nil {
		cols["sales_tax"] = *settings.SalesTax
	}
	if hash, ok := settings.SecretHash(); ok {
		if hash == "" {
			cols["webhook_secret_hash"] = nil
		} else {
			cols["webhook_secret_hash"] = hash
		}
	}

	var updated *domain.Store
	err := d.client.write(ctx, "update store", func() error {
		body, err := d.client.doPatch(ctx, fmt.Sprintf("stores?id=%s", eq(id)), cols)
		if err != nil {
			return err
		}
		stores, err := decodeStores(body)
		if err != nil {
			return err
		}
		if len(stores) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "store", ID: id})
		}
		updated = &stores[0]
		return nil
	})
	return updated, err
}

func (d *Directory) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", id))

	var profile *domain.Profile
	err := d.client.read(ctx, "get profile", func() error {
		body, err := d.client.doGet(ctx, fmt.Sprintf("profiles?id=%s&select=id,email,store_id,role&limit=1", eq(id)))
		if err != nil {
			return err
		}
		var rows []profileRow
		if len(body) > 0 {
			if err := json.Unmarshal(body, &rows); err != nil {
				return resilience.Permanent(fmt.Errorf("decode profiles: %w", err))
			}
		}
		if len(rows) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "profile", ID: id})
		}
		p := domain.Profile{ID: rows[0].ID, Email: rows[0].Email, Role: rows[0].Role}
		if rows[0].StoreID != nil {
			p.StoreID = *rows[0].StoreID
		}
		profile = &p
		return nil
	})
	return profile, err
}
