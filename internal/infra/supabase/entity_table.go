package supabase

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/resilience"
	"github.com/kitchenunity/cabinet-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Entity tables
// ============================================================

// Table is the PostgREST repository of one entity kind.
type Table[T domain.Entity] struct {
	client *Client
	kind   domain.Kind
}

// NewTable binds an entity kind to its table.
func NewTable[T domain.Entity](client *Client) *Table[T] {
	var zero T
	return &Table[T]{client: client, kind: zero.Kind()}
}

// NewRepositories returns one table repository per kind.
func NewRepositories(client *Client) port.Repositories {
	return port.Repositories{
		Leads:     NewTable[domain.Lead](client),
		Customers: NewTable[domain.Customer](client),
		Claims:    NewTable[domain.Claim](client),
		Orders:    NewTable[domain.Order](client),
		Inventory: NewTable[domain.InventoryItem](client),
		Planner:   NewTable[domain.PlannerEvent](client),
	}
}

func eq(v string) string {
	return "eq." + url.QueryEscape(v)
}

func (t *Table[T]) listPath(storeID string) string {
	q := url.Values{}
	q.Set("select", "*")
	if storeID != domain.AllStores {
		q.Set("store_id", "eq."+storeID)
	}
	if t.kind.Ascending() {
		q.Set("order", "date.asc,time.asc")
	} else {
		q.Set("order", "created_at.desc")
	}
	return t.kind.Table() + "?" + q.Encode()
}

func (t *Table[T]) rowPath(storeID, id string) string {
	return fmt.Sprintf("%s?id=%s&store_id=%s", t.kind.Table(), eq(id), eq(storeID))
}

func (t *Table[T]) List(ctx context.Context, storeID string) ([]T, error) {
	ctx, span := tracer.Start(ctx, "Supabase.List")
	defer span.End()
	span.SetAttributes(attribute.String("table", t.kind.Table()), attribute.String("store.id", storeID))

	var rows []T
	err := t.client.read(ctx, "list "+t.kind.Table(), func() error {
		body, err := t.client.doGet(ctx, t.listPath(storeID))
		if err != nil {
			return err
		}
		rows, err = decodeRows[T](body)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("decode %s: %w", t.kind.Table(), err))
		}
		return nil
	})
	return rows, err
}

func (t *Table[T]) Create(ctx context.Context, entity T) (T, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Create")
	defer span.End()
	span.SetAttributes(attribute.String("table", t.kind.Table()), attribute.String("store.id", entity.Tenant()))

	var created T
	cols, err := toColumns(entity)
	if err != nil {
		return created, &domain.ErrPersistence{Operation: "encode " + t.kind.Table(), Err: err}
	}
	// id and created_at are column defaults.
	delete(cols, "id")
	delete(cols, "created_at")
	cols["version"] = 1

	err = t.client.write(ctx, "insert "+t.kind.Table(), func() error {
		body, err := t.client.doPost(ctx, t.kind.Table(), cols)
		if err != nil {
			return err
		}
		rows, err := decodeRows[T](body)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("decode %s: %w", t.kind.Table(), err))
		}
		if len(rows) == 0 {
			return resilience.Permanent(fmt.Errorf("insert into %s returned no row", t.kind.Table()))
		}
		created = rows[0]
		return nil
	})
	return created, err
}

// Update applies patch only while the row still has version; the version
// column is bumped in the same statement.
func (t *Table[T]) Update(ctx context.Context, storeID, id string, version int, patch domain.Patch) error {
	ctx, span := tracer.Start(ctx, "Supabase.Update")
	defer span.End()
	span.SetAttributes(attribute.String("table", t.kind.Table()), attribute.String("row.id", id))

	cols := patchColumns(patch)
	cols["version"] = version + 1
	path := fmt.Sprintf("%s&version=eq.%d&select=id", t.rowPath(storeID, id), version)

	var matched int
	err := t.client.write(ctx, "update "+t.kind.Table(), func() error {
		body, err := t.client.doPatch(ctx, path, cols)
		if err != nil {
			return err
		}
		ids, err := decodeRows[struct{ ID string }](body)
		if err != nil {
			return resilience.Permanent(err)
		}
		matched = len(ids)
		return nil
	})
	if err != nil {
		return err
	}
	if matched > 0 {
		return nil
	}
	return t.missOrConflict(ctx, storeID, id, version)
}

// missOrConflict tells a missing row from a stale version after a CAS miss.
func (t *Table[T]) missOrConflict(ctx context.Context, storeID, id string, version int) error {
	var exists bool
	err := t.client.read(ctx, "probe "+t.kind.Table(), func() error {
		body, err := t.client.doGet(ctx, t.rowPath(storeID, id)+"&select=id")
		if err != nil {
			return err
		}
		ids, err := decodeRows[struct{ ID string }](body)
		if err != nil {
			return resilience.Permanent(err)
		}
		exists = len(ids) > 0
		return nil
	})
	if err != nil {
		return err
	}
	if !exists {
		return &domain.ErrNotFound{Resource: string(t.kind), ID: id}
	}
	return &domain.ErrConflict{Resource: string(t.kind), ID: id, Version: version}
}

func (t *Table[T]) Delete(ctx context.Context, storeID, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("table", t.kind.Table()), attribute.String("row.id", id))

	var matched int
	err := t.client.write(ctx, "delete "+t.kind.Table(), func() error {
		body, err := t.client.doDelete(ctx, t.rowPath(storeID, id)+"&select=id")
		if err != nil {
			return err
		}
		ids, err := decodeRows[struct{ ID string }](body)
		if err != nil {
			return resilience.Permanent(err)
		}
		matched = len(ids)
		return nil
	})
	if err != nil {
		return err
	}
	if matched == 0 {
		return &domain.ErrNotFound{Resource: string(t.kind), ID: id}
	}
	return nil
}
