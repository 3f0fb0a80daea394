package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
)

// Repository stores one entity kind.
type Repository[T domain.Entity] struct {
	db   *DB
	kind domain.Kind
	now  port.Clock
}

// NewRepository binds a kind to its table.
func NewRepository[T domain.Entity](db *DB, now port.Clock) *Repository[T] {
	if now == nil {
		now = time.Now
	}
	var zero T
	return &Repository[T]{db: db, kind: zero.Kind(), now: now}
}

// NewRepositories returns one repository per kind.
func NewRepositories(db *DB, now port.Clock) port.Repositories {
	return port.Repositories{
		Leads:     NewRepository[domain.Lead](db, now),
		Customers: NewRepository[domain.Customer](db, now),
		Claims:    NewRepository[domain.Claim](db, now),
		Orders:    NewRepository[domain.Order](db, now),
		Inventory: NewRepository[domain.InventoryItem](db, now),
		Planner:   NewRepository[domain.PlannerEvent](db, now),
	}
}

func (r *Repository[T]) table() string { return r.kind.Table() }

func (r *Repository[T]) persistErr(op string, err error) error {
	return &domain.ErrPersistence{Operation: op + " " + r.table(), Err: err}
}

func sortKey(e domain.Entity) string {
	return e.SortTime().UTC().Format(sortLayout)
}

func (r *Repository[T]) List(ctx context.Context, storeID string) ([]T, error) {
	ctx, span := tracer.Start(ctx, "SQL.List")
	defer span.End()
	span.SetAttributes(attribute.String("table", r.table()), attribute.String("store.id", storeID))

	order := "DESC"
	if r.kind.Ascending() {
		order = "ASC"
	}
	query := fmt.Sprintf("SELECT doc FROM %s WHERE store_id = ? ORDER BY sort_key %s, id", r.table(), order)
	args := []any{storeID}
	if storeID == domain.AllStores {
		query = fmt.Sprintf("SELECT doc FROM %s ORDER BY sort_key %s, id", r.table(), order)
		args = nil
	}

	rows, err := r.db.db.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, r.persistErr("list", err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, r.persistErr("scan", err)
		}
		var e T
		if err := json.Unmarshal([]byte(doc), &e); err != nil {
			return nil, r.persistErr("decode", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, r.persistErr("list", err)
	}
	return out, nil
}

func (r *Repository[T]) Create(ctx context.Context, entity T) (T, error) {
	ctx, span := tracer.Start(ctx, "SQL.Create")
	defer span.End()
	span.SetAttributes(attribute.String("table", r.table()), attribute.String("store.id", entity.Tenant()))

	created, err := domain.Stamp(entity, uuid.NewString(), r.now())
	if err != nil {
		return created, err
	}
	doc, err := json.Marshal(created)
	if err != nil {
		return created, r.persistErr("encode", err)
	}

	query := fmt.Sprintf("INSERT INTO %s (id, store_id, version, created_at, sort_key, doc) VALUES (?, ?, ?, ?, ?, ?)", r.table())
	_, err = r.db.db.ExecContext(ctx, r.db.rebind(query),
		created.EntityID(), created.Tenant(), created.EntityVersion(),
		r.now().UTC().Format(sortLayout), sortKey(created), string(doc),
	)
	if err != nil {
		return created, r.persistErr("insert", err)
	}
	return created, nil
}

// Update merges patch into the stored document inside a transaction and
// only commits while the row still has version.
func (r *Repository[T]) Update(ctx context.Context, storeID, id string, version int, patch domain.Patch) error {
	ctx, span := tracer.Start(ctx, "SQL.Update")
	defer span.End()
	span.SetAttributes(attribute.String("table", r.table()), attribute.String("row.id", id))

	tx, err := r.db.db.BeginTx(ctx, nil)
	if err != nil {
		return r.persistErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		doc     string
		current int
	)
	sel := fmt.Sprintf("SELECT doc, version FROM %s WHERE id = ? AND store_id = ?", r.table())
	err = tx.QueryRowContext(ctx, r.db.rebind(sel), id, storeID).Scan(&doc, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.ErrNotFound{Resource: string(r.kind), ID: id}
	}
	if err != nil {
		return r.persistErr("select", err)
	}
	if current != version {
		return &domain.ErrConflict{Resource: string(r.kind), ID: id, Version: version}
	}

	var row T
	if err := json.Unmarshal([]byte(doc), &row); err != nil {
		return r.persistErr("decode", err)
	}
	p := patch.Clone()
	p["version"] = version + 1
	merged, err := domain.ApplyPatch(row, p)
	if err != nil {
		return err
	}
	newDoc, err := json.Marshal(merged)
	if err != nil {
		return r.persistErr("encode", err)
	}

	upd := fmt.Sprintf("UPDATE %s SET doc = ?, version = ?, sort_key = ? WHERE id = ? AND store_id = ? AND version = ?", r.table())
	res, err := tx.ExecContext(ctx, r.db.rebind(upd), string(newDoc), version+1, sortKey(merged), id, storeID, version)
	if err != nil {
		return r.persistErr("update", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &domain.ErrConflict{Resource: string(r.kind), ID: id, Version: version}
	}
	if err := tx.Commit(); err != nil {
		return r.persistErr("commit", err)
	}
	return nil
}

func (r *Repository[T]) Delete(ctx context.Context, storeID, id string) error {
	ctx, span := tracer.Start(ctx, "SQL.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("table", r.table()), attribute.String("row.id", id))

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND store_id = ?", r.table())
	res, err := r.db.db.ExecContext(ctx, r.db.rebind(query), id, storeID)
	if err != nil {
		return r.persistErr("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return r.persistErr("delete", err)
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: string(r.kind), ID: id}
	}
	return nil
}

// Put upserts a row keeping its id and version. Used by the seed loader.
func (r *Repository[T]) Put(ctx context.Context, row T) error {
	doc, err := json.Marshal(row)
	if err != nil {
		return r.persistErr("encode", err)
	}
	del := fmt.Sprintf("DELETE FROM %s WHERE id = ?", r.table())
	ins := fmt.Sprintf("INSERT INTO %s (id, store_id, version, created_at, sort_key, doc) VALUES (?, ?, ?, ?, ?, ?)", r.table())

	tx, err := r.db.db.BeginTx(ctx, nil)
	if err != nil {
		return r.persistErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, r.db.rebind(del), row.EntityID()); err != nil {
		return r.persistErr("put", err)
	}
	createdAt := r.now().UTC()
	if t := row.SortTime(); !t.IsZero() && !r.kind.Ascending() {
		createdAt = t.UTC()
	}
	if _, err := tx.ExecContext(ctx, r.db.rebind(ins),
		row.EntityID(), row.Tenant(), row.EntityVersion(), createdAt.Format(sortLayout), sortKey(row), string(doc),
	); err != nil {
		return r.persistErr("put", err)
	}
	if err := tx.Commit(); err != nil {
		return r.persistErr("commit", err)
	}
	return nil
}
