package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
)

// Directory keeps stores and profiles in plain relational tables.
type Directory struct {
	db  *DB
	now port.Clock
}

// NewDirectory creates the SQL store directory.
func NewDirectory(db *DB, now port.Clock) *Directory {
	if now == nil {
		now = time.Now
	}
	return &Directory{db: db, now: now}
}

const storeColumns = "id, name, domain, owner_email, status, sales_tax, webhook_secret_hash, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanStore(s scanner) (domain.Store, error) {
	var (
		st        domain.Store
		hash      sql.NullString
		createdAt string
	)
	if err := s.Scan(&st.ID, &st.Name, &st.Domain, &st.OwnerEmail, &st.Status, &st.SalesTax, &hash, &createdAt); err != nil {
		return st, err
	}
	st.WebhookSecretHash = hash.String
	if t, err := time.Parse(sortLayout, createdAt); err == nil {
		st.CreatedAt = t
	}
	return st, nil
}

func (d *Directory) ListStores(ctx context.Context) ([]domain.Store, error) {
	ctx, span := tracer.Start(ctx, "SQL.ListStores")
	defer span.End()

	rows, err := d.db.db.QueryContext(ctx, "SELECT "+storeColumns+" FROM stores ORDER BY created_at, id")
	if err != nil {
		return nil, &domain.ErrPersistence{Operation: "list stores", Err: err}
	}
	defer rows.Close()

	out := []domain.Store{}
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, &domain.ErrPersistence{Operation: "scan store", Err: err}
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrPersistence{Operation: "list stores", Err: err}
	}
	return out, nil
}

func (d *Directory) GetStore(ctx context.Context, id string) (*domain.Store, error) {
	ctx, span := tracer.Start(ctx, "SQL.GetStore")
	defer span.End()
	span.SetAttributes(attribute.String("store.id", id))

	row := d.db.db.QueryRowContext(ctx, d.db.rebind("SELECT "+storeColumns+" FROM stores WHERE id = ?"), id)
	st, err := scanStore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "store", ID: id}
	}
	if err != nil {
		return nil, &domain.ErrPersistence{Operation: "get store", Err: err}
	}
	return &st, nil
}

func (d *Directory) CreateStore(ctx context.Context, store domain.Store) (*domain.Store, error) {
	ctx, span := tracer.Start(ctx, "SQL.CreateStore")
	defer span.End()
	span.SetAttributes(attribute.String("store.domain", store.Domain))

	var taken int
	err := d.db.db.QueryRowContext(ctx, d.db.rebind("SELECT COUNT(*) FROM stores WHERE id = ? OR domain = ?"), store.ID, store.Domain).Scan(&taken)
	if err != nil {
		return nil, &domain.ErrPersistence{Operation: "check store domain", Err: err}
	}
	if taken > 0 {
		return nil, &domain.ErrDuplicate{Key: "domain " + store.Domain}
	}

	store.CreatedAt = d.now().UTC()
	var hash sql.NullString
	if store.WebhookSecretHash != "" {
		hash = sql.NullString{String: store.WebhookSecretHash, Valid: true}
	}
	_, err = d.db.db.ExecContext(ctx,
		d.db.rebind("INSERT INTO stores ("+storeColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"),
		store.ID, store.Name, store.Domain, store.OwnerEmail, string(store.Status), store.SalesTax, hash,
		store.CreatedAt.Format(sortLayout),
	)
	if err != nil {
		return nil, &domain.ErrPersistence{Operation: "insert store", Err: err}
	}
	return &store, nil
}

// UpdateStoreSettings reads, applies and writes back the settings.
func (d *Directory) UpdateStoreSettings(ctx context.Context, id string, settings domain.StoreSettings) (*domain.Store, error) {
	ctx, span := tracer.Start(ctx, "SQL.UpdateStoreSettings")
	defer span.End()
	span.SetAttributes(attribute.String("store.id", id))

	st, err := d.GetStore(ctx, id)
	if err != nil {
		return nil, err
	}
	settings.Apply(st)

	var hash sql.NullString
	if st.WebhookSecretHash != "" {
		hash = sql.NullString{String: st.WebhookSecretHash, Valid: true}
	}
	_, err = d.db.db.ExecContext(ctx,
		d.db.rebind("UPDATE stores SET name = ?, status = ?, sales_tax = ?, webhook_secret_hash = ? WHERE id = ?"),
		st.Name, string(st.Status), st.SalesTax, hash, id,
	)
	if err != nil {
		return nil, &domain.ErrPersistence{Operation: "update store", Err: err}
	}
	return st, nil
}

func (d *Directory) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "SQL.GetProfile")
	defer span.End()

	var (
		p       domain.Profile
		storeID sql.NullString
	)
	err := d.db.db.QueryRowContext(ctx, d.db.rebind("SELECT id, email, store_id, role FROM profiles WHERE id = ?"), id).
		Scan(&p.ID, &p.Email, &storeID, &p.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	if err != nil {
		return nil, &domain.ErrPersistence{Operation: "get profile", Err: err}
	}
	p.StoreID = storeID.String
	return &p, nil
}

// PutProfile upserts a profile.
func (d *Directory) PutProfile(ctx context.Context, p domain.Profile) error {
	var storeID sql.NullString
	if p.StoreID != "" {
		storeID = sql.NullString{String: p.StoreID, Valid: true}
	}
	if _, err := d.db.db.ExecContext(ctx, d.db.rebind("DELETE FROM profiles WHERE id = ?"), p.ID); err != nil {
		return &domain.ErrPersistence{Operation: "put profile", Err: err}
	}
	_, err := d.db.db.ExecContext(ctx,
		d.db.rebind("INSERT INTO profiles (id, email, store_id, role) VALUES (?, ?, ?, ?)"),
		p.ID, p.Email, storeID, string(p.Role),
	)
	if err != nil {
		return &domain.ErrPersistence{Operation: "put profile", Err: err}
	}
	return nil
}
