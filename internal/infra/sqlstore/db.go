// Package sqlstore keeps entities as JSON documents in SQL tables, one
// table per kind. Postgres runs through the pgx stdlib driver and SQLite
// through the pure-Go modernc driver.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("sqlstore")

// Dialect selects placeholder syntax and column types.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// sortLayout is fixed width so sort keys order lexically.
const sortLayout = "2006-01-02T15:04:05.000000000Z"

// DB is a handle on the document store.
type DB struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// Open connects with the driver matching dialect and pings once.
func Open(ctx context.Context, dialect Dialect, dsn string, logger *zap.Logger) (*DB, error) {
	var driver string
	switch dialect {
	case Postgres:
		driver = "pgx"
	case SQLite:
		driver = "sqlite"
	default:
		return nil, fmt.Errorf("unknown sql dialect %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		// One writer; also keeps ":memory:" databases on a single connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return New(db, dialect, logger), nil
}

// New wraps an open *sql.DB.
func New(db *sql.DB, dialect Dialect, logger *zap.Logger) *DB {
	return &DB{db: db, dialect: dialect, logger: logger}
}

// Close releases the pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks connectivity for readiness probes.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// rebind rewrites ? placeholders for the dialect.
func (d *DB) rebind(query string) string {
	if d.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Migrate creates the tables if they are missing.
func (d *DB) Migrate(ctx context.Context) error {
	floatType := "DOUBLE PRECISION"
	if d.dialect == SQLite {
		floatType = "REAL"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stores (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	domain TEXT NOT NULL UNIQUE,
	owner_email TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	sales_tax %s NOT NULL,
	webhook_secret_hash TEXT,
	created_at TEXT NOT NULL
)`, floatType),
		`CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL DEFAULT '',
	store_id TEXT,
	role TEXT NOT NULL
)`,
	}
	for _, k := range domain.Kinds {
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	store_id TEXT NOT NULL,
	version INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	sort_key TEXT NOT NULL,
	doc TEXT NOT NULL
)`, k.Table()),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_store_sort ON %s (store_id, sort_key)`, k.Table(), k.Table()),
		)
	}

	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return &domain.ErrPersistence{Operation: "migrate", Err: err}
		}
	}
	d.logger.Info("sql schema ready", zap.String("dialect", string(d.dialect)), zap.Int("statements", len(stmts)))
	return nil
}
