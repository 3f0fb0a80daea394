// Package seed loads demo and test fixtures into a store of record.
//
// A fixture file is YAML with a stores and profiles section plus one list
// per entity kind. Entity rows use the same field names as the API and
// keep their ids, so fixtures can reference each other.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/finance"
	"github.com/kitchenunity/cabinet-bfa-go/internal/port"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Fixture is one parsed fixture file.
type Fixture struct {
	Stores    []StoreFixture   `yaml:"stores"`
	Profiles  []ProfileFixture `yaml:"profiles,omitempty"`
	Leads     []Row            `yaml:"leads,omitempty"`
	Customers []Row            `yaml:"customers,omitempty"`
	Claims    []Row            `yaml:"claims,omitempty"`
	Orders    []Row            `yaml:"orders,omitempty"`
	Inventory []Row            `yaml:"inventory,omitempty"`
	Planner   []Row            `yaml:"planner,omitempty"`
}

// StoreFixture declares a tenant. WebhookSecret is stored hashed.
type StoreFixture struct {
	ID            string             `yaml:"id"`
	Name          string             `yaml:"name"`
	OwnerEmail    string             `yaml:"ownerEmail,omitempty"`
	Status        domain.StoreStatus `yaml:"status,omitempty"`
	SalesTax      float64            `yaml:"salesTax,omitempty"`
	WebhookSecret string             `yaml:"webhookSecret,omitempty"`
}

// ProfileFixture declares a user profile.
type ProfileFixture struct {
	ID      string             `yaml:"id"`
	Email   string             `yaml:"email,omitempty"`
	StoreID string             `yaml:"storeId,omitempty"`
	Role    domain.ProfileRole `yaml:"role"`
}

// Row is one entity in API field names.
type Row map[string]any

// Load reads and parses the fixture file at path.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a fixture, rejecting unknown sections and fields.
func Parse(r io.Reader) (*Fixture, error) {
	var f Fixture
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	stores := make(map[string]bool, len(f.Stores))
	for i, s := range f.Stores {
		if s.ID == "" || strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("stores[%d]: id and name are required", i)
		}
		if s.ID != domain.NormalizeSlug(s.ID) {
			return fmt.Errorf("stores[%d]: id %q is not a domain key", i, s.ID)
		}
		if stores[s.ID] {
			return fmt.Errorf("stores[%d]: duplicate id %q", i, s.ID)
		}
		stores[s.ID] = true
	}
	for i, p := range f.Profiles {
		if p.ID == "" {
			return fmt.Errorf("profiles[%d]: id is required", i)
		}
		if p.StoreID != "" && !stores[p.StoreID] {
			return fmt.Errorf("profiles[%d]: unknown store %q", i, p.StoreID)
		}
	}
	for kind, rows := range f.rows() {
		seen := make(map[string]bool, len(rows))
		for i, row := range rows {
			id, _ := row["id"].(string)
			storeID, _ := row["storeId"].(string)
			if id == "" {
				return fmt.Errorf("%s[%d]: id is required", kind, i)
			}
			if seen[id] {
				return fmt.Errorf("%s[%d]: duplicate id %q", kind, i, id)
			}
			seen[id] = true
			if !stores[storeID] {
				return fmt.Errorf("%s[%d]: unknown store %q", kind, i, storeID)
			}
		}
	}
	return nil
}

func (f *Fixture) rows() map[domain.Kind][]Row {
	return map[domain.Kind][]Row{
		domain.KindLead:      f.Leads,
		domain.KindCustomer:  f.Customers,
		domain.KindClaim:     f.Claims,
		domain.KindOrder:     f.Orders,
		domain.KindInventory: f.Inventory,
		domain.KindPlanner:   f.Planner,
	}
}

// ============================================================
// Applying a fixture
// ============================================================

// Directory receives stores and profiles.
type Directory interface {
	CreateStore(ctx context.Context, store domain.Store) (*domain.Store, error)
	PutProfile(ctx context.Context, p domain.Profile) error
}

// Sink inserts a row as-is, keeping its id and version.
type Sink[T domain.Entity] interface {
	Put(ctx context.Context, row T) error
}

// Target is where a fixture is written.
type Target struct {
	Directory Directory
	Leads     Sink[domain.Lead]
	Customers Sink[domain.Customer]
	Claims    Sink[domain.Claim]
	Orders    Sink[domain.Order]
	Inventory Sink[domain.InventoryItem]
	Planner   Sink[domain.PlannerEvent]
}

// ErrNotSeedable is returned by TargetFor for repositories that cannot
// insert rows with caller-chosen ids.
var ErrNotSeedable = errors.New("repository does not support seeding")

// TargetFor builds a Target from a directory and repositories.
func TargetFor(dir Directory, repos port.Repositories) (Target, error) {
	t := Target{Directory: dir}
	var ok [6]bool
	t.Leads, ok[0] = repos.Leads.(Sink[domain.Lead])
	t.Customers, ok[1] = repos.Customers.(Sink[domain.Customer])
	t.Claims, ok[2] = repos.Claims.(Sink[domain.Claim])
	t.Orders, ok[3] = repos.Orders.(Sink[domain.Order])
	t.Inventory, ok[4] = repos.Inventory.(Sink[domain.InventoryItem])
	t.Planner, ok[5] = repos.Planner.(Sink[domain.PlannerEvent])
	for i, k := range domain.Kinds {
		if !ok[i] {
			return Target{}, fmt.Errorf("%s: %w", k, ErrNotSeedable)
		}
	}
	return t, nil
}

// Summary counts what Apply wrote.
type Summary struct {
	Stores        int                 `json:"stores"`
	StoresSkipped int                 `json:"storesSkipped"`
	Profiles      int                 `json:"profiles"`
	Rows          map[domain.Kind]int `json:"rows"`
}

// Apply writes f to target. Stores that already exist are left alone;
// profiles and rows are upserted by id.
func Apply(ctx context.Context, f *Fixture, target Target, now port.Clock) (*Summary, error) {
	if now == nil {
		now = time.Now
	}
	sum := &Summary{Rows: make(map[domain.Kind]int, len(domain.Kinds))}

	for _, sf := range f.Stores {
		store, err := sf.store()
		if err != nil {
			return sum, err
		}
		if _, err := target.Directory.CreateStore(ctx, store); err != nil {
			var dup *domain.ErrDuplicate
			if errors.As(err, &dup) {
				sum.StoresSkipped++
				continue
			}
			return sum, fmt.Errorf("store %s: %w", sf.ID, err)
		}
		sum.Stores++
	}

	for _, pf := range f.Profiles {
		p := domain.Profile{ID: pf.ID, Email: pf.Email, StoreID: pf.StoreID, Role: pf.Role}
		if err := target.Directory.PutProfile(ctx, p); err != nil {
			return sum, fmt.Errorf("profile %s: %w", pf.ID, err)
		}
		sum.Profiles++
	}

	stamp := now().UTC()
	steps := []func() (int, error){
		func() (int, error) { return putAll(ctx, target.Leads, f.Leads, stamp, nil) },
		func() (int, error) { return putAll(ctx, target.Customers, f.Customers, stamp, nil) },
		func() (int, error) { return putAll(ctx, target.Claims, f.Claims, stamp, nil) },
		func() (int, error) { return putAll(ctx, target.Orders, f.Orders, stamp, finance.Recalculate) },
		func() (int, error) { return putAll(ctx, target.Inventory, f.Inventory, stamp, nil) },
		func() (int, error) { return putAll(ctx, target.Planner, f.Planner, stamp, nil) },
	}
	for i, step := range steps {
		n, err := step()
		sum.Rows[domain.Kinds[i]] = n
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (sf StoreFixture) store() (domain.Store, error) {
	status := sf.Status
	if status == "" {
		status = domain.StoreActive
	}
	tax := sf.SalesTax
	if tax == 0 {
		tax = domain.DefaultSalesTax
	}
	st := domain.Store{
		ID:         sf.ID,
		Name:       strings.TrimSpace(sf.Name),
		Domain:     sf.ID,
		OwnerEmail: sf.OwnerEmail,
		Status:     status,
		SalesTax:   tax,
	}
	if sf.WebhookSecret != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(sf.WebhookSecret), bcrypt.DefaultCost)
		if err != nil {
			return st, fmt.Errorf("store %s: hash webhook secret: %w", sf.ID, err)
		}
		st.WebhookSecretHash = string(hash)
	}
	return st, nil
}

func putAll[T domain.Entity](ctx context.Context, sink Sink[T], rows []Row, stamp time.Time, derive func(T) T) (int, error) {
	for i, row := range rows {
		e, err := decodeRow[T](row, stamp)
		if err != nil {
			return i, fmt.Errorf("%s[%d]: %w", e.Kind(), i, err)
		}
		if derive != nil {
			e = derive(e)
		}
		if err := sink.Put(ctx, e); err != nil {
			return i, fmt.Errorf("%s %s: %w", e.Kind(), e.EntityID(), err)
		}
	}
	return len(rows), nil
}

// decodeRow converts a YAML row to T, defaulting version and createdAt.
// YAML dates under "date" are written back as YYYY-MM-DD.
func decodeRow[T domain.Entity](row Row, stamp time.Time) (T, error) {
	var out T
	fields := make(map[string]any, len(row)+2)
	for k, v := range row {
		if t, ok := v.(time.Time); ok && k == "date" {
			v = t.Format("2006-01-02")
		}
		fields[k] = v
	}
	if _, ok := fields["version"]; !ok {
		fields["version"] = 1
	}
	if _, ok := fields["createdAt"]; !ok {
		fields["createdAt"] = stamp
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return out, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
