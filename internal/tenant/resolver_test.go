package tenant_test

import (
	"errors"
	"testing"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/tenant"
)

func TestHostStoreID(t *testing.T) {
	r := tenant.NewResolver(tenant.DefaultOptions())

	tests := []struct {
		host   string
		want   string
		wantOK bool
	}{
		{"acme.kitchenunity.com", "acme", true},
		{"ACME.KitchenUnity.com", "acme", true},
		{"acme.kitchenunity.com:8443", "acme", true},
		{"acme.kitchenunity.com.", "acme", true},
		{"", tenant.DefaultDevTenantID, true},
		{"localhost", tenant.DefaultDevTenantID, true},
		{"localhost:5173", tenant.DefaultDevTenantID, true},
		{"127.0.0.1", tenant.DefaultDevTenantID, true},
		{"::1", tenant.DefaultDevTenantID, true},
		{"[::1]:3000", tenant.DefaultDevTenantID, true},
		{"abc--web-platform.example.io", tenant.DefaultDevTenantID, true},
		{"project.stackblitz.io", tenant.DefaultDevTenantID, true},
		{"fuzzy-space-123.github.dev", tenant.DefaultDevTenantID, true},
		{"kitchenunity.com", "", false},
		{"www.kitchenunity.com", "", false},
		{"com", "", false},
		{"10.0.0.5", "", false},
		{"all.kitchenunity.com", "", false},
	}

	for _, tt := range tests {
		got, _, ok := r.HostStoreID(tt.host)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("HostStoreID(%q) = (%q, %v), want (%q, %v)", tt.host, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestHostStoreID_DevHostsDisabled(t *testing.T) {
	r := tenant.NewResolver(tenant.Options{DevHostsEnabled: false})

	for _, host := range []string{"", "localhost", "127.0.0.1", "x.stackblitz.io"} {
		got, _, ok := r.HostStoreID(host)
		if host == "x.stackblitz.io" {
			// With shortcuts off this is an ordinary subdomain.
			if !ok || got != "x" {
				t.Errorf("HostStoreID(%q) = (%q, %v), want (x, true)", host, got, ok)
			}
			continue
		}
		if ok {
			t.Errorf("HostStoreID(%q) resolved to %q with dev hosts disabled", host, got)
		}
	}
}

func TestResolve_ProfileOverridesHost(t *testing.T) {
	r := tenant.NewResolver(tenant.DefaultOptions())
	profile := &domain.Profile{ID: "u-1", StoreID: "bravo", Role: domain.ProfileStoreUser}

	res := r.Resolve("acme.kitchenunity.com", &tenant.Session{Subject: "u-1"}, profile)

	if res.StoreID != "bravo" {
		t.Errorf("expected profile store bravo, got %q", res.StoreID)
	}
	if res.HostStoreID != "acme" {
		t.Errorf("expected host store acme, got %q", res.HostStoreID)
	}
	if res.Role != domain.RoleCustomer {
		t.Errorf("expected role %s, got %s", domain.RoleCustomer, res.Role)
	}
	if res.Source != tenant.SourceProfile {
		t.Errorf("expected source profile, got %s", res.Source)
	}
}

func TestResolve_SessionClaimOverridesHost(t *testing.T) {
	r := tenant.NewResolver(tenant.DefaultOptions())

	res := r.Resolve("acme.kitchenunity.com", &tenant.Session{Subject: "u-1", StoreID: "charlie"}, nil)

	if res.StoreID != "charlie" || res.Source != tenant.SourceSession {
		t.Errorf("expected session store charlie, got %q (%s)", res.StoreID, res.Source)
	}
}

func TestResolve_SuperAdminStartsGlobal(t *testing.T) {
	r := tenant.NewResolver(tenant.DefaultOptions())
	profile := &domain.Profile{ID: "admin", StoreID: "acme", Role: domain.ProfileSuperAdmin}

	res := r.Resolve("kitchenunity.com", nil, profile)

	if res.StoreID != domain.AllStores {
		t.Errorf("expected %q, got %q", domain.AllStores, res.StoreID)
	}
	if res.HomeStoreID != "acme" {
		t.Errorf("expected home store acme, got %q", res.HomeStoreID)
	}
	if res.Role != domain.RoleAdmin {
		t.Errorf("expected admin role, got %s", res.Role)
	}
}

func TestResolve_FailsClosedOnApexHost(t *testing.T) {
	r := tenant.NewResolver(tenant.DefaultOptions())
	profile := &domain.Profile{ID: "u-2", Role: domain.ProfileStoreUser}

	res := r.Resolve("kitchenunity.com", nil, profile)

	if res.OK() {
		t.Fatalf("expected no store, got %q", res.StoreID)
	}
	stores := []domain.Store{{ID: "first"}, {ID: "second"}}
	if got := r.WithFallback(res, stores); got.OK() {
		t.Errorf("fallback applied while disabled: %q", got.StoreID)
	}
}

func TestResolve_FirstStoreFallbackWhenEnabled(t *testing.T) {
	opts := tenant.DefaultOptions()
	opts.AllowFirstStoreFallback = true
	r := tenant.NewResolver(opts)

	res := r.WithFallback(r.Resolve("kitchenunity.com", nil, nil), []domain.Store{{ID: "first"}, {ID: "second"}})

	if res.StoreID != "first" || res.Source != tenant.SourceFallback {
		t.Errorf("expected fallback to first, got %q (%s)", res.StoreID, res.Source)
	}

	empty := r.WithFallback(r.Resolve("kitchenunity.com", nil, nil), nil)
	if empty.OK() {
		t.Errorf("expected no store without any stores, got %q", empty.StoreID)
	}
}

func TestEffective(t *testing.T) {
	admin := tenant.Resolution{StoreID: domain.AllStores, Role: domain.RoleAdmin}
	staff := tenant.Resolution{StoreID: "acme", Role: domain.RoleCustomer}

	if got, err := tenant.Effective(admin, ""); err != nil || got != domain.AllStores {
		t.Errorf("admin default = (%q, %v), want all", got, err)
	}
	if got, err := tenant.Effective(admin, "bravo"); err != nil || got != "bravo" {
		t.Errorf("admin selection = (%q, %v), want bravo", got, err)
	}
	if got, err := tenant.Effective(staff, ""); err != nil || got != "acme" {
		t.Errorf("staff = (%q, %v), want acme", got, err)
	}

	_, err := tenant.Effective(staff, "bravo")
	var forbidden *domain.ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Errorf("expected ErrForbidden for staff selecting another store, got %v", err)
	}

	_, err = tenant.Effective(tenant.Resolution{Role: domain.RoleCustomer}, "")
	var violation *domain.ErrTenantViolation
	if !errors.As(err, &violation) {
		t.Errorf("expected ErrTenantViolation for unresolved store, got %v", err)
	}
}
