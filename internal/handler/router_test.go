package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/handler"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/blob"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/cache"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/memstore"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/observability"
	"github.com/kitchenunity/cabinet-bfa-go/internal/service"
	"github.com/kitchenunity/cabinet-bfa-go/internal/tenant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(handler.Services{}, observability.NewMetrics(), zap.NewNop(), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router := handler.NewRouter(handler.Services{}, observability.NewMetrics(), zap.NewNop(), nil)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz_StoreOfRecordDown(t *testing.T) {
	svc := handler.Services{Ready: func(context.Context) error { return errors.New("connection refused") }}
	router := handler.NewRouter(svc, observability.NewMetrics(), zap.NewNop(), nil)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router := handler.NewRouter(handler.Services{}, observability.NewMetrics(), zap.NewNop(), nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

// ============================================================
// API tests against an in-memory store of record
// ============================================================

const (
	acmeHost  = "acme.kitchenunity.app"
	bravoHost = "bravo.kitchenunity.app"
	adminHost = "admin.kitchenunity.app"
)

type testAPI struct {
	router http.Handler
	auth   *service.AuthService
	dir    *memstore.Directory
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	now := func() time.Time { return time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC) }
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	dir := memstore.NewDirectory(now,
		domain.Store{ID: "acme", Domain: "acme", Name: "Acme Cabinets", Status: domain.StoreActive, SalesTax: 8},
		domain.Store{ID: "bravo", Domain: "bravo", Name: "Bravo Kitchens", Status: domain.StoreActive, SalesTax: 6},
	)
	require.NoError(t, dir.PutProfile(context.Background(), domain.Profile{ID: "u-acme", StoreID: "acme", Role: domain.ProfileStoreUser}))
	require.NoError(t, dir.PutProfile(context.Background(), domain.Profile{ID: "u-bravo", StoreID: "bravo", Role: domain.ProfileStoreUser}))
	require.NoError(t, dir.PutProfile(context.Background(), domain.Profile{ID: "u-admin", Role: domain.ProfileSuperAdmin}))

	profileCache := cache.New[*domain.Profile](time.Minute)
	storeCache := cache.New[[]domain.Store](time.Minute)
	sessionCache := cache.New[*service.Session](time.Minute)
	t.Cleanup(func() {
		profileCache.Close()
		storeCache.Close()
		sessionCache.Close()
	})

	stores := service.NewStores(memstore.NewRepositories(now), now, metrics, logger)
	tenants := service.NewTenantService(tenant.NewResolver(tenant.Options{}), dir, dir, profileCache, storeCache, metrics, logger)
	auth := service.NewAuthService("test-secret", time.Hour, logger)

	svc := handler.Services{
		Auth:        auth,
		Sessions:    service.NewSessions(sessionCache, stores, tenants, metrics, logger),
		Lifecycle:   service.NewLifecycle(logger),
		Stores:      service.NewStoreService(dir, tenants, logger),
		Capture:     service.NewLeadCapture(stores.Leads, tenants, logger),
		Insights:    service.NewInsights(tenants, now),
		Attachments: service.NewAttachments(blob.NewMemory(), now, logger),
	}
	return &testAPI{
		router: handler.NewRouter(svc, metrics, logger, nil),
		auth:   auth,
		dir:    dir,
	}
}

// call performs an authenticated request as subject on host.
func (a *testAPI) call(t *testing.T, subject, host, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Host = host
	req.Header.Set("Content-Type", "application/json")
	if subject != "" {
		token, err := a.auth.SignAccessToken(subject, subject+"@example.com", "")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestAPI_RequiresBearerToken(t *testing.T) {
	api := newTestAPI(t)

	rec := api.call(t, "", acmeHost, http.MethodGet, "/v1/leads", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_ApexHostFailsClosed(t *testing.T) {
	api := newTestAPI(t)

	// No host key, no claim and no home store: nothing to resolve.
	require.NoError(t, api.dir.PutProfile(context.Background(), domain.Profile{ID: "u-orphan", Role: domain.ProfileStoreUser}))

	rec := api.call(t, "u-orphan", "kitchenunity.app", http.MethodGet, "/v1/leads", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_ContextReportsResolvedStore(t *testing.T) {
	api := newTestAPI(t)

	rec := api.call(t, "u-acme", acmeHost, http.MethodGet, "/v1/context", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	actx := decode[service.ActorContext](t, rec)
	assert.Equal(t, "acme", actx.Scope.StoreID)
	assert.Equal(t, domain.RoleCustomer, actx.Scope.Role)
	require.NotNil(t, actx.Store)
	assert.Equal(t, "Acme Cabinets", actx.Store.Name)
}

func TestAPI_LeadConversion(t *testing.T) {
	api := newTestAPI(t)

	rec := api.call(t, "u-acme", acmeHost, http.MethodPost, "/v1/leads", domain.LeadDraft{
		FirstName: "Sarah", LastName: "Jenkins", Email: "sarah@example.com", Phone: "555-0100",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	lead := decode[domain.Lead](t, rec)
	assert.Equal(t, domain.LeadNew, lead.Status)
	assert.Equal(t, "acme", lead.StoreID)

	rec = api.call(t, "u-acme", acmeHost, http.MethodPost, "/v1/leads/"+lead.ID+"/convert", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	conv := decode[service.LeadConversion](t, rec)
	assert.Equal(t, domain.LeadQualified, conv.Lead.Status)
	assert.Equal(t, "Sarah", conv.Customer.FirstName)
	assert.Equal(t, "sarah@example.com", conv.Customer.Email)

	rec = api.call(t, "u-acme", acmeHost, http.MethodGet, "/v1/customers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	customers := decode[domain.ListResponse[domain.Customer]](t, rec)
	assert.Equal(t, 1, customers.Total)
	assert.Equal(t, "acme", customers.StoreID)
}

func TestAPI_TenantIsolation(t *testing.T) {
	api := newTestAPI(t)

	rec := api.call(t, "u-acme", acmeHost, http.MethodPost, "/v1/claims", domain.ClaimDraft{CustomerID: "c-1", Issue: "Door hinge"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	claim := decode[domain.Claim](t, rec)

	rec = api.call(t, "u-bravo", bravoHost, http.MethodGet, "/v1/claims/"+claim.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.call(t, "u-bravo", bravoHost, http.MethodGet, "/v1/claims", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[domain.ListResponse[domain.Claim]](t, rec).Total)

	// A store user cannot select another tenant.
	rec = api.call(t, "u-acme", acmeHost, http.MethodGet, "/v1/claims", nil, "X-Store-Id", "bravo")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_AdminAggregateAndDelete(t *testing.T) {
	api := newTestAPI(t)

	for _, c := range []struct{ subject, host string }{
		{"u-acme", acmeHost}, {"u-acme", acmeHost}, {"u-bravo", bravoHost},
	} {
		rec := api.call(t, c.subject, c.host, http.MethodPost, "/v1/customers/quick",
			domain.QuickCustomerDraft{FirstName: "Quinn", Email: "q@example.com"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := api.call(t, "u-admin", adminHost, http.MethodGet, "/v1/customers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[domain.ListResponse[domain.Customer]](t, rec)
	assert.Equal(t, domain.AllStores, all.StoreID)
	assert.Equal(t, 3, all.Total)

	victim := all.Data[0]

	// Tenant roles never delete.
	rec = api.call(t, "u-acme", acmeHost, http.MethodDelete, "/v1/customers/"+victim.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Nor does an admin in the aggregate context.
	rec = api.call(t, "u-admin", adminHost, http.MethodDelete, "/v1/customers/"+victim.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.call(t, "u-admin", adminHost, http.MethodDelete, "/v1/customers/"+victim.ID, nil, "X-Store-Id", victim.StoreID)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPI_StaleVersionConflicts(t *testing.T) {
	api := newTestAPI(t)

	rec := api.call(t, "u-acme", acmeHost, http.MethodPost, "/v1/leads", domain.LeadDraft{FirstName: "Ana"})
	require.Equal(t, http.StatusCreated, rec.Code)
	lead := decode[domain.Lead](t, rec)

	patch := map[string]any{"version": 1, "patch": map[string]any{"phone": "555"}}
	rec = api.call(t, "u-acme", acmeHost, http.MethodPatch, "/v1/leads/"+lead.ID, patch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[domain.Lead](t, rec)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "555", updated.Phone)

	rec = api.call(t, "u-acme", acmeHost, http.MethodPatch, "/v1/leads/"+lead.ID, patch)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.call(t, "u-acme", acmeHost, http.MethodPatch, "/v1/leads/"+lead.ID,
		map[string]any{"version": 2, "patch": map[string]any{"storeId": "bravo"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_OrderFlow(t *testing.T) {
	api := newTestAPI(t)

	rec := api.call(t, "u-acme", acmeHost, http.MethodPost, "/v1/orders", domain.OrderDraft{
		CustomerID: "c-1",
		LineItems: []domain.LineItem{
			{ProductName: "Base cabinet", SKU: "B24", Quantity: 2, Price: 250},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	quote := decode[domain.Order](t, rec)
	assert.Equal(t, domain.OrderQuote, quote.Status)
	assert.Equal(t, 500.0, quote.Amount)

	rec = api.call(t, "u-acme", acmeHost, http.MethodGet, "/v1/sales/quotes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[domain.ListResponse[domain.Order]](t, rec).Total)

	rec = api.call(t, "u-acme", acmeHost, http.MethodPost, "/v1/orders/"+quote.ID+"/convert", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.OrderProcessing, decode[domain.Order](t, rec).Status)

	// Processing cannot jump to Completed.
	rec = api.call(t, "u-acme", acmeHost, http.MethodPost, "/v1/orders/"+quote.ID+"/status",
		map[string]string{"status": string(domain.OrderCompleted)})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.call(t, "u-acme", acmeHost, http.MethodPost, "/v1/orders/"+quote.ID+"/status",
		map[string]string{"status": string(domain.OrderShipped), "trackingNumber": "1Z999"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	shipped := decode[domain.Order](t, rec)
	assert.Equal(t, domain.OrderShipped, shipped.Status)
	assert.Equal(t, "1Z999", shipped.TrackingNumber)

	rec = api.call(t, "u-acme", acmeHost, http.MethodGet, "/v1/orders/"+quote.ID+"/financials", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	breakdown := decode[map[string]any](t, rec)
	assert.InDelta(t, 540.0, breakdown["totalDue"], 0.001)

	rec = api.call(t, "u-acme", acmeHost, http.MethodGet, "/v1/sales/drafts", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_LedgerExport(t *testing.T) {
	api := newTestAPI(t)

	rec := api.call(t, "u-acme", acmeHost, http.MethodGet, "/v1/ledger.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "ledger-acme-")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestAPI_OpsIsAdminOnly(t *testing.T) {
	api := newTestAPI(t)

	rec := api.call(t, "u-acme", acmeHost, http.MethodGet, "/v1/admin/ops", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.call(t, "u-admin", adminHost, http.MethodGet, "/v1/admin/ops", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[domain.OpsSnapshot](t, rec)
	assert.NotNil(t, snap.EntityWrites)
}

func TestAPI_StoreAdministration(t *testing.T) {
	api := newTestAPI(t)

	draft := domain.StoreDraft{Name: "Cedar Works", Domain: "Cedar"}
	rec := api.call(t, "u-acme", acmeHost, http.MethodPost, "/v1/stores", draft)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.call(t, "u-admin", adminHost, http.MethodPost, "/v1/stores", draft)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "cedar", decode[domain.Store](t, rec).ID)

	rec = api.call(t, "u-admin", adminHost, http.MethodPost, "/v1/stores", draft)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.call(t, "u-admin", adminHost, http.MethodPost, "/v1/stores", domain.StoreDraft{Domain: "nameless"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.call(t, "u-admin", adminHost, http.MethodGet, "/v1/stores", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[domain.ListResponse[domain.Store]](t, rec).Total)
}

func TestWebhook_CapturesLead(t *testing.T) {
	api := newTestAPI(t)

	sub := map[string]string{
		"name-1": "Dana", "name-2": "Reyes", "email-1": "dana@example.com",
		"phone-1": "555-0199", "textarea-1": "Need a kitchen quote",
	}
	rec := api.call(t, "", "", http.MethodPost, "/hooks/forminator?storeId=acme", sub)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.call(t, "", "", http.MethodPost, "/hooks/forminator", sub)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The session view catches up with out-of-band writes on reload.
	rec = api.call(t, "u-acme", acmeHost, http.MethodPost, "/v1/context/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.call(t, "u-acme", acmeHost, http.MethodGet, "/v1/leads", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	leads := decode[domain.ListResponse[domain.Lead]](t, rec)
	require.Equal(t, 1, leads.Total)
	assert.Equal(t, domain.FormSourceForminator, leads.Data[0].Source)
	assert.Equal(t, domain.LeadNew, leads.Data[0].Status)
}

func TestWebhook_RejectsSubmissionWithoutNameOrEmail(t *testing.T) {
	api := newTestAPI(t)

	sub := map[string]string{"phone-1": "555-0199", "textarea-1": "Call me"}
	rec := api.call(t, "", "", http.MethodPost, "/hooks/forminator?storeId=acme", sub)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.call(t, "", "", http.MethodPost, "/hooks/forminator?storeId=acme", map[string]string{"email-1": "dana@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.call(t, "u-acme", acmeHost, http.MethodPost, "/v1/context/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.call(t, "u-acme", acmeHost, http.MethodGet, "/v1/leads", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[domain.ListResponse[domain.Lead]](t, rec).Total)
}

func TestWebhook_RequiresTokenOnceSecretIsSet(t *testing.T) {
	api := newTestAPI(t)

	rec := api.call(t, "u-acme", acmeHost, http.MethodPatch, "/v1/stores/acme", map[string]string{"webhookSecret": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sub := map[string]string{"name-1": "Dana", "email-1": "dana@example.com"}
	rec = api.call(t, "", "", http.MethodPost, "/hooks/forminator?storeId=acme&token=wrong", sub)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.call(t, "", "", http.MethodPost, "/hooks/forminator?storeId=acme&token=s3cret", sub)
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Store users may not touch another store's settings.
	rec = api.call(t, "u-acme", acmeHost, http.MethodPatch, "/v1/stores/bravo", map[string]string{"webhookSecret": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
