package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/cache"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/memstore"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/observability"
	"github.com/kitchenunity/cabinet-bfa-go/internal/port"
	"github.com/kitchenunity/cabinet-bfa-go/internal/service"
	"github.com/kitchenunity/cabinet-bfa-go/internal/tenant"
	"github.com/kitchenunity/cabinet-bfa-go/internal/workspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = func() time.Time { return time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC) }

var (
	acme      = domain.Scope{StoreID: "acme", Role: domain.RoleEmployee}
	bravo     = domain.Scope{StoreID: "bravo", Role: domain.RoleEmployee}
	adminAll  = domain.Scope{StoreID: domain.AllStores, Role: domain.RoleAdmin}
	adminAcme = domain.Scope{StoreID: "acme", Role: domain.RoleAdmin}
)

// flakyLeads fails every update with err and every list with listErr
// while they are set. When hold is set, the next List signals entered and
// waits for hold to close.
type flakyLeads struct {
	*memstore.Repository[domain.Lead]
	err     error
	listErr error
	hold    chan struct{}
	entered chan struct{}
}

func (f *flakyLeads) List(ctx context.Context, storeID string) ([]domain.Lead, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if hold := f.hold; hold != nil {
		f.hold = nil
		close(f.entered)
		<-hold
	}
	return f.Repository.List(ctx, storeID)
}

func (f *flakyLeads) Update(ctx context.Context, storeID, id string, version int, patch domain.Patch) error {
	if f.err != nil {
		return f.err
	}
	return f.Repository.Update(ctx, storeID, id, version, patch)
}

type fixture struct {
	repos   port.Repositories
	leads   *flakyLeads
	dir     *memstore.Directory
	stores  *service.Stores
	tenants *service.TenantService
	metrics *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	leads := &flakyLeads{Repository: memstore.New[domain.Lead](fixedNow)}
	repos := memstore.NewRepositories(fixedNow)
	repos.Leads = leads

	dir := memstore.NewDirectory(fixedNow,
		domain.Store{ID: "acme", Domain: "acme", Name: "Acme", SalesTax: 8},
		domain.Store{ID: "bravo", Domain: "bravo", Name: "Bravo", SalesTax: 6},
	)

	profileCache := cache.New[*domain.Profile](time.Minute)
	storeCache := cache.New[[]domain.Store](time.Minute)
	t.Cleanup(func() {
		profileCache.Close()
		storeCache.Close()
	})

	metrics := observability.NewMetrics()
	return &fixture{
		repos:   repos,
		leads:   leads,
		dir:     dir,
		stores:  service.NewStores(repos, fixedNow, metrics, zap.NewNop()),
		tenants: service.NewTenantService(tenant.NewResolver(tenant.DefaultOptions()), dir, dir, profileCache, storeCache, metrics, zap.NewNop()),
		metrics: metrics,
	}
}

func (f *fixture) session(t *testing.T, scope domain.Scope) *service.Session {
	t.Helper()
	sess := service.NewSession(f.stores, scope, f.metrics, zap.NewNop())
	require.NoError(t, sess.Load(context.Background()))
	return sess
}

// ============================================================
// EntityStore
// ============================================================

func TestEntityStore_ListAllIsUnionOfTenants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, scope := range []domain.Scope{acme, acme, bravo} {
		_, err := f.stores.Customers.Create(ctx, scope, domain.CustomerDraft{FirstName: "Ana", Email: "ana@example.com"})
		require.NoError(t, err)
	}

	a, err := f.stores.Customers.List(ctx, acme)
	require.NoError(t, err)
	b, err := f.stores.Customers.List(ctx, bravo)
	require.NoError(t, err)
	all, err := f.stores.Customers.List(ctx, adminAll)
	require.NoError(t, err)

	assert.Len(t, a, 2)
	assert.Len(t, b, 1)
	assert.Len(t, all, len(a)+len(b))
}

func TestEntityStore_WritesNeedConcreteStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	draft := domain.ClaimDraft{CustomerID: "c-1", Issue: "Scratched door"}

	var violation *domain.ErrTenantViolation
	_, err := f.stores.Claims.Create(ctx, domain.Scope{Role: domain.RoleEmployee}, draft)
	assert.ErrorAs(t, err, &violation)

	_, err = f.stores.Claims.Create(ctx, adminAll, draft)
	assert.ErrorAs(t, err, &violation)

	_, err = f.stores.Claims.List(ctx, domain.Scope{Role: domain.RoleAdmin})
	assert.ErrorAs(t, err, &violation)

	rows, err := f.repos.Claims.List(ctx, domain.AllStores)
	require.NoError(t, err)
	assert.Empty(t, rows, "no write may reach the store of record")
}

func TestEntityStore_OrderAmountFollowsLineItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.session(t, acme)

	order, err := service.Create[domain.Order](ctx, sess, f.stores.Orders, domain.OrderDraft{
		CustomerID: "c-1",
		LineItems:  []domain.LineItem{{ProductName: "Wall cabinet", Quantity: 3, Price: 120}},
	})
	require.NoError(t, err)
	assert.Equal(t, 360.0, order.Amount)
	require.Len(t, order.LineItems, 1)
	assert.NotEmpty(t, order.LineItems[0].ID)

	updated, err := service.Update[domain.Order](ctx, sess, f.stores.Orders, order.ID, order.Version, domain.Patch{
		"lineItems": []domain.LineItem{
			{ProductName: "Wall cabinet", Quantity: 1, Price: 120},
			{ProductName: "Crown molding", Quantity: 4, Price: 12.5},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 170.0, updated.Amount)
	assert.Equal(t, 2, updated.Version)

	// amount is derived and cannot be patched directly.
	_, err = service.Update[domain.Order](ctx, sess, f.stores.Orders, order.ID, updated.Version, domain.Patch{"amount": 1.0})
	var validation *domain.ErrValidation
	assert.ErrorAs(t, err, &validation)
}

// ============================================================
// Session and lifecycle
// ============================================================

func TestLifecycle_ConvertLead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.session(t, acme)

	lead, err := service.Create[domain.Lead](ctx, sess, f.stores.Leads, domain.LeadDraft{
		FirstName: "Sarah", LastName: "Jenkins", Email: "sarah.j@example.com", Phone: "555-0142",
	})
	require.NoError(t, err)

	conv, err := service.NewLifecycle(zap.NewNop()).ConvertLead(ctx, sess, lead.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.LeadQualified, conv.Lead.Status)
	assert.Equal(t, "Sarah", conv.Customer.FirstName)
	assert.Equal(t, "Jenkins", conv.Customer.LastName)
	assert.Equal(t, "sarah.j@example.com", conv.Customer.Email)
	assert.Equal(t, lead.ID, conv.Customer.SourceLeadID)
	assert.Equal(t, "acme", conv.Customer.StoreID)

	assert.Len(t, service.List[domain.Customer](sess), 1)
	cached, err := service.Get[domain.Lead](sess, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadQualified, cached.Status)
}

func TestLifecycle_ConvertLeadWithoutEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.session(t, acme)

	lead, err := service.Create[domain.Lead](ctx, sess, f.stores.Leads, domain.LeadDraft{FirstName: "Walk-in", Phone: "555-0100"})
	require.NoError(t, err)

	conv, err := service.NewLifecycle(zap.NewNop()).ConvertLead(ctx, sess, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadQualified, conv.Lead.Status)
	assert.Equal(t, "555-0100", conv.Customer.Phone)
	assert.Empty(t, conv.Customer.Email)
	assert.Len(t, service.List[domain.Customer](sess), 1)

	// The manual and quick customer forms still require an email.
	_, err = service.Create[domain.Customer](ctx, sess, f.stores.Customers, domain.QuickCustomerDraft{FirstName: "Walk-in"})
	var validation *domain.ErrValidation
	assert.ErrorAs(t, err, &validation)
}

func TestLifecycle_ConvertLeadRollsBackCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.session(t, acme)

	lead, err := service.Create[domain.Lead](ctx, sess, f.stores.Leads, domain.LeadDraft{FirstName: "Sarah", Email: "s@example.com"})
	require.NoError(t, err)
	before := sess.Snapshot()

	f.leads.err = &domain.ErrPersistence{Operation: "update leads", Err: errors.New("503")}
	_, err = service.NewLifecycle(zap.NewNop()).ConvertLead(ctx, sess, lead.ID)
	var persistence *domain.ErrPersistence
	require.ErrorAs(t, err, &persistence)

	// The customer created by the first step is gone again.
	remote, err := f.repos.Customers.List(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, remote)

	after := sess.Snapshot()
	assert.Equal(t, before.Leads, after.Leads)
	assert.Empty(t, after.Customers)
	assert.Equal(t, 1, after.Len(domain.KindLead))
}

func TestLifecycle_ConvertQuoteAndAdvance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.session(t, acme)
	lc := service.NewLifecycle(zap.NewNop())

	quote, err := service.Create[domain.Order](ctx, sess, f.stores.Orders, domain.OrderDraft{
		CustomerID: "c-1",
		LineItems:  []domain.LineItem{{ProductName: "Vanity", Quantity: 1, Price: 900}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ViewQuotes, domain.ViewFor(quote.Status))

	order, err := lc.ConvertQuote(ctx, sess, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderProcessing, order.Status)
	assert.Len(t, service.SalesView(sess, domain.ViewQuotes), 0)
	assert.Len(t, service.SalesView(sess, domain.ViewOrders), 1)

	_, err = lc.ConvertQuote(ctx, sess, quote.ID)
	var invalid *domain.ErrInvalidTransition
	assert.ErrorAs(t, err, &invalid)

	_, err = lc.AdvanceOrder(ctx, sess, quote.ID, domain.OrderQuote, "")
	assert.ErrorAs(t, err, &invalid)

	shipped, err := lc.AdvanceOrder(ctx, sess, quote.ID, domain.OrderShipped, "1Z42")
	require.NoError(t, err)
	assert.Equal(t, "1Z42", shipped.TrackingNumber)
}

func TestSession_DeleteIsAdminOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	staff := f.session(t, acme)

	item, err := service.Create[domain.InventoryItem](ctx, staff, f.stores.Inventory, domain.InventoryDraft{Name: "Hinge", SKU: "H-1", Price: 4.5, Quantity: 10})
	require.NoError(t, err)

	var forbidden *domain.ErrForbidden
	err = service.Delete[domain.InventoryItem](ctx, staff, f.stores.Inventory, item.ID)
	require.ErrorAs(t, err, &forbidden)
	assert.Len(t, service.List[domain.InventoryItem](staff), 1)

	admin := f.session(t, adminAcme)
	require.NoError(t, service.Delete[domain.InventoryItem](ctx, admin, f.stores.Inventory, item.ID))
	assert.Empty(t, service.List[domain.InventoryItem](admin))
}

func TestSession_StaleVersionLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.session(t, acme)
	second := f.session(t, acme)

	lead, err := service.Create[domain.Lead](ctx, first, f.stores.Leads, domain.LeadDraft{FirstName: "Omar"})
	require.NoError(t, err)
	require.NoError(t, second.Load(ctx))

	_, err = service.Update[domain.Lead](ctx, first, f.stores.Leads, lead.ID, 1, domain.Patch{"phone": "111"})
	require.NoError(t, err)

	_, err = service.Update[domain.Lead](ctx, second, f.stores.Leads, lead.ID, 1, domain.Patch{"phone": "222"})
	var conflict *domain.ErrConflict
	require.ErrorAs(t, err, &conflict)

	cached, err := service.Get[domain.Lead](second, lead.ID)
	require.NoError(t, err)
	assert.Empty(t, cached.Phone)
	assert.Equal(t, 1, cached.Version)
}

func TestSession_LoadFailsAsAWhole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.session(t, acme)

	_, err := service.Create[domain.Customer](ctx, sess, f.stores.Customers, domain.CustomerDraft{FirstName: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	before := sess.Snapshot()

	// A row written elsewhere must not show up through a partial load.
	_, err = f.stores.Claims.Create(ctx, acme, domain.ClaimDraft{CustomerID: "c-1", Issue: "Chipped edge"})
	require.NoError(t, err)

	f.leads.listErr = &domain.ErrPersistence{Operation: "list leads", Err: errors.New("503")}
	err = sess.Load(ctx)
	var persistence *domain.ErrPersistence
	require.ErrorAs(t, err, &persistence)

	assert.Equal(t, before, sess.Snapshot())
	assert.Empty(t, service.List[domain.Claim](sess))
}

func TestSession_LoadForSupersededContextIsDiscarded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.stores.Leads.Create(ctx, acme, domain.LeadDraft{FirstName: "Ana"})
	require.NoError(t, err)
	_, err = f.stores.Leads.Create(ctx, bravo, domain.LeadDraft{FirstName: "Bo"})
	require.NoError(t, err)

	sess := service.NewSession(f.stores, acme, f.metrics, zap.NewNop())
	hold := make(chan struct{})
	f.leads.entered = make(chan struct{})
	f.leads.hold = hold

	done := make(chan error, 1)
	go func() { done <- sess.Load(ctx) }()
	<-f.leads.entered

	require.NoError(t, sess.Switch(ctx, bravo))
	close(hold)
	require.NoError(t, <-done)

	assert.Equal(t, bravo, sess.Scope())
	leads := service.List[domain.Lead](sess)
	require.Len(t, leads, 1)
	assert.Equal(t, "bravo", leads[0].StoreID)
	assert.Equal(t, 1.0, f.metrics.Snapshot().StaleLoads)
}

func TestSessions_EachResolvedStoreGetsItsOwnSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.dir.PutProfile(ctx, domain.Profile{ID: "root", Role: domain.ProfileSuperAdmin}))

	sessionCache := cache.New[*service.Session](time.Minute)
	t.Cleanup(sessionCache.Close)
	sessions := service.NewSessions(sessionCache, f.stores, f.tenants, f.metrics, zap.NewNop())

	host := "admin.kitchenunity.app"
	sessA, actxA, err := sessions.Open(ctx, service.ContextRequest{Subject: "root", Host: host, SelectedStoreID: "acme"})
	require.NoError(t, err)
	sessB, actxB, err := sessions.Open(ctx, service.ContextRequest{Subject: "root", Host: host, SelectedStoreID: "bravo"})
	require.NoError(t, err)
	assert.Equal(t, "acme", actxA.Scope.StoreID)
	assert.Equal(t, "bravo", actxB.Scope.StoreID)

	created, err := service.Create[domain.Customer](ctx, sessA, f.stores.Customers, domain.CustomerDraft{FirstName: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "acme", created.StoreID)
	assert.Equal(t, actxA.Scope, sessA.Scope())
	assert.Empty(t, service.List[domain.Customer](sessB))

	again, _, err := sessions.Open(ctx, service.ContextRequest{Subject: "root", Host: host, SelectedStoreID: "acme"})
	require.NoError(t, err)
	assert.Same(t, sessA, again)
}

func TestSession_PlannerListedChronologically(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.session(t, acme)

	for _, date := range []string{"2026-06-03", "2026-06-01", "2026-06-02"} {
		_, err := service.Create[domain.PlannerEvent](ctx, sess, f.stores.Planner, domain.PlannerDraft{
			Type: domain.EventMeasurement, Date: date, Time: "09:00", Address: "1 Main St",
		})
		require.NoError(t, err)
	}

	events := service.List[domain.PlannerEvent](sess)
	require.Len(t, events, 3)
	assert.Equal(t, "2026-06-01", events[0].Date)
	assert.Equal(t, "2026-06-03", events[2].Date)
}

// ============================================================
// Lead capture and stores
// ============================================================

func TestLeadCapture_TokenCheck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = f.dir.UpdateStoreSettings(ctx, "acme", domain.StoreSettings{}.WithSecretHash(string(hash)))
	require.NoError(t, err)

	capture := service.NewLeadCapture(f.stores.Leads, f.tenants, zap.NewNop())
	sub := domain.FormSubmission{FirstName: " Dana ", Email: "dana@example.com", Message: "Kitchen remodel"}

	var unauthorized *domain.ErrUnauthorized
	_, err = capture.Capture(ctx, "acme", "wrong", domain.FormSourceForminator, sub)
	require.ErrorAs(t, err, &unauthorized)

	lead, err := capture.Capture(ctx, "acme", "s3cret", domain.FormSourceForminator, sub)
	require.NoError(t, err)
	assert.Equal(t, "Dana", lead.FirstName)
	assert.Equal(t, domain.FormSourceForminator, lead.Source)
	assert.Equal(t, domain.LeadNew, lead.Status)

	// Stores without a secret accept any token.
	_, err = capture.Capture(ctx, "bravo", "", domain.FormSourceForminator, sub)
	require.NoError(t, err)

	var violation *domain.ErrTenantViolation
	_, err = capture.Capture(ctx, domain.AllStores, "", domain.FormSourceForminator, sub)
	assert.ErrorAs(t, err, &violation)
}

func TestStoreService_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := service.NewStoreService(f.dir, f.tenants, zap.NewNop()).WithDefaultTaxRate(7.25)

	var validation *domain.ErrValidation
	_, err := svc.Create(ctx, adminAll, domain.StoreDraft{Domain: "cedar"})
	assert.ErrorAs(t, err, &validation)
	_, err = svc.Create(ctx, adminAll, domain.StoreDraft{Name: "Cedar"})
	assert.ErrorAs(t, err, &validation)

	var forbidden *domain.ErrForbidden
	_, err = svc.Create(ctx, acme, domain.StoreDraft{Name: "Cedar", Domain: "cedar"})
	assert.ErrorAs(t, err, &forbidden)

	created, err := svc.Create(ctx, adminAll, domain.StoreDraft{Name: "Cedar Works", Domain: " Cedar "})
	require.NoError(t, err)
	assert.Equal(t, "cedar", created.ID)
	assert.Equal(t, domain.StoreTrial, created.Status)
	assert.Equal(t, 7.25, created.SalesTax)

	var dup *domain.ErrDuplicate
	_, err = svc.Create(ctx, adminAll, domain.StoreDraft{Name: "Cedar Again", Domain: "cedar"})
	assert.ErrorAs(t, err, &dup)

	// The cached directory sees the new store straight away.
	stores, err := f.tenants.Stores(ctx)
	require.NoError(t, err)
	assert.Len(t, stores, 3)
}

// ============================================================
// Insights
// ============================================================

func TestBuildAccounting(t *testing.T) {
	orders := []domain.Order{
		{Meta: domain.Meta{StoreID: "acme"}, Status: domain.OrderProcessing, Amount: 100},
		{Meta: domain.Meta{StoreID: "bravo"}, Status: domain.OrderShipped, Amount: 200},
		{Meta: domain.Meta{StoreID: "acme"}, Status: domain.OrderCompleted, Amount: 300, IsNonTaxable: true},
	}

	st := service.BuildAccounting(orders, map[string]float64{"acme": 8, "bravo": 6})

	assert.Equal(t, 600.0, st.TotalRevenue)
	assert.Equal(t, 200.0, st.Receivables)
	assert.Equal(t, 300.0, st.Completed)
	assert.Equal(t, 20.0, st.EstimatedTax)
}

func TestBuildDashboard(t *testing.T) {
	s := workspace.State{
		Leads: []domain.Lead{{Status: domain.LeadNew}, {Status: domain.LeadContacted}},
		Claims: []domain.Claim{
			{Status: domain.ClaimOpen}, {Status: domain.ClaimResolved},
		},
		Orders: []domain.Order{
			{Status: domain.OrderQuote, Amount: 10},
			{Status: domain.OrderProcessing, Amount: 20.5},
		},
		Planner: []domain.PlannerEvent{
			{Date: "2026-05-05", Status: domain.EventScheduled},
			{Date: "2026-05-04", Time: "08:00", Status: domain.EventRescheduled},
			{Date: "2026-05-03", Status: domain.EventScheduled},
			{Date: "2026-05-09", Status: domain.EventCompleted},
		},
	}

	d := service.BuildDashboard(s, fixedNow())

	assert.Equal(t, 2, d.Leads)
	assert.Equal(t, 1, d.NewLeads)
	assert.Equal(t, 1, d.OpenClaims)
	assert.Equal(t, 1, d.Quotes)
	assert.Equal(t, 1, d.ActiveOrders)
	assert.Equal(t, 2, d.UpcomingEvents)
	assert.InDelta(t, 30.5, d.Revenue, 0.001)
}
