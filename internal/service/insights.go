package service

import (
	"context"
	"sort"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/access"
	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/finance"
	"github.com/kitchenunity/cabinet-bfa-go/internal/port"
	"github.com/kitchenunity/cabinet-bfa-go/internal/workspace"

	"go.opentelemetry.io/otel"
)

var insightsTracer = otel.Tracer("service/insights")

// Insights derives dashboard, accounting and report figures from a
// loaded session. Nothing here writes.
type Insights struct {
	tenants *TenantService
	now     port.Clock
}

// NewInsights creates the insights service.
func NewInsights(tenants *TenantService, now port.Clock) *Insights {
	return &Insights{tenants: tenants, now: now}
}

// Dashboard summarises the session's scope.
func (i *Insights) Dashboard(ctx context.Context, sess *Session) (*domain.Dashboard, error) {
	_, span := insightsTracer.Start(ctx, "Insights.Dashboard")
	defer span.End()

	scope := sess.Scope()
	if err := requireView(scope, access.ModuleDashboard); err != nil {
		return nil, err
	}
	d := BuildDashboard(sess.Snapshot(), i.now())
	d.StoreID = scope.StoreID
	return &d, nil
}

// Accounting returns the ledger headline figures.
func (i *Insights) Accounting(ctx context.Context, sess *Session) (*domain.AccountingStats, error) {
	ctx, span := insightsTracer.Start(ctx, "Insights.Accounting")
	defer span.End()

	scope := sess.Scope()
	if err := requireView(scope, access.ModuleAccounting); err != nil {
		return nil, err
	}
	rates, err := i.tenants.TaxRates(ctx)
	if err != nil {
		return nil, err
	}
	stats := BuildAccounting(sess.Snapshot().Orders, rates)
	stats.StoreID = scope.StoreID
	return &stats, nil
}

// Reports returns the analytics distributions.
func (i *Insights) Reports(ctx context.Context, sess *Session) (*domain.Reports, error) {
	_, span := insightsTracer.Start(ctx, "Insights.Reports")
	defer span.End()

	scope := sess.Scope()
	if err := requireView(scope, access.ModuleReports); err != nil {
		return nil, err
	}
	r := BuildReports(sess.Snapshot())
	r.StoreID = scope.StoreID
	return &r, nil
}

// OrderFinancials computes the breakdown of one cached order.
func (i *Insights) OrderFinancials(ctx context.Context, sess *Session, orderID string) (*finance.Breakdown, error) {
	ctx, span := insightsTracer.Start(ctx, "Insights.OrderFinancials")
	defer span.End()

	order, err := Get[domain.Order](sess, orderID)
	if err != nil {
		return nil, err
	}
	rates, err := i.tenants.TaxRates(ctx)
	if err != nil {
		return nil, err
	}
	b := finance.Compute(order, storeRate(rates, order.StoreID))
	return &b, nil
}

// Ledger lists every order of the scope with its derived figures.
func (i *Insights) Ledger(ctx context.Context, sess *Session) ([]domain.LedgerEntry, error) {
	ctx, span := insightsTracer.Start(ctx, "Insights.Ledger")
	defer span.End()

	scope := sess.Scope()
	if err := requireView(scope, access.ModuleAccounting); err != nil {
		return nil, err
	}
	rates, err := i.tenants.TaxRates(ctx)
	if err != nil {
		return nil, err
	}
	return BuildLedger(sess.Snapshot(), rates), nil
}

// SalesView filters the cached orders to one listing.
func SalesView(sess *Session, view domain.SalesView) []domain.Order {
	out := []domain.Order{}
	for _, o := range List[domain.Order](sess) {
		if domain.ViewFor(o.Status) == view {
			out = append(out, o)
		}
	}
	return out
}

func requireView(scope domain.Scope, module access.Module) error {
	if scope.StoreID == "" {
		return &domain.ErrTenantViolation{Operation: "view " + string(module)}
	}
	return access.Require(scope.Role, access.ActionView, access.Scope{StoreID: scope.StoreID, Module: module})
}

func storeRate(rates map[string]float64, storeID string) float64 {
	if r, ok := rates[storeID]; ok {
		return r
	}
	return domain.DefaultSalesTax
}

// ============================================================
// Pure aggregations
// ============================================================

// BuildDashboard counts the collections of s. Upcoming events are those
// still scheduled from the start of now's day onwards.
func BuildDashboard(s workspace.State, now time.Time) domain.Dashboard {
	d := domain.Dashboard{
		Leads:     len(s.Leads),
		Customers: len(s.Customers),
	}
	for _, l := range s.Leads {
		if l.Status == domain.LeadNew {
			d.NewLeads++
		}
	}
	for _, c := range s.Claims {
		if c.Status != domain.ClaimResolved {
			d.OpenClaims++
		}
	}
	for _, o := range s.Orders {
		d.Revenue += o.Amount
		switch o.Status {
		case domain.OrderQuote:
			d.Quotes++
		case domain.OrderProcessing, domain.OrderShipped, domain.OrderInvoiced:
			d.ActiveOrders++
		}
	}
	d.Revenue = finance.RoundCents(d.Revenue)

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for _, e := range s.Planner {
		if e.Status != domain.EventScheduled && e.Status != domain.EventRescheduled {
			continue
		}
		if !e.SortTime().Before(today) {
			d.UpcomingEvents++
		}
	}
	return d
}

// BuildAccounting sums order amounts by status. Estimated tax applies each
// order's effective rate, using its store's default when the order has none.
func BuildAccounting(orders []domain.Order, rates map[string]float64) domain.AccountingStats {
	var st domain.AccountingStats
	for _, o := range orders {
		st.TotalRevenue += o.Amount
		switch o.Status {
		case domain.OrderShipped, domain.OrderInvoiced:
			st.Receivables += o.Amount
		case domain.OrderCompleted:
			st.Completed += o.Amount
		}
		st.EstimatedTax += finance.TaxAmount(o, o.Amount, storeRate(rates, o.StoreID))
	}
	st.TotalRevenue = finance.RoundCents(st.TotalRevenue)
	st.Receivables = finance.RoundCents(st.Receivables)
	st.Completed = finance.RoundCents(st.Completed)
	st.EstimatedTax = finance.RoundCents(st.EstimatedTax)
	return st
}

// BuildReports buckets revenue by creation month and counts lead sources
// and claim statuses.
func BuildReports(s workspace.State) domain.Reports {
	byMonth := map[string]*domain.MonthlyRevenue{}
	for _, o := range s.Orders {
		month := o.CreatedAt.UTC().Format("2006-01")
		m, ok := byMonth[month]
		if !ok {
			m = &domain.MonthlyRevenue{Month: month}
			byMonth[month] = m
		}
		m.Revenue += o.Amount
		m.Orders++
	}
	months := make([]domain.MonthlyRevenue, 0, len(byMonth))
	for _, m := range byMonth {
		m.Revenue = finance.RoundCents(m.Revenue)
		months = append(months, *m)
	}
	sort.Slice(months, func(a, b int) bool { return months[a].Month < months[b].Month })

	sources := map[string]int{}
	for _, l := range s.Leads {
		sources[l.SourceOrDefault()]++
	}

	claims := map[string]int{}
	for _, c := range s.Claims {
		claims[string(c.Status)]++
	}
	claimBuckets := make([]domain.Bucket, 0, 3)
	for _, st := range []domain.ClaimStatus{domain.ClaimOpen, domain.ClaimInProgress, domain.ClaimResolved} {
		claimBuckets = append(claimBuckets, domain.Bucket{Label: string(st), Count: claims[string(st)]})
	}

	return domain.Reports{
		RevenueByMonth: months,
		LeadSources:    buckets(sources),
		ClaimStatuses:  claimBuckets,
	}
}

// BuildLedger derives one ledger entry per order, newest first.
func BuildLedger(s workspace.State, rates map[string]float64) []domain.LedgerEntry {
	names := make(map[string]string, len(s.Customers))
	for _, c := range s.Customers {
		names[c.ID] = c.FullName()
	}

	entries := make([]domain.LedgerEntry, 0, len(s.Orders))
	for _, o := range s.Orders {
		b := finance.Compute(o, storeRate(rates, o.StoreID))
		entries = append(entries, domain.LedgerEntry{
			OrderID:       o.ID,
			StoreID:       o.StoreID,
			CreatedAt:     o.CreatedAt.UTC().Format("2006-01-02"),
			CustomerName:  names[o.CustomerID],
			Status:        string(o.Status),
			View:          domain.ViewFor(o.Status),
			Subtotal:      b.Subtotal,
			TaxRate:       b.EffectiveRate,
			TaxAmount:     b.TaxAmount,
			TotalDue:      b.TotalDue,
			TotalExpenses: b.TotalExpenses,
			NetProfit:     b.NetProfit,
		})
	}
	return entries
}

// buckets orders counts by size, then label.
func buckets(counts map[string]int) []domain.Bucket {
	out := make([]domain.Bucket, 0, len(counts))
	for label, n := range counts {
		out = append(out, domain.Bucket{Label: label, Count: n})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].Label < out[b].Label
	})
	return out
}
