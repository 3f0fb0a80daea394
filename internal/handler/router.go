package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/observability"
	"github.com/kitchenunity/cabinet-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles what the handlers call into.
type Services struct {
	Auth        *service.AuthService
	Sessions    *service.Sessions
	Lifecycle   *service.Lifecycle
	Stores      *service.StoreService
	Capture     *service.LeadCapture
	Insights    *service.Insights
	Attachments *service.Attachments
	// Ready probes the store of record. Nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.AccessLog(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", selectedStoreHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Ready))
	r.Get("/readyz", readyzHandler(svc.Ready, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- Inbound webhooks (token checked per store) ---
	r.Post("/hooks/forminator", forminatorHandler(svc.Capture, logger))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JWTAuthMiddleware(svc.Auth, logger))

		// =============================================
		// Tenant context
		// GET  /v1/context
		// POST /v1/context/reload
		// =============================================
		r.Get("/context", contextHandler(svc, logger))
		r.Post("/context/reload", reloadHandler(svc, logger))

		// =============================================
		// Entities
		// GET/POST /v1/{kind}, GET/PATCH/DELETE /v1/{kind}/{id}
		// =============================================
		mountEntity[domain.Lead, domain.LeadDraft](r, "/leads", leadsOf, svc, logger, func(r chi.Router) {
			r.Post("/{id}/convert", convertLeadHandler(svc, logger))
		})
		mountEntity[domain.Customer, domain.CustomerDraft](r, "/customers", customersOf, svc, logger, func(r chi.Router) {
			r.Post("/quick", createHandler[domain.Customer, domain.QuickCustomerDraft](svc, customersOf, logger))
		})
		mountEntity[domain.Claim, domain.ClaimDraft](r, "/claims", claimsOf, svc, logger, nil)
		mountEntity[domain.Order, domain.OrderDraft](r, "/orders", ordersOf, svc, logger, func(r chi.Router) {
			r.Post("/{id}/convert", convertQuoteHandler(svc, logger))
			r.Post("/{id}/status", advanceOrderHandler(svc, logger))
			r.Get("/{id}/financials", orderFinancialsHandler(svc, logger))
			r.Post("/{id}/attachments", uploadAttachmentHandler(svc, logger))
			r.Get("/{id}/attachments/{attachmentId}", downloadAttachmentHandler(svc, logger))
			r.Delete("/{id}/attachments/{attachmentId}", removeAttachmentHandler(svc, logger))
		})
		mountEntity[domain.InventoryItem, domain.InventoryDraft](r, "/inventory", inventoryOf, svc, logger, nil)
		mountEntity[domain.PlannerEvent, domain.PlannerDraft](r, "/planner", plannerOf, svc, logger, nil)

		// =============================================
		// Sales views
		// GET /v1/sales/{view}  (quotes | orders | invoices)
		// =============================================
		r.Get("/sales/{view}", salesViewHandler(svc, logger))

		// =============================================
		// Insights
		// =============================================
		r.Get("/insights/dashboard", dashboardHandler(svc, logger))
		r.Get("/insights/accounting", accountingHandler(svc, logger))
		r.Get("/insights/reports", reportsHandler(svc, logger))
		r.Get("/ledger", ledgerHandler(svc, logger))
		r.Get("/ledger.xlsx", ledgerExportHandler(svc, logger))

		// =============================================
		// Stores (super admin)
		// =============================================
		r.Get("/stores", listStoresHandler(svc, logger))
		r.Post("/stores", createStoreHandler(svc, logger))
		r.Patch("/stores/{id}", updateStoreHandler(svc, logger))

		// =============================================
		// Operations
		// =============================================
		r.Get("/admin/ops", opsHandler(svc, metrics, logger))
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(ready func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)
		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LastChecked: now},
		}

		if ready != nil {
			start := time.Now()
			err := ready(r.Context())
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "store-of-record", Status: status,
				LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = s.Status
			}
		}
		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler(ready func(context.Context) error, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				logger.Warn("readiness probe failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func opsHandler(svc Services, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, actx, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		if actx.Role != domain.RoleAdmin {
			handleServiceError(w, &domain.ErrForbidden{Action: "view operations"}, logger)
			return
		}
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
