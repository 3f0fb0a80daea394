package handler

import (
	"net/http"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// storeOf picks one kind's EntityStore from the bundle.
type storeOf[T domain.Entity] func(*service.Stores) *service.EntityStore[T]

func leadsOf(s *service.Stores) *service.EntityStore[domain.Lead]         { return s.Leads }
func customersOf(s *service.Stores) *service.EntityStore[domain.Customer] { return s.Customers }
func claimsOf(s *service.Stores) *service.EntityStore[domain.Claim]       { return s.Claims }
func ordersOf(s *service.Stores) *service.EntityStore[domain.Order]       { return s.Orders }
func plannerOf(s *service.Stores) *service.EntityStore[domain.PlannerEvent] {
	return s.Planner
}
func inventoryOf(s *service.Stores) *service.EntityStore[domain.InventoryItem] {
	return s.Inventory
}

// updateRequest is the body of PATCH /v1/{kind}/{id}.
type updateRequest struct {
	Version int          `json:"version"`
	Patch   domain.Patch `json:"patch"`
}

// mountEntity registers the CRUD routes of one kind under path. extra adds
// kind-specific routes to the same subrouter.
func mountEntity[T domain.Entity, D domain.Draft[T]](r chi.Router, path string, pick storeOf[T], svc Services, logger *zap.Logger, extra func(chi.Router)) {
	r.Route(path, func(r chi.Router) {
		r.Get("/", listHandler(svc, logger, pick))
		r.Post("/", createHandler[T, D](svc, pick, logger))
		r.Get("/{id}", getHandler(svc, logger, pick))
		r.Patch("/{id}", updateHandler(svc, logger, pick))
		r.Delete("/{id}", deleteHandler(svc, logger, pick))
		if extra != nil {
			extra(r)
		}
	})
}

// openSession resolves the caller's tenant context and returns the loaded
// session. On failure the error response has been written.
func openSession(w http.ResponseWriter, r *http.Request, svc Services, logger *zap.Logger) (*service.Session, *service.ActorContext, bool) {
	ctx, span := tracer.Start(r.Context(), "handler.openSession")
	defer span.End()

	req := contextRequest(r)
	span.SetAttributes(attribute.String("host", req.Host), attribute.String("subject", req.Subject))

	sess, actx, err := svc.Sessions.Open(ctx, req)
	if err != nil {
		handleServiceError(w, err, logger)
		return nil, nil, false
	}
	return sess, actx, true
}

func listHandler[T domain.Entity](svc Services, logger *zap.Logger, _ storeOf[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		rows := service.List[T](sess)
		writeJSON(w, http.StatusOK, domain.ListResponse[T]{
			Data:    rows,
			Total:   len(rows),
			StoreID: sess.Scope().StoreID,
		})
	}
}

func createHandler[T domain.Entity, D domain.Draft[T]](svc Services, pick storeOf[T], logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft D
		if !decodeJSON(w, r, &draft) {
			return
		}
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		created, err := service.Create[T](r.Context(), sess, pick(svc.Sessions.Stores()), draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func getHandler[T domain.Entity](svc Services, logger *zap.Logger, _ storeOf[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		row, err := service.Get[T](sess, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

func updateHandler[T domain.Entity](svc Services, logger *zap.Logger, pick storeOf[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Version <= 0 {
			writeError(w, http.StatusBadRequest, "version is required")
			return
		}
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		updated, err := service.Update[T](r.Context(), sess, pick(svc.Sessions.Stores()), chi.URLParam(r, "id"), req.Version, req.Patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteHandler[T domain.Entity](svc Services, logger *zap.Logger, pick storeOf[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		if err := service.Delete[T](r.Context(), sess, pick(svc.Sessions.Stores()), chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Tenant context
// ============================================================

func contextHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, actx, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, actx)
	}
}

// reloadHandler refetches every kind of the current context.
func reloadHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, actx, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		if err := sess.Load(r.Context()); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, actx)
	}
}
