package handler

import (
	"net/http"
	"strings"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Store directory
// ============================================================

func listStoresHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, actx, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		stores, err := svc.Stores.List(r.Context(), actx.Scope)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Store]{
			Data:    stores,
			Total:   len(stores),
			StoreID: actx.Scope.StoreID,
		})
	}
}

func createStoreHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft domain.StoreDraft
		if !decodeJSON(w, r, &draft) {
			return
		}
		_, actx, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		store, err := svc.Stores.Create(r.Context(), actx.Scope, draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, store)
	}
}

func updateStoreHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var settings domain.StoreSettings
		if !decodeJSON(w, r, &settings) {
			return
		}
		_, actx, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		store, err := svc.Stores.UpdateSettings(r.Context(), actx.Scope, chi.URLParam(r, "id"), settings)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, store)
	}
}

// ============================================================
// Lead capture webhook
// ============================================================

// forminatorHandler receives form posts from the WordPress plugin. The
// body is JSON; url-encoded posts with the same field names also work.
func forminatorHandler(capture *service.LeadCapture, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID := strings.TrimSpace(r.URL.Query().Get("storeId"))
		if storeID == "" {
			writeError(w, http.StatusBadRequest, "storeId is required")
			return
		}

		var sub domain.FormSubmission
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
			if err := r.ParseForm(); err != nil {
				writeError(w, http.StatusBadRequest, "invalid form body")
				return
			}
			sub = domain.FormSubmission{
				FirstName: r.PostForm.Get("name-1"),
				LastName:  r.PostForm.Get("name-2"),
				Email:     r.PostForm.Get("email-1"),
				Phone:     r.PostForm.Get("phone-1"),
				Message:   r.PostForm.Get("textarea-1"),
			}
		} else if !decodeJSON(w, r, &sub) {
			return
		}

		lead, err := capture.Capture(r.Context(), storeID, r.URL.Query().Get("token"), domain.FormSourceForminator, sub)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, domain.SuccessResponse{Message: "lead captured", ID: lead.ID})
	}
}
