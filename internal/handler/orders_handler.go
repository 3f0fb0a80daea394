package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Lifecycle transitions
// ============================================================

func convertLeadHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		conv, err := svc.Lifecycle.ConvertLead(r.Context(), sess, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, conv)
	}
}

func convertQuoteHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		order, err := svc.Lifecycle.ConvertQuote(r.Context(), sess, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

type advanceOrderRequest struct {
	Status         domain.OrderStatus `json:"status"`
	TrackingNumber string             `json:"trackingNumber,omitempty"`
}

func advanceOrderHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req advanceOrderRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if !req.Status.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown order status %q", req.Status))
			return
		}
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		order, err := svc.Lifecycle.AdvanceOrder(r.Context(), sess, chi.URLParam(r, "id"), req.Status, req.TrackingNumber)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func orderFinancialsHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		breakdown, err := svc.Insights.OrderFinancials(r.Context(), sess, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, breakdown)
	}
}

func salesViewHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := domain.SalesView(chi.URLParam(r, "view"))
		switch view {
		case domain.ViewQuotes, domain.ViewOrders, domain.ViewInvoices:
		default:
			writeError(w, http.StatusBadRequest, "view must be quotes, orders or invoices")
			return
		}
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		rows := service.SalesView(sess, view)
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Order]{
			Data:    rows,
			Total:   len(rows),
			StoreID: sess.Scope().StoreID,
		})
	}
}

// ============================================================
// Attachments
// ============================================================

// maxUploadMemory bounds the multipart parser; larger parts spill to disk.
const maxUploadMemory = 8 << 20

type attachmentResponse struct {
	Order      *domain.Order      `json:"order"`
	Attachment *domain.Attachment `json:"attachment"`
}

// uploadAttachmentHandler accepts multipart/form-data with a "file" part
// and the order's current "version".
func uploadAttachmentHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, service.MaxAttachmentSize+(1<<20))
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		version, err := strconv.Atoi(r.FormValue("version"))
		if err != nil || version <= 0 {
			writeError(w, http.StatusBadRequest, "version is required")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file part is required")
			return
		}
		defer file.Close()

		body, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read file part")
			return
		}

		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = http.DetectContentType(body)
		}
		order, att, err := svc.Attachments.Upload(r.Context(), sess, chi.URLParam(r, "id"), version, header.Filename, mimeType, body)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, attachmentResponse{Order: order, Attachment: att})
	}
}

func downloadAttachmentHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		att, body, err := svc.Attachments.Download(r.Context(), sess, chi.URLParam(r, "id"), chi.URLParam(r, "attachmentId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.Header().Set("Content-Type", att.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Name))
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// removeAttachmentHandler expects ?version=N, the order's current version.
func removeAttachmentHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := queryInt(r, "version", 0)
		if version <= 0 {
			writeError(w, http.StatusBadRequest, "version is required")
			return
		}
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		order, err := svc.Attachments.Remove(r.Context(), sess, chi.URLParam(r, "id"), chi.URLParam(r, "attachmentId"), version)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}
