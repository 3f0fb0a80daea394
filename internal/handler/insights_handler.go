package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/export"

	"go.uber.org/zap"
)

func dashboardHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		dash, err := svc.Insights.Dashboard(r.Context(), sess)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, dash)
	}
}

func accountingHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		stats, err := svc.Insights.Accounting(r.Context(), sess)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func reportsHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		reports, err := svc.Insights.Reports(r.Context(), sess)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, reports)
	}
}

func ledgerHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		entries, err := svc.Insights.Ledger(r.Context(), sess)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func ledgerExportHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, ok := openSession(w, r, svc, logger)
		if !ok {
			return
		}
		entries, err := svc.Insights.Ledger(r.Context(), sess)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		body, err := export.LedgerXLSX(entries)
		if err != nil {
			logger.Error("ledger export failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not render ledger")
			return
		}
		name := fmt.Sprintf("ledger-%s-%s.xlsx", sess.Scope().StoreID, time.Now().UTC().Format("20060102"))
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}
