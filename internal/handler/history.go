package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/web3-frozen/token-insight/internal/store"
)

type ReportLister interface {
	ListReports(ctx context.Context, subject string, limit int) ([]store.StoredReport, error)
}

type AlertLister interface {
	ListAlerts(ctx context.Context, symbol string, limit int) ([]store.StoredAlert, error)
}

type listQuery struct {
	Filter string `json:"filter" validate:"max=128"`
	Limit  int    `json:"limit" default:"20" validate:"gte=1,lte=100"`
}

func parseListQuery(r *http.Request, filterParam string) (listQuery, []ValidationError) {
	q := listQuery{Filter: r.URL.Query().Get(filterParam)}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, []ValidationError{{Code: "ERR_NUMBER", Field: "limit", Message: "limit must be an integer"}}
		}
		q.Limit = n
	}
	if errs := validateStruct(r, &q); errs != nil {
		for i := range errs {
			if errs[i].Field == "filter" {
				errs[i].Field = filterParam
			}
		}
		return q, errs
	}
	return q, nil
}

// ListReports serves GET /api/reports?subject=&limit=.
func ListReports(l ReportLister, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, errs := parseListQuery(r, "subject")
		if errs != nil {
			writeValidation(w, errs)
			return
		}
		reports, err := l.ListReports(r.Context(), q.Filter, q.Limit)
		if err != nil {
			logger.Error("list reports", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list reports")
			return
		}
		if reports == nil {
			reports = []store.StoredReport{}
		}
		writeJSON(w, http.StatusOK, reports)
	}
}

// ListAlerts serves GET /api/alerts?symbol=&limit=.
func ListAlerts(l AlertLister, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, errs := parseListQuery(r, "symbol")
		if errs != nil {
			writeValidation(w, errs)
			return
		}
		alerts, err := l.ListAlerts(r.Context(), q.Filter, q.Limit)
		if err != nil {
			logger.Error("list alerts", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list alerts")
			return
		}
		if alerts == nil {
			alerts = []store.StoredAlert{}
		}
		writeJSON(w, http.StatusOK, alerts)
	}
}
