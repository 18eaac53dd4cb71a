package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/web3-frozen/token-insight/internal/aggregator"
	"github.com/web3-frozen/token-insight/internal/analysis"
	"github.com/web3-frozen/token-insight/internal/sources"
)

type ReportGenerator interface {
	Generate(ctx context.Context, req analysis.Request) (*aggregator.Report, error)
}

type ReportSaver interface {
	SaveReport(ctx context.Context, r *aggregator.Report) (int64, error)
}

// Analyze serves POST /api/analysis. The report is returned even when it
// cannot be saved. A nil saver disables history.
func Analyze(gen ReportGenerator, saver ReportSaver, timeout time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analysis.Request
		if errs := decodeAndValidate(r, w, &req); errs != nil {
			writeValidation(w, errs)
			return
		}
		if req.Chain == "solana" && req.TokenAddress != "" && !sources.ValidMint(req.TokenAddress) {
			writeValidation(w, []ValidationError{{
				Code:    "ERR_MINT",
				Field:   "token_address",
				Message: "token_address is not a valid Solana address",
			}})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		report, err := gen.Generate(ctx, req)
		if err != nil {
			status, msg := analysisErrorStatus(err)
			logger.Warn("analysis failed", "subject", req.Subject(), "status", status, "error", err)
			writeError(w, status, msg)
			return
		}

		if saver != nil && !report.Metadata.Cached {
			if _, err := saver.SaveReport(r.Context(), report); err != nil {
				logger.Error("save report", "subject", report.Subject, "error", err)
			}
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func analysisErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, aggregator.ErrAllDomainsUnavailable):
		return http.StatusBadGateway, "all data sources are unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "analysis timed out"
	case errors.Is(err, analysis.ErrCancelled):
		return http.StatusServiceUnavailable, "analysis cancelled"
	}
	return http.StatusInternalServerError, "analysis failed"
}
