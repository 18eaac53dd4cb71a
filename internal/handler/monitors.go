package handler

import (
	"net/http"

	"github.com/web3-frozen/token-insight/internal/monitor"
)

type StatusSource interface {
	Statuses() []monitor.Status
}

// Monitors serves GET /api/monitors.
func Monitors(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		st := []monitor.Status{}
		if src != nil {
			st = append(st, src.Statuses()...)
		}
		writeJSON(w, http.StatusOK, st)
	}
}
