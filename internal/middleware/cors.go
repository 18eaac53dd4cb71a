package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// CORS allows the configured origins. An entry of "*" allows any origin;
// an entry starting with "*." allows that domain's subdomains.
func CORS(origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqOrigin := r.Header.Get("Origin")
			if reqOrigin != "" && isAllowed(reqOrigin, origins) {
				w.Header().Set("Access-Control-Allow-Origin", reqOrigin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isAllowed(reqOrigin string, origins []string) bool {
	if slices.Contains(origins, "*") || slices.Contains(origins, reqOrigin) {
		return true
	}
	_, host, ok := strings.Cut(reqOrigin, "://")
	if !ok {
		return false
	}
	for _, o := range origins {
		if suffix, wild := strings.CutPrefix(o, "*."); wild && strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
