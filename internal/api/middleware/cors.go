// Package middleware holds the emulator's own HTTP middleware. The chi
// middleware package covers request ids, logging, recovery and timeouts.
package middleware

import (
	"net/http"
)

// CORS allows browser clients from any origin and answers preflight
// requests directly
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Content-Range, Content-Length")
		h.Set("Access-Control-Expose-Headers", "request-id, Location")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
