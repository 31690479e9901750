package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

// RequireBearer rejects requests without a non-empty bearer token. Tokens
// are not validated.
func RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, _ := strings.Cut(r.Header.Get("Authorization"), " ")
		if !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="mirage"`)
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{
					"code":    "InvalidAuthenticationToken",
					"message": "Access token is empty.",
				},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
