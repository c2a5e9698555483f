package server

import (
	"net/http"
	"strings"

	"github.com/rastreador/premium-backend/internal/entitlement"
)

// AdminKeyMiddleware returns middleware that requires a valid admin API key.
// With no key configured every request is refused.
func AdminKeyMiddleware(adminKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get("X-Admin-Key"))
		if key == "" {
			// Also check Authorization: Bearer <key>
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}

		if adminKey == "" || key == "" || key != adminKey {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HandleListEntitlements returns an authenticated handler that lists all
// entitlement records.
func HandleListEntitlements(store *entitlement.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}

		records, err := store.List()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}
		if records == nil {
			records = []*entitlement.Record{}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"entitlements": records,
			"count":        len(records),
		})
	}
}
