package server

import (
	"net/http"

	"github.com/rastreador/premium-backend/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware stamps each request with an ID for log correlation.
// An ID supplied by a fronting proxy is honored; otherwise one is generated.
// The ID is stored on the request context and echoed in the response header.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, requestID := logging.WithRequestID(r.Context(), r.Header.Get(requestIDHeader))
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
