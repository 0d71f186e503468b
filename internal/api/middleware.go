package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/huyndo/tpcn-advisor/internal/common"
)

const requestIDHeader = "X-Request-ID"

// requestLogger tags each request with an id, echoes it back, and emits one
// debug line after the handler returns.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r)
		common.Logger().Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"dur", time.Since(start),
			"remote", r.RemoteAddr,
			"request_id", requestID,
		)
	})
}

// corsHandler mirrors the permissive policy the storefront widget relies
// on: any origin may call the advisor endpoints.
func corsHandler() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	})
}
