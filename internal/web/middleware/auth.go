package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/osm-versailles/internal/logging"
)

// APIKeyHeader carries the key checked by Authentication.
const APIKeyHeader = "X-API-Key"

// Authentication rejects requests whose X-API-Key header does not match
// apiKey. An empty apiKey lets every request through.
func Authentication(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
				logging.FromContext(r.Context()).Warn().
					Bool("key_present", got != "").
					Msg("unauthorized access")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
