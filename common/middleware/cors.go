package middleware

import (
	"net/http"
	"strings"
)

// Browser SDKs submit events cross-origin, so the ingest endpoints must
// answer preflight requests and allow any origin. The SDK authenticates with
// the DSN key, not cookies, so credentials are never allowed.
var ingestAllowedHeaders = strings.Join([]string{
	"Content-Type",
	"Content-Encoding",
	"Authorization",
	"X-Sentry-Auth",
	"X-Crashgate-Auth",
	"X-Request-ID",
}, ", ")

// IngestCORS returns a middleware that applies the permissive CORS policy
// required by in-browser SDK clients posting events to the ingest API.
func IngestCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", ingestAllowedHeaders)
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
