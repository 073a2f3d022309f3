package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crashgate-systems/crashgate/common/middleware"
	"github.com/crashgate-systems/crashgate/internal/handlers"
)

// NewRouter constructs a ServeMux with the submission API routes
// registered. SDKs post with and without a trailing slash.
func NewRouter(h *handlers.IngestHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/{project_id}/store/{$}", h.HandleStore)
	mux.HandleFunc("POST /api/{project_id}/store", h.HandleStore)
	mux.HandleFunc("POST /api/{project_id}/envelope/{$}", h.HandleEnvelope)
	mux.HandleFunc("POST /api/{project_id}/envelope", h.HandleEnvelope)
	mux.HandleFunc("POST /api/{project_id}/security/{$}", h.HandleSecurity)
	mux.HandleFunc("POST /api/{project_id}/security", h.HandleSecurity)

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(middleware.IngestCORS(mux))
}
