package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/telhawk-cdc/common/middleware"
)

// NewRouter constructs a ServeMux with the ops routes registered.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Loop introspection
	mux.HandleFunc("/status", h.Status)
	mux.HandleFunc("/batches", h.Batches)
	mux.HandleFunc("/dlq", h.DeadLetters)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(middleware.AccessLog(logger)(mux))
}
