// Package server exposes the stager's ops endpoints: liveness, readiness,
// loop status, recent batches, dead letters and Prometheus metrics.
package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/telhawk-systems/telhawk-cdc/common/httputil"
	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/dlq"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/ingest"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/ledger"
)

// StatusSource reports the ingestion loop state.
type StatusSource interface {
	Status() ingest.Status
	Running() bool
}

// DeadLetters lists dead-lettered envelopes.
type DeadLetters interface {
	List(limit int) ([]dlq.FailedMessage, error)
}

// BatchHistory lists staged batches recorded in the ledger.
type BatchHistory interface {
	Tables(ctx context.Context) ([]string, error)
	Recent(ctx context.Context, table string, limit int64) ([]ledger.Entry, error)
}

// Handler serves the ops endpoints.
type Handler struct {
	loop         StatusSource
	checks       map[string]messaging.HealthChecker
	deadLetters  DeadLetters
	history      BatchHistory
	checkTimeout time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithCheck adds a dependency that must be healthy for /readyz.
func WithCheck(name string, checker messaging.HealthChecker) Option {
	return func(h *Handler) { h.checks[name] = checker }
}

// WithDeadLetters enables /dlq.
func WithDeadLetters(d DeadLetters) Option {
	return func(h *Handler) { h.deadLetters = d }
}

// WithHistory enables /batches.
func WithHistory(b BatchHistory) Option {
	return func(h *Handler) { h.history = b }
}

// WithCheckTimeout bounds each readiness check. Default 2s.
func WithCheckTimeout(d time.Duration) Option {
	return func(h *Handler) { h.checkTimeout = d }
}

// NewHandler creates a Handler for loop.
func NewHandler(loop StatusSource, opts ...Option) *Handler {
	h := &Handler{
		loop:         loop,
		checks:       make(map[string]messaging.HealthChecker),
		checkTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready reports 200 while the loop is consuming and every dependency answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]messaging.HealthStatus, len(h.checks))
	ready := h.loop.Running()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st := messaging.CheckHealth(r.Context(), h.checks[name], h.checkTimeout)
		checks[name] = st
		if !st.Connected {
			ready = false
		}
	}

	status := http.StatusOK
	body := map[string]interface{}{
		"status": "ready",
		"state":  h.loop.Status().State,
		"checks": checks,
	}
	if !ready {
		status = http.StatusServiceUnavailable
		body["status"] = "not ready"
	}
	httputil.WriteJSON(w, status, body)
}

// Status returns the loop snapshot.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if httputil.MethodNotAllowed(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.loop.Status())
}

// DeadLetters lists dead letters. Query: limit (default 20, max 500).
func (h *Handler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	if httputil.MethodNotAllowed(w, r, http.MethodGet) {
		return
	}
	if h.deadLetters == nil {
		httputil.WriteError(w, http.StatusNotFound, "dead letter queue not enabled")
		return
	}

	msgs, err := h.deadLetters.List(httputil.ParseLimit(r, 20, 500))
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []dlq.FailedMessage{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(msgs),
		"messages": msgs,
	})
}

// Batches lists ledger tables, or the newest batches of ?table=.
func (h *Handler) Batches(w http.ResponseWriter, r *http.Request) {
	if httputil.MethodNotAllowed(w, r, http.MethodGet) {
		return
	}
	if h.history == nil {
		httputil.WriteError(w, http.StatusNotFound, "batch ledger not enabled")
		return
	}

	table := r.URL.Query().Get("table")
	if table == "" {
		tables, err := h.history.Tables(r.Context())
		if err != nil {
			httputil.WriteError(w, http.StatusBadGateway, err.Error())
			return
		}
		sort.Strings(tables)
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"tables": tables})
		return
	}

	entries, err := h.history.Recent(r.Context(), table, int64(httputil.ParseLimit(r, 20, 1000)))
	if err != nil {
		httputil.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"table":   table,
		"batches": entries,
	})
}
