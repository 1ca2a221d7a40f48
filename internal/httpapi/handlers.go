package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/powerage/scramblecast/internal/runner"
	"github.com/powerage/scramblecast/internal/store"
)

// maxListLimit caps the ?limit= parameter; the dashboard never needs more.
const maxListLimit = 500

type errorBody struct {
	Error string `json:"error"`
}

type enqueuedBody struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// handleTriggerRun enqueues a manual run. Returns 202 with the new run id; the
// pipeline itself finishes asynchronously on the queue worker.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	id, err := s.svc.EnqueueRun(r.Context(), runner.SourceManual)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, enqueuedBody{ID: id, Status: string(store.StatusQueued)})
}

// handleRetryRun enqueues an analysis-only retry for an existing run.
func (s *Server) handleRetryRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.RetryRun(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, enqueuedBody{ID: id, Status: string(store.StatusQueued)})
}

// handleListRuns returns stored runs newest-first. ?limit=N bounds the page;
// zero or absent falls back to the store default.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	st, err := s.gate.Store()
	if err != nil {
		writeError(w, err)
		return
	}
	runs, err := st.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleGetRun returns a single run by id.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	st, err := s.gate.Store()
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := st.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// writeError maps the service and store error taxonomy to HTTP statuses:
// not-ready is retriable (503), unknown run is 404, a retry without a stored
// transcript is a conflict (409), anything else a 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotReady):
		status = http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, runner.ErrNoTranscript):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func servePage(page []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	}
}
