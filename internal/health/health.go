// Package health serves the liveness and readiness endpoints for the run
// service.
//
//   - /healthz answers 200 as long as the process can serve HTTP.
//   - /readyz answers 200 only once every registered [Checker] passes, which
//     for scramblecast means the run store is established and the clip
//     directory is writable.
//
// Both respond with a JSON body carrying a top-level "status" ("ok" or
// "fail") and, for readiness, a "checks" map with one entry per checker.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check. A store that cannot answer
// within this window is reported as failing rather than blocking the probe.
const checkTimeout = 5 * time.Second

// Checker is one named readiness dependency.
type Checker struct {
	// Name keys the check in the JSON response, e.g. "store" or "audio_dir".
	Name string

	// Check returns nil when the dependency is usable. It must respect
	// context cancellation.
	Check func(ctx context.Context) error
}

// result is the response body shared by both endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler evaluates a fixed set of checkers. Safe for concurrent requests.
type Handler struct {
	checkers []Checker
}

// New copies the given checkers into a [Handler]. They run sequentially on
// every /readyz request, in the order given.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always reports ok: a process answering this request is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, result{Status: "ok"})
}

// Readyz runs every checker and reports 503 when any of them fails, so a
// scheduler or load balancer holds traffic until the store gate opens.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	ready := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			ready = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !ready {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeStatus(w, status, res)
}

// Register adds both routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
