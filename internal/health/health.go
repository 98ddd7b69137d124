// Package health serves liveness and readiness probes for the browser form.
//
// /healthz answers 200 while the process can serve HTTP. /readyz answers 200
// only when every registered Checker passes; the JSON body names each check.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const checkTimeout = 5 * time.Second

// Checker probes one dependency: the speech backend, the record store, and so on.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Status is the outcome of one Checker.
type Status struct {
	Name string
	Err  error
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler evaluates a fixed checker list on every readiness request.
type Handler struct {
	checkers []Checker
}

func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Evaluate runs every checker in order, each under its own deadline.
func Evaluate(ctx context.Context, checkers []Checker) []Status {
	out := make([]Status, 0, len(checkers))
	for _, c := range checkers {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(cctx)
		cancel()
		out = append(out, Status{Name: c.Name, Err: err})
	}
	return out
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res := result{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK

	for _, s := range Evaluate(r.Context(), h.checkers) {
		if s.Err != nil {
			res.Checks[s.Name] = "fail: " + s.Err.Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks[s.Name] = "ok"
	}
	writeJSON(w, status, res)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
