package api

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vrptw/internal/instance"
	"vrptw/internal/model"
	"vrptw/internal/solver"
	"vrptw/internal/vrptw"
)

// SolveHandler handles POST /v1/solve.
//
// The body is either a JSON model.SolveRequest or, with Content-Type
// text/plain, a Solomon instance. Query parameters solver, customers, async,
// timeLimitSec and callbackUrl override the body. A synchronous solve answers
// 200 with the finished run, including infeasible outcomes; async=true answers
// 202 and leaves the run to the worker pool.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pr, ok := s.principal(w, r)
	if !ok {
		return
	}
	if !pr.CanSolve() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "solver or admin role required", r.URL.Path)
		return
	}

	sr, inst, err := s.decodeSolve(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
		return
	}
	if limit := s.Config.Solver.MaxCustomers; limit > 0 && inst.Len()-1 > limit {
		writeProblem(w, http.StatusBadRequest, "Instance too large",
			fmt.Sprintf("%d customers exceed the limit of %d; pass customers=%d to truncate", inst.Len()-1, limit, limit), r.URL.Path)
		return
	}

	req := vrptw.Request{
		Solver:    sr.Solver,
		Options:   s.Config.Solver.Options,
		TightBigM: sr.TightBigM || s.Config.Solver.TightBigM,
	}
	if sr.TimeLimitS > 0 {
		req.Options.TimeLimit = time.Duration(sr.TimeLimitS * float64(time.Second))
	}
	run := model.Run{
		TenantID:    pr.Tenant,
		Instance:    inst.Name(),
		Customers:   inst.Len() - 1,
		Solver:      sr.Solver,
		State:       model.RunQueued,
		CallbackURL: sr.CallbackURL,
	}

	if sr.Async {
		if !solver.Available(sr.Solver, req.Options) {
			writeProblem(w, http.StatusServiceUnavailable, "Solver unavailable", fmt.Sprintf("solver %q is not installed", sr.Solver), r.URL.Path)
			return
		}
		run, err = s.Store.CreateRun(r.Context(), run)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.publish(run, model.EventRunQueued)
		if !s.enqueue(job{run: run, inst: inst, req: req}) {
			s.fail(r.Context(), run, "solve queue full")
			w.Header().Set("Retry-After", "5")
			writeProblem(w, http.StatusServiceUnavailable, "Queue full", "too many queued solves", r.URL.Path)
			return
		}
		w.Header().Set("Location", "/v1/runs/"+run.ID)
		writeJSON(w, http.StatusAccepted, run)
		return
	}

	run, err = s.Store.CreateRun(r.Context(), run)
	if err != nil {
		writeError(w, r, err)
		return
	}
	run, err = s.execute(r.Context(), job{run: run, inst: inst, req: req})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/runs/"+run.ID)
	writeJSON(w, http.StatusOK, run)
}

// decodeSolve reads the instance and solve options from the request.
func (s *Server) decodeSolve(r *http.Request) (model.SolveRequest, *instance.Instance, error) {
	var sr model.SolveRequest
	var inst *instance.Instance
	body := http.MaxBytesReader(nil, r.Body, maxBody)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "text/plain":
		in, err := instance.ParseSolomon(body, instance.DefaultParseOptions)
		if err != nil {
			return sr, nil, err
		}
		inst = in
	case "", "application/json":
		dec := json.NewDecoder(body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&sr); err != nil {
			return sr, nil, fmt.Errorf("invalid JSON: %w", err)
		}
		in, err := instance.New(sr.Instance)
		if err != nil {
			return sr, nil, err
		}
		inst = in
	default:
		return sr, nil, fmt.Errorf("unsupported content type %q", ct)
	}

	q := r.URL.Query()
	if v := q.Get("solver"); v != "" {
		sr.Solver = v
	}
	if v := q.Get("callbackUrl"); v != "" {
		sr.CallbackURL = v
	}
	if v := q.Get("async"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return sr, nil, fmt.Errorf("async must be a boolean")
		}
		sr.Async = b
	}
	if v := q.Get("timeLimitSec"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return sr, nil, fmt.Errorf("timeLimitSec must be a number")
		}
		sr.TimeLimitS = f
	}
	n, err := queryInt(r, "customers", sr.Customers)
	if err != nil {
		return sr, nil, err
	}
	sr.Customers = n
	if sr.Solver == "" {
		sr.Solver = s.Config.Solver.Default
	}
	if err := validateSolveRequest(&sr); err != nil {
		return sr, nil, err
	}

	inst, err = inst.Truncate(sr.Customers)
	if err != nil {
		return sr, nil, err
	}
	if inst.Len() < 2 {
		return sr, nil, fmt.Errorf("%w: instance has no customers", instance.ErrInvalidInstance)
	}
	return sr, inst, nil
}

// RunsHandler handles GET /v1/runs.
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/runs" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pr, ok := s.principal(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
		return
	}
	items, next, err := s.Store.ListRuns(r.Context(), pr.Tenant, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	if items == nil {
		items = []model.Run{}
	}
	writeJSON(w, http.StatusOK, model.RunPage{Items: items, NextCursor: next})
}

// RunByIDHandler handles GET /v1/runs/{id} and the SSE stream GET /v1/runs/{id}/events.
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pr, ok := s.principal(w, r)
	if !ok {
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		run, err := s.Store.GetRun(r.Context(), pr.Tenant, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	case len(parts) == 2 && parts[1] == "events":
		s.streamRun(w, r, pr.Tenant, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

// SolversHandler handles GET /v1/solvers.
func (s *Server) SolversHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	names := solver.Names()
	out := make([]model.SolverInfo, 0, len(names))
	for _, name := range names {
		out = append(out, model.SolverInfo{
			Name:      name,
			Available: solver.Available(name, s.Config.Solver.Options),
			Default:   strings.EqualFold(name, s.Config.Solver.Default),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler checks the store and, when it supports it, the event broker.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	type pinger interface{ Ping(ctx context.Context) error }
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", "store: "+err.Error(), r.URL.Path)
		return
	}
	if p, ok := s.Broker.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", "broker: "+err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
