// Package solver hands a milp.Model to an external MILP solver and reports
// what it found. Backends run installed solver binaries; nothing here solves
// the model itself.
package solver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"vrptw/internal/milp"
)

// ErrSolverUnavailable means the named solver could not be run: unknown name,
// missing binary, crash, or no readable solution output.
var ErrSolverUnavailable = errors.New("solver unavailable")

// Status is the terminal outcome reported by a solver run.
type Status string

const (
	// Optimal: proven optimal solution.
	Optimal Status = "optimal"
	// Feasible: an incumbent exists but optimality was not proven (limit hit).
	Feasible Status = "feasible"
	// Infeasible: the model has no feasible solution.
	Infeasible Status = "infeasible"
	// Unbounded: the objective is unbounded (or infeasible-or-unbounded without a primal point).
	Unbounded Status = "unbounded"
	// NoSolution: a limit stopped the run before any incumbent was found.
	NoSolution Status = "no_solution"
)

// HasSolution reports whether a variable assignment accompanies the status.
func (s Status) HasSolution() bool { return s == Optimal || s == Feasible }

// Result is what a solve produced. Values is indexed by model variable index
// and is nil unless Status.HasSolution().
type Result struct {
	Solver    string        `json:"solver"`
	Status    Status        `json:"status"`
	Objective float64       `json:"objective"`
	Values    []float64     `json:"-"`
	Elapsed   time.Duration `json:"elapsed"`
	// Log is the tail of the solver's console output.
	Log string `json:"-"`
}

// Options are passed through to the external solver. Zero values keep the solver's defaults;
// in particular no time limit is imposed unless TimeLimit is set.
type Options struct {
	TimeLimit time.Duration `yaml:"timeLimit"`
	// Gap is the relative MIP gap at which the solver may stop.
	Gap     float64 `yaml:"gap"`
	Threads int     `yaml:"threads"`
	// Binary overrides the executable looked up on PATH.
	Binary string `yaml:"binary"`
	// WorkDir is the parent of the per-solve temp directory; empty uses os.TempDir.
	WorkDir   string `yaml:"workDir"`
	KeepFiles bool   `yaml:"keepFiles"`
}

// Solver runs one model to completion. Implementations must not retain or mutate the model.
type Solver interface {
	Name() string
	Solve(ctx context.Context, m *milp.Model) (Result, error)
}

// Factory builds a solver for the given options.
type Factory func(Options) Solver

var (
	regMu    sync.RWMutex
	registry = map[string]Factory{}
	aliases  = map[string]string{
		"coin-cbc": "cbc",
		"coin-or":  "cbc",
		"glpsol":   "glpk",
	}
)

// Register makes a solver available by name. Registering a name twice replaces the factory.
func Register(name string, f Factory) {
	regMu.Lock()
	registry[strings.ToLower(name)] = f
	regMu.Unlock()
}

// Names lists the registered solver names.
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Canonical resolves aliases and case and reports whether the result is registered.
func Canonical(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[key]; ok {
		key = a
	}
	regMu.RLock()
	_, ok := registry[key]
	regMu.RUnlock()
	return key, ok
}

// New returns the named solver configured with opts.
func New(name string, opts Options) (Solver, error) {
	key, _ := Canonical(name)
	regMu.RLock()
	f, ok := registry[key]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unsupported solver %q (available: %s)", ErrSolverUnavailable, name, strings.Join(Names(), ", "))
	}
	return f(opts), nil
}

// Solve looks the solver up by name and runs it on m.
// Infeasible and unbounded models are reported through Result.Status with a nil error.
func Solve(ctx context.Context, m *milp.Model, name string, opts Options) (Result, error) {
	s, err := New(name, opts)
	if err != nil {
		return Result{}, err
	}
	return s.Solve(ctx, m)
}

// Available reports whether the named solver can run here: it is registered
// and, for backends that drive a binary, the executable is on PATH.
func Available(name string, opts Options) bool {
	s, err := New(name, opts)
	if err != nil {
		return false
	}
	if c, ok := s.(interface{ Available() bool }); ok {
		return c.Available()
	}
	return true
}

func init() {
	Register("cbc", NewCBC)
	Register("highs", NewHiGHS)
	Register("glpk", NewGLPK)
}
