package vrptw

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"vrptw/internal/instance"
	"vrptw/internal/logx"
	"vrptw/internal/metrics"
	"vrptw/internal/milp"
	"vrptw/internal/solver"
)

// Outcome is the result of one pipeline run. Solution is nil unless the
// solver returned an assignment.
type Outcome struct {
	Instance  string        `json:"instance,omitempty"`
	Solver    string        `json:"solver"`
	Status    solver.Status `json:"status"`
	Objective float64       `json:"objective"`
	Solution  *Solution     `json:"solution,omitempty"`
	Subtours  []Cycle       `json:"subtours,omitempty"`
	Stats     milp.Stats    `json:"stats"`
	BuildTime time.Duration `json:"buildTime"`
	SolveTime time.Duration `json:"solveTime"`
}

// Request selects the solver and formulation for Solve.
type Request struct {
	Solver    string         `json:"solver" yaml:"solver"`
	Options   solver.Options `json:"-" yaml:"options"`
	TightBigM bool           `json:"tightBigM,omitempty" yaml:"tightBigM"`
}

func (r Request) buildOptions() []Option {
	if r.TightBigM {
		return []Option{WithTightBigM()}
	}
	return nil
}

// Solve builds the model for inst, runs the requested solver and extracts the
// arcs. An infeasible or unbounded model is a normal outcome with a nil error;
// errors mean the instance was invalid or the solver could not be run.
func Solve(ctx context.Context, inst *instance.Instance, req Request) (out Outcome, err error) {
	defer logx.Time(ctx, "vrptw.solve")(&err)

	start := time.Now()
	m, err := Build(inst, req.buildOptions()...)
	if err != nil {
		return Outcome{}, err
	}
	out = Outcome{
		Instance:  inst.Name(),
		Solver:    req.Solver,
		Stats:     m.lp.Stats(),
		BuildTime: time.Since(start),
	}
	metrics.ObserveModel(out.Stats.Vars, out.Stats.Constraints)

	res, err := solver.Solve(ctx, m.lp, req.Solver, req.Options)
	if err != nil {
		metrics.ObserveSolve(solverLabel(req.Solver), "error", 0)
		return Outcome{}, fmt.Errorf("solve %s: %w", req.Solver, err)
	}
	if res.Solver != "" {
		out.Solver = res.Solver
	}
	out.Status = res.Status
	out.Objective = res.Objective
	out.SolveTime = res.Elapsed
	metrics.ObserveSolve(solverLabel(req.Solver), string(res.Status), res.Elapsed.Seconds())

	if !res.Status.HasSolution() {
		out.Objective = 0
		return out, nil
	}
	sol, err := Extract(m, res)
	if err != nil {
		return Outcome{}, err
	}
	out.Solution = &sol
	out.Subtours = sol.Subtours()
	return out, nil
}

// solverLabel keeps the metric label set bounded: names that are not
// registered are all recorded as "unknown".
func solverLabel(name string) string {
	if key, ok := solver.Canonical(name); ok {
		return key
	}
	return "unknown"
}

// Comparison is one solver's entry in a Compare run. Err is set instead of
// Outcome when that solver could not be run.
type Comparison struct {
	Solver  string  `json:"solver"`
	Outcome Outcome `json:"outcome"`
	Err     error   `json:"-"`
}

// Compare solves inst with every named solver concurrently. Each solver gets
// its own model. A solver that fails does not cancel the others; only ctx does.
func Compare(ctx context.Context, inst *instance.Instance, solvers []string, opts solver.Options, bopts ...Option) ([]Comparison, error) {
	out := make([]Comparison, len(solvers))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range solvers {
		i, name := i, name
		g.Go(func() error {
			m, err := Build(inst, bopts...)
			if err != nil {
				return err
			}
			res, err := solver.Solve(gctx, m.lp, name, opts)
			out[i] = Comparison{Solver: name, Err: err}
			if err != nil {
				return nil
			}
			oc := Outcome{Instance: inst.Name(), Solver: name, Status: res.Status, Objective: res.Objective, Stats: m.lp.Stats(), SolveTime: res.Elapsed}
			if res.Status.HasSolution() {
				sol, err := Extract(m, res)
				if err != nil {
					out[i].Err = err
					return nil
				}
				oc.Solution = &sol
				oc.Subtours = sol.Subtours()
			}
			out[i].Outcome = oc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compare: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("compare: %w", err)
	}
	return out, nil
}
