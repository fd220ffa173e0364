// Package solvertest provides solvers for tests that must not depend on an
// installed MILP binary: an exhaustive reference solver for tiny models and a
// canned fake.
package solvertest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"vrptw/internal/milp"
	"vrptw/internal/solver"
)

// Name is the registry name of the Enumerator.
const Name = "enumerate"

// MaxBinaries bounds the model size the Enumerator accepts (2^MaxBinaries assignments).
const MaxBinaries = 22

// ErrNotDifferenceSystem is returned for models whose continuous part is not a system of
// difference constraints (x_u - x_v <= c and simple bounds) once the binaries are fixed.
var ErrNotDifferenceSystem = errors.New("solvertest: continuous part is not a difference system")

const feasTol = 1e-9

var once sync.Once

// Register adds the Enumerator to the solver registry under Name.
func Register() {
	once.Do(func() {
		solver.Register(Name, func(solver.Options) solver.Solver { return Enumerator{} })
	})
}

// Enumerator tries every binary assignment and checks the remaining continuous
// constraints with Bellman-Ford. The objective may only involve binaries.
type Enumerator struct{}

func (Enumerator) Name() string { return Name }

func (Enumerator) Solve(ctx context.Context, m *milp.Model) (solver.Result, error) {
	start := time.Now()
	var bins, conts []int
	for i := 0; i < m.NumVars(); i++ {
		if m.Var(i).Kind == milp.Binary {
			bins = append(bins, i)
		} else {
			conts = append(conts, i)
		}
	}
	if len(bins) > MaxBinaries {
		return solver.Result{}, fmt.Errorf("%w: %d binaries exceed %d", solver.ErrSolverUnavailable, len(bins), MaxBinaries)
	}
	for _, t := range m.Objective() {
		if m.Var(t.Var).Kind != milp.Binary && t.Coef != 0 {
			return solver.Result{}, fmt.Errorf("%w: objective uses continuous variable %s", solver.ErrSolverUnavailable, m.Var(t.Var).Name)
		}
	}

	var (
		best    []float64
		bestObj = math.Inf(1)
		x       = make([]float64, m.NumVars())
	)
	for mask := uint64(0); mask < 1<<len(bins); mask++ {
		if mask&0xfff == 0 && ctx.Err() != nil {
			return solver.Result{}, ctx.Err()
		}
		for k, v := range bins {
			x[v] = float64((mask >> k) & 1)
		}
		obj := m.Objective().Eval(x)
		if obj >= bestObj-feasTol {
			continue
		}
		ok, err := fixContinuous(m, x, conts)
		if err != nil {
			return solver.Result{}, err
		}
		if ok {
			bestObj = obj
			best = append(best[:0:0], x...)
		}
	}

	res := solver.Result{Solver: Name, Elapsed: time.Since(start)}
	if best == nil {
		res.Status = solver.Infeasible
		return res, nil
	}
	res.Status = solver.Optimal
	res.Objective = bestObj
	res.Values = best
	return res, nil
}

type edge struct {
	from, to int
	w        float64
}

// fixContinuous checks the constraints under the binaries already set in x and,
// when feasible, writes a satisfying assignment of the continuous variables into x.
func fixContinuous(m *milp.Model, x []float64, conts []int) (bool, error) {
	node := make(map[int]int, len(conts)) // var index -> graph node; node 0 is the zero reference
	for k, v := range conts {
		node[v] = k + 1
	}
	var edges []edge
	// u - v <= c  ->  edge v->u weight c
	le := func(u, v int, c float64) { edges = append(edges, edge{from: v, to: u, w: c}) }

	for _, v := range conts {
		vr := m.Var(v)
		if !math.IsInf(vr.Upper, 1) {
			le(node[v], 0, vr.Upper)
		}
		if !math.IsInf(vr.Lower, -1) {
			le(0, node[v], -vr.Lower)
		}
	}

	for i := 0; i < m.NumConstraints(); i++ {
		c := m.Constraint(i)
		rhs := c.RHS
		var cont milp.Expr
		for _, t := range c.Terms {
			if m.Var(t.Var).Kind == milp.Binary {
				rhs -= t.Coef * x[t.Var]
			} else if t.Coef != 0 {
				cont = append(cont, t)
			}
		}
		switch len(cont) {
		case 0:
			if !(milp.Constraint{Sense: c.Sense, RHS: rhs}).Satisfied(nil, feasTol) {
				return false, nil
			}
		case 1:
			a, u := cont[0].Coef, node[cont[0].Var]
			addDiff(le, c.Sense, a, u, 0, rhs)
		case 2:
			a, b := cont[0], cont[1]
			if math.Abs(a.Coef+b.Coef) > feasTol {
				return false, fmt.Errorf("%w: constraint %s", ErrNotDifferenceSystem, c.Name)
			}
			addDiff(le, c.Sense, a.Coef, node[a.Var], node[b.Var], rhs)
		default:
			return false, fmt.Errorf("%w: constraint %s", ErrNotDifferenceSystem, c.Name)
		}
	}

	// Bellman-Ford from a virtual source connected to every node with weight 0.
	n := len(conts) + 1
	dist := make([]float64, n)
	for iter := 0; iter <= n; iter++ {
		changed := false
		for _, e := range edges {
			if dist[e.from]+e.w < dist[e.to]-feasTol {
				dist[e.to] = dist[e.from] + e.w
				changed = true
			}
		}
		if !changed {
			for _, v := range conts {
				x[v] = dist[node[v]] - dist[0]
			}
			return true, nil
		}
	}
	return false, nil
}

// addDiff records a*(u - v) sense rhs as difference edges.
func addDiff(le func(u, v int, c float64), sense milp.Sense, a float64, u, v int, rhs float64) {
	if a < 0 {
		a = -a
		u, v = v, u
	}
	c := rhs / a
	if sense == milp.LessEq || sense == milp.Equal {
		le(u, v, c)
	}
	if sense == milp.GreaterEq || sense == milp.Equal {
		le(v, u, -c)
	}
}
