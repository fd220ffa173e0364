package vrptw

import (
	"fmt"
	"sort"

	"vrptw/internal/instance"
	"vrptw/internal/milp"
)

// checkTol is the absolute tolerance used when substituting a solution back into the model.
const checkTol = 1e-6

// Check substitutes sol into every bound and constraint of m and returns the
// ones that do not hold. Nodes missing from sol.Load or sol.Start count as 0.
func Check(m *Model, sol Solution) ([]milp.Violation, error) {
	x := make([]float64, m.lp.NumVars())
	for _, a := range sol.Arcs {
		i, ok := m.inst.Position(a.From)
		if !ok {
			return nil, fmt.Errorf("check: arc %s: unknown node %d", a, a.From)
		}
		j, ok := m.inst.Position(a.To)
		if !ok {
			return nil, fmt.Errorf("check: arc %s: unknown node %d", a, a.To)
		}
		v, ok := m.Arc(i, j)
		if !ok {
			return nil, fmt.Errorf("check: arc %s is a self-loop", a)
		}
		x[v] = 1
	}
	for p := 0; p < m.inst.Len(); p++ {
		id := m.inst.ID(p)
		x[m.q[p]] = sol.Load[id]
		x[m.t[p]] = sol.Start[id]
	}
	return m.lp.Violations(x, checkTol), nil
}

// Cycle is a closed walk along solution arcs. Routes start at the depot;
// a Subtour never touches it.
type Cycle struct {
	Nodes   []int `json:"nodes"`
	Subtour bool  `json:"subtour"`
	// Open is set when the walk ended at a node without an unused outgoing arc.
	Open bool `json:"open,omitempty"`
}

// Cycles decomposes arcs into depot routes followed by subtours. Each arc is
// used once. Routes are listed in order of their first customer; a subtour
// starts at its smallest node id.
func Cycles(arcs []Arc) []Cycle {
	sorted := append([]Arc(nil), arcs...)
	sort.Slice(sorted, func(a, b int) bool {
		if sorted[a].From != sorted[b].From {
			return sorted[a].From < sorted[b].From
		}
		return sorted[a].To < sorted[b].To
	})
	next := map[int][]int{}
	for _, a := range sorted {
		next[a.From] = append(next[a.From], a.To)
	}

	walk := func(start int) Cycle {
		c := Cycle{Nodes: []int{start}}
		at := start
		for {
			succ := next[at]
			if len(succ) == 0 {
				c.Open = true
				return c
			}
			to := succ[0]
			next[at] = succ[1:]
			if to == start {
				return c
			}
			c.Nodes = append(c.Nodes, to)
			at = to
		}
	}

	var out []Cycle
	for len(next[instance.DepotID]) > 0 {
		out = append(out, walk(instance.DepotID))
	}
	for _, a := range sorted {
		if len(next[a.From]) == 0 {
			continue
		}
		c := walk(a.From)
		c.Subtour = true
		for _, id := range c.Nodes {
			if id == instance.DepotID {
				c.Subtour = false
			}
		}
		out = append(out, c)
	}
	return out
}

// Subtours returns the cycles of the solution that do not pass through the depot.
func (s Solution) Subtours() []Cycle {
	var out []Cycle
	for _, c := range Cycles(s.Arcs) {
		if c.Subtour {
			out = append(out, c)
		}
	}
	return out
}

// Routes returns the depot routes of the solution.
func (s Solution) Routes() []Cycle {
	var out []Cycle
	for _, c := range Cycles(s.Arcs) {
		if !c.Subtour {
			out = append(out, c)
		}
	}
	return out
}
