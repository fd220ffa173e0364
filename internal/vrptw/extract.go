package vrptw

import (
	"errors"
	"fmt"

	"vrptw/internal/solver"
)

// ErrNoSolution is returned by Extract when the solver produced no assignment.
var ErrNoSolution = errors.New("no solution")

// arcThreshold separates selected from unselected arcs in a solver assignment.
const arcThreshold = 0.5

// Arc is a directed edge between two node ids.
type Arc struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (a Arc) String() string { return fmt.Sprintf("%d->%d", a.From, a.To) }

// Solution is the part of a solver assignment that describes routes. Load and
// Start are keyed by node id.
type Solution struct {
	Status    solver.Status   `json:"status"`
	Objective float64         `json:"objective"`
	Arcs      []Arc           `json:"arcs"`
	Load      map[int]float64 `json:"load,omitempty"`
	Start     map[int]float64 `json:"start,omitempty"`
}

// Extract reads the selected arcs (x > 0.5) and the load and start time of
// every node out of res. Arcs are ordered by source then destination position.
func Extract(m *Model, res solver.Result) (Solution, error) {
	if !res.Status.HasSolution() {
		return Solution{}, fmt.Errorf("extract: %w: status %s", ErrNoSolution, res.Status)
	}
	if len(res.Values) != m.lp.NumVars() {
		return Solution{}, fmt.Errorf("extract: assignment has %d values for %d variables", len(res.Values), m.lp.NumVars())
	}

	inst := m.inst
	n := inst.Len()
	sol := Solution{
		Status:    res.Status,
		Objective: res.Objective,
		Arcs:      []Arc{},
		Load:      make(map[int]float64, n),
		Start:     make(map[int]float64, n),
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if res.Values[m.x[i*n+j]] > arcThreshold {
				sol.Arcs = append(sol.Arcs, Arc{From: inst.ID(i), To: inst.ID(j)})
			}
		}
	}
	for p := 0; p < n; p++ {
		sol.Load[inst.ID(p)] = res.Values[m.q[p]]
		sol.Start[inst.ID(p)] = res.Values[m.t[p]]
	}
	return sol, nil
}

// Distance is the total length of the arcs under the model's distance matrix.
func (m *Model) Distance(arcs []Arc) (float64, error) {
	sum := 0.0
	for _, a := range arcs {
		i, ok := m.inst.Position(a.From)
		if !ok {
			return 0, fmt.Errorf("arc %s: unknown node %d", a, a.From)
		}
		j, ok := m.inst.Position(a.To)
		if !ok {
			return 0, fmt.Errorf("arc %s: unknown node %d", a, a.To)
		}
		sum += m.inst.Distance(i, j)
	}
	return sum, nil
}
