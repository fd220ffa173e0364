package solvertest

import (
	"context"
	"sync"

	"vrptw/internal/milp"
	"vrptw/internal/solver"
)

// Fake returns a canned result or error and records the models it was given.
type Fake struct {
	ID     string
	Result solver.Result
	Err    error

	mu     sync.Mutex
	Models []*milp.Model
}

func (f *Fake) Name() string {
	if f.ID == "" {
		return "fake"
	}
	return f.ID
}

func (f *Fake) Solve(_ context.Context, m *milp.Model) (solver.Result, error) {
	f.mu.Lock()
	f.Models = append(f.Models, m)
	f.mu.Unlock()
	if f.Err != nil {
		return solver.Result{}, f.Err
	}
	res := f.Result
	res.Solver = f.Name()
	return res, nil
}

// Calls reports how many times Solve ran.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Models)
}
