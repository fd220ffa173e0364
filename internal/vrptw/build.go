// Package vrptw formulates the vehicle routing problem with time windows as a
// mixed-integer program, hands it to an external solver and reads the chosen
// arcs back.
//
// The formulation follows the classic two-index flow model: binary arc
// variables x, a load variable q and a service start variable t per node,
// with big-M propagation of load and time along selected arcs. There is no
// dedicated subtour elimination family; see Cycles.
package vrptw

import (
	"fmt"
	"math"

	"vrptw/internal/instance"
	"vrptw/internal/milp"
)

// Model is a built formulation together with the variable arena needed to
// read a solution back. It is never modified after Build returns.
type Model struct {
	lp   *milp.Model
	inst *instance.Instance

	// x[i*n+j] is the variable index of arc (i,j) by node position, -1 on the diagonal.
	x []int
	q []int
	t []int
}

// MILP returns the solver-neutral model.
func (m *Model) MILP() *milp.Model { return m.lp }

// Instance returns the instance the model was built from.
func (m *Model) Instance() *instance.Instance { return m.inst }

// Arc returns the variable index of the arc between positions i and j.
func (m *Model) Arc(i, j int) (int, bool) {
	n := m.inst.Len()
	if i < 0 || j < 0 || i >= n || j >= n || i == j {
		return 0, false
	}
	return m.x[i*n+j], true
}

// Load and Start return the variable indices of q and t at position p.
func (m *Model) Load(p int) int  { return m.q[p] }
func (m *Model) Start(p int) int { return m.t[p] }

// Option adjusts how Build formulates the model.
type Option func(*buildConfig)

type buildConfig struct {
	tightBigM bool
}

// WithTightBigM replaces the horizon in the time propagation constraints by the
// smallest value that still deactivates them, max(0, latest[i] + service[i] +
// distance[i][j] - earliest[j]) per arc. The load family keeps M = capacity,
// which is already tight.
func WithTightBigM() Option {
	return func(c *buildConfig) { c.tightBigM = true }
}

// Build formulates inst. It is pure: the same instance and options always
// produce the same model, variable order and constraint order.
func Build(inst *instance.Instance, opts ...Option) (_ *Model, err error) {
	if inst == nil {
		return nil, fmt.Errorf("build: %w: nil instance", instance.ErrInvalidInstance)
	}
	if inst.Len() < 2 {
		return nil, fmt.Errorf("build: %w: no customers", instance.ErrInvalidInstance)
	}
	var cfg buildConfig
	for _, o := range opts {
		o(&cfg)
	}

	n := inst.Len()
	name := inst.Name()
	if name == "" {
		name = "vrptw"
	}
	m := &Model{
		lp:   milp.NewModel(name),
		inst: inst,
		x:    make([]int, n*n),
		q:    make([]int, n),
		t:    make([]int, n),
	}
	b := builder{Model: m}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				m.x[i*n+j] = -1
				continue
			}
			m.x[i*n+j] = b.addVar(fmt.Sprintf("x_%d_%d", inst.ID(i), inst.ID(j)), milp.Binary, 0, 1)
		}
	}
	for p := 0; p < n; p++ {
		m.q[p] = b.addVar(fmt.Sprintf("q_%d", inst.ID(p)), milp.Continuous, 0, inst.Capacity())
	}
	for p := 0; p < n; p++ {
		m.t[p] = b.addVar(fmt.Sprintf("t_%d", inst.ID(p)), milp.Continuous, 0, inst.Horizon())
	}

	var obj milp.Expr
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				obj = obj.Plus(m.x[i*n+j], inst.Distance(i, j))
			}
		}
	}
	m.lp.Minimize(obj)

	b.visitOnce()
	b.flowBalance()
	b.depot()
	b.capacity()
	b.schedule(cfg.tightBigM)
	b.windows()

	if b.err != nil {
		return nil, fmt.Errorf("build: %w", b.err)
	}
	return m, nil
}

// builder records the first error so the constraint families read straight through.
type builder struct {
	*Model
	err error
}

func (b *builder) addVar(name string, kind milp.VarKind, lo, hi float64) int {
	if b.err != nil {
		return -1
	}
	v, err := b.lp.AddVar(name, kind, lo, hi)
	if err != nil {
		b.err = err
	}
	return v
}

func (b *builder) add(name string, terms milp.Expr, sense milp.Sense, rhs float64) {
	if b.err != nil {
		return
	}
	b.err = b.lp.AddConstraint(name, terms, sense, rhs)
}

func (b *builder) out(i int) milp.Expr {
	n := b.inst.Len()
	var e milp.Expr
	for j := 0; j < n; j++ {
		if j != i {
			e = e.Plus(b.x[i*n+j], 1)
		}
	}
	return e
}

func (b *builder) in(i int, coef float64) milp.Expr {
	n := b.inst.Len()
	var e milp.Expr
	for j := 0; j < n; j++ {
		if j != i {
			e = e.Plus(b.x[j*n+i], coef)
		}
	}
	return e
}

// visitOnce: every customer is left exactly once.
func (b *builder) visitOnce() {
	for i := 1; i < b.inst.Len(); i++ {
		b.add(fmt.Sprintf("visit_%d", b.inst.ID(i)), b.out(i), milp.Equal, 1)
	}
}

// flowBalance: every customer is entered as often as it is left.
func (b *builder) flowBalance() {
	for i := 1; i < b.inst.Len(); i++ {
		e := append(b.out(i), b.in(i, -1)...)
		b.add(fmt.Sprintf("flow_%d", b.inst.ID(i)), e, milp.Equal, 0)
	}
}

// depot: between 1 and vehicles routes leave the depot and all of them return.
func (b *builder) depot() {
	b.add("depot_min", b.out(0), milp.GreaterEq, 1)
	b.add("depot_max", b.out(0), milp.LessEq, float64(b.inst.Vehicles()))
	b.add("depot_balance", append(b.out(0), b.in(0, -1)...), milp.Equal, 0)
}

// capacity: q[i] - q[j] + M x[i,j] <= M - demand[j] for every arc into a customer.
func (b *builder) capacity() {
	n := b.inst.Len()
	bigM := b.inst.Capacity()
	for i := 0; i < n; i++ {
		for j := 1; j < n; j++ {
			if i == j {
				continue
			}
			e := milp.Expr{}.Plus(b.q[i], 1).Plus(b.q[j], -1).Plus(b.x[i*n+j], bigM)
			b.add(fmt.Sprintf("cap_%d_%d", b.inst.ID(i), b.inst.ID(j)), e, milp.LessEq, bigM-b.inst.Demand(j))
		}
	}
}

// schedule: t[i] - t[j] + M x[i,j] <= M - distance[i][j] - service[i] for every arc out of a customer.
func (b *builder) schedule(tight bool) {
	n := b.inst.Len()
	for i := 1; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			travel := b.inst.Distance(i, j) + b.inst.Service(i)
			bigM := b.inst.Horizon()
			if tight {
				bigM = math.Max(0, b.inst.Window(i).Latest+travel-b.inst.Window(j).Earliest)
			}
			e := milp.Expr{}.Plus(b.t[i], 1).Plus(b.t[j], -1).Plus(b.x[i*n+j], bigM)
			b.add(fmt.Sprintf("time_%d_%d", b.inst.ID(i), b.inst.ID(j)), e, milp.LessEq, bigM-travel)
		}
	}
}

// windows: earliest[i] <= t[i] <= latest[i].
func (b *builder) windows() {
	for p := 0; p < b.inst.Len(); p++ {
		tw := b.inst.Window(p)
		id := b.inst.ID(p)
		b.add(fmt.Sprintf("tw_open_%d", id), milp.Expr{}.Plus(b.t[p], 1), milp.GreaterEq, tw.Earliest)
		b.add(fmt.Sprintf("tw_close_%d", id), milp.Expr{}.Plus(b.t[p], 1), milp.LessEq, tw.Latest)
	}
}
