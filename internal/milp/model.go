// Package milp is a small solver-neutral representation of a mixed-integer
// linear program: variables, linear constraints and a minimised objective,
// with writers for the LP and MPS interchange formats read by external solvers.
package milp

import (
	"fmt"
	"math"
)

// VarKind is the domain type of a variable.
type VarKind int

const (
	Continuous VarKind = iota
	Binary
)

func (k VarKind) String() string {
	if k == Binary {
		return "binary"
	}
	return "continuous"
}

// Sense is the relation between a constraint's terms and its right-hand side.
type Sense int

const (
	LessEq Sense = iota
	Equal
	GreaterEq
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	default:
		return "="
	}
}

// Var is a decision variable. Binary variables always have bounds [0,1].
type Var struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
}

// Term is Coef times the variable at index Var.
type Term struct {
	Var  int
	Coef float64
}

// Expr is a linear expression without constant.
type Expr []Term

// Plus appends coef*v.
func (e Expr) Plus(v int, coef float64) Expr { return append(e, Term{Var: v, Coef: coef}) }

// Eval evaluates e at x, x being indexed by variable index.
func (e Expr) Eval(x []float64) float64 {
	sum := 0.0
	for _, t := range e {
		sum += t.Coef * x[t.Var]
	}
	return sum
}

// Constraint is Terms Sense RHS.
type Constraint struct {
	Name  string
	Terms Expr
	Sense Sense
	RHS   float64
}

// Satisfied reports whether the constraint holds at x within tol.
func (c Constraint) Satisfied(x []float64, tol float64) bool {
	lhs := c.Terms.Eval(x)
	switch c.Sense {
	case LessEq:
		return lhs <= c.RHS+tol
	case GreaterEq:
		return lhs >= c.RHS-tol
	default:
		return math.Abs(lhs-c.RHS) <= tol
	}
}

// Model is a minimisation MILP. It is built once and then only read; solver
// backends serialize it and never mutate it.
type Model struct {
	Name string

	vars  []Var
	index map[string]int
	cons  []Constraint
	obj   Expr
}

// NewModel returns an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name, index: map[string]int{}}
}

// AddVar declares a variable and returns its index. Names must be unique.
func (m *Model) AddVar(name string, kind VarKind, lower, upper float64) (int, error) {
	if _, dup := m.index[name]; dup {
		return 0, fmt.Errorf("milp: duplicate variable %q", name)
	}
	if kind == Binary {
		lower, upper = 0, 1
	}
	if lower > upper {
		return 0, fmt.Errorf("milp: variable %q has empty domain [%v,%v]", name, lower, upper)
	}
	m.vars = append(m.vars, Var{Name: name, Kind: kind, Lower: lower, Upper: upper})
	m.index[name] = len(m.vars) - 1
	return len(m.vars) - 1, nil
}

// AddConstraint appends a named linear constraint. Terms must reference declared variables.
func (m *Model) AddConstraint(name string, terms Expr, sense Sense, rhs float64) error {
	if len(terms) == 0 {
		return fmt.Errorf("milp: constraint %q has no terms", name)
	}
	for _, t := range terms {
		if t.Var < 0 || t.Var >= len(m.vars) {
			return fmt.Errorf("milp: constraint %q references unknown variable %d", name, t.Var)
		}
	}
	m.cons = append(m.cons, Constraint{Name: name, Terms: terms, Sense: sense, RHS: rhs})
	return nil
}

// Minimize sets the objective.
func (m *Model) Minimize(obj Expr) { m.obj = obj }

// NumVars is the number of declared variables.
func (m *Model) NumVars() int { return len(m.vars) }

// NumConstraints is the number of constraints.
func (m *Model) NumConstraints() int { return len(m.cons) }

// Var returns the i-th variable.
func (m *Model) Var(i int) Var { return m.vars[i] }

// Objective returns the minimised expression.
func (m *Model) Objective() Expr { return m.obj }

// Constraint returns the i-th constraint.
func (m *Model) Constraint(i int) Constraint { return m.cons[i] }

// VarIndex looks a variable up by name.
func (m *Model) VarIndex(name string) (int, bool) {
	i, ok := m.index[name]
	return i, ok
}

// Stats summarizes the model size.
type Stats struct {
	Vars        int `json:"vars"`
	Binaries    int `json:"binaries"`
	Continuous  int `json:"continuous"`
	Constraints int `json:"constraints"`
	NonZeros    int `json:"nonZeros"`
}

func (m *Model) Stats() Stats {
	s := Stats{Vars: len(m.vars), Constraints: len(m.cons)}
	for _, v := range m.vars {
		if v.Kind == Binary {
			s.Binaries++
		} else {
			s.Continuous++
		}
	}
	for _, c := range m.cons {
		s.NonZeros += len(c.Terms)
	}
	return s
}

// Violation describes a bound or constraint that does not hold for an assignment.
type Violation struct {
	Name   string
	LHS    float64
	Sense  Sense
	RHS    float64
	Amount float64
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %g %s %g (off by %g)", v.Name, v.LHS, v.Sense, v.RHS, v.Amount)
}

// Violations checks every variable bound, integrality and constraint at x.
func (m *Model) Violations(x []float64, tol float64) []Violation {
	var out []Violation
	for i, v := range m.vars {
		val := x[i]
		if val < v.Lower-tol {
			out = append(out, Violation{Name: v.Name, LHS: val, Sense: GreaterEq, RHS: v.Lower, Amount: v.Lower - val})
		}
		if val > v.Upper+tol {
			out = append(out, Violation{Name: v.Name, LHS: val, Sense: LessEq, RHS: v.Upper, Amount: val - v.Upper})
		}
		if v.Kind == Binary {
			if r := math.Abs(val - math.Round(val)); r > tol {
				out = append(out, Violation{Name: v.Name + " (integrality)", LHS: val, Sense: Equal, RHS: math.Round(val), Amount: r})
			}
		}
	}
	for _, c := range m.cons {
		if c.Satisfied(x, tol) {
			continue
		}
		lhs := c.Terms.Eval(x)
		out = append(out, Violation{Name: c.Name, LHS: lhs, Sense: c.Sense, RHS: c.RHS, Amount: math.Abs(lhs - c.RHS)})
	}
	return out
}
