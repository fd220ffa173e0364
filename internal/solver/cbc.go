package solver

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"vrptw/internal/milp"
)

// cbcNoSolution is the objective CBC prints when it stopped without an incumbent.
const cbcNoSolution = 1e49

// NewCBC runs COIN-OR CBC on an LP file and reads its "solu" output.
func NewCBC(o Options) Solver {
	return &backend{
		name:   "cbc",
		bin:    "cbc",
		format: "lp",
		opts:   o,
		args:   cbcArgs,
		parse:  parseCBC,
	}
}

func cbcArgs(model, solution string, o Options) []string {
	args := []string{model}
	if o.TimeLimit > 0 {
		args = append(args, "sec", seconds(o.TimeLimit))
	}
	if o.Gap > 0 {
		args = append(args, "ratio", strconv.FormatFloat(o.Gap, 'g', -1, 64))
	}
	if o.Threads > 0 {
		args = append(args, "threads", strconv.Itoa(o.Threads))
	}
	return append(args, "solve", "solu", solution)
}

// parseCBC reads a CBC solution file:
//
//	Optimal - objective value 20.00000000
//	      0 x_0_1                   1                       0
//	**    3 x_1_2                 0.5                       0
//
// Only non-zero columns are listed.
func parseCBC(r run, m *milp.Model) (Result, error) {
	sc := bufio.NewScanner(r.solution)
	if !sc.Scan() {
		return Result{}, fmt.Errorf("empty cbc solution file")
	}
	head := strings.TrimSpace(sc.Text())
	res := Result{Status: cbcStatus(head)}
	if i := strings.LastIndex(head, "objective value"); i >= 0 {
		v, err := strconv.ParseFloat(strings.TrimSpace(head[i+len("objective value"):]), 64)
		if err != nil {
			return Result{}, fmt.Errorf("cbc objective in %q: %w", head, err)
		}
		res.Objective = v
	}
	if res.Status == "" {
		return Result{}, fmt.Errorf("unrecognized cbc status %q", head)
	}

	values := make([]float64, m.NumVars())
	listed := 0
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) > 0 && fields[0] == "**" {
			fields = fields[1:]
		}
		if len(fields) < 3 {
			continue
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return Result{}, fmt.Errorf("cbc value for %s: %w", fields[1], err)
		}
		assign(values, m, fields[1], v)
		listed++
	}
	if err := sc.Err(); err != nil {
		return Result{}, err
	}

	if res.Status == Feasible && (res.Objective >= cbcNoSolution || listed == 0) {
		res.Status = NoSolution
	}
	if res.Status.HasSolution() {
		res.Values = values
	}
	return res, nil
}

func cbcStatus(head string) Status {
	h := strings.ToLower(head)
	switch {
	case strings.Contains(h, "infeasible"):
		return Infeasible
	case strings.Contains(h, "unbounded"):
		return Unbounded
	case strings.HasPrefix(h, "optimal"):
		return Optimal
	case strings.Contains(h, "no integer solution"):
		// the listing that follows is the LP relaxation
		return NoSolution
	case strings.HasPrefix(h, "stopped"):
		return Feasible
	default:
		return ""
	}
}
