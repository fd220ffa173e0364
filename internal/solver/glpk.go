package solver

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"vrptw/internal/milp"
)

// NewGLPK runs glpsol on a free MPS file and reads the -w solution (GLPK 4.57 or later).
func NewGLPK(o Options) Solver {
	return &backend{
		name:   "glpk",
		bin:    "glpsol",
		format: "mps",
		opts:   o,
		args:   glpkArgs,
		parse:  parseGLPK,
	}
}

func glpkArgs(model, solution string, o Options) []string {
	args := []string{"--freemps", model, "--min", "-w", solution}
	if o.TimeLimit > 0 {
		secs := int(o.TimeLimit.Seconds())
		if secs < 1 {
			secs = 1
		}
		args = append(args, "--tmlim", strconv.Itoa(secs))
	}
	if o.Gap > 0 {
		args = append(args, "--mipgap", strconv.FormatFloat(o.Gap, 'g', -1, 64))
	}
	return args
}

// parseGLPK reads the glpsol MIP solution format:
//
//	c Status:     INTEGER OPTIMAL
//	s mip 12 9 o 20
//	i 1 20
//	j 1 1
//	e o f
//
// Columns are numbered in MPS column order, which is model variable order.
func parseGLPK(r run, m *milp.Model) (Result, error) {
	sc := bufio.NewScanner(r.solution)
	var (
		res    Result
		stat   string
		values = make([]float64, m.NumVars())
	)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "s":
			if len(fields) < 6 {
				return Result{}, fmt.Errorf("glpk status line %q", sc.Text())
			}
			if fields[1] != "mip" {
				return Result{}, fmt.Errorf("glpk solution is %q, want mip", fields[1])
			}
			stat = fields[4]
			v, err := strconv.ParseFloat(fields[5], 64)
			if err != nil {
				return Result{}, fmt.Errorf("glpk objective %q: %w", fields[5], err)
			}
			res.Objective = v
		case "j":
			if len(fields) < 3 {
				return Result{}, fmt.Errorf("glpk column line %q", sc.Text())
			}
			col, err := strconv.Atoi(fields[1])
			if err != nil || col < 1 || col > len(values) {
				return Result{}, fmt.Errorf("glpk column index %q out of range", fields[1])
			}
			v, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return Result{}, fmt.Errorf("glpk column %d value: %w", col, err)
			}
			values[col-1] = v
		}
	}
	if err := sc.Err(); err != nil {
		return Result{}, err
	}
	if stat == "" {
		return Result{}, fmt.Errorf("glpk solution file has no status line")
	}

	out := bytes.ToUpper(r.output)
	switch {
	case stat == "o":
		res.Status = Optimal
	case stat == "f":
		res.Status = Feasible
	case stat == "n" || bytes.Contains(out, []byte("NO PRIMAL FEASIBLE")) || bytes.Contains(out, []byte("NO INTEGER FEASIBLE")):
		res.Status = Infeasible
	case bytes.Contains(out, []byte("UNBOUNDED")):
		res.Status = Unbounded
	default:
		res.Status = NoSolution
	}
	if res.Status.HasSolution() {
		res.Values = values
	}
	return res, nil
}
