package solver

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"vrptw/internal/milp"
)

const highsOptionsFile = "highs.opt"

// NewHiGHS runs the HiGHS command line solver on an LP file.
func NewHiGHS(o Options) Solver {
	return &backend{
		name:   "highs",
		bin:    "highs",
		format: "lp",
		opts:   o,
		args:   highsArgs,
		parse:  parseHiGHS,
		extra:  highsOptions,
	}
}

func highsArgs(model, solution string, o Options) []string {
	args := []string{"--model_file", model, "--solution_file", solution}
	if o.TimeLimit > 0 {
		args = append(args, "--time_limit", seconds(o.TimeLimit))
	}
	if o.Gap > 0 || o.Threads > 0 {
		args = append(args, "--options_file", highsOptionsFile)
	}
	return args
}

func highsOptions(o Options) map[string]string {
	var b strings.Builder
	if o.Gap > 0 {
		fmt.Fprintf(&b, "mip_rel_gap = %g\n", o.Gap)
	}
	if o.Threads > 0 {
		fmt.Fprintf(&b, "threads = %d\n", o.Threads)
	}
	if b.Len() == 0 {
		return nil
	}
	return map[string]string{highsOptionsFile: b.String()}
}

// parseHiGHS reads the raw solution style written by --solution_file:
//
//	Model status
//	Optimal
//
//	# Primal solution values
//	Feasible
//	Objective 20
//	# Columns 6
//	x_0_1 1
//	...
func parseHiGHS(r run, m *milp.Model) (Result, error) {
	sc := bufio.NewScanner(r.solution)
	var (
		modelStatus  string
		primalStatus string
		res          Result
		values       = make([]float64, m.NumVars())
	)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "Model status":
			if sc.Scan() {
				modelStatus = strings.TrimSpace(sc.Text())
			}
		case line == "# Primal solution values":
			if sc.Scan() {
				primalStatus = strings.TrimSpace(sc.Text())
			}
		case strings.HasPrefix(line, "Objective "):
			v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "Objective")), 64)
			if err != nil {
				return Result{}, fmt.Errorf("highs objective %q: %w", line, err)
			}
			res.Objective = v
		case strings.HasPrefix(line, "# Columns "):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "# Columns")))
			if err != nil {
				return Result{}, fmt.Errorf("highs column count %q: %w", line, err)
			}
			for i := 0; i < n && sc.Scan(); i++ {
				fields := strings.Fields(sc.Text())
				if len(fields) < 2 {
					return Result{}, fmt.Errorf("highs column line %q", sc.Text())
				}
				v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
				if err != nil {
					return Result{}, fmt.Errorf("highs value for %s: %w", fields[0], err)
				}
				assign(values, m, fields[0], v)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return Result{}, err
	}
	if modelStatus == "" {
		return Result{}, fmt.Errorf("highs solution file has no model status")
	}

	status, err := highsStatus(modelStatus, primalStatus == "Feasible")
	if err != nil {
		return Result{}, err
	}
	res.Status = status
	if status.HasSolution() {
		res.Values = values
	}
	return res, nil
}

func highsStatus(model string, primalFeasible bool) (Status, error) {
	s := strings.ToLower(model)
	switch {
	case s == "optimal":
		return Optimal, nil
	case strings.Contains(s, "infeasible"):
		return Infeasible, nil
	case strings.Contains(s, "unbounded"):
		return Unbounded, nil
	case strings.Contains(s, "limit") || strings.Contains(s, "interrupted") || strings.Contains(s, "objective"):
		if primalFeasible {
			return Feasible, nil
		}
		return NoSolution, nil
	default:
		return "", fmt.Errorf("highs reported model status %q", model)
	}
}
