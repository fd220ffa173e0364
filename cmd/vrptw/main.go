// Command vrptw builds the VRPTW model for an instance, solves it with an
// external MILP solver and prints the objective and the selected arcs.
//
//	vrptw [flags] instance.txt|instance.json|instance.yaml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"vrptw/internal/config"
	"vrptw/internal/instance"
	"vrptw/internal/render"
	"vrptw/internal/solver"
	"vrptw/internal/vrptw"
)

type flags struct {
	config    string
	solver    string
	customers int
	decimals  int
	timeLimit time.Duration
	gap       float64
	threads   int
	tight     bool
	compare   string
	check     bool
	lp        string
	mps       string
	svg       string
	jsonOut   bool
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "YAML config file (solver defaults)")
	flag.StringVar(&f.solver, "solver", "", "solver: "+strings.Join(solver.Names(), ", ")+" (default from config, cbc)")
	flag.IntVar(&f.customers, "customers", 0, "keep only the depot and the first n customers")
	flag.IntVar(&f.decimals, "decimals", -1, "round Euclidean distances of Solomon files to n decimals")
	flag.DurationVar(&f.timeLimit, "time-limit", 0, "solver time limit (0 keeps the configured one)")
	flag.Float64Var(&f.gap, "gap", 0, "relative MIP gap")
	flag.IntVar(&f.threads, "threads", 0, "solver threads")
	flag.BoolVar(&f.tight, "tight", false, "use per-arc big-M in the time constraints")
	flag.StringVar(&f.compare, "compare", "", "comma separated solvers to run side by side")
	flag.BoolVar(&f.check, "check", false, "substitute the solution back into the model and report violations")
	flag.StringVar(&f.lp, "lp", "", "write the model in LP format to this file and exit")
	flag.StringVar(&f.mps, "mps", "", "write the model in free MPS format to this file and exit")
	flag.StringVar(&f.svg, "svg", "", "draw the solution to this SVG file")
	flag.BoolVar(&f.jsonOut, "json", false, "print the outcome as JSON")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] instance\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, f, flag.Arg(0), os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, f flags, path string, out io.Writer) error {
	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}
	inst, err := loadInstance(path, instance.ParseOptions{Decimals: f.decimals, Customers: f.customers})
	if err != nil {
		return err
	}

	req := vrptw.Request{Solver: cfg.Solver.Default, Options: cfg.Solver.Options, TightBigM: cfg.Solver.TightBigM || f.tight}
	if f.solver != "" {
		req.Solver = f.solver
	}
	if f.timeLimit > 0 {
		req.Options.TimeLimit = f.timeLimit
	}
	if f.gap > 0 {
		req.Options.Gap = f.gap
	}
	if f.threads > 0 {
		req.Options.Threads = f.threads
	}
	var bopts []vrptw.Option
	if req.TightBigM {
		bopts = append(bopts, vrptw.WithTightBigM())
	}

	if f.lp != "" || f.mps != "" {
		return writeModel(inst, bopts, f.lp, f.mps)
	}
	if f.compare != "" {
		return compare(ctx, inst, strings.Split(f.compare, ","), req.Options, bopts, out)
	}

	oc, err := vrptw.Solve(ctx, inst, req)
	if err != nil {
		return err
	}
	if f.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(oc); err != nil {
			return err
		}
	} else {
		printOutcome(out, oc)
	}
	if oc.Solution == nil {
		return nil
	}

	if f.check {
		m, err := vrptw.Build(inst, bopts...)
		if err != nil {
			return err
		}
		vs, err := vrptw.Check(m, *oc.Solution)
		if err != nil {
			return err
		}
		if len(vs) == 0 {
			fmt.Fprintln(out, "check: all constraints hold")
		}
		for _, v := range vs {
			fmt.Fprintf(out, "check: violated %s\n", v)
		}
	}
	if f.svg != "" {
		if err := drawSVG(f.svg, inst, *oc.Solution); err != nil {
			return err
		}
		log.Printf("wrote %s", f.svg)
	}
	return nil
}

// loadInstance reads a Solomon text file, or a JSON/YAML instance by extension.
func loadInstance(path string, opts instance.ParseOptions) (*instance.Instance, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return instance.LoadFile(path, opts)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	var d instance.Data
	if ext == ".json" {
		err = json.Unmarshal(b, &d)
	} else {
		err = yaml.Unmarshal(b, &d)
	}
	if err != nil {
		return nil, fmt.Errorf("load instance %q: %w", path, err)
	}
	inst, err := instance.New(d)
	if err != nil {
		return nil, fmt.Errorf("load instance %q: %w", path, err)
	}
	return inst.Truncate(opts.Customers)
}

func writeModel(inst *instance.Instance, bopts []vrptw.Option, lpPath, mpsPath string) error {
	m, err := vrptw.Build(inst, bopts...)
	if err != nil {
		return err
	}
	write := func(path string, fn func(io.Writer) error) error {
		fh, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := fn(fh); err != nil {
			fh.Close()
			return err
		}
		return fh.Close()
	}
	st := m.MILP().Stats()
	log.Printf("model vars=%d binaries=%d constraints=%d nonzeros=%d", st.Vars, st.Binaries, st.Constraints, st.NonZeros)
	if lpPath != "" {
		if err := write(lpPath, m.MILP().WriteLP); err != nil {
			return fmt.Errorf("write lp: %w", err)
		}
	}
	if mpsPath != "" {
		if err := write(mpsPath, m.MILP().WriteMPS); err != nil {
			return fmt.Errorf("write mps: %w", err)
		}
	}
	return nil
}

func printOutcome(out io.Writer, oc vrptw.Outcome) {
	fmt.Fprintf(out, "instance:  %s\n", oc.Instance)
	fmt.Fprintf(out, "solver:    %s\n", oc.Solver)
	fmt.Fprintf(out, "status:    %s\n", oc.Status)
	fmt.Fprintf(out, "model:     %d vars (%d binary), %d constraints\n", oc.Stats.Vars, oc.Stats.Binaries, oc.Stats.Constraints)
	fmt.Fprintf(out, "time:      build %v, solve %v\n", oc.BuildTime.Round(time.Millisecond), oc.SolveTime.Round(time.Millisecond))
	if oc.Solution == nil {
		return
	}
	fmt.Fprintf(out, "objective: %.4f\n", oc.Objective)
	arcs := make([]string, len(oc.Solution.Arcs))
	for i, a := range oc.Solution.Arcs {
		arcs[i] = a.String()
	}
	fmt.Fprintf(out, "arcs:      %s\n", strings.Join(arcs, " "))
	for i, r := range oc.Solution.Routes() {
		fmt.Fprintf(out, "route %d:   %v\n", i+1, r.Nodes)
	}
	for _, c := range oc.Subtours {
		fmt.Fprintf(out, "subtour:   %v (not connected to the depot)\n", c.Nodes)
	}
}

func compare(ctx context.Context, inst *instance.Instance, names []string, opts solver.Options, bopts []vrptw.Option, out io.Writer) error {
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	res, err := vrptw.Compare(ctx, inst, names, opts, bopts...)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOLVER\tSTATUS\tOBJECTIVE\tSUBTOURS\tTIME")
	for _, c := range res {
		if c.Err != nil {
			status := "error"
			if errors.Is(c.Err, solver.ErrSolverUnavailable) {
				status = "unavailable"
			}
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\n", c.Solver, status)
			continue
		}
		obj := "-"
		if c.Outcome.Solution != nil {
			obj = fmt.Sprintf("%.4f", c.Outcome.Objective)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%v\n", c.Solver, c.Outcome.Status, obj, len(c.Outcome.Subtours), c.Outcome.SolveTime.Round(time.Millisecond))
	}
	return tw.Flush()
}

func drawSVG(path string, inst *instance.Instance, sol vrptw.Solution) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.SVG(fh, inst, sol, render.Options{Labels: true}); err != nil {
		fh.Close()
		return fmt.Errorf("draw %s: %w", path, err)
	}
	return fh.Close()
}
