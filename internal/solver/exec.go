package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"vrptw/internal/milp"
)

// logTail bounds how much solver console output is kept on a Result.
const logTail = 4096

// run is what a backend needs to know about a finished process.
type run struct {
	solution io.Reader
	output   []byte
}

// backend drives a solver binary through files: write the model, run, parse the solution file.
type backend struct {
	name   string
	bin    string
	format string // "lp" or "mps"
	opts   Options
	args   func(model, solution string, o Options) []string
	parse  func(r run, m *milp.Model) (Result, error)
	// extra files written next to the model, keyed by file name
	extra func(o Options) map[string]string
}

func (b *backend) Name() string { return b.name }

func (b *backend) executable() string {
	if b.opts.Binary != "" {
		return b.opts.Binary
	}
	return b.bin
}

// Available reports whether the solver binary can be found.
func (b *backend) Available() bool {
	_, err := exec.LookPath(b.executable())
	return err == nil
}

func (b *backend) Solve(ctx context.Context, m *milp.Model) (Result, error) {
	exe, err := exec.LookPath(b.executable())
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrSolverUnavailable, b.name, err)
	}

	dir, err := os.MkdirTemp(b.opts.WorkDir, "vrptw-"+b.name+"-*")
	if err != nil {
		return Result{}, fmt.Errorf("solve %s: create work dir: %w", b.name, err)
	}
	if !b.opts.KeepFiles {
		defer os.RemoveAll(dir)
	}

	modelPath := filepath.Join(dir, "model."+b.format)
	solPath := filepath.Join(dir, "solution.txt")
	if err := writeModel(m, modelPath, b.format); err != nil {
		return Result{}, fmt.Errorf("solve %s: %w", b.name, err)
	}
	if b.extra != nil {
		for name, content := range b.extra(b.opts) {
			if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
				return Result{}, fmt.Errorf("solve %s: write %s: %w", b.name, name, err)
			}
		}
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, exe, b.args(modelPath, solPath, b.opts)...)
	cmd.Dir = dir
	out, runErr := cmd.CombinedOutput()
	elapsed := time.Since(start)
	if ctx.Err() != nil {
		return Result{}, fmt.Errorf("solve %s: %w", b.name, ctx.Err())
	}

	sol, err := os.ReadFile(solPath)
	if err != nil {
		if runErr != nil {
			return Result{}, fmt.Errorf("%w: %s exited: %v: %s", ErrSolverUnavailable, b.name, runErr, tail(out, 512))
		}
		return Result{}, fmt.Errorf("%w: %s wrote no solution: %v", ErrSolverUnavailable, b.name, err)
	}

	res, err := b.parse(run{solution: bytes.NewReader(sol), output: out}, m)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrSolverUnavailable, b.name, err)
	}
	res.Solver = b.name
	res.Elapsed = elapsed
	res.Log = tail(out, logTail)
	if !res.Status.HasSolution() {
		res.Values = nil
	}
	return res, nil
}

func writeModel(m *milp.Model, path, format string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("write model: %w", cerr)
		}
	}()
	switch format {
	case "lp":
		return m.WriteLP(f)
	case "mps":
		return m.WriteMPS(f)
	default:
		return errors.New("write model: unknown format " + format)
	}
}

// assign stores value for the named variable; names the model does not know are ignored.
func assign(values []float64, m *milp.Model, name string, value float64) {
	if i, ok := m.VarIndex(name); ok {
		values[i] = value
	}
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%g", d.Seconds())
}
