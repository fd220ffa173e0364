package milp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
)

// termsPerLine keeps LP rows short enough for line-oriented readers.
const termsPerLine = 8

// WriteLP writes the model in CPLEX LP format.
func (m *Model) WriteLP(w io.Writer) error {
	if len(m.vars) == 0 {
		return fmt.Errorf("milp: write lp: model %q has no variables", m.Name)
	}
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "\\ Problem: %s\n", m.Name)
	bw.WriteString("Minimize\n obj:")
	obj := nonZero(m.obj)
	if len(obj) == 0 {
		obj = Expr{{Var: 0, Coef: 0}}
	}
	m.writeTerms(bw, obj)
	bw.WriteString("\nSubject To\n")
	for _, c := range m.cons {
		fmt.Fprintf(bw, " %s:", c.Name)
		m.writeTerms(bw, c.Terms)
		fmt.Fprintf(bw, " %s %s\n", c.Sense, num(c.RHS))
	}

	bw.WriteString("Bounds\n")
	for _, v := range m.vars {
		if v.Kind == Binary {
			continue
		}
		switch {
		case math.IsInf(v.Lower, -1) && math.IsInf(v.Upper, 1):
			fmt.Fprintf(bw, " %s free\n", v.Name)
		case math.IsInf(v.Upper, 1):
			fmt.Fprintf(bw, " %s >= %s\n", v.Name, num(v.Lower))
		case math.IsInf(v.Lower, -1):
			fmt.Fprintf(bw, " -inf <= %s <= %s\n", v.Name, num(v.Upper))
		default:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", num(v.Lower), v.Name, num(v.Upper))
		}
	}

	first := true
	n := 0
	for _, v := range m.vars {
		if v.Kind != Binary {
			continue
		}
		if first {
			bw.WriteString("Binaries\n")
			first = false
		}
		bw.WriteString(" " + v.Name)
		if n++; n%termsPerLine == 0 {
			bw.WriteString("\n")
		}
	}
	if n%termsPerLine != 0 {
		bw.WriteString("\n")
	}
	bw.WriteString("End\n")
	return bw.Flush()
}

func (m *Model) writeTerms(bw *bufio.Writer, e Expr) {
	for i, t := range e {
		if i > 0 && i%termsPerLine == 0 {
			bw.WriteString("\n   ")
		}
		sign := "+"
		c := t.Coef
		if c < 0 {
			sign, c = "-", -c
		}
		if i == 0 && sign == "+" {
			sign = ""
		}
		if sign != "" {
			bw.WriteString(" " + sign)
		}
		if c == 1 {
			fmt.Fprintf(bw, " %s", m.vars[t.Var].Name)
		} else {
			fmt.Fprintf(bw, " %s %s", num(c), m.vars[t.Var].Name)
		}
	}
}

func nonZero(e Expr) Expr {
	out := make(Expr, 0, len(e))
	for _, t := range e {
		if t.Coef != 0 {
			out = append(out, t)
		}
	}
	return out
}

func num(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
