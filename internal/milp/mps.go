package milp

import (
	"bufio"
	"fmt"
	"io"
	"math"
)

type entry struct {
	row  string
	coef float64
}

// WriteMPS writes the model in free MPS format. Binary columns are written
// inside INTORG/INTEND markers with BV bounds. Columns keep declaration order,
// which readers reporting solutions by column number rely on.
func (m *Model) WriteMPS(w io.Writer) error {
	if len(m.vars) == 0 {
		return fmt.Errorf("milp: write mps: model %q has no variables", m.Name)
	}
	cols := make([][]entry, len(m.vars))
	for _, t := range nonZero(m.obj) {
		cols[t.Var] = append(cols[t.Var], entry{row: "obj", coef: t.Coef})
	}
	for _, c := range m.cons {
		for _, t := range c.Terms {
			cols[t.Var] = append(cols[t.Var], entry{row: c.Name, coef: t.Coef})
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "NAME %s\n", m.Name)
	bw.WriteString("ROWS\n N obj\n")
	for _, c := range m.cons {
		fmt.Fprintf(bw, " %s %s\n", rowType(c.Sense), c.Name)
	}

	bw.WriteString("COLUMNS\n")
	inInt, marker := false, 0
	for i, v := range m.vars {
		isInt := v.Kind == Binary
		if isInt != inInt {
			if isInt {
				fmt.Fprintf(bw, " M%d 'MARKER' 'INTORG'\n", marker)
			} else {
				fmt.Fprintf(bw, " M%d 'MARKER' 'INTEND'\n", marker)
			}
			marker++
			inInt = isInt
		}
		if len(cols[i]) == 0 {
			fmt.Fprintf(bw, " %s obj 0\n", v.Name)
			continue
		}
		for _, e := range cols[i] {
			fmt.Fprintf(bw, " %s %s %s\n", v.Name, e.row, num(e.coef))
		}
	}
	if inInt {
		fmt.Fprintf(bw, " M%d 'MARKER' 'INTEND'\n", marker)
	}

	bw.WriteString("RHS\n")
	for _, c := range m.cons {
		if c.RHS != 0 {
			fmt.Fprintf(bw, " RHS %s %s\n", c.Name, num(c.RHS))
		}
	}

	bw.WriteString("BOUNDS\n")
	for _, v := range m.vars {
		if v.Kind == Binary {
			fmt.Fprintf(bw, " BV BND %s\n", v.Name)
			continue
		}
		switch {
		case math.IsInf(v.Lower, -1) && math.IsInf(v.Upper, 1):
			fmt.Fprintf(bw, " FR BND %s\n", v.Name)
			continue
		case math.IsInf(v.Lower, -1):
			fmt.Fprintf(bw, " MI BND %s\n", v.Name)
		case v.Lower != 0:
			fmt.Fprintf(bw, " LO BND %s %s\n", v.Name, num(v.Lower))
		}
		if !math.IsInf(v.Upper, 1) {
			fmt.Fprintf(bw, " UP BND %s %s\n", v.Name, num(v.Upper))
		}
	}
	bw.WriteString("ENDATA\n")
	return bw.Flush()
}

func rowType(s Sense) string {
	switch s {
	case LessEq:
		return "L"
	case GreaterEq:
		return "G"
	default:
		return "E"
	}
}
