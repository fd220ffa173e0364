// Package render draws an instance and its selected arcs as an SVG image.
package render

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"math"

	"vrptw/internal/instance"
	"vrptw/internal/vrptw"
)

// Options control the drawing. Zero values select the defaults.
type Options struct {
	Width   float64
	Height  float64
	Margin  float64
	Labels  bool
	Palette []string
}

var defaultPalette = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#9467bd", "#8c564b", "#e377c2", "#17becf", "#bcbd22"}

const subtourColor = "#d62728"

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 800
	}
	if o.Height <= 0 {
		o.Height = 800
	}
	if o.Margin <= 0 {
		o.Margin = 20
	}
	if len(o.Palette) == 0 {
		o.Palette = defaultPalette
	}
	return o
}

// SVG writes the nodes of inst and the arcs of sol. Each route gets its own
// colour; subtours are drawn dashed in red. The depot is the black square.
func SVG(w io.Writer, inst *instance.Instance, sol vrptw.Solution, opts Options) error {
	o := opts.withDefaults()
	proj := project(inst, o)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g">`+"\n", o.Width, o.Height, o.Width, o.Height)
	fmt.Fprintf(bw, `<rect width="100%%" height="100%%" fill="white"/>`+"\n")
	if name := inst.Name(); name != "" {
		fmt.Fprintf(bw, `<title>%s</title>`+"\n", html.EscapeString(name))
	}

	route := 0
	for _, c := range vrptw.Cycles(sol.Arcs) {
		color, dash := o.Palette[route%len(o.Palette)], ""
		if c.Subtour {
			color, dash = subtourColor, ` stroke-dasharray="6 4"`
		} else {
			route++
		}
		nodes := c.Nodes
		if !c.Open {
			nodes = append(nodes[:len(nodes):len(nodes)], nodes[0])
		}
		for k := 0; k+1 < len(nodes); k++ {
			a, okA := proj(nodes[k])
			b, okB := proj(nodes[k+1])
			if !okA || !okB {
				return fmt.Errorf("render: arc %d->%d references unknown node", nodes[k], nodes[k+1])
			}
			fmt.Fprintf(bw, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="1.5"%s/>`+"\n", a.X, a.Y, b.X, b.Y, color, dash)
		}
	}

	for p := 0; p < inst.Len(); p++ {
		id := inst.ID(p)
		pt, _ := proj(id)
		if id == instance.DepotID {
			fmt.Fprintf(bw, `<rect x="%.2f" y="%.2f" width="10" height="10" fill="black"/>`+"\n", pt.X-5, pt.Y-5)
		} else {
			fmt.Fprintf(bw, `<circle cx="%.2f" cy="%.2f" r="3" fill="#444"/>`+"\n", pt.X, pt.Y)
		}
		if o.Labels {
			fmt.Fprintf(bw, `<text x="%.2f" y="%.2f" font-size="10">%d</text>`+"\n", pt.X+4, pt.Y-4, id)
		}
	}
	bw.WriteString("</svg>\n")
	return bw.Flush()
}

// project maps instance coordinates onto the canvas, y pointing up.
func project(inst *instance.Instance, o Options) func(id int) (instance.Point, bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for p := 0; p < inst.Len(); p++ {
		c := inst.Coord(p)
		minX, maxX = math.Min(minX, c.X), math.Max(maxX, c.X)
		minY, maxY = math.Min(minY, c.Y), math.Max(maxY, c.Y)
	}
	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	scale := math.Min(o.Width-2*o.Margin, o.Height-2*o.Margin) / span
	return func(id int) (instance.Point, bool) {
		p, ok := inst.Position(id)
		if !ok {
			return instance.Point{}, false
		}
		c := inst.Coord(p)
		return instance.Point{
			X: o.Margin + (c.X-minX)*scale,
			Y: o.Height - o.Margin - (c.Y-minY)*scale,
		}, true
	}
}
