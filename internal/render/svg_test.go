package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrptw/internal/instance"
	"vrptw/internal/vrptw"
)

func square(t *testing.T) *instance.Instance {
	t.Helper()
	d := instance.Data{
		Name:        "sq<1>",
		Vehicles:    2,
		Capacity:    10,
		Nodes:       []int{0, 1, 2, 3, 4},
		Demand:      map[int]float64{0: 0, 1: 1, 2: 1, 3: 1, 4: 1},
		Coords:      map[int]instance.Point{0: {X: 0, Y: 0}, 1: {X: 10, Y: 0}, 2: {X: 10, Y: 10}, 3: {X: 0, Y: 10}, 4: {X: 5, Y: 5}},
		TimeWindows: map[int]instance.TimeWindow{0: {Latest: 100}, 1: {Latest: 100}, 2: {Latest: 100}, 3: {Latest: 100}, 4: {Latest: 100}},
		ServiceTime: map[int]float64{0: 0, 1: 0, 2: 0, 3: 0, 4: 0},
	}
	inst, err := instance.New(d)
	require.NoError(t, err)
	return inst
}

func TestSVG(t *testing.T) {
	sol := vrptw.Solution{Arcs: []vrptw.Arc{{From: 0, To: 1}, {From: 1, To: 2}, {From: 2, To: 0}, {From: 3, To: 4}, {From: 4, To: 3}}}
	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, square(t), sol, Options{Width: 220, Height: 220, Margin: 10, Labels: true}))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, `<svg xmlns="http://www.w3.org/2000/svg" width="220" height="220"`))
	assert.Contains(t, out, "<title>sq&lt;1&gt;</title>")
	assert.Equal(t, 5, strings.Count(out, "<line"))
	assert.Equal(t, 2, strings.Count(out, `stroke-dasharray`))
	assert.Equal(t, 4, strings.Count(out, "<circle"))
	// depot at the bottom-left corner of the drawing area
	assert.Contains(t, out, `<rect x="5.00" y="205.00" width="10" height="10" fill="black"/>`)
	// node 2 projects to the top-right corner
	assert.Contains(t, out, `x2="210.00" y2="10.00"`)
	assert.True(t, strings.HasSuffix(out, "</svg>\n"))
}

func TestSVGUnknownNode(t *testing.T) {
	sol := vrptw.Solution{Arcs: []vrptw.Arc{{From: 0, To: 9}, {From: 9, To: 0}}}
	err := SVG(&bytes.Buffer{}, square(t), sol, Options{})
	assert.Error(t, err)
}
