package instance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangleData() Data {
	return Data{
		Name:     "tri",
		Vehicles: 1,
		Capacity: 10,
		Nodes:    []int{0, 1, 2},
		Demand:   map[int]float64{0: 0, 1: 3, 2: 4},
		Coords:   map[int]Point{0: {0, 0}, 1: {10, 0}, 2: {0, 10}},
		TimeWindows: map[int]TimeWindow{
			0: {0, 100}, 1: {0, 100}, 2: {0, 100},
		},
		ServiceTime: map[int]float64{0: 0, 1: 1, 2: 1},
		Distance: [][]float64{
			{0, 10, 10},
			{10, 0, 15},
			{10, 15, 0},
		},
	}
}

func TestNewCopiesAndExposes(t *testing.T) {
	d := triangleData()
	in, err := New(d)
	require.NoError(t, err)

	d.Distance[0][1] = 99
	d.Demand[1] = 99

	assert.Equal(t, 3, in.Len())
	assert.Equal(t, 10.0, in.Distance(0, 1))
	assert.Equal(t, 3.0, in.Demand(1))
	assert.Equal(t, 100.0, in.Horizon())
	assert.Equal(t, 7.0, in.TotalDemand())
	assert.Equal(t, []int{0, 1, 2}, in.IDs())
}

func TestNewMovesDepotFirst(t *testing.T) {
	d := triangleData()
	d.Nodes = []int{2, 0, 1}
	d.Distance = [][]float64{
		{0, 10, 15},
		{10, 0, 10},
		{15, 10, 0},
	}
	in, err := New(d)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 1}, in.IDs())
	p1, ok := in.Position(1)
	require.True(t, ok)
	p2, _ := in.Position(2)
	assert.Equal(t, 15.0, in.Distance(p1, p2))
	assert.Equal(t, 10.0, in.Distance(0, p2))
}

func TestNewComputesEuclideanWhenDistanceMissing(t *testing.T) {
	d := triangleData()
	d.Distance = nil
	in, err := New(d)
	require.NoError(t, err)
	assert.InDelta(t, 14.1421356, in.Distance(1, 2), 1e-6)
}

func TestNewRejectsInvalid(t *testing.T) {
	cases := map[string]func(*Data){
		"no depot":         func(d *Data) { d.Nodes = []int{1, 2}; d.Distance = nil },
		"zero capacity":    func(d *Data) { d.Capacity = 0 },
		"negative cap":     func(d *Data) { d.Capacity = -5 },
		"no vehicles":      func(d *Data) { d.Vehicles = 0 },
		"missing demand":   func(d *Data) { delete(d.Demand, 2) },
		"missing coords":   func(d *Data) { delete(d.Coords, 1) },
		"missing window":   func(d *Data) { delete(d.TimeWindows, 1) },
		"missing service":  func(d *Data) { delete(d.ServiceTime, 2) },
		"duplicate id":     func(d *Data) { d.Nodes = []int{0, 1, 1} },
		"negative demand":  func(d *Data) { d.Demand[1] = -1 },
		"window too late":  func(d *Data) { d.TimeWindows[2] = TimeWindow{0, 200} },
		"window inverted":  func(d *Data) { d.TimeWindows[2] = TimeWindow{50, 40} },
		"asymmetric":       func(d *Data) { d.Distance[1][2] = 16 },
		"non-zero diag":    func(d *Data) { d.Distance[1][1] = 1 },
		"negative dist":    func(d *Data) { d.Distance[0][2], d.Distance[2][0] = -1, -1 },
		"ragged matrix":    func(d *Data) { d.Distance[2] = []float64{10, 15} },
		"short matrix":     func(d *Data) { d.Distance = d.Distance[:2] },
		"depot demand":     func(d *Data) { d.Demand[0] = 1 },
		"no nodes":         func(d *Data) { d.Nodes = nil },
		"depot late open":  func(d *Data) { d.TimeWindows[0] = TimeWindow{5, 100} },
		"negative id":      func(d *Data) { d.Nodes = []int{0, 1, -2} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := triangleData()
			mutate(&d)
			_, err := New(d)
			require.ErrorIs(t, err, ErrInvalidInstance)
		})
	}
}

func TestDemandAboveCapacityIsNotAnInstanceError(t *testing.T) {
	d := triangleData()
	d.Demand[1] = 11
	_, err := New(d)
	require.NoError(t, err)
}

func TestTruncate(t *testing.T) {
	in, err := New(triangleData())
	require.NoError(t, err)

	sub, err := in.Truncate(1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, sub.IDs())
	assert.Equal(t, 10.0, sub.Distance(0, 1))

	same, err := in.Truncate(0)
	require.NoError(t, err)
	assert.Same(t, in, same)
}

func TestDataRoundTrip(t *testing.T) {
	in, err := New(triangleData())
	require.NoError(t, err)
	again, err := New(in.Data())
	require.NoError(t, err)
	assert.Equal(t, in.Data(), again.Data())
}

const sampleSolomon = `C101

VEHICLE
NUMBER     CAPACITY
  25         200

CUSTOMER
CUST NO.  XCOORD.   YCOORD.    DEMAND   READY TIME  DUE DATE   SERVICE   TIME

    0      40         50          0          0       1236          0
    1      45         68         10        912        967         90
    2      45         70         30        825        870         90
    3      42         66         10         65        146         90
`

func TestParseSolomon(t *testing.T) {
	in, err := ParseSolomon(strings.NewReader(sampleSolomon), DefaultParseOptions)
	require.NoError(t, err)

	assert.Equal(t, "C101", in.Name())
	assert.Equal(t, 25, in.Vehicles())
	assert.Equal(t, 200.0, in.Capacity())
	assert.Equal(t, 4, in.Len())
	assert.Equal(t, 1236.0, in.Horizon())
	assert.Equal(t, TimeWindow{Earliest: 825, Latest: 870}, in.Window(2))
	assert.Equal(t, 90.0, in.Service(3))
	assert.InDelta(t, 18.681541, in.Distance(0, 1), 1e-6)
}

func TestParseSolomonOptions(t *testing.T) {
	in, err := ParseSolomon(strings.NewReader(sampleSolomon), ParseOptions{Decimals: 1, Customers: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, in.IDs())
	assert.Equal(t, 18.7, in.Distance(0, 1))
}

func TestParseSolomonErrors(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"no vehicle":      "C1\nCUSTOMER\n0 0 0 0 0 10 0\n",
		"bad vehicle row": "C1\nVEHICLE\nNUMBER CAPACITY\n25\n",
		"short row":       "C1\nVEHICLE\nNUMBER CAPACITY\n2 10\nCUSTOMER\n0 0 0 0 0 10\n",
		"no customers":    "C1\nVEHICLE\nNUMBER CAPACITY\n2 10\nCUSTOMER\nCUST NO.\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSolomon(strings.NewReader(src), DefaultParseOptions)
			require.Error(t, err)
		})
	}
}

func TestEuclideanMatrix(t *testing.T) {
	m := EuclideanMatrix([]Point{{0, 0}, {3, 4}, {6, 8}}, -1)
	assert.Equal(t, 5.0, m[0][1])
	assert.Equal(t, 5.0, m[1][0])
	assert.Equal(t, 10.0, m[0][2])
	assert.Equal(t, 0.0, m[2][2])
}
