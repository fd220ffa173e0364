// Package instance holds the immutable VRPTW problem instance fed to the model builder.
package instance

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInstance is returned when an instance is malformed or internally inconsistent.
var ErrInvalidInstance = errors.New("invalid instance")

// DepotID is the node id reserved for the depot.
const DepotID = 0

// symTol bounds the accepted asymmetry of the distance matrix.
const symTol = 1e-9

// Point is a node location in the plane.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// TimeWindow bounds the service start time at a node.
type TimeWindow struct {
	Earliest float64 `json:"earliest" yaml:"earliest"`
	Latest   float64 `json:"latest" yaml:"latest"`
}

// Data is the mutable, serializable form of an instance. Maps are keyed by node id;
// Distance, when given, is indexed by position in Nodes.
type Data struct {
	Name        string             `json:"name,omitempty" yaml:"name,omitempty"`
	Vehicles    int                `json:"vehicles" yaml:"vehicles"`
	Capacity    float64            `json:"capacity" yaml:"capacity"`
	Nodes       []int              `json:"nodes" yaml:"nodes"`
	Demand      map[int]float64    `json:"demand" yaml:"demand"`
	Coords      map[int]Point      `json:"coords" yaml:"coords"`
	TimeWindows map[int]TimeWindow `json:"timeWindows" yaml:"timeWindows"`
	ServiceTime map[int]float64    `json:"serviceTime" yaml:"serviceTime"`
	Distance    [][]float64        `json:"distance,omitempty" yaml:"distance,omitempty"`
}

// Instance is a validated problem instance. Node data is addressed by position
// (0..Len()-1); ID maps a position back to the node id. Position 0 is always the depot.
type Instance struct {
	name     string
	vehicles int
	capacity float64
	ids      []int
	pos      map[int]int
	demand   []float64
	coords   []Point
	windows  []TimeWindow
	service  []float64
	dist     [][]float64
}

// New validates d and returns an instance holding private copies of its data.
// When d.Distance is nil the Euclidean distance matrix of the coordinates is used.
// The depot is moved to position 0; customers keep their relative order.
func New(d Data) (*Instance, error) {
	if err := validateHeader(d); err != nil {
		return nil, err
	}

	order, err := depotFirst(d.Nodes)
	if err != nil {
		return nil, err
	}

	n := len(order)
	in := &Instance{
		name:     d.Name,
		vehicles: d.Vehicles,
		capacity: d.Capacity,
		ids:      make([]int, n),
		pos:      make(map[int]int, n),
		demand:   make([]float64, n),
		coords:   make([]Point, n),
		windows:  make([]TimeWindow, n),
		service:  make([]float64, n),
	}
	for p, src := range order {
		id := d.Nodes[src]
		in.ids[p] = id
		in.pos[id] = p

		dem, ok := d.Demand[id]
		if !ok {
			return nil, invalid("node %d has no demand", id)
		}
		xy, ok := d.Coords[id]
		if !ok {
			return nil, invalid("node %d has no coordinates", id)
		}
		tw, ok := d.TimeWindows[id]
		if !ok {
			return nil, invalid("node %d has no time window", id)
		}
		st, ok := d.ServiceTime[id]
		if !ok {
			return nil, invalid("node %d has no service time", id)
		}
		in.demand[p], in.coords[p], in.windows[p], in.service[p] = dem, xy, tw, st
	}

	if d.Distance == nil {
		in.dist = EuclideanMatrix(in.coords, -1)
	} else {
		if err := checkShape(d.Distance, n); err != nil {
			return nil, err
		}
		in.dist = make([][]float64, n)
		for p, src := range order {
			in.dist[p] = make([]float64, n)
			for q, dst := range order {
				in.dist[p][q] = d.Distance[src][dst]
			}
		}
	}

	if err := in.validate(); err != nil {
		return nil, err
	}
	return in, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInstance, fmt.Sprintf(format, args...))
}

func validateHeader(d Data) error {
	if d.Vehicles < 1 {
		return invalid("vehicles must be >= 1, got %d", d.Vehicles)
	}
	if !(d.Capacity > 0) || math.IsInf(d.Capacity, 0) {
		return invalid("capacity must be positive and finite, got %v", d.Capacity)
	}
	if len(d.Nodes) == 0 {
		return invalid("no nodes")
	}
	return nil
}

// depotFirst returns indices into nodes with the depot first.
func depotFirst(nodes []int) ([]int, error) {
	seen := make(map[int]struct{}, len(nodes))
	depot := -1
	order := make([]int, 0, len(nodes))
	order = append(order, 0) // placeholder for the depot
	for i, id := range nodes {
		if _, dup := seen[id]; dup {
			return nil, invalid("duplicate node id %d", id)
		}
		seen[id] = struct{}{}
		if id < 0 {
			return nil, invalid("node id %d is negative", id)
		}
		if id == DepotID {
			depot = i
			continue
		}
		order = append(order, i)
	}
	if depot < 0 {
		return nil, invalid("depot node %d missing", DepotID)
	}
	order[0] = depot
	return order, nil
}

func checkShape(m [][]float64, n int) error {
	if len(m) != n {
		return invalid("distance matrix has %d rows, want %d", len(m), n)
	}
	for i, row := range m {
		if len(row) != n {
			return invalid("distance row %d has %d columns, want %d", i, len(row), n)
		}
	}
	return nil
}

func (in *Instance) validate() error {
	horizon := in.windows[0].Latest
	if in.demand[0] != 0 {
		return invalid("depot demand must be 0, got %v", in.demand[0])
	}
	if in.windows[0].Earliest != 0 {
		return invalid("depot window must open at 0, got %v", in.windows[0].Earliest)
	}
	if !(horizon > 0) || math.IsInf(horizon, 0) {
		return invalid("horizon must be positive and finite, got %v", horizon)
	}
	for p, id := range in.ids {
		if in.demand[p] < 0 || math.IsNaN(in.demand[p]) {
			return invalid("node %d has negative demand %v", id, in.demand[p])
		}
		if in.service[p] < 0 || math.IsNaN(in.service[p]) {
			return invalid("node %d has negative service time %v", id, in.service[p])
		}
		tw := in.windows[p]
		if tw.Earliest < 0 || tw.Latest > horizon || tw.Earliest > tw.Latest {
			return invalid("node %d window [%v,%v] not within [0,%v]", id, tw.Earliest, tw.Latest, horizon)
		}
	}
	n := len(in.ids)
	for i := 0; i < n; i++ {
		if in.dist[i][i] != 0 {
			return invalid("distance[%d][%d] = %v, want 0", in.ids[i], in.ids[i], in.dist[i][i])
		}
		for j := i + 1; j < n; j++ {
			a, b := in.dist[i][j], in.dist[j][i]
			if a < 0 || math.IsNaN(a) || math.IsInf(a, 0) || b < 0 || math.IsNaN(b) || math.IsInf(b, 0) {
				return invalid("distance between %d and %d is not a finite non-negative value", in.ids[i], in.ids[j])
			}
			if math.Abs(a-b) > symTol {
				return invalid("distance matrix not symmetric at (%d,%d): %v != %v", in.ids[i], in.ids[j], a, b)
			}
		}
	}
	return nil
}

// Name, Vehicles and Capacity return the instance header.
func (in *Instance) Name() string      { return in.name }
func (in *Instance) Vehicles() int     { return in.vehicles }
func (in *Instance) Capacity() float64 { return in.capacity }

// Len is the number of nodes including the depot.
func (in *Instance) Len() int { return len(in.ids) }

// ID returns the node id at position p.
func (in *Instance) ID(p int) int { return in.ids[p] }

// Position returns the position of node id.
func (in *Instance) Position(id int) (int, bool) {
	p, ok := in.pos[id]
	return p, ok
}

// IDs returns a copy of the node ids in position order.
func (in *Instance) IDs() []int { return append([]int(nil), in.ids...) }

// Per-node data, indexed by position. Distance is the travel time from p to q.
func (in *Instance) Demand(p int) float64      { return in.demand[p] }
func (in *Instance) Coord(p int) Point         { return in.coords[p] }
func (in *Instance) Window(p int) TimeWindow   { return in.windows[p] }
func (in *Instance) Service(p int) float64     { return in.service[p] }
func (in *Instance) Distance(p, q int) float64 { return in.dist[p][q] }

// Horizon is the global planning horizon, the latest time of the depot window.
func (in *Instance) Horizon() float64 { return in.windows[0].Latest }

// TotalDemand sums the demand over all nodes.
func (in *Instance) TotalDemand() float64 {
	sum := 0.0
	for _, d := range in.demand {
		sum += d
	}
	return sum
}

// Data returns a serializable copy of the instance, including its distance matrix.
func (in *Instance) Data() Data {
	n := len(in.ids)
	d := Data{
		Name:        in.name,
		Vehicles:    in.vehicles,
		Capacity:    in.capacity,
		Nodes:       append([]int(nil), in.ids...),
		Demand:      make(map[int]float64, n),
		Coords:      make(map[int]Point, n),
		TimeWindows: make(map[int]TimeWindow, n),
		ServiceTime: make(map[int]float64, n),
		Distance:    make([][]float64, n),
	}
	for p, id := range in.ids {
		d.Demand[id] = in.demand[p]
		d.Coords[id] = in.coords[p]
		d.TimeWindows[id] = in.windows[p]
		d.ServiceTime[id] = in.service[p]
		d.Distance[p] = append([]float64(nil), in.dist[p]...)
	}
	return d
}

// Truncate returns a new instance with the depot and the first n customers.
// n <= 0 or n >= the number of customers returns the receiver.
func (in *Instance) Truncate(n int) (*Instance, error) {
	if n <= 0 || n >= len(in.ids)-1 {
		return in, nil
	}
	d := in.Data()
	keep := d.Nodes[:n+1]
	sub := Data{
		Name:        d.Name,
		Vehicles:    d.Vehicles,
		Capacity:    d.Capacity,
		Nodes:       append([]int(nil), keep...),
		Demand:      map[int]float64{},
		Coords:      map[int]Point{},
		TimeWindows: map[int]TimeWindow{},
		ServiceTime: map[int]float64{},
		Distance:    make([][]float64, n+1),
	}
	for p, id := range keep {
		sub.Demand[id] = d.Demand[id]
		sub.Coords[id] = d.Coords[id]
		sub.TimeWindows[id] = d.TimeWindows[id]
		sub.ServiceTime[id] = d.ServiceTime[id]
		sub.Distance[p] = append([]float64(nil), d.Distance[p][:n+1]...)
	}
	return New(sub)
}
