package instance

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseOptions controls how a Solomon file is turned into an instance.
type ParseOptions struct {
	// Decimals rounds the Euclidean distances; negative keeps full precision.
	Decimals int
	// Customers keeps only the first n customers when > 0.
	Customers int
}

// DefaultParseOptions keeps full-precision distances and every customer.
var DefaultParseOptions = ParseOptions{Decimals: -1}

// LoadFile parses the Solomon instance at path.
func LoadFile(path string, opts ParseOptions) (*Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load instance: open %q: %w", path, err)
	}
	defer f.Close()

	in, err := ParseSolomon(f, opts)
	if err != nil {
		return nil, fmt.Errorf("load instance %q: %w", path, err)
	}
	return in, nil
}

// ParseSolomon reads the Solomon VRPTW text format:
//
//	C101
//
//	VEHICLE
//	NUMBER     CAPACITY
//	  25         200
//
//	CUSTOMER
//	CUST NO.  XCOORD.  YCOORD.  DEMAND  READY TIME  DUE DATE  SERVICE TIME
//	    0      40       50       0       0          1236      0
//
// Header words are matched case-insensitively; every row after CUSTOMER with
// seven numeric fields is a node.
func ParseSolomon(r io.Reader, opts ParseOptions) (*Instance, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	const (
		stName = iota
		stVehicleHeader
		stVehicle
		stCustomerHeader
		stCustomers
	)

	var (
		d      = Data{Demand: map[int]float64{}, Coords: map[int]Point{}, TimeWindows: map[int]TimeWindow{}, ServiceTime: map[int]float64{}}
		state  = stName
		lineNo int
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		upper := strings.ToUpper(fields[0])

		switch state {
		case stName:
			if upper == "VEHICLE" {
				state = stVehicleHeader
				continue
			}
			d.Name = line
			state = stVehicleHeader
		case stVehicleHeader:
			if upper == "VEHICLE" || upper == "NUMBER" {
				if upper == "NUMBER" {
					state = stVehicle
				}
				continue
			}
			return nil, fmt.Errorf("parse solomon: line %d: expected VEHICLE section, got %q", lineNo, line)
		case stVehicle:
			nums, err := parseFloats(fields)
			if err != nil || len(nums) != 2 {
				return nil, fmt.Errorf("parse solomon: line %d: expected vehicle count and capacity, got %q", lineNo, line)
			}
			d.Vehicles = int(nums[0])
			d.Capacity = nums[1]
			state = stCustomerHeader
		case stCustomerHeader:
			if upper == "CUSTOMER" {
				state = stCustomers
				continue
			}
			return nil, fmt.Errorf("parse solomon: line %d: expected CUSTOMER section, got %q", lineNo, line)
		case stCustomers:
			nums, err := parseFloats(fields)
			if err != nil {
				// column header line(s)
				if len(d.Nodes) == 0 {
					continue
				}
				return nil, fmt.Errorf("parse solomon: line %d: %w", lineNo, err)
			}
			if len(nums) != 7 {
				return nil, fmt.Errorf("parse solomon: line %d: expected 7 fields, got %d", lineNo, len(nums))
			}
			id := int(nums[0])
			d.Nodes = append(d.Nodes, id)
			d.Coords[id] = Point{X: nums[1], Y: nums[2]}
			d.Demand[id] = nums[3]
			d.TimeWindows[id] = TimeWindow{Earliest: nums[4], Latest: nums[5]}
			d.ServiceTime[id] = nums[6]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse solomon: read: %w", err)
	}
	if state != stCustomers || len(d.Nodes) == 0 {
		return nil, fmt.Errorf("parse solomon: %w: no customer section", ErrInvalidInstance)
	}

	pts := make([]Point, len(d.Nodes))
	for i, id := range d.Nodes {
		pts[i] = d.Coords[id]
	}
	d.Distance = EuclideanMatrix(pts, opts.Decimals)

	in, err := New(d)
	if err != nil {
		return nil, fmt.Errorf("parse solomon: %w", err)
	}
	return in.Truncate(opts.Customers)
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("field %d %q is not a number", i+1, f)
		}
		out[i] = v
	}
	return out, nil
}
