package diagram

import "errors"

var (
	ErrEmpty          = errors.New("diagram: map has no points")
	ErrNotRectangular = errors.New("diagram: map is not a rectangular grid")
	ErrOutOfRange     = errors.New("diagram: max SOC outside [0, 1]")
)

// Point is one node of a diagnostic map.
type Point struct {
	LogEll float64
	LogXi  float64
	SOC    float64 // maximum SOC reached before cut-off
}

// Map is a set of points over a (log ell, log Xi) grid.
type Map struct {
	Points []Point
}

// NewMap returns a map holding a copy of points.
func NewMap(points []Point) *Map {
	return &Map{Points: append([]Point(nil), points...)}
}

// Len returns the number of points.
func (m *Map) Len() int { return len(m.Points) }
