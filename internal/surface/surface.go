// Package surface interpolates a diagnostic map with a tensor-product
// natural cubic spline over its log ell and log Xi axes.
package surface

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"

	"github.com/fernandezfran/galpynostatic/internal/diagram"
	"github.com/fernandezfran/galpynostatic/internal/kernel"
)

var ErrTooFewNodes = errors.New("surface: each axis needs at least two nodes")

// Surface is a smooth max-SOC lookup over a rectangular map. Each grid cell
// is a bicubic Hermite patch whose node derivatives come from natural
// splines, which makes the whole surface the tensor-product natural spline
// through the map values. A Surface is immutable and safe for concurrent
// use.
type Surface struct {
	ells []float64
	xis  []float64

	// node values and derivatives, indexed [ell][xi]
	z   [][]float64
	fx  [][]float64
	fy  [][]float64
	fxy [][]float64
}

// New builds the surface of m. The map must be a complete rectangular grid.
func New(m *diagram.Map) (*Surface, error) {
	ells, xis, z, err := m.Grid()
	if err != nil {
		return nil, fmt.Errorf("building surface: %w", err)
	}
	if len(ells) < 2 || len(xis) < 2 {
		return nil, fmt.Errorf("%w: got %d x %d", ErrTooFewNodes, len(ells), len(xis))
	}
	for i := range z {
		for j, v := range z[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("building surface: node (%g, %g) is %g", ells[i], xis[j], v)
			}
		}
	}

	ne, nx := len(ells), len(xis)
	s := &Surface{
		ells: ells,
		xis:  xis,
		z:    z,
		fx:   newGrid(ne, nx),
		fy:   newGrid(ne, nx),
		fxy:  newGrid(ne, nx),
	}

	col := make([]float64, ne)
	for j := 0; j < nx; j++ {
		for i := 0; i < ne; i++ {
			col[i] = z[i][j]
		}
		d, err := nodeSlopes(ells, col)
		if err != nil {
			return nil, err
		}
		for i := 0; i < ne; i++ {
			s.fx[i][j] = d[i]
		}
	}
	for i := 0; i < ne; i++ {
		d, err := nodeSlopes(xis, z[i])
		if err != nil {
			return nil, err
		}
		copy(s.fy[i], d)

		d, err = nodeSlopes(xis, s.fx[i])
		if err != nil {
			return nil, err
		}
		copy(s.fxy[i], d)
	}
	return s, nil
}

func newGrid(rows, cols int) [][]float64 {
	g := make([][]float64, rows)
	for i := range g {
		g[i] = make([]float64, cols)
	}
	return g
}

// nodeSlopes returns the first derivative of the natural cubic spline
// through (xs, ys) at every node.
func nodeSlopes(xs, ys []float64) ([]float64, error) {
	var spl interp.NaturalCubic
	if err := spl.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("fitting axis spline: %w", err)
	}
	d := make([]float64, len(xs))
	for i, x := range xs {
		d[i] = spl.PredictDerivative(x)
	}
	return d, nil
}

// SOC returns the interpolated max SOC at (logEll, logXi). Queries outside
// the map, infinities included, are evaluated at the nearest boundary point
// and the result is clipped to [0, 1]. A NaN coordinate is the one input
// that does not give a value in [0, 1]: it gives NaN.
func (s *Surface) SOC(logEll, logXi float64) float64 {
	if math.IsNaN(logEll) || math.IsNaN(logXi) {
		return math.NaN()
	}
	x := kernel.Clip(logEll, s.ells[0], s.ells[len(s.ells)-1])
	y := kernel.Clip(logXi, s.xis[0], s.xis[len(s.xis)-1])
	return kernel.Clip(s.eval(x, y), 0.0, 1.0)
}

// SOCs evaluates SOC at each (ells[k], xis[k]) pair.
func (s *Surface) SOCs(ells, xis []float64) ([]float64, error) {
	if len(ells) != len(xis) {
		return nil, fmt.Errorf("surface: %d log ell values, %d log xi values", len(ells), len(xis))
	}
	out := make([]float64, len(ells))
	for k := range ells {
		out[k] = s.SOC(ells[k], xis[k])
	}
	return out, nil
}

// InDomainEll reports whether logEll lies within the map's log ell range.
func (s *Surface) InDomainEll(logEll float64) bool {
	return logEll >= s.ells[0] && logEll <= s.ells[len(s.ells)-1]
}

// InDomainXi reports whether logXi lies within the map's log Xi range.
func (s *Surface) InDomainXi(logXi float64) bool {
	return logXi >= s.xis[0] && logXi <= s.xis[len(s.xis)-1]
}

// Ells returns a copy of the log ell axis.
func (s *Surface) Ells() []float64 { return append([]float64(nil), s.ells...) }

// Xis returns a copy of the log Xi axis.
func (s *Surface) Xis() []float64 { return append([]float64(nil), s.xis...) }

// cell returns i such that xs[i] <= x <= xs[i+1], for x inside the axis.
func cell(xs []float64, x float64) int {
	i := sort.SearchFloat64s(xs, x)
	// SearchFloat64s gives the first index with xs[i] >= x
	if i > 0 && (i == len(xs) || xs[i] > x) {
		i--
	}
	return min(i, len(xs)-2)
}

func (s *Surface) eval(x, y float64) float64 {
	i := cell(s.ells, x)
	j := cell(s.xis, y)
	hx := s.ells[i+1] - s.ells[i]
	hy := s.xis[j+1] - s.xis[j]
	t := (x - s.ells[i]) / hx
	u := (y - s.xis[j]) / hy

	// Hermite basis: value weights v, slope weights w, for the low and
	// high node of each axis.
	vt := [2]float64{h00(t), h01(t)}
	wt := [2]float64{hx * h10(t), hx * h11(t)}
	vu := [2]float64{h00(u), h01(u)}
	wu := [2]float64{hy * h10(u), hy * h11(u)}

	sum := 0.0
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			ia, jb := i+a, j+b
			sum += vt[a]*vu[b]*s.z[ia][jb] +
				wt[a]*vu[b]*s.fx[ia][jb] +
				vt[a]*wu[b]*s.fy[ia][jb] +
				wt[a]*wu[b]*s.fxy[ia][jb]
		}
	}
	return sum
}

func h00(t float64) float64 { return (2*t-3)*t*t + 1 }
func h01(t float64) float64 { return (3 - 2*t) * t * t }
func h10(t float64) float64 { return ((t-2)*t + 1) * t }
func h11(t float64) float64 { return (t - 1) * t * t }
