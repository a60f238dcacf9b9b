// Package sweep builds a diagnostic map by running the particle solver over
// a rectangular (log ell, log Xi) grid in parallel.
package sweep

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/fernandezfran/galpynostatic/internal/diagram"
	"github.com/fernandezfran/galpynostatic/internal/isotherm"
	"github.com/fernandezfran/galpynostatic/internal/kernel"
)

var ErrInvalidGrid = errors.New("sweep: invalid grid")

// Params configures a map sweep. Threads below one uses every hardware
// thread.
type Params struct {
	EllMin, EllMax float64
	XiMin, XiMax   float64
	NumEll, NumXi  int
	Threads        int

	Geometry    int
	GridSize    int
	TimeSteps   int
	Each        int
	Temperature float64
	Mass        float64
	Density     float64
	Resistance  float64
	G           float64
}

// DefaultParams returns a 100 x 100 spherical sweep over log ell in [-4, 1]
// and log Xi in [-4, 2]. Density still needs to be set.
func DefaultParams() Params {
	return Params{
		EllMin: -4, EllMax: 1,
		XiMin: -4, XiMax: 2,
		NumEll: 100, NumXi: 100,
		Geometry:    3,
		GridSize:    1000,
		TimeSteps:   100000,
		Each:        100,
		Temperature: 298.0,
		Mass:        1.0,
	}
}

// Axes returns the evenly spaced log ell and log Xi values.
func (p Params) Axes() (ells, xis []float64, err error) {
	if ells, err = span(p.EllMin, p.EllMax, p.NumEll); err != nil {
		return nil, nil, fmt.Errorf("log ell axis: %w", err)
	}
	if xis, err = span(p.XiMin, p.XiMax, p.NumXi); err != nil {
		return nil, nil, fmt.Errorf("log xi axis: %w", err)
	}
	return ells, xis, nil
}

func span(lo, hi float64, n int) ([]float64, error) {
	switch {
	case n < 1:
		return nil, fmt.Errorf("%w: %d points", ErrInvalidGrid, n)
	case n == 1:
		return []float64{lo}, nil
	case !(hi > lo):
		return nil, fmt.Errorf("%w: bounds [%g, %g]", ErrInvalidGrid, lo, hi)
	}
	return floats.Span(make([]float64, n), lo, hi), nil
}

// Scalars builds the kernel parameter block for p and iso.
func (p Params) Scalars(iso *isotherm.Isotherm) kernel.Scalars {
	return kernel.Scalars{
		G:                p.G,
		GridSize:         p.GridSize,
		TimeSteps:        p.TimeSteps,
		Each:             p.Each,
		Temperature:      p.Temperature,
		Mass:             p.Mass,
		Density:          p.Density,
		Resistance:       p.Resistance,
		Vcut:             iso.Vcut,
		SpecificCapacity: iso.SpecificCapacity,
		Geometry:         p.Geometry,
	}
}

// Run sweeps the grid of p with k and returns the map sorted by log ell,
// then log Xi. The call blocks until every grid point is done.
func Run(k *kernel.Kernel, p Params, iso *isotherm.Isotherm) (*diagram.Map, error) {
	if iso == nil {
		return nil, isotherm.ErrMissingCapacity
	}
	ells, xis, err := p.Axes()
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(ells)*len(xis))
	if err := k.RunMap(iso.Flags(), p.Scalars(iso), iso.Spline(), ells, xis, p.Threads, out); err != nil {
		return nil, fmt.Errorf("running map kernel: %w", err)
	}

	m := &diagram.Map{Points: make([]diagram.Point, 0, len(out))}
	for i, l := range ells {
		for j, x := range xis {
			m.Points = append(m.Points, diagram.Point{LogEll: l, LogXi: x, SOC: out[i*len(xis)+j]})
		}
	}
	m.Sort()
	return m, nil
}
