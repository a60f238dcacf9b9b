// Package isotherm builds the equilibrium-potential model used by the
// solver, either from an experimental capacity/potential table or as the
// analytic Frumkin fallback.
package isotherm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/fernandezfran/galpynostatic/internal/kernel"
)

// New normalizes capacity by its maximum and fits a natural cubic spline of
// potential over it. The inputs are not modified.
func New(capacity, potential []float64) (*Isotherm, error) {
	if len(capacity) != len(potential) {
		return nil, fmt.Errorf("%w: %d capacity, %d potential", ErrLengthMismatch, len(capacity), len(potential))
	}
	if len(capacity) < 2 {
		return nil, ErrTooShort
	}
	for i, v := range capacity {
		if math.IsNaN(v) || math.IsNaN(potential[i]) {
			return nil, fmt.Errorf("isotherm: row %d holds a NaN", i)
		}
	}

	specific := floats.Max(capacity)
	if !(specific > 0) {
		return nil, fmt.Errorf("%w: got %g", ErrBadCapacity, specific)
	}

	n := len(capacity)
	xs := make([]float64, n)
	floats.ScaleTo(xs, 1/specific, capacity)
	for i := 1; i < n; i++ {
		if !(xs[i] > xs[i-1]) {
			return nil, fmt.Errorf("%w: row %d (%g) after %g", ErrNotIncreasing, i, capacity[i], capacity[i-1])
		}
	}
	ys := append([]float64(nil), potential...)

	var spl interp.NaturalCubic
	if err := spl.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("fitting isotherm spline: %w", err)
	}

	iso := &Isotherm{
		Capacity:         xs,
		Potential:        ys,
		A:                make([]float64, n),
		B:                make([]float64, n),
		C:                make([]float64, n),
		D:                make([]float64, n),
		SpecificCapacity: specific,
		Vcut:             floats.Min(potential),
	}

	slopes := make([]float64, n)
	for i, x := range xs {
		slopes[i] = spl.PredictDerivative(x)
	}
	for i := 0; i < n-1; i++ {
		dx := xs[i+1] - xs[i]
		dy := ys[i+1] - ys[i]
		d0, d1 := slopes[i], slopes[i+1]
		iso.A[i] = ys[i]
		iso.B[i] = d0
		iso.C[i] = (3*dy - (2*d0+d1)*dx) / (dx * dx)
		iso.D[i] = (-2*dy + (d0+d1)*dx) / (dx * dx * dx)
	}
	// natural end condition: no curvature past the last node
	iso.A[n-1] = ys[n-1]
	iso.B[n-1] = slopes[n-1]

	return iso, nil
}

// Analytic returns the one-row table for the Frumkin fallback.
func Analytic(specificCapacity, vcut float64) (*Isotherm, error) {
	if !(specificCapacity > 0) {
		return nil, fmt.Errorf("%w: got %g", ErrMissingCapacity, specificCapacity)
	}
	return &Isotherm{
		Capacity:         []float64{0},
		Potential:        []float64{vcut},
		A:                []float64{0},
		B:                []float64{0},
		C:                []float64{0},
		D:                []float64{0},
		SpecificCapacity: specificCapacity,
		Vcut:             vcut,
		analytic:         true,
	}, nil
}

// FromTable picks the spline model when a table is given and the analytic
// one otherwise. Without a table the specific capacity must be positive.
func FromTable(capacity, potential []float64, specificCapacity, vcut float64) (*Isotherm, error) {
	if len(capacity) == 0 && len(potential) == 0 {
		if !(specificCapacity > 0) {
			return nil, ErrMissingCapacity
		}
		return Analytic(specificCapacity, vcut)
	}
	return New(capacity, potential)
}

// Spline exposes the coefficient table in the layout the kernel reads.
func (iso *Isotherm) Spline() kernel.Spline {
	return kernel.Spline{
		Capacity: iso.Capacity,
		A:        iso.A,
		B:        iso.B,
		C:        iso.C,
		D:        iso.D,
	}
}

// Flags tells the kernel which equilibrium model to use.
func (iso *Isotherm) Flags() kernel.Flags {
	return kernel.Flags{Frumkin: iso.analytic}
}

// At evaluates the spline at normalized capacity x. An analytic isotherm
// has no table to evaluate and returns NaN; see kernel.FrumkinPotential.
func (iso *Isotherm) At(x float64) float64 {
	if iso.analytic {
		return math.NaN()
	}
	return kernel.SplinePotential(iso.Spline(), x)
}
