// Package diagram holds the diagnostic map produced by a sweep: the maximum
// state of charge over a grid of dimensionless ell and Xi values.
package diagram

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// Sort orders the points by log ell, then log Xi, both ascending.
func (m *Map) Sort() {
	sort.SliceStable(m.Points, func(i, j int) bool {
		a, b := m.Points[i], m.Points[j]
		if a.LogEll != b.LogEll {
			return a.LogEll < b.LogEll
		}
		return a.LogXi < b.LogXi
	})
}

// Axes returns the sorted unique log ell and log Xi values.
func (m *Map) Axes() (ells, xis []float64) {
	ells = make([]float64, 0, len(m.Points))
	xis = make([]float64, 0, len(m.Points))
	for _, p := range m.Points {
		ells = append(ells, p.LogEll)
		xis = append(xis, p.LogXi)
	}
	slices.Sort(ells)
	slices.Sort(xis)
	return slices.Compact(ells), slices.Compact(xis)
}

// Validate checks that every log ell value appears with the same set of log
// Xi values and that each grid node appears exactly once.
func (m *Map) Validate() error {
	if len(m.Points) == 0 {
		return ErrEmpty
	}
	ells, xis := m.Axes()
	if len(ells)*len(xis) != len(m.Points) {
		return fmt.Errorf("%w: %d points for a %d x %d grid",
			ErrNotRectangular, len(m.Points), len(ells), len(xis))
	}

	type node struct{ ell, xi float64 }
	seen := make(map[node]bool, len(m.Points))
	for i, p := range m.Points {
		if math.IsNaN(p.LogEll) || math.IsNaN(p.LogXi) {
			return fmt.Errorf("%w: point %d has a NaN coordinate", ErrNotRectangular, i)
		}
		k := node{p.LogEll, p.LogXi}
		if seen[k] {
			return fmt.Errorf("%w: duplicate node (%g, %g)", ErrNotRectangular, p.LogEll, p.LogXi)
		}
		seen[k] = true
	}
	return nil
}

// CheckRange reports the first point whose SOC is outside [0, 1] or NaN.
func (m *Map) CheckRange() error {
	for i, p := range m.Points {
		if !(p.SOC >= 0 && p.SOC <= 1) {
			return fmt.Errorf("%w: point %d (%g, %g) has %g", ErrOutOfRange, i, p.LogEll, p.LogXi, p.SOC)
		}
	}
	return nil
}

// Grid returns the SOC values as grid[i][j] for ells[i], xis[j]. The map
// must pass Validate.
func (m *Map) Grid() (ells, xis []float64, grid [][]float64, err error) {
	if err := m.Validate(); err != nil {
		return nil, nil, nil, err
	}
	ells, xis = m.Axes()
	grid = make([][]float64, len(ells))
	for i := range grid {
		grid[i] = make([]float64, len(xis))
	}
	for _, p := range m.Points {
		i, _ := slices.BinarySearch(ells, p.LogEll)
		j, _ := slices.BinarySearch(xis, p.LogXi)
		grid[i][j] = p.SOC
	}
	return ells, xis, grid, nil
}

// Columns splits the points into parallel slices.
func (m *Map) Columns() (ells, xis, socs []float64) {
	ells = make([]float64, len(m.Points))
	xis = make([]float64, len(m.Points))
	socs = make([]float64, len(m.Points))
	for i, p := range m.Points {
		ells[i], xis[i], socs[i] = p.LogEll, p.LogXi, p.SOC
	}
	return ells, xis, socs
}
