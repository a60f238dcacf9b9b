package isotherm

import "errors"

var (
	ErrMissingCapacity = errors.New("isotherm: no isotherm table and no specific capacity given")
	ErrTooShort        = errors.New("isotherm: table needs at least two rows")
	ErrLengthMismatch  = errors.New("isotherm: capacity and potential lengths differ")
	ErrNotIncreasing   = errors.New("isotherm: capacity must be strictly increasing")
	ErrBadCapacity     = errors.New("isotherm: maximum capacity must be positive")
)

// Isotherm is the equilibrium potential as a function of normalized
// capacity, stored as a piecewise cubic. An analytic isotherm carries a
// single row and tells the solver to use the Frumkin closed form.
type Isotherm struct {
	// Capacity is normalized to [0, 1] and strictly increasing.
	Capacity  []float64
	Potential []float64

	// Per-row cubic coefficients; row i covers [Capacity[i], Capacity[i+1]).
	// The last row continues the spline past the final node.
	A []float64
	B []float64
	C []float64
	D []float64

	SpecificCapacity float64 // mAh/g, the maximum of the raw capacity
	Vcut             float64 // V, the minimum of the raw potential

	analytic bool
}

// Analytic reports whether the solver should use the Frumkin fallback.
func (iso *Isotherm) Analytic() bool { return iso.analytic }

// Len returns the number of table rows.
func (iso *Isotherm) Len() int { return len(iso.Capacity) }
