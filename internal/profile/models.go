package profile

import "errors"

var ErrInvalidParams = errors.New("profile: invalid parameters")

// Params describes one galvanostatic charge of a single particle. The
// specific capacity and the cut-off potential come from the isotherm.
type Params struct {
	LogEll float64
	LogXi  float64

	Geometry  int // 1 planar, 2 cylindrical, 3 spherical
	GridSize  int
	TimeSteps int
	Each      int // number of SOC samples taken over TimeSteps

	Temperature float64 // K
	Mass        float64 // g
	Density     float64 // g/cm^3
	Resistance  float64 // ohm
	G           float64 // Frumkin interaction parameter

	// ProfileSOC is the SOC at which the concentration snapshot is taken.
	ProfileSOC float64
}

// DefaultParams returns the usual numeric settings for a spherical particle.
// LogEll, LogXi and Density still need to be set.
func DefaultParams() Params {
	return Params{
		Geometry:    3,
		GridSize:    1000,
		TimeSteps:   100000,
		Each:        100,
		Temperature: 298.0,
		Mass:        1.0,
		ProfileSOC:  0.5,
	}
}

// Result holds a simulated charge curve and the concentration snapshot.
type Result struct {
	// SOC and Potential are aligned; empty sampling slots are removed.
	SOC       []float64
	Potential []float64

	// Radius is normalized by the particle radius. Both slices are zero when
	// the run never passed through the snapshot SOC.
	Radius        []float64
	Concentration []float64

	Steps    int
	CutOff   bool
	Snapshot bool
}

// NewResult returns an empty result.
func NewResult() *Result {
	return &Result{
		SOC:           []float64{},
		Potential:     []float64{},
		Radius:        []float64{},
		Concentration: []float64{},
	}
}

// Len returns the number of recorded rows.
func (r *Result) Len() int { return len(r.SOC) }
