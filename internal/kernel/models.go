package kernel

import "errors"

// Physical constants shared by the profile and map kernels.
const (
	Faraday     = 96484.5561 // C/mol
	GasConstant = 8.314472   // J/(mol K)
	HourTime    = 3600.0     // s
)

// Concentration used to seed the particle when no isotherm gives a better one.
const initialConcentration = 1.0e-4

// Length factor of the profile kernel's particle radius. The map kernel uses
// the geometry parameter instead.
const profileLengthFactor = 2.0

var (
	ErrShortBuffer = errors.New("kernel: output buffer too short")
	ErrBadScalars  = errors.New("kernel: invalid scalar parameters")
	ErrEmptySpline = errors.New("kernel: spline table is empty")
)

// Flags toggles the equilibrium model.
type Flags struct {
	// Frumkin selects the analytic mean-field potential instead of the
	// spline table.
	Frumkin bool
}

// Scalars groups the physical and numeric parameters of one kernel call.
type Scalars struct {
	G                float64 // Frumkin interaction parameter
	GridSize         int
	TimeSteps        int
	Each             int
	Temperature      float64 // K
	Mass             float64 // g
	Density          float64 // g/cm^3
	Resistance       float64 // ohm
	Vcut             float64 // V
	SpecificCapacity float64 // mAh/g
	Geometry         int     // 1 planar, 2 cylindrical, 3 spherical

	// Profile only.
	LogEll     float64
	LogXi      float64
	ProfileSOC float64
}

// Spline is the flat coefficient table of the equilibrium isotherm. On the
// segment starting at Capacity[i] the potential is
// A[i] + B[i]*d + C[i]*d^2 + D[i]*d^3 with d = soc - Capacity[i].
type Spline struct {
	Capacity []float64
	A        []float64
	B        []float64
	C        []float64
	D        []float64
}

// Len returns the number of table rows.
func (s Spline) Len() int { return len(s.Capacity) }

// ProfileBuffers are the caller-owned outputs of RunProfile. SOC and
// Potential need SampleSlots slots, Radius and Concentration GridSize.
type ProfileBuffers struct {
	SOC           []float64
	Potential     []float64
	Radius        []float64
	Concentration []float64
}

// NewProfileBuffers allocates buffers sized for sc.
func NewProfileBuffers(sc Scalars) *ProfileBuffers {
	n := SampleSlots(sc)
	return &ProfileBuffers{
		SOC:           make([]float64, n),
		Potential:     make([]float64, n),
		Radius:        make([]float64, sc.GridSize),
		Concentration: make([]float64, sc.GridSize),
	}
}

// ProfileStats reports how a profile run ended.
type ProfileStats struct {
	Steps    int  // integration steps taken
	CutOff   bool // potential crossed the cut-off before the step budget ran out
	Snapshot bool // concentration snapshot was captured
}
