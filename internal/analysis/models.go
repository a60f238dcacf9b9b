package analysis

import "math"

// Summary holds descriptive statistics of a series. NaN values are
// skipped; every field is NaN when nothing is left.
type Summary struct {
	N      int // number of valid values
	Mean   float64
	StdDev float64 // population standard deviation
	Min    float64
	Max    float64
	Range  float64
}

func emptySummary() Summary {
	nan := math.NaN()
	return Summary{Mean: nan, StdDev: nan, Min: nan, Max: nan, Range: nan}
}

// MapSummary describes a diagnostic map.
type MapSummary struct {
	SOC          Summary
	NumEll       int
	NumXi        int
	FullyCharged int // points with SOC >= ChargedSOC
	Blocked      int // points that cut off on the first step
}

// ChargedSOC is the max SOC counted as a full charge in MapSummary.
const ChargedSOC = 0.99

// ProfileSummary describes a simulated charge curve.
type ProfileSummary struct {
	Rows           int
	FinalSOC       float64
	FinalPotential float64
	Potential      Summary
	Steps          int
	CutOff         bool
}

// Residual is one measured point against the model.
type Residual struct {
	CRate     float64
	Measured  float64
	Predicted float64
	Value     float64 // Measured - Predicted; NaN outside the map
}

// FitAnalysis collects goodness-of-fit figures of a calibration.
type FitAnalysis struct {
	Residuals []Residual // in input order
	Ranked    []Residual // by |Value|, descending; NaN values excluded
	RMSE      float64
	MAE       float64
	R2        float64

	AnalysisErrors []string
}

func NewFitAnalysis() *FitAnalysis {
	return &FitAnalysis{
		Residuals:      make([]Residual, 0),
		Ranked:         make([]Residual, 0),
		AnalysisErrors: make([]string, 0),
	}
}
