package regressor

import "errors"

var (
	ErrNotFitted         = errors.New("regressor: model has not been fitted")
	ErrNoFiniteCandidate = errors.New("regressor: every candidate predicts outside the map")
	ErrBadInput          = errors.New("regressor: invalid experimental data")
	ErrBadConfiguration  = errors.New("regressor: invalid configuration")
)

// Calibratable is a model that can be fitted to measured (rate, SOC) pairs
// and then predict SOC at new rates.
type Calibratable interface {
	Fit(rates, socs []float64) (*Result, error)
	Predict(rates []float64) ([]float64, error)
}

// Result is the outcome of a calibration.
type Result struct {
	DCoeff float64 // diffusion coefficient, cm^2/s
	K0     float64 // kinetic rate constant, cm/s

	// Standard uncertainties; NaN when they cannot be estimated.
	DCoeffErr float64
	K0Err     float64

	MSE float64

	// Candidates is the number of grid pairs with every prediction inside
	// the map.
	Candidates int
	Refined    bool
}
