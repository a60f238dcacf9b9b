package predict

import (
	"errors"

	"github.com/fernandezfran/galpynostatic/internal/regressor"
	"github.com/fernandezfran/galpynostatic/internal/surface"
)

var (
	ErrNoRoot     = errors.New("predict: the map never reaches the requested SOC")
	ErrBadRequest = errors.New("predict: invalid request")
)

// Fitted is a calibrated model: *regressor.Regressor after Fit or
// SetParams.
type Fitted interface {
	Predict(rates []float64) ([]float64, error)
	Result() *regressor.Result
	Surface() *surface.Surface
	Geometry() int
	HourTime() float64
}

// Metric is the BMXFC value of a material.
type Metric struct {
	CRate  float64
	Loaded float64
	SOC    float64 // max SOC retained at CRate; NaN outside the map

	// FastCharge reports SOC >= Loaded.
	FastCharge bool
}

// Size is the outcome of a particle size prediction.
type Size struct {
	Minutes float64
	Loaded  float64
	LogEll  float64 // log ell at which the map reaches Loaded
	LogXi   float64
	Size    float64 // characteristic particle size, cm
}
