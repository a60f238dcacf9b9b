// Package predict answers design questions with a calibrated model: the
// particle size needed to charge in a given time and the BMXFC and FOM
// fast-charging metrics.
package predict

import (
	"fmt"
	"math"

	"github.com/fernandezfran/galpynostatic/internal/regressor"
)

const bisections = 100

func fitted(r Fitted) (*regressor.Result, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil model", ErrBadRequest)
	}
	res := r.Result()
	if res == nil {
		return nil, regressor.ErrNotFitted
	}
	return res, nil
}

// OptimalParticleSize returns the particle size at which the fitted
// material reaches loaded SOC when charged in minutes. The map is scanned
// along log ell in steps of dlogell at the log Xi of the C-rate 60/minutes;
// the first crossing is refined by bisection on the surface.
func OptimalParticleSize(r Fitted, minutes, loaded, dlogell float64) (*Size, error) {
	res, err := fitted(r)
	if err != nil {
		return nil, err
	}
	switch {
	case !(minutes > 0):
		return nil, fmt.Errorf("%w: minutes %g", ErrBadRequest, minutes)
	case !(loaded > 0 && loaded < 1):
		return nil, fmt.Errorf("%w: loaded %g outside (0, 1)", ErrBadRequest, loaded)
	case !(dlogell > 0):
		return nil, fmt.Errorf("%w: dlogell %g", ErrBadRequest, dlogell)
	}

	surf := r.Surface()
	cRate := 60.0 / minutes
	logXi := regressor.LogXi(cRate, res.DCoeff, res.K0, r.HourTime())
	if !surf.InDomainXi(logXi) {
		return nil, fmt.Errorf("%w: log xi %.3f at %gC is outside the map", ErrNoRoot, logXi, cRate)
	}

	ells := surf.Ells()
	lo, hi := ells[0], ells[len(ells)-1]
	f := func(l float64) float64 { return surf.SOC(l, logXi) - loaded }

	a, fa := lo, f(lo)
	root := math.NaN()
	for n := 1; !(a >= hi); n++ {
		b := math.Min(lo+float64(n)*dlogell, hi)
		fb := f(b)
		if fa == 0 {
			root = a
			break
		}
		if fa*fb <= 0 {
			root = bisect(f, a, b, fa)
			break
		}
		a, fa = b, fb
	}
	if math.IsNaN(root) {
		return nil, fmt.Errorf("%w: SOC %g at %gC", ErrNoRoot, loaded, cRate)
	}

	size := math.Sqrt(float64(r.Geometry()) * r.HourTime() * res.DCoeff * math.Pow(10, root) / cRate)
	return &Size{
		Minutes: minutes,
		Loaded:  loaded,
		LogEll:  root,
		LogXi:   logXi,
		Size:    size,
	}, nil
}

// bisect narrows a bracket [a, b] of f with f(a) = fa.
func bisect(f func(float64) float64, a, b, fa float64) float64 {
	for i := 0; i < bisections && b-a > 1e-12; i++ {
		m := 0.5 * (a + b)
		fm := f(m)
		if fm == 0 {
			return m
		}
		if fa*fm < 0 {
			b = m
		} else {
			a, fa = m, fm
		}
	}
	return 0.5 * (a + b)
}

// BMXFC evaluates the benchmark for extreme fast charging: the max SOC the
// fitted material retains at cRate, and whether it reaches loaded.
func BMXFC(r Fitted, cRate, loaded float64) (Metric, error) {
	if _, err := fitted(r); err != nil {
		return Metric{}, err
	}
	if !(cRate > 0) {
		return Metric{}, fmt.Errorf("%w: C-rate %g", ErrBadRequest, cRate)
	}
	pred, err := r.Predict([]float64{cRate})
	if err != nil {
		return Metric{}, err
	}
	return Metric{
		CRate:      cRate,
		Loaded:     loaded,
		SOC:        pred[0],
		FastCharge: pred[0] >= loaded,
	}, nil
}

// FOM is the figure of merit d^2 / D, the characteristic diffusion time in
// seconds for a size in cm and D in cm^2/s.
func FOM(d, dcoeff float64) float64 {
	return d * d / dcoeff
}
