// Package regressor calibrates the diffusion coefficient and the kinetic
// rate constant of an electrode material against a diagnostic map surface.
package regressor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/fernandezfran/galpynostatic/internal/kernel"
	"github.com/fernandezfran/galpynostatic/internal/surface"
)

var _ Calibratable = (*Regressor)(nil)

// Regressor fits (D, k0) by exhaustive search over a log-spaced grid. It
// implements Calibratable.
type Regressor struct {
	surf *surface.Surface
	d    float64 // characteristic particle size, cm
	z    int     // geometry: 1 planar, 2 cylindrical, 3 spherical
	th   float64 // seconds in one hour, or the equivalent time unit

	dcoeffs []float64
	k0s     []float64
	delta   float64
	refine  bool

	result *Result
}

// Option configures a Regressor.
type Option func(*Regressor)

// WithDCoeffGrid sets the candidate diffusion coefficients to num values
// log-spaced between 10^lo and 10^hi.
func WithDCoeffGrid(lo, hi float64, num int) Option {
	return func(r *Regressor) { r.dcoeffs = logGrid(lo, hi, num) }
}

// WithK0Grid sets the candidate rate constants to num values log-spaced
// between 10^lo and 10^hi.
func WithK0Grid(lo, hi float64, num int) Option {
	return func(r *Regressor) { r.k0s = logGrid(lo, hi, num) }
}

// WithDCoeffs sets the candidate diffusion coefficients explicitly.
func WithDCoeffs(ds ...float64) Option {
	return func(r *Regressor) { r.dcoeffs = append([]float64(nil), ds...) }
}

// WithK0s sets the candidate rate constants explicitly.
func WithK0s(ks ...float64) Option {
	return func(r *Regressor) { r.k0s = append([]float64(nil), ks...) }
}

// WithHourTime sets the length of one hour in the time unit of D and k0.
func WithHourTime(th float64) Option {
	return func(r *Regressor) { r.th = th }
}

// WithDelta sets the relative step of the finite-difference Jacobian.
func WithDelta(delta float64) Option {
	return func(r *Regressor) { r.delta = delta }
}

// WithRefinement polishes the grid optimum with a Nelder-Mead search in
// (log D, log k0).
func WithRefinement(on bool) Option {
	return func(r *Regressor) { r.refine = on }
}

func logGrid(lo, hi float64, num int) []float64 {
	if num < 1 {
		return nil
	}
	exps := []float64{lo}
	if num > 1 {
		exps = floats.Span(make([]float64, num), lo, hi)
	}
	out := make([]float64, num)
	for i, e := range exps {
		out[i] = math.Pow(10, e)
	}
	return out
}

// New returns a regressor over surf for particles of size d (cm) and
// geometry z. The default grids cover D in [1e-15, 10^-6.1] and k0 in
// [1e-14, 10^-5.1] at 0.1 decade.
func New(surf *surface.Surface, d float64, z int, opts ...Option) (*Regressor, error) {
	r := &Regressor{
		surf:    surf,
		d:       d,
		z:       z,
		th:      kernel.HourTime,
		dcoeffs: logGrid(-15, -6.1, 90),
		k0s:     logGrid(-14, -5.1, 90),
		delta:   1e-2,
	}
	for _, opt := range opts {
		opt(r)
	}

	switch {
	case surf == nil:
		return nil, fmt.Errorf("%w: nil surface", ErrBadConfiguration)
	case !(d > 0):
		return nil, fmt.Errorf("%w: particle size %g", ErrBadConfiguration, d)
	case z < 1 || z > 3:
		return nil, fmt.Errorf("%w: geometry %d", ErrBadConfiguration, z)
	case !(r.th > 0):
		return nil, fmt.Errorf("%w: hour time %g", ErrBadConfiguration, r.th)
	case !(r.delta > 0 && r.delta < 1):
		return nil, fmt.Errorf("%w: delta %g", ErrBadConfiguration, r.delta)
	case len(r.dcoeffs) == 0 || len(r.k0s) == 0:
		return nil, fmt.Errorf("%w: empty candidate grid", ErrBadConfiguration)
	}
	for _, v := range append(append([]float64(nil), r.dcoeffs...), r.k0s...) {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: candidate %g", ErrBadConfiguration, v)
		}
	}
	return r, nil
}

// Ell is the dimensionless diffusion number d^2 rate / (z th D).
func Ell(rate, d float64, z int, dcoeff, th float64) float64 {
	return d * d * rate / (float64(z) * th * dcoeff)
}

// Xi is the dimensionless kinetic number k0 sqrt(th / (rate D)).
func Xi(rate, dcoeff, k0, th float64) float64 {
	return k0 * math.Sqrt(th/(rate*dcoeff))
}

// LogEll is log10 of Ell.
func LogEll(rate, d float64, z int, dcoeff, th float64) float64 {
	return math.Log10(Ell(rate, d, z, dcoeff, th))
}

// LogXi is log10 of Xi.
func LogXi(rate, dcoeff, k0, th float64) float64 {
	return math.Log10(Xi(rate, dcoeff, k0, th))
}

// Surface returns the map surface the regressor looks up.
func (r *Regressor) Surface() *surface.Surface { return r.surf }

// Size returns the characteristic particle size.
func (r *Regressor) Size() float64 { return r.d }

// Geometry returns the geometry parameter.
func (r *Regressor) Geometry() int { return r.z }

// HourTime returns the time-unit conversion in use.
func (r *Regressor) HourTime() float64 { return r.th }

// DCoeffs returns a copy of the candidate diffusion coefficients.
func (r *Regressor) DCoeffs() []float64 { return append([]float64(nil), r.dcoeffs...) }

// K0s returns a copy of the candidate rate constants.
func (r *Regressor) K0s() []float64 { return append([]float64(nil), r.k0s...) }

// Result returns a copy of the last fit, or nil before the first one.
func (r *Regressor) Result() *Result {
	if r.result == nil {
		return nil
	}
	res := *r.result
	return &res
}

// PredictWith returns the max SOC the surface gives at each rate for the
// pair (dcoeff, k0). Rates that map outside the surface give NaN.
func (r *Regressor) PredictWith(dcoeff, k0 float64, rates []float64) []float64 {
	out := make([]float64, len(rates))
	for i, rate := range rates {
		l := LogEll(rate, r.d, r.z, dcoeff, r.th)
		x := LogXi(rate, dcoeff, k0, r.th)
		if !r.surf.InDomainEll(l) || !r.surf.InDomainXi(x) {
			out[i] = math.NaN()
			continue
		}
		out[i] = r.surf.SOC(l, x)
	}
	return out
}

// Predict returns the max SOC at each rate for the fitted pair.
func (r *Regressor) Predict(rates []float64) ([]float64, error) {
	if r.result == nil {
		return nil, ErrNotFitted
	}
	return r.PredictWith(r.result.DCoeff, r.result.K0, rates), nil
}

// SetParams fixes (dcoeff, k0) without fitting, so Predict can be used with
// values measured elsewhere.
func (r *Regressor) SetParams(dcoeff, k0 float64) error {
	for _, v := range []float64{dcoeff, k0} {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: parameter %g", ErrBadInput, v)
		}
	}
	nan := math.NaN()
	r.result = &Result{DCoeff: dcoeff, K0: k0, DCoeffErr: nan, K0Err: nan, MSE: nan}
	return nil
}

// meanSquaredError is +Inf when any prediction is NaN.
func meanSquaredError(socs, pred []float64) float64 {
	sum := 0.0
	for i, p := range pred {
		if math.IsNaN(p) {
			return math.Inf(1)
		}
		e := socs[i] - p
		sum += e * e
	}
	return sum / float64(len(pred))
}

func checkData(rates, socs []float64) error {
	if len(rates) == 0 {
		return fmt.Errorf("%w: no data", ErrBadInput)
	}
	if len(rates) != len(socs) {
		return fmt.Errorf("%w: %d rates, %d SOC values", ErrBadInput, len(rates), len(socs))
	}
	for i, rate := range rates {
		if !(rate > 0) || math.IsInf(rate, 0) {
			return fmt.Errorf("%w: rate %d is %g", ErrBadInput, i, rate)
		}
		if math.IsNaN(socs[i]) {
			return fmt.Errorf("%w: SOC %d is NaN", ErrBadInput, i)
		}
	}
	return nil
}

// Fit scores every (D, k0) candidate by the mean squared error of its
// predictions against socs and keeps the best; on ties the first candidate
// in D-major order wins. A previous fit is replaced.
func (r *Regressor) Fit(rates, socs []float64) (*Result, error) {
	if err := checkData(rates, socs); err != nil {
		return nil, err
	}

	best := &Result{MSE: math.Inf(1)}
	for _, dc := range r.dcoeffs {
		for _, k0 := range r.k0s {
			mse := meanSquaredError(socs, r.PredictWith(dc, k0, rates))
			if math.IsInf(mse, 1) {
				continue
			}
			best.Candidates++
			if mse < best.MSE {
				best.DCoeff, best.K0, best.MSE = dc, k0, mse
			}
		}
	}
	if best.Candidates == 0 {
		return nil, fmt.Errorf("%w: %d rates against %d candidates", ErrNoFiniteCandidate,
			len(rates), len(r.dcoeffs)*len(r.k0s))
	}

	if r.refine {
		r.polish(best, rates, socs)
	}
	best.DCoeffErr, best.K0Err = r.uncertainty(best.DCoeff, best.K0, rates, socs)

	r.result = best
	res := *best
	return &res, nil
}

// polish runs Nelder-Mead from the grid optimum and keeps the result only
// if it improves the error with every prediction inside the map.
func (r *Regressor) polish(best *Result, rates, socs []float64) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return meanSquaredError(socs, r.PredictWith(math.Pow(10, x[0]), math.Pow(10, x[1]), rates))
		},
	}
	x0 := []float64{math.Log10(best.DCoeff), math.Log10(best.K0)}
	settings := &optimize.Settings{
		FuncEvaluations: 2000,
		Converger:       &optimize.FunctionConverge{Absolute: 1e-14, Iterations: 100},
	}
	res, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil || res == nil {
		return
	}
	if res.F < best.MSE && !math.IsInf(res.F, 1) {
		best.DCoeff = math.Pow(10, res.X[0])
		best.K0 = math.Pow(10, res.X[1])
		best.MSE = meanSquaredError(socs, r.PredictWith(best.DCoeff, best.K0, rates))
		best.Refined = true
	}
}

// uncertainty estimates the standard errors of (D, k0) from the
// Gauss-Newton covariance s^2 (J^T J)^-1, with J the central-difference
// Jacobian of the predictions and s^2 = SSR/(n-2). J is taken with respect
// to the log of each parameter and the variances are scaled back.
func (r *Regressor) uncertainty(dcoeff, k0 float64, rates, socs []float64) (float64, float64) {
	nan := math.NaN()
	n := len(rates)
	const p = 2
	if n <= p {
		return nan, nan
	}

	params := [p]float64{dcoeff, k0}
	jac := mat.NewDense(n, p, nil)
	for k := range params {
		hi, lo := params, params
		hi[k] *= 1 + r.delta
		lo[k] *= 1 - r.delta
		up := r.PredictWith(hi[0], hi[1], rates)
		down := r.PredictWith(lo[0], lo[1], rates)
		for i := range up {
			if math.IsNaN(up[i]) || math.IsNaN(down[i]) {
				return nan, nan
			}
			jac.Set(i, k, (up[i]-down[i])/(2*r.delta))
		}
	}

	pred := r.PredictWith(dcoeff, k0, rates)
	ssr := 0.0
	for i := range pred {
		e := socs[i] - pred[i]
		ssr += e * e
	}
	s2 := ssr / float64(n-p)

	var jtj, cov mat.Dense
	jtj.Mul(jac.T(), jac)
	if err := cov.Inverse(&jtj); err != nil {
		return nan, nan
	}
	cov.Scale(s2, &cov)

	vd, vk := cov.At(0, 0), cov.At(1, 1)
	if vd < 0 || vk < 0 {
		return nan, nan
	}
	return dcoeff * math.Sqrt(vd), k0 * math.Sqrt(vk)
}
