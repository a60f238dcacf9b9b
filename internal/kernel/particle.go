package kernel

import (
	"math"

	"golang.org/x/exp/constraints"
)

// particle holds the Crank-Nicolson discretization of one galvanostatic
// run: the precomputed Thomas coefficients plus the concentration field.
type particle struct {
	n      int
	radius float64

	alpha  float64
	alpha0 float64
	gamma0 float64

	position []float64
	coefs    []float64
	add      []float64
	sub      []float64

	gamma      []float64
	intercepts []float64
	previous   []float64
	actual     []float64

	// boundary term of the last row: add[n-1]*4*dx*ccd/(F*cmax)
	flux float64

	ccd     float64 // current density, negative on charge
	area    float64
	cmax    float64
	rf      float64
	ohmic   float64
	frumkin bool
	g       float64
	spline  Spline
}

// operatingPoint converts the dimensionless pair into a C-rate and a
// particle radius. lengthFactor scales ell in the radius expression.
func operatingPoint(logEll, logXi float64, geometry int, lengthFactor float64) (cRate, radius float64) {
	xi := math.Pow(10, logXi)
	cRate = HourTime * float64(max(geometry-1, 1)) / (xi * xi)
	radius = math.Sqrt(math.Pow(10, logEll) * lengthFactor * HourTime / cRate)
	return cRate, radius
}

func newParticle(fl Flags, sc Scalars, sp Spline, logEll, logXi, lengthFactor float64) *particle {
	n := sc.GridSize
	z := float64(sc.Geometry)

	cRate, radius := operatingPoint(logEll, logXi, sc.Geometry, lengthFactor)
	size := 2.0 * radius

	area := 2.0 * z * sc.Mass / (sc.Density * size)
	ccd := -cRate * sc.SpecificCapacity * sc.Mass / (1000.0 * area)
	cmax := sc.SpecificCapacity * sc.Density * 3.6 / Faraday

	dt := -sc.SpecificCapacity * sc.Mass * 3.6 / (ccd * area) / float64(sc.TimeSteps-1)
	dx := radius / float64(n-1)

	p := &particle{
		n:          n,
		radius:     radius,
		position:   make([]float64, n),
		coefs:      make([]float64, n),
		add:        make([]float64, n),
		sub:        make([]float64, n),
		gamma:      make([]float64, n),
		intercepts: make([]float64, n),
		previous:   make([]float64, n),
		actual:     make([]float64, n),
		ccd:        ccd,
		area:       area,
		cmax:       cmax,
		rf:         GasConstant * sc.Temperature / Faraday,
		ohmic:      sc.Resistance * ccd * area,
		frumkin:    fl.Frumkin,
		g:          sc.G,
		spline:     sp,
	}
	for i := range p.position {
		p.position[i] = float64(i) * dx
	}

	p.alpha = dt / (2.0 * dx * dx)
	beta := (z - 1) * dt / (4.0 * dx)
	p.alpha0 = 1.0 + 2.0*p.alpha
	p.gamma0 = 1.0 - 2.0*p.alpha

	// the centre node has no 1/r term
	for i := 1; i < n; i++ {
		p.add[i] = p.alpha + beta/p.position[i]
		p.sub[i] = p.alpha - beta/p.position[i]
	}
	p.coefs[1] = 2.0 * p.alpha / p.alpha0
	for i := 2; i < n; i++ {
		p.coefs[i] = p.add[i-1] / (p.alpha0 - p.sub[i-1]*p.coefs[i-1])
	}
	p.flux = p.add[n-1] * 4.0 * dx * ccd / (Faraday * cmax)

	start := initialConcentration
	if !fl.Frumkin && sp.Len() > 0 && sp.Capacity[0] != 0 {
		start = sp.Capacity[0]
	}
	for i := range p.actual {
		p.actual[i] = start
	}
	return p
}

func (p *particle) surface() float64 { return p.actual[p.n-1] }

// soc is the state of charge, the mean of the field.
func (p *particle) soc() float64 { return mean(p.actual) }

// potential is the terminal potential of the current field.
func (p *particle) potential() float64 {
	theta := p.surface()
	var eq float64
	if p.frumkin {
		eq = FrumkinPotential(theta, p.g, p.rf)
	} else {
		eq = SplinePotential(p.spline, theta)
	}
	i0 := Faraday * p.cmax * math.Sqrt(theta*(1.0-theta))
	return eq + 2.0*p.rf*math.Asinh(p.ccd/(2.0*i0)) + p.ohmic
}

// advance performs one implicit step. The field before the step is kept in
// previous.
func (p *particle) advance() {
	n := p.n
	copy(p.previous, p.actual)
	prev := p.previous

	p.gamma[0] = p.gamma0*prev[0] + 2.0*p.alpha*prev[1]
	p.gamma[n-1] = p.gamma0*prev[n-1] + 2.0*p.alpha*prev[n-2] - p.flux
	for i := 1; i < n-1; i++ {
		p.gamma[i] = p.gamma0*prev[i] + p.add[i]*prev[i+1] + p.sub[i]*prev[i-1]
	}

	p.intercepts[1] = p.gamma[0] / p.alpha0
	for i := 2; i < n; i++ {
		p.intercepts[i] = (p.gamma[i-1] + p.sub[i-1]*p.intercepts[i-1]) /
			(p.alpha0 - p.sub[i-1]*p.coefs[i-1])
	}

	p.actual[n-1] = (p.gamma[n-1] + 2.0*p.alpha*p.intercepts[n-1]) /
		(p.alpha0 - 2.0*p.alpha*p.coefs[n-1])
	for i := n - 2; i >= 0; i-- {
		p.actual[i] = p.coefs[i+1]*p.actual[i+1] + p.intercepts[i+1]
	}
}

// FrumkinPotential is the analytic equilibrium potential at surface
// occupation theta, with interaction parameter g and rf = RT/F.
func FrumkinPotential(theta, g, rf float64) float64 {
	return rf * (g*(0.5-theta) + math.Log((1.0-theta)/theta))
}

// SplinePotential evaluates the isotherm table at soc. Values below the
// first node extrapolate the first segment, values at or above the last
// node use the last row.
func SplinePotential(sp Spline, soc float64) float64 {
	n := sp.Len()
	if n == 0 {
		return math.NaN()
	}
	i := segment(sp.Capacity, soc)
	d := soc - sp.Capacity[i]
	return sp.A[i] + d*(sp.B[i]+d*(sp.C[i]+d*sp.D[i]))
}

// segment returns the row whose interval [xs[i], xs[i+1]) holds x.
func segment(xs []float64, x float64) int {
	n := len(xs)
	if x < xs[0] {
		return 0
	}
	lo, hi := 0, n-1
	if x >= xs[hi] {
		return hi
	}
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if xs[mid] <= x {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

func mean(xs []float64) float64 {
	s := 0.0
	for _, v := range xs {
		s += v
	}
	return s / float64(len(xs))
}

// Clip bounds v to [lo, hi].
func Clip[T constraints.Float | constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
