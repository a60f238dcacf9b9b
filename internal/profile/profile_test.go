package profile

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/fernandezfran/galpynostatic/internal/isotherm"
	"github.com/fernandezfran/galpynostatic/internal/kernel"
)

func referenceParams() Params {
	p := DefaultParams()
	p.LogEll = -1
	p.LogXi = 1
	p.Density = 4.58
	p.TimeSteps = 20000
	return p
}

func TestRunAnalyticReference(t *testing.T) {
	iso, err := isotherm.Analytic(100, -0.15)
	if err != nil {
		t.Fatalf("Analytic: %v", err)
	}

	res, err := Run(kernel.New(), referenceParams(), iso)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Len() != 99 {
		t.Fatalf("recorded rows = %d, want 99", res.Len())
	}
	if len(res.Potential) != res.Len() {
		t.Fatalf("potential rows = %d, SOC rows = %d", len(res.Potential), res.Len())
	}
	if !scalar.EqualWithinAbs(res.SOC[0], 0.0051274, 1e-6) || !scalar.EqualWithinAbs(res.Potential[0], 0.0950038, 1e-6) {
		t.Errorf("first row = (%g, %g), want (0.0051274, 0.0950038)", res.SOC[0], res.Potential[0])
	}
	last := res.Len() - 1
	if !scalar.EqualWithinAbs(res.SOC[last], 0.9737658, 1e-5) {
		t.Errorf("final SOC = %g, want 0.9737658", res.SOC[last])
	}
	if !(res.Potential[last] <= iso.Vcut) {
		t.Errorf("final potential %g above the cut-off %g", res.Potential[last], iso.Vcut)
	}
	for i := 1; i < res.Len(); i++ {
		if !(res.SOC[i] > res.SOC[i-1]) {
			t.Fatalf("SOC not increasing at row %d: %g after %g", i, res.SOC[i], res.SOC[i-1])
		}
	}
	if !res.CutOff || !res.Snapshot {
		t.Errorf("CutOff = %v, Snapshot = %v; want both", res.CutOff, res.Snapshot)
	}
	if len(res.Radius) != 1000 || len(res.Concentration) != 1000 {
		t.Errorf("snapshot lengths = %d, %d; want the grid size", len(res.Radius), len(res.Concentration))
	}
}

func TestRunResistanceLowersPotential(t *testing.T) {
	iso, err := isotherm.Analytic(100, -0.15)
	if err != nil {
		t.Fatalf("Analytic: %v", err)
	}
	p := referenceParams()
	p.GridSize = 100
	p.TimeSteps = 4000

	k := kernel.New()
	base, err := Run(k, p, iso)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	p.Resistance = 0.005
	ohmic, err := Run(k, p, iso)
	if err != nil {
		t.Fatalf("Run with resistance: %v", err)
	}

	// TimeSteps < Each^2: the curve must still run down to the cut-off
	for _, res := range []*Result{base, ohmic} {
		if !res.CutOff {
			t.Fatal("run did not reach the cut-off")
		}
		if last := res.Potential[res.Len()-1]; !(last <= iso.Vcut) {
			t.Errorf("last potential %g above the cut-off %g", last, iso.Vcut)
		}
		if res.Len() < 90 {
			t.Errorf("only %d rows recorded", res.Len())
		}
	}

	if !(ohmic.Potential[0] < base.Potential[0]) {
		t.Errorf("first potential with resistance %g, without %g", ohmic.Potential[0], base.Potential[0])
	}
	if !(ohmic.SOC[ohmic.Len()-1] < base.SOC[base.Len()-1]) {
		t.Errorf("final SOC with resistance %g, without %g", ohmic.SOC[ohmic.Len()-1], base.SOC[base.Len()-1])
	}
}

func TestRunWithIsotherm(t *testing.T) {
	// a smooth, decreasing charge isotherm
	capacity := []float64{5, 20, 40, 60, 80, 100, 110}
	potential := []float64{0.25, 0.12, 0.06, 0.02, -0.03, -0.1, -0.2}
	iso, err := isotherm.New(capacity, potential)
	if err != nil {
		t.Fatalf("isotherm.New: %v", err)
	}

	p := referenceParams()
	p.GridSize = 100
	p.TimeSteps = 4000
	p.LogXi = 1.5
	res, err := Run(kernel.New(), p, iso)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Len() == 0 {
		t.Fatal("no rows recorded")
	}
	// seeded at the first isotherm capacity
	if !(res.SOC[0] >= iso.Capacity[0]) {
		t.Errorf("first SOC %g below the isotherm start %g", res.SOC[0], iso.Capacity[0])
	}
	if !res.CutOff {
		t.Error("run did not reach the cut-off")
	}
}

func TestRunInvalid(t *testing.T) {
	iso, _ := isotherm.Analytic(100, -0.15)
	k := kernel.New()

	p := referenceParams()
	p.Geometry = 4
	if _, err := Run(k, p, iso); !errors.Is(err, ErrInvalidParams) || !errors.Is(err, kernel.ErrBadScalars) {
		t.Errorf("geometry 4: err = %v", err)
	}

	p = referenceParams()
	p.Each = 0
	if _, err := Run(k, p, iso); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("each 0: err = %v", err)
	}

	if _, err := Run(k, referenceParams(), nil); !errors.Is(err, isotherm.ErrMissingCapacity) {
		t.Errorf("nil isotherm: err = %v", err)
	}
}
