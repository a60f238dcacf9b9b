package kernel

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// referenceScalars is the analytic-isotherm charge of a 4.58 g/cm^3,
// 100 mAh/g sphere at log ell = -1, log Xi = 1.
func referenceScalars() Scalars {
	return Scalars{
		GridSize:         1000,
		TimeSteps:        20000,
		Each:             100,
		Temperature:      298,
		Mass:             1,
		Density:          4.58,
		Vcut:             -0.15,
		SpecificCapacity: 100,
		Geometry:         3,
		LogEll:           -1,
		LogXi:            1,
		ProfileSOC:       0.5,
	}
}

func TestRunProfileReference(t *testing.T) {
	k := New()
	sc := referenceScalars()
	buf := NewProfileBuffers(sc)

	stats, err := k.RunProfile(Flags{Frumkin: true}, sc, Spline{}, buf)
	if err != nil {
		t.Fatalf("RunProfile: %v", err)
	}
	if len(buf.SOC) != 202 {
		t.Fatalf("len(SOC) = %d, want 202", len(buf.SOC))
	}
	// the run ends before TimeSteps, so only the first TimeSteps/Each
	// slots are used
	layout := buf.SOC[:200]
	for i, v := range buf.SOC[200:] {
		if v != 0 {
			t.Errorf("slot %d = %g past the used rows", 200+i, v)
		}
	}

	if got := floats.Sum(layout) / float64(len(layout)); !scalar.EqualWithinAbs(got, 0.243158, 1e-4) {
		t.Errorf("mean SOC = %.6f, want 0.243158", got)
	}
	if got := floats.Min(buf.SOC); got != 0 {
		t.Errorf("min SOC = %g, want 0", got)
	}
	if got := floats.Max(buf.SOC); !scalar.EqualWithinAbs(got, 0.973766, 1e-4) {
		t.Errorf("max SOC = %.6f, want 0.973766", got)
	}
	if got := floats.Max(buf.Potential); !scalar.EqualWithinAbs(got, 0.095004, 1e-4) {
		t.Errorf("max potential = %.6f, want 0.095004", got)
	}

	// first slot empty, final state one past the last sample
	if buf.SOC[0] != 0 || buf.Potential[0] != 0 {
		t.Errorf("slot 0 = (%g, %g), want empty", buf.SOC[0], buf.Potential[0])
	}
	if buf.SOC[99] != 0 || buf.SOC[100] == 0 {
		t.Errorf("slots 99, 100 = %g, %g; want a gap before the final state", buf.SOC[99], buf.SOC[100])
	}
	if !scalar.EqualWithinAbs(buf.Potential[100], -0.150094, 1e-5) {
		t.Errorf("final potential = %.6f, want -0.150094", buf.Potential[100])
	}

	if !stats.CutOff {
		t.Error("run ended on the step budget, want cut-off")
	}
	if stats.Steps < 19640 || stats.Steps > 19660 {
		t.Errorf("steps = %d, want about 19651", stats.Steps)
	}
	if !stats.Snapshot {
		t.Fatal("no concentration snapshot at SOC 0.5")
	}
	if buf.Radius[0] != 0 || !scalar.EqualWithinAbs(buf.Radius[sc.GridSize-1], 1, 1e-12) {
		t.Errorf("normalized radius spans [%g, %g], want [0, 1]", buf.Radius[0], buf.Radius[sc.GridSize-1])
	}
	// charging from the surface inwards
	if !(buf.Concentration[sc.GridSize-1] > buf.Concentration[0]) {
		t.Errorf("surface %g not above centre %g", buf.Concentration[sc.GridSize-1], buf.Concentration[0])
	}
	if got := floats.Sum(buf.Concentration) / float64(sc.GridSize); !scalar.EqualWithinAbs(got, 0.5, 2e-4) {
		t.Errorf("snapshot mean = %g, want 0.5", got)
	}
}

func TestRunProfileBuffers(t *testing.T) {
	k := New()
	sc := referenceScalars()
	sc.TimeSteps = 2000
	sc.GridSize = 50

	short := NewProfileBuffers(sc)
	short.SOC = short.SOC[:3]
	if _, err := k.RunProfile(Flags{Frumkin: true}, sc, Spline{}, short); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("short SOC buffer: err = %v, want ErrShortBuffer", err)
	}

	sc.GridSize = 2
	if _, err := k.RunProfile(Flags{Frumkin: true}, sc, Spline{}, NewProfileBuffers(sc)); !errors.Is(err, ErrBadScalars) {
		t.Errorf("grid of 2: err = %v, want ErrBadScalars", err)
	}

	sc.GridSize = 50
	if _, err := k.RunProfile(Flags{}, sc, Spline{}, NewProfileBuffers(sc)); !errors.Is(err, ErrEmptySpline) {
		t.Errorf("empty spline: err = %v, want ErrEmptySpline", err)
	}
}

func TestSampleSlots(t *testing.T) {
	for _, tt := range []struct {
		steps, each, want int
	}{
		{20000, 100, 202},
		{4000, 100, 202},
		{150, 100, 302},
		{1000, 3, 9},
		{10, 10, 22},
		{10, 0, 0},
		{10, 11, 0},
	} {
		sc := Scalars{TimeSteps: tt.steps, Each: tt.each}
		if got := SampleSlots(sc); got != tt.want {
			t.Errorf("SampleSlots(%d steps, each %d) = %d, want %d", tt.steps, tt.each, got, tt.want)
		}
	}
}

func TestRunProfileRecordsUpToCutOff(t *testing.T) {
	// far more samples than TimeSteps/Each slots
	sc := referenceScalars()
	sc.GridSize = 100
	sc.TimeSteps = 4000

	for _, resistance := range []float64{0, 0.005} {
		sc.Resistance = resistance
		buf := NewProfileBuffers(sc)
		stats, err := New().RunProfile(Flags{Frumkin: true}, sc, Spline{}, buf)
		if err != nil {
			t.Fatalf("RunProfile: %v", err)
		}
		if !stats.CutOff {
			t.Fatalf("R = %g: run did not reach the cut-off", resistance)
		}
		last := -1
		for i, v := range buf.Potential {
			if v != 0 || buf.SOC[i] != 0 {
				last = i
			}
		}
		if last < 0 {
			t.Fatalf("R = %g: nothing recorded", resistance)
		}
		if !(buf.Potential[last] <= sc.Vcut) {
			t.Errorf("R = %g: last potential %g above the cut-off %g", resistance, buf.Potential[last], sc.Vcut)
		}
		if got := floats.Max(buf.SOC); buf.SOC[last] != got {
			t.Errorf("R = %g: last SOC %g, max recorded %g", resistance, buf.SOC[last], got)
		}
	}
}

func TestOperatingPoint(t *testing.T) {
	tests := []struct {
		logEll, logXi float64
		geometry      int
		factor        float64
	}{
		{-1, 1, 3, 2},
		{0.5, -2, 3, 3},
		{-3, 0, 1, 1},
		{-2, 1.5, 2, 2},
	}
	for _, tt := range tests {
		cRate, radius := operatingPoint(tt.logEll, tt.logXi, tt.geometry, tt.factor)
		xi := math.Pow(10, tt.logXi)
		wantRate := HourTime * math.Max(float64(tt.geometry-1), 1) / (xi * xi)
		if !scalar.EqualWithinAbsOrRel(cRate, wantRate, 0, 1e-14) {
			t.Errorf("c-rate(%v) = %g, want %g", tt, cRate, wantRate)
		}
		// ell = radius^2 c / (factor t_h)
		ell := radius * radius * cRate / (tt.factor * HourTime)
		if !scalar.EqualWithinAbsOrRel(math.Log10(ell), tt.logEll, 1e-12, 1e-12) {
			t.Errorf("recovered log ell = %g, want %g", math.Log10(ell), tt.logEll)
		}
	}
}

func TestSplinePotential(t *testing.T) {
	sp := Spline{
		Capacity: []float64{0, 0.5, 1},
		A:        []float64{1, 2, 3},
		B:        []float64{2, 2, 0},
		C:        []float64{0, 0, 0},
		D:        []float64{0, 0, 1},
	}
	tests := []struct{ x, want float64 }{
		{-0.5, 0},
		{0, 1},
		{0.25, 1.5},
		{0.5, 2},
		{0.75, 2.5},
		{1, 3},
		{1.5, 3.125},
	}
	for _, tt := range tests {
		if got := SplinePotential(sp, tt.x); !scalar.EqualWithinAbs(got, tt.want, 1e-15) {
			t.Errorf("SplinePotential(%g) = %g, want %g", tt.x, got, tt.want)
		}
	}
	if !math.IsNaN(SplinePotential(Spline{}, 0.5)) {
		t.Error("empty table should evaluate to NaN")
	}
}

func TestFrumkinPotential(t *testing.T) {
	rf := GasConstant * 298 / Faraday
	if got := FrumkinPotential(0.5, 0, rf); got != 0 {
		t.Errorf("half occupation without interaction = %g, want 0", got)
	}
	if got, want := FrumkinPotential(0.5, 3, rf), 0.0; got != want {
		t.Errorf("half occupation with interaction = %g, want %g", got, want)
	}
	if got, want := FrumkinPotential(0.25, 2, rf), rf*(0.5+math.Log(3)); !scalar.EqualWithinAbs(got, want, 1e-15) {
		t.Errorf("FrumkinPotential(0.25) = %g, want %g", got, want)
	}
}

func TestRunMapDeterministic(t *testing.T) {
	k := New()
	sc := referenceScalars()
	sc.GridSize = 60
	sc.TimeSteps = 3000

	ells := []float64{-4, -2.5, -1, 0.5}
	xis := []float64{-3, -1, 1}
	run := func(threads int) []float64 {
		out := make([]float64, len(ells)*len(xis))
		if err := k.RunMap(Flags{Frumkin: true}, sc, Spline{}, ells, xis, threads, out); err != nil {
			t.Fatalf("RunMap(threads=%d): %v", threads, err)
		}
		return out
	}

	serial := run(1)
	for _, threads := range []int{1, 3, 8, 0} {
		got := run(threads)
		for i := range got {
			if got[i] != serial[i] {
				t.Fatalf("threads=%d slot %d = %v, serial run gave %v", threads, i, got[i], serial[i])
			}
		}
	}
	for i, v := range serial {
		if !(v >= 0 && v <= 1) {
			t.Errorf("slot %d = %g outside [0, 1]", i, v)
		}
	}
	// small particles and slow rates charge further
	if !(serial[2] > serial[len(serial)-3]) {
		t.Errorf("max SOC at (%g, %g) = %g, not above (%g, %g) = %g",
			ells[0], xis[2], serial[2], ells[3], xis[0], serial[len(serial)-3])
	}
}

func TestRunMapShortBuffer(t *testing.T) {
	err := New().RunMap(Flags{Frumkin: true}, referenceScalars(), Spline{},
		[]float64{0, 1}, []float64{0, 1}, 1, make([]float64, 3))
	if !errors.Is(err, ErrShortBuffer) {
		t.Errorf("err = %v, want ErrShortBuffer", err)
	}
}

func TestClip(t *testing.T) {
	if Clip(1.5, 0.0, 1.0) != 1 || Clip(-0.5, 0.0, 1.0) != 0 || Clip(0.25, 0.0, 1.0) != 0.25 {
		t.Error("Clip float64")
	}
	if Clip(7, 1, 3) != 3 {
		t.Error("Clip int")
	}
}
