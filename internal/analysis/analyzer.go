package analysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/fernandezfran/galpynostatic/internal/diagram"
	"github.com/fernandezfran/galpynostatic/internal/profile"
)

// finite drops NaN values.
func finite(data []float64) []float64 {
	valid := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	return valid
}

// Summarize computes descriptive statistics of data, ignoring NaN.
func Summarize(data []float64) Summary {
	valid := finite(data)
	if len(valid) == 0 {
		return emptySummary()
	}
	s := Summary{N: len(valid), Min: floats.Min(valid), Max: floats.Max(valid)}
	s.Mean, s.StdDev = stat.PopMeanStdDev(valid, nil)
	if len(valid) == 1 {
		s.StdDev = 0
	}
	s.Range = s.Max - s.Min
	return s
}

// SummarizeMap reports the SOC statistics and the shape of m.
func SummarizeMap(m *diagram.Map) (MapSummary, error) {
	if m == nil || m.Len() == 0 {
		return MapSummary{}, diagram.ErrEmpty
	}
	_, _, socs := m.Columns()
	ells, xis := m.Axes()

	out := MapSummary{SOC: Summarize(socs), NumEll: len(ells), NumXi: len(xis)}
	for _, v := range socs {
		switch {
		case v >= ChargedSOC:
			out.FullyCharged++
		case v <= 1e-3:
			out.Blocked++
		}
	}
	return out, nil
}

// SummarizeProfile reports the end state of a charge curve.
func SummarizeProfile(res *profile.Result) (ProfileSummary, error) {
	if res == nil || res.Len() == 0 {
		return ProfileSummary{}, fmt.Errorf("profile has no recorded rows")
	}
	last := res.Len() - 1
	return ProfileSummary{
		Rows:           res.Len(),
		FinalSOC:       res.SOC[last],
		FinalPotential: res.Potential[last],
		Potential:      Summarize(res.Potential),
		Steps:          res.Steps,
		CutOff:         res.CutOff,
	}, nil
}

// Residuals compares measured and predicted SOC at each C-rate.
// Predictions outside the map are NaN and are left out of the error
// figures.
func Residuals(rates, measured, predicted []float64) (*FitAnalysis, error) {
	if len(rates) != len(measured) || len(rates) != len(predicted) {
		return nil, fmt.Errorf("residuals: %d rates, %d measured, %d predicted", len(rates), len(measured), len(predicted))
	}

	results := NewFitAnalysis()
	var obs, est []float64
	for i, rate := range rates {
		r := Residual{CRate: rate, Measured: measured[i], Predicted: predicted[i], Value: measured[i] - predicted[i]}
		results.Residuals = append(results.Residuals, r)
		if math.IsNaN(r.Value) {
			results.AnalysisErrors = append(results.AnalysisErrors, fmt.Sprintf("Warning: no prediction at %gC, point left out.", rate))
			continue
		}
		results.Ranked = append(results.Ranked, r)
		obs = append(obs, measured[i])
		est = append(est, predicted[i])
	}

	sort.SliceStable(results.Ranked, func(i, j int) bool {
		return math.Abs(results.Ranked[i].Value) > math.Abs(results.Ranked[j].Value) // descending
	})

	if len(obs) == 0 {
		results.RMSE, results.MAE, results.R2 = math.NaN(), math.NaN(), math.NaN()
		results.AnalysisErrors = append(results.AnalysisErrors, "Analysis produced no comparable points.")
		return results, nil
	}
	sq, abs := 0.0, 0.0
	for _, r := range results.Ranked {
		sq += r.Value * r.Value
		abs += math.Abs(r.Value)
	}
	n := float64(len(obs))
	results.RMSE = math.Sqrt(sq / n)
	results.MAE = abs / n
	results.R2 = stat.RSquaredFrom(est, obs, nil)
	return results, nil
}
