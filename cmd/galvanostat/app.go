package main

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot/plotter"

	"github.com/fernandezfran/galpynostatic/internal/analysis"
	"github.com/fernandezfran/galpynostatic/internal/config"
	"github.com/fernandezfran/galpynostatic/internal/diagram"
	"github.com/fernandezfran/galpynostatic/internal/isotherm"
	"github.com/fernandezfran/galpynostatic/internal/kernel"
	"github.com/fernandezfran/galpynostatic/internal/parser"
	"github.com/fernandezfran/galpynostatic/internal/predict"
	"github.com/fernandezfran/galpynostatic/internal/profile"
	"github.com/fernandezfran/galpynostatic/internal/regressor"
	"github.com/fernandezfran/galpynostatic/internal/report"
	"github.com/fernandezfran/galpynostatic/internal/surface"
	"github.com/fernandezfran/galpynostatic/internal/sweep"
)

// Fast-charge criterion: 80% SOC in 15 minutes.
const (
	fastChargeMinutes = 15.0
	fastChargeLoaded  = 0.8
	sizeStep          = 0.01
)

// App runs the galvanostat commands and reports progress.
type App struct {
	logger    *log.Logger
	kernel    *kernel.Kernel
	listeners []func(string)
}

// NewApp returns an app logging to logger.
func NewApp(logger *log.Logger) *App {
	return &App{logger: logger, kernel: kernel.New()}
}

// OnStatus registers fn to receive every status message.
func (a *App) OnStatus(fn func(string)) {
	a.listeners = append(a.listeners, fn)
}

func (a *App) sendStatus(message string) {
	for _, fn := range a.listeners {
		fn(message)
	}
	a.logger.Println(message)
}

func (a *App) sendWarnings(title string, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	a.sendStatus(title)
	for _, w := range warnings {
		a.sendStatus(fmt.Sprintf("- %s", w))
	}
}

func (a *App) outPath(cfg config.Config, name string) string {
	return filepath.Join(cfg.Output.Dir, name)
}

func (a *App) loadIsotherm(cfg config.Config) (*isotherm.Isotherm, error) {
	if cfg.Material.Isotherm == "" {
		a.sendStatus(fmt.Sprintf("Using the Frumkin isotherm: %g mAh/g, cut-off %g V.", cfg.Material.SpecificCapacity, cfg.Material.Vcut))
		return isotherm.Analytic(cfg.Material.SpecificCapacity, cfg.Material.Vcut)
	}

	a.sendStatus(fmt.Sprintf("Reading isotherm: %s", cfg.Material.Isotherm))
	data, err := parser.ReadIsotherm(cfg.Material.Isotherm)
	if err != nil {
		return nil, err
	}
	a.sendWarnings("Isotherm warnings:", data.ParseErrors)
	iso, err := isotherm.New(data.Capacity, data.Potential)
	if err != nil {
		return nil, fmt.Errorf("building isotherm: %w", err)
	}
	a.sendStatus(fmt.Sprintf("Isotherm of %d rows, %g mAh/g, cut-off %g V.", iso.Len(), iso.SpecificCapacity, iso.Vcut))
	return iso, nil
}

// RunProfile simulates one charge and writes profile.csv and con.csv.
func (a *App) RunProfile(cfg config.Config) (*profile.Result, error) {
	iso, err := a.loadIsotherm(cfg)
	if err != nil {
		return nil, err
	}
	p := cfg.ProfileParams()
	a.sendStatus(fmt.Sprintf("Simulating profile at log(ell) = %g, log(xi) = %g...", p.LogEll, p.LogXi))
	res, err := profile.Run(a.kernel, p, iso)
	if err != nil {
		return nil, err
	}

	summary, err := analysis.SummarizeProfile(res)
	if err != nil {
		return nil, err
	}
	a.sendStatus(fmt.Sprintf("%d steps, %d rows, final SOC %.4f at %.4f V.", summary.Steps, summary.Rows, summary.FinalSOC, summary.FinalPotential))
	if !res.CutOff {
		a.sendStatus("Warning: the step budget ran out before the cut-off potential.")
	}

	if err := parser.WriteProfile(a.outPath(cfg, "profile.csv"), a.outPath(cfg, "con.csv"), res); err != nil {
		return nil, err
	}
	if cfg.Output.Plots {
		a.savePlot(a.outPath(cfg, "profile.png"), func() ([]byte, error) {
			return report.ProfilePlot(res, iso.Vcut, fmt.Sprintf("log(ℓ) = %g, log(Ξ) = %g", p.LogEll, p.LogXi))
		})
		if res.Snapshot {
			a.savePlot(a.outPath(cfg, "con.png"), func() ([]byte, error) {
				return report.ConcentrationPlot(res, p.ProfileSOC)
			})
		}
	}
	return res, nil
}

// RunMap sweeps the configured grid and writes map.tsv.
func (a *App) RunMap(cfg config.Config) (*diagram.Map, error) {
	iso, err := a.loadIsotherm(cfg)
	if err != nil {
		return nil, err
	}
	sp := cfg.SweepParams()
	a.sendStatus(fmt.Sprintf("Sweeping %d x %d map on %d workers...", sp.NumEll, sp.NumXi, a.kernel.Workers(sp.Threads)))
	m, err := sweep.Run(a.kernel, sp, iso)
	if err != nil {
		return nil, err
	}

	summary, err := analysis.SummarizeMap(m)
	if err != nil {
		return nil, err
	}
	a.sendStatus(fmt.Sprintf("Map done: SOC mean %.4f, %d fully charged, %d blocked.", summary.SOC.Mean, summary.FullyCharged, summary.Blocked))

	path := a.outPath(cfg, "map.tsv")
	if err := parser.WriteMap(path, m); err != nil {
		return nil, err
	}
	a.sendStatus(fmt.Sprintf("Map written: %s", path))
	if cfg.Output.Plots {
		a.savePlot(a.outPath(cfg, "map.png"), func() ([]byte, error) {
			return report.MapHeatmap(m, nil, "max SOC")
		})
	}
	return m, nil
}

// loadMap reads the calibration map, or sweeps one when none is given.
func (a *App) loadMap(cfg config.Config) (*diagram.Map, error) {
	if cfg.Calibration.Map == "" {
		a.sendStatus("No map file given, sweeping one.")
		return a.RunMap(cfg)
	}
	a.sendStatus(fmt.Sprintf("Reading map: %s", cfg.Calibration.Map))
	m, warnings, err := parser.ReadMap(cfg.Calibration.Map)
	if err != nil {
		return nil, err
	}
	a.sendWarnings("Map warnings:", warnings)
	return m, nil
}

func (a *App) newRegressor(cfg config.Config) (*regressor.Regressor, *diagram.Map, error) {
	m, err := a.loadMap(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := m.CheckRange(); err != nil {
		a.sendStatus(fmt.Sprintf("Warning: %v", err))
	}
	surf, err := surface.New(m)
	if err != nil {
		return nil, nil, err
	}
	r, err := regressor.New(surf, cfg.Calibration.Size, cfg.Simulation.Geometry, cfg.RegressorOptions()...)
	if err != nil {
		return nil, nil, err
	}
	return r, m, nil
}

// FitOutcome is what RunFit produces.
type FitOutcome struct {
	Fit      *regressor.Result
	Analysis *analysis.FitAnalysis
	Metric   predict.Metric
	Optimal  *predict.Size // nil when the map never reaches the criterion
}

// RunFit calibrates (D, k0) against the experiment file and writes plots
// and, when asked, the PDF report.
func (a *App) RunFit(cfg config.Config) (*FitOutcome, error) {
	r, m, err := a.newRegressor(cfg)
	if err != nil {
		return nil, err
	}

	a.sendStatus(fmt.Sprintf("Reading experiment: %s", cfg.Calibration.Experiment))
	exp, err := parser.ReadExperiment(cfg.Calibration.Experiment)
	if err != nil {
		return nil, err
	}
	a.sendWarnings("Experiment warnings:", exp.ParseErrors)

	a.sendStatus(fmt.Sprintf("Fitting %d points over %d x %d candidates...", len(exp.CRates), len(r.DCoeffs()), len(r.K0s())))
	res, err := r.Fit(exp.CRates, exp.SOCs)
	if err != nil {
		return nil, err
	}
	a.sendStatus(fmt.Sprintf("D = %.4e cm^2/s (± %.2e), k0 = %.4e cm/s (± %.2e), MSE %.3e.", res.DCoeff, res.DCoeffErr, res.K0, res.K0Err, res.MSE))

	pred, err := r.Predict(exp.CRates)
	if err != nil {
		return nil, err
	}
	fit, err := analysis.Residuals(exp.CRates, exp.SOCs, pred)
	if err != nil {
		return nil, err
	}
	a.sendWarnings("Analysis warnings:", fit.AnalysisErrors)

	out := &FitOutcome{Fit: res, Analysis: fit}
	if out.Metric, err = predict.BMXFC(r, 60/fastChargeMinutes, fastChargeLoaded); err != nil {
		return nil, err
	}
	a.sendStatus(fmt.Sprintf("BMXFC at %gC: %.4f (fast charging: %v).", out.Metric.CRate, out.Metric.SOC, out.Metric.FastCharge))

	out.Optimal, err = predict.OptimalParticleSize(r, fastChargeMinutes, fastChargeLoaded, sizeStep)
	switch {
	case errors.Is(err, predict.ErrNoRoot):
		a.sendStatus(fmt.Sprintf("No particle size reaches the criterion: %v", err))
	case err != nil:
		return nil, err
	default:
		a.sendStatus(fmt.Sprintf("Particle size for %g%% in %g min: %.4g um.", 100*fastChargeLoaded, fastChargeMinutes, 1e4*out.Optimal.Size))
	}

	plotImages := make(map[string][]byte)
	if cfg.Output.Plots || cfg.Output.Report {
		a.sendStatus("Generating plots...")
		lo, hi := floats.Min(exp.CRates), floats.Max(exp.CRates)
		grid := report.LogSpace(lo/2, hi*2, 60)
		curve := r.PredictWith(res.DCoeff, res.K0, grid)
		if img, err := report.FitPlot(exp.CRates, exp.SOCs, grid, curve, "Calibration"); err != nil {
			a.sendStatus(fmt.Sprintf("Error generating plot fit: %v", err))
		} else {
			plotImages[report.ImageFit] = img
		}

		marks := make(plotter.XYs, 0, len(exp.CRates))
		for _, rate := range exp.CRates {
			l := regressor.LogEll(rate, r.Size(), r.Geometry(), res.DCoeff, r.HourTime())
			x := regressor.LogXi(rate, res.DCoeff, res.K0, r.HourTime())
			if !math.IsNaN(l) && !math.IsNaN(x) {
				marks = append(marks, plotter.XY{X: l, Y: x})
			}
		}
		if img, err := report.MapHeatmap(m, marks, "Operating points"); err != nil {
			a.sendStatus(fmt.Sprintf("Error generating plot map: %v", err))
		} else {
			plotImages[report.ImageMap] = img
		}
	}
	if cfg.Output.Plots {
		for key, img := range plotImages {
			a.writeFile(a.outPath(cfg, key+".png"), img)
		}
	}

	if cfg.Output.Report {
		ms, err := analysis.SummarizeMap(m)
		if err != nil {
			return nil, err
		}
		path := a.outPath(cfg, "report.pdf")
		a.sendStatus(fmt.Sprintf("Generating PDF: %s...", path))
		rep := &report.CalibrationReport{
			Material: filepath.Base(cfg.Calibration.Experiment),
			Size:     cfg.Calibration.Size,
			Geometry: cfg.Simulation.Geometry,
			Fit:      res,
			Analysis: fit,
			Map:      &ms,
			Metric:   &out.Metric,
			Optimal:  out.Optimal,
		}
		if err := report.BuildPDFReport(path, rep, plotImages); err != nil {
			return nil, fmt.Errorf("generating PDF report: %w", err)
		}
		a.sendStatus(fmt.Sprintf("PDF report successfully generated: %s", path))
	}
	return out, nil
}

// fixedModel builds a regressor from measured (D, k0) instead of a fit.
func (a *App) fixedModel(cfg config.Config, dcoeff, k0 float64) (*regressor.Regressor, error) {
	r, _, err := a.newRegressor(cfg)
	if err != nil {
		return nil, err
	}
	if err := r.SetParams(dcoeff, k0); err != nil {
		return nil, err
	}
	return r, nil
}

// RunBMXFC evaluates the fast-charging metric for known (D, k0).
func (a *App) RunBMXFC(cfg config.Config, dcoeff, k0, cRate, loaded float64) (predict.Metric, error) {
	r, err := a.fixedModel(cfg, dcoeff, k0)
	if err != nil {
		return predict.Metric{}, err
	}
	m, err := predict.BMXFC(r, cRate, loaded)
	if err != nil {
		return m, err
	}
	a.sendStatus(fmt.Sprintf("BMXFC at %gC: %.6f (fast charging: %v). FOM: %.6g s.", cRate, m.SOC, m.FastCharge, predict.FOM(cfg.Calibration.Size, dcoeff)))
	return m, nil
}

// RunSize predicts the particle size that charges to loaded in minutes
// for known (D, k0).
func (a *App) RunSize(cfg config.Config, dcoeff, k0, minutes, loaded float64) (*predict.Size, error) {
	r, err := a.fixedModel(cfg, dcoeff, k0)
	if err != nil {
		return nil, err
	}
	size, err := predict.OptimalParticleSize(r, minutes, loaded, sizeStep)
	if err != nil {
		return nil, err
	}
	a.sendStatus(fmt.Sprintf("Particle size for SOC %g in %g min: %.6g um (log ell %.4f).", loaded, minutes, 1e4*size.Size, size.LogEll))
	return size, nil
}

func (a *App) savePlot(path string, render func() ([]byte, error)) {
	img, err := render()
	if err != nil {
		a.sendStatus(fmt.Sprintf("Error generating plot %s: %v", filepath.Base(path), err))
		return
	}
	a.writeFile(path, img)
}

func (a *App) writeFile(path string, data []byte) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		a.sendStatus(fmt.Sprintf("Error writing %s: %v", path, err))
	}
}
