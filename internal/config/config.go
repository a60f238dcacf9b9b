// Package config loads run settings from YAML. Values missing from the file
// keep their defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fernandezfran/galpynostatic/internal/profile"
	"github.com/fernandezfran/galpynostatic/internal/regressor"
	"github.com/fernandezfran/galpynostatic/internal/sweep"
)

var ErrInvalid = errors.New("config: invalid setting")

type Config struct {
	Material    MaterialSettings    `yaml:"material"`
	Simulation  SimulationSettings  `yaml:"simulation"`
	Sweep       SweepSettings       `yaml:"sweep"`
	Calibration CalibrationSettings `yaml:"calibration"`
	Output      OutputSettings      `yaml:"output"`
}

// MaterialSettings describes the electrode material. Without an isotherm
// file the Frumkin model is used with SpecificCapacity and Vcut.
type MaterialSettings struct {
	Isotherm         string  `yaml:"isotherm"`
	SpecificCapacity float64 `yaml:"specific_capacity"` // mAh/g
	Vcut             float64 `yaml:"vcut"`              // V
	Density          float64 `yaml:"density"`           // g/cm^3
	Mass             float64 `yaml:"mass"`              // g
	Resistance       float64 `yaml:"resistance"`        // ohm
	G                float64 `yaml:"g"`
}

type SimulationSettings struct {
	Geometry    int     `yaml:"geometry"`
	GridSize    int     `yaml:"grid_size"`
	TimeSteps   int     `yaml:"time_steps"`
	Each        int     `yaml:"each"`
	Temperature float64 `yaml:"temperature"`
	LogEll      float64 `yaml:"log_ell"`
	LogXi       float64 `yaml:"log_xi"`
	ProfileSOC  float64 `yaml:"profile_soc"`
}

type SweepSettings struct {
	EllMin  float64 `yaml:"ell_min"`
	EllMax  float64 `yaml:"ell_max"`
	XiMin   float64 `yaml:"xi_min"`
	XiMax   float64 `yaml:"xi_max"`
	NumEll  int     `yaml:"num_ell"`
	NumXi   int     `yaml:"num_xi"`
	Threads int     `yaml:"threads"`
}

// CalibrationSettings drives the regressor. Grid bounds are log10 values.
type CalibrationSettings struct {
	Map        string  `yaml:"map"`
	Experiment string  `yaml:"experiment"`
	Size       float64 `yaml:"size"` // cm
	DCoeffMin  float64 `yaml:"dcoeff_min"`
	DCoeffMax  float64 `yaml:"dcoeff_max"`
	NumDCoeff  int     `yaml:"num_dcoeff"`
	K0Min      float64 `yaml:"k0_min"`
	K0Max      float64 `yaml:"k0_max"`
	NumK0      int     `yaml:"num_k0"`
	Delta      float64 `yaml:"delta"`
	Refine     bool    `yaml:"refine"`
}

type OutputSettings struct {
	Dir    string `yaml:"dir"`
	Report bool   `yaml:"report"`
	Plots  bool   `yaml:"plots"`
}

// Defaults returns the settings used when no file is given: a 100 x 100
// spherical map with the Frumkin isotherm at 100 mAh/g.
func Defaults() Config {
	pp := profile.DefaultParams()
	sp := sweep.DefaultParams()
	return Config{
		Material: MaterialSettings{
			SpecificCapacity: 100,
			Vcut:             -0.15,
			Density:          4.58,
			Mass:             pp.Mass,
		},
		Simulation: SimulationSettings{
			Geometry:    pp.Geometry,
			GridSize:    pp.GridSize,
			TimeSteps:   pp.TimeSteps,
			Each:        pp.Each,
			Temperature: pp.Temperature,
			ProfileSOC:  pp.ProfileSOC,
		},
		Sweep: SweepSettings{
			EllMin: sp.EllMin, EllMax: sp.EllMax,
			XiMin: sp.XiMin, XiMax: sp.XiMax,
			NumEll: sp.NumEll, NumXi: sp.NumXi,
		},
		Calibration: CalibrationSettings{
			DCoeffMin: -15, DCoeffMax: -6.1, NumDCoeff: 90,
			K0Min: -14, K0Max: -5.1, NumK0: 90,
			Delta: 1e-2,
		},
		Output: OutputSettings{
			Dir:   ".",
			Plots: true,
		},
	}
}

// Load reads path over the defaults. An empty path gives the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("opening config: %w", err)
	}
	defer file.Close()

	if err := Decode(file, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Decode reads YAML from r into cfg, rejecting unknown keys.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the settings that do not depend on the run mode.
func (c Config) Validate() error {
	m, s, w, k := c.Material, c.Simulation, c.Sweep, c.Calibration
	switch {
	case m.Isotherm == "" && !(m.SpecificCapacity > 0):
		return fmt.Errorf("%w: specific_capacity must be positive without an isotherm file", ErrInvalid)
	case !(m.Density > 0):
		return fmt.Errorf("%w: density %g", ErrInvalid, m.Density)
	case !(m.Mass > 0):
		return fmt.Errorf("%w: mass %g", ErrInvalid, m.Mass)
	case m.Resistance < 0:
		return fmt.Errorf("%w: resistance %g", ErrInvalid, m.Resistance)
	case s.Geometry < 1 || s.Geometry > 3:
		return fmt.Errorf("%w: geometry %d", ErrInvalid, s.Geometry)
	case s.GridSize < 3:
		return fmt.Errorf("%w: grid_size %d", ErrInvalid, s.GridSize)
	case s.Each < 1 || s.Each > s.TimeSteps:
		return fmt.Errorf("%w: each %d with %d time steps", ErrInvalid, s.Each, s.TimeSteps)
	case !(s.Temperature > 0):
		return fmt.Errorf("%w: temperature %g", ErrInvalid, s.Temperature)
	case !(s.ProfileSOC >= 0 && s.ProfileSOC <= 1):
		return fmt.Errorf("%w: profile_soc %g", ErrInvalid, s.ProfileSOC)
	case w.NumEll < 1 || w.NumXi < 1:
		return fmt.Errorf("%w: sweep of %d x %d points", ErrInvalid, w.NumEll, w.NumXi)
	case !(w.EllMax > w.EllMin) || !(w.XiMax > w.XiMin):
		return fmt.Errorf("%w: sweep bounds", ErrInvalid)
	case k.NumDCoeff < 1 || k.NumK0 < 1:
		return fmt.Errorf("%w: calibration grid of %d x %d", ErrInvalid, k.NumDCoeff, k.NumK0)
	case !(k.Delta > 0 && k.Delta < 1):
		return fmt.Errorf("%w: delta %g", ErrInvalid, k.Delta)
	}
	return nil
}

// ProfileParams returns the solver settings for a single profile.
func (c Config) ProfileParams() profile.Params {
	return profile.Params{
		LogEll:      c.Simulation.LogEll,
		LogXi:       c.Simulation.LogXi,
		Geometry:    c.Simulation.Geometry,
		GridSize:    c.Simulation.GridSize,
		TimeSteps:   c.Simulation.TimeSteps,
		Each:        c.Simulation.Each,
		Temperature: c.Simulation.Temperature,
		Mass:        c.Material.Mass,
		Density:     c.Material.Density,
		Resistance:  c.Material.Resistance,
		G:           c.Material.G,
		ProfileSOC:  c.Simulation.ProfileSOC,
	}
}

// SweepParams returns the map sweep settings.
func (c Config) SweepParams() sweep.Params {
	return sweep.Params{
		EllMin:      c.Sweep.EllMin,
		EllMax:      c.Sweep.EllMax,
		XiMin:       c.Sweep.XiMin,
		XiMax:       c.Sweep.XiMax,
		NumEll:      c.Sweep.NumEll,
		NumXi:       c.Sweep.NumXi,
		Threads:     c.Sweep.Threads,
		Geometry:    c.Simulation.Geometry,
		GridSize:    c.Simulation.GridSize,
		TimeSteps:   c.Simulation.TimeSteps,
		Each:        c.Simulation.Each,
		Temperature: c.Simulation.Temperature,
		Mass:        c.Material.Mass,
		Density:     c.Material.Density,
		Resistance:  c.Material.Resistance,
		G:           c.Material.G,
	}
}

// RegressorOptions returns the candidate grids and the refinement switch.
func (c Config) RegressorOptions() []regressor.Option {
	k := c.Calibration
	return []regressor.Option{
		regressor.WithDCoeffGrid(k.DCoeffMin, k.DCoeffMax, k.NumDCoeff),
		regressor.WithK0Grid(k.K0Min, k.K0Max, k.NumK0),
		regressor.WithDelta(k.Delta),
		regressor.WithRefinement(k.Refine),
	}
}
