// Command galvanostat simulates galvanostatic charges of a single particle,
// sweeps diagnostic maps and calibrates (D, k0) against rate data.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fernandezfran/galpynostatic/internal/config"
)

const usage = `usage: galvanostat <command> [flags]

commands:
  profile   simulate one charge at (log ell, log xi)
  map       sweep the diagnostic map
  fit       calibrate D and k0 against measured (C-rate, SOC) data
  bmxfc     fast-charging metric for known D and k0
  size      particle size reaching an SOC in a given time

Run "galvanostat <command> -h" for the flags of each command.
`

func main() {
	logger := log.New(os.Stderr, "", log.LstdFlags)
	if err := run(NewApp(logger), os.Args[1:], os.Stderr); err != nil {
		logger.Fatal(err)
	}
}

// commonFlags binds the settings shared by every command onto fs.
type commonFlags struct {
	config string
	cfg    config.Config
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "YAML settings file")
	fs.StringVar(&c.cfg.Output.Dir, "out", "", "output directory")
	fs.StringVar(&c.cfg.Material.Isotherm, "isotherm", "", "isotherm file (capacity, potential)")
	fs.Float64Var(&c.cfg.Material.Density, "density", 0, "material density, g/cm^3")
	fs.IntVar(&c.cfg.Simulation.Geometry, "z", 0, "geometry: 1 planar, 2 cylindrical, 3 spherical")
	fs.IntVar(&c.cfg.Simulation.TimeSteps, "steps", 0, "time steps")
	fs.IntVar(&c.cfg.Simulation.GridSize, "grid", 0, "radial grid size")
	fs.BoolVar(&c.cfg.Output.Plots, "plots", true, "write PNG plots")
}

// load reads the config file and applies the flags that were set on the
// command line over it.
func (c *commonFlags) load(fs *flag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(c.config)
	if err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Output.Dir = c.cfg.Output.Dir
		case "isotherm":
			cfg.Material.Isotherm = c.cfg.Material.Isotherm
		case "density":
			cfg.Material.Density = c.cfg.Material.Density
		case "z":
			cfg.Simulation.Geometry = c.cfg.Simulation.Geometry
		case "steps":
			cfg.Simulation.TimeSteps = c.cfg.Simulation.TimeSteps
		case "grid":
			cfg.Simulation.GridSize = c.cfg.Simulation.GridSize
		case "plots":
			cfg.Output.Plots = c.cfg.Output.Plots
		case "ell":
			cfg.Simulation.LogEll = c.cfg.Simulation.LogEll
		case "xi":
			cfg.Simulation.LogXi = c.cfg.Simulation.LogXi
		case "threads":
			cfg.Sweep.Threads = c.cfg.Sweep.Threads
		case "nell":
			cfg.Sweep.NumEll = c.cfg.Sweep.NumEll
		case "nxi":
			cfg.Sweep.NumXi = c.cfg.Sweep.NumXi
		case "map":
			cfg.Calibration.Map = c.cfg.Calibration.Map
		case "data":
			cfg.Calibration.Experiment = c.cfg.Calibration.Experiment
		case "d":
			cfg.Calibration.Size = c.cfg.Calibration.Size
		case "refine":
			cfg.Calibration.Refine = c.cfg.Calibration.Refine
		case "report":
			cfg.Output.Report = c.cfg.Output.Report
		}
	})
	return cfg, cfg.Validate()
}

func (c *commonFlags) registerModel(fs *flag.FlagSet) {
	fs.StringVar(&c.cfg.Calibration.Map, "map", "", "map file (l, xi, xmax); swept when empty")
	fs.Float64Var(&c.cfg.Calibration.Size, "d", 0, "characteristic particle size, cm")
}

func run(app *App, args []string, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("missing command")
	}
	cmd, args := args[0], args[1:]

	var c commonFlags
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	c.register(fs)

	var dcoeff, k0, cRate, loaded, minutes float64
	switch cmd {
	case "profile":
		fs.Float64Var(&c.cfg.Simulation.LogEll, "ell", 0, "log10 of ell")
		fs.Float64Var(&c.cfg.Simulation.LogXi, "xi", 0, "log10 of xi")
	case "map":
		fs.IntVar(&c.cfg.Sweep.Threads, "threads", 0, "workers; 0 uses every CPU")
		fs.IntVar(&c.cfg.Sweep.NumEll, "nell", 0, "log ell points")
		fs.IntVar(&c.cfg.Sweep.NumXi, "nxi", 0, "log xi points")
	case "fit":
		c.registerModel(fs)
		fs.StringVar(&c.cfg.Calibration.Experiment, "data", "", "experiment file (C-rate, SOC)")
		fs.BoolVar(&c.cfg.Calibration.Refine, "refine", false, "polish the grid optimum")
		fs.BoolVar(&c.cfg.Output.Report, "report", false, "write report.pdf")
	case "bmxfc", "size":
		c.registerModel(fs)
		fs.Float64Var(&dcoeff, "dcoeff", 0, "diffusion coefficient, cm^2/s")
		fs.Float64Var(&k0, "k0", 0, "kinetic rate constant, cm/s")
		fs.Float64Var(&loaded, "loaded", fastChargeLoaded, "target SOC")
		if cmd == "bmxfc" {
			fs.Float64Var(&cRate, "crate", 60/fastChargeMinutes, "C-rate")
		} else {
			fs.Float64Var(&minutes, "minutes", fastChargeMinutes, "charging time, minutes")
		}
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stderr, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	cfg, err := c.load(fs)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	switch cmd {
	case "profile":
		_, err = app.RunProfile(cfg)
	case "map":
		_, err = app.RunMap(cfg)
	case "fit":
		if cfg.Calibration.Experiment == "" {
			return errors.New("fit: -data is required")
		}
		_, err = app.RunFit(cfg)
	case "bmxfc":
		_, err = app.RunBMXFC(cfg, dcoeff, k0, cRate, loaded)
	case "size":
		_, err = app.RunSize(cfg, dcoeff, k0, minutes, loaded)
	}
	return err
}
