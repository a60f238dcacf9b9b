package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fernandezfran/galpynostatic/internal/config"
	"github.com/fernandezfran/galpynostatic/internal/parser"
	"github.com/fernandezfran/galpynostatic/internal/regressor"
	"github.com/fernandezfran/galpynostatic/internal/surface"
)

func quietApp(t *testing.T) (*App, *[]string) {
	t.Helper()
	app := NewApp(log.New(io.Discard, "", 0))
	var messages []string
	app.OnStatus(func(msg string) { messages = append(messages, msg) })
	return app, &messages
}

func smallConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Simulation.GridSize = 50
	cfg.Simulation.TimeSteps = 2000
	cfg.Sweep.NumEll, cfg.Sweep.NumXi = 4, 4
	cfg.Calibration.DCoeffMin, cfg.Calibration.DCoeffMax, cfg.Calibration.NumDCoeff = -10, -8, 5
	cfg.Calibration.K0Min, cfg.Calibration.K0Max, cfg.Calibration.NumK0 = -8, -6, 5
	cfg.Calibration.Size = 1e-4
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Plots = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func TestRunProfileWritesTables(t *testing.T) {
	app, messages := quietApp(t)
	cfg := smallConfig(t)
	cfg.Simulation.LogEll, cfg.Simulation.LogXi = -1, 0

	res, err := app.RunProfile(cfg)
	if err != nil {
		t.Fatalf("RunProfile: %v", err)
	}
	if res.Len() == 0 {
		t.Fatal("empty profile")
	}
	for _, name := range []string{"profile.csv", "con.csv"} {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if len(*messages) == 0 {
		t.Error("no status messages sent")
	}
}

func TestRunFitRecoversGridPair(t *testing.T) {
	app, messages := quietApp(t)
	cfg := smallConfig(t)

	m, err := app.RunMap(cfg)
	if err != nil {
		t.Fatalf("RunMap: %v", err)
	}
	cfg.Calibration.Map = filepath.Join(cfg.Output.Dir, "map.tsv")

	surf, err := surface.New(m)
	if err != nil {
		t.Fatalf("surface.New: %v", err)
	}
	r, err := regressor.New(surf, cfg.Calibration.Size, cfg.Simulation.Geometry, cfg.RegressorOptions()...)
	if err != nil {
		t.Fatalf("regressor.New: %v", err)
	}
	rates := []float64{0.5, 1, 2, 5}
	socs := r.PredictWith(r.DCoeffs()[2], r.K0s()[2], rates)

	var buf bytes.Buffer
	buf.WriteString("c_rate\tsoc\n")
	for i := range rates {
		fmt.Fprintf(&buf, "%v\t%v\n", rates[i], socs[i])
	}
	cfg.Calibration.Experiment = filepath.Join(cfg.Output.Dir, "rates.tsv")
	if err := os.WriteFile(cfg.Calibration.Experiment, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Output.Report = true

	out, err := app.RunFit(cfg)
	if err != nil {
		t.Fatalf("RunFit: %v", err)
	}
	if out.Fit.MSE != 0 {
		t.Errorf("MSE = %g, want 0 for data taken from the map", out.Fit.MSE)
	}
	if out.Fit.Candidates == 0 {
		t.Error("no candidates counted")
	}
	if out.Analysis.RMSE != 0 {
		t.Errorf("RMSE = %g", out.Analysis.RMSE)
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, "report.pdf")); err != nil {
		t.Errorf("report not written: %v", err)
	}

	// the map written by RunMap reads back unchanged
	back, _, err := parser.ReadMap(cfg.Calibration.Map)
	if err != nil {
		t.Fatalf("ReadMap: %v", err)
	}
	if back.Len() != m.Len() {
		t.Errorf("map rows = %d, want %d", back.Len(), m.Len())
	}

	found := false
	for _, msg := range *messages {
		if strings.HasPrefix(msg, "PDF report successfully generated") {
			found = true
		}
	}
	if !found {
		t.Errorf("no report status in %q", *messages)
	}
}

func TestRunCommands(t *testing.T) {
	app, _ := quietApp(t)
	var stderr bytes.Buffer

	if err := run(app, nil, &stderr); err == nil {
		t.Error("missing command accepted")
	}
	if !strings.Contains(stderr.String(), "usage: galvanostat") {
		t.Errorf("usage not printed: %q", stderr.String())
	}
	if err := run(app, []string{"simulate"}, io.Discard); err == nil {
		t.Error("unknown command accepted")
	}
	if err := run(app, []string{"map", "-h"}, io.Discard); err != nil {
		t.Errorf("help: %v", err)
	}
	if err := run(app, []string{"fit", "-out", t.TempDir()}, io.Discard); err == nil {
		t.Error("fit without data accepted")
	}
	if err := run(app, []string{"profile", "-z", "4"}, io.Discard); err == nil {
		t.Error("geometry 4 accepted")
	}

	dir := t.TempDir()
	args := []string{"profile", "-out", dir, "-ell", "-2", "-xi", "1", "-steps", "2000", "-grid", "50", "-plots=false"}
	if err := run(app, args, io.Discard); err != nil {
		t.Fatalf("profile: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "profile.csv")); err != nil {
		t.Errorf("profile.csv not written: %v", err)
	}
}
