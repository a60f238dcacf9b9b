// Package profile runs a single galvanostatic charge and returns the
// simulated SOC/potential curve.
package profile

import (
	"fmt"

	"github.com/fernandezfran/galpynostatic/internal/isotherm"
	"github.com/fernandezfran/galpynostatic/internal/kernel"
)

// Scalars builds the kernel parameter block for p and iso.
func (p Params) Scalars(iso *isotherm.Isotherm) kernel.Scalars {
	return kernel.Scalars{
		G:                p.G,
		GridSize:         p.GridSize,
		TimeSteps:        p.TimeSteps,
		Each:             p.Each,
		Temperature:      p.Temperature,
		Mass:             p.Mass,
		Density:          p.Density,
		Resistance:       p.Resistance,
		Vcut:             iso.Vcut,
		SpecificCapacity: iso.SpecificCapacity,
		Geometry:         p.Geometry,
		LogEll:           p.LogEll,
		LogXi:            p.LogXi,
		ProfileSOC:       p.ProfileSOC,
	}
}

// Run simulates one charge with k. The returned curve has the empty
// sampling slots removed.
func Run(k *kernel.Kernel, p Params, iso *isotherm.Isotherm) (*Result, error) {
	if iso == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, isotherm.ErrMissingCapacity)
	}
	sc := p.Scalars(iso)
	if err := kernel.Validate(iso.Flags(), sc, iso.Spline()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	buf := kernel.NewProfileBuffers(sc)
	stats, err := k.RunProfile(iso.Flags(), sc, iso.Spline(), buf)
	if err != nil {
		return nil, fmt.Errorf("running profile kernel: %w", err)
	}

	res := NewResult()
	for i := range buf.SOC {
		if buf.SOC[i] == 0 && buf.Potential[i] == 0 {
			continue
		}
		res.SOC = append(res.SOC, buf.SOC[i])
		res.Potential = append(res.Potential, buf.Potential[i])
	}
	res.Radius = buf.Radius
	res.Concentration = buf.Concentration
	res.Steps = stats.Steps
	res.CutOff = stats.CutOff
	res.Snapshot = stats.Snapshot
	return res, nil
}
