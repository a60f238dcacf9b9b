// Package kernel integrates the single-particle diffusion problem under a
// galvanostatic Butler-Volmer boundary condition. It is the numeric core
// behind the profile and sweep packages: callers allocate every buffer and
// the kernel only writes into them for the duration of one call.
package kernel

import (
	"fmt"
	"math"
	"runtime"
	"sync"
)

// Kernel is the handle through which solver runs are issued. It is safe for
// concurrent use; it keeps no state between calls.
type Kernel struct {
	numCPU int
}

// New returns a kernel sized for the host.
func New() *Kernel {
	return &Kernel{numCPU: runtime.NumCPU()}
}

// Workers resolves a requested pool size; anything below one means all
// hardware threads.
func (k *Kernel) Workers(threads int) int {
	if threads <= 0 {
		return k.numCPU
	}
	return threads
}

// stepBudget bounds every run so a cut-off that is never crossed still ends.
func stepBudget(sc Scalars) int { return 2 * sc.TimeSteps }

// SampleSlots is the SOC/potential buffer length RunProfile needs: the
// empty first slot, one row per sample over the whole step budget, the gap
// and the final state.
func SampleSlots(sc Scalars) int {
	if sc.Each < 1 || sc.TimeSteps < sc.Each {
		return 0
	}
	stride := sc.TimeSteps / sc.Each
	budget := stepBudget(sc)
	return (budget+stride-1)/stride + 2
}

// Validate checks the scalar block and the spline table used by a call.
func Validate(fl Flags, sc Scalars, sp Spline) error {
	switch {
	case sc.GridSize < 3:
		return fmt.Errorf("%w: grid size %d, need at least 3", ErrBadScalars, sc.GridSize)
	case sc.TimeSteps < 2:
		return fmt.Errorf("%w: time steps %d, need at least 2", ErrBadScalars, sc.TimeSteps)
	case sc.Each < 1 || sc.Each > sc.TimeSteps:
		return fmt.Errorf("%w: each %d outside [1, %d]", ErrBadScalars, sc.Each, sc.TimeSteps)
	case sc.Geometry < 1 || sc.Geometry > 3:
		return fmt.Errorf("%w: geometry %d, want 1, 2 or 3", ErrBadScalars, sc.Geometry)
	case !(sc.Temperature > 0):
		return fmt.Errorf("%w: temperature %g", ErrBadScalars, sc.Temperature)
	case !(sc.Mass > 0):
		return fmt.Errorf("%w: mass %g", ErrBadScalars, sc.Mass)
	case !(sc.Density > 0):
		return fmt.Errorf("%w: density %g", ErrBadScalars, sc.Density)
	case !(sc.SpecificCapacity > 0):
		return fmt.Errorf("%w: specific capacity %g", ErrBadScalars, sc.SpecificCapacity)
	}
	if fl.Frumkin {
		return nil
	}
	n := sp.Len()
	if n == 0 {
		return ErrEmptySpline
	}
	if len(sp.A) != n || len(sp.B) != n || len(sp.C) != n || len(sp.D) != n {
		return fmt.Errorf("%w: coefficient rows do not match %d capacity nodes", ErrBadScalars, n)
	}
	return nil
}

// RunProfile integrates one galvanostatic charge at (sc.LogEll, sc.LogXi)
// until the potential drops to sc.Vcut. SOC and potential are sampled every
// TimeSteps/Each steps; the first slot stays empty and the final state is
// written one slot past the last sample. The buffers hold SampleSlots(sc)
// rows, enough for a run that uses the whole step budget. The concentration snapshot is taken
// the first time the SOC is within 1e-4 of sc.ProfileSOC.
func (k *Kernel) RunProfile(fl Flags, sc Scalars, sp Spline, out *ProfileBuffers) (ProfileStats, error) {
	var stats ProfileStats
	if err := Validate(fl, sc, sp); err != nil {
		return stats, err
	}
	slots := SampleSlots(sc)
	if out == nil || len(out.SOC) < slots || len(out.Potential) < slots {
		return stats, fmt.Errorf("%w: need %d sample slots", ErrShortBuffer, slots)
	}
	if len(out.Radius) < sc.GridSize || len(out.Concentration) < sc.GridSize {
		return stats, fmt.Errorf("%w: need %d concentration slots", ErrShortBuffer, sc.GridSize)
	}
	clear(out.SOC)
	clear(out.Potential)
	clear(out.Radius)
	clear(out.Concentration)

	p := newParticle(fl, sc, sp, sc.LogEll, sc.LogXi, profileLengthFactor)

	stride := sc.TimeSteps / sc.Each
	budget := stepBudget(sc)
	index := 0
	soc := 0.0
	pot := sc.Vcut + 1.0
	for pot > sc.Vcut && stats.Steps < budget {
		pot = p.potential()
		soc = p.soc()

		if stats.Steps%stride == 0 {
			if index == 0 {
				index++
			} else {
				out.SOC[index] = soc
				out.Potential[index] = pot
				index++
			}
		}

		if !stats.Snapshot && math.Abs(soc-sc.ProfileSOC) < 1.0e-4 {
			for i := 0; i < p.n; i++ {
				out.Radius[i] = p.position[i] / p.radius
				out.Concentration[i] = p.actual[i]
			}
			stats.Snapshot = true
		}

		p.advance()
		stats.Steps++
	}
	stats.CutOff = !(pot > sc.Vcut)

	out.SOC[index+1] = soc
	out.Potential[index+1] = pot
	return stats, nil
}

// RunMap evaluates the maximum SOC reached before cut-off on every
// (ells[i], xis[j]) pair and writes it, clipped to [0, 1], into
// out[i*len(xis)+j]. Grid points are spread over threads workers; each
// worker owns the slots of the points it takes.
func (k *Kernel) RunMap(fl Flags, sc Scalars, sp Spline, ells, xis []float64, threads int, out []float64) error {
	if err := Validate(fl, sc, sp); err != nil {
		return err
	}
	jobs := len(ells) * len(xis)
	if len(out) < jobs {
		return fmt.Errorf("%w: need %d map slots, got %d", ErrShortBuffer, jobs, len(out))
	}
	if jobs == 0 {
		return nil
	}

	numWorkers := min(k.Workers(threads), jobs)

	work := make(chan int, jobs)
	for i := 0; i < jobs; i++ {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for index := range work {
				i, j := index/len(xis), index%len(xis)
				out[index] = maxSOC(fl, sc, sp, ells[i], xis[j])
			}
		}()
	}
	wg.Wait()
	return nil
}

// maxSOC runs one map point: the SOC of the field on which the cut-off
// fired.
func maxSOC(fl Flags, sc Scalars, sp Spline, logEll, logXi float64) float64 {
	p := newParticle(fl, sc, sp, logEll, logXi, float64(sc.Geometry))
	budget := stepBudget(sc)
	pot := sc.Vcut + 1.0
	for steps := 0; pot > sc.Vcut && steps < budget; steps++ {
		pot = p.potential()
		p.advance()
	}
	return Clip(mean(p.previous), 0.0, 1.0)
}
