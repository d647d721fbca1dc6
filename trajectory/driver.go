package trajectory

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/oceinterp/lagrangian"
	"github.com/pthm-cable/oceinterp/oceerr"
	"github.com/pthm-cable/oceinterp/telemetry"
)

// Trajectory is the result of driving a particle through a run.
type Trajectory struct {
	// Stops is the strictly increasing stop-time list: caller times merged
	// with refresh points.
	Stops []float64
	// Times holds the time of every snapshot.
	Times []float64
	// Snapshots holds one snapshot per entry of Times; the first is the seed.
	Snapshots []*lagrangian.Snapshot
}

// Driver advances particles leg by leg. The zero value is ready to use.
type Driver struct {
	Perf   *telemetry.PerfCollector // optional
	Logger *slog.Logger             // nil = slog.Default()
}

// AdvanceThrough drives p through times using a zero Driver.
func AdvanceThrough(p *lagrangian.Particle, times []float64, stops UpdateStops, returnInBetween bool) (*Trajectory, error) {
	var d Driver
	return d.AdvanceThrough(p, times, stops, returnInBetween)
}

// AdvanceThrough integrates p from times[0] to the last caller time. The
// velocity window is refreshed at every stop. With returnInBetween a snapshot
// is taken at every stop, otherwise only at caller times. The particle ends
// in its terminal state.
func (d *Driver) AdvanceThrough(p *lagrangian.Particle, times []float64, stops UpdateStops, returnInBetween bool) (*Trajectory, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := CheckTimes(times); err != nil {
		return nil, err
	}
	if times[0] != p.Time() {
		return nil, fmt.Errorf("%w: first output time %g is not the particle start time %g", oceerr.ErrUsage, times[0], p.Time())
	}

	stopList, err := Stops(times, stops, p.Config(), p.Grid().Times())
	if err != nil {
		return nil, err
	}
	logger.Debug("trajectory stops",
		"mode", stops.Mode.String(),
		"caller_times", len(times),
		"stops", len(stopList),
		"particles", p.Len(),
	)

	traj := &Trajectory{Stops: stopList}
	capture := func(t float64) error {
		d.Perf.StartPhase(telemetry.PhaseSnapshot)
		s, err := p.Snapshot()
		if err != nil {
			return err
		}
		traj.Times = append(traj.Times, t)
		traj.Snapshots = append(traj.Snapshots, s)
		return nil
	}

	d.Perf.StartStep()
	if err := capture(stopList[0]); err != nil {
		return nil, err
	}
	d.Perf.EndStep()

	next := 1 // index of the next caller time
	for k := 1; k < len(stopList); k++ {
		a, b := stopList[k-1], stopList[k]
		d.Perf.StartStep()

		d.Perf.StartPhase(telemetry.PhaseRefresh)
		if err := p.Refresh(a, b); err != nil {
			return nil, err
		}
		d.Perf.StartPhase(telemetry.PhaseAdvect)
		if err := p.AdvanceTo(b); err != nil {
			return nil, fmt.Errorf("advancing %g -> %g: %w", a, b, err)
		}

		isCaller := next < len(times) && times[next] == b
		if isCaller {
			next++
		}
		if isCaller || returnInBetween {
			if err := capture(b); err != nil {
				return nil, err
			}
		}
		d.Perf.EndStep()
	}

	if err := p.Finish(); err != nil {
		return nil, err
	}
	return traj, nil
}
