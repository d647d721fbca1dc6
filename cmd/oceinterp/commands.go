package main

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/pthm-cable/oceinterp/config"
	"github.com/pthm-cable/oceinterp/eulerian"
	"github.com/pthm-cable/oceinterp/lagrangian"
	"github.com/pthm-cable/oceinterp/oceinterp"
	"github.com/pthm-cable/oceinterp/telemetry"
	"github.com/pthm-cable/oceinterp/trajectory"
)

// EulerianCmd interpolates at the seed points and times.
type EulerianCmd struct {
	GridFlags `embed:"" prefix:"grid-"`

	Seeds string   `help:"CSV of query points (x,y,z,t)." type:"existingfile" required:""`
	Var   []string `help:"Variable to interpolate; \"U,V\" names a vector pair." default:"tracer" sep:"none"`
}

// Run implements the eulerian command.
func (c *EulerianCmd) Run(a *app) error {
	g, err := c.Build(a.cfg.Lagrangian.Velocity)
	if err != nil {
		return err
	}
	x, y, z, t, err := ReadSeeds(c.Seeds)
	if err != nil {
		return err
	}
	vars, err := eulerian.ParseVars(c.Var)
	if err != nil {
		return err
	}

	opts := a.options()
	res, err := oceinterp.Interp(g, vars, x, y, z, t, opts)
	if err != nil {
		return err
	}

	runID, err := a.newRun("eulerian", len(x))
	if err != nil {
		return err
	}

	a.perf.StartStep()
	a.perf.StartPhase(telemetry.PhaseOutput)
	defer a.perf.EndStep()

	pos := res.Points
	values := make([]eulerian.Value, len(vars))
	for i := range vars {
		values[i] = res.Values[i][0]
	}
	if err := a.writeFields(runID, 0, pos, vars, values); err != nil {
		return err
	}

	a.logger.Info("interpolated",
		"run_id", runID,
		"points", pos.Len(),
		"in_domain", countTrue(pos.In),
		"vars", c.Var,
	)
	return a.finish(runID)
}

// LagrangianCmd advects the seeds through the requested times.
type LagrangianCmd struct {
	GridFlags `embed:"" prefix:"grid-"`

	Seeds     string    `help:"CSV of particle seeds (x,y,z); t is ignored." type:"existingfile" required:""`
	Times     []float64 `help:"Output times; the first is the release time." required:""`
	Var       []string  `help:"Variable to sample along trajectories." default:"tracer" sep:"none"`
	Stops     string    `help:"Velocity refresh stops." enum:"default,none,explicit" default:"default"`
	StopTimes []float64 `help:"Refresh times for --stops=explicit."`
}

// Run implements the lagrangian command.
func (c *LagrangianCmd) Run(a *app) error {
	g, err := c.Build(a.cfg.Lagrangian.Velocity)
	if err != nil {
		return err
	}
	x, y, z, _, err := ReadSeeds(c.Seeds)
	if err != nil {
		return err
	}
	vars, err := eulerian.ParseVars(c.Var)
	if err != nil {
		return err
	}
	if !slices.Contains(vars, eulerian.Raw) {
		vars = append(vars, eulerian.Raw)
	}

	opts := a.options()
	opts.Lagrangian = true
	mode, err := trajectory.ParseMode(c.Stops)
	if err != nil {
		return err
	}
	opts.UpdateStops = trajectory.UpdateStops{Mode: mode, Times: c.StopTimes}

	res, err := oceinterp.Interp(g, vars, x, y, z, c.Times, opts)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		a.logger.Warn(w)
	}

	runID, err := a.newRun("lagrangian", len(x))
	if err != nil {
		return err
	}

	a.perf.StartStep()
	a.perf.StartPhase(telemetry.PhaseOutput)
	defer a.perf.EndStep()

	if err := a.writeTrajectory(runID, res.Raw); err != nil {
		return err
	}
	if err := a.writeSampled(runID, vars, res); err != nil {
		return err
	}

	last := res.Raw[len(res.Raw)-1]
	a.logger.Info("advected",
		"run_id", runID,
		"particles", last.Len(),
		"snapshots", len(res.Raw),
		"stops", len(res.Stops),
		"end", last.Time,
	)
	return a.finish(runID)
}

// writeTrajectory records the snapshots and per-stop statistics.
func (a *app) writeTrajectory(runID uuid.UUID, snaps []*lagrangian.Snapshot) error {
	id := runID.String()
	times := make([]float64, len(snaps))
	for k, s := range snaps {
		times[k] = s.Time
	}
	if err := a.out.WriteTrajectory(id, times, snaps); err != nil {
		return err
	}
	if a.store != nil {
		if err := a.store.SaveTrajectory(a.ctx, runID, telemetry.TrajectoryRows(id, times, snaps)); err != nil {
			return err
		}
	}

	for k := 1; k < len(snaps); k++ {
		st := telemetry.ComputeStopStats(snaps[0], snaps[k])
		st.RunID, st.Stop = id, k
		st.LogStats(a.logger)
		if err := a.out.WriteStats(st); err != nil {
			return err
		}
		if a.store != nil {
			if err := a.store.SaveStats(a.ctx, runID, st); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeSampled records the variables sampled along the trajectories, one
// batch of field rows per snapshot.
func (a *app) writeSampled(runID uuid.UUID, vars []eulerian.Var, res *oceinterp.Result) error {
	var sampled []eulerian.Var
	var series [][]eulerian.Value
	for i, v := range vars {
		if v == eulerian.Raw {
			continue
		}
		sampled = append(sampled, v)
		series = append(series, res.Values[i])
	}
	if len(sampled) == 0 {
		return nil
	}
	for k, snap := range res.Raw {
		values := make([]eulerian.Value, len(sampled))
		for i := range sampled {
			values[i] = series[i][k]
		}
		if err := a.writeFields(runID, k, snap.Position, sampled, values); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) writeFields(runID uuid.UUID, stop int, pos *eulerian.Position, vars []eulerian.Var, values []eulerian.Value) error {
	id := runID.String()
	if err := a.out.WriteFields(id, stop, pos, vars, values); err != nil {
		return err
	}
	if a.store != nil {
		return a.store.SaveFields(a.ctx, runID, telemetry.FieldRows(id, stop, pos, vars, values))
	}
	return nil
}

// RunsCmd lists stored runs.
type RunsCmd struct{}

// Run implements the runs command.
func (c *RunsCmd) Run(a *app) error {
	if a.store == nil {
		return fmt.Errorf("runs needs a database (--db or store.path)")
	}
	runs, err := a.store.ListRuns(a.ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		a.logger.Info("run",
			"run_id", r.ID,
			"mode", r.Mode,
			"particles", r.Particles,
			"created_at", r.CreatedAt,
		)
	}
	return nil
}

func (a *app) options() oceinterp.Options {
	opts := oceinterp.DefaultOptions()
	// An untouched kernel section leaves vector pairs on the staggered kernels.
	if a.cfg.Kernel != config.Default().Kernel {
		opts.Kernel = &a.cfg.Kernel
	}
	opts.Particle = a.cfg.Lagrangian
	opts.ReturnInBetween = a.cfg.Output.ReturnInBetween
	opts.ReturnPtTime = a.cfg.Output.ReturnPtTime
	opts.Pool = a.pool
	opts.Perf = a.perf
	opts.Logger = a.logger
	return opts
}

// newRun registers the run with the store, or mints an ID when there is none.
func (a *app) newRun(mode string, points int) (uuid.UUID, error) {
	if a.store == nil {
		return uuid.New(), nil
	}
	return a.store.CreateRun(a.ctx, mode, points, a.cfg)
}

func (a *app) finish(runID uuid.UUID) error {
	stats := a.perf.Stats()
	stats.LogStats(a.logger)
	return a.out.WritePerf(stats, runID.String(), a.perf.Steps())
}

func countTrue(v []bool) int {
	n := 0
	for _, b := range v {
		if b {
			n++
		}
	}
	return n
}
