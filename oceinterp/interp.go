// Package oceinterp is the entry point for interpolating ocean model fields
// at arbitrary points, either in place (Eulerian) or along particle
// trajectories (Lagrangian).
package oceinterp

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/pthm-cable/oceinterp/config"
	"github.com/pthm-cable/oceinterp/eulerian"
	"github.com/pthm-cable/oceinterp/grid"
	"github.com/pthm-cable/oceinterp/kernel"
	"github.com/pthm-cable/oceinterp/lagrangian"
	"github.com/pthm-cable/oceinterp/metrics"
	"github.com/pthm-cable/oceinterp/oceerr"
	"github.com/pthm-cable/oceinterp/parallel"
	"github.com/pthm-cable/oceinterp/telemetry"
	"github.com/pthm-cable/oceinterp/trajectory"
)

// WarnOffScheduleTimes is recorded when snapshots at refresh points may be
// returned without the times that would identify them.
const WarnOffScheduleTimes = "some results are at times that were not requested"

// Options controls an Interp call. Start from DefaultOptions.
type Options struct {
	// Kernels holds one spec per variable. When nil, scalars use the
	// default kernel and vector pairs use the staggered U/V kernels.
	Kernels []eulerian.KernelSpec
	// Kernel overrides the default kernel. When set it is also used for
	// both components of vector pairs.
	Kernel *config.KernelConfig

	Lagrangian bool
	Particle   config.LagrangianConfig

	UpdateStops     trajectory.UpdateStops
	ReturnInBetween bool
	ReturnPtTime    bool

	Pool   *parallel.Pool           // nil = eulerian.DefaultPool
	Perf   *telemetry.PerfCollector // optional
	Logger *slog.Logger             // nil = slog.Default()
}

// DefaultOptions returns the documented defaults: Eulerian mode, default
// update stops, snapshots at every stop, stop times returned.
func DefaultOptions() Options {
	cfg := config.Default()
	return Options{
		Particle:        cfg.Lagrangian,
		UpdateStops:     trajectory.DefaultStops(),
		ReturnInBetween: cfg.Output.ReturnInBetween,
		ReturnPtTime:    cfg.Output.ReturnPtTime,
	}
}

// Result holds the output of Interp.
type Result struct {
	// Times holds the time of each snapshot in Lagrangian mode. It is nil in
	// Eulerian mode and when ReturnPtTime is false.
	Times []float64
	// Stops is the full stop-time list of a Lagrangian run.
	Stops []float64

	// Values is indexed by variable. In Eulerian mode each entry holds a
	// single Value; in Lagrangian mode it holds one Value per snapshot. The
	// entry for the raw token is nil.
	Values [][]eulerian.Value
	// Raw holds the snapshots when the raw token was requested.
	Raw []*lagrangian.Snapshot
	// Points holds the resolved query points in Eulerian mode.
	Points *eulerian.Position

	Warnings []string
}

// Interp interpolates vars at the given points. In Eulerian mode x, y, z
// and t all have one entry per point (z and t may be nil). In Lagrangian
// mode x, y and z seed the particles and t lists the output times, the
// first being the start time.
func Interp(g grid.Grid, vars []eulerian.Var, x, y, z, t []float64, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	kernels, err := defaultKernels(vars, opts)
	if err != nil {
		return nil, err
	}

	mode := "eulerian"
	if opts.Lagrangian {
		mode = "lagrangian"
	}
	start := time.Now()
	defer func() {
		metrics.CallLatency.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	if !opts.Lagrangian {
		return eulerianInterp(g, vars, kernels, x, y, z, t, opts)
	}
	return lagrangianInterp(g, vars, kernels, x, y, z, t, opts, logger)
}

// defaultKernels fills in kernels for every variable when none were given.
func defaultKernels(vars []eulerian.Var, opts Options) ([]eulerian.KernelSpec, error) {
	if opts.Kernels != nil {
		if len(opts.Kernels) != len(vars) {
			return nil, fmt.Errorf("%w: %d variables but %d kernels", oceerr.ErrConfiguration, len(vars), len(opts.Kernels))
		}
		return opts.Kernels, nil
	}

	kcfg := config.Default().Kernel
	if opts.Kernel != nil {
		kcfg = *opts.Kernel
	}
	k, err := kernel.New(kcfg)
	if err != nil {
		return nil, err
	}

	out := make([]eulerian.KernelSpec, len(vars))
	for i, v := range vars {
		switch {
		case v.Kind != eulerian.VectorVar:
			out[i] = eulerian.ScalarKernel(k)
		case opts.Kernel != nil:
			out[i] = eulerian.PairKernels(k, k)
		default:
			out[i] = eulerian.PairKernels(kernel.U, kernel.V)
		}
	}
	return out, nil
}

func eulerianInterp(g grid.Grid, vars []eulerian.Var, kernels []eulerian.KernelSpec, x, y, z, t []float64, opts Options) (*Result, error) {
	for _, v := range vars {
		if v.Kind == eulerian.ReservedVar {
			return nil, oceerr.Variable(v.String(), oceerr.ErrInvalidScheme)
		}
	}

	opts.Perf.StartStep()
	defer opts.Perf.EndStep()

	opts.Perf.StartPhase(telemetry.PhaseResolve)
	pos, err := eulerian.FromLatLon(g, x, y, z, t)
	if err != nil {
		return nil, err
	}
	if opts.Pool != nil {
		pos.WithPool(opts.Pool)
	}

	opts.Perf.StartPhase(telemetry.PhaseInterpolate)
	values, err := pos.Interpolate(vars, kernels)
	if err != nil {
		return nil, err
	}
	res := &Result{Values: make([][]eulerian.Value, len(values)), Points: pos}
	for i, v := range values {
		res.Values[i] = []eulerian.Value{v}
	}
	return res, nil
}

// checkLagrangianVars fails early for variables that could not be produced
// after the particles have been advanced.
func checkLagrangianVars(g grid.Grid, vars []eulerian.Var) error {
	for _, v := range vars {
		switch v.Kind {
		case eulerian.ReservedVar:
			if v.Name != eulerian.RawAttr && !slices.Contains(lagrangian.Attrs, v.Name) {
				return oceerr.Variable(v.String(), oceerr.ErrUnsupportedVariable)
			}
		case eulerian.VectorVar:
			for _, name := range []string{v.U, v.V} {
				if !g.Has(name) {
					return oceerr.Variable(name, oceerr.ErrUnsupportedVariable)
				}
			}
		default:
			if !g.Has(v.Name) {
				return oceerr.Variable(v.Name, oceerr.ErrUnsupportedVariable)
			}
		}
	}
	return nil
}

func lagrangianInterp(g grid.Grid, vars []eulerian.Var, kernels []eulerian.KernelSpec, x, y, z, t []float64, opts Options, logger *slog.Logger) (*Result, error) {
	if err := trajectory.CheckTimes(t); err != nil {
		return nil, err
	}
	if err := checkLagrangianVars(g, vars); err != nil {
		return nil, err
	}

	opts.Perf.StartStep()
	opts.Perf.StartPhase(telemetry.PhaseResolve)
	p, err := lagrangian.New(g, x, y, z, t[0], opts.Particle)
	opts.Perf.EndStep()
	if err != nil {
		return nil, err
	}
	if opts.Pool != nil {
		p.WithPool(opts.Pool)
	}

	d := trajectory.Driver{Perf: opts.Perf, Logger: logger}
	traj, err := d.AdvanceThrough(p, t, opts.UpdateStops, opts.ReturnInBetween)
	if err != nil {
		return nil, err
	}

	opts.Perf.StartStep()
	opts.Perf.StartPhase(telemetry.PhaseInterpolate)
	defer opts.Perf.EndStep()

	res := &Result{Stops: traj.Stops, Values: make([][]eulerian.Value, len(vars))}
	for i, v := range vars {
		if v == eulerian.Raw {
			res.Raw = traj.Snapshots
			continue
		}
		series := make([]eulerian.Value, len(traj.Snapshots))
		for k, s := range traj.Snapshots {
			if v.Kind == eulerian.ReservedVar {
				attr, err := s.Attr(v.Name)
				if err != nil {
					return nil, err
				}
				series[k] = eulerian.Value{Scalar: attr}
				continue
			}
			val, err := s.InterpolateOne(v, kernels[i])
			if err != nil {
				return nil, err
			}
			series[k] = val
		}
		res.Values[i] = series
	}

	if opts.ReturnPtTime {
		res.Times = traj.Times
	} else if opts.ReturnInBetween {
		logger.Warn(WarnOffScheduleTimes,
			"requested", len(t),
			"returned", len(traj.Times),
		)
		res.Warnings = append(res.Warnings, WarnOffScheduleTimes)
	}
	return res, nil
}

// NamedVars turns a variable-to-kernel mapping into ordered lists. Keys are
// parsed with eulerian.ParseVar and sorted, so the order is stable; it is
// logged at debug level.
func NamedVars(m map[string]eulerian.KernelSpec, logger *slog.Logger) ([]eulerian.Var, []eulerian.KernelSpec, error) {
	if logger == nil {
		logger = slog.Default()
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	vars, err := eulerian.ParseVars(keys)
	if err != nil {
		return nil, nil, err
	}
	kernels := make([]eulerian.KernelSpec, len(keys))
	for i, k := range keys {
		kernels[i] = m[k]
	}
	logger.Debug("result order", "vars", keys)
	return vars, kernels, nil
}
