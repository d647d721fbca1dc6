package trajectory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/oceinterp/config"
	"github.com/pthm-cable/oceinterp/grid"
	"github.com/pthm-cable/oceinterp/lagrangian"
	"github.com/pthm-cable/oceinterp/oceerr"
	"github.com/pthm-cable/oceinterp/telemetry"
)

func lagrangianConfig() config.LagrangianConfig {
	cfg := config.Default().Lagrangian
	cfg.Velocity = config.VelocityConfig{U: "U", V: "V"}
	return cfg
}

// flowGrid has velocity levels every 100 s.
func flowGrid(t *testing.T) *grid.Rectilinear {
	t.Helper()
	g, err := grid.NewRectilinear(grid.Axis(0, 100, 11), grid.Axis(0, 100, 11), nil, grid.Axis(0, 100, 5), false)
	require.NoError(t, err)
	require.NoError(t, grid.UniformFlow(g, "U", "V", 0.5, 0.25))
	return g
}

func newParticle(t *testing.T, g grid.Grid, cfg config.LagrangianConfig) *lagrangian.Particle {
	t.Helper()
	p, err := lagrangian.New(g, []float64{200, 300}, []float64{200, 100}, nil, 0, cfg)
	require.NoError(t, err)
	return p
}

func strictlyIncreasing(t *testing.T, v []float64) {
	t.Helper()
	for i := 1; i < len(v); i++ {
		assert.Greater(t, v[i], v[i-1], "index %d", i)
	}
}

func TestRefreshPoints(t *testing.T) {
	levels := []float64{0, 100, 200, 300}
	cfg := lagrangianConfig()

	got, err := RefreshPoints(cfg, levels, 0, 250)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 150}, got)

	cfg.UpdatePolicy = "levels"
	got, err = RefreshPoints(cfg, levels, 0, 250)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 200}, got)

	cfg.UpdatePolicy = "interval"
	cfg.UpdateInterval = 60
	got, err = RefreshPoints(cfg, levels, 10, 200)
	require.NoError(t, err)
	assert.Equal(t, []float64{70, 130, 190}, got)

	cfg.UpdateInterval = 0
	_, err = RefreshPoints(cfg, levels, 0, 100)
	assert.ErrorIs(t, err, oceerr.ErrConfiguration)

	cfg.UpdatePolicy = "hourly"
	_, err = RefreshPoints(cfg, levels, 0, 100)
	assert.ErrorIs(t, err, oceerr.ErrConfiguration)

	// a steady field never needs a refresh
	cfg.UpdatePolicy = "midpoints"
	got, err = RefreshPoints(cfg, nil, 0, 1e6)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStops(t *testing.T) {
	cfg := lagrangianConfig()
	levels := []float64{0, 100, 200, 300, 400}
	times := []float64{0, 120, 260}

	cases := map[string]struct {
		stops UpdateStops
		want  []float64
	}{
		"default":  {DefaultStops(), []float64{0, 50, 120, 150, 250, 260}},
		"none":     {NoStops(), []float64{0, 120, 260}},
		"explicit": {ExplicitStops(300, 120, 30, -5, 30), []float64{0, 30, 120, 260}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Stops(times, tc.stops, cfg, levels)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			strictlyIncreasing(t, got)
			assert.Equal(t, times[0], got[0])
			assert.Equal(t, times[len(times)-1], got[len(got)-1])
		})
	}

	_, err := Stops(times, ExplicitStops(math.NaN()), cfg, levels)
	assert.ErrorIs(t, err, oceerr.ErrUsage)
	_, err = Stops(times, UpdateStops{Mode: 9}, cfg, levels)
	assert.ErrorIs(t, err, oceerr.ErrConfiguration)
}

func TestCheckTimes(t *testing.T) {
	assert.ErrorIs(t, CheckTimes(nil), oceerr.ErrInsufficientTimeRange)
	assert.ErrorIs(t, CheckTimes([]float64{0}), oceerr.ErrInsufficientTimeRange)
	assert.ErrorIs(t, CheckTimes([]float64{0, 10, 10}), oceerr.ErrUsage)
	assert.ErrorIs(t, CheckTimes([]float64{0, math.NaN()}), oceerr.ErrUsage)
	assert.NoError(t, CheckTimes([]float64{0, 1}))
}

func TestParseMode(t *testing.T) {
	for s, want := range map[string]Mode{"": Default, "default": Default, "none": None, "explicit": Explicit} {
		got, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		if s != "" {
			assert.Equal(t, s, got.String())
		}
	}
	_, err := ParseMode("sometimes")
	assert.ErrorIs(t, err, oceerr.ErrConfiguration)
}

func TestAdvanceThroughSnapshotCounts(t *testing.T) {
	g := flowGrid(t)
	times := []float64{0, 120, 260}

	for _, inBetween := range []bool{false, true} {
		p := newParticle(t, g, lagrangianConfig())
		traj, err := AdvanceThrough(p, times, DefaultStops(), inBetween)
		require.NoError(t, err)

		assert.Equal(t, []float64{0, 50, 120, 150, 250, 260}, traj.Stops)
		strictlyIncreasing(t, traj.Stops)
		if inBetween {
			assert.Equal(t, traj.Stops, traj.Times)
			assert.Len(t, traj.Snapshots, len(traj.Stops))
		} else {
			assert.Equal(t, times, traj.Times)
			assert.Len(t, traj.Snapshots, len(times))
		}
		for k, s := range traj.Snapshots {
			assert.Equal(t, traj.Times[k], s.Time)
		}
		assert.Equal(t, lagrangian.Terminal, p.State())

		last := traj.Snapshots[len(traj.Snapshots)-1]
		assert.InDelta(t, 200+0.5*260, last.X[0], 1e-9)
		assert.InDelta(t, 200+0.25*260, last.Y[0], 1e-9)
		// the seed is untouched
		assert.Equal(t, 200.0, traj.Snapshots[0].X[0])
	}
}

func TestAdvanceThroughWithoutRefreshPoints(t *testing.T) {
	g := flowGrid(t)
	p := newParticle(t, g, lagrangianConfig())
	traj, err := AdvanceThrough(p, []float64{0, 10, 20}, NoStops(), true)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10, 20}, traj.Stops)
	assert.Len(t, traj.Snapshots, 3)
}

func TestAdvanceThroughErrors(t *testing.T) {
	g := flowGrid(t)

	_, err := AdvanceThrough(newParticle(t, g, lagrangianConfig()), []float64{0}, DefaultStops(), false)
	assert.ErrorIs(t, err, oceerr.ErrInsufficientTimeRange)

	_, err = AdvanceThrough(newParticle(t, g, lagrangianConfig()), []float64{5, 10}, DefaultStops(), false)
	assert.ErrorIs(t, err, oceerr.ErrUsage)

	_, err = AdvanceThrough(newParticle(t, g, lagrangianConfig()), []float64{0, 20, 10}, DefaultStops(), false)
	assert.ErrorIs(t, err, oceerr.ErrUsage)

	// the second particle runs off the east edge at x=1000
	_, err = AdvanceThrough(newParticle(t, g, lagrangianConfig()), []float64{0, 1500}, NoStops(), false)
	assert.ErrorIs(t, err, oceerr.ErrDomainExit)
	var perr *oceerr.PointError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Index)
}

func TestDriverRecordsPerf(t *testing.T) {
	g := flowGrid(t)
	perf := telemetry.NewPerfCollector(100)
	d := Driver{Perf: perf}

	traj, err := d.AdvanceThrough(newParticle(t, g, lagrangianConfig()), []float64{0, 120, 260}, DefaultStops(), false)
	require.NoError(t, err)
	// one step for the seed and one per leg
	assert.Equal(t, len(traj.Stops), perf.Steps())
	stats := perf.Stats()
	assert.Contains(t, stats.PhaseAvg, telemetry.PhaseAdvect)
	assert.Contains(t, stats.PhaseAvg, telemetry.PhaseSnapshot)
}
