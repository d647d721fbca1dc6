package main

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/oceinterp/config"
	"github.com/pthm-cable/oceinterp/store"
	"github.com/pthm-cable/oceinterp/telemetry"
)

func writeSeeds(t *testing.T, seeds []Seed) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seeds.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, gocsv.MarshalFile(&seeds, f))
	return path
}

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("oceinterp"))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &cli, kctx
}

func readCSV[T any](t *testing.T, path string) []T {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var rows []T
	require.NoError(t, gocsv.UnmarshalFile(f, &rows))
	return rows
}

func TestGridFlagsBuild(t *testing.T) {
	vel := config.Default().Lagrangian.Velocity
	for _, flow := range []string{"uniform", "gyre", "tide"} {
		f := GridFlags{NX: 4, NY: 3, DX: 10, DY: 10, Levels: 2, LevelStep: 60, Flow: flow, East: 1}
		g, err := f.Build(vel)
		require.NoError(t, err, flow)
		assert.True(t, g.Has(vel.U))
		assert.True(t, g.Has(vel.V))
		assert.True(t, g.Has(TracerName))
	}

	_, err := GridFlags{NX: 1, NY: 3, DX: 1, DY: 1, Flow: "uniform"}.Build(vel)
	assert.Error(t, err)
	_, err = GridFlags{NX: 3, NY: 3, DX: 1, DY: 1, Flow: "vortex"}.Build(vel)
	assert.Error(t, err)
}

func TestReadSeeds(t *testing.T) {
	path := writeSeeds(t, []Seed{{X: 1, Y: 2}, {X: 3, Y: 4, T: 60}})
	x, y, z, tt, err := ReadSeeds(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, x)
	assert.Equal(t, []float64{2, 4}, y)
	assert.Equal(t, []float64{0, 0}, z)
	assert.Equal(t, []float64{0, 60}, tt)

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, []byte("x,y\n"), 0644))
	_, _, _, _, err = ReadSeeds(empty)
	assert.Error(t, err)
}

func TestParseDefaults(t *testing.T) {
	seeds := writeSeeds(t, []Seed{{X: 1, Y: 1}})
	cli, kctx := parse(t, "lagrangian", "--seeds", seeds, "--times", "0,60,120", "--var", "UVEL,VVEL")
	assert.Equal(t, "lagrangian", kctx.Command())
	assert.Equal(t, []float64{0, 60, 120}, cli.Lagrangian.Times)
	assert.Equal(t, []string{"UVEL,VVEL"}, cli.Lagrangian.Var)
	assert.Equal(t, "uniform", cli.Lagrangian.Flow)
	assert.Equal(t, 50, cli.Lagrangian.NX)
	assert.Equal(t, slog.LevelInfo, cli.LogLevel)
}

func TestLagrangianCommandWritesOutput(t *testing.T) {
	seeds := writeSeeds(t, []Seed{{X: 1000, Y: 1000}, {X: 2000, Y: 3000}})
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	cli, kctx := parse(t, "lagrangian",
		"--grid-nx=10", "--grid-ny=10", "--grid-east=1",
		"--seeds", seeds, "--times", "0,600,1200", "--stops=none",
	)

	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Store.Path = db
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	require.NoError(t, run(kctx, cfg, cli.PerfWindow, logger))

	rows := readCSV[telemetry.TrajectoryRow](t, filepath.Join(cfg.Output.Dir, "trajectory.csv"))
	require.Len(t, rows, 6)
	assert.InDelta(t, 2200, rows[4].X, 1e-6)
	assert.InDelta(t, 3200, rows[5].X, 1e-6)

	stats := readCSV[telemetry.StopStats](t, filepath.Join(cfg.Output.Dir, "stats.csv"))
	assert.Len(t, stats, 2)
	perf := readCSV[telemetry.PerfStatsCSV](t, filepath.Join(cfg.Output.Dir, "perf.csv"))
	assert.Len(t, perf, 1)

	// tracer = x + y sampled at every snapshot
	fields := readCSV[telemetry.FieldRow](t, filepath.Join(cfg.Output.Dir, "fields.csv"))
	require.Len(t, fields, 6)
	want := []float64{2000, 5000, 2600, 5600, 3200, 6200}
	for i, r := range fields {
		assert.Equal(t, TracerName, r.Var)
		assert.Equal(t, i/2, r.Stop)
		assert.Equal(t, i%2, r.Point)
		assert.InDelta(t, want[i], r.Value, 1e-6, "row %d", i)
	}

	// the runs command reads back from the same database
	_, kctx = parse(t, "runs")
	require.NoError(t, run(kctx, cfg, cli.PerfWindow, logger))

	ctx := context.Background()
	st, err := store.Open(ctx, db, logger)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	stored, err := st.LoadFields(ctx, runs[0].ID)
	require.NoError(t, err)
	require.Len(t, stored, 6)
	assert.Equal(t, 2, stored[5].Stop)
	assert.InDelta(t, 6200, stored[5].Value, 1e-6)
}

func TestEulerianCommandWritesFields(t *testing.T) {
	seeds := writeSeeds(t, []Seed{{X: 1500, Y: 2500}, {X: 1e9, Y: 0}})
	dir := t.TempDir()
	cli, kctx := parse(t, "eulerian", "--grid-nx=5", "--grid-ny=5", "--seeds", seeds, "--var=tracer", "--var=UVEL,VVEL")

	cfg := config.Default()
	cfg.Output.Dir = dir
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	require.NoError(t, run(kctx, cfg, cli.PerfWindow, logger))

	rows := readCSV[telemetry.FieldRow](t, filepath.Join(dir, "fields.csv"))
	require.Len(t, rows, 6)
	assert.Equal(t, TracerName, rows[0].Var)
	assert.InDelta(t, 4000, rows[0].Value, 1e-9)
	assert.Equal(t, "UVEL,VVEL", rows[2].Var)
	assert.InDelta(t, 0.1, rows[2].Value, 1e-12)
}

func TestOptionsKeepStaggeredKernels(t *testing.T) {
	a := &app{cfg: config.Default()}
	assert.Nil(t, a.options().Kernel)

	a.cfg.Kernel.Horizontal = "nearest"
	opts := a.options()
	require.NotNil(t, opts.Kernel)
	assert.Equal(t, "nearest", opts.Kernel.Horizontal)
}

func TestEulerianCommandVectorOnTide(t *testing.T) {
	seeds := writeSeeds(t, []Seed{{X: 1500, Y: 2500, T: 1000}})
	args := []string{"eulerian", "--grid-nx=5", "--grid-ny=5", "--grid-flow=tide", "--grid-levels=3",
		"--seeds", seeds, "--var=UVEL,VVEL"}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	eastward := func(cfg *config.Config) float64 {
		t.Helper()
		cli, kctx := parse(t, args...)
		cfg.Output.Dir = t.TempDir()
		require.NoError(t, run(kctx, cfg, cli.PerfWindow, logger))
		rows := readCSV[telemetry.FieldRow](t, filepath.Join(cfg.Output.Dir, "fields.csv"))
		require.Len(t, rows, 2)
		assert.Equal(t, "u", rows[0].Component)
		assert.InDelta(t, 0, rows[1].Value, 1e-12)
		return rows[0].Value
	}

	// the U kernel takes the nearest time level
	assert.InDelta(t, 0.5, eastward(config.Default()), 1e-12)

	// a configured kernel interpolates in time for both components
	cfg := config.Default()
	cfg.Kernel.Horizontal = "nearest"
	w := 1000.0 / 3600
	want := 0.5*(1-w) + 0.5*math.Cos(2*math.Pi*3600/44712)*w
	assert.InDelta(t, want, eastward(cfg), 1e-9)
}
